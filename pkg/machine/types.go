// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package machine

import (
	"fmt"
	"io"
	"strings"
)

type OperandRole uint

type OpcodeInfo struct {
	Mnemonic string
	Roles    []OperandRole
}

type DeviceHandler struct {
	Keyboard io.ByteReader
	Display  io.ByteWriter
}

// MachineState is everything a snapshot captures. Memory holds raw 16 bit
// words, since a program image encodes register references in place.
type MachineState struct {
	Registers [REGISTER_COUNT]uint16
	Program   uint16
	Stack     []uint16
	Memory    [MEMORY_SIZE]uint16
	Halted    bool
}

type Machine struct {
	Devices *DeviceHandler
	State   MachineState
}

// Instruction is a fully decoded instruction. Raw holds the encoded
// operands; Values holds them resolved against the registers as they were
// at decode time. Destination operands are not resolved, their Values slot
// holds the register index.
type Instruction struct {
	Addr   uint16
	Opcode uint16
	Count  int
	Raw    [3]uint16
	Values [3]uint16
}

func LookupOpcode(opcode uint16) (OpcodeInfo, bool) {
	if int(opcode) >= len(opcodes) {
		return OpcodeInfo{}, false
	}

	return opcodes[opcode], true
}

func (inst Instruction) Info() OpcodeInfo {
	return opcodes[inst.Opcode]
}

func (inst Instruction) Mnemonic() string {
	return opcodes[inst.Opcode].Mnemonic
}

// Size is the number of words the instruction occupies, opcode included.
func (inst Instruction) Size() uint16 {
	return uint16(1 + inst.Count)
}

// Dest returns the register index of the leading destination operand.
func (inst Instruction) Dest() (int, bool) {
	roles := opcodes[inst.Opcode].Roles

	if len(roles) == 0 || roles[0] != ROLE_DEST {
		return 0, false
	}

	return int(inst.Values[0]), true
}

// Reads reports whether any value operand is the given register reference.
func (inst Instruction) Reads(reg int) bool {
	for i, role := range opcodes[inst.Opcode].Roles {
		if role == ROLE_VALUE && inst.Raw[i] == REGISTER_BASE+uint16(reg) {
			return true
		}
	}

	return false
}

// String formats the instruction as encoded, e.g. "add r0 r0 r1".
func (inst Instruction) String() string {
	var builder strings.Builder
	builder.WriteString(inst.Mnemonic())

	for i := 0; i < inst.Count; i++ {
		builder.WriteByte(' ')
		builder.WriteString(FormatOperand(inst.Raw[i]))
	}

	return builder.String()
}

// Resolved formats the instruction with value operands replaced by what
// they resolved to, e.g. "add r0 4 1".
func (inst Instruction) Resolved() string {
	var builder strings.Builder
	builder.WriteString(inst.Mnemonic())

	for i, role := range inst.Info().Roles {
		builder.WriteByte(' ')

		if role == ROLE_DEST {
			fmt.Fprintf(&builder, "r%d", inst.Values[i])
		} else if inst.Opcode == OP_OUT {
			builder.WriteString(quoteChar(inst.Values[i]))
		} else {
			fmt.Fprintf(&builder, "%d", inst.Values[i])
		}
	}

	return builder.String()
}

func FormatOperand(raw uint16) string {
	if raw >= REGISTER_BASE && raw < REGISTER_LIMIT {
		return fmt.Sprintf("r%d", raw-REGISTER_BASE)
	}

	return fmt.Sprintf("%d", raw)
}

// OutputByte is the byte out writes for a value. Values that do not fit a
// byte are written as '?'.
func OutputByte(value uint16) byte {
	if value > 0xFF {
		return '?'
	}

	return byte(value)
}

func quoteChar(value uint16) string {
	if value < 0x80 {
		return fmt.Sprintf("%q", rune(value))
	}

	return fmt.Sprintf("%d", value)
}

func OpcodeByName(mnemonic string) (uint16, bool) {
	for opcode, info := range opcodes {
		if info.Mnemonic == mnemonic {
			return uint16(opcode), true
		}
	}

	return 0, false
}
