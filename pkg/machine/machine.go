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
	"encoding/binary"
	"io"
)

func (mc *MachineState) Reset() {
	for i := range mc.Registers {
		mc.Registers[i] = 0
	}

	for i := range mc.Memory {
		mc.Memory[i] = 0
	}

	mc.Program = 0
	mc.Stack = nil
	mc.Halted = false
}

// LoadBin replaces the machine state with a program image of little endian
// words. The image is validated in full before the state is touched.
func (mc *Machine) LoadBin(reader io.Reader) error {
	data, err := io.ReadAll(reader)

	if err != nil {
		return err
	}

	if len(data)%2 != 0 {
		return &InvalidImageError{len(data), "size is not a whole number of words"}
	}

	if len(data)/2 > MEMORY_SIZE {
		return &InvalidImageError{len(data), "image exceeds memory capacity"}
	}

	mc.State.Reset()

	for i := 0; i < len(data); i += 2 {
		mc.State.Memory[i/2] = binary.LittleEndian.Uint16(data[i:])
	}

	return nil
}

// LoadWords is LoadBin for an image that is already decoded.
func (mc *Machine) LoadWords(words []uint16) error {
	if len(words) > MEMORY_SIZE {
		return &InvalidImageError{len(words) * 2, "image exceeds memory capacity"}
	}

	mc.State.Reset()
	copy(mc.State.Memory[:], words)

	return nil
}

// DumpMemory writes all of memory as little endian words, the same layout
// LoadBin accepts.
func (mc *Machine) DumpMemory(writer io.Writer) error {
	return binary.Write(writer, binary.LittleEndian, mc.State.Memory[:])
}

func (mc *Machine) Read(addr uint16) (uint16, error) {
	if int(addr) >= MEMORY_SIZE {
		return 0, &OutOfBoundsError{mc.State.Program, uint32(addr)}
	}

	return mc.State.Memory[addr], nil
}

func (mc *Machine) Write(addr uint16, value uint16) error {
	if int(addr) >= MEMORY_SIZE {
		return &OutOfBoundsError{mc.State.Program, uint32(addr)}
	}

	mc.State.Memory[addr] = value
	return nil
}

// Resolve converts a raw operand into a word: literals are returned as is,
// register references yield the register's current content.
func (mc *Machine) Resolve(raw uint16) (uint16, error) {
	return mc.resolve(mc.State.Program, raw)
}

func (mc *Machine) resolve(addr uint16, raw uint16) (uint16, error) {
	if raw < REGISTER_BASE {
		return raw, nil
	}

	if raw < REGISTER_LIMIT {
		return mc.State.Registers[raw-REGISTER_BASE], nil
	}

	return 0, &InvalidOperandError{addr, raw}
}

func (mc *Machine) fetch(addr uint16, at uint32) (uint16, error) {
	if at >= MEMORY_SIZE {
		return 0, &OutOfBoundsError{addr, at}
	}

	return mc.State.Memory[at], nil
}

// Decode reads and validates the instruction at addr without modifying
// any state.
func (mc *Machine) Decode(addr uint16) (Instruction, error) {
	inst := Instruction{Addr: addr}

	opcode, err := mc.fetch(addr, uint32(addr))

	if err != nil {
		return inst, err
	}

	info, ok := LookupOpcode(opcode)

	if !ok {
		return inst, &InvalidOpcodeError{addr, opcode}
	}

	inst.Opcode = opcode
	inst.Count = len(info.Roles)

	for i, role := range info.Roles {
		raw, err := mc.fetch(addr, uint32(addr)+uint32(i)+1)

		if err != nil {
			return inst, err
		}

		inst.Raw[i] = raw

		switch role {
		case ROLE_DEST:
			if raw < REGISTER_BASE || raw >= REGISTER_LIMIT {
				return inst, &InvalidOperandError{addr, raw}
			}

			inst.Values[i] = raw - REGISTER_BASE

		case ROLE_VALUE:
			value, err := mc.resolve(addr, raw)

			if err != nil {
				return inst, err
			}

			inst.Values[i] = value
		}
	}

	return inst, nil
}

func boolWord(value bool) uint16 {
	if value {
		return 1
	}

	return 0
}

// Execute applies a decoded instruction. On error nothing has been
// modified, the program counter included.
func (mc *Machine) Execute(inst Instruction) error {
	state := &mc.State
	next := inst.Addr + inst.Size()
	a, b, c := inst.Values[0], inst.Values[1], inst.Values[2]

	switch inst.Opcode {
	case OP_HALT:
		state.Halted = true

	case OP_SET:
		state.Registers[a] = b

	case OP_PUSH:
		state.Stack = append(state.Stack, a)

	case OP_POP:
		top := len(state.Stack) - 1

		if top < 0 {
			return &StackUnderflowError{inst.Addr, inst.Opcode}
		}

		state.Registers[a] = state.Stack[top]
		state.Stack = state.Stack[:top]

	case OP_EQ:
		state.Registers[a] = boolWord(b == c)

	case OP_GT:
		state.Registers[a] = boolWord(b > c)

	case OP_JMP:
		next = a

	case OP_JT:
		if a != 0 {
			next = b
		}

	case OP_JF:
		if a == 0 {
			next = b
		}

	case OP_ADD:
		state.Registers[a] = uint16((uint32(b) + uint32(c)) % WORD_MODULUS)

	case OP_MULT:
		state.Registers[a] = uint16((uint32(b) * uint32(c)) % WORD_MODULUS)

	case OP_MOD:
		if c == 0 {
			return &DivisionByZeroError{inst.Addr}
		}

		state.Registers[a] = b % c

	case OP_AND:
		state.Registers[a] = (b & c) & WORD_MASK

	case OP_OR:
		state.Registers[a] = (b | c) & WORD_MASK

	case OP_NOT:
		state.Registers[a] = ^b & WORD_MASK

	// Memory words are raw, so the loaded word goes through the same
	// resolution as an operand to keep registers within the word range.
	case OP_RMEM:
		if int(b) >= MEMORY_SIZE {
			return &OutOfBoundsError{inst.Addr, uint32(b)}
		}

		value, err := mc.resolve(inst.Addr, state.Memory[b])

		if err != nil {
			return err
		}

		state.Registers[a] = value

	case OP_WMEM:
		if int(a) >= MEMORY_SIZE {
			return &OutOfBoundsError{inst.Addr, uint32(a)}
		}

		state.Memory[a] = b

	case OP_CALL:
		// The return address must be a word like any other stack entry
		if int(next) >= MEMORY_SIZE {
			return &OutOfBoundsError{inst.Addr, uint32(next)}
		}

		state.Stack = append(state.Stack, next)
		next = a

	case OP_RET:
		top := len(state.Stack) - 1

		if top < 0 {
			return &StackUnderflowError{inst.Addr, inst.Opcode}
		}

		next = state.Stack[top]
		state.Stack = state.Stack[:top]

	case OP_OUT:
		if err := mc.display(OutputByte(a)); err != nil {
			return &DeviceError{inst.Addr, "display", err}
		}

	case OP_IN:
		key, err := mc.keyboard()

		if err != nil {
			return &DeviceError{inst.Addr, "keyboard", err}
		}

		state.Registers[a] = uint16(key) & WORD_MASK

	case OP_NOOP:

	default:
		return &InvalidOpcodeError{inst.Addr, inst.Opcode}
	}

	state.Program = next
	return nil
}

func (mc *Machine) Step() error {
	if mc.State.Halted {
		return ErrHalted
	}

	inst, err := mc.Decode(mc.State.Program)

	if err != nil {
		return err
	}

	return mc.Execute(inst)
}

// Run steps the machine until it halts or faults.
func (mc *Machine) Run() error {
	for !mc.State.Halted {
		if err := mc.Step(); err != nil {
			return err
		}
	}

	return nil
}

func (mc *Machine) keyboard() (byte, error) {
	if mc.Devices == nil || mc.Devices.Keyboard == nil {
		return 0, io.EOF
	}

	return mc.Devices.Keyboard.ReadByte()
}

func (mc *Machine) display(char byte) error {
	if mc.Devices == nil || mc.Devices.Display == nil {
		return nil
	}

	if err := mc.Devices.Display.WriteByte(char); err != nil {
		return err
	}

	if flusher, ok := mc.Devices.Display.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}

	return nil
}
