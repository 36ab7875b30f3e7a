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

const (
	WORD_MODULUS   uint32 = 1 << 15
	WORD_MASK      uint16 = 0x7FFF
	MEMORY_SIZE           = 1 << 15
	REGISTER_COUNT        = 8
	REGISTER_BASE  uint16 = 32768
	REGISTER_LIMIT uint16 = REGISTER_BASE + REGISTER_COUNT
)

const (
	OP_HALT uint16 = 0
	OP_SET  uint16 = 1
	OP_PUSH uint16 = 2
	OP_POP  uint16 = 3
	OP_EQ   uint16 = 4
	OP_GT   uint16 = 5
	OP_JMP  uint16 = 6
	OP_JT   uint16 = 7
	OP_JF   uint16 = 8
	OP_ADD  uint16 = 9
	OP_MULT uint16 = 10
	OP_MOD  uint16 = 11
	OP_AND  uint16 = 12
	OP_OR   uint16 = 13
	OP_NOT  uint16 = 14
	OP_RMEM uint16 = 15
	OP_WMEM uint16 = 16
	OP_CALL uint16 = 17
	OP_RET  uint16 = 18
	OP_OUT  uint16 = 19
	OP_IN   uint16 = 20
	OP_NOOP uint16 = 21
)

// Operand roles. A destination is a raw register reference that is never
// resolved; a value is resolved against the register file at decode time.
const (
	ROLE_VALUE OperandRole = iota
	ROLE_DEST
)

var opcodes = [...]OpcodeInfo{
	OP_HALT: {"halt", nil},
	OP_SET:  {"set", []OperandRole{ROLE_DEST, ROLE_VALUE}},
	OP_PUSH: {"push", []OperandRole{ROLE_VALUE}},
	OP_POP:  {"pop", []OperandRole{ROLE_DEST}},
	OP_EQ:   {"eq", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_GT:   {"gt", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_JMP:  {"jmp", []OperandRole{ROLE_VALUE}},
	OP_JT:   {"jt", []OperandRole{ROLE_VALUE, ROLE_VALUE}},
	OP_JF:   {"jf", []OperandRole{ROLE_VALUE, ROLE_VALUE}},
	OP_ADD:  {"add", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_MULT: {"mult", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_MOD:  {"mod", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_AND:  {"and", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_OR:   {"or", []OperandRole{ROLE_DEST, ROLE_VALUE, ROLE_VALUE}},
	OP_NOT:  {"not", []OperandRole{ROLE_DEST, ROLE_VALUE}},
	OP_RMEM: {"rmem", []OperandRole{ROLE_DEST, ROLE_VALUE}},
	OP_WMEM: {"wmem", []OperandRole{ROLE_VALUE, ROLE_VALUE}},
	OP_CALL: {"call", []OperandRole{ROLE_VALUE}},
	OP_RET:  {"ret", nil},
	OP_OUT:  {"out", []OperandRole{ROLE_VALUE}},
	OP_IN:   {"in", []OperandRole{ROLE_DEST}},
	OP_NOOP: {"noop", nil},
}
