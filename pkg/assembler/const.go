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

package assembler

const (
	DIRECTIVE_INVALID DirectiveType = iota
	DIRECTIVE_ORIG
	DIRECTIVE_WORD
	DIRECTIVE_BLKW
	DIRECTIVE_STRING
	DIRECTIVE_PRINT
)

var directives = map[string]DirectiveType{
	".orig":   DIRECTIVE_ORIG,
	".word":   DIRECTIVE_WORD,
	".blkw":   DIRECTIVE_BLKW,
	".string": DIRECTIVE_STRING,
	".print":  DIRECTIVE_PRINT,
}

const (
	OPERAND_NONE OperandType = iota
	OPERAND_REGISTER
	OPERAND_LITERAL
	OPERAND_CHAR
	OPERAND_STRING
	OPERAND_LABEL
)

const (
	// Largest value an instruction operand may carry as a literal
	LITERAL_VALUE uint32 = 0x7FFF

	// Largest raw word a .word directive may emit
	LITERAL_WORD uint32 = 0xFFFF
)
