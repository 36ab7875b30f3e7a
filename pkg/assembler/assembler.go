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

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"

	"github.com/lassandro/gosyn/pkg/encoding"
	"github.com/lassandro/gosyn/pkg/machine"
)

type fixup struct {
	Addr     uint16
	Label    string
	Position Cursor
}

type assembly struct {
	memory   []uint16
	size     int
	addr     uint32
	overflow bool
	labels   map[string]uint16
	fixups   []fixup
	symtable *SymTable
	errs     []error
}

func isRegisterName(ident string) bool {
	if len(ident) < 2 || (ident[0] != 'r' && ident[0] != 'R') {
		return false
	}

	for _, char := range ident[1:] {
		if char < '0' || char > '9' {
			return false
		}
	}

	return true
}

func parseLiteral(operand *sourceOperand, limit uint32) (uint16, error) {
	text := *operand.Number
	base := 10

	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		text = text[2:]
		base = 16
	}

	result, err := strconv.ParseUint(text, base, 64)

	if errors.Is(err, strconv.ErrRange) || (err == nil && result > uint64(limit)) {
		return 0, &OversizedLiteralError{operand.cursor(), limit, result}
	} else if err != nil {
		return 0, &InvalidLiteralError{operand.cursor()}
	}

	return uint16(result), nil
}

func parseChar(operand *sourceOperand) (uint16, error) {
	value, err := strconv.Unquote(*operand.Char)

	if err != nil || utf8.RuneCountInString(value) != 1 {
		return 0, &InvalidLiteralError{operand.cursor()}
	}

	char, _ := utf8.DecodeRuneInString(value)

	if uint32(char) > LITERAL_VALUE {
		return 0, &OversizedLiteralError{
			operand.cursor(), LITERAL_VALUE, uint64(char),
		}
	}

	return uint16(char), nil
}

func parseString(operand *sourceOperand) ([]uint16, error) {
	value, err := strconv.Unquote(*operand.String)

	if err != nil {
		return nil, &InvalidStringError{operand.cursor()}
	}

	result := make([]uint16, 0, len(value))

	for _, char := range value {
		if char == utf8.RuneError || uint32(char) > LITERAL_VALUE {
			return nil, &InvalidStringError{operand.cursor()}
		}

		result = append(result, uint16(char))
	}

	return result, nil
}

func parseRegister(operand *sourceOperand) (uint16, error) {
	reg, err := encoding.ParseRegister(*operand.Ident)

	if err != nil {
		return 0, &InvalidRegisterError{operand.cursor()}
	}

	return machine.REGISTER_BASE + uint16(reg), nil
}

func (asm *assembly) fail(err error) {
	asm.errs = append(asm.errs, err)
}

func (asm *assembly) emit(word uint16, pos Cursor) {
	if asm.addr >= machine.MEMORY_SIZE {
		if !asm.overflow {
			asm.fail(&OversizedBinaryError{pos})
			asm.overflow = true
		}
		return
	}

	asm.memory[asm.addr] = word
	asm.addr++

	if int(asm.addr) > asm.size {
		asm.size = int(asm.addr)
	}
}

// Emits the operand as a word, deferring label references until every label
// has been declared. Registers emit their reference word.
func (asm *assembly) emitOperand(operand *sourceOperand, limit uint32) {
	var word uint16
	var err error

	switch {
	case operand.Number != nil:
		word, err = parseLiteral(operand, limit)
	case operand.Char != nil:
		word, err = parseChar(operand)
	case operand.Ident != nil && isRegisterName(*operand.Ident):
		word, err = parseRegister(operand)
	case operand.Ident != nil:
		if asm.addr < machine.MEMORY_SIZE {
			asm.fixups = append(asm.fixups, fixup{
				uint16(asm.addr), *operand.Ident, operand.cursor(),
			})
		}
	default:
		err = &InvalidOperandError{
			operand.cursor(),
			[]OperandType{
				OPERAND_REGISTER, OPERAND_LITERAL, OPERAND_CHAR, OPERAND_LABEL,
			},
			OPERAND_STRING,
		}
	}

	if err != nil {
		asm.fail(err)
	}

	asm.emit(word, operand.cursor())
}

func (asm *assembly) declareLabel(label *sourceLabel) {
	name := strings.TrimSuffix(label.Name, ":")
	pos := cursorAt(label.Pos, len(name))

	if isRegisterName(name) {
		asm.fail(&ReservedLabelError{pos, name})
		return
	}

	if _, exists := asm.labels[name]; exists {
		asm.fail(&RedeclaredLabelError{pos, name})
		return
	}

	if asm.addr >= machine.MEMORY_SIZE {
		asm.fail(&OversizedBinaryError{pos})
		return
	}

	asm.labels[name] = uint16(asm.addr)

	if asm.symtable != nil {
		asm.symtable.Labels[uint16(asm.addr)] = name
	}
}

func (asm *assembly) assembleInstruction(inst *sourceInstruction) {
	pos := cursorAt(inst.Pos, len(inst.Mnemonic))
	opcode, exists := machine.OpcodeByName(strings.ToLower(inst.Mnemonic))

	if !exists {
		asm.fail(&UnknownIdentifierError{pos, inst.Mnemonic})
		return
	}

	info, _ := machine.LookupOpcode(opcode)

	if len(inst.Operands) != len(info.Roles) {
		asm.fail(&InvalidNumArgumentsError{
			pos, len(info.Roles), len(inst.Operands),
		})
		return
	}

	asm.emit(opcode, pos)

	for i, operand := range inst.Operands {
		if info.Roles[i] != machine.ROLE_DEST {
			asm.emitOperand(operand, LITERAL_VALUE)
			continue
		}

		// Destinations only ever name a register
		if operand.Ident == nil || !isRegisterName(*operand.Ident) {
			asm.fail(&InvalidOperandError{
				operand.cursor(),
				[]OperandType{OPERAND_REGISTER},
				operandType(operand),
			})
			asm.emit(0, operand.cursor())
			continue
		}

		asm.emitOperand(operand, LITERAL_VALUE)
	}
}

func (asm *assembly) assembleDirective(directive *sourceDirective) {
	pos := cursorAt(directive.Pos, len(directive.Name))
	kind := directives[strings.ToLower(directive.Name)]

	if kind == DIRECTIVE_INVALID {
		asm.fail(&UnknownIdentifierError{pos, directive.Name})
		return
	}

	switch kind {
	case DIRECTIVE_ORIG, DIRECTIVE_BLKW:
		if len(directive.Operands) != 1 {
			asm.fail(&InvalidNumArgumentsError{pos, 1, len(directive.Operands)})
			return
		}

		operand := directive.Operands[0]

		if operand.Number == nil {
			asm.fail(&InvalidOperandError{
				operand.cursor(),
				[]OperandType{OPERAND_LITERAL},
				operandType(operand),
			})
			return
		}

		value, err := parseLiteral(operand, LITERAL_VALUE)

		if err != nil {
			asm.fail(err)
			return
		}

		if kind == DIRECTIVE_ORIG {
			asm.addr = uint32(value)
			return
		}

		for i := uint16(0); i < value; i++ {
			asm.emit(0, pos)
		}

	case DIRECTIVE_WORD:
		if len(directive.Operands) == 0 {
			asm.fail(&InvalidNumArgumentsError{pos, 1, 0})
			return
		}

		for _, operand := range directive.Operands {
			asm.emitOperand(operand, LITERAL_WORD)
		}

	case DIRECTIVE_STRING, DIRECTIVE_PRINT:
		if len(directive.Operands) != 1 {
			asm.fail(&InvalidNumArgumentsError{pos, 1, len(directive.Operands)})
			return
		}

		operand := directive.Operands[0]

		if operand.String == nil {
			asm.fail(&InvalidOperandError{
				operand.cursor(),
				[]OperandType{OPERAND_STRING},
				operandType(operand),
			})
			return
		}

		chars, err := parseString(operand)

		if err != nil {
			asm.fail(err)
			return
		}

		for _, char := range chars {
			// .print expands to one out instruction per character
			if kind == DIRECTIVE_PRINT {
				asm.emit(machine.OP_OUT, pos)
			}
			asm.emit(char, pos)
		}
	}
}

func operandType(operand *sourceOperand) OperandType {
	switch {
	case operand.Number != nil:
		return OPERAND_LITERAL
	case operand.Char != nil:
		return OPERAND_CHAR
	case operand.String != nil:
		return OPERAND_STRING
	case operand.Ident != nil && isRegisterName(*operand.Ident):
		return OPERAND_REGISTER
	case operand.Ident != nil:
		return OPERAND_LABEL
	default:
		return OPERAND_NONE
	}
}

// Assembles source text into a memory image. The image is sized to the
// highest address written. When symtable is non-nil it receives the label
// and source line of every emitted address.
func AssembleSource(input io.Reader, symtable *SymTable) (result []uint16, errs []error) {
	source, err := io.ReadAll(input)

	if err != nil {
		return nil, []error{err}
	}

	if len(source) == 0 || source[len(source)-1] != '\n' {
		source = append(source, '\n')
	}

	file, err := sourceParser.ParseBytes("", source)

	if err != nil {
		var perr participle.Error

		if errors.As(err, &perr) {
			return nil, []error{
				&SyntaxError{cursorAt(perr.Position(), 1), perr.Message()},
			}
		}

		return nil, []error{err}
	}

	asm := &assembly{
		memory:   make([]uint16, machine.MEMORY_SIZE),
		labels:   make(map[string]uint16),
		symtable: symtable,
	}

	for _, line := range file.Lines {
		statement := line.Statement

		// .orig moves the labels on its own line along with it
		if statement != nil && statement.Directive != nil &&
			strings.EqualFold(statement.Directive.Name, ".orig") {
			asm.assembleDirective(statement.Directive)
			statement = nil
		}

		for _, label := range line.Labels {
			asm.declareLabel(label)
		}

		if statement == nil {
			continue
		}

		if symtable != nil && asm.addr < machine.MEMORY_SIZE {
			symtable.Symbols[uint16(asm.addr)] = cursorAt(line.Pos, 1).LineByte
		}

		if statement.Directive != nil {
			asm.assembleDirective(statement.Directive)
		} else {
			asm.assembleInstruction(statement.Instruction)
		}
	}

	for _, fix := range asm.fixups {
		addr, exists := asm.labels[fix.Label]

		if !exists {
			asm.fail(&UnknownLabelError{fix.Position, fix.Label})
			continue
		}

		asm.memory[fix.Addr] = addr
	}

	if len(asm.errs) > 0 {
		return nil, asm.errs
	}

	return asm.memory[:asm.size], nil
}
