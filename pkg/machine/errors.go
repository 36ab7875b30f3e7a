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
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds    = errors.New("address out of bounds")
	ErrInvalidOperand = errors.New("invalid operand")
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidImage   = errors.New("invalid program image")
	ErrHalted         = errors.New("machine halted")
)

// Fault is implemented by every error raised while decoding or executing
// an instruction. Addr is the address of the failing instruction.
type Fault interface {
	error
	Addr() uint16
}

type OutOfBoundsError struct {
	Instruction uint16
	Target      uint32
}

func (err *OutOfBoundsError) Addr() uint16 {
	return err.Instruction
}

func (err *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

func (err *OutOfBoundsError) Error() string {
	return fmt.Sprintf(
		"%#04x: Address out of bounds\n\twant:<%#04x\n\thave:%#04x",
		err.Instruction,
		MEMORY_SIZE,
		err.Target,
	)
}

type InvalidOperandError struct {
	Instruction uint16
	Operand     uint16
}

func (err *InvalidOperandError) Addr() uint16 {
	return err.Instruction
}

func (err *InvalidOperandError) Is(target error) bool {
	return target == ErrInvalidOperand
}

func (err *InvalidOperandError) Error() string {
	return fmt.Sprintf(
		"%#04x: Invalid operand %d", err.Instruction, err.Operand,
	)
}

type InvalidOpcodeError struct {
	Instruction uint16
	Opcode      uint16
}

func (err *InvalidOpcodeError) Addr() uint16 {
	return err.Instruction
}

func (err *InvalidOpcodeError) Is(target error) bool {
	return target == ErrInvalidOpcode
}

func (err *InvalidOpcodeError) Error() string {
	return fmt.Sprintf(
		"%#04x: Invalid opcode %d", err.Instruction, err.Opcode,
	)
}

type StackUnderflowError struct {
	Instruction uint16
	Opcode      uint16
}

func (err *StackUnderflowError) Addr() uint16 {
	return err.Instruction
}

func (err *StackUnderflowError) Is(target error) bool {
	return target == ErrStackUnderflow
}

func (err *StackUnderflowError) Error() string {
	return fmt.Sprintf(
		"%#04x: Stack underflow (%s)",
		err.Instruction,
		opcodes[err.Opcode].Mnemonic,
	)
}

type DivisionByZeroError struct {
	Instruction uint16
}

func (err *DivisionByZeroError) Addr() uint16 {
	return err.Instruction
}

func (err *DivisionByZeroError) Is(target error) bool {
	return target == ErrDivisionByZero
}

func (err *DivisionByZeroError) Error() string {
	return fmt.Sprintf("%#04x: Division by zero", err.Instruction)
}

// DeviceError wraps a failure of the keyboard or display device. An
// exhausted keyboard unwraps to io.EOF.
type DeviceError struct {
	Instruction uint16
	Device      string
	Err         error
}

func (err *DeviceError) Addr() uint16 {
	return err.Instruction
}

func (err *DeviceError) Unwrap() error {
	return err.Err
}

func (err *DeviceError) Error() string {
	return fmt.Sprintf(
		"%#04x: %s: %v", err.Instruction, err.Device, err.Err,
	)
}

type InvalidImageError struct {
	Size   int
	Reason string
}

func (err *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage
}

func (err *InvalidImageError) Error() string {
	return fmt.Sprintf("Invalid image (%d bytes): %s", err.Size, err.Reason)
}
