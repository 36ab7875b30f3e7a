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

package debugger

import (
	"fmt"
	"strings"

	"github.com/lassandro/gosyn/pkg/machine"
)

type Line struct {
	Addr  uint16
	Label string
	Text  string
	Data  bool
	Words []uint16
}

// Disassemble decodes count lines starting at addr. Words that do not
// decode are emitted as data, one word per line.
func (dbg *Debugger) Disassemble(addr uint16, count int) []Line {
	if count < 0 {
		count = 0
	}

	lines := make([]Line, 0, count)
	at := int(addr)

	for len(lines) < count && at < machine.MEMORY_SIZE {
		line := Line{Addr: uint16(at), Label: dbg.Label(uint16(at))}
		inst, err := dbg.Machine.Decode(uint16(at))

		if err != nil {
			word := dbg.Machine.State.Memory[at]
			line.Data = true
			line.Text = fmt.Sprintf(".word %d", word)
			line.Words = []uint16{word}
			at++
		} else {
			line.Text = inst.String()
			line.Words = make([]uint16, inst.Size())
			copy(line.Words, dbg.Machine.State.Memory[at:])
			at += int(inst.Size())
		}

		lines = append(lines, line)
	}

	return lines
}

func (line Line) String() string {
	var builder strings.Builder

	if line.Label != "" {
		builder.WriteString(line.Label)
		builder.WriteString(":\n")
	}

	fmt.Fprintf(&builder, "%#04x: %s", line.Addr, line.Text)
	return builder.String()
}

// Strings walks memory as a linear instruction stream and collects the
// characters printed by out instructions with literal operands, one entry
// per output line.
func (dbg *Debugger) Strings() []string {
	var result []string
	var current strings.Builder

	for at := 0; at < machine.MEMORY_SIZE; {
		inst, err := dbg.Machine.Decode(uint16(at))

		if err != nil {
			at++
			continue
		}

		at += int(inst.Size())

		if inst.Opcode != machine.OP_OUT || inst.Raw[0] >= machine.REGISTER_BASE {
			continue
		}

		if inst.Raw[0] == '\n' {
			result = append(result, current.String())
			current.Reset()
		} else {
			current.WriteByte(machine.OutputByte(inst.Raw[0]))
		}
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
