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
	"io"
	"log/slog"

	"github.com/lassandro/gosyn/pkg/assembler"
	"github.com/lassandro/gosyn/pkg/machine"
)

type Mode uint

const (
	MODE_STOPPED Mode = iota
	MODE_RUNNING
	MODE_HALTED
)

func (mode Mode) String() string {
	switch mode {
	case MODE_STOPPED:
		return "stopped"
	case MODE_RUNNING:
		return "running"
	case MODE_HALTED:
		return "halted"
	}

	return "<invalid>"
}

type BreakpointType uint

const (
	ADDRESS_BREAK BreakpointType = iota
	REGISTER_WATCH
	MEMORY_WATCH
)

// Breakpoint is either an address break, checked before the instruction
// at Addr executes, or a watch on a register or memory word, checked after
// every instruction for a change in value.
type Breakpoint struct {
	Type     BreakpointType
	Addr     uint16
	Register int
	Enabled  bool
}

func (bp Breakpoint) String() string {
	var result string

	switch bp.Type {
	case ADDRESS_BREAK:
		result = fmt.Sprintf("@%#04x", bp.Addr)
	case REGISTER_WATCH:
		result = fmt.Sprintf("watch r%d", bp.Register)
	case MEMORY_WATCH:
		result = fmt.Sprintf("watch @%#04x", bp.Addr)
	}

	if !bp.Enabled {
		result += " (disabled)"
	}

	return result
}

type StopReason uint

const (
	STOP_BREAKPOINT StopReason = iota
	STOP_WATCH
	STOP_STEP
	STOP_HALTED
	STOP_FAULT
	STOP_STALLED
	STOP_CANCELLED
)

func (reason StopReason) String() string {
	switch reason {
	case STOP_BREAKPOINT:
		return "breakpoint"
	case STOP_WATCH:
		return "watch"
	case STOP_STEP:
		return "step"
	case STOP_HALTED:
		return "halted"
	case STOP_FAULT:
		return "fault"
	case STOP_STALLED:
		return "stalled"
	case STOP_CANCELLED:
		return "cancelled"
	}

	return "<invalid>"
}

// Event describes why a Continue or Step returned. Addr is the program
// counter at the stop, or the failing instruction for faults and stalls.
type Event struct {
	Reason     StopReason
	Addr       uint16
	Index      int
	Breakpoint Breakpoint
	Old        uint16
	New        uint16
	Steps      uint64
	Err        error
}

func (ev Event) String() string {
	switch ev.Reason {
	case STOP_BREAKPOINT:
		return fmt.Sprintf("breakpoint #%d %s", ev.Index, ev.Breakpoint)
	case STOP_WATCH:
		return fmt.Sprintf(
			"%s changed %d -> %d (pc %#04x)",
			ev.Breakpoint, ev.Old, ev.New, ev.Addr,
		)
	case STOP_STEP:
		return fmt.Sprintf("stepped %d (pc %#04x)", ev.Steps, ev.Addr)
	case STOP_HALTED:
		return fmt.Sprintf("machine halted (pc %#04x)", ev.Addr)
	case STOP_FAULT:
		return fmt.Sprintf("fault: %v", ev.Err)
	case STOP_STALLED:
		return fmt.Sprintf("waiting for input at %#04x", ev.Addr)
	case STOP_CANCELLED:
		return fmt.Sprintf("interrupted (pc %#04x)", ev.Addr)
	}

	return "<invalid>"
}

type Debugger struct {
	Machine     *machine.Machine
	Mode        Mode
	Breakpoints []Breakpoint
	SymTable    *assembler.SymTable
	Logger      *slog.Logger

	trace   io.Writer
	tracing bool

	// Address of the breakpoint the last run stopped on, or -1. The next
	// run steps over it once.
	resumeAt int

	watchValues []uint16
}
