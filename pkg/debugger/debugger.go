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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lassandro/gosyn/pkg/machine"
)

var (
	ErrRunning    = errors.New("machine is running")
	ErrNoSuchItem = errors.New("no such breakpoint")
)

func New(mc *machine.Machine, logger *slog.Logger) *Debugger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Debugger{
		Machine:  mc,
		Mode:     MODE_STOPPED,
		Logger:   logger,
		resumeAt: -1,
	}
}

func (dbg *Debugger) reset() {
	dbg.Mode = MODE_STOPPED
	dbg.resumeAt = -1
}

func (dbg *Debugger) LoadImage(reader io.Reader) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if err := dbg.Machine.LoadBin(reader); err != nil {
		return err
	}

	dbg.reset()
	dbg.Logger.Info("image loaded")
	return nil
}

func (dbg *Debugger) LoadSnapshot(reader io.Reader) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if err := dbg.Machine.LoadState(reader); err != nil {
		return err
	}

	dbg.reset()
	dbg.Logger.Info(
		"snapshot loaded",
		"pc", dbg.Machine.State.Program,
		"stack", len(dbg.Machine.State.Stack),
	)
	return nil
}

// Load accepts either a snapshot or a program image. Snapshots are CBOR
// maps; an image starts with an opcode word whose low byte is never a map
// header.
func (dbg *Debugger) Load(reader io.Reader) error {
	buffered := bufio.NewReader(reader)
	head, err := buffered.Peek(1)

	if err != nil && err != io.EOF {
		return err
	}

	if len(head) == 1 && head[0]&0xE0 == 0xA0 {
		return dbg.LoadSnapshot(buffered)
	}

	return dbg.LoadImage(buffered)
}

func (dbg *Debugger) Save(writer io.Writer) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if err := dbg.Machine.SaveState(writer); err != nil {
		return err
	}

	dbg.Logger.Info("snapshot saved", "pc", dbg.Machine.State.Program)
	return nil
}

func (dbg *Debugger) DumpMemory(writer io.Writer) error {
	return dbg.Machine.DumpMemory(writer)
}

func (dbg *Debugger) addBreakpoint(bp Breakpoint) (int, bool) {
	for i, existing := range dbg.Breakpoints {
		if existing.Type == bp.Type &&
			existing.Addr == bp.Addr &&
			existing.Register == bp.Register {
			return i, false
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, bp)
	dbg.Logger.Debug("breakpoint added", "breakpoint", bp.String())
	return len(dbg.Breakpoints) - 1, true
}

// SetBreakpoint adds an address breakpoint. Adding one that already exists
// returns the existing index and false.
func (dbg *Debugger) SetBreakpoint(addr uint16) (int, bool, error) {
	if int(addr) >= machine.MEMORY_SIZE {
		return 0, false, &machine.OutOfBoundsError{
			Instruction: dbg.Machine.State.Program,
			Target:      uint32(addr),
		}
	}

	i, added := dbg.addBreakpoint(Breakpoint{
		Type: ADDRESS_BREAK, Addr: addr, Enabled: true,
	})

	return i, added, nil
}

func (dbg *Debugger) SetWatch(reg int) (int, bool, error) {
	if reg < 0 || reg >= machine.REGISTER_COUNT {
		return 0, false, fmt.Errorf("%w: register %d", machine.ErrInvalidOperand, reg)
	}

	i, added := dbg.addBreakpoint(Breakpoint{
		Type: REGISTER_WATCH, Register: reg, Enabled: true,
	})

	return i, added, nil
}

func (dbg *Debugger) SetMemoryWatch(addr uint16) (int, bool, error) {
	if int(addr) >= machine.MEMORY_SIZE {
		return 0, false, &machine.OutOfBoundsError{
			Instruction: dbg.Machine.State.Program,
			Target:      uint32(addr),
		}
	}

	i, added := dbg.addBreakpoint(Breakpoint{
		Type: MEMORY_WATCH, Addr: addr, Enabled: true,
	})

	return i, added, nil
}

func (dbg *Debugger) RemoveBreakpoint(i int) error {
	if i < 0 || i >= len(dbg.Breakpoints) {
		return fmt.Errorf("%w: #%d", ErrNoSuchItem, i)
	}

	dbg.Breakpoints = append(dbg.Breakpoints[:i], dbg.Breakpoints[i+1:]...)
	return nil
}

func (dbg *Debugger) EnableBreakpoint(i int, enabled bool) error {
	if i < 0 || i >= len(dbg.Breakpoints) {
		return fmt.Errorf("%w: #%d", ErrNoSuchItem, i)
	}

	dbg.Breakpoints[i].Enabled = enabled
	return nil
}

func (dbg *Debugger) ClearBreakpoints() {
	dbg.Breakpoints = nil
}

func (dbg *Debugger) WriteRegister(reg int, value uint16) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if reg < 0 || reg >= machine.REGISTER_COUNT {
		return fmt.Errorf("%w: register %d", machine.ErrInvalidOperand, reg)
	}

	if value > machine.WORD_MASK {
		return fmt.Errorf("%w: value %d", machine.ErrInvalidOperand, value)
	}

	dbg.Machine.State.Registers[reg] = value
	dbg.Logger.Debug("register written", "register", reg, "value", value)
	return nil
}

func (dbg *Debugger) WriteMemory(addr uint16, value uint16) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if value > machine.WORD_MASK {
		return fmt.Errorf("%w: value %d", machine.ErrInvalidOperand, value)
	}

	if err := dbg.Machine.Write(addr, value); err != nil {
		return err
	}

	dbg.Logger.Debug("memory written", "addr", addr, "value", value)
	return nil
}

// Jump moves the program counter. Any pending breakpoint step-over is
// dropped, so a breakpoint at the new address fires.
func (dbg *Debugger) Jump(addr uint16) error {
	if dbg.Mode == MODE_RUNNING {
		return ErrRunning
	}

	if int(addr) >= machine.MEMORY_SIZE {
		return &machine.OutOfBoundsError{
			Instruction: dbg.Machine.State.Program,
			Target:      uint32(addr),
		}
	}

	dbg.Machine.State.Program = addr
	dbg.resumeAt = -1
	return nil
}

func (dbg *Debugger) ReadMemory(addr uint16, count int) ([]uint16, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: count %d", machine.ErrInvalidOperand, count)
	}

	if int(addr)+count > machine.MEMORY_SIZE {
		return nil, &machine.OutOfBoundsError{
			Instruction: dbg.Machine.State.Program,
			Target:      uint32(addr) + uint32(count),
		}
	}

	result := make([]uint16, count)
	copy(result, dbg.Machine.State.Memory[addr:])
	return result, nil
}

func (dbg *Debugger) Registers() [machine.REGISTER_COUNT]uint16 {
	return dbg.Machine.State.Registers
}

// Stack returns a copy of the stack, top first.
func (dbg *Debugger) Stack() []uint16 {
	stack := dbg.Machine.State.Stack
	result := make([]uint16, len(stack))

	for i, value := range stack {
		result[len(stack)-1-i] = value
	}

	return result
}

func (dbg *Debugger) Peek() (machine.Instruction, error) {
	return dbg.Machine.Decode(dbg.Machine.State.Program)
}

func (dbg *Debugger) SetTraceOutput(writer io.Writer) {
	dbg.trace = writer
}

func (dbg *Debugger) ToggleTrace() bool {
	dbg.tracing = !dbg.tracing
	return dbg.tracing
}

func (dbg *Debugger) Tracing() bool {
	return dbg.tracing
}

func (dbg *Debugger) traceInstruction(inst machine.Instruction) {
	if dbg.trace == nil {
		return
	}

	fmt.Fprintln(dbg.trace, dbg.FormatInstruction(inst))
}

// FormatInstruction renders "addr: encoded | resolved", prefixed with a
// label when the symbol table has one for the address.
func (dbg *Debugger) FormatInstruction(inst machine.Instruction) string {
	var buf bytes.Buffer

	if label := dbg.Label(inst.Addr); label != "" {
		fmt.Fprintf(&buf, "%s:\n", label)
	}

	fmt.Fprintf(&buf, "%#04x: %-24s | %s", inst.Addr, inst.String(), inst.Resolved())
	return buf.String()
}

func (dbg *Debugger) Label(addr uint16) string {
	if dbg.SymTable == nil {
		return ""
	}

	return dbg.SymTable.Labels[addr]
}

// Continue runs until a breakpoint, watch, halt, fault, stall or
// cancellation of ctx.
func (dbg *Debugger) Continue(ctx context.Context) Event {
	return dbg.run(ctx, 0)
}

// Step executes at most count instructions, stopping early on any of the
// conditions Continue stops on.
func (dbg *Debugger) Step(ctx context.Context, count uint64) Event {
	if count == 0 {
		count = 1
	}

	return dbg.run(ctx, count)
}

func (dbg *Debugger) addressBreak(addr uint16) (int, bool) {
	for i, bp := range dbg.Breakpoints {
		if bp.Enabled && bp.Type == ADDRESS_BREAK && bp.Addr == addr {
			return i, true
		}
	}

	return 0, false
}

func (dbg *Debugger) watchValue(bp Breakpoint) uint16 {
	if bp.Type == REGISTER_WATCH {
		return dbg.Machine.State.Registers[bp.Register]
	}

	return dbg.Machine.State.Memory[bp.Addr]
}

func (dbg *Debugger) sampleWatches() {
	if cap(dbg.watchValues) < len(dbg.Breakpoints) {
		dbg.watchValues = make([]uint16, len(dbg.Breakpoints))
	}

	dbg.watchValues = dbg.watchValues[:len(dbg.Breakpoints)]

	for i, bp := range dbg.Breakpoints {
		if bp.Type != ADDRESS_BREAK {
			dbg.watchValues[i] = dbg.watchValue(bp)
		}
	}
}

func (dbg *Debugger) changedWatch() (int, bool) {
	for i, bp := range dbg.Breakpoints {
		if !bp.Enabled || bp.Type == ADDRESS_BREAK {
			continue
		}

		if dbg.watchValue(bp) != dbg.watchValues[i] {
			return i, true
		}
	}

	return 0, false
}

func (dbg *Debugger) stop(ev Event, mode Mode) Event {
	dbg.Mode = mode

	if ev.Err != nil {
		dbg.Logger.Warn(
			"execution stopped",
			"reason", ev.Reason.String(),
			"addr", ev.Addr,
			"error", ev.Err,
		)
	} else {
		dbg.Logger.Debug(
			"execution stopped",
			"reason", ev.Reason.String(),
			"addr", ev.Addr,
			"steps", ev.Steps,
		)
	}

	return ev
}

func (dbg *Debugger) run(ctx context.Context, limit uint64) Event {
	state := &dbg.Machine.State

	if state.Halted {
		return dbg.stop(Event{
			Reason: STOP_HALTED,
			Addr:   state.Program,
			Err:    machine.ErrHalted,
		}, MODE_HALTED)
	}

	dbg.Mode = MODE_RUNNING

	skip := dbg.resumeAt
	dbg.resumeAt = -1

	var steps uint64

	// A stop before the stepped-over instruction completes is still the
	// same visit, so the step-over carries to the next run.
	start := state.Program
	holdSkip := func() {
		if steps == 0 && int(start) == skip {
			dbg.resumeAt = skip
		}
	}

	for {
		addr := state.Program

		if err := ctx.Err(); err != nil {
			holdSkip()
			return dbg.stop(Event{
				Reason: STOP_CANCELLED, Addr: addr, Steps: steps, Err: err,
			}, MODE_STOPPED)
		}

		if limit > 0 && steps >= limit {
			return dbg.stop(Event{
				Reason: STOP_STEP, Addr: addr, Steps: steps,
			}, MODE_STOPPED)
		}

		if !(steps == 0 && int(addr) == skip) {
			if i, ok := dbg.addressBreak(addr); ok {
				dbg.resumeAt = int(addr)

				return dbg.stop(Event{
					Reason:     STOP_BREAKPOINT,
					Addr:       addr,
					Index:      i,
					Breakpoint: dbg.Breakpoints[i],
					Steps:      steps,
				}, MODE_STOPPED)
			}
		}

		inst, err := dbg.Machine.Decode(addr)

		if err != nil {
			holdSkip()
			return dbg.stop(Event{
				Reason: STOP_FAULT, Addr: addr, Steps: steps, Err: err,
			}, MODE_STOPPED)
		}

		if dbg.tracing {
			dbg.traceInstruction(inst)
		}

		dbg.sampleWatches()

		if err := dbg.Machine.Execute(inst); err != nil {
			reason := STOP_FAULT

			if errors.Is(err, io.EOF) {
				reason = STOP_STALLED
			}

			holdSkip()
			return dbg.stop(Event{
				Reason: reason, Addr: addr, Steps: steps, Err: err,
			}, MODE_STOPPED)
		}

		steps++

		if i, ok := dbg.changedWatch(); ok {
			bp := dbg.Breakpoints[i]

			return dbg.stop(Event{
				Reason:     STOP_WATCH,
				Addr:       state.Program,
				Index:      i,
				Breakpoint: bp,
				Old:        dbg.watchValues[i],
				New:        dbg.watchValue(bp),
				Steps:      steps,
			}, MODE_STOPPED)
		}

		if state.Halted {
			return dbg.stop(Event{
				Reason: STOP_HALTED, Addr: state.Program, Steps: steps,
			}, MODE_HALTED)
		}
	}
}
