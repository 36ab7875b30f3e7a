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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/lassandro/gosyn/pkg/debugger"
	"github.com/lassandro/gosyn/pkg/encoding"
	"github.com/lassandro/gosyn/pkg/machine"
)

type repl struct {
	dbg      *debugger.Debugger
	stdin    *bufio.Reader
	keyboard *inputQueue
	image    string
	lastcmd  []string
	source   []byte
	trace    io.Closer
}

func newREPL(dbg *debugger.Debugger, stdin *bufio.Reader, keyboard *inputQueue, image string) *repl {
	return &repl{dbg: dbg, stdin: stdin, keyboard: keyboard, image: image}
}

// Resolves an address argument in any of the encoding forms, or a label.
func (r *repl) location(arg string) (uint16, error) {
	if addr, err := encoding.ParseAddress(arg); err == nil {
		return addr, nil
	}

	if r.dbg.SymTable == nil {
		return 0, fmt.Errorf("Invalid address '%s'", arg)
	}

	if addr, ok := r.dbg.SymTable.Lookup(arg); ok {
		return addr, nil
	}

	return 0, fmt.Errorf("Unable to find '%s'", arg)
}

func (r *repl) printCurrent() {
	inst, err := r.dbg.Peek()

	if err != nil {
		log.Println(styleError.Render(err.Error()))
		return
	}

	fmt.Println(styleCursor.Render("=>"), r.dbg.FormatInstruction(inst))
}

func (r *repl) report(ev debugger.Event) {
	fmt.Println()

	switch ev.Reason {
	case debugger.STOP_FAULT:
		log.Println(styleError.Render(ev.String()))
	case debugger.STOP_STALLED:
		fmt.Println(styleStop.Render(ev.String()))
		fmt.Println("Queue more with 'input <text>' and continue")
	default:
		fmt.Println(styleStop.Render(ev.String()))
	}

	if ev.Reason != debugger.STOP_HALTED {
		r.printCurrent()
	}
}

func (r *repl) execute(run func(context.Context) debugger.Event) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r.report(run(ctx))
}

func (r *repl) debugBreak(args []string) {
	const usage = "break [add|list|remove|enable|disable|clear] [@addr|r#|label]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [@addr|r#|label]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		r.addBreak(args[0])

	case "l", "ls", "list":
		const usage = "break list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		r.listBreaks(func(debugger.Breakpoint) bool { return true })

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		i, ok := r.breakIndex(args, usage)

		if !ok {
			return
		}

		if err := r.dbg.RemoveBreakpoint(i); err != nil {
			log.Println(err)
			return
		}

		fmt.Printf("Breakpoint removed [%d]\n", i)

	case "e", "enable", "d", "disable":
		const usage = "break [enable|disable] [#]"

		i, ok := r.breakIndex(args, usage)

		if !ok {
			return
		}

		enabled := cmd == "e" || cmd == "enable"

		if err := r.dbg.EnableBreakpoint(i, enabled); err != nil {
			log.Println(err)
			return
		}

		fmt.Printf("#%d: %s\n", i, r.dbg.Breakpoints[i])

	case "clear":
		r.dbg.ClearBreakpoints()
		fmt.Println("Breakpoints reset")

	default:
		if len(args) != 0 {
			log.Println(usage)
			return
		}

		// break @addr is shorthand for break add @addr
		r.addBreak(cmd)
	}
}

func (r *repl) breakIndex(args []string, usage string) (int, bool) {
	if len(args) != 1 {
		log.Println(usage)
		return 0, false
	}

	i, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)

	if err != nil {
		log.Println(err)
		return 0, false
	}

	return int(i), true
}

func (r *repl) addBreak(arg string) {
	var i int
	var added bool
	var err error

	if target, terr := encoding.ParseTarget(arg); terr == nil &&
		target.Type == encoding.TARGET_REGISTER {
		i, added, err = r.dbg.SetWatch(int(target.Value))
	} else {
		var addr uint16

		if addr, err = r.location(arg); err == nil {
			i, added, err = r.dbg.SetBreakpoint(addr)
		}
	}

	if err != nil {
		log.Println(err)
		return
	}

	if added {
		fmt.Printf("Breakpoint added #%d [%s]\n", i, r.dbg.Breakpoints[i])
	} else {
		fmt.Printf("Breakpoint exists #%d [%s]\n", i, r.dbg.Breakpoints[i])
	}
}

func (r *repl) listBreaks(filter func(debugger.Breakpoint) bool) {
	var fmtstring string
	{
		digits := math.Floor(math.Log10(float64(len(r.dbg.Breakpoints) + 1)))
		fmtstring = fmt.Sprintf("#%%0%dd: %%s\n", int64(digits)+1)
	}

	for i, bp := range r.dbg.Breakpoints {
		if filter(bp) {
			fmt.Printf(fmtstring, i, bp)
		}
	}
}

func (r *repl) debugWatch(args []string) {
	const usage = "watch [r#|@addr|label]"

	if len(args) == 0 {
		r.listBreaks(func(bp debugger.Breakpoint) bool {
			return bp.Type != debugger.ADDRESS_BREAK
		})
		return
	}

	if len(args) != 1 {
		log.Println(usage)
		return
	}

	var i int
	var added bool
	var err error

	if target, terr := encoding.ParseTarget(args[0]); terr == nil &&
		target.Type == encoding.TARGET_REGISTER {
		i, added, err = r.dbg.SetWatch(int(target.Value))
	} else {
		var addr uint16

		if addr, err = r.location(args[0]); err == nil {
			i, added, err = r.dbg.SetMemoryWatch(addr)
		}
	}

	if err != nil {
		log.Println(err)
		return
	}

	if added {
		fmt.Printf("Watch added #%d [%s]\n", i, r.dbg.Breakpoints[i])
	}
}

func (r *repl) debugReg(args []string) {
	const usage = "register [r# value]"

	if len(args) > 0 {
		if len(args) != 2 {
			log.Println(usage)
			return
		}

		reg, err := encoding.ParseRegister(args[0])

		if err != nil {
			log.Println(err)
			return
		}

		value, err := encoding.ParseWord(args[1])

		if err != nil {
			log.Println(err)
			return
		}

		if err := r.dbg.WriteRegister(reg, value); err != nil {
			log.Println(err)
			return
		}

		fmt.Printf("%s %#04x (%d)\n", styleBold.Render(fmt.Sprintf("R%d:", reg)), value, value)
		return
	}

	registers := r.dbg.Registers()

	for i, register := range registers {
		fmt.Printf("%s %#04x\t", styleBold.Render(fmt.Sprintf("R%d:", i)), register)
		if i == (len(registers)-1)/2 {
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Printf(
		"%s %#04x\t%s %d\t%s %s\n",
		styleBold.Render("PC:"),
		r.dbg.Machine.State.Program,
		styleBold.Render("SP:"),
		len(r.dbg.Machine.State.Stack),
		styleBold.Render("MODE:"),
		r.dbg.Mode,
	)
}

func (r *repl) printMemory(addr uint16, size int) {
	words, err := r.dbg.ReadMemory(addr, size)

	if err != nil {
		log.Println(err)
		return
	}

	for row := 0; row < len(words); row += 8 {
		fmt.Print(styleBold.Render(fmt.Sprintf("%#04x:", int(addr)+row)))

		for col := row; col < row+8 && col < len(words); col++ {
			cell := fmt.Sprintf(" %04x", words[col])

			if words[col] == 0 {
				cell = styleFaint.Render(cell)
			}

			fmt.Print(cell)
		}

		fmt.Println()
	}
}

// Parses an "[addr|#] [#]" pair. A lone number is a count from the
// current instruction.
func (r *repl) rangeArgs(args []string, size int) (uint16, int, bool) {
	addr := r.dbg.Machine.State.Program

	if len(args) > 0 {
		if strings.HasPrefix(args[0], "@") || strings.ContainsAny(args[0], "xX") {
			location, err := r.location(args[0])

			if err != nil {
				log.Println(err)
				return 0, 0, false
			}

			addr = location
		} else if value, err := strconv.ParseInt(args[0], 10, 32); err == nil {
			size = int(value)
		} else if location, err := r.location(args[0]); err == nil {
			addr = location
		} else {
			log.Println(err)
			return 0, 0, false
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 32)

		if err != nil {
			log.Println(err)
			return 0, 0, false
		}

		size = int(value)
	}

	return addr, size, true
}

func (r *repl) debugMemory(args []string) {
	const usage = "memory [@addr|label|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	addr, size, ok := r.rangeArgs(args, 8)

	if ok {
		r.printMemory(addr, size)
	}
}

func (r *repl) debugSet(args []string) {
	const usage = "set [@addr|label] [value]"

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	addr, err := r.location(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	value, err := encoding.ParseWord(args[1])

	if err != nil {
		log.Println(err)
		return
	}

	if err := r.dbg.WriteMemory(addr, value); err != nil {
		log.Println(err)
		return
	}

	r.printMemory(addr, 1)
}

func (r *repl) debugWrite(args []string) {
	const usage = "write [r#|@addr|label] [value]"

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	if target, err := encoding.ParseTarget(args[0]); err == nil &&
		target.Type == encoding.TARGET_REGISTER {
		r.debugReg(args)
		return
	}

	r.debugSet(args)
}

func (r *repl) debugPrint(args []string) {
	const usage = "print [r#|@addr|label]"

	if len(args) != 1 {
		log.Println(usage)
		return
	}

	if target, err := encoding.ParseTarget(args[0]); err == nil &&
		target.Type == encoding.TARGET_REGISTER {
		value := r.dbg.Registers()[target.Value]
		fmt.Printf("%s %d (%#04x)\n", styleBold.Render(target.String()+":"), value, value)
		return
	}

	addr, err := r.location(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	words, err := r.dbg.ReadMemory(addr, 1)

	if err != nil {
		log.Println(err)
		return
	}

	target := encoding.Target{Type: encoding.TARGET_ADDRESS, Value: addr}
	fmt.Printf(
		"%s %d (%s)\n",
		styleBold.Render(target.String()+":"),
		words[0],
		machine.FormatOperand(words[0]),
	)
}

func (r *repl) debugStack(args []string) {
	stack := r.dbg.Stack()

	if len(stack) == 0 {
		fmt.Println("Stack is empty")
		return
	}

	for i, value := range stack {
		fmt.Printf("%s %d (%#04x)\n", styleBold.Render(fmt.Sprintf("#%d:", i)), value, value)
	}
}

func (r *repl) debugJump(args []string) {
	const usage = "jump [@addr|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	addr, err := r.location(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	if err := r.dbg.Jump(addr); err != nil {
		log.Println(err)
		return
	}

	if label := r.dbg.Label(addr); label != "" {
		fmt.Printf("%s %#04x %s\n", styleBold.Render("PC:"), addr, styleFaint.Render("("+label+")"))
	} else {
		fmt.Printf("%s %#04x\n", styleBold.Render("PC:"), addr)
	}
}

func (r *repl) debugDisasm(args []string) {
	const usage = "disasm [@addr|label|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	addr, size, ok := r.rangeArgs(args, 10)

	if !ok {
		return
	}

	for _, line := range r.dbg.Disassemble(addr, size) {
		if line.Label != "" {
			fmt.Println(styleLabel.Render(line.Label + ":"))
		}

		marker := "  "
		if line.Addr == r.dbg.Machine.State.Program {
			marker = styleCursor.Render("=>")
		}

		text := line.Text
		if line.Data {
			text = styleFaint.Render(text)
		}

		fmt.Printf("%s %s %s\n", marker, styleBold.Render(fmt.Sprintf("%#04x:", line.Addr)), text)
	}
}

func (r *repl) debugStrings(args []string) {
	for _, text := range r.dbg.Strings() {
		if strings.TrimSpace(text) != "" {
			fmt.Println(text)
		}
	}
}

func (r *repl) debugLabels(args []string) {
	const usage = "labels"

	if len(args) > 0 {
		fmt.Println(usage)
		return
	}

	if r.dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	keys := make([]uint16, 0, len(r.dbg.SymTable.Labels))
	for addr := range r.dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, addr := range keys {
		fmt.Printf(
			"%s %s\n",
			styleBold.Render(fmt.Sprintf("[%#04x]", addr)),
			r.dbg.SymTable.Labels[addr],
		)
	}
}

func (r *repl) debugSource(args []string) {
	const usage = "source [@addr|label|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if r.dbg.SymTable == nil || r.dbg.SymTable.Source == "" {
		fmt.Println("No symbol table loaded")
		return
	}

	if r.source == nil {
		source, err := os.ReadFile(r.dbg.SymTable.Source)

		if err != nil {
			log.Println("Error loading source file")
			log.Println(err)
			return
		}

		r.source = source
	}

	addr, size, ok := r.rangeArgs(args, 3)

	if !ok {
		return
	}

	offset, exists := r.dbg.SymTable.Symbols[addr]

	if !exists || offset >= int64(len(r.source)) {
		fmt.Printf("No source for %#04x\n", addr)
		return
	}

	lines := strings.SplitN(string(r.source[offset:]), "\n", size+1)

	for i := 0; i < size && i < len(lines); i++ {
		if i == 0 {
			fmt.Println(styleCursor.Render("=>"), lines[i])
		} else {
			fmt.Println("  ", lines[i])
		}
	}
}

func (r *repl) debugLoad(args []string) {
	const usage = "load [file]"

	if len(args) > 1 {
		log.Println(usage)
		return
	}

	path := r.image

	if len(args) == 1 {
		path = args[0]
	}

	if path == "" {
		log.Println(usage)
		return
	}

	if err := loadFile(path, r.dbg.Load); err != nil {
		log.Println(err)
		return
	}

	fmt.Printf("Loaded %s\n", path)
	r.printCurrent()
}

func (r *repl) debugSave(args []string) {
	const usage = "save [file]"

	if len(args) != 1 {
		log.Println(usage)
		return
	}

	if err := writeFile(args[0], r.dbg.Save); err != nil {
		log.Println(err)
		return
	}

	fmt.Printf("Saved %s\n", args[0])
}

func (r *repl) debugDump(args []string) {
	const usage = "dump [file]"

	if len(args) != 1 {
		log.Println(usage)
		return
	}

	if err := writeFile(args[0], r.dbg.DumpMemory); err != nil {
		log.Println(err)
		return
	}

	fmt.Printf("Memory written to %s\n", args[0])
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)

	if err != nil {
		return err
	}

	writer := bufio.NewWriter(file)

	if err := write(writer); err != nil {
		file.Close()
		return err
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func (r *repl) closeTrace() {
	if r.trace != nil {
		if err := r.trace.Close(); err != nil {
			log.Println(err)
		}
		r.trace = nil
	}
}

func (r *repl) debugTrace(args []string) {
	const usage = "trace [-|off|file]"

	if len(args) > 1 {
		log.Println(usage)
		return
	}

	if len(args) == 0 {
		if !r.dbg.Tracing() && r.trace == nil {
			r.dbg.SetTraceOutput(os.Stdout)
		}

		r.dbg.ToggleTrace()
	} else if args[0] == "off" {
		if r.dbg.Tracing() {
			r.dbg.ToggleTrace()
		}

		r.closeTrace()
	} else {
		r.closeTrace()

		if r.dbg.Tracing() {
			r.dbg.ToggleTrace()
		}

		trace, err := openTrace(r.dbg, absPath(args[0]))

		if err != nil {
			log.Println(err)
			return
		}

		r.trace = trace
	}

	if r.dbg.Tracing() {
		fmt.Println("Trace enabled")
	} else {
		fmt.Println("Trace disabled")
	}
}

func (r *repl) debugInput(args []string) {
	text := strings.Join(args, " ") + "\n"
	r.keyboard.Feed(text)
	fmt.Printf("%d characters queued\n", r.keyboard.Pending())
}

func (r *repl) debugStep(args []string) {
	const usage = "next [#]"

	var count uint64 = 1

	if len(args) > 1 {
		log.Println(usage)
		return
	}

	if len(args) == 1 {
		value, err := strconv.ParseUint(args[0], 10, 64)

		if err != nil {
			log.Println(err)
			return
		}

		count = value
	}

	r.execute(func(ctx context.Context) debugger.Event {
		return r.dbg.Step(ctx, count)
	})
}

func (r *repl) Run() error {
	defer r.closeTrace()

	r.printCurrent()

	for {
		fmt.Print(stylePrompt.Render("(dbg)") + " ")

		line, err := r.stdin.ReadString('\n')

		if err != nil && line == "" {
			fmt.Println()
			if err == io.EOF {
				return nil
			}
			return err
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			if len(r.lastcmd) == 0 {
				continue
			}
			args = r.lastcmd
		} else {
			r.lastcmd = make([]string, len(args))
			copy(r.lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			r.debugBreak(args)

		case "w", "wp", "watch":
			r.debugWatch(args)

		case "r", "reg", "register", "registers":
			r.debugReg(args)

		case "m", "mem", "memory":
			r.debugMemory(args)

		case "set":
			r.debugSet(args)

		case "write":
			r.debugWrite(args)

		case "p", "print":
			r.debugPrint(args)

		case "stack":
			r.debugStack(args)

		case "j", "jmp", "jump":
			r.debugJump(args)

		case "d", "dis", "disasm":
			r.debugDisasm(args)

		case "x", "peek":
			r.printCurrent()

		case "strings":
			r.debugStrings(args)

		case "l", "label", "labels":
			r.debugLabels(args)

		case "src", "source":
			r.debugSource(args)

		case "load", "reset":
			r.debugLoad(args)

		case "save":
			r.debugSave(args)

		case "dump":
			r.debugDump(args)

		case "t", "trace", "enable-trace":
			r.debugTrace(args)

		case "i", "input":
			r.debugInput(args)

		case "c", "continue":
			r.execute(r.dbg.Continue)

		case "n", "next", "s", "step":
			r.debugStep(args)

		case "q", "quit", "exit":
			return nil

		case "clear":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}
