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
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lassandro/gosyn/pkg/assembler"
	"github.com/lassandro/gosyn/pkg/config"
	"github.com/lassandro/gosyn/pkg/debugger"
	"github.com/lassandro/gosyn/pkg/machine"
)

var debugvar bool
var rawvar bool
var configvar string
var snapshotvar string
var symbolsvar string
var tracevar string
var inputvar string
var loglevelvar string

var rootCmd = &cobra.Command{
	Use:   "gosyn [flags] [image]",
	Short: "Runs a program image, optionally under the interactive debugger",
	Long: "Runs a little endian program image. With --debug the machine " +
		"starts stopped at address 0 inside the debugger prompt.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return gosyn(args)
	},
}

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&debugvar, "debug", "d", false, "Runs the machine in a debug CLI")
	flags.BoolVar(
		&rawvar, "raw", false,
		"Delivers terminal input one character at a time instead of by line",
	)
	flags.StringVarP(&configvar, "config", "c", "", "Session file (TOML)")
	flags.StringVarP(
		&snapshotvar, "snapshot", "s", "",
		"Resumes a saved snapshot instead of loading an image",
	)
	flags.StringVar(
		&symbolsvar, "symbols", "",
		"Symbol table written by gosyn-asm. Defaults to the image name "+
			"with extension '.syndb' when that file exists",
	)
	flags.StringVarP(
		&tracevar, "trace", "t", "",
		"Traces every executed instruction to a file, or '-' for stdout",
	)
	flags.StringVarP(
		&inputvar, "input", "i", "",
		"File whose contents are fed to the machine before the terminal",
	)
	flags.StringVar(&loglevelvar, "log-level", "", "debug, info, warn or error")
}

// Flag paths are relative to the working directory, so they are made
// absolute before being merged over a session file.
func absPath(path string) string {
	if path == "" || path == config.TRACE_STDOUT {
		return path
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}

func sessionConfig(args []string) (*config.Config, error) {
	cfg := &config.Config{}

	if configvar != "" {
		loaded, err := config.Load(configvar)

		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	flagcfg := config.Config{
		Snapshot: absPath(snapshotvar),
		Symbols:  absPath(symbolsvar),
		Trace:    absPath(tracevar),
		LogLevel: loglevelvar,
	}

	if len(args) == 1 {
		flagcfg.Image = absPath(args[0])
	}

	if inputvar != "" {
		data, err := os.ReadFile(inputvar)

		if err != nil {
			return nil, err
		}

		flagcfg.Input = string(data)
	}

	cfg.Merge(&flagcfg)

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadSymbols(dbg *debugger.Debugger, path string) error {
	file, err := os.Open(path)

	if err != nil {
		return err
	}

	defer file.Close()

	symtable, err := assembler.ReadSymTable(file)

	if err != nil {
		return err
	}

	dbg.SymTable = symtable
	return nil
}

func loadFile(path string, load func(io.Reader) error) error {
	file, err := os.Open(path)

	if err != nil {
		return err
	}

	defer file.Close()

	if stat, err := file.Stat(); err != nil {
		return err
	} else if stat.IsDir() {
		return fmt.Errorf("%s is not a valid program image", filepath.Base(path))
	}

	return load(bufio.NewReader(file))
}

func openTrace(dbg *debugger.Debugger, path string) (io.Closer, error) {
	if path == "" {
		return nil, nil
	}

	if path == config.TRACE_STDOUT {
		dbg.SetTraceOutput(os.Stdout)
		dbg.ToggleTrace()
		return nil, nil
	}

	file, err := os.Create(path)

	if err != nil {
		return nil, err
	}

	writer := bufio.NewWriter(file)
	dbg.SetTraceOutput(writer)
	dbg.ToggleTrace()

	return closerFunc(func() error {
		if err := writer.Flush(); err != nil {
			file.Close()
			return err
		}

		return file.Close()
	}), nil
}

type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

func gosyn(args []string) error {
	cfg, err := sessionConfig(args)

	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	))

	stdin := bufio.NewReader(os.Stdin)
	keyboard := newInputQueue(stdin)
	keyboard.Feed(cfg.Input)

	var mc machine.Machine
	var dh machine.DeviceHandler
	dh.Keyboard = keyboard
	dh.Display = bufio.NewWriter(os.Stdout)
	mc.Devices = &dh

	dbg := debugger.New(&mc, logger)

	image := cfg.Path(cfg.Image)
	symbols := cfg.Path(cfg.Symbols)

	if symbols == "" && image != "" {
		candidate := strings.TrimSuffix(image, filepath.Ext(image)) + ".syndb"

		if _, err := os.Stat(candidate); err == nil {
			symbols = candidate
		}
	}

	if symbols != "" {
		if err := loadSymbols(dbg, symbols); err != nil {
			log.Println("Error loading symbol file")
			log.Println(err)
		}
	}

	switch {
	case cfg.Snapshot != "":
		err = loadFile(cfg.Path(cfg.Snapshot), dbg.LoadSnapshot)
	case image != "":
		err = loadFile(image, dbg.LoadImage)
	default:
		err = errors.New("no image or snapshot given")
	}

	if err != nil {
		return err
	}

	if err := cfg.Apply(dbg); err != nil {
		return err
	}

	trace, err := openTrace(dbg, cfg.Path(cfg.Trace))

	if err != nil {
		return err
	}

	if trace != nil {
		defer trace.Close()
	}

	if debugvar {
		repl := newREPL(dbg, stdin, keyboard, image)
		return repl.Run()
	}

	if rawvar && isatty.IsTerminal(os.Stdin.Fd()) {
		if err := enterRawTerm(); err != nil {
			return err
		}

		defer exitRawTerm()
	}

	return run(dbg)
}

// Runs to completion. Breakpoints and watches from a session file are
// reported and passed over.
func run(dbg *debugger.Debugger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		ev := dbg.Continue(ctx)

		switch ev.Reason {
		case debugger.STOP_HALTED:
			return nil
		case debugger.STOP_BREAKPOINT, debugger.STOP_WATCH:
			log.Println(ev)
		default:
			return errors.New(ev.String())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
