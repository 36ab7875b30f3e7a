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

// Package config loads debugger session files.
//
// A session file is TOML:
//
//	image = "challenge.bin"
//	symbols = "challenge.syndb"
//	breakpoints = ["@0x0156", "main_loop"]
//	watches = ["r7", "@100"]
//	trace = "trace.log"
//	log-level = "debug"
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/lassandro/gosyn/pkg/debugger"
	"github.com/lassandro/gosyn/pkg/encoding"
)

const TRACE_STDOUT = "-"

type Config struct {
	Image       string   `toml:"image"`
	Snapshot    string   `toml:"snapshot"`
	Symbols     string   `toml:"symbols"`
	Breakpoints []string `toml:"breakpoints"`
	Watches     []string `toml:"watches"`
	Trace       string   `toml:"trace"`
	Input       string   `toml:"input"`
	LogLevel    string   `toml:"log-level"`

	// Directory the file was loaded from, relative paths resolve against it
	Dir string `toml:"-"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg, err := Parse(string(data))

	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(filepath.Dir(path))

	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	return cfg, nil
}

func Parse(data string) (*Config, error) {
	var cfg Config

	meta, err := toml.Decode(data, &cfg)

	if err != nil {
		return nil, err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key '%s'", undecoded[0])
	}

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Resolves a path named in the file. Empty paths and the stdout marker are
// returned unchanged.
func (cfg *Config) Path(path string) string {
	if path == "" || path == TRACE_STDOUT || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(cfg.Dir, path)
}

func (cfg *Config) Level() (slog.Level, error) {
	var level slog.Level

	if cfg.LogLevel == "" {
		return slog.LevelWarn, nil
	}

	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log-level '%s'", cfg.LogLevel)
	}

	return level, nil
}

// Merges values set in other over cfg. Lists are appended.
func (cfg *Config) Merge(other *Config) {
	if other.Image != "" {
		cfg.Image = other.Image
	}
	if other.Snapshot != "" {
		cfg.Snapshot = other.Snapshot
	}
	if other.Symbols != "" {
		cfg.Symbols = other.Symbols
	}
	if other.Trace != "" {
		cfg.Trace = other.Trace
	}
	if other.Input != "" {
		cfg.Input = other.Input
	}
	if other.LogLevel != "" {
		cfg.LogLevel = other.LogLevel
	}

	cfg.Breakpoints = append(cfg.Breakpoints, other.Breakpoints...)
	cfg.Watches = append(cfg.Watches, other.Watches...)
}

// Resolves a breakpoint location: an address in any encoding form, or a
// label from the debugger's symbol table.
func resolveAddress(dbg *debugger.Debugger, location string) (uint16, error) {
	if addr, err := encoding.ParseAddress(location); err == nil {
		return addr, nil
	}

	if dbg.SymTable != nil {
		if addr, ok := dbg.SymTable.Lookup(location); ok {
			return addr, nil
		}
	}

	return 0, fmt.Errorf("unknown location '%s'", location)
}

// Installs the configured breakpoints and watches.
func (cfg *Config) Apply(dbg *debugger.Debugger) error {
	for _, location := range cfg.Breakpoints {
		addr, err := resolveAddress(dbg, location)

		if err != nil {
			return fmt.Errorf("breakpoint: %w", err)
		}

		if _, _, err := dbg.SetBreakpoint(addr); err != nil {
			return fmt.Errorf("breakpoint %s: %w", location, err)
		}
	}

	for _, watch := range cfg.Watches {
		var err error

		if target, terr := encoding.ParseTarget(watch); terr == nil &&
			target.Type == encoding.TARGET_REGISTER {
			_, _, err = dbg.SetWatch(int(target.Value))
		} else if addr, aerr := resolveAddress(dbg, watch); aerr == nil {
			_, _, err = dbg.SetMemoryWatch(addr)
		} else {
			err = aerr
		}

		if err != nil {
			return fmt.Errorf("watch %s: %w", watch, err)
		}
	}

	return nil
}
