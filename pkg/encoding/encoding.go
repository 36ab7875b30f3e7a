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

package encoding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MAX_WORD       = 0x7FFF
	REGISTER_COUNT = 8
)

var ErrInvalidTarget = errors.New("invalid target")

type TargetType uint

const (
	TARGET_ADDRESS TargetType = iota
	TARGET_REGISTER
)

// Target is either a memory address (@1234) or a register (r3).
type Target struct {
	Type  TargetType
	Value uint16
}

func (t Target) String() string {
	if t.Type == TARGET_REGISTER {
		return fmt.Sprintf("r%d", t.Value)
	}

	return fmt.Sprintf("@%#04x", t.Value)
}

// Decodes a hexidecimal string in the formats: 0x7FFF, x7FFF, 0xFF, xFF
func DecodeHex(s string) (uint16, error) {
	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i == -1 || i != 1 {
		return 0, errors.New("Invalid hex string")
	}

	result, err := strconv.ParseUint(s, 0, 16)

	if err != nil {
		return 0, err
	}

	return uint16(result), nil
}

// Decodes a base-10 string in the formats: #123, 123
func DecodeInt(s string) (uint16, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	result, err := strconv.ParseUint(s, 10, 16)

	if err != nil {
		return 0, err
	}

	return uint16(result), nil
}

// ParseWord accepts any of the hex or decimal forms and requires the
// result to fit in 15 bits.
func ParseWord(s string) (uint16, error) {
	var result uint16
	var err error

	if strings.ContainsAny(s, "xX") {
		result, err = DecodeHex(s)
	} else {
		result, err = DecodeInt(s)
	}

	if err != nil {
		return 0, err
	}

	if result > MAX_WORD {
		return 0, fmt.Errorf("Value %d exceeds %d", result, MAX_WORD)
	}

	return result, nil
}

// Parses an address in the formats: @1234, @0x04d2, 0x04d2
func ParseAddress(s string) (uint16, error) {
	return ParseWord(strings.TrimPrefix(s, "@"))
}

// Parses a register in the formats: r3, R3, 3
func ParseRegister(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "r"), "R")

	result, err := strconv.ParseUint(s, 10, 8)

	if err != nil || result >= REGISTER_COUNT {
		return 0, fmt.Errorf("Invalid register '%s'", s)
	}

	return int(result), nil
}

// Parses "@addr" or "r#" into a Target.
func ParseTarget(s string) (Target, error) {
	switch {
	case strings.HasPrefix(s, "@"):
		addr, err := ParseAddress(s)

		if err != nil {
			return Target{}, err
		}

		return Target{TARGET_ADDRESS, addr}, nil

	case strings.HasPrefix(s, "r"), strings.HasPrefix(s, "R"):
		reg, err := ParseRegister(s)

		if err != nil {
			return Target{}, err
		}

		return Target{TARGET_REGISTER, uint16(reg)}, nil
	}

	return Target{}, fmt.Errorf("%w: '%s'", ErrInvalidTarget, s)
}
