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

package encoding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gosyn/pkg/encoding"
)

func TestParseWord(t *testing.T) {
	tests := []struct {
		Name  string
		Input string
		Want  uint16
		Fail  bool
	}{
		{"Decimal", "1234", 1234, false},
		{"Hash Decimal", "#42", 42, false},
		{"Hex", "0x7FFF", 0x7FFF, false},
		{"Short Hex", "xFF", 0xFF, false},
		{"Too Large", "32768", 0, true},
		{"Too Large Hex", "0x8000", 0, true},
		{"Negative", "-1", 0, true},
		{"Garbage", "zz", 0, true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			have, err := encoding.ParseWord(test.Input)

			if test.Fail {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.Want, have)
		})
	}
}

func TestParseTarget(t *testing.T) {
	target, err := encoding.ParseTarget("@0x10")
	require.NoError(t, err)
	assert.Equal(t, encoding.Target{Type: encoding.TARGET_ADDRESS, Value: 16}, target)
	assert.Equal(t, "@0x0010", target.String())

	target, err = encoding.ParseTarget("r7")
	require.NoError(t, err)
	assert.Equal(t, encoding.Target{Type: encoding.TARGET_REGISTER, Value: 7}, target)
	assert.Equal(t, "r7", target.String())

	_, err = encoding.ParseTarget("r8")
	assert.Error(t, err)

	_, err = encoding.ParseTarget("1234")
	assert.ErrorIs(t, err, encoding.ErrInvalidTarget)
}

func TestParseRegister(t *testing.T) {
	for i := 0; i < 8; i++ {
		reg, err := encoding.ParseRegister(string(rune('0' + i)))
		require.NoError(t, err)
		assert.Equal(t, i, reg)
	}

	_, err := encoding.ParseRegister("R9")
	assert.Error(t, err)
}
