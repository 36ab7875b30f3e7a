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

package machine_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gosyn/pkg/machine"
)

func runningMachine(t *testing.T) *machine.Machine {
	var mc machine.Machine
	require.NoError(t, mc.LoadWords([]uint16{
		2, 300, // push 300
		17, 7, // call 7
		0,      // halt
		21, 21, // padding
		1, R3, 0x7FFF, // set r3 32767
		16, 1000, R3, // wmem 1000 r3
		18, // ret
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, mc.Step())
	}

	require.Equal(t, uint16(13), mc.State.Program)
	require.Len(t, mc.State.Stack, 2)
	return &mc
}

func TestSnapshotRoundTrip(t *testing.T) {
	mc := runningMachine(t)

	var buf bytes.Buffer
	require.NoError(t, mc.SaveState(&buf))

	var restored machine.Machine
	restored.State.Registers[0] = 1
	require.NoError(t, restored.LoadState(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, mc.State.Memory, restored.State.Memory)
	assert.Equal(t, mc.State.Registers, restored.State.Registers)
	assert.Equal(t, mc.State.Stack, restored.State.Stack)
	assert.Equal(t, mc.State.Program, restored.State.Program)
	assert.Equal(t, mc.State.Halted, restored.State.Halted)

	// Execution continues identically from the checkpoint
	require.NoError(t, mc.Run())
	require.NoError(t, restored.Run())
	assert.Equal(t, mc.State.Snapshot(), restored.State.Snapshot())
}

func TestSnapshotDeterministic(t *testing.T) {
	mc := runningMachine(t)

	first, err := mc.State.MarshalBinary()
	require.NoError(t, err)

	var restored machine.MachineState
	require.NoError(t, restored.UnmarshalBinary(first))

	second, err := restored.MarshalBinary()
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "snapshot encoding is not byte identical")
}

func TestSnapshotHalted(t *testing.T) {
	var mc machine.Machine
	require.NoError(t, mc.LoadWords([]uint16{0}))
	require.NoError(t, mc.Run())

	data, err := mc.State.MarshalBinary()
	require.NoError(t, err)

	var restored machine.Machine
	require.NoError(t, restored.State.UnmarshalBinary(data))
	assert.True(t, restored.State.Halted)
	assert.ErrorIs(t, restored.Step(), machine.ErrHalted)
}

func TestSnapshotRejected(t *testing.T) {
	tests := []struct {
		Name   string
		Mutate func(*machine.Snapshot)
	}{
		{"Version", func(snap *machine.Snapshot) { snap.Version = 99 }},
		{"Memory", func(snap *machine.Snapshot) { snap.Memory = snap.Memory[:10] }},
		{"Register", func(snap *machine.Snapshot) { snap.Registers[2] = 0x8000 }},
		{"Program", func(snap *machine.Snapshot) { snap.Program = 0x8000 }},
		{"Stack", func(snap *machine.Snapshot) { snap.Stack = append(snap.Stack, 0x8003) }},
	}

	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			mc := runningMachine(t)
			snap := mc.State.Snapshot()
			test.Mutate(snap)

			data, err := machine.MarshalSnapshot(snap)
			require.NoError(t, err)

			var target machine.MachineState
			target.Registers[5] = 5

			err = target.UnmarshalBinary(data)
			require.ErrorIs(t, err, machine.ErrInvalidImage)
			assert.Equal(t, uint16(5), target.Registers[5], "state modified by a rejected snapshot")
		})
	}

	t.Run("Garbage", func(t *testing.T) {
		var target machine.MachineState
		assert.Error(t, target.UnmarshalBinary([]byte{0xFF, 0x00, 0x13}))
	})
}
