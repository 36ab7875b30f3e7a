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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

const SNAPSHOT_VERSION uint = 1

// Snapshot is the serialized form of a MachineState. Memory is stored as
// little endian words so the encoding stays compact.
type Snapshot struct {
	Version   uint                   `cbor:"1,keyasint"`
	Program   uint16                 `cbor:"2,keyasint"`
	Halted    bool                   `cbor:"3,keyasint"`
	Registers [REGISTER_COUNT]uint16 `cbor:"4,keyasint"`
	Stack     []uint16               `cbor:"5,keyasint"`
	Memory    []byte                 `cbor:"6,keyasint"`
}

// Canonical encoding keeps snapshots of equal states byte identical.
var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()

	if err != nil {
		panic(fmt.Sprintf("machine: failed to create CBOR enc mode: %v", err))
	}

	snapshotEncMode = em
}

func (mc *MachineState) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version:   SNAPSHOT_VERSION,
		Program:   mc.Program,
		Halted:    mc.Halted,
		Registers: mc.Registers,
		Memory:    make([]byte, MEMORY_SIZE*2),
	}

	if len(mc.Stack) > 0 {
		snap.Stack = append([]uint16(nil), mc.Stack...)
	}

	for i, word := range mc.Memory {
		binary.LittleEndian.PutUint16(snap.Memory[i*2:], word)
	}

	return snap
}

// Restore validates a snapshot and replaces the state with it. The state is
// left untouched if validation fails.
func (mc *MachineState) Restore(snap *Snapshot) error {
	if snap.Version != SNAPSHOT_VERSION {
		return &InvalidImageError{
			len(snap.Memory),
			fmt.Sprintf("unsupported snapshot version %d", snap.Version),
		}
	}

	if len(snap.Memory) != MEMORY_SIZE*2 {
		return &InvalidImageError{len(snap.Memory), "snapshot memory size mismatch"}
	}

	if int(snap.Program) >= MEMORY_SIZE {
		return &InvalidImageError{
			len(snap.Memory),
			fmt.Sprintf("program counter %#04x out of bounds", snap.Program),
		}
	}

	for i, value := range snap.Registers {
		if value > WORD_MASK {
			return &InvalidImageError{
				len(snap.Memory),
				fmt.Sprintf("register r%d holds %d", i, value),
			}
		}
	}

	for i, value := range snap.Stack {
		if value > WORD_MASK {
			return &InvalidImageError{
				len(snap.Memory),
				fmt.Sprintf("stack entry %d holds %d", i, value),
			}
		}
	}

	mc.Program = snap.Program
	mc.Halted = snap.Halted
	mc.Registers = snap.Registers
	mc.Stack = nil

	if len(snap.Stack) > 0 {
		mc.Stack = append([]uint16(nil), snap.Stack...)
	}

	for i := range mc.Memory {
		mc.Memory[i] = binary.LittleEndian.Uint16(snap.Memory[i*2:])
	}

	return nil
}

func MarshalSnapshot(snap *Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(snap)
}

func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot

	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("machine: unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

func (mc *MachineState) MarshalBinary() ([]byte, error) {
	return MarshalSnapshot(mc.Snapshot())
}

func (mc *MachineState) UnmarshalBinary(data []byte) error {
	snap, err := UnmarshalSnapshot(data)

	if err != nil {
		return err
	}

	return mc.Restore(snap)
}

func (mc *Machine) SaveState(writer io.Writer) error {
	data, err := mc.State.MarshalBinary()

	if err != nil {
		return err
	}

	_, err = writer.Write(data)
	return err
}

func (mc *Machine) LoadState(reader io.Reader) error {
	data, err := io.ReadAll(reader)

	if err != nil {
		return err
	}

	return mc.State.UnmarshalBinary(data)
}
