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

package assembler

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var symtableEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()

	if err != nil {
		panic(fmt.Sprintf("assembler: cbor enc mode: %v", err))
	}

	symtableEncMode = em
}

func MarshalSymTable(symtable *SymTable) ([]byte, error) {
	return symtableEncMode.Marshal(symtable)
}

func UnmarshalSymTable(data []byte) (*SymTable, error) {
	symtable := NewSymTable("")

	if err := cbor.Unmarshal(data, symtable); err != nil {
		return nil, fmt.Errorf("assembler: unmarshal symtable: %w", err)
	}

	return symtable, nil
}

func (symtable *SymTable) WriteTo(writer io.Writer) (int64, error) {
	data, err := MarshalSymTable(symtable)

	if err != nil {
		return 0, err
	}

	n, err := writer.Write(data)

	return int64(n), err
}

func ReadSymTable(reader io.Reader) (*SymTable, error) {
	data, err := io.ReadAll(reader)

	if err != nil {
		return nil, err
	}

	return UnmarshalSymTable(data)
}
