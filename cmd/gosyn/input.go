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
	"io"
)

// Feeds the machine's in instruction. Text queued with Feed is consumed
// before the underlying source.
type inputQueue struct {
	pending []byte
	source  io.ByteReader
}

func newInputQueue(source io.ByteReader) *inputQueue {
	return &inputQueue{source: source}
}

func (queue *inputQueue) Feed(text string) {
	queue.pending = append(queue.pending, text...)
}

func (queue *inputQueue) Pending() int {
	return len(queue.pending)
}

func (queue *inputQueue) ReadByte() (byte, error) {
	if len(queue.pending) > 0 {
		char := queue.pending[0]
		queue.pending = queue.pending[1:]
		return char, nil
	}

	if queue.source == nil {
		return 0, io.EOF
	}

	return queue.source.ReadByte()
}
