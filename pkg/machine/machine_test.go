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
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gosyn/pkg/machine"
)

const (
	R0 uint16 = 32768 + iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
)

type testMachineState struct {
	Registers [8]uint16
	Program   uint16
	Halted    bool
	Stack     []uint16
	Memory    map[uint16]uint16
}

type testCase struct {
	Name     string
	Steps    uint
	Keyboard string
	Display  string
	Input    testMachineState
	Output   testMachineState
	Err      error
}

func setupMachine(test *testCase) (*machine.Machine, *bytes.Buffer) {
	var mc machine.Machine
	var devices machine.DeviceHandler
	var displayBuf bytes.Buffer

	devices.Keyboard = bufio.NewReader(bytes.NewReader([]byte(test.Keyboard)))
	devices.Display = bufio.NewWriter(&displayBuf)
	mc.Devices = &devices

	mc.State.Reset()
	mc.State.Registers = test.Input.Registers
	mc.State.Program = test.Input.Program
	mc.State.Halted = test.Input.Halted
	mc.State.Stack = append([]uint16(nil), test.Input.Stack...)

	for addr, value := range test.Input.Memory {
		mc.State.Memory[addr] = value
	}

	return &mc, &displayBuf
}

func testMachine(t *testing.T, test *testCase) {
	if test.Input.Memory == nil && test.Output.Memory == nil {
		panic("No memory maps provided")
	}

	mc, displayBuf := setupMachine(test)

	if test.Steps == 0 {
		test.Steps = 1
	}

	var err error
	for i := uint(0); i < test.Steps && err == nil; i++ {
		err = mc.Step()
	}

	if test.Err != nil {
		require.ErrorIs(t, err, test.Err)
	} else {
		require.NoError(t, err)
	}

	assert.Equal(
		t, test.Output.Registers, mc.State.Registers,
		"Register mismatch (test.Output.Registers)",
	)

	assert.Equal(
		t, test.Output.Program, mc.State.Program,
		"Program counter mismatch\nwant:%#04x\nhave:%#04x",
		test.Output.Program, mc.State.Program,
	)

	assert.Equal(t, test.Output.Halted, mc.State.Halted, "Halt state mismatch")

	if len(test.Output.Stack) == 0 {
		assert.Empty(t, mc.State.Stack, "Stack expected to be empty")
	} else {
		assert.Equal(t, test.Output.Stack, mc.State.Stack, "Stack mismatch")
	}

	for i, value := range mc.State.Memory {
		input, expectingInput := test.Input.Memory[uint16(i)]
		output, expectingOutput := test.Output.Memory[uint16(i)]

		if expectingOutput {
			// Value was supposed to change
			require.Equal(
				t, output, value,
				"Memory value mismatch (test.Output.Memory[%#04x])", i,
			)
		} else if expectingInput {
			// Value was supposed to remain
			require.Equal(
				t, input, value,
				"Memory value mismatch (test.Input.Memory[%#04x])", i,
			)
		} else if value != 0 {
			t.Fatalf(
				"Memory unexpectedly changed"+
					"\nwant:0x00 (test.Output.Memory[%#04x])\nhave:%#02x",
				i,
				value,
			)
		}
	}

	assert.Equal(t, test.Display, displayBuf.String(), "Display output mismatch")
}

func testAll(t *testing.T, tests []testCase) {
	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			testMachine(t, &test)
		})
	}
}

func TestHalt(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "HALT",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 0}},
			Output: testMachineState{Program: 1, Halted: true},
		},
		{
			Name: "HALT Already Halted",
			Input: testMachineState{
				Program: 5,
				Halted:  true,
				Memory:  map[uint16]uint16{5: 21},
			},
			Output: testMachineState{Program: 5, Halted: true},
			Err:    machine.ErrHalted,
		},
	})
}

func TestSet(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "SET Literal",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 1, 1: R3, 2: 1234}},
			Output: testMachineState{Program: 3, Registers: [8]uint16{3: 1234}},
		},
		{
			Name: "SET Register",
			Input: testMachineState{
				Registers: [8]uint16{7: 42},
				Memory:    map[uint16]uint16{0: 1, 1: R0, 2: R7},
			},
			Output: testMachineState{
				Program:   3,
				Registers: [8]uint16{0: 42, 7: 42},
			},
		},
		{
			Name:   "SET Literal Destination",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 1, 1: 5, 2: 6}},
			Output: testMachineState{},
			Err:    machine.ErrInvalidOperand,
		},
		{
			Name:   "SET Invalid Value",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 1, 1: R0, 2: 32776}},
			Output: testMachineState{},
			Err:    machine.ErrInvalidOperand,
		},
	})
}

func TestStack(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "PUSH Literal",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 2, 1: 9}},
			Output: testMachineState{Program: 2, Stack: []uint16{9}},
		},
		{
			Name: "PUSH Register",
			Input: testMachineState{
				Registers: [8]uint16{4: 77},
				Stack:     []uint16{1},
				Memory:    map[uint16]uint16{0: 2, 1: R4},
			},
			Output: testMachineState{
				Program:   2,
				Registers: [8]uint16{4: 77},
				Stack:     []uint16{1, 77},
			},
		},
		{
			Name: "POP",
			Input: testMachineState{
				Stack:  []uint16{3, 8},
				Memory: map[uint16]uint16{0: 3, 1: R1},
			},
			Output: testMachineState{
				Program:   2,
				Registers: [8]uint16{1: 8},
				Stack:     []uint16{3},
			},
		},
		{
			Name: "POP Empty",
			Input: testMachineState{
				Program: 10,
				Memory:  map[uint16]uint16{10: 3, 11: R1},
			},
			Output: testMachineState{Program: 10},
			Err:    machine.ErrStackUnderflow,
		},
	})
}

func TestCompare(t *testing.T) {
	testAll(t, []testCase{
		{
			Name: "EQ True",
			Input: testMachineState{
				Registers: [8]uint16{0: 9, 1: 5},
				Memory:    map[uint16]uint16{0: 4, 1: R0, 2: R1, 3: 5},
			},
			Output: testMachineState{Program: 4, Registers: [8]uint16{0: 1, 1: 5}},
		},
		{
			Name: "EQ False",
			Input: testMachineState{
				Registers: [8]uint16{0: 9, 1: 5},
				Memory:    map[uint16]uint16{0: 4, 1: R0, 2: R1, 3: 6},
			},
			Output: testMachineState{Program: 4, Registers: [8]uint16{0: 0, 1: 5}},
		},
		{
			Name:   "GT True",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 5, 1: R2, 2: 7, 3: 6}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{2: 1}},
		},
		{
			Name: "GT Equal",
			Input: testMachineState{
				Registers: [8]uint16{2: 9},
				Memory:    map[uint16]uint16{0: 5, 1: R2, 2: 7, 3: 7},
			},
			Output: testMachineState{Program: 4},
		},
	})
}

func TestJump(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "JMP Literal",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 6, 1: 0x1234}},
			Output: testMachineState{Program: 0x1234},
		},
		{
			Name: "JMP Register",
			Input: testMachineState{
				Registers: [8]uint16{5: 0x0200},
				Memory:    map[uint16]uint16{0: 6, 1: R5},
			},
			Output: testMachineState{Program: 0x0200, Registers: [8]uint16{5: 0x0200}},
		},
		{
			Name:   "JT Taken",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 7, 1: 1, 2: 100}},
			Output: testMachineState{Program: 100},
		},
		{
			Name:   "JT Not Taken",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 7, 1: R0, 2: 100}},
			Output: testMachineState{Program: 3},
		},
		{
			Name:   "JF Taken",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 8, 1: R0, 2: 100}},
			Output: testMachineState{Program: 100},
		},
		{
			Name:   "JF Not Taken",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 8, 1: 32767, 2: 100}},
			Output: testMachineState{Program: 3},
		},
	})
}

func TestArithmetic(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "ADD",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 9, 1: R0, 2: 4, 3: 1}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{0: 5}},
		},
		{
			Name:   "ADD Overflow",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 9, 1: R0, 2: 32758, 3: 15}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{0: 5}},
		},
		{
			Name:   "MULT Overflow",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 10, 1: R1, 2: 32767, 3: 32767}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{1: 1}},
		},
		{
			Name:   "MOD",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 11, 1: R1, 2: 17, 3: 5}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{1: 2}},
		},
		{
			Name: "MOD Zero",
			Input: testMachineState{
				Registers: [8]uint16{1: 3},
				Memory:    map[uint16]uint16{0: 11, 1: R1, 2: 17, 3: R0},
			},
			Output: testMachineState{Registers: [8]uint16{1: 3}},
			Err:    machine.ErrDivisionByZero,
		},
		{
			Name:   "AND",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 12, 1: R2, 2: 0x7F0F, 3: 0x00FF}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{2: 0x000F}},
		},
		{
			Name:   "OR",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 13, 1: R2, 2: 0x7000, 3: 0x000F}},
			Output: testMachineState{Program: 4, Registers: [8]uint16{2: 0x700F}},
		},
		{
			Name:   "NOT",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 14, 1: R3, 2: 0}},
			Output: testMachineState{Program: 3, Registers: [8]uint16{3: 0x7FFF}},
		},
		{
			Name:   "NOT Pattern",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 14, 1: R3, 2: 0x5555}},
			Output: testMachineState{Program: 3, Registers: [8]uint16{3: 0x2AAA}},
		},
	})
}

func TestMemory(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "RMEM",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 15, 1: R0, 2: 100, 100: 555}},
			Output: testMachineState{Program: 3, Registers: [8]uint16{0: 555}},
		},
		{
			Name: "RMEM Register Reference",
			Input: testMachineState{
				Registers: [8]uint16{6: 31},
				Memory:    map[uint16]uint16{0: 15, 1: R0, 2: 100, 100: R6},
			},
			Output: testMachineState{Program: 3, Registers: [8]uint16{0: 31, 6: 31}},
		},
		{
			Name:   "WMEM",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 16, 1: 200, 2: 12}},
			Output: testMachineState{Program: 3, Memory: map[uint16]uint16{200: 12}},
		},
		{
			Name:  "WMEM Self Modifying",
			Input: testMachineState{Memory: map[uint16]uint16{0: 16, 1: 0, 2: 21}},
			Output: testMachineState{
				Program: 3,
				Memory:  map[uint16]uint16{0: 21},
			},
		},
		{
			Name: "Operand Past End Of Memory",
			Input: testMachineState{
				Program: 32767,
				Memory:  map[uint16]uint16{32767: 6},
			},
			Output: testMachineState{Program: 32767},
			Err:    machine.ErrOutOfBounds,
		},
	})
}

func TestCall(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:   "CALL",
			Input:  testMachineState{Program: 10, Memory: map[uint16]uint16{10: 17, 11: 50}},
			Output: testMachineState{Program: 50, Stack: []uint16{12}},
		},
		{
			Name:  "CALL RET",
			Steps: 2,
			Input: testMachineState{
				Program: 10,
				Memory:  map[uint16]uint16{10: 17, 11: 50, 50: 18},
			},
			Output: testMachineState{Program: 12},
		},
		{
			Name: "CALL Return Out Of Bounds",
			Input: testMachineState{
				Program: 32766,
				Memory:  map[uint16]uint16{32766: 17, 32767: 50},
			},
			Output: testMachineState{Program: 32766},
			Err:    machine.ErrOutOfBounds,
		},
		{
			Name: "RET Empty",
			Input: testMachineState{
				Program: 50,
				Memory:  map[uint16]uint16{50: 18},
			},
			Output: testMachineState{Program: 50},
			Err:    machine.ErrStackUnderflow,
		},
	})
}

func TestDevices(t *testing.T) {
	testAll(t, []testCase{
		{
			Name:    "OUT Literal",
			Display: "A",
			Input:   testMachineState{Memory: map[uint16]uint16{0: 19, 1: 'A'}},
			Output:  testMachineState{Program: 2},
		},
		{
			Name:    "OUT Wide Value",
			Display: "?",
			Input:   testMachineState{Memory: map[uint16]uint16{0: 19, 1: 300}},
			Output:  testMachineState{Program: 2},
		},
		{
			Name:    "OUT Register",
			Steps:   2,
			Display: "hi",
			Input: testMachineState{
				Registers: [8]uint16{0: 'i'},
				Memory:    map[uint16]uint16{0: 19, 1: 'h', 2: 19, 3: R0},
			},
			Output: testMachineState{Program: 4, Registers: [8]uint16{0: 'i'}},
		},
		{
			Name:     "IN",
			Steps:    2,
			Keyboard: "go\n",
			Input: testMachineState{
				Memory: map[uint16]uint16{0: 20, 1: R1, 2: 20, 3: R2},
			},
			Output: testMachineState{
				Program:   4,
				Registers: [8]uint16{1: 'g', 2: 'o'},
			},
		},
		{
			Name:   "NOOP",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 21}},
			Output: testMachineState{Program: 1},
		},
		{
			Name:   "Invalid Opcode",
			Input:  testMachineState{Memory: map[uint16]uint16{0: 22}},
			Output: testMachineState{},
			Err:    machine.ErrInvalidOpcode,
		},
	})
}

func TestInputExhausted(t *testing.T) {
	test := testCase{
		Input: testMachineState{
			Program: 4,
			Memory:  map[uint16]uint16{4: 20, 5: R0},
		},
	}

	mc, _ := setupMachine(&test)
	err := mc.Step()

	var devErr *machine.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, uint16(4), devErr.Addr())
	assert.Equal(t, uint16(4), mc.State.Program, "IN must not advance on EOF")
}

func TestFaultAddress(t *testing.T) {
	test := testCase{
		Input: testMachineState{
			Program: 0x0123,
			Memory:  map[uint16]uint16{0x0123: 11, 0x0124: R0, 0x0125: 1, 0x0126: 0},
		},
	}

	mc, _ := setupMachine(&test)
	err := mc.Step()

	var fault machine.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, uint16(0x0123), fault.Addr())
}

func TestArithmeticModulo(t *testing.T) {
	samples := []uint16{0, 1, 2, 255, 256, 16383, 16384, 32766, 32767}

	for v := uint16(3); v < 32767; v += 997 {
		samples = append(samples, v)
	}

	for _, a := range samples {
		for _, b := range samples {
			for _, op := range []uint16{9, 10, 11} {
				var mc machine.Machine
				require.NoError(t, mc.LoadWords([]uint16{op, R0, a, b}))

				err := mc.Step()

				switch op {
				case 9:
					require.NoError(t, err)
					assert.Equal(t, uint16((uint32(a)+uint32(b))%32768), mc.State.Registers[0])
				case 10:
					require.NoError(t, err)
					assert.Equal(t, uint16((uint32(a)*uint32(b))%32768), mc.State.Registers[0])
				case 11:
					if b == 0 {
						require.ErrorIs(t, err, machine.ErrDivisionByZero)
						assert.Equal(t, uint16(0), mc.State.Program)
					} else {
						require.NoError(t, err)
						assert.Equal(t, a%b, mc.State.Registers[0])
					}
				}
			}
		}
	}
}

func TestDecodeDoesNotMutate(t *testing.T) {
	var mc machine.Machine
	require.NoError(t, mc.LoadWords([]uint16{9, R0, R1, 7, 1, R2, 40000}))
	mc.State.Registers[1] = 12
	mc.State.Stack = []uint16{4}

	before := mc.State.Snapshot()

	inst, err := mc.Decode(0)
	require.NoError(t, err)
	assert.Equal(t, "add r0 r1 7", inst.String())
	assert.Equal(t, "add r0 12 7", inst.Resolved())
	assert.Equal(t, uint16(4), inst.Size())

	_, err = mc.Decode(4)
	require.ErrorIs(t, err, machine.ErrInvalidOperand)

	assert.Equal(t, before, mc.State.Snapshot())
}

func TestPrograms(t *testing.T) {
	t.Run("Add", func(t *testing.T) {
		var mc machine.Machine
		require.NoError(t, mc.LoadWords([]uint16{
			1, R0, 4,
			1, R1, 1,
			9, R0, R0, R1,
			0,
		}))

		require.NoError(t, mc.Run())
		assert.Equal(t, uint16(5), mc.State.Registers[0])
		assert.Equal(t, uint16(1), mc.State.Registers[1])
		assert.True(t, mc.State.Halted)
	})

	t.Run("PushPop", func(t *testing.T) {
		var mc machine.Machine
		require.NoError(t, mc.LoadWords([]uint16{2, 9, 3, R2, 0}))

		require.NoError(t, mc.Run())
		assert.Equal(t, uint16(9), mc.State.Registers[2])
		assert.Empty(t, mc.State.Stack)
	})

	t.Run("CallRet", func(t *testing.T) {
		var mc machine.Machine
		require.NoError(t, mc.LoadWords([]uint16{
			17, 5, // call 5
			1, R1, 1, // set r1 1 (return lands here)
			1, R0, 7, // set r0 7
			18, // ret
		}))

		require.NoError(t, mc.Step())
		assert.Equal(t, uint16(5), mc.State.Program)
		require.NoError(t, mc.Step())
		require.NoError(t, mc.Step())
		assert.Equal(t, uint16(2), mc.State.Program)
		assert.Empty(t, mc.State.Stack)
	})
}

func TestLoadBin(t *testing.T) {
	t.Run("LittleEndian", func(t *testing.T) {
		var mc machine.Machine
		mc.State.Registers[3] = 99

		require.NoError(t, mc.LoadBin(bytes.NewReader([]byte{0x09, 0x00, 0x00, 0x80})))
		assert.Equal(t, uint16(9), mc.State.Memory[0])
		assert.Equal(t, uint16(0x8000), mc.State.Memory[1])
		assert.Equal(t, uint16(0), mc.State.Memory[2])
		assert.Equal(t, [8]uint16{}, mc.State.Registers)
	})

	t.Run("OddSize", func(t *testing.T) {
		var mc machine.Machine
		mc.State.Memory[0] = 21

		err := mc.LoadBin(bytes.NewReader([]byte{1, 2, 3}))
		require.ErrorIs(t, err, machine.ErrInvalidImage)
		assert.Equal(t, uint16(21), mc.State.Memory[0], "state modified by a rejected image")
	})

	t.Run("Oversized", func(t *testing.T) {
		var mc machine.Machine
		err := mc.LoadBin(bytes.NewReader(make([]byte, machine.MEMORY_SIZE*2+2)))
		require.ErrorIs(t, err, machine.ErrInvalidImage)
	})

	t.Run("DumpRoundTrip", func(t *testing.T) {
		var mc machine.Machine
		require.NoError(t, mc.LoadWords([]uint16{19, 'x', 0, R7}))

		var buf bytes.Buffer
		require.NoError(t, mc.DumpMemory(&buf))
		assert.Equal(t, machine.MEMORY_SIZE*2, buf.Len())

		var other machine.Machine
		require.NoError(t, other.LoadBin(&buf))
		assert.Equal(t, mc.State.Memory, other.State.Memory)
	})
}
