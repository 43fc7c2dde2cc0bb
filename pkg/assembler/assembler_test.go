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

package assembler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/basm/pkg/assembler"
	"github.com/lassandro/basm/pkg/source"
)

type testCase struct {
	Name   string
	Input  string
	Output []byte
}

type failCase struct {
	Name  string
	Input string
	Error error
}

func assemble(t *testing.T, input string) (*assembler.Program, error) {
	t.Helper()

	statements, errs := source.ParseString(input)
	require.Empty(t, errs)

	return assembler.Assemble(statements)
}

func testAssemblerSuccess(t *testing.T, test *testCase) {
	program, err := assemble(t, test.Input)
	require.NoError(t, err)

	assert.Equal(
		t, test.Output, program.Text.Bytes(),
		"have: % X", program.Text.Bytes(),
	)
}

func testAssemblerFail(t *testing.T, test *failCase) {
	if test.Error == nil {
		panic("Fail case missing error value")
	}

	program, err := assemble(t, test.Input)
	require.Error(t, err)
	assert.Nil(t, program)
	assert.IsType(t, test.Error, err, err.Error())
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			name := test.Name
			if name == "" {
				name = test.Input
			}

			t.Run(name, func(t *testing.T) {
				testAssemblerSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			name := test.Name
			if name == "" {
				name = test.Input
			}

			t.Run(name, func(t *testing.T) {
				testAssemblerFail(t, &test)
			})
		}
	})
}

func TestData(t *testing.T) {
	program, err := assemble(t, `
section .data
msg:	db 'hi', 10
val:	dd 0x12345678
small	dw -2
section .bss
buf:	resq 4
pad	resb 3
section .text
	ret
`)
	require.NoError(t, err)

	assert.Equal(t,
		[]byte{0x68, 0x69, 0x0A, 0x78, 0x56, 0x34, 0x12, 0xFE, 0xFF},
		program.Data.Bytes(),
	)

	assert.Equal(t, uint64(35), program.Bss.Size())
	assert.Nil(t, program.Bss.Bytes())
	assert.Equal(t, []byte{0xC3}, program.Text.Bytes())

	symbols := []struct {
		Name    string
		Section assembler.SectionType
		Offset  uint64
	}{
		{"msg", assembler.SECTION_DATA, 0},
		{"val", assembler.SECTION_DATA, 3},
		{"small", assembler.SECTION_DATA, 7},
		{"buf", assembler.SECTION_BSS, 0},
		{"pad", assembler.SECTION_BSS, 32},
	}

	for _, want := range symbols {
		entry, ok := program.Symbols.Lookup(want.Name)
		require.True(t, ok, want.Name)
		assert.Equal(t, want.Section, entry.Section, want.Name)
		assert.Equal(t, want.Offset, entry.Offset, want.Name)
		assert.Equal(t, assembler.VISIBILITY_LOCAL, entry.Visibility, want.Name)
	}
}

func TestDataInText(t *testing.T) {
	testSuccess(t, []testCase{
		{"", "db 1, 2\ndw 0x0304\ndq -1", []byte{
			0x01, 0x02, 0x04, 0x03,
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		}},
		{"Escaped string", `db "a\tb", 0`, []byte{0x61, 0x09, 0x62, 0x00}},
	})
}

func TestRecords(t *testing.T) {
	program, err := assemble(t, "start:\n  nop\n  mov eax, 1\nsection .data\n  db 1\n")
	require.NoError(t, err)

	require.Len(t, program.Records, 3)

	assert.Equal(t, assembler.SECTION_TEXT, program.Records[0].Section)
	assert.Equal(t, uint64(0), program.Records[0].Offset)
	assert.Equal(t, uint64(1), program.Records[0].Size)
	assert.Equal(t, 2, program.Records[0].Position.Line)

	assert.Equal(t, uint64(1), program.Records[1].Offset)
	assert.Equal(t, uint64(5), program.Records[1].Size)

	assert.Equal(t, assembler.SECTION_DATA, program.Records[2].Section)
	assert.Equal(t, uint64(0), program.Records[2].Offset)
}

func TestDirectiveErrors(t *testing.T) {
	testFail(t, []failCase{
		{"Unknown section", "section .rodata2", &assembler.InvalidDirectiveError{}},
		{"Section without name", "section", &assembler.InvalidNumArgumentsError{}},
		{"Instruction in data", "section .data\nnop", &assembler.InvalidDirectiveError{}},
		{"Instruction in bss", "section .bss\nmov eax, 1", &assembler.InvalidDirectiveError{}},
		{"Reservation in text", "resb 4", &assembler.InvalidDirectiveError{}},
		{"Data in bss", "section .bss\ndb 1", &assembler.InvalidDirectiveError{}},
		{"Byte overflow", "db 256", &assembler.SizingError{}},
		{"Word underflow", "dw -32769", &assembler.SizingError{}},
		{"String in dw", "dw 'ab'", &assembler.InvalidOperandError{}},
		{"Bad literal", "dd 12q", &assembler.InvalidLiteralError{}},
		{"Global literal", "global 1", &assembler.InvalidOperandError{}},
		{"Negative reservation", "section .bss\nresb -1", &assembler.SizingError{}},
		{"Unknown mnemonic", "frob rax", &assembler.UnknownIdentifierError{}},
	})
}
