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

package listing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/basm/pkg/assembler"
	"github.com/lassandro/basm/pkg/source"
)

func init() {
	color.NoColor = true
}

func assemble(t *testing.T, input string) *assembler.Program {
	t.Helper()

	statements, errs := source.ParseString(input)
	require.Empty(t, errs)

	program, err := assembler.Assemble(statements)
	require.NoError(t, err)

	return program
}

func TestDisassemble(t *testing.T) {
	code := []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0xC3}
	assert.Equal(t, []string{"mov eax, 0x1", "ret"}, Disassemble(code, 0, nil))

	truncated := []byte{0xB8, 0x01}
	assert.Equal(t, []string{"db 0xb8, 0x01"}, Disassemble(truncated, 0, nil))

	assert.Empty(t, Disassemble(nil, 0, nil))
}

func TestSymbolizer(t *testing.T) {
	program := assemble(t, "first: nop\nnop\nsecond: ret\nsection .data\nvalue: db 1")
	s := newSymbolizer(program)

	name, base := s.lookup(1)
	assert.Equal(t, "first", name)
	assert.Equal(t, uint64(0), base)

	name, base = s.lookup(2)
	assert.Equal(t, "second", name)
	assert.Equal(t, uint64(2), base)

	empty := newSymbolizer(assemble(t, "nop"))
	name, _ = empty.lookup(0)
	assert.Equal(t, "", name)
}

func TestPrintSource(t *testing.T) {
	input := "start:\n  mov eax, 1\n  mov rax, 0x100000000\n  ret\n"
	program := assemble(t, input)

	var out bytes.Buffer
	require.NoError(t, PrintSource(&out, strings.NewReader(input), program, false))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 5)

	assert.True(t, strings.HasPrefix(lines[0], "~~~~~~~~~~"))
	assert.True(t, strings.HasSuffix(lines[0], "start:"))

	assert.Contains(t, lines[1], "b8 01 00 00 00")
	assert.True(t, strings.HasSuffix(lines[1], "mov eax, 1"))

	assert.Contains(t, lines[2], "48 b8 00 00 00 00 01 00")
	assert.True(t, strings.HasSuffix(lines[2], "mov rax, 0x100000000"))
	assert.Equal(t, "00 00", strings.TrimSpace(lines[3]))

	assert.Contains(t, lines[4], "c3")
	assert.True(t, strings.HasSuffix(lines[4], "ret"))
}

func TestPrintSourceDisassembly(t *testing.T) {
	input := "mov eax, 1\nsection .data\ndb 7\n"
	program := assemble(t, input)

	var out bytes.Buffer
	require.NoError(t, PrintSource(&out, strings.NewReader(input), program, true))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasSuffix(lines[1], "; mov eax, 0x1"))
	assert.Contains(t, lines[3], "07")
}

func TestPrintMem(t *testing.T) {
	section := assembler.NewSection(assembler.SECTION_DATA)
	for i := 1; i <= 20; i++ {
		section.Append(byte(i))
	}

	var out bytes.Buffer
	PrintMem(&out, section, 0, 64)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasSuffix(lines[0], "0d 0e 0f 10 "))
	assert.Contains(t, lines[1], "10]")
	assert.True(t, strings.HasSuffix(lines[1], "11 12 13 14 "))

	bss := assembler.NewSection(assembler.SECTION_BSS)
	bss.Reserve(4)

	out.Reset()
	PrintMem(&out, bss, 0, 4)
	assert.True(t, strings.HasSuffix(out.String(), "00 00 00 00 \n"))

	out.Reset()
	PrintMem(&out, bss, 8, 4)
	assert.Empty(t, out.String())
}
