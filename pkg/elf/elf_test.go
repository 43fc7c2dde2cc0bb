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

package elf_test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/basm/pkg/assembler"
	basmelf "github.com/lassandro/basm/pkg/elf"
	"github.com/lassandro/basm/pkg/source"
)

const program = `
global _start
extern puts

section .data
pad:	db 0, 0
msg:	db 'hello', 0

section .bss
buf:	resb 64

section .text
_start:
	lea rdi, [rel msg]
	call puts
	mov eax, [buf+8]
	call local
	ret
local:
	ret
`

func build(t *testing.T, input string) (*assembler.Program, *elf.File) {
	t.Helper()

	statements, errs := source.ParseString(input)
	require.Empty(t, errs)

	prog, err := assembler.Assemble(statements)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, basmelf.Write(&out, prog))

	file, err := elf.NewFile(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	return prog, file
}

func TestHeader(t *testing.T) {
	_, file := build(t, program)

	assert.Equal(t, elf.ELFCLASS64, file.Class)
	assert.Equal(t, elf.ELFDATA2LSB, file.Data)
	assert.Equal(t, elf.ET_REL, file.Type)
	assert.Equal(t, elf.EM_X86_64, file.Machine)

	var names []string
	for _, section := range file.Sections {
		names = append(names, section.Name)
	}

	assert.Equal(t, []string{
		"", ".text", ".data", ".bss", ".symtab", ".strtab", ".rela.text",
		".shstrtab",
	}, names)
}

func TestSections(t *testing.T) {
	prog, file := build(t, program)

	text, err := file.Section(".text").Data()
	require.NoError(t, err)
	assert.Equal(t, prog.Text.Bytes(), text)

	data, err := file.Section(".data").Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'h', 'e', 'l', 'l', 'o', 0}, data)

	bss := file.Section(".bss")
	assert.Equal(t, elf.SHT_NOBITS, bss.Type)
	assert.Equal(t, uint64(64), bss.Size)

	assert.Equal(t, elf.SHF_ALLOC|elf.SHF_EXECINSTR, file.Section(".text").Flags)
	assert.Equal(t, uint64(0), file.Section(".text").Offset%16)
}

func TestSymbols(t *testing.T) {
	_, file := build(t, program)

	symbols, err := file.Symbols()
	require.NoError(t, err)

	byName := make(map[string]elf.Symbol)
	for _, symbol := range symbols {
		if symbol.Name != "" {
			byName[symbol.Name] = symbol
		}
	}

	start := byName["_start"]
	assert.Equal(t, elf.STB_GLOBAL, elf.ST_BIND(start.Info))
	assert.Equal(t, elf.SectionIndex(1), start.Section)
	assert.Equal(t, uint64(0), start.Value)

	puts := byName["puts"]
	assert.Equal(t, elf.STB_GLOBAL, elf.ST_BIND(puts.Info))
	assert.Equal(t, elf.SHN_UNDEF, puts.Section)

	msg := byName["msg"]
	assert.Equal(t, elf.STB_LOCAL, elf.ST_BIND(msg.Info))
	assert.Equal(t, elf.SectionIndex(2), msg.Section)
	assert.Equal(t, uint64(2), msg.Value)

	buf := byName["buf"]
	assert.Equal(t, elf.SectionIndex(3), buf.Section)

	// Locals come first and sh_info marks the first global.
	symtab := file.Section(".symtab")
	first := int(symtab.Info)

	for i, symbol := range symbols {
		// Symbols() skips the null entry.
		global := elf.ST_BIND(symbol.Info) == elf.STB_GLOBAL
		assert.Equal(t, i+1 >= first, global, symbol.Name)
	}
}

func TestRelocations(t *testing.T) {
	prog, file := build(t, program)

	section := file.Section(".rela.text")
	assert.Equal(t, elf.SHT_RELA, section.Type)
	assert.Equal(t, uint32(1), section.Info)

	data, err := section.Data()
	require.NoError(t, err)

	relocations := make([]elf.Rela64, len(data)/24)
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.LittleEndian, relocations))

	symbols, err := file.Symbols()
	require.NoError(t, err)

	name := func(rela elf.Rela64) string {
		index := elf.R_SYM64(rela.Info)
		return symbols[index-1].Name
	}

	// The call to local is resolved in place and needs no relocation.
	require.Len(t, relocations, 3)

	// lea rdi, [rel msg] against .data with msg's offset folded in
	assert.Equal(t, uint64(3), relocations[0].Off)
	assert.Equal(t, elf.R_X86_64_PC32, elf.R_X86_64(elf.R_TYPE64(relocations[0].Info)))
	assert.Equal(t, uint32(2), elf.R_SYM64(relocations[0].Info))
	assert.Equal(t, int64(2-4), relocations[0].Addend)

	// call puts
	assert.Equal(t, uint64(8), relocations[1].Off)
	assert.Equal(t, elf.R_X86_64_PC32, elf.R_X86_64(elf.R_TYPE64(relocations[1].Info)))
	assert.Equal(t, "puts", name(relocations[1]))
	assert.Equal(t, int64(-4), relocations[1].Addend)

	// mov eax, [buf+8] against .bss
	assert.Equal(t, uint64(15), relocations[2].Off)
	assert.Equal(t, elf.R_X86_64_32S, elf.R_X86_64(elf.R_TYPE64(relocations[2].Info)))
	assert.Equal(t, uint32(3), elf.R_SYM64(relocations[2].Info))
	assert.Equal(t, int64(8), relocations[2].Addend)

	text := prog.Text.Bytes()
	assert.Equal(t, []byte{0xE8, 0x01, 0x00, 0x00, 0x00}, text[19:24])
}

func TestEmpty(t *testing.T) {
	_, file := build(t, "")

	text := file.Section(".text")
	assert.Equal(t, uint64(0), text.Size)

	rela := file.Section(".rela.text")
	assert.Equal(t, uint64(0), rela.Size)
}
