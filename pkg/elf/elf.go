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

// Package elf writes an assembled program as an ELF64 relocatable object.
package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/lassandro/basm/pkg/assembler"
)

// Section header indices. .rela.text is always present, even when empty,
// so the layout is fixed.
const (
	shNull = iota
	shText
	shData
	shBss
	shSymtab
	shStrtab
	shRelaText
	shShstrtab
	shCount
)

// Symbol table indices of the section symbols, which follow the null
// symbol.
const (
	symText = iota + 1
	symData
	symBss
	symFirstLabel
)

const (
	headerSize  = 64
	sectionSize = 64
	symbolSize  = 24
	relaSize    = 24
)

var relocationTypes = map[assembler.RelocationType]elf.R_X86_64{
	assembler.RELOC_64:   elf.R_X86_64_64,
	assembler.RELOC_PC32: elf.R_X86_64_PC32,
	assembler.RELOC_32:   elf.R_X86_64_32,
	assembler.RELOC_32S:  elf.R_X86_64_32S,
}

var sectionIndices = map[assembler.SectionType]uint16{
	assembler.SECTION_TEXT:   shText,
	assembler.SECTION_DATA:   shData,
	assembler.SECTION_BSS:    shBss,
	assembler.SECTION_EXTERN: uint16(elf.SHN_UNDEF),
}

var sectionSymbols = map[assembler.SectionType]uint32{
	assembler.SECTION_TEXT: symText,
	assembler.SECTION_DATA: symData,
	assembler.SECTION_BSS:  symBss,
}

type stringTable struct {
	data  bytes.Buffer
	index map[string]uint32
}

func newStringTable() *stringTable {
	table := &stringTable{index: make(map[string]uint32)}
	table.data.WriteByte(0)
	table.index[""] = 0
	return table
}

func (t *stringTable) add(s string) uint32 {
	if offset, ok := t.index[s]; ok {
		return offset
	}

	offset := uint32(t.data.Len())
	t.data.WriteString(s)
	t.data.WriteByte(0)
	t.index[s] = offset

	return offset
}

// object collects the contents of each output section before layout.
type object struct {
	program *assembler.Program

	strtab   *stringTable
	shstrtab *stringTable

	symbols     []elf.Sym64
	symbolIndex map[string]uint32
	firstGlobal uint32

	relocations []elf.Rela64
}

func (o *object) buildSymbols() {
	o.symbols = make([]elf.Sym64, symFirstLabel)
	o.symbolIndex = make(map[string]uint32)

	for _, section := range []assembler.SectionType{
		assembler.SECTION_TEXT, assembler.SECTION_DATA, assembler.SECTION_BSS,
	} {
		o.symbols[sectionSymbols[section]] = elf.Sym64{
			Info:  elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION),
			Shndx: sectionIndices[section],
		}
	}

	// ELF requires every local symbol to precede the globals.
	for _, global := range []bool{false, true} {
		if global {
			o.firstGlobal = uint32(len(o.symbols))
		}

		for _, entry := range o.program.Symbols.Entries() {
			if (entry.Visibility == assembler.VISIBILITY_GLOBAL) != global {
				continue
			}

			bind := elf.STB_LOCAL
			if global {
				bind = elf.STB_GLOBAL
			}

			var value uint64
			if entry.Section != assembler.SECTION_EXTERN {
				value = entry.Offset
			}

			o.symbolIndex[entry.Name] = uint32(len(o.symbols))
			o.symbols = append(o.symbols, elf.Sym64{
				Name:  o.strtab.add(entry.Name),
				Info:  elf.ST_INFO(bind, elf.STT_NOTYPE),
				Shndx: sectionIndices[entry.Section],
				Value: value,
			})
		}
	}
}

// buildRelocations turns the references the assembler could not resolve
// into .rela.text entries. Local symbols are relocated against their
// section symbol with the symbol offset folded into the addend.
func (o *object) buildRelocations() error {
	for _, entry := range o.program.Symbols.Entries() {
		for _, instance := range entry.Instances {
			kind, ok := relocationTypes[instance.Type]
			if !ok {
				return fmt.Errorf(
					"%02d:%02d: reference to '%s' has no relocation type",
					instance.Position.Line, instance.Position.Column, entry.Name,
				)
			}

			symbol := o.symbolIndex[entry.Name]
			addend := instance.Addend

			if entry.Visibility != assembler.VISIBILITY_GLOBAL {
				symbol = sectionSymbols[entry.Section]
				addend += int64(entry.Offset)
			}

			// The CPU adds the displacement to the address of the next
			// instruction, the relocation is computed from the field itself.
			if instance.IsRelative {
				addend -= int64(instance.Next - instance.Offset)
			}

			o.relocations = append(o.relocations, elf.Rela64{
				Off:    instance.Offset,
				Info:   elf.R_INFO(symbol, uint32(kind)),
				Addend: addend,
			})
		}
	}

	sort.SliceStable(o.relocations, func(i, j int) bool {
		return o.relocations[i].Off < o.relocations[j].Off
	})

	return nil
}

func align(offset, alignment uint64) uint64 {
	return (offset + alignment - 1) &^ (alignment - 1)
}

// Write encodes program as an ELF64 x86-64 relocatable object.
func Write(w io.Writer, program *assembler.Program) error {
	o := &object{
		program:  program,
		strtab:   newStringTable(),
		shstrtab: newStringTable(),
	}

	o.buildSymbols()

	if err := o.buildRelocations(); err != nil {
		return err
	}

	var symtab, rela bytes.Buffer

	if err := binary.Write(&symtab, binary.LittleEndian, o.symbols); err != nil {
		return err
	}

	if err := binary.Write(&rela, binary.LittleEndian, o.relocations); err != nil {
		return err
	}

	headers := make([]elf.Section64, shCount)

	headers[shText] = elf.Section64{
		Name:      o.shstrtab.add(".text"),
		Type:      uint32(elf.SHT_PROGBITS),
		Flags:     uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
		Addralign: 16,
	}

	headers[shData] = elf.Section64{
		Name:      o.shstrtab.add(".data"),
		Type:      uint32(elf.SHT_PROGBITS),
		Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
		Addralign: 8,
	}

	headers[shBss] = elf.Section64{
		Name:      o.shstrtab.add(".bss"),
		Type:      uint32(elf.SHT_NOBITS),
		Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
		Size:      program.Bss.Size(),
		Addralign: 8,
	}

	headers[shSymtab] = elf.Section64{
		Name:      o.shstrtab.add(".symtab"),
		Type:      uint32(elf.SHT_SYMTAB),
		Link:      shStrtab,
		Info:      o.firstGlobal,
		Addralign: 8,
		Entsize:   symbolSize,
	}

	headers[shStrtab] = elf.Section64{
		Name:      o.shstrtab.add(".strtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Addralign: 1,
	}

	headers[shRelaText] = elf.Section64{
		Name:      o.shstrtab.add(".rela.text"),
		Type:      uint32(elf.SHT_RELA),
		Flags:     uint64(elf.SHF_INFO_LINK),
		Link:      shSymtab,
		Info:      shText,
		Addralign: 8,
		Entsize:   relaSize,
	}

	headers[shShstrtab] = elf.Section64{
		Name:      o.shstrtab.add(".shstrtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Addralign: 1,
	}

	contents := map[int][]byte{
		shText:     program.Text.Bytes(),
		shData:     program.Data.Bytes(),
		shSymtab:   symtab.Bytes(),
		shStrtab:   o.strtab.data.Bytes(),
		shRelaText: rela.Bytes(),
		shShstrtab: o.shstrtab.data.Bytes(),
	}

	var body bytes.Buffer
	offset := uint64(headerSize)

	for i := shText; i < shCount; i++ {
		header := &headers[i]

		padded := align(offset, header.Addralign)
		body.Write(make([]byte, padded-offset))
		offset = padded

		header.Off = offset

		if data, ok := contents[i]; ok {
			header.Size = uint64(len(data))
			body.Write(data)
			offset += uint64(len(data))
		}
	}

	shoff := align(offset, 8)
	body.Write(make([]byte, shoff-offset))

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	header := elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    headerSize,
		Shentsize: sectionSize,
		Shnum:     shCount,
		Shstrndx:  shShstrtab,
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}

	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, headers)
}
