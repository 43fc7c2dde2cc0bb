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

	"github.com/lassandro/basm/pkg/encoding"
)

// Section is a growable output buffer. Bss sections only track their size.
// Slices returned by Bytes are invalidated by later appends.
type Section struct {
	Type SectionType
	data []byte
	size uint64
}

func NewSection(sectionType SectionType) *Section {
	section := &Section{Type: sectionType}

	if sectionType != SECTION_BSS {
		section.data = make([]byte, 0, sectionCapacity)
	}

	return section
}

func (s *Section) grow(count int) {
	if len(s.data)+count <= cap(s.data) {
		return
	}

	capacity := cap(s.data)
	if capacity == 0 {
		capacity = sectionCapacity
	}

	for capacity < len(s.data)+count {
		capacity *= 2
	}

	data := make([]byte, len(s.data), capacity)
	copy(data, s.data)
	s.data = data
}

// Append writes bytes at the end of the section and returns their offset.
func (s *Section) Append(bytes ...byte) uint64 {
	offset := s.Size()

	s.grow(len(bytes))
	s.data = append(s.data, bytes...)
	s.size = uint64(len(s.data))

	return offset
}

// AppendValue writes width bytes of value in little-endian order.
func (s *Section) AppendValue(value uint64, width int) uint64 {
	offset := s.Size()

	s.grow(width)
	s.data = encoding.AppendLittleEndian(s.data, value, width)
	s.size = uint64(len(s.data))

	return offset
}

// Reserve grows a bss section by count bytes and returns the old size.
func (s *Section) Reserve(count uint64) uint64 {
	offset := s.size
	s.size += count
	return offset
}

// Patch overwrites width bytes at offset with value.
func (s *Section) Patch(offset uint64, value uint64, width int) error {
	if offset+uint64(width) > uint64(len(s.data)) {
		return fmt.Errorf(
			"patch of %d bytes at %#x outside %s (size %#x)",
			width, offset, s.Type, len(s.data),
		)
	}

	encoding.PutLittleEndian(s.data[offset:], value, width)

	return nil
}

func (s *Section) Bytes() []byte {
	return s.data
}

func (s *Section) Size() uint64 {
	return s.size
}

func (s *Section) Capacity() int {
	return cap(s.data)
}

// Program is the output of one assembly run.
type Program struct {
	Text    *Section
	Data    *Section
	Bss     *Section
	Symbols *SymbolTable
	Records []Record
}

func NewProgram() *Program {
	return &Program{
		Text:    NewSection(SECTION_TEXT),
		Data:    NewSection(SECTION_DATA),
		Bss:     NewSection(SECTION_BSS),
		Symbols: NewSymbolTable(),
	}
}

func (p *Program) Section(sectionType SectionType) *Section {
	switch sectionType {
	case SECTION_TEXT:
		return p.Text
	case SECTION_DATA:
		return p.Data
	case SECTION_BSS:
		return p.Bss
	}

	return nil
}
