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
	"math"
)

// SymbolInstance is one reference to a symbol. Offset locates the Width
// placeholder bytes in the text section and Next is the offset of the
// instruction that follows the reference. Addend is the constant written
// next to the symbol, as in [msg+8].
type SymbolInstance struct {
	Offset     uint64
	Next       uint64
	Width      int
	Addend     int64
	IsRelative bool
	Type       RelocationType
	Position   Cursor
}

type SymbolTableEntry struct {
	Name       string
	Section    SectionType
	Visibility Visibility
	Offset     uint64
	Position   Cursor
	Instances  []SymbolInstance
}

func (e *SymbolTableEntry) Defined() bool {
	return e.Section != SECTION_UNDEFINED
}

// SymbolTable keeps entries in insertion order so that resolution and
// object output are deterministic.
type SymbolTable struct {
	entries []*SymbolTableEntry
	index   map[string]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{index: make(map[string]int)}
}

func (t *SymbolTable) Lookup(name string) (*SymbolTableEntry, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}

	return t.entries[i], true
}

func (t *SymbolTable) Entries() []*SymbolTableEntry {
	return t.entries
}

func (t *SymbolTable) entry(name string, position Cursor) *SymbolTableEntry {
	if entry, ok := t.Lookup(name); ok {
		return entry
	}

	entry := &SymbolTableEntry{
		Name:       name,
		Section:    SECTION_UNDEFINED,
		Visibility: VISIBILITY_UNDEFINED,
		Position:   position,
	}

	t.index[name] = len(t.entries)
	t.entries = append(t.entries, entry)

	return entry
}

// Define places a label at offset within section. A prior global
// declaration keeps its visibility.
func (t *SymbolTable) Define(
	name string, section SectionType, offset uint64, position Cursor,
) error {
	entry := t.entry(name, position)

	if entry.Defined() {
		return &DuplicateSymbolError{position, name}
	}

	entry.Section = section
	entry.Offset = offset
	entry.Position = position

	if entry.Visibility == VISIBILITY_UNDEFINED {
		entry.Visibility = VISIBILITY_LOCAL
	}

	return nil
}

// DeclareGlobal exports a symbol, either ahead of its definition or after
// it. The section offset of a defined symbol is unchanged.
func (t *SymbolTable) DeclareGlobal(name string, position Cursor) error {
	entry := t.entry(name, position)

	if entry.Visibility == VISIBILITY_GLOBAL || entry.Section == SECTION_EXTERN {
		return &DuplicateSymbolError{position, name}
	}

	entry.Visibility = VISIBILITY_GLOBAL

	return nil
}

// DeclareExtern marks a symbol as defined in another object.
func (t *SymbolTable) DeclareExtern(name string, position Cursor) error {
	entry := t.entry(name, position)

	if entry.Defined() || entry.Visibility != VISIBILITY_UNDEFINED {
		return &DuplicateSymbolError{position, name}
	}

	entry.Section = SECTION_EXTERN
	entry.Visibility = VISIBILITY_GLOBAL

	return nil
}

// Reference records a use of name, creating a placeholder entry if the
// symbol has not been seen yet.
func (t *SymbolTable) Reference(name string, instance SymbolInstance) {
	entry := t.entry(name, instance.Position)
	entry.Instances = append(entry.Instances, instance)
}

// Resolve patches every relative reference to a text symbol into text and
// drops it from the pending instances. What remains is left for the object
// writer as relocations.
func (t *SymbolTable) Resolve(text *Section) error {
	for _, entry := range t.entries {
		if !entry.Defined() {
			position := entry.Position

			if len(entry.Instances) > 0 {
				position = entry.Instances[0].Position
			}

			return &UndefinedSymbolError{position, entry.Name}
		}

		pending := entry.Instances[:0]

		for _, instance := range entry.Instances {
			if !instance.IsRelative || entry.Section != SECTION_TEXT {
				pending = append(pending, instance)
				continue
			}

			rel := int64(entry.Offset) + instance.Addend - int64(instance.Next)

			if rel < math.MinInt32 || rel > math.MaxInt32 {
				return &SizingError{
					instance.Position,
					"Relative reference exceeds 32 bits",
					fmt.Sprintf("%s%+d", entry.Name, rel),
				}
			}

			err := text.Patch(instance.Offset, uint64(rel), instance.Width)
			if err != nil {
				return err
			}
		}

		entry.Instances = pending
	}

	return nil
}
