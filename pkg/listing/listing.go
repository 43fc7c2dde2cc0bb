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

// Package listing prints assembled programs next to their source.
package listing

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/arch/x86/x86asm"

	"github.com/lassandro/basm/pkg/assembler"
)

var (
	bold = color.New(color.Bold)
	dim  = color.New(color.Faint)
)

// Widest byte column; longer encodings wrap onto continuation lines.
const bytesPerRow = 8

// symbolizer names text addresses for the disassembler from the text
// labels of a program.
type symbolizer struct {
	offsets []uint64
	names   []string
}

func newSymbolizer(program *assembler.Program) *symbolizer {
	s := &symbolizer{}

	entries := make([]*assembler.SymbolTableEntry, 0)
	for _, entry := range program.Symbols.Entries() {
		if entry.Section == assembler.SECTION_TEXT {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Offset < entries[j].Offset
	})

	for _, entry := range entries {
		s.offsets = append(s.offsets, entry.Offset)
		s.names = append(s.names, entry.Name)
	}

	return s
}

func (s *symbolizer) lookup(addr uint64) (string, uint64) {
	i := sort.Search(len(s.offsets), func(i int) bool {
		return s.offsets[i] > addr
	})

	if i == 0 {
		return "", 0
	}

	return s.names[i-1], s.offsets[i-1]
}

// Disassemble decodes code that starts at pc into Intel syntax, one string
// per instruction. Bytes the decoder does not understand, such as VEX
// encoded instructions, are shown as a db line.
func Disassemble(code []byte, pc uint64, program *assembler.Program) []string {
	var symname x86asm.SymLookup
	if program != nil {
		symname = newSymbolizer(program).lookup
	}

	var out []string

	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil || inst.Len == 0 {
			out = append(out, "db "+hexList(code, ", ", "0x"))
			break
		}

		out = append(out, x86asm.IntelSyntax(inst, pc, symname))

		code = code[inst.Len:]
		pc += uint64(inst.Len)
	}

	return out
}

func hexList(data []byte, sep, prefix string) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%s%02x", prefix, b)
	}

	return strings.Join(parts, sep)
}

// PrintSource writes every source line prefixed with the section offset
// and bytes of the statement it produced. Lines that produced no bytes get
// a placeholder column. When disassemble is set, text statements are
// followed by the decoder's reading of their bytes.
func PrintSource(
	w io.Writer, source io.Reader, program *assembler.Program, disassemble bool,
) error {
	records := make(map[int]assembler.Record)
	for _, record := range program.Records {
		records[record.Position.Line] = record
	}

	scanner := bufio.NewScanner(source)
	scanner.Split(bufio.ScanLines)

	placeholder := strings.Repeat("~", 10)
	blank := strings.Repeat(" ", bytesPerRow*3)

	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()

		record, exists := records[line]
		if !exists {
			fmt.Fprintf(w, "%s %s %s\n", dim.Sprint(placeholder), blank, text)
			continue
		}

		data := program.Section(record.Section).Bytes()
		var code []byte
		if data != nil {
			code = data[record.Offset : record.Offset+record.Size]
		}

		address := bold.Sprintf("[%#06x]", record.Offset)

		for row := 0; row == 0 || row*bytesPerRow < len(code); row++ {
			end := min(len(code), (row+1)*bytesPerRow)
			column := hexList(code[row*bytesPerRow:end], " ", "")
			column += strings.Repeat(" ", len(blank)-len(column))

			if row == 0 {
				fmt.Fprintf(w, "%s %s %s\n", address, column, text)
			} else {
				fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", 10), column)
			}
		}

		if disassemble && record.Section == assembler.SECTION_TEXT {
			for _, inst := range Disassemble(code, record.Offset, program) {
				fmt.Fprintf(w, "%s %s ; %s\n",
					strings.Repeat(" ", 10), blank, dim.Sprint(inst))
			}
		}
	}

	return scanner.Err()
}

// PrintMem dumps count bytes of a section starting at addr, sixteen per
// row. Zero bytes are dimmed and bss sections read as zero.
func PrintMem(w io.Writer, section *assembler.Section, addr, count uint64) {
	data := section.Bytes()

	end := min(addr+count, section.Size())

	for i := addr; i < end; i++ {
		if i == addr {
			fmt.Fprint(w, bold.Sprintf("[%#06x]", i), " ")
		} else if (i-addr)%16 == 0 {
			fmt.Fprintln(w)
			fmt.Fprint(w, bold.Sprintf("[%#06x]", i), " ")
		}

		var value byte
		if data != nil {
			value = data[i]
		}

		if value == 0 {
			fmt.Fprint(w, dim.Sprintf("%02x", value), " ")
		} else {
			fmt.Fprintf(w, "%02x ", value)
		}
	}

	if end > addr {
		fmt.Fprintln(w)
	}
}
