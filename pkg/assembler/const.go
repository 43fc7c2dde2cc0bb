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

const (
	TOKEN_NONE TokenType = iota
	TOKEN_IDENT
	TOKEN_LABEL
	TOKEN_STRING
	TOKEN_LITERAL
	TOKEN_MEMORY
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
)

const (
	SIZE_NONE SizeType = iota
	SIZE_BYTE
	SIZE_WORD
	SIZE_DWORD
	SIZE_QWORD
	SIZE_TWORD
	SIZE_OWORD
	SIZE_YWORD
)

const (
	DIRECTIVE_INVALID DirectiveType = iota
	DIRECTIVE_SECTION
	DIRECTIVE_GLOBAL
	DIRECTIVE_EXTERN
	DIRECTIVE_DB
	DIRECTIVE_DW
	DIRECTIVE_DD
	DIRECTIVE_DQ
	DIRECTIVE_RESB
	DIRECTIVE_RESW
	DIRECTIVE_RESD
	DIRECTIVE_RESQ
	DIRECTIVE_REST
	DIRECTIVE_RESDQ
	DIRECTIVE_RESY
)

const (
	SECTION_TEXT      SectionType = 1
	SECTION_DATA      SectionType = 2
	SECTION_BSS       SectionType = 3
	SECTION_EXTERN    SectionType = 4
	SECTION_UNDEFINED SectionType = 255
)

const (
	VISIBILITY_LOCAL     Visibility = 0
	VISIBILITY_GLOBAL    Visibility = 1
	VISIBILITY_UNDEFINED Visibility = 255
)

// Relocation types share their numbering with ELF's R_X86_64_* values.
const (
	RELOC_NONE RelocationType = 0
	RELOC_64   RelocationType = 1
	RELOC_PC32 RelocationType = 2
	RELOC_32   RelocationType = 10
	RELOC_32S  RelocationType = 11
)

const sectionCapacity = 256
