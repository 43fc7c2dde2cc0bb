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
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/basm/pkg/encoding"
)

// ParseDirective recognises directive keywords, ignoring case.
func ParseDirective(ident string) DirectiveType {
	if strings.EqualFold(ident, "SECTION") || strings.EqualFold(ident, "SEGMENT") {
		return DIRECTIVE_SECTION
	} else if strings.EqualFold(ident, "GLOBAL") {
		return DIRECTIVE_GLOBAL
	} else if strings.EqualFold(ident, "EXTERN") {
		return DIRECTIVE_EXTERN
	} else if strings.EqualFold(ident, "DB") {
		return DIRECTIVE_DB
	} else if strings.EqualFold(ident, "DW") {
		return DIRECTIVE_DW
	} else if strings.EqualFold(ident, "DD") {
		return DIRECTIVE_DD
	} else if strings.EqualFold(ident, "DQ") {
		return DIRECTIVE_DQ
	} else if strings.EqualFold(ident, "RESB") {
		return DIRECTIVE_RESB
	} else if strings.EqualFold(ident, "RESW") {
		return DIRECTIVE_RESW
	} else if strings.EqualFold(ident, "RESD") {
		return DIRECTIVE_RESD
	} else if strings.EqualFold(ident, "RESQ") {
		return DIRECTIVE_RESQ
	} else if strings.EqualFold(ident, "REST") {
		return DIRECTIVE_REST
	} else if strings.EqualFold(ident, "RESDQ") || strings.EqualFold(ident, "RESO") {
		return DIRECTIVE_RESDQ
	} else if strings.EqualFold(ident, "RESY") {
		return DIRECTIVE_RESY
	}

	return DIRECTIVE_INVALID
}

func parseSection(ident string) SectionType {
	switch strings.ToLower(strings.TrimPrefix(ident, ".")) {
	case "text":
		return SECTION_TEXT
	case "data":
		return SECTION_DATA
	case "bss":
		return SECTION_BSS
	}

	return SECTION_UNDEFINED
}

// Unit sizes of the data and reservation directives, in bytes.
var directiveWidths = map[DirectiveType]int{
	DIRECTIVE_DB:    1,
	DIRECTIVE_DW:    2,
	DIRECTIVE_DD:    4,
	DIRECTIVE_DQ:    8,
	DIRECTIVE_RESB:  1,
	DIRECTIVE_RESW:  2,
	DIRECTIVE_RESD:  4,
	DIRECTIVE_RESQ:  8,
	DIRECTIVE_REST:  10,
	DIRECTIVE_RESDQ: 16,
	DIRECTIVE_RESY:  32,
}

func parseString(token Token) ([]byte, error) {
	value := token.Value

	if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
		return []byte(value[1 : len(value)-1]), nil
	}

	s, err := strconv.Unquote(value)
	if err != nil {
		return nil, &InvalidStringError{token.Position}
	}

	return []byte(s), nil
}

// Assembler turns statements into a Program in a single forward pass
// followed by one symbol resolution pass. The first error stops it.
type Assembler struct {
	Logger logrus.FieldLogger

	program *Program
	section SectionType
}

func New(logger logrus.FieldLogger) *Assembler {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &Assembler{Logger: logger}
}

// Assemble runs a fresh assembler with logging disabled.
func Assemble(statements []Statement) (*Program, error) {
	return New(nil).Assemble(statements)
}

func (a *Assembler) Assemble(statements []Statement) (*Program, error) {
	a.program = NewProgram()
	a.section = SECTION_TEXT

	defer func() {
		a.program = nil
	}()

	for i := range statements {
		if err := a.statement(&statements[i]); err != nil {
			return nil, err
		}
	}

	if err := a.program.Symbols.Resolve(a.program.Text); err != nil {
		return nil, err
	}

	a.Logger.WithFields(logrus.Fields{
		"text":    a.program.Text.Size(),
		"data":    a.program.Data.Size(),
		"bss":     a.program.Bss.Size(),
		"symbols": len(a.program.Symbols.Entries()),
	}).Debug("Assembled program")

	return a.program, nil
}

func (a *Assembler) current() *Section {
	return a.program.Section(a.section)
}

func (a *Assembler) statement(stmt *Statement) error {
	section := a.section
	start := a.current().Size()

	if stmt.Label != nil {
		err := a.program.Symbols.Define(
			stmt.Label.Value, a.section, start, stmt.Label.Position,
		)

		if err != nil {
			return err
		}
	}

	if stmt.Keyword == nil {
		return nil
	}

	var err error

	if directive := ParseDirective(stmt.Keyword.Value); directive != DIRECTIVE_INVALID {
		err = a.directive(directive, stmt)
	} else {
		err = a.instruction(stmt)
	}

	if err != nil {
		return err
	}

	if a.section == section {
		if end := a.current().Size(); end > start {
			a.program.Records = append(a.program.Records, Record{
				Position: stmt.Position,
				Section:  section,
				Offset:   start,
				Size:     end - start,
			})
		}
	}

	return nil
}

func (a *Assembler) instruction(stmt *Statement) error {
	keyword := stmt.Keyword

	if a.section != SECTION_TEXT {
		return &InvalidDirectiveError{
			keyword.Position, keyword.Value, "instructions belong in .text",
		}
	}

	operands := make([]Operand, 0, len(stmt.Operands))

	for _, raw := range stmt.Operands {
		op, err := Classify(raw)
		if err != nil {
			return err
		}

		operands = append(operands, op)
	}

	variant, err := FindVariant(*keyword, operands)
	if err != nil {
		return err
	}

	inst, err := Encode(variant, operands)
	if err != nil {
		return err
	}

	offset := a.Emit(inst)

	a.Logger.WithFields(logrus.Fields{
		"mnemonic": variant.String(),
		"offset":   offset,
		"bytes":    fmt.Sprintf("% X", inst.Bytes),
	}).Debug("Encoded instruction")

	return nil
}

// Emit appends an encoded instruction to the text section and records its
// symbol references.
func (a *Assembler) Emit(inst *Instruction) uint64 {
	offset := a.program.Text.Append(inst.Bytes...)
	next := offset + uint64(len(inst.Bytes))

	for _, fixup := range inst.Fixups {
		a.program.Symbols.Reference(fixup.Symbol, SymbolInstance{
			Offset:     offset + uint64(fixup.Offset),
			Next:       next,
			Width:      fixup.Width,
			Addend:     fixup.Addend,
			IsRelative: fixup.Relative,
			Type:       fixup.Type,
			Position:   fixup.Position,
		})
	}

	return offset
}

func (a *Assembler) directive(directive DirectiveType, stmt *Statement) error {
	keyword := stmt.Keyword
	operands := stmt.Operands

	switch directive {
	// section .text|.data|.bss
	case DIRECTIVE_SECTION:
		if count := len(operands); count != 1 {
			return &InvalidNumArgumentsError{keyword.Position, 1, count}
		}

		name := operands[0].Token

		if name.Type != TOKEN_IDENT {
			return &InvalidOperandError{
				name.Position, []TokenType{TOKEN_IDENT}, name.Type,
			}
		}

		section := parseSection(name.Value)
		if section == SECTION_UNDEFINED {
			return &InvalidDirectiveError{
				name.Position, keyword.Value, "unknown section " + name.Value,
			}
		}

		a.section = section

	// global name, ...
	// extern name, ...
	case DIRECTIVE_GLOBAL, DIRECTIVE_EXTERN:
		if len(operands) == 0 {
			return &InvalidNumArgumentsError{keyword.Position, 1, 0}
		}

		for _, operand := range operands {
			name := operand.Token

			if name.Type != TOKEN_IDENT {
				return &InvalidOperandError{
					name.Position, []TokenType{TOKEN_IDENT}, name.Type,
				}
			}

			var err error

			if directive == DIRECTIVE_GLOBAL {
				err = a.program.Symbols.DeclareGlobal(name.Value, name.Position)
			} else {
				err = a.program.Symbols.DeclareExtern(name.Value, name.Position)
			}

			if err != nil {
				return err
			}
		}

	// db/dw/dd/dq value, ...
	case DIRECTIVE_DB, DIRECTIVE_DW, DIRECTIVE_DD, DIRECTIVE_DQ:
		if a.section == SECTION_BSS {
			return &InvalidDirectiveError{
				keyword.Position, keyword.Value, "initialized data in .bss",
			}
		}

		if len(operands) == 0 {
			return &InvalidNumArgumentsError{keyword.Position, 1, 0}
		}

		width := directiveWidths[directive]
		section := a.current()

		for _, operand := range operands {
			token := operand.Token

			switch {
			case token.Type == TOKEN_STRING && directive == DIRECTIVE_DB:
				bytes, err := parseString(token)
				if err != nil {
					return err
				}

				section.Append(bytes...)

			case token.Type == TOKEN_LITERAL:
				value, negative, err := encoding.DecodeLiteral(token.Value)
				if err != nil {
					return &InvalidLiteralError{token.Position}
				}

				bits := uint(width * 8)

				if (negative && !encoding.FitsSigned(value, bits)) ||
					(!negative && !encoding.FitsUnsigned(value, bits)) {
					return &SizingError{
						token.Position,
						fmt.Sprintf("Literal exceeds %d bits", bits),
						token.Value,
					}
				}

				section.AppendValue(value, width)

			default:
				required := []TokenType{TOKEN_LITERAL}
				if directive == DIRECTIVE_DB {
					required = append(required, TOKEN_STRING)
				}

				return &InvalidOperandError{token.Position, required, token.Type}
			}
		}

	// resb/resw/resd/resq/rest/resdq/resy count
	default:
		if a.section != SECTION_BSS {
			return &InvalidDirectiveError{
				keyword.Position, keyword.Value, "reservations belong in .bss",
			}
		}

		if count := len(operands); count != 1 {
			return &InvalidNumArgumentsError{keyword.Position, 1, count}
		}

		token := operands[0].Token

		if token.Type != TOKEN_LITERAL {
			return &InvalidOperandError{
				token.Position, []TokenType{TOKEN_LITERAL}, token.Type,
			}
		}

		count, negative, err := encoding.DecodeLiteral(token.Value)
		if err != nil {
			return &InvalidLiteralError{token.Position}
		}

		if negative || !encoding.FitsUnsigned(count, 32) {
			return &SizingError{
				token.Position, "Reservation count out of range", token.Value,
			}
		}

		a.program.Bss.Reserve(count * uint64(directiveWidths[directive]))
	}

	return nil
}
