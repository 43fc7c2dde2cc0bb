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
	"strings"

	"github.com/lassandro/basm/pkg/x86"
)

type TokenType uint
type SizeType uint
type DirectiveType uint
type SectionType uint8
type Visibility uint8
type RelocationType uint32

type Cursor struct {
	Line     int
	Column   int
	Byte     int64
	Size     int64
	LineByte int64
}

type Token struct {
	Type     TokenType
	Position Cursor
	Value    string
}

// RawOperand is an operand as written in the source. Bracket expressions
// carry their inner tokens in Terms.
type RawOperand struct {
	Token Token
	Size  SizeType
	Terms []Token
}

// Statement is one source line: an optional label followed by an optional
// mnemonic or directive and its operands.
type Statement struct {
	Position Cursor
	Label    *Token
	Keyword  *Token
	Operands []RawOperand
}

// Record ties a statement to the bytes it produced.
type Record struct {
	Position Cursor
	Section  SectionType
	Offset   uint64
	Size     uint64
}

func (t TokenType) String() string {
	switch t {
	case TOKEN_NONE:
		return "Separator"
	case TOKEN_IDENT:
		return "Identifier"
	case TOKEN_LABEL:
		return "Label"
	case TOKEN_STRING:
		return "String"
	case TOKEN_LITERAL:
		return "Literal"
	case TOKEN_MEMORY:
		return "Memory"
	case TOKEN_PLUS:
		return "+"
	case TOKEN_MINUS:
		return "-"
	case TOKEN_STAR:
		return "*"
	}

	return "<invalid>"
}

func (s SizeType) Bits() int {
	switch s {
	case SIZE_BYTE:
		return 8
	case SIZE_WORD:
		return 16
	case SIZE_DWORD:
		return 32
	case SIZE_QWORD:
		return 64
	case SIZE_TWORD:
		return 80
	case SIZE_OWORD:
		return 128
	case SIZE_YWORD:
		return 256
	}

	return 0
}

func (s SectionType) String() string {
	switch s {
	case SECTION_TEXT:
		return ".text"
	case SECTION_DATA:
		return ".data"
	case SECTION_BSS:
		return ".bss"
	case SECTION_EXTERN:
		return "extern"
	}

	return "undefined"
}

type TokenError interface {
	GetPosition() Cursor
}

type InvalidOperandError struct {
	Position Cursor
	Required []TokenType
	Received TokenType
}

func (err *InvalidOperandError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidOperandError) Error() string {
	var requiredString string

	requiredStrings := make([]string, 0, len(err.Required))

	for _, tokenType := range err.Required {
		requiredStrings = append(requiredStrings, tokenType.String())
	}

	if count := len(requiredStrings); count == 1 {
		requiredString = requiredStrings[0]
	} else if count == 2 {
		requiredString = requiredStrings[0] + " or " + requiredStrings[1]
	} else if count > 2 {
		requiredString = strings.Join(
			requiredStrings[:len(requiredStrings)-1], ", ",
		) + ", or " + requiredStrings[len(requiredStrings)-1]
	}

	return fmt.Sprintf(
		"%02d:%02d: Invalid operands\n\twant:%s\n\thave:%s",
		err.Position.Line,
		err.Position.Column,
		requiredString,
		err.Received,
	)
}

type InvalidNumArgumentsError struct {
	Position Cursor
	Required int
	Received int
}

func (err *InvalidNumArgumentsError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidNumArgumentsError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid number of arguments\n\twant:%d\n\thave:%v",
		err.Position.Line,
		err.Position.Column,
		err.Required,
		err.Received,
	)
}

// SelectionError reports that no table variant accepts the operands.
type SelectionError struct {
	Position Cursor
	Mnemonic string
	Operands []x86.OperandType
}

func (err *SelectionError) GetPosition() Cursor {
	return err.Position
}

func (err *SelectionError) Error() string {
	operands := make([]string, 0, len(err.Operands))

	for _, operand := range err.Operands {
		operands = append(operands, operand.String())
	}

	return fmt.Sprintf(
		"%02d:%02d: Instruction not supported for given operands\n\thave:%s %s",
		err.Position.Line,
		err.Position.Column,
		strings.ToLower(err.Mnemonic),
		strings.Join(operands, ", "),
	)
}

// SizingError reports a value or construct that does not fit its encoding.
type SizingError struct {
	Position Cursor
	Reason   string
	Received string
}

func (err *SizingError) GetPosition() Cursor {
	return err.Position
}

func (err *SizingError) Error() string {
	if err.Received == "" {
		return fmt.Sprintf(
			"%02d:%02d: %s",
			err.Position.Line,
			err.Position.Column,
			err.Reason,
		)
	}

	return fmt.Sprintf(
		"%02d:%02d: %s\n\thave:%s",
		err.Position.Line,
		err.Position.Column,
		err.Reason,
		err.Received,
	)
}

// AddressingError reports a memory operand that cannot be encoded.
type AddressingError struct {
	Position Cursor
	Reason   string
}

func (err *AddressingError) GetPosition() Cursor {
	return err.Position
}

func (err *AddressingError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid memory reference: %s",
		err.Position.Line,
		err.Position.Column,
		err.Reason,
	)
}

type DuplicateSymbolError struct {
	Position Cursor
	Received string
}

func (err *DuplicateSymbolError) GetPosition() Cursor {
	return err.Position
}

func (err *DuplicateSymbolError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Redeclaration of symbol '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UndefinedSymbolError struct {
	Position Cursor
	Received string
}

func (err *UndefinedSymbolError) GetPosition() Cursor {
	return err.Position
}

func (err *UndefinedSymbolError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Symbol '%s' used but never defined",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type InvalidDirectiveError struct {
	Position Cursor
	Received string
	Reason   string
}

func (err *InvalidDirectiveError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidDirectiveError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid use of '%s': %s",
		err.Position.Line,
		err.Position.Column,
		err.Received,
		err.Reason,
	)
}

type InvalidLiteralError struct {
	Position Cursor
}

func (err *InvalidLiteralError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidLiteralError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid numeric literal",
		err.Position.Line,
		err.Position.Column,
	)
}

type InvalidStringError struct {
	Position Cursor
}

func (err *InvalidStringError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidStringError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid string literal",
		err.Position.Line,
		err.Position.Column,
	)
}

type UnexpectedCharacterError struct {
	Position Cursor
	Received rune
}

func (err *UnexpectedCharacterError) GetPosition() Cursor {
	return err.Position
}

func (err *UnexpectedCharacterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unexpected character %c",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type OversizedCharacterError struct {
	Position Cursor
}

func (err *OversizedCharacterError) GetPosition() Cursor {
	return err.Position
}

func (err *OversizedCharacterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Character exceeds ASCII limit",
		err.Position.Line,
		err.Position.Column,
	)
}

type UnknownIdentifierError struct {
	Position Cursor
	Received string
}

func (err *UnknownIdentifierError) GetPosition() Cursor {
	return err.Position
}

func (err *UnknownIdentifierError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unknown identifier '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}
