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

package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/lassandro/basm/pkg/assembler"
)

type item struct {
	token assembler.Token
	terms []assembler.Token
	comma bool
}

type lexer struct {
	line   string
	cursor assembler.Cursor
	items  []item
	terms  []assembler.Token
	err    error
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentStart(c byte) bool {
	return isLetter(c) || c == '_' || c == '.' || c == '$' || c == '?'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '@'
}

func parseSize(ident string) assembler.SizeType {
	if strings.EqualFold(ident, "BYTE") {
		return assembler.SIZE_BYTE
	} else if strings.EqualFold(ident, "WORD") {
		return assembler.SIZE_WORD
	} else if strings.EqualFold(ident, "DWORD") {
		return assembler.SIZE_DWORD
	} else if strings.EqualFold(ident, "QWORD") {
		return assembler.SIZE_QWORD
	} else if strings.EqualFold(ident, "TWORD") {
		return assembler.SIZE_TWORD
	} else if strings.EqualFold(ident, "OWORD") {
		return assembler.SIZE_OWORD
	} else if strings.EqualFold(ident, "YWORD") {
		return assembler.SIZE_YWORD
	}

	return assembler.SIZE_NONE
}

func (l *lexer) position(start, end int) assembler.Cursor {
	return assembler.Cursor{
		Line:     l.cursor.Line,
		Column:   start + 1,
		Byte:     l.cursor.LineByte + int64(start),
		Size:     int64(end - start),
		LineByte: l.cursor.LineByte,
	}
}

func (l *lexer) emit(tokenType assembler.TokenType, start, end int) {
	token := assembler.Token{
		Type:     tokenType,
		Position: l.position(start, end),
		Value:    l.line[start:end],
	}

	if l.terms != nil {
		l.terms = append(l.terms, token)
	} else {
		l.items = append(l.items, item{token: token})
	}
}

func (l *lexer) unexpected(i int) {
	l.err = &assembler.UnexpectedCharacterError{l.position(i, i+1), rune(l.line[i])}
}

// lex splits one line into tokens. Bracket expressions become a single
// memory token carrying their inner terms.
func (l *lexer) lex() {
	line := l.line
	bracket := -1

	for i := 0; i < len(line) && l.err == nil; {
		c := line[i]

		switch {
		// Whitespace
		case c == ' ' || c == '\t' || c == '\r':
			i++

		// Comments
		case c == ';':
			i = len(line)

		// Operand Separator
		case c == ',':
			if bracket >= 0 {
				l.unexpected(i)
				break
			}

			l.items = append(l.items, item{
				token: assembler.Token{Position: l.position(i, i+1), Value: ","},
				comma: true,
			})
			i++

		// Memory Reference
		case c == '[':
			if bracket >= 0 {
				l.unexpected(i)
				break
			}

			bracket = i
			l.terms = make([]assembler.Token, 0, 4)
			i++

		case c == ']':
			if bracket < 0 {
				l.unexpected(i)
				break
			}

			l.items = append(l.items, item{
				token: assembler.Token{
					Type:     assembler.TOKEN_MEMORY,
					Position: l.position(bracket, i+1),
					Value:    line[bracket : i+1],
				},
				terms: l.terms,
			})

			l.terms = nil
			bracket = -1
			i++

		// Address Arithmetic
		case bracket >= 0 && c == '+':
			l.emit(assembler.TOKEN_PLUS, i, i+1)
			i++

		case bracket >= 0 && c == '-':
			l.emit(assembler.TOKEN_MINUS, i, i+1)
			i++

		case bracket >= 0 && c == '*':
			l.emit(assembler.TOKEN_STAR, i, i+1)
			i++

		// String Literal
		case c == '"' || c == '\'' || c == '`':
			end := -1

			for j := i + 1; j < len(line); j++ {
				if line[j] == '\\' && c != '\'' {
					j++
				} else if line[j] == c {
					end = j
					break
				}
			}

			if end < 0 {
				l.err = &assembler.InvalidStringError{l.position(i, len(line))}
				break
			}

			l.emit(assembler.TOKEN_STRING, i, end+1)
			i = end + 1

		// Numeric Literal (42, -42, 0x2A, 2Ah, 0b101010)
		case isDigit(c) || (c == '-' && i+1 < len(line) && isDigit(line[i+1])):
			j := i + 1
			for j < len(line) && (isDigit(line[j]) || isLetter(line[j]) || line[j] == '_') {
				j++
			}

			l.emit(assembler.TOKEN_LITERAL, i, j)
			i = j

		// Identifier or Label
		case isIdentStart(c):
			j := i + 1
			for j < len(line) && isIdentChar(line[j]) {
				j++
			}

			// st(i) spelling of the x87 stack registers
			if j < len(line) && line[j] == '(' && strings.EqualFold(line[i:j], "st") {
				if k := strings.IndexByte(line[j:], ')'); k > 0 {
					j += k + 1
				}
			}

			if j < len(line) && line[j] == ':' && bracket < 0 {
				l.emit(assembler.TOKEN_LABEL, i, j)
				i = j + 1
			} else {
				l.emit(assembler.TOKEN_IDENT, i, j)
				i = j
			}

		case c > 0x7F:
			l.err = &assembler.OversizedCharacterError{l.position(i, i+1)}

		default:
			l.unexpected(i)
		}
	}

	if l.err == nil && bracket >= 0 {
		l.unexpected(bracket)
	}
}

func isDataDirective(ident string) bool {
	switch assembler.ParseDirective(ident) {
	case assembler.DIRECTIVE_INVALID, assembler.DIRECTIVE_SECTION,
		assembler.DIRECTIVE_GLOBAL, assembler.DIRECTIVE_EXTERN:
		return false
	}

	return true
}

// statement groups the tokens of a line into label, keyword and operands.
func (l *lexer) statement() (*assembler.Statement, error) {
	items := l.items

	if len(items) == 0 {
		return nil, nil
	}

	stmt := &assembler.Statement{Position: items[0].token.Position}

	// Labels: "name:" anywhere, or a bare name in front of a data directive
	if items[0].token.Type == assembler.TOKEN_LABEL {
		stmt.Label = &items[0].token
		items = items[1:]
	} else if len(items) > 1 && items[0].token.Type == assembler.TOKEN_IDENT &&
		items[1].token.Type == assembler.TOKEN_IDENT &&
		isDataDirective(items[1].token.Value) {
		label := items[0].token
		label.Type = assembler.TOKEN_LABEL
		stmt.Label = &label
		items = items[1:]
	}

	if len(items) == 0 {
		return stmt, nil
	}

	if items[0].comma || items[0].token.Type != assembler.TOKEN_IDENT {
		return nil, &assembler.InvalidOperandError{
			items[0].token.Position,
			[]assembler.TokenType{assembler.TOKEN_IDENT},
			items[0].token.Type,
		}
	}

	stmt.Keyword = &items[0].token
	items = items[1:]

	if len(items) == 0 {
		return stmt, nil
	}

	var group []item

	flush := func(at assembler.Token) error {
		if len(group) == 0 {
			return &assembler.UnexpectedCharacterError{at.Position, ','}
		}

		operand := assembler.RawOperand{Token: group[0].token, Terms: group[0].terms}

		if size := parseSize(group[0].token.Value); size != assembler.SIZE_NONE &&
			group[0].token.Type == assembler.TOKEN_IDENT && len(group) > 1 {
			operand = assembler.RawOperand{
				Token: group[1].token,
				Size:  size,
				Terms: group[1].terms,
			}
			group = group[1:]
		}

		if len(group) > 1 {
			return &assembler.InvalidOperandError{
				group[1].token.Position,
				[]assembler.TokenType{assembler.TOKEN_NONE},
				group[1].token.Type,
			}
		}

		stmt.Operands = append(stmt.Operands, operand)
		group = group[:0]

		return nil
	}

	for _, it := range items {
		if it.comma {
			if err := flush(it.token); err != nil {
				return nil, err
			}

			continue
		}

		group = append(group, it)
	}

	if err := flush(items[len(items)-1].token); err != nil {
		return nil, err
	}

	return stmt, nil
}

// Parse reads assembly source line by line. Lines with errors are reported
// and skipped so every broken line shows up in one run.
func Parse(input io.Reader) (statements []assembler.Statement, errs []error) {
	scanner := bufio.NewScanner(input)
	cursor := assembler.Cursor{Line: 1}

	for scanner.Scan() {
		line := scanner.Text()
		cursor.Size = int64(len(line))

		l := lexer{line: line, cursor: cursor}
		l.lex()

		if l.err != nil {
			errs = append(errs, l.err)
		} else if stmt, err := l.statement(); err != nil {
			errs = append(errs, err)
		} else if stmt != nil {
			statements = append(statements, *stmt)
		}

		cursor.Line++
		cursor.Byte += int64(len(line) + 1)
		cursor.LineByte += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	return statements, errs
}

// ParseString is Parse over an in-memory source.
func ParseString(input string) ([]assembler.Statement, []error) {
	return Parse(strings.NewReader(input))
}
