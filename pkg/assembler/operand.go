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
	"strings"

	"github.com/lassandro/basm/pkg/encoding"
	"github.com/lassandro/basm/pkg/x86"
)

// Operand is a classified instruction operand. The set of implementations
// is closed.
type Operand interface {
	Type() x86.OperandType
	GetPosition() Cursor
	operand()
}

type RegisterOperand struct {
	Position Cursor
	Register x86.Register
	// REX.B when the register is extended. The encoder moves it to REX.R
	// when the register lands in the ModRM reg field.
	Rex uint8
}

type ImmediateOperand struct {
	Position Cursor
	Value    uint64
	Negative bool
	Width    x86.OperandType
}

type MemoryOperand struct {
	Position Cursor
	Base     *x86.Register
	Index    *x86.Register
	Scale    uint8
	Disp     int64
	Label    string
	Relative bool
	Size     x86.OperandType
	// Address registers are 32-bit, which takes a 0x67 prefix.
	AddressOverride bool
	Rex             uint8
}

// LabelOperand is a bare symbol name. It encodes as a rel32 target or, in a
// memory slot, as an absolute [label] reference.
type LabelOperand struct {
	Position Cursor
	Name     string
	Size     x86.OperandType
}

func (op *RegisterOperand) Type() x86.OperandType {
	switch op.Register.Class {
	case x86.CLASS_GP8:
		return x86.OPERAND_R8
	case x86.CLASS_GP16:
		return x86.OPERAND_R16
	case x86.CLASS_GP32:
		return x86.OPERAND_R32
	case x86.CLASS_GP64:
		return x86.OPERAND_R64
	case x86.CLASS_MMX:
		return x86.OPERAND_MM
	case x86.CLASS_XMM:
		return x86.OPERAND_XMM
	case x86.CLASS_YMM:
		return x86.OPERAND_YMM
	case x86.CLASS_FPU:
		return x86.OPERAND_STI
	}

	return x86.OPERAND_NONE
}

func (op *ImmediateOperand) Type() x86.OperandType {
	return op.Width
}

func (op *MemoryOperand) Type() x86.OperandType {
	return op.Size
}

func (op *LabelOperand) Type() x86.OperandType {
	return x86.OPERAND_LABEL
}

func (op *RegisterOperand) GetPosition() Cursor  { return op.Position }
func (op *ImmediateOperand) GetPosition() Cursor { return op.Position }
func (op *MemoryOperand) GetPosition() Cursor    { return op.Position }
func (op *LabelOperand) GetPosition() Cursor     { return op.Position }

func (*RegisterOperand) operand()  {}
func (*ImmediateOperand) operand() {}
func (*MemoryOperand) operand()    {}
func (*LabelOperand) operand()     {}

// Bits returns the data width of a sized general purpose or memory operand,
// or 0 for anything that does not constrain an immediate.
func operandBits(op Operand) int {
	switch op := op.(type) {
	case *RegisterOperand:
		if op.Register.IsGeneral() {
			return op.Register.Class.Bits()
		}
	case *MemoryOperand:
		if op.Size.Bits() <= 64 {
			return op.Size.Bits()
		}
	case *LabelOperand:
		if op.Size.Bits() <= 64 {
			return op.Size.Bits()
		}
	}

	return 0
}

// narrowest returns the smallest immediate width holding value as written.
func narrowest(value uint64, negative bool) x86.OperandType {
	for _, bits := range []uint{8, 16, 32} {
		if negative && encoding.FitsSigned(value, bits) {
			return x86.ImmediateType(int(bits))
		}

		if !negative && encoding.FitsUnsigned(value, bits) {
			return x86.ImmediateType(int(bits))
		}
	}

	return x86.OPERAND_IMM64
}

func classifyRegister(token Token, size SizeType) (Operand, bool, error) {
	reg, ok := x86.LookupRegister(token.Value)
	if !ok {
		return nil, false, nil
	}

	if size != SIZE_NONE && size.Bits() != reg.Class.Bits() {
		return nil, true, &SizingError{
			token.Position,
			"Size keyword does not match register width",
			reg.Name,
		}
	}

	op := &RegisterOperand{Position: token.Position, Register: reg}

	if reg.Extended() {
		op.Rex = x86.REX_B
	}

	return op, true, nil
}

// Classify turns a raw source operand into an Operand.
func Classify(raw RawOperand) (Operand, error) {
	token := raw.Token

	switch token.Type {
	case TOKEN_IDENT:
		op, isRegister, err := classifyRegister(token, raw.Size)
		if isRegister {
			return op, err
		}

		return &LabelOperand{
			Position: token.Position,
			Name:     token.Value,
			Size:     x86.MemoryType(raw.Size.Bits()),
		}, nil

	case TOKEN_LITERAL:
		value, negative, err := encoding.DecodeLiteral(token.Value)
		if err != nil {
			return nil, &InvalidLiteralError{token.Position}
		}

		width := x86.OPERAND_IMM64
		if negative && encoding.FitsSigned(value, 32) {
			width = x86.OPERAND_IMM32
		} else if !negative && value <= math.MaxUint32 {
			width = x86.OPERAND_IMM32
		}

		return &ImmediateOperand{
			Position: token.Position,
			Value:    value,
			Negative: negative,
			Width:    width,
		}, nil

	case TOKEN_MEMORY:
		return classifyMemory(raw)

	case TOKEN_STRING:
		return nil, &SizingError{token.Position, "String used as operand", token.Value}
	}

	return nil, &InvalidOperandError{
		token.Position,
		[]TokenType{TOKEN_IDENT, TOKEN_LITERAL, TOKEN_MEMORY},
		token.Type,
	}
}

func scaleOf(token Token) (uint8, error) {
	value, negative, err := encoding.DecodeLiteral(token.Value)
	if err != nil {
		return 0, &InvalidLiteralError{token.Position}
	}

	if !negative {
		switch value {
		case 1, 2, 4, 8:
			return uint8(value), nil
		}
	}

	return 0, &AddressingError{
		token.Position, fmt.Sprintf("invalid scale factor %s", token.Value),
	}
}

func addressRegister(token Token) (*x86.Register, error) {
	reg, ok := x86.LookupRegister(token.Value)
	if !ok {
		return nil, nil
	}

	if reg.Class != x86.CLASS_GP32 && reg.Class != x86.CLASS_GP64 {
		return nil, &AddressingError{
			token.Position,
			fmt.Sprintf("%s cannot be used as an address register", reg.Name),
		}
	}

	return &reg, nil
}

// classifyMemory reads "[rel? term (+|- term)*]" where a term is a register,
// a register scaled by a literal, a literal or a label.
func classifyMemory(raw RawOperand) (Operand, error) {
	op := &MemoryOperand{
		Position: raw.Token.Position,
		Size:     x86.MemoryType(raw.Size.Bits()),
	}

	terms := raw.Terms

	if len(terms) > 0 && terms[0].Type == TOKEN_IDENT &&
		strings.EqualFold(terms[0].Value, "rel") {
		op.Relative = true
		terms = terms[1:]
	}

	if len(terms) == 0 {
		return nil, &AddressingError{op.Position, "empty memory reference"}
	}

	setIndex := func(reg *x86.Register, scale uint8, position Cursor) error {
		if op.Index != nil {
			return &AddressingError{position, "more than one index register"}
		}

		if reg.Index == 4 {
			return &AddressingError{
				position, fmt.Sprintf("%s cannot be used as an index", reg.Name),
			}
		}

		op.Index = reg
		op.Scale = scale
		return nil
	}

	negative := false
	expectTerm := true

	for i := 0; i < len(terms); i++ {
		term := terms[i]

		if !expectTerm {
			switch term.Type {
			case TOKEN_PLUS:
				negative = false
			case TOKEN_MINUS:
				negative = true
			default:
				return nil, &UnexpectedCharacterError{term.Position, rune(term.Value[0])}
			}

			expectTerm = true
			continue
		}

		expectTerm = false

		var scaled *Token
		if i+2 < len(terms) && terms[i+1].Type == TOKEN_STAR {
			scaled = &terms[i+2]
		}

		switch term.Type {
		case TOKEN_IDENT:
			reg, err := addressRegister(term)
			if err != nil {
				return nil, err
			}

			if reg == nil {
				if scaled != nil {
					return nil, &AddressingError{term.Position, "label cannot be scaled"}
				}

				if op.Label != "" {
					return nil, &AddressingError{term.Position, "more than one label"}
				}

				if negative {
					return nil, &AddressingError{term.Position, "label cannot be subtracted"}
				}

				op.Label = term.Value
				continue
			}

			if negative {
				return nil, &AddressingError{term.Position, "register cannot be subtracted"}
			}

			if scaled != nil {
				scale, err := scaleOf(*scaled)
				if err != nil {
					return nil, err
				}

				if err := setIndex(reg, scale, term.Position); err != nil {
					return nil, err
				}

				i += 2
			} else if op.Base == nil {
				op.Base = reg
			} else if err := setIndex(reg, 1, term.Position); err != nil {
				return nil, err
			}

		case TOKEN_LITERAL:
			if scaled != nil && scaled.Type == TOKEN_IDENT {
				reg, err := addressRegister(*scaled)
				if err != nil {
					return nil, err
				}

				if reg != nil {
					if negative {
						return nil, &AddressingError{term.Position, "register cannot be subtracted"}
					}

					scale, err := scaleOf(term)
					if err != nil {
						return nil, err
					}

					if err := setIndex(reg, scale, scaled.Position); err != nil {
						return nil, err
					}

					i += 2
					continue
				}
			}

			value, _, err := encoding.DecodeLiteral(term.Value)
			if err != nil {
				return nil, &InvalidLiteralError{term.Position}
			}

			if negative {
				value = -value
			}

			op.Disp += int64(value)

			if op.Disp < math.MinInt32 || op.Disp > math.MaxInt32 {
				return nil, &SizingError{
					term.Position,
					"Displacement exceeds 32 bits",
					fmt.Sprintf("%d", op.Disp),
				}
			}

		default:
			return nil, &UnexpectedCharacterError{term.Position, rune(term.Value[0])}
		}
	}

	if expectTerm {
		last := terms[len(terms)-1]
		return nil, &UnexpectedCharacterError{last.Position, rune(last.Value[0])}
	}

	if op.Base != nil && op.Index != nil && op.Base.Class != op.Index.Class {
		return nil, &AddressingError{op.Position, "base and index sizes differ"}
	}

	if op.Relative && (op.Base != nil || op.Index != nil) {
		return nil, &AddressingError{
			op.Position, "rel cannot be combined with base or index registers",
		}
	}

	for _, reg := range []*x86.Register{op.Base, op.Index} {
		if reg != nil && reg.Class == x86.CLASS_GP32 {
			op.AddressOverride = true
		}
	}

	if op.Base != nil && op.Base.Extended() {
		op.Rex |= x86.REX_B
	}

	if op.Index != nil && op.Index.Extended() {
		op.Rex |= x86.REX_X
	}

	return op, nil
}
