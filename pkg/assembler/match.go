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

// Instructions whose lone operand is 64 bits wide unless declared otherwise.
var defaultSizes = map[string]int{
	"PUSH": 64,
	"POP":  64,
	"CALL": 64,
	"JMP":  64,
}

// pairOperands settles the widths the source left open: immediates are
// sized against the first sized register or memory operand, unsized memory
// takes the width of a general purpose sibling, and "mov r64, imm" with an
// immediate that zero-extends from 32 bits becomes "mov r32, imm". The
// operands slice is updated in place.
func pairOperands(name string, operands []Operand) error {
	name = strings.ToUpper(name)
	shift := x86.ShiftMnemonic(name)

	if name == "MOV" && len(operands) == 2 {
		reg, isRegister := operands[0].(*RegisterOperand)
		imm, isImmediate := operands[1].(*ImmediateOperand)

		if isRegister && isImmediate && reg.Register.Class == x86.CLASS_GP64 &&
			!imm.Negative && imm.Value <= math.MaxUint32 {
			narrow, _ := x86.RegisterFor(x86.CLASS_GP32, reg.Register.Index)
			operands[0] = &RegisterOperand{
				Position: reg.Position, Register: narrow, Rex: reg.Rex,
			}
		}
	}

	sibling := 0

	if !shift {
		for _, op := range operands {
			if reg, ok := op.(*RegisterOperand); ok && reg.Register.IsGeneral() {
				sibling = reg.Register.Class.Bits()
				break
			}
		}
	}

	if len(operands) == 1 {
		sibling = defaultSizes[name]
	}

	if sibling != 0 {
		for _, op := range operands {
			switch op := op.(type) {
			case *MemoryOperand:
				if op.Size == x86.OPERAND_MEM_ANY {
					op.Size = x86.MemoryType(sibling)
				}
			case *LabelOperand:
				if op.Size == x86.OPERAND_MEM_ANY {
					op.Size = x86.MemoryType(sibling)
				}
			}
		}
	}

	size := 0

	for _, op := range operands {
		if bits := operandBits(op); bits != 0 {
			size = bits
			break
		}
	}

	if shift {
		size = 0
	}

	if len(operands) == 1 {
		size = defaultSizes[name]
	}

	for _, op := range operands {
		imm, ok := op.(*ImmediateOperand)
		if !ok {
			continue
		}

		if size == 0 {
			imm.Width = narrowest(imm.Value, imm.Negative)
			continue
		}

		bits := uint(size)

		if (imm.Negative && !encoding.FitsSigned(imm.Value, bits)) ||
			(!imm.Negative && !encoding.FitsUnsigned(imm.Value, bits)) {
			return &SizingError{
				imm.Position,
				fmt.Sprintf("Immediate exceeds %d bits", size),
				fmt.Sprintf("%#x", imm.Value),
			}
		}

		value := encoding.SignExtend(imm.Value, bits)

		switch {
		case size == 8 || encoding.FitsSigned(value, 8):
			imm.Width = x86.OPERAND_IMM8
		case size == 16:
			imm.Width = x86.OPERAND_IMM16
		case size == 32 || encoding.FitsSigned(value, 32):
			imm.Width = x86.OPERAND_IMM32
		default:
			imm.Width = x86.OPERAND_IMM64
		}
	}

	return nil
}

func acceptsRegister(slot x86.OperandType, reg x86.Register) bool {
	switch slot {
	case x86.OPERAND_R8, x86.OPERAND_RM8:
		return reg.Class == x86.CLASS_GP8
	case x86.OPERAND_R16, x86.OPERAND_RM16:
		return reg.Class == x86.CLASS_GP16
	case x86.OPERAND_R32, x86.OPERAND_RM32:
		return reg.Class == x86.CLASS_GP32
	case x86.OPERAND_R64, x86.OPERAND_RM64:
		return reg.Class == x86.CLASS_GP64
	case x86.OPERAND_MM, x86.OPERAND_MMM64:
		return reg.Class == x86.CLASS_MMX
	case x86.OPERAND_XMM, x86.OPERAND_XMMM32, x86.OPERAND_XMMM64,
		x86.OPERAND_XMMM128:
		return reg.Class == x86.CLASS_XMM
	case x86.OPERAND_YMM, x86.OPERAND_YMMM256:
		return reg.Class == x86.CLASS_YMM
	case x86.OPERAND_STI:
		return reg.Class == x86.CLASS_FPU
	case x86.OPERAND_ST0:
		return reg.Class == x86.CLASS_FPU && reg.Index == 0
	case x86.OPERAND_AL:
		return reg.Class == x86.CLASS_GP8 && reg.Index == 0
	case x86.OPERAND_CL:
		return reg.Class == x86.CLASS_GP8 && reg.Index == 1 && !reg.HighByte
	case x86.OPERAND_AX:
		return reg.Class == x86.CLASS_GP16 && reg.Index == 0
	case x86.OPERAND_DX:
		return reg.Class == x86.CLASS_GP16 && reg.Index == 2
	case x86.OPERAND_EAX:
		return reg.Class == x86.CLASS_GP32 && reg.Index == 0
	case x86.OPERAND_RAX:
		return reg.Class == x86.CLASS_GP64 && reg.Index == 0
	}

	return false
}

// acceptsMemory checks a memory reference of the given size against a slot.
// Unsized references are only taken by vector slots, or by any memory slot
// when loose is set.
func acceptsMemory(slot x86.OperandType, size x86.OperandType, loose bool) bool {
	if !slot.IsMemoryCapable() {
		return false
	}

	if slot == x86.OPERAND_M {
		return true
	}

	if size == x86.OPERAND_MEM_ANY {
		switch slot {
		case x86.OPERAND_MMM64, x86.OPERAND_XMMM32, x86.OPERAND_XMMM64,
			x86.OPERAND_XMMM128, x86.OPERAND_YMMM256:
			return true
		}

		return loose
	}

	return slot.Bits() == size.Bits()
}

func accepts(slot x86.OperandType, op Operand, loose bool) bool {
	switch op := op.(type) {
	case *RegisterOperand:
		return acceptsRegister(slot, op.Register)
	case *ImmediateOperand:
		return slot.IsImmediate() && op.Width.Bits() <= slot.Bits()
	case *MemoryOperand:
		return acceptsMemory(slot, op.Size, loose)
	case *LabelOperand:
		return slot == x86.OPERAND_REL32 || acceptsMemory(slot, op.Size, loose)
	}

	return false
}

// FindVariant pairs the operands and returns the first table variant of
// the mnemonic that accepts them.
func FindVariant(mnemonic Token, operands []Operand) (*x86.Variant, error) {
	id, ok := x86.Lookup(mnemonic.Value)
	if !ok {
		return nil, &UnknownIdentifierError{mnemonic.Position, mnemonic.Value}
	}

	if err := pairOperands(mnemonic.Value, operands); err != nil {
		return nil, err
	}

	// Vector instructions with a general purpose r/m slot (movd, movq) take
	// unsized memory there too.
	loose := false
	for _, op := range operands {
		if reg, ok := op.(*RegisterOperand); ok && reg.Register.IsVector() {
			loose = true
		}
	}

	variants := id.Variants()

	for i := range variants {
		variant := &variants[i]

		if variant.NumOperands() != len(operands) {
			continue
		}

		match := true

		for j, op := range operands {
			if !accepts(variant.Operands[j], op, loose) {
				match = false
				break
			}
		}

		if match {
			return variant, nil
		}
	}

	types := make([]x86.OperandType, 0, len(operands))
	for _, op := range operands {
		types = append(types, op.Type())
	}

	return nil, &SelectionError{mnemonic.Position, id.String(), types}
}
