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

package x86

type OperandType uint8

const (
	OPERAND_NONE OperandType = iota

	OPERAND_REL32

	OPERAND_R8
	OPERAND_R16
	OPERAND_R32
	OPERAND_R64

	OPERAND_RM8
	OPERAND_RM16
	OPERAND_RM32
	OPERAND_RM64

	// Any memory reference, regardless of its size (lea, for example)
	OPERAND_M
	OPERAND_M8
	OPERAND_M16
	OPERAND_M32
	OPERAND_M64
	OPERAND_M80
	OPERAND_M128
	OPERAND_M256
	// A memory reference whose size was not declared
	OPERAND_MEM_ANY

	OPERAND_IMM8
	OPERAND_IMM16
	OPERAND_IMM32
	OPERAND_IMM64

	OPERAND_ST0
	OPERAND_STI

	OPERAND_MM
	OPERAND_MMM64

	OPERAND_XMM
	OPERAND_XMMM32
	OPERAND_XMMM64
	OPERAND_XMMM128

	OPERAND_YMM
	OPERAND_YMMM256

	// Fixed-register slots
	OPERAND_AL
	OPERAND_CL
	OPERAND_AX
	OPERAND_DX
	OPERAND_EAX
	OPERAND_RAX

	OPERAND_LABEL
)

var operandNames = map[OperandType]string{
	OPERAND_NONE:    "none",
	OPERAND_REL32:   "rel32",
	OPERAND_R8:      "r8",
	OPERAND_R16:     "r16",
	OPERAND_R32:     "r32",
	OPERAND_R64:     "r64",
	OPERAND_RM8:     "r/m8",
	OPERAND_RM16:    "r/m16",
	OPERAND_RM32:    "r/m32",
	OPERAND_RM64:    "r/m64",
	OPERAND_M:       "m",
	OPERAND_M8:      "m8",
	OPERAND_M16:     "m16",
	OPERAND_M32:     "m32",
	OPERAND_M64:     "m64",
	OPERAND_M80:     "m80",
	OPERAND_M128:    "m128",
	OPERAND_M256:    "m256",
	OPERAND_MEM_ANY: "mem",
	OPERAND_IMM8:    "imm8",
	OPERAND_IMM16:   "imm16",
	OPERAND_IMM32:   "imm32",
	OPERAND_IMM64:   "imm64",
	OPERAND_ST0:     "ST(0)",
	OPERAND_STI:     "ST(i)",
	OPERAND_MM:      "mm",
	OPERAND_MMM64:   "mm/m64",
	OPERAND_XMM:     "xmm",
	OPERAND_XMMM32:  "xmm/m32",
	OPERAND_XMMM64:  "xmm/m64",
	OPERAND_XMMM128: "xmm/m128",
	OPERAND_YMM:     "ymm",
	OPERAND_YMMM256: "ymm/m256",
	OPERAND_AL:      "AL",
	OPERAND_CL:      "CL",
	OPERAND_AX:      "AX",
	OPERAND_DX:      "DX",
	OPERAND_EAX:     "EAX",
	OPERAND_RAX:     "RAX",
	OPERAND_LABEL:   "label",
}

var operandsByName = func() map[string]OperandType {
	byName := make(map[string]OperandType, len(operandNames))

	for operand, name := range operandNames {
		byName[name] = operand
	}

	return byName
}()

func (t OperandType) String() string {
	if name, ok := operandNames[t]; ok {
		return name
	}

	return "<invalid>"
}

// Bits returns the data width of the operand type, or 0 when the type does
// not carry one (m, unsized memory, labels).
func (t OperandType) Bits() int {
	switch t {
	case OPERAND_R8, OPERAND_RM8, OPERAND_M8, OPERAND_IMM8, OPERAND_AL,
		OPERAND_CL:
		return 8
	case OPERAND_R16, OPERAND_RM16, OPERAND_M16, OPERAND_IMM16, OPERAND_AX,
		OPERAND_DX:
		return 16
	case OPERAND_R32, OPERAND_RM32, OPERAND_M32, OPERAND_IMM32, OPERAND_EAX,
		OPERAND_XMMM32, OPERAND_REL32:
		return 32
	case OPERAND_R64, OPERAND_RM64, OPERAND_M64, OPERAND_IMM64, OPERAND_RAX,
		OPERAND_MM, OPERAND_MMM64, OPERAND_XMMM64:
		return 64
	case OPERAND_M80, OPERAND_ST0, OPERAND_STI:
		return 80
	case OPERAND_M128, OPERAND_XMM, OPERAND_XMMM128:
		return 128
	case OPERAND_M256, OPERAND_YMM, OPERAND_YMMM256:
		return 256
	}

	return 0
}

// IsImmediate reports whether the slot takes an immediate value.
func (t OperandType) IsImmediate() bool {
	return t >= OPERAND_IMM8 && t <= OPERAND_IMM64
}

// IsMemoryCapable reports whether the slot can hold a memory reference and
// is therefore encoded in the ModRM r/m field.
func (t OperandType) IsMemoryCapable() bool {
	switch t {
	case OPERAND_RM8, OPERAND_RM16, OPERAND_RM32, OPERAND_RM64,
		OPERAND_M, OPERAND_M8, OPERAND_M16, OPERAND_M32, OPERAND_M64,
		OPERAND_M80, OPERAND_M128, OPERAND_M256,
		OPERAND_MMM64, OPERAND_XMMM32, OPERAND_XMMM64, OPERAND_XMMM128,
		OPERAND_YMMM256:
		return true
	}

	return false
}

// IsMemoryOnly reports whether the slot takes memory and never a register.
func (t OperandType) IsMemoryOnly() bool {
	return t >= OPERAND_M && t <= OPERAND_M256
}

// IsFixed reports whether the slot names one specific register that is
// implied by the opcode and not encoded anywhere.
func (t OperandType) IsFixed() bool {
	return t == OPERAND_ST0 || (t >= OPERAND_AL && t <= OPERAND_RAX)
}

// IsRegister reports whether the slot only takes a register that has to be
// encoded in ModRM, VEX.vvvv, the opcode byte or an is4 immediate.
func (t OperandType) IsRegister() bool {
	switch t {
	case OPERAND_R8, OPERAND_R16, OPERAND_R32, OPERAND_R64,
		OPERAND_STI, OPERAND_MM, OPERAND_XMM, OPERAND_YMM:
		return true
	}

	return false
}

// IsGeneral reports whether the slot carries general purpose data, which is
// what decides the operand-size prefix of a variant.
func (t OperandType) IsGeneral() bool {
	switch t {
	case OPERAND_R8, OPERAND_R16, OPERAND_R32, OPERAND_R64,
		OPERAND_RM8, OPERAND_RM16, OPERAND_RM32, OPERAND_RM64,
		OPERAND_AL, OPERAND_AX, OPERAND_EAX, OPERAND_RAX:
		return true
	}

	return false
}

// MemoryType returns the sized memory type of the given width.
func MemoryType(bits int) OperandType {
	switch bits {
	case 8:
		return OPERAND_M8
	case 16:
		return OPERAND_M16
	case 32:
		return OPERAND_M32
	case 64:
		return OPERAND_M64
	case 80:
		return OPERAND_M80
	case 128:
		return OPERAND_M128
	case 256:
		return OPERAND_M256
	}

	return OPERAND_MEM_ANY
}

// ImmediateType returns the immediate type of the given width.
func ImmediateType(bits int) OperandType {
	switch bits {
	case 8:
		return OPERAND_IMM8
	case 16:
		return OPERAND_IMM16
	case 32:
		return OPERAND_IMM32
	case 64:
		return OPERAND_IMM64
	}

	return OPERAND_NONE
}
