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
	"github.com/lassandro/basm/pkg/x86"
)

// Fixup is a symbol reference inside an encoded instruction. The Width
// bytes at Offset are zero until the reference is resolved.
type Fixup struct {
	Symbol   string
	Offset   int
	Width    int
	Addend   int64
	Relative bool
	Type     RelocationType
	Position Cursor
}

type Instruction struct {
	Variant *x86.Variant
	Bytes   []byte
	Fixups  []Fixup
}

// roles maps the operands of a variant onto the places they are encoded
// in. Unused roles are -1.
type roles struct {
	rm       int
	reg      int
	vvvv     int
	opcode   int
	is4      int
	imm      int
	relative int
}

func assignRoles(variant *x86.Variant) (roles, error) {
	r := roles{-1, -1, -1, -1, -1, -1, -1}
	count := variant.NumOperands()

	for i := 0; i < count; i++ {
		switch slot := variant.Operands[i]; {
		case slot.IsImmediate():
			r.imm = i
		case slot == x86.OPERAND_REL32:
			r.relative = i
		}
	}

	if variant.Flags&x86.FLAG_OP4_IS_REG != 0 {
		r.is4 = 3
	}

	if variant.Flags&x86.FLAG_ADD_REG_TO_OPCODE != 0 {
		for i := 0; i < count; i++ {
			if variant.Operands[i].IsRegister() {
				r.opcode = i
				break
			}
		}

		return r, nil
	}

	if variant.Flags&x86.FLAG_MODRM_REG_AND_RM == 0 && variant.Digit < 0 {
		return r, nil
	}

	var registers []int

	for i := 0; i < count; i++ {
		slot := variant.Operands[i]

		if i == r.is4 {
			continue
		}

		if slot.IsMemoryCapable() && r.rm < 0 {
			r.rm = i
		} else if slot.IsRegister() || slot.IsMemoryCapable() {
			registers = append(registers, i)
		}
	}

	if r.rm < 0 {
		if len(registers) == 0 {
			return r, fmt.Errorf("%s has no r/m operand", variant)
		}

		r.rm = registers[len(registers)-1]
		registers = registers[:len(registers)-1]
	}

	if variant.Digit >= 0 {
		if len(registers) > 0 {
			r.vvvv = registers[0]
		}
	} else if len(registers) == 1 {
		r.reg = registers[0]
	} else if len(registers) == 2 {
		if r.rm == 0 {
			r.vvvv, r.reg = registers[0], registers[1]
		} else {
			r.reg, r.vvvv = registers[0], registers[1]
		}
	}

	if r.vvvv >= 0 && !variant.IsVEX() {
		return r, fmt.Errorf("%s needs VEX.vvvv", variant)
	}

	return r, nil
}

func registerAt(operands []Operand, i int) *RegisterOperand {
	if i < 0 {
		return nil
	}

	reg, _ := operands[i].(*RegisterOperand)
	return reg
}

var scaleBits = map[uint8]byte{1: 0, 2: 1, 4: 2, 8: 3}

// encodeAddress builds ModRM, SIB and displacement for a memory operand.
// The returned fixup, if any, has its Offset relative to the ModRM byte.
func encodeAddress(mem *MemoryOperand, regField byte) ([]byte, *Fixup, error) {
	var fixup *Fixup

	out := make([]byte, 0, 6)
	reg := (regField & 0x7) << 3

	appendDisp32 := func(relative bool, reloc RelocationType) {
		if mem.Label == "" {
			out = encoding.AppendLittleEndian(out, uint64(mem.Disp), 4)
			return
		}

		fixup = &Fixup{
			Symbol:   mem.Label,
			Offset:   len(out),
			Width:    4,
			Addend:   mem.Disp,
			Relative: relative,
			Type:     reloc,
			Position: mem.Position,
		}

		out = append(out, 0, 0, 0, 0)
	}

	switch {
	case mem.Relative:
		out = append(out, reg|0x5)
		appendDisp32(true, RELOC_PC32)

	case mem.Base == nil && mem.Index == nil:
		out = append(out, reg|0x4, 0x25)
		appendDisp32(false, RELOC_32S)

	case mem.Index == nil:
		base := mem.Base.Low()

		var mod byte
		switch {
		case mem.Label != "" || mem.Disp != 0:
			mod = 0x2
		case base == 0x5:
			mod = 0x1
		}

		out = append(out, mod<<6|reg|base)

		if base == 0x4 {
			out = append(out, 0x24)
		}

		switch mod {
		case 0x1:
			out = append(out, 0)
		case 0x2:
			appendDisp32(false, RELOC_32S)
		}

	case mem.Base == nil:
		sib := scaleBits[mem.Scale]<<6 | mem.Index.Low()<<3 | 0x5
		out = append(out, reg|0x4, sib)
		appendDisp32(false, RELOC_32S)

	default:
		if mem.Label != "" {
			return nil, nil, &AddressingError{
				mem.Position, "label cannot be combined with base and index registers",
			}
		}

		base := mem.Base.Low()

		var mod byte
		switch {
		case mem.Disp != 0:
			mod = 0x2
		case base == 0x5:
			mod = 0x1
		}

		sib := scaleBits[mem.Scale]<<6 | mem.Index.Low()<<3 | base
		out = append(out, mod<<6|reg|0x4, sib)

		switch mod {
		case 0x1:
			out = append(out, 0)
		case 0x2:
			appendDisp32(false, RELOC_32S)
		}
	}

	return out, fixup, nil
}

// Encode produces the machine code of one instruction. Prefixes come out in
// the order 67, 66, mandatory prefix, REX or VEX, then the opcode, ModRM,
// SIB, displacement and immediate.
func Encode(variant *x86.Variant, operands []Operand) (*Instruction, error) {
	r, err := assignRoles(variant)
	if err != nil {
		return nil, err
	}

	inst := &Instruction{Variant: variant, Bytes: make([]byte, 0, 16)}

	rex := variant.REX & 0x0F
	force := false
	var high *RegisterOperand

	for _, op := range operands {
		if reg, ok := op.(*RegisterOperand); ok {
			force = force || reg.Register.ForceREX

			if reg.Register.HighByte {
				high = reg
			}
		}
	}

	if reg := registerAt(operands, r.reg); reg != nil && reg.Register.Extended() {
		rex |= x86.REX_R
	}

	if reg := registerAt(operands, r.opcode); reg != nil {
		rex |= reg.Rex
	}

	var rm Operand
	if r.rm >= 0 {
		rm = operands[r.rm]

		if label, ok := rm.(*LabelOperand); ok {
			rm = &MemoryOperand{
				Position: label.Position,
				Label:    label.Name,
				Size:     label.Size,
			}
		}

		switch rm := rm.(type) {
		case *RegisterOperand:
			rex |= rm.Rex
		case *MemoryOperand:
			rex |= rm.Rex
		}
	}

	if high != nil && (rex != 0 || force) {
		return nil, &SizingError{
			high.Position,
			"Register cannot be encoded with a REX prefix",
			high.Register.Name,
		}
	}

	for _, op := range operands {
		if mem, ok := op.(*MemoryOperand); ok && mem.AddressOverride {
			inst.Bytes = append(inst.Bytes, 0x67)
			break
		}
	}

	if !variant.IsVEX() && variant.OperationSize() == 16 {
		inst.Bytes = append(inst.Bytes, 0x66)
	}

	mandatory, opcode := variant.MandatoryPrefix()
	if mandatory != 0 {
		inst.Bytes = append(inst.Bytes, mandatory)
	}

	if variant.IsVEX() {
		var vvvv uint8
		if reg := registerAt(operands, r.vvvv); reg != nil {
			vvvv = reg.Register.Index
		}

		inst.Bytes = append(inst.Bytes, vexPrefix(variant, rex, vvvv)...)
	} else if rex != 0 || force {
		inst.Bytes = append(inst.Bytes, x86.REX|rex)
	}

	start := len(inst.Bytes)
	inst.Bytes = append(inst.Bytes, opcode...)

	if reg := registerAt(operands, r.opcode); reg != nil {
		inst.Bytes[len(inst.Bytes)-1] += reg.Register.Low()
	}

	if len(inst.Bytes) == start {
		return nil, fmt.Errorf("%s has no opcode", variant)
	}

	if rm != nil {
		var regField byte

		if variant.Digit >= 0 {
			regField = byte(variant.Digit)
		} else if reg := registerAt(operands, r.reg); reg != nil {
			regField = reg.Register.Low()
		}

		switch rm := rm.(type) {
		case *RegisterOperand:
			inst.Bytes = append(inst.Bytes, 0xC0|regField<<3|rm.Register.Low())
		case *MemoryOperand:
			address, fixup, err := encodeAddress(rm, regField)
			if err != nil {
				return nil, err
			}

			if fixup != nil {
				fixup.Offset += len(inst.Bytes)
				inst.Fixups = append(inst.Fixups, *fixup)
			}

			inst.Bytes = append(inst.Bytes, address...)
		default:
			return nil, fmt.Errorf("%s: operand %d is not a register or memory", variant, r.rm+1)
		}
	}

	if r.relative >= 0 {
		label, ok := operands[r.relative].(*LabelOperand)
		if !ok {
			return nil, fmt.Errorf("%s: operand %d is not a label", variant, r.relative+1)
		}

		inst.Fixups = append(inst.Fixups, Fixup{
			Symbol:   label.Name,
			Offset:   len(inst.Bytes),
			Width:    int(variant.Immediate),
			Relative: true,
			Type:     RELOC_PC32,
			Position: label.Position,
		})

		inst.Bytes = append(inst.Bytes, make([]byte, variant.Immediate)...)
	}

	if r.imm >= 0 {
		imm, ok := operands[r.imm].(*ImmediateOperand)
		if !ok {
			return nil, fmt.Errorf("%s: operand %d is not an immediate", variant, r.imm+1)
		}

		inst.Bytes = encoding.AppendLittleEndian(
			inst.Bytes, imm.Value, int(variant.Immediate),
		)
	}

	if reg := registerAt(operands, r.is4); reg != nil {
		inst.Bytes = append(inst.Bytes, reg.Register.Index<<4)
	}

	return inst, nil
}
