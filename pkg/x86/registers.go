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

import (
	"fmt"
	"strings"
)

type RegisterClass uint8

const (
	CLASS_NONE RegisterClass = iota
	CLASS_GP8
	CLASS_GP16
	CLASS_GP32
	CLASS_GP64
	CLASS_MMX
	CLASS_XMM
	CLASS_YMM
	CLASS_FPU
)

// Register is one entry of the register table. Index is the full hardware
// number (0-15); the low three bits go into ModRM/SIB/opcode fields and the
// fourth bit into REX/VEX.
type Register struct {
	Name  string
	Class RegisterClass
	Index uint8

	// SPL, BPL, SIL and DIL are only reachable with a REX prefix present.
	ForceREX bool
	// AH, CH, DH and BH are not encodable once any REX prefix is present.
	HighByte bool
}

func (r Register) Low() uint8 {
	return r.Index & 0x7
}

func (r Register) Extended() bool {
	return r.Index >= 8
}

func (r Register) String() string {
	return r.Name
}

func (r Register) IsGeneral() bool {
	return r.Class >= CLASS_GP8 && r.Class <= CLASS_GP64
}

func (r Register) IsVector() bool {
	return r.Class == CLASS_MMX || r.Class == CLASS_XMM || r.Class == CLASS_YMM
}

// Bits returns the operand width of a general purpose register class.
func (c RegisterClass) Bits() int {
	switch c {
	case CLASS_GP8:
		return 8
	case CLASS_GP16:
		return 16
	case CLASS_GP32:
		return 32
	case CLASS_GP64, CLASS_MMX:
		return 64
	case CLASS_FPU:
		return 80
	case CLASS_XMM:
		return 128
	case CLASS_YMM:
		return 256
	}

	return 0
}

func (c RegisterClass) String() string {
	switch c {
	case CLASS_GP8:
		return "r8"
	case CLASS_GP16:
		return "r16"
	case CLASS_GP32:
		return "r32"
	case CLASS_GP64:
		return "r64"
	case CLASS_MMX:
		return "mm"
	case CLASS_XMM:
		return "xmm"
	case CLASS_YMM:
		return "ymm"
	case CLASS_FPU:
		return "st"
	}

	return "<invalid>"
}

var registerTable = make(map[string]Register)
var registerByClass = make(map[RegisterClass][16]Register)

func addRegister(reg Register) {
	registerTable[reg.Name] = reg

	if reg.HighByte {
		return
	}

	byIndex := registerByClass[reg.Class]
	byIndex[reg.Index] = reg
	registerByClass[reg.Class] = byIndex
}

func init() {
	legacy64 := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
	legacy32 := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	legacy16 := []string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
	legacy8 := []string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil"}
	high8 := []string{"ah", "ch", "dh", "bh"}

	for i := 0; i < 8; i++ {
		addRegister(Register{Name: legacy64[i], Class: CLASS_GP64, Index: uint8(i)})
		addRegister(Register{Name: legacy32[i], Class: CLASS_GP32, Index: uint8(i)})
		addRegister(Register{Name: legacy16[i], Class: CLASS_GP16, Index: uint8(i)})
		addRegister(Register{
			Name: legacy8[i], Class: CLASS_GP8, Index: uint8(i), ForceREX: i >= 4,
		})
	}

	for i, name := range high8 {
		addRegister(Register{
			Name: name, Class: CLASS_GP8, Index: uint8(i + 4), HighByte: true,
		})
	}

	for i := 8; i < 16; i++ {
		addRegister(Register{Name: fmt.Sprintf("r%d", i), Class: CLASS_GP64, Index: uint8(i)})
		addRegister(Register{Name: fmt.Sprintf("r%dd", i), Class: CLASS_GP32, Index: uint8(i)})
		addRegister(Register{Name: fmt.Sprintf("r%dw", i), Class: CLASS_GP16, Index: uint8(i)})
		addRegister(Register{Name: fmt.Sprintf("r%db", i), Class: CLASS_GP8, Index: uint8(i)})
	}

	for i := 0; i < 16; i++ {
		addRegister(Register{Name: fmt.Sprintf("xmm%d", i), Class: CLASS_XMM, Index: uint8(i)})
		addRegister(Register{Name: fmt.Sprintf("ymm%d", i), Class: CLASS_YMM, Index: uint8(i)})
	}

	for i := 0; i < 8; i++ {
		addRegister(Register{Name: fmt.Sprintf("mm%d", i), Class: CLASS_MMX, Index: uint8(i)})
		addRegister(Register{Name: fmt.Sprintf("st%d", i), Class: CLASS_FPU, Index: uint8(i)})
	}
}

// LookupRegister finds a register by name, ignoring case. "st(3)" is
// accepted as a spelling of st3.
func LookupRegister(name string) (Register, bool) {
	name = strings.ToLower(name)

	if strings.HasPrefix(name, "st(") && strings.HasSuffix(name, ")") {
		name = "st" + name[3:len(name)-1]
	}

	reg, ok := registerTable[name]
	return reg, ok
}

// RegisterFor returns the register of the given class with the given index.
func RegisterFor(class RegisterClass, index uint8) (Register, bool) {
	if index > 15 {
		return Register{}, false
	}

	byIndex, ok := registerByClass[class]
	if !ok || byIndex[index].Name == "" {
		return Register{}, false
	}

	return byIndex[index], true
}
