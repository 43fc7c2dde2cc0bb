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

import "github.com/lassandro/basm/pkg/x86"

// vexPrefix builds the two or three byte VEX prefix. rex carries the R, X
// and B extension bits and vvvv the full index of the extra source
// register. The two byte form is used whenever the variant allows it and
// nothing but R needs encoding.
func vexPrefix(variant *x86.Variant, rex uint8, vvvv uint8) []byte {
	payload := variant.VEX

	notR := (^rex >> 2) & 0x1
	notX := (^rex >> 1) & 0x1
	notB := ^rex & 0x1
	notV := ^vvvv & 0xF

	l := uint8(payload&x86.VEX_L) >> 2
	pp := uint8(payload & 0x3)
	w := uint8(payload&x86.VEX_W) >> 7

	mmmmm := uint8(payload >> 8)
	if mmmmm == 0 {
		mmmmm = 1
	}

	if variant.Flags&x86.FLAG_2VEX != 0 && rex&(x86.REX_X|x86.REX_B) == 0 &&
		w == 0 && mmmmm == 1 {
		return []byte{0xC5, notR<<7 | notV<<3 | l<<2 | pp}
	}

	return []byte{
		0xC4,
		notR<<7 | notX<<6 | notB<<5 | mmmmm,
		w<<7 | notV<<3 | l<<2 | pp,
	}
}
