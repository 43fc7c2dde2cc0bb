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

package encoding

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidLiteral = errors.New("Invalid numeric literal")

// Decodes a hexidecimal string in the formats: 0xFFFF, 0XFF, 0FFh
func DecodeHex(s string) (uint64, error) {
	if strings.HasSuffix(s, "h") || strings.HasSuffix(s, "H") {
		s = "0x" + s[:len(s)-1]
	} else if i := strings.IndexAny(s, "xX"); i != 1 || s[0] != '0' {
		return 0, ErrInvalidLiteral
	}

	result, err := strconv.ParseUint(s, 0, 64)

	if err != nil {
		return 0, err
	}

	return result, nil
}

// Decodes a binary string in the formats: 0b1010, 0B1010
func DecodeBinary(s string) (uint64, error) {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'b' && s[1] != 'B') {
		return 0, ErrInvalidLiteral
	}

	return strconv.ParseUint(s[2:], 2, 64)
}

// Decodes a base-10 string in the formats: 123, -123
func DecodeInt(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		result, err := strconv.ParseInt(s, 10, 64)

		if err != nil {
			return 0, err
		}

		return uint64(result), nil
	}

	return strconv.ParseUint(s, 10, 64)
}

// DecodeLiteral decodes any of the supported literal formats. The returned
// value holds the two's complement bits; negative reports a leading minus.
func DecodeLiteral(s string) (value uint64, negative bool, err error) {
	if s == "" {
		return 0, false, ErrInvalidLiteral
	}

	negative = s[0] == '-'
	digits := strings.TrimPrefix(s, "-")

	switch {
	case strings.HasPrefix(digits, "0x"), strings.HasPrefix(digits, "0X"),
		strings.HasSuffix(digits, "h"), strings.HasSuffix(digits, "H"):
		value, err = DecodeHex(digits)
	case strings.HasPrefix(digits, "0b"), strings.HasPrefix(digits, "0B"):
		value, err = DecodeBinary(digits)
	default:
		value, err = DecodeInt(digits)
	}

	if err != nil {
		return 0, false, ErrInvalidLiteral
	}

	if negative {
		if value > 1<<63 {
			return 0, false, ErrInvalidLiteral
		}
		value = -value
	}

	return value, negative, nil
}

func SignExtend(value uint64, bitcount uint) uint64 {
	if bitcount >= 64 {
		return value
	}

	value &= (1 << bitcount) - 1

	if (value>>(bitcount-1))&0x1 == 1 {
		value |= ^uint64(0) << bitcount
	}

	return value
}

func ZeroExtend(value uint64, bitcount uint) uint64 {
	if bitcount >= 64 {
		return value
	}

	return value & ((1 << bitcount) - 1)
}

// FitsSigned reports whether value survives truncation to bitcount bits
// followed by sign extension.
func FitsSigned(value uint64, bitcount uint) bool {
	return SignExtend(value, bitcount) == value
}

// FitsUnsigned reports whether value survives truncation to bitcount bits
// followed by zero extension.
func FitsUnsigned(value uint64, bitcount uint) bool {
	return ZeroExtend(value, bitcount) == value
}

// PutLittleEndian writes the low width bytes of value into buf.
func PutLittleEndian(buf []byte, value uint64, width int) {
	for i := 0; i < width; i++ {
		buf[i] = byte(value >> (8 * i))
	}
}

func AppendLittleEndian(buf []byte, value uint64, width int) []byte {
	for i := 0; i < width; i++ {
		buf = append(buf, byte(value>>(8*i)))
	}

	return buf
}
