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

package encoding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/basm/pkg/encoding"
)

func TestDecodeLiteral(t *testing.T) {
	tests := []struct {
		Input    string
		Value    uint64
		Negative bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"0x2A", 0x2A, false},
		{"0X2a", 0x2A, false},
		{"2Ah", 0x2A, false},
		{"0b101010", 42, false},
		{"-1", 0xFFFFFFFFFFFFFFFF, true},
		{"-0x80", 0xFFFFFFFFFFFFFF80, true},
		{"18446744073709551615", 0xFFFFFFFFFFFFFFFF, false},
	}

	for _, test := range tests {
		t.Run(test.Input, func(t *testing.T) {
			value, negative, err := encoding.DecodeLiteral(test.Input)
			require.NoError(t, err)
			assert.Equal(t, test.Value, value)
			assert.Equal(t, test.Negative, negative)
		})
	}
}

func TestDecodeLiteralInvalid(t *testing.T) {
	for _, input := range []string{"", "-", "0xZZ", "12a", "0b102", "18446744073709551616", "-0x8000000000000001"} {
		_, _, err := encoding.DecodeLiteral(input)
		assert.ErrorIs(t, err, encoding.ErrInvalidLiteral, input)
	}
}

func TestFits(t *testing.T) {
	assert.True(t, encoding.FitsSigned(0x7F, 8))
	assert.False(t, encoding.FitsSigned(0x80, 8))
	assert.True(t, encoding.FitsSigned(0xFFFFFFFFFFFFFF80, 8))
	assert.True(t, encoding.FitsUnsigned(0xFF, 8))
	assert.False(t, encoding.FitsUnsigned(0x100, 8))
	assert.True(t, encoding.FitsSigned(0xFFFFFFFF80000000, 32))
	assert.False(t, encoding.FitsSigned(0x80000000, 32))
	assert.True(t, encoding.FitsSigned(0x8000000000000000, 64))
}

func TestLittleEndian(t *testing.T) {
	buf := encoding.AppendLittleEndian(nil, 0x0102030405060708, 8)
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, buf)

	buf = encoding.AppendLittleEndian(nil, 0xFFFFFFFA, 4)
	assert.Equal(t, []byte{0xFA, 0xFF, 0xFF, 0xFF}, buf)

	patch := make([]byte, 2)
	encoding.PutLittleEndian(patch, 0xBEEF, 2)
	assert.Equal(t, []byte{0xEF, 0xBE}, patch)
}
