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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLoad(t *testing.T) {
	conf, err := Load(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), conf)

	conf, err = Load(lookupFrom(map[string]string{
		"BASM_FORMAT":  "bin",
		"BASM_OUTPUT":  "kernel.img",
		"BASM_VERBOSE": "true",
		"BASM_LISTING": "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Format: FORMAT_BIN, Output: "kernel.img", Verbose: true, Listing: true,
	}, conf)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(lookupFrom(map[string]string{"BASM_FORMAT": "win64"}))
	assert.ErrorContains(t, err, "not supported")

	_, err = Load(lookupFrom(map[string]string{"BASM_FORMAT": "macho"}))
	assert.ErrorContains(t, err, "unknown output format")

	_, err = Load(lookupFrom(map[string]string{"BASM_VERBOSE": "maybe"}))
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	conf := Default()
	assert.Equal(t, "hello.o", conf.OutputPath("src/hello.asm"))
	assert.Equal(t, "out.o", conf.OutputPath(""))

	conf.Format = FORMAT_BIN
	assert.Equal(t, "boot.bin", conf.OutputPath("boot.s"))

	conf.Output = "custom"
	assert.Equal(t, "custom", conf.OutputPath("boot.s"))
}
