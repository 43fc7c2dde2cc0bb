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

// Package config holds the settings of the basm command line.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mstoykov/envconfig"
)

type Format string

const (
	FORMAT_ELF64 Format = "elf64"
	FORMAT_BIN   Format = "bin"
)

// Config is read from the environment first and then overridden by
// command line flags.
type Config struct {
	Format  Format `envconfig:"BASM_FORMAT"`
	Output  string `envconfig:"BASM_OUTPUT"`
	Verbose bool   `envconfig:"BASM_VERBOSE"`
	Listing bool   `envconfig:"BASM_LISTING"`
}

func Default() Config {
	return Config{Format: FORMAT_ELF64}
}

// Load reads the BASM_* variables through lookup, or the process
// environment when lookup is nil.
func Load(lookup func(key string) (string, bool)) (Config, error) {
	conf := Default()

	var err error
	if lookup != nil {
		err = envconfig.Process("", &conf, lookup)
	} else {
		err = envconfig.Process("", &conf)
	}

	if err != nil {
		return conf, err
	}

	return conf, conf.Validate()
}

func (c Config) Validate() error {
	switch Format(strings.ToLower(string(c.Format))) {
	case FORMAT_ELF64, FORMAT_BIN:
		return nil
	case "win64", "pe", "coff":
		return fmt.Errorf("output format '%s' is not supported, use elf64", c.Format)
	}

	return fmt.Errorf("unknown output format '%s'", c.Format)
}

// OutputPath returns the configured output, or the input name with the
// extension of the output format.
func (c Config) OutputPath(input string) string {
	if c.Output != "" {
		return c.Output
	}

	ext := ".o"
	if Format(strings.ToLower(string(c.Format))) == FORMAT_BIN {
		ext = ".bin"
	}

	if input == "" {
		return "out" + ext
	}

	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}
