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

package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lassandro/basm/pkg/assembler"
	"github.com/lassandro/basm/pkg/listing"
)

func (a *app) list(args []string, disassemble, mem bool) error {
	in, err := a.readInput(args)
	if err != nil {
		return err
	}

	program, err := a.assemble(in)
	if err != nil {
		return err
	}

	err = listing.PrintSource(a.stdout, bytes.NewReader(in.data), program, disassemble)
	if err != nil || !mem {
		return err
	}

	for _, section := range []*assembler.Section{program.Text, program.Data, program.Bss} {
		if section.Size() == 0 {
			continue
		}

		fmt.Fprintf(a.stdout, "\n%s (%d bytes)\n", section.Type, section.Size())
		listing.PrintMem(a.stdout, section, 0, section.Size())
	}

	return nil
}

func newListCommand(a *app) *cobra.Command {
	var disassemble, mem bool

	cmd := &cobra.Command{
		Use:   "list [flags] [file]",
		Short: "Print the source next to the bytes each line assembles to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.list(args, disassemble, mem)
		},
	}

	cmd.Flags().BoolVarP(&disassemble, "disassemble", "d", false, "Decode the text bytes back into instructions")
	cmd.Flags().BoolVarP(&mem, "mem", "m", false, "Dump every section after the listing")

	return cmd
}
