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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lassandro/basm/pkg/assembler"
	"github.com/lassandro/basm/pkg/config"
	"github.com/lassandro/basm/pkg/elf"
	"github.com/lassandro/basm/pkg/listing"
	"github.com/lassandro/basm/pkg/source"
)

// input is one source file held in memory so diagnostics can quote it.
type input struct {
	name string
	path string
	data []byte
}

func (a *app) readInput(args []string) (*input, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, err
		}

		return &input{name: "<stdin>", data: data}, nil
	}

	path := args[0]

	stat, err := a.fs.Stat(path)
	if err != nil {
		return nil, err
	}

	if stat.IsDir() {
		return nil, fmt.Errorf("%s is not a valid assembly file", path)
	}

	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, err
	}

	return &input{name: stat.Name(), path: path, data: data}, nil
}

// line returns the source line a cursor points into, without its newline.
func (in *input) line(cursor assembler.Cursor) string {
	if cursor.LineByte < 0 || cursor.LineByte > int64(len(in.data)) {
		return ""
	}

	rest := in.data[cursor.LineByte:]
	if end := bytes.IndexByte(rest, '\n'); end >= 0 {
		rest = rest[:end]
	}

	return strings.TrimSuffix(string(rest), "\r")
}

// report prints one diagnostic. Errors with a source position quote the
// line and underline the offending token.
func (a *app) report(in *input, err error) {
	prefix := color.New(color.Bold).Sprintf("%s:", in.name)

	var tokenErr assembler.TokenError
	if !errors.As(err, &tokenErr) {
		fmt.Fprintf(a.stderr, "%s %s\n", prefix, err)
		return
	}

	cursor := tokenErr.GetPosition()

	size := int(cursor.Size)
	if size < 1 {
		size = 1
	}

	underline := fmt.Sprintf(
		"%*s%s", int(cursor.Byte-cursor.LineByte)+1, "^",
		strings.Repeat("~", size-1),
	)

	fmt.Fprintf(
		a.stderr, "%s%s\n%s\n%s\n",
		prefix, err, in.line(cursor), color.RedString(underline),
	)
}

// assemble runs the front end and the assembler, reporting every parse
// error or the first assembly error.
func (a *app) assemble(in *input) (*assembler.Program, error) {
	statements, errs := source.Parse(bytes.NewReader(in.data))

	if len(errs) > 0 {
		for _, err := range errs {
			a.report(in, err)
		}

		return nil, errReported
	}

	a.logger.WithField("statements", len(statements)).Debug("Parsed source")

	program, err := assembler.New(a.logger).Assemble(statements)
	if err != nil {
		a.report(in, err)
		return nil, errReported
	}

	return program, nil
}

// flat lays out text followed by data. References left for a linker
// cannot be expressed in a flat image.
func flat(program *assembler.Program) ([]byte, error) {
	for _, entry := range program.Symbols.Entries() {
		if len(entry.Instances) > 0 {
			position := entry.Instances[0].Position

			return nil, fmt.Errorf(
				"%02d:%02d: reference to '%s' needs a relocation, use elf64",
				position.Line, position.Column, entry.Name,
			)
		}
	}

	out := make([]byte, 0, program.Text.Size()+program.Data.Size())
	out = append(out, program.Text.Bytes()...)
	out = append(out, program.Data.Bytes()...)

	return out, nil
}

func (a *app) build(args []string) error {
	in, err := a.readInput(args)
	if err != nil {
		return err
	}

	program, err := a.assemble(in)
	if err != nil {
		return err
	}

	var out bytes.Buffer

	switch config.Format(strings.ToLower(string(a.conf.Format))) {
	case config.FORMAT_BIN:
		image, err := flat(program)
		if err != nil {
			return err
		}

		out.Write(image)

	default:
		if err := elf.Write(&out, program); err != nil {
			return err
		}
	}

	path := a.conf.OutputPath(in.path)

	if err := afero.WriteFile(a.fs, path, out.Bytes(), 0o666); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	a.logger.WithFields(logrus.Fields{
		"output": path,
		"format": a.conf.Format,
		"size":   out.Len(),
	}).Info("Wrote object")

	if a.conf.Listing {
		return listing.PrintSource(a.stdout, bytes.NewReader(in.data), program, false)
	}

	return nil
}

func newBuildCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [flags] [file]",
		Short: "Assemble a source file into an object file",
		Long: "Assemble a source file into an ELF64 relocatable object or a " +
			"flat binary. The source is read from stdin when no file or '-' " +
			"is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.build(args)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Output file, defaults to the input name with the format's extension")
	flags.StringP("format", "f", string(config.FORMAT_ELF64), "Output format: elf64 or bin")
	flags.BoolP("listing", "l", false, "Print a listing of the assembled source")

	return cmd
}
