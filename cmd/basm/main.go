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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"

	"github.com/lassandro/basm/pkg/config"
)

var version = "dev"

// errReported is returned once diagnostics have already been printed.
var errReported = errors.New("assembly failed")

// app carries everything a command touches so tests can swap the
// filesystem, streams and environment.
type app struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	lookup func(key string) (string, bool)

	logger *logrus.Logger
	conf   config.Config
}

func newApp() *app {
	return &app{
		fs:     afero.NewOsFs(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// colorEnabled follows NO_COLOR and whether stderr is a terminal.
func colorEnabled(w io.Writer) bool {
	if env.Str("NO_COLOR") != "" {
		return false
	}

	file, ok := w.(*os.File)
	return ok && isTerminal(int(file.Fd()))
}

// setup loads the environment configuration and applies the flags the
// user set on top of it.
func (a *app) setup(flags *pflag.FlagSet) error {
	conf, err := config.Load(a.lookup)
	if err != nil {
		return err
	}

	if flags.Changed("verbose") {
		conf.Verbose, _ = flags.GetBool("verbose")
	}

	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		conf.Format = config.Format(format)
	}

	if flags.Changed("output") {
		conf.Output, _ = flags.GetString("output")
	}

	if flags.Changed("listing") {
		conf.Listing, _ = flags.GetBool("listing")
	}

	if err := conf.Validate(); err != nil {
		return err
	}

	a.conf = conf

	a.logger = logrus.New()
	a.logger.SetOutput(a.stderr)
	a.logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    color.NoColor,
	})

	if conf.Verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	} else {
		a.logger.SetLevel(logrus.WarnLevel)
	}

	return nil
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "basm",
		Short:         "x86-64 assembler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Log every encoded instruction")

	root.AddCommand(
		newBuildCommand(a),
		newListCommand(a),
		newVersionCommand(a),
	)

	return root
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the basm version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "basm %s\n", version)
		},
	}
}

func (a *app) execute(args []string) int {
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(a.stderr, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}

		return 1
	}

	return 0
}

func main() {
	color.NoColor = !colorEnabled(os.Stderr)
	os.Exit(newApp().execute(os.Args[1:]))
}
