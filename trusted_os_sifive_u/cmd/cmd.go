// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-pmp/trusted_os_sifive_u/internal"
)

// Banner is printed at console start.
var Banner string

type CmdFn func(term *term.Terminal, arg []string) (res string, err error)

// Cmd represents a console command.
type Cmd struct {
	// Name is the command name, as shown in help
	Name string
	// Args is the number of pattern submatches passed to Fn
	Args int
	// Pattern matches command lines, defaults to Name
	Pattern *regexp.Regexp
	// Syntax describes the command arguments
	Syntax string
	// Help is the command description
	Help string
	// Fn is the command handler
	Fn CmdFn
}

var cmds = make(map[string]*Cmd)

// Add registers a console command.
func Add(cmd Cmd) {
	if cmd.Pattern == nil {
		cmd.Pattern = regexp.MustCompile(`^` + cmd.Name + `$`)
	}

	cmds[cmd.Name] = &cmd
}

// Help returns the list of registered commands.
func Help(term *term.Terminal) string {
	var names []string

	for name := range cmds {
		names = append(names, name)
	}

	sort.Strings(names)

	var buf bytes.Buffer
	t := tabwriter.NewWriter(&buf, 16, 8, 0, '\t', tabwriter.TabIndent)

	for _, name := range names {
		fmt.Fprintf(t, "%s\t%s\t # %s\n", cmds[name].Name, cmds[name].Syntax, cmds[name].Help)
	}

	t.Flush()

	return buf.String()
}

func handle(term *term.Terminal, line string) (err error) {
	var match *Cmd
	var arg []string

	for _, cmd := range cmds {
		if m := cmd.Pattern.FindStringSubmatch(line); len(m) > 0 && len(m)-1 == cmd.Args {
			match = cmd
			arg = m[1:]
			break
		}
	}

	if match == nil {
		return errors.New("unknown command, type `help`")
	}

	res, err := match.Fn(term, arg)

	if len(res) > 0 {
		fmt.Fprintln(term, res)
	}

	return
}

// SerialConsole runs the command console on a serial port until the session
// is closed.
func SerialConsole(uart io.ReadWriter) {
	gotee.Console.Banner = Banner
	gotee.Console.Help = Help
	gotee.Console.Handler = handle
	gotee.Console.Start(uart)
}
