// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io"
	"log"

	"golang.org/x/term"
)

// Console represents a command console instance.
type Console struct {
	// Banner is the welcome banner
	Banner string
	// Help returns the `help` command output
	Help func(*term.Terminal) string
	// Handler is the terminal command handler
	Handler func(*term.Terminal, string) error
	// Term is the terminal instance, nil until Start is invoked
	Term *term.Terminal
}

// NewScreenConsole returns a console without an attached terminal, guest
// output is directed to standard output until Start is invoked.
func NewScreenConsole() *Console {
	return &Console{}
}

// Log buffers a guest output character to the console terminal, or to
// standard output when no terminal is attached.
func (c *Console) Log(ch byte, secure bool) {
	if c.Term != nil {
		BufferedTermLog(ch, secure, c.Term)
	} else {
		BufferedStdoutLog(ch, secure)
	}
}

// Start runs the console on the given stream, it returns when the stream
// is exhausted or the handler returns io.EOF.
func (c *Console) Start(rw io.ReadWriter) {
	c.Term = term.NewTerminal(rw, "")
	c.Term.SetPrompt(string(c.Term.Escape.Red) + "> " + string(c.Term.Escape.Reset))

	defer func() {
		c.Term = nil
	}()

	fmt.Fprintf(c.Term, "%s\n", c.Banner)

	if c.Help != nil {
		fmt.Fprintf(c.Term, "%s\n", string(c.Term.Escape.Cyan)+c.Help(c.Term)+string(c.Term.Escape.Reset))
	}

	for {
		cmd, err := c.Term.ReadLine()

		if err == io.EOF {
			break
		}

		if err != nil {
			log.Printf("readline error: %v", err)
			continue
		}

		err = c.Handler(c.Term, cmd)

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Fprintf(c.Term, "error: %v\n", err)
		}
	}
}
