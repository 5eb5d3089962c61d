// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build sifive_u
// +build sifive_u

package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-pmp/internal/csr"
	"github.com/usbarmory/GoTEE-pmp/pmp"
)

func init() {
	Add(Cmd{
		Name:    "pmp ",
		Args:    1,
		Pattern: regexp.MustCompile(`^pmp (\d+|all)$`),
		Syntax:  "<index>|all",
		Help:    "read PMP CSR",
		Fn:      pmpRead,
	})

	Add(Cmd{
		Name:    "pmp",
		Args:    4,
		Pattern: regexp.MustCompile(`^pmp (\d+) ([[:xdigit:]]+) (OFF|TOR|NA4|NAPOT) ([rwx-]{3})$`),
		Syntax:  "<index> <hex addr> <mode> <rwx>",
		Help:    "write PMP CSR (addr is pmpaddr value)",
		Fn:      pmpWrite,
	})
}

var modes = map[string]pmp.Mode{
	"OFF":   pmp.OFF,
	"TOR":   pmp.TOR,
	"NA4":   pmp.NA4,
	"NAPOT": pmp.NAPOT,
}

func pmpRead(_ *term.Terminal, arg []string) (res string, err error) {
	var buf strings.Builder

	first, last := 0, csr.Entries-1

	if arg[0] != "all" {
		i, err := strconv.ParseUint(arg[0], 10, 8)

		if err != nil {
			return "", fmt.Errorf("invalid index, %v", err)
		}

		first, last = int(i), int(i)
	}

	rf := &csr.PMP{}

	for i := first; i <= last; i++ {
		cfg, addr, err := rf.ReadPMP(i)

		if err != nil {
			return "", err
		}

		fmt.Fprintf(&buf, "PMP:%.2d %s\n", i, pmp.Entry{Cfg: cfg, Addr: addr})
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func pmpWrite(_ *term.Terminal, arg []string) (res string, err error) {
	i, err := strconv.ParseUint(arg[0], 10, 8)

	if err != nil {
		return "", fmt.Errorf("invalid index, %v", err)
	}

	addr, err := strconv.ParseUint(arg[1], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	perm, err := pmp.ParsePerm(arg[3])

	if err != nil {
		return
	}

	cfg := uint8(perm) | uint8(modes[arg[2]])<<pmp.CFG_A

	return "", (&csr.PMP{}).WritePMP(int(i), cfg, addr)
}
