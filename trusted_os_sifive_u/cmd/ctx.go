// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-pmp/pmp"
	"github.com/usbarmory/GoTEE-pmp/trusted_os_sifive_u/internal"
)

func init() {
	Add(Cmd{
		Name: "ctx",
		Help: "show execution contexts PMP entries and partitions",
		Fn:   ctxCmd,
	})

	Add(Cmd{
		Name:    "attach",
		Args:    4,
		Pattern: regexp.MustCompile(`^attach (\w+) ([[:xdigit:]]+) ([[:xdigit:]]+) ([rwx-]{1,3})$`),
		Syntax:  "<ctx> <hex addr> <hex size> <rwx>",
		Help:    "add memory domain partition",
		Fn:      attachCmd,
	})

	Add(Cmd{
		Name:    "detach",
		Args:    2,
		Pattern: regexp.MustCompile(`^detach (\w+) (\d+)$`),
		Syntax:  "<ctx> <id>",
		Help:    "remove memory domain partition",
		Fn:      detachCmd,
	})

	Add(Cmd{
		Name:    "validate",
		Args:    4,
		Pattern: regexp.MustCompile(`^validate (\w+) ([[:xdigit:]]+) (\d+) (r|w)$`),
		Syntax:  "<ctx> <hex addr> <size> <r|w>",
		Help:    "check buffer access",
		Fn:      validateCmd,
	})
}

func ctxCmd(_ *term.Terminal, _ []string) (string, error) {
	var buf strings.Builder

	for _, c := range gotee.Contexts() {
		fmt.Fprintf(&buf, "%s secure:%v\n", c.Name, c.Secure())

		for id := 0; id < gotee.Manager.MaxPartitions(); id++ {
			if p, ok := c.Domain.Partition(id); ok {
				fmt.Fprintf(&buf, "  partition %d addr:%#.16x size:%#x %s\n", id, p.Start, p.Size, p.Perm)
			}
		}

		buf.WriteString(c.Dump())
	}

	if buf.Len() == 0 {
		return "no execution contexts, run `gotee` first", nil
	}

	return buf.String(), nil
}

func parseRange(addr string, size string, sizeBase int) (a uint64, s uint64, err error) {
	if a, err = strconv.ParseUint(addr, 16, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid address, %v", err)
	}

	if s, err = strconv.ParseUint(size, sizeBase, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid size, %v", err)
	}

	return
}

func attachCmd(_ *term.Terminal, arg []string) (res string, err error) {
	c, err := gotee.Lookup(arg[0])

	if err != nil {
		return
	}

	addr, size, err := parseRange(arg[1], arg[2], 16)

	if err != nil {
		return
	}

	perm, err := pmp.ParsePerm(arg[3])

	if err != nil {
		return
	}

	id, err := c.Attach(addr, size, perm)

	if err != nil {
		return
	}

	return fmt.Sprintf("partition %d", id), nil
}

func detachCmd(_ *term.Terminal, arg []string) (res string, err error) {
	c, err := gotee.Lookup(arg[0])

	if err != nil {
		return
	}

	id, err := strconv.Atoi(arg[1])

	if err != nil {
		return "", fmt.Errorf("invalid partition, %v", err)
	}

	return "", c.Detach(id)
}

func validateCmd(_ *term.Terminal, arg []string) (res string, err error) {
	c, err := gotee.Lookup(arg[0])

	if err != nil {
		return
	}

	addr, size, err := parseRange(arg[1], arg[2], 10)

	if err != nil {
		return
	}

	if c.Validate(addr, size, arg[3] == "w") {
		return "authorized", nil
	}

	return "denied", nil
}
