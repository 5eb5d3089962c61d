// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build sifive_u
// +build sifive_u

package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/term"

	"github.com/usbarmory/tamago/soc/sifive/physicalfilter"

	"github.com/usbarmory/GoTEE-pmp/pmp"
)

// Base is the Device PMP (physical filter) base address, zero when the
// platform lacks one.
var Base uint32

func init() {
	Add(Cmd{
		Name:    "iopmp",
		Args:    1,
		Pattern: regexp.MustCompile(`^iopmp (\d+)$`),
		Syntax:  "<index>",
		Help:    "read Device PMP",
		Fn:      iopmpRead,
	})
}

func iopmpRead(_ *term.Terminal, arg []string) (res string, err error) {
	if Base == 0 {
		return "", errors.New("unavailable")
	}

	i, err := strconv.ParseUint(arg[0], 10, 8)

	if err != nil {
		return "", fmt.Errorf("invalid index, %v", err)
	}

	pf := &physicalfilter.PhysicalFilter{
		Base: Base,
	}

	addr, r, w, a, lock, err := pf.ReadPMP(int(i))

	if err != nil {
		return
	}

	var perm pmp.Perm

	if r {
		perm |= pmp.Read
	}

	if w {
		perm |= pmp.Write
	}

	return fmt.Sprintf("DevicePMP:%.2d addr:%#.16x A:%-5s %s lock:%v", i, addr, pmp.Mode(a), perm, lock), nil
}
