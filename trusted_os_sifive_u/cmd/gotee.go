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

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-pmp/trusted_os_sifive_u/internal"
)

func init() {
	Add(Cmd{
		Name: "gotee",
		Help: "PMP isolated applet and kernel w/ TamaGo unikernels",
		Fn:   goteeCmd,
	})
}

func goteeCmd(_ *term.Terminal, _ []string) (res string, err error) {
	if err = gotee.GoTEE(); err != nil {
		return
	}

	for _, c := range gotee.Contexts() {
		res += fmt.Sprintf("%s stopped, %d user PMP entries in use\n", c.Name, c.Thread.User.Used(gotee.Manager.Slots))
	}

	return
}
