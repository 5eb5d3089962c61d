// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

// Package csr provides access to the live PMP registers of the SiFive FU540
// application cores, for use as pmp.RegisterFile.
package csr

import (
	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE-pmp/pmp"
)

// Entries is the number of PMP entries implemented by the FU540 cores.
const Entries = 16

// defined in mprv_riscv64.s
func setMPRV()
func clearMPRV()

// PMP represents a window of the PMP registers, entry 0 of the window is
// physical entry Base.
type PMP struct {
	// Base is the first physical entry of the window
	Base int
}

// ReadPMP implements pmp.RegisterFile.
func (p *PMP) ReadPMP(i int) (cfg uint8, addr uint64, err error) {
	a, r, w, x, mode, l, err := fu540.RV64.ReadPMP(p.Base + i)

	if err != nil {
		return
	}

	if r {
		cfg |= pmp.CFG_R
	}

	if w {
		cfg |= pmp.CFG_W
	}

	if x {
		cfg |= pmp.CFG_X
	}

	if l {
		cfg |= pmp.CFG_L
	}

	cfg |= uint8(mode) << pmp.CFG_A

	return cfg, a >> 2, nil
}

// WritePMP implements pmp.RegisterFile.
func (p *PMP) WritePMP(i int, cfg uint8, addr uint64) error {
	e := pmp.Entry{Cfg: cfg, Addr: addr}
	perm := e.Perm()

	return fu540.RV64.WritePMP(p.Base+i, addr<<2, perm&pmp.Read != 0, perm&pmp.Write != 0, perm&pmp.Exec != 0, int(e.Mode()), e.Locked())
}

// SetMPRV implements pmp.RegisterFile.
func (p *PMP) SetMPRV(enable bool) {
	if enable {
		setMPRV()
	} else {
		clearMPRV()
	}
}
