// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
)

// RegisterFile represents the live PMP control registers of a core.
type RegisterFile interface {
	// ReadPMP returns the configuration byte and address register value
	// of entry i.
	ReadPMP(i int) (cfg uint8, addr uint64, err error)
	// WritePMP sets the configuration byte and address register value of
	// entry i.
	WritePMP(i int, cfg uint8, addr uint64) error
	// SetMPRV enables (or disables) PMP enforcement of machine mode loads
	// and stores through mstatus.MPRV.
	SetMPRV(enable bool)
}

// liveWriter directs encoded entries to the live registers, it is only
// reachable through the activation and static configuration functions.
type liveWriter struct {
	rf RegisterFile
}

func (w liveWriter) set(i int, e Entry) error {
	return w.rf.WritePMP(i, e.Cfg, e.Addr)
}

// Registers is an in-memory RegisterFile, it records the sequence of MPRV
// transitions to allow verification of reload ordering.
type Registers struct {
	Table

	// N is the number of implemented entries.
	N int
	// MPRV is the current mstatus.MPRV state.
	MPRV bool
	// Writes counts WritePMP invocations.
	Writes int
	// Trace records MPRV transitions and entry writes as they happen.
	Trace []string
}

// NewRegisters returns an in-memory register file with n entries.
func NewRegisters(n int) *Registers {
	return &Registers{N: n}
}

// ReadPMP implements RegisterFile.
func (r *Registers) ReadPMP(i int) (cfg uint8, addr uint64, err error) {
	if i < 0 || i >= r.N {
		return 0, 0, fmt.Errorf("invalid PMP index %d", i)
	}

	return r.Cfg[i], r.Addr[i], nil
}

// WritePMP implements RegisterFile.
func (r *Registers) WritePMP(i int, cfg uint8, addr uint64) error {
	if i < 0 || i >= r.N {
		return fmt.Errorf("invalid PMP index %d", i)
	}

	if r.Cfg[i]&CFG_L != 0 {
		return fmt.Errorf("PMP entry %d is locked", i)
	}

	r.Cfg[i] = cfg
	r.Addr[i] = addr
	r.Writes++

	r.Trace = append(r.Trace, fmt.Sprintf("pmp%d", i))

	return nil
}

// SetMPRV implements RegisterFile.
func (r *Registers) SetMPRV(enable bool) {
	r.MPRV = enable
	r.Trace = append(r.Trace, fmt.Sprintf("mprv=%v", enable))
}
