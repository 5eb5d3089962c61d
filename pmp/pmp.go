// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pmp manages RISC-V Physical Memory Protection (PMP) entries on
// behalf of execution contexts.
//
// Logical regions are encoded into NA4, NAPOT or TOR entries and stored in
// per-thread shadow tables, which are written to the live pmpcfg/pmpaddr
// registers only through the activation functions. Memory domain partitions
// are projected onto every member thread's user table and can be added or
// removed at runtime.
//
// The package performs no locking, callers must serialize mutation of
// threads sharing a domain.
package pmp

import (
	"errors"
	"fmt"
)

// MaxSlots is the architectural maximum number of PMP entries.
const MaxSlots = 64

// pmpcfg fields
const (
	CFG_R = 1 << 0
	CFG_W = 1 << 1
	CFG_X = 1 << 2
	CFG_A = 3
	CFG_L = 1 << 7

	cfgPermMask = CFG_R | CFG_W | CFG_X
	cfgModeMask = 0b11 << CFG_A
)

var (
	// ErrInvalidArgument is returned for unaligned or empty regions.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfSlots is returned when a region does not fit the available
	// PMP entries.
	ErrOutOfSlots = errors.New("out of PMP slots")
	// ErrNotFound is returned when a partition cannot be located in any
	// thread table.
	ErrNotFound = errors.New("partition not found")
)

// Perm represents region access permissions.
type Perm uint8

// Access permissions, matching pmpcfg R/W/X bit positions.
const (
	Read  Perm = CFG_R
	Write Perm = CFG_W
	Exec  Perm = CFG_X

	RW  = Read | Write
	RX  = Read | Exec
	RWX = Read | Write | Exec
)

func (p Perm) String() (s string) {
	for _, f := range []struct {
		p Perm
		c byte
	}{{Read, 'r'}, {Write, 'w'}, {Exec, 'x'}} {
		if p&f.p != 0 {
			s += string(f.c)
		} else {
			s += "-"
		}
	}

	return
}

// ParsePerm parses permissions in "rwx" notation, '-' placeholders are
// ignored.
func ParsePerm(s string) (p Perm, err error) {
	for _, c := range s {
		switch c {
		case 'r', 'R':
			p |= Read
		case 'w', 'W':
			p |= Write
		case 'x', 'X':
			p |= Exec
		case '-':
		default:
			return 0, fmt.Errorf("invalid permission %q", s)
		}
	}

	return
}

// Mode represents the pmpcfg address matching mode (A field).
type Mode uint8

// Address matching modes, Default lets the Manager pick NAPOT or TOR
// according to its configuration.
const (
	OFF Mode = iota
	TOR
	NA4
	NAPOT
	Default
)

func (m Mode) String() string {
	switch m {
	case OFF:
		return "OFF"
	case TOR:
		return "TOR"
	case NA4:
		return "NA4"
	case NAPOT:
		return "NAPOT"
	case Default:
		return "DEFAULT"
	}

	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Entry represents a single PMP entry, its configuration byte and address
// register value (physical address >> 2, NAPOT bits included).
type Entry struct {
	Cfg  uint8
	Addr uint64
}

func newEntry(perm Perm, mode Mode, addr uint64) Entry {
	return Entry{
		Cfg:  uint8(perm)&cfgPermMask | uint8(mode)<<CFG_A,
		Addr: addr,
	}
}

// Mode returns the entry address matching mode.
func (e Entry) Mode() Mode {
	return Mode((e.Cfg & cfgModeMask) >> CFG_A)
}

// Perm returns the entry access permissions.
func (e Entry) Perm() Perm {
	return Perm(e.Cfg & cfgPermMask)
}

// Locked returns whether the entry lock bit is set.
func (e Entry) Locked() bool {
	return e.Cfg&CFG_L != 0
}

// Free returns whether the entry is unused.
func (e Entry) Free() bool {
	return e.Cfg == 0
}

func (e Entry) String() string {
	return fmt.Sprintf("cfg:%#.2x A:%-5s %s addr:%#.16x", e.Cfg, e.Mode(), e.Perm(), e.Addr)
}
