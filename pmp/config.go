// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
)

// Layout describes the memory extents provided by the linker or the board
// memory map.
type Layout struct {
	// StateWord is the address of the word exposing execution state to
	// user mode (read only, NA4).
	StateWord uint64

	// ROMStart and ROMSize describe read-only executable memory.
	ROMStart uint64
	ROMSize  uint64

	// RAMStart and RAMSize describe RAM accessible to machine mode.
	RAMStart uint64
	RAMSize  uint64
}

// Config represents the fixed PMP configuration of a Manager.
type Config struct {
	// Slots is the number of PMP entries available to thread contexts.
	Slots int

	// XLEN is the register width (32 or 64).
	XLEN int

	// PowerOfTwo selects NAPOT as default encoding, when false regions
	// default to TOR (two entries each).
	PowerOfTwo bool

	// StackGuardSize is the size of the no-access region placed below
	// stacks.
	StackGuardSize uint64

	Layout
}

func isPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() (err error) {
	if c.Slots <= 0 || c.Slots > MaxSlots {
		return fmt.Errorf("invalid slot count %d (max %d)", c.Slots, MaxSlots)
	}

	if c.XLEN != 32 && c.XLEN != 64 {
		return fmt.Errorf("invalid XLEN %d", c.XLEN)
	}

	if c.StackGuardSize%4 != 0 {
		return fmt.Errorf("stack guard size %#x is not 4-byte aligned", c.StackGuardSize)
	}

	if c.PowerOfTwo && c.StackGuardSize != 0 && (!isPow2(c.StackGuardSize) || c.StackGuardSize < 8) {
		return fmt.Errorf("stack guard size %#x is not a power of two >= 8", c.StackGuardSize)
	}

	if c.ROMSize == 0 {
		return fmt.Errorf("ROM extent at %#x is empty", c.ROMStart)
	}

	if c.StackGuardSize != 0 && c.RAMSize == 0 {
		return fmt.Errorf("RAM extent at %#x is empty", c.RAMStart)
	}

	if c.FirstDynamicSlot() > c.Slots {
		return fmt.Errorf("%d slots cannot hold the %d fixed user entries", c.Slots, c.FirstDynamicSlot())
	}

	return
}

// defaultMode returns the encoding used for a region of the given size when
// the request does not mandate one.
func (c *Config) defaultMode(size uint64) Mode {
	switch {
	case size == 4:
		return NA4
	case c.PowerOfTwo:
		return NAPOT
	default:
		return TOR
	}
}

// slotsFor returns the number of entries consumed by a region of the given
// mode.
func slotsFor(m Mode) int {
	if m == TOR {
		return 2
	}

	return 1
}

// FirstDynamicSlot returns the index of the first user table entry available
// to memory domain partitions, preceding entries hold the state word, ROM
// and initial stack.
func (c *Config) FirstDynamicSlot() int {
	// state word is always NA4, ROM and stack use the default encoding
	return 1 + 2*slotsFor(c.defaultMode(0))
}

// MaxPartitions returns the number of partitions a single thread can hold.
func (c *Config) MaxPartitions() int {
	n := (c.Slots - c.FirstDynamicSlot()) / slotsFor(c.defaultMode(0))

	if n < 0 {
		return 0
	}

	return n
}

// addrMask returns the NAPOT address register value covering the whole
// address space.
func (c *Config) addrMask() uint64 {
	if c.XLEN == 32 {
		return 0xffffffff >> 3
	}

	return ^uint64(0) >> 3
}
