// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
)

// Region represents a logical memory protection request.
//
// A Region with zero Start and Size covers the whole address space, a
// Region with zero Size and non-zero Start is a reserved placeholder which
// translation skips.
type Region struct {
	Start uint64
	Size  uint64
	Perm  Perm
	Mode  Mode
}

func (r Region) whole() bool {
	return r.Start == 0 && r.Size == 0
}

func (r Region) reserved() bool {
	return r.Size == 0 && r.Start != 0
}

func (r Region) String() string {
	if r.whole() {
		return fmt.Sprintf("all %s %s", r.Perm, r.Mode)
	}

	return fmt.Sprintf("%#x-%#x %s %s", r.Start, r.Start+r.Size, r.Perm, r.Mode)
}

func checkAlignment(start uint64, size uint64) error {
	if start%4 != 0 || size%4 != 0 || size == 0 {
		return fmt.Errorf("%w, region %#x+%#x must be 4-byte aligned and not empty", ErrInvalidArgument, start, size)
	}

	return nil
}

// napotAddr returns the NAPOT address register value for a naturally
// aligned power of two region.
func napotAddr(start uint64, size uint64) uint64 {
	return (start | (size-1)>>1) >> 2
}

// encode converts a region into one or two PMP entries, it is shared by
// every path which needs to know how a region is represented in hardware.
func (c *Config) encode(r Region) (e [2]Entry, n int, err error) {
	if r.whole() {
		e[0] = newEntry(r.Perm, NAPOT, c.addrMask())
		return e, 1, nil
	}

	if err = checkAlignment(r.Start, r.Size); err != nil {
		return
	}

	mode := r.Mode

	if mode == Default {
		mode = c.defaultMode(r.Size)
	}

	switch {
	case mode == TOR:
		// the first entry only marks the bottom of the range
		e[0] = newEntry(r.Perm, NA4, r.Start>>2)
		e[1] = newEntry(r.Perm, TOR, r.Start>>2+r.Size>>2)
		n = 2
	case mode == NA4 || r.Size == 4:
		if r.Size != 4 {
			return e, 0, fmt.Errorf("%w, NA4 region %#x+%#x must be 4 bytes", ErrInvalidArgument, r.Start, r.Size)
		}

		e[0] = newEntry(r.Perm, NA4, r.Start>>2)
		n = 1
	case mode == NAPOT:
		if !isPow2(r.Size) || r.Start&(r.Size-1) != 0 {
			return e, 0, fmt.Errorf("%w, NAPOT region %#x+%#x must be a naturally aligned power of two", ErrInvalidArgument, r.Start, r.Size)
		}

		e[0] = newEntry(r.Perm, NAPOT, napotAddr(r.Start, r.Size))
		n = 1
	default:
		return e, 0, fmt.Errorf("%w, unsupported mode %s", ErrInvalidArgument, mode)
	}

	return
}

// slotWriter is the destination of encoded entries, either a shadow table
// or the live registers.
type slotWriter interface {
	set(i int, e Entry) error
}

// place encodes a region at slot i, returning the next free slot. Nothing is
// written unless the whole region fits below capacity.
func (c *Config) place(w slotWriter, i int, capacity int, r Region) (next int, err error) {
	e, n, err := c.encode(r)

	if err != nil {
		return i, err
	}

	if i < 0 || i+n > capacity {
		return i, fmt.Errorf("%w, region %s needs %d entries at %d (capacity %d)", ErrOutOfSlots, r, n, i, capacity)
	}

	for j := 0; j < n; j++ {
		if err = w.set(i+j, e[j]); err != nil {
			return i + j, err
		}
	}

	return i + n, nil
}

// translate places regions in order starting at slot i, skipping reserved
// placeholders. Regions placed before a failure are not rolled back.
func (c *Config) translate(w slotWriter, i int, capacity int, regions []Region) (next int, err error) {
	next = i

	for _, r := range regions {
		if r.reserved() {
			continue
		}

		if next, err = c.place(w, next, capacity, r); err != nil {
			return
		}
	}

	return
}

// demand returns the number of entries required by regions.
func (c *Config) demand(regions []Region) (n int, err error) {
	for _, r := range regions {
		if r.reserved() {
			continue
		}

		_, k, err := c.encode(r)

		if err != nil {
			return 0, err
		}

		n += k
	}

	return
}
