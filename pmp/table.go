// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
	"strings"
)

// Table represents a shadow copy of the PMP registers for one context.
//
// Live entries are packed from index 0 upwards, a free (zero) entry is
// never followed by a live one.
type Table struct {
	Cfg  [MaxSlots]uint8
	Addr [MaxSlots]uint64
}

// Reset clears all table entries.
func (t *Table) Reset() {
	*t = Table{}
}

// Entry returns the i-th table entry.
func (t *Table) Entry(i int) Entry {
	return Entry{Cfg: t.Cfg[i], Addr: t.Addr[i]}
}

func (t *Table) set(i int, e Entry) error {
	if i < 0 || i >= MaxSlots {
		return fmt.Errorf("%w, index %d", ErrOutOfSlots, i)
	}

	t.Cfg[i] = e.Cfg
	t.Addr[i] = e.Addr

	return nil
}

// firstFree returns the index of the first free entry in [from, n), or -1.
func (t *Table) firstFree(from int, n int) int {
	for i := from; i < n; i++ {
		if t.Cfg[i] == 0 {
			return i
		}
	}

	return -1
}

// find returns the index of the first entry in [from, n) matching mode and
// address, or -1.
func (t *Table) find(from int, n int, e Entry) int {
	for i := from; i < n; i++ {
		if t.Entry(i).Mode() == e.Mode() && t.Addr[i] == e.Addr {
			return i
		}
	}

	return -1
}

// remove drops count entries at index i, shifting the entries above it down
// and clearing the vacated tail of the first n entries.
func (t *Table) remove(i int, count int, n int) {
	copy(t.Cfg[i:n], t.Cfg[i+count:n])
	copy(t.Addr[i:n], t.Addr[i+count:n])

	for j := n - count; j < n; j++ {
		t.Cfg[j] = 0
		t.Addr[j] = 0
	}
}

// clear zeroes entries in [from, n).
func (t *Table) clear(from int, n int) {
	for i := from; i < n; i++ {
		t.Cfg[i] = 0
		t.Addr[i] = 0
	}
}

// Used returns the number of live entries in the first n entries.
func (t *Table) Used(n int) (used int) {
	for i := 0; i < n; i++ {
		if t.Cfg[i] != 0 {
			used++
		}
	}

	return
}

// Packed returns the first n configuration bytes folded into pmpcfgX
// register values, the returned slice is indexed by CSR number offset.
//
// On RV32 each pmpcfg register holds 4 entries, on RV64 only even
// numbered pmpcfg registers exist and each holds 8 entries (odd indices are
// left zero).
func (t *Table) Packed(n int, xlen int) []uint64 {
	per := xlen / 8
	stride := 1

	if xlen == 64 {
		stride = 2
	}

	regs := make([]uint64, ((n+per-1)/per)*stride)

	for i := 0; i < n; i++ {
		regs[(i/per)*stride] |= uint64(t.Cfg[i]) << (8 * (i % per))
	}

	return regs
}

// Dump returns a textual representation of the first n entries.
func (t *Table) Dump(n int) string {
	var b strings.Builder

	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%.2d %s\n", i, t.Entry(i))
	}

	return b.String()
}
