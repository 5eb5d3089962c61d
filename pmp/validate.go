// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"math"
	"math/bits"
)

// napotRange decodes a NAPOT address register value into the first and last
// address of the region.
func napotRange(addr uint64) (start uint64, last uint64) {
	ones := bits.TrailingZeros64(^addr)

	if ones+3 >= 64 {
		return 0, math.MaxUint64
	}

	mask := uint64(1)<<ones - 1
	size := uint64(1) << (ones + 3)
	start = (addr &^ mask) << 2

	return start, start + size - 1
}

// bounds returns the address range and permissions of the region starting at
// user table entry i, along with the number of entries it spans.
func (m *Manager) bounds(t *Table, i int) (start uint64, last uint64, perm Perm, n int, ok bool) {
	e := t.Entry(i)

	switch e.Mode() {
	case NA4:
		start = e.Addr << 2

		if i+1 < m.Slots && t.Entry(i+1).Mode() == TOR {
			next := t.Entry(i + 1)
			end := next.Addr << 2

			if end <= start {
				return 0, 0, 0, 2, false
			}

			return start, end - 1, next.Perm(), 2, true
		}

		return start, start + 3, e.Perm(), 1, true
	case NAPOT:
		start, last = napotRange(e.Addr)
		return start, last, e.Perm(), 1, true
	}

	return 0, 0, 0, 1, false
}

// ValidateAccess returns whether the thread user mode context grants access
// to the whole buffer [addr, addr+size) within a single dynamic region.
// Read permission is always required, write permission when write is true.
func (m *Manager) ValidateAccess(t *Thread, addr uint64, size uint64, write bool) bool {
	if m.PowerOfTwo && t.User.Entry(0).Mode() == TOR {
		panic("pmp: user table entry 0 is TOR encoded")
	}

	want := Read

	if write {
		want |= Write
	}

	last := addr

	if size > 0 {
		last = addr + size - 1

		if last < addr {
			return false
		}
	}

	for i := m.FirstDynamicSlot(); i < m.Slots && t.User.Cfg[i] != 0; {
		start, end, perm, n, ok := m.bounds(&t.User, i)
		i += n

		if !ok || perm&want != want {
			continue
		}

		if addr >= start && last <= end {
			return true
		}
	}

	return false
}
