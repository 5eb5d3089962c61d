// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeWholeAddressSpace(t *testing.T) {
	for _, xlen := range []int{32, 64} {
		c := testConfig(false)
		c.XLEN = xlen

		want := uint64(0x1fffffff)

		if xlen == 64 {
			want = 0x1fffffffffffffff
		}

		for _, mode := range []Mode{NA4, NAPOT, TOR, Default} {
			e, n, err := c.encode(Region{Perm: RWX, Mode: mode})

			if err != nil {
				t.Fatalf("xlen:%d mode:%s encode: %v", xlen, mode, err)
			}

			if n != 1 {
				t.Errorf("xlen:%d mode:%s n = %d, want 1", xlen, mode, n)
			}

			if diff := cmp.Diff(Entry{Cfg: 0x1f, Addr: want}, e[0]); diff != "" {
				t.Errorf("xlen:%d mode:%s entry mismatch (-want +got):\n%s", xlen, mode, diff)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	for _, tc := range []struct {
		name   string
		pow2   bool
		region Region
		want   []Entry
	}{
		{
			name:   "TOR",
			region: Region{Start: 0x80000000, Size: 0x1800, Perm: RW, Mode: TOR},
			want: []Entry{
				{Cfg: 0x13, Addr: 0x20000000},
				{Cfg: 0x0b, Addr: 0x20000600},
			},
		},
		{
			name:   "TOR of 4 bytes",
			pow2:   true,
			region: Region{Start: 0x80000000, Size: 4, Perm: Read, Mode: TOR},
			want: []Entry{
				{Cfg: 0x11, Addr: 0x20000000},
				{Cfg: 0x09, Addr: 0x20000001},
			},
		},
		{
			name:   "default to TOR",
			region: Region{Start: 0x80000000, Size: 0x1800, Perm: RW, Mode: Default},
			want: []Entry{
				{Cfg: 0x13, Addr: 0x20000000},
				{Cfg: 0x0b, Addr: 0x20000600},
			},
		},
		{
			name:   "NA4",
			region: Region{Start: 0x20001000, Size: 4, Perm: Read, Mode: NA4},
			want:   []Entry{{Cfg: 0x11, Addr: 0x08000400}},
		},
		{
			name:   "default to NA4",
			region: Region{Start: 0x20001000, Size: 4, Perm: Read, Mode: Default},
			want:   []Entry{{Cfg: 0x11, Addr: 0x08000400}},
		},
		{
			name:   "NAPOT of 4 bytes",
			pow2:   true,
			region: Region{Start: 0x20001000, Size: 4, Perm: RW, Mode: NAPOT},
			want:   []Entry{{Cfg: 0x13, Addr: 0x08000400}},
		},
		{
			name:   "NAPOT",
			pow2:   true,
			region: Region{Start: 0x20002000, Size: 0x2000, Perm: RX, Mode: NAPOT},
			want:   []Entry{{Cfg: 0x1d, Addr: 0x08000bff}},
		},
		{
			name:   "default to NAPOT",
			pow2:   true,
			region: Region{Start: 0x20002000, Size: 0x2000, Perm: RX, Mode: Default},
			want:   []Entry{{Cfg: 0x1d, Addr: 0x08000bff}},
		},
		{
			name:   "NAPOT of 8 bytes",
			pow2:   true,
			region: Region{Start: 0x80000008, Size: 8, Mode: NAPOT},
			want:   []Entry{{Cfg: 0x18, Addr: 0x20000002}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig(tc.pow2)
			e, n, err := c.encode(tc.region)

			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			if diff := cmp.Diff(tc.want, e[:n]); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeInvalid(t *testing.T) {
	for _, tc := range []struct {
		name   string
		region Region
	}{
		{"unaligned start", Region{Start: 0x1002, Size: 8, Mode: TOR}},
		{"unaligned size", Region{Start: 0x1000, Size: 6, Mode: TOR}},
		{"empty", Region{Start: 0x1000, Size: 0, Mode: NAPOT}},
		{"NAPOT not power of two", Region{Start: 0x0, Size: 0x3000, Mode: NAPOT}},
		{"NAPOT not naturally aligned", Region{Start: 0x1000, Size: 0x2000, Mode: NAPOT}},
		{"NA4 larger than 4 bytes", Region{Start: 0x1000, Size: 8, Mode: NA4}},
		{"OFF", Region{Start: 0x1000, Size: 8, Mode: OFF}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig(true)

			if _, _, err := c.encode(tc.region); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("encode(%v) = %v, want ErrInvalidArgument", tc.region, err)
			}

			var tab Table

			if _, err := c.place(&tab, 0, c.Slots, tc.region); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("place(%v) = %v, want ErrInvalidArgument", tc.region, err)
			}

			if diff := cmp.Diff(Table{}, tab); diff != "" {
				t.Errorf("table modified on invalid region:\n%s", diff)
			}
		})
	}
}

func TestNAPOTRoundTrip(t *testing.T) {
	c := testConfig(true)
	c.XLEN = 64

	for size := uint64(8); size <= 1<<32; size <<= 1 {
		for _, start := range []uint64{0, size, 5 * size, 0x80000000 &^ (size - 1), 1 << 40} {
			e, n, err := c.encode(Region{Start: start, Size: size, Perm: Read, Mode: NAPOT})

			if err != nil || n != 1 {
				t.Fatalf("encode(%#x, %#x) = %d, %v", start, size, n, err)
			}

			gotStart, gotLast := napotRange(e[0].Addr)

			if gotStart != start || gotLast != start+size-1 {
				t.Errorf("napotRange(encode(%#x, %#x)) = [%#x, %#x]", start, size, gotStart, gotLast)
			}
		}
	}
}

func TestPlaceOutOfSlots(t *testing.T) {
	c := testConfig(false)

	var tab Table

	next, err := c.place(&tab, c.Slots-1, c.Slots, Region{Start: 0x80000000, Size: 0x1000, Perm: RW, Mode: TOR})

	if !errors.Is(err, ErrOutOfSlots) {
		t.Fatalf("place = %v, want ErrOutOfSlots", err)
	}

	if next != c.Slots-1 {
		t.Errorf("next = %d, want %d", next, c.Slots-1)
	}

	if diff := cmp.Diff(Table{}, tab); diff != "" {
		t.Errorf("table partially written:\n%s", diff)
	}

	// the same region fits when two entries remain
	if next, err = c.place(&tab, c.Slots-2, c.Slots, Region{Start: 0x80000000, Size: 0x1000, Perm: RW, Mode: TOR}); err != nil || next != c.Slots {
		t.Errorf("place = %d, %v, want %d, nil", next, err, c.Slots)
	}
}

func TestTranslate(t *testing.T) {
	c := testConfig(true)

	regions := []Region{
		{Start: 0x1000, Size: 0},
		{Start: 0x20002000, Size: 0x2000, Perm: RW, Mode: Default},
		{Start: 0x20001000, Size: 4, Perm: Read, Mode: Default},
	}

	var tab Table

	next, err := c.translate(&tab, 2, c.Slots, regions)

	if err != nil {
		t.Fatalf("translate: %v", err)
	}

	if next != 4 {
		t.Errorf("next = %d, want 4", next)
	}

	want := []Entry{
		{},
		{},
		{Cfg: 0x1b, Addr: 0x08000bff},
		{Cfg: 0x11, Addr: 0x08000400},
		{},
	}

	for i, w := range want {
		if got := tab.Entry(i); got != w {
			t.Errorf("entry %d = %v, want %v", i, got, w)
		}
	}

	if n, err := c.demand(regions); err != nil || n != 2 {
		t.Errorf("demand = %d, %v, want 2, nil", n, err)
	}
}

func TestTranslateNoRollback(t *testing.T) {
	c := testConfig(false)

	regions := []Region{
		{Start: 0x20001000, Size: 4, Perm: Read, Mode: Default},
		{Start: 0x80000000, Size: 0x1000, Perm: RW, Mode: Default},
	}

	var tab Table

	next, err := c.translate(&tab, 0, 2, regions)

	if !errors.Is(err, ErrOutOfSlots) {
		t.Fatalf("translate = %v, want ErrOutOfSlots", err)
	}

	if next != 1 {
		t.Errorf("next = %d, want 1", next)
	}

	if got, want := tab.Entry(0), (Entry{Cfg: 0x11, Addr: 0x08000400}); got != want {
		t.Errorf("entry 0 = %v, want %v", got, want)
	}

	if !tab.Entry(1).Free() {
		t.Errorf("entry 1 = %v, want free", tab.Entry(1))
	}
}
