// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"testing"
)

type access struct {
	addr  uint64
	size  uint64
	write bool
	want  bool
}

func checkAccess(t *testing.T, m *Manager, th *Thread, cases []access) {
	t.Helper()

	for _, a := range cases {
		if got := m.ValidateAccess(th, a.addr, a.size, a.write); got != a.want {
			t.Errorf("ValidateAccess(%#x, %#x, write:%v) = %v, want %v", a.addr, a.size, a.write, got, a.want)
		}
	}
}

func TestValidateAccessNAPOT(t *testing.T) {
	m := testManager(t, testConfig(true))
	th := testThread("t0")

	if err := m.PopulateUserRegions(th); err != nil {
		t.Fatalf("PopulateUserRegions: %v", err)
	}

	for _, p := range []Partition{
		{Start: 0x20000000, Size: 0x1000, Perm: RW},
		{Start: 0x20001000, Size: 0x1000, Perm: Read},
	} {
		if err := m.AddDynamic(th, p.Start, p.Size, p.Perm); err != nil {
			t.Fatalf("AddDynamic: %v", err)
		}
	}

	checkAccess(t, m, th, []access{
		{0x20000000, 0x1000, true, true},
		{0x20000fff, 1, true, true},
		{0x20000800, 0, false, true},
		{0x20000ff0, 0x20, false, false},
		{0x20001000, 0x10, false, true},
		{0x20001000, 0x10, true, false},
		{0x20001ffc, 4, false, true},
		{0x20001ffc, 8, false, false},
		{0x20002000, 4, false, false},
		{0x1ffffffc, 8, false, false},
		{0xfffffffffffffff0, 0x20, false, false},
		// fixed entries are not considered
		{0x80010000, 4, false, false},
		{testStateWord, 4, false, false},
	})
}

func TestValidateAccessTOR(t *testing.T) {
	m := testManager(t, testConfig(false))
	th := testThread("t0")

	if err := m.PopulateUserRegions(th); err != nil {
		t.Fatalf("PopulateUserRegions: %v", err)
	}

	if err := m.AddDynamic(th, 0x80000000, 0x1800, RW); err != nil {
		t.Fatalf("AddDynamic: %v", err)
	}

	if err := m.AddDynamic(th, 0x80004000, 4, Read); err != nil {
		t.Fatalf("AddDynamic: %v", err)
	}

	checkAccess(t, m, th, []access{
		{0x80000000, 4, true, true},
		{0x80001000, 0x800, true, true},
		{0x80001000, 0x801, false, false},
		{0x7ffffffc, 4, false, false},
		{0x80004000, 4, false, true},
		{0x80004000, 4, true, false},
		{0x80004000, 8, false, false},
	})
}

func TestValidateAccessTORBottomEntry(t *testing.T) {
	m := testManager(t, testConfig(false))
	th := testThread("t0")
	first := m.FirstDynamicSlot()

	if err := m.AddDynamic(th, 0x80000000, 0x1800, RW); err != nil {
		t.Fatalf("AddDynamic: %v", err)
	}

	// the range permissions are carried by the top entry
	th.User.Cfg[first+1] = uint8(TOR) << CFG_A

	checkAccess(t, m, th, []access{
		{0x80000000, 4, false, false},
		{0x80001000, 4, false, false},
	})

	// without its top entry the bottom entry covers at most 4 bytes at the
	// start of the range
	th.User.Cfg[first+1] = 0
	th.User.Addr[first+1] = 0

	checkAccess(t, m, th, []access{
		{0x80000000, 4, true, true},
		{0x80000000, 8, false, false},
		{0x80000004, 4, false, false},
	})
}

func TestValidateAccess64(t *testing.T) {
	c := testConfig(true)
	c.XLEN = 64

	m := testManager(t, c)
	th := testThread("t0")

	if err := m.AddDynamic(th, 1<<36, 1<<20, RW); err != nil {
		t.Fatalf("AddDynamic: %v", err)
	}

	checkAccess(t, m, th, []access{
		{1<<36 + 0x100, 0x100, true, true},
		{1<<36 + 1<<20 - 4, 4, true, true},
		{1<<36 + 1<<20 - 4, 8, true, false},
		{1<<36 - 4, 8, false, false},
	})
}

func TestValidateAccessEmpty(t *testing.T) {
	m := testManager(t, testConfig(true))
	th := testThread("t0")

	checkAccess(t, m, th, []access{
		{0, 4, false, false},
		{0x20000000, 0x1000, false, false},
	})
}

func TestValidateAccessTORFirstEntry(t *testing.T) {
	m := testManager(t, testConfig(true))
	th := testThread("t0")

	th.User.Cfg[0] = uint8(TOR) << CFG_A

	defer func() {
		if recover() == nil {
			t.Errorf("no panic on TOR encoded entry 0")
		}
	}()

	m.ValidateAccess(th, 0x20000000, 4, false)
}
