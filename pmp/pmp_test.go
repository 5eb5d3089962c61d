// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"testing"
)

const (
	testStateWord = 0x80000100
	testROMStart  = 0x20000000
	testROMSize   = 0x00100000
	testRAMStart  = 0x80000000
	testRAMSize   = 0x00100000
)

func testConfig(pow2 bool) Config {
	return Config{
		Slots:          16,
		XLEN:           32,
		PowerOfTwo:     pow2,
		StackGuardSize: 64,
		Layout: Layout{
			StateWord: testStateWord,
			ROMStart:  testROMStart,
			ROMSize:   testROMSize,
			RAMStart:  testRAMStart,
			RAMSize:   testRAMSize,
		},
	}
}

func testManager(t *testing.T, c Config) *Manager {
	t.Helper()

	m, err := NewManager(c)

	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	return m
}

func testThread(name string) *Thread {
	return &Thread{
		Name:  name,
		Stack: Extent{Start: 0x80010000, Size: 0x1000},
	}
}

// checkPacked fails if a live user table entry follows a free one.
func checkPacked(t *testing.T, m *Manager, th *Thread) {
	t.Helper()

	hole := -1

	for i := m.FirstDynamicSlot(); i < m.Slots; i++ {
		if th.User.Cfg[i] == 0 {
			if hole < 0 {
				hole = i
			}
			continue
		}

		if hole >= 0 {
			t.Fatalf("thread %s: live entry %d follows free entry %d\n%s", th.Name, i, hole, th.User.Dump(m.Slots))
		}
	}
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		edit func(c *Config)
		ok   bool
	}{
		{"default", func(c *Config) {}, true},
		{"no slots", func(c *Config) { c.Slots = 0 }, false},
		{"too many slots", func(c *Config) { c.Slots = MaxSlots + 1 }, false},
		{"xlen", func(c *Config) { c.XLEN = 128 }, false},
		{"unaligned guard", func(c *Config) { c.StackGuardSize = 66 }, false},
		{"non pow2 guard", func(c *Config) { c.StackGuardSize = 96 }, false},
		{"prefix does not fit", func(c *Config) { c.Slots = 2 }, false},
		{"no ROM", func(c *Config) { c.ROMSize = 0 }, false},
		{"no RAM with guard", func(c *Config) { c.RAMSize = 0 }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig(true)
			tc.edit(&c)

			if err := c.Validate(); (err == nil) != tc.ok {
				t.Errorf("Validate() = %v, want ok %v", err, tc.ok)
			}
		})
	}
}

func TestPartitionBudget(t *testing.T) {
	for _, tc := range []struct {
		pow2  bool
		first int
		max   int
	}{
		{true, 3, 13},
		{false, 5, 5},
	} {
		c := testConfig(tc.pow2)

		if got := c.FirstDynamicSlot(); got != tc.first {
			t.Errorf("pow2:%v FirstDynamicSlot() = %d, want %d", tc.pow2, got, tc.first)
		}

		if got := c.MaxPartitions(); got != tc.max {
			t.Errorf("pow2:%v MaxPartitions() = %d, want %d", tc.pow2, got, tc.max)
		}
	}
}

func TestEntryString(t *testing.T) {
	e := newEntry(RW, NAPOT, 0x1ff)

	if got, want := e.String(), "cfg:0x1b A:NAPOT rw- addr:0x00000000000001ff"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if e.Free() || e.Locked() {
		t.Errorf("unexpected Free/Locked for %v", e)
	}
}

func TestPacked(t *testing.T) {
	var tab Table

	for i := 0; i < 9; i++ {
		tab.Cfg[i] = uint8(i + 1)
	}

	rv32 := tab.Packed(16, 32)

	if len(rv32) != 4 || rv32[0] != 0x04030201 || rv32[1] != 0x08070605 || rv32[2] != 0x09 || rv32[3] != 0 {
		t.Errorf("RV32 Packed() = %#x", rv32)
	}

	rv64 := tab.Packed(16, 64)

	if len(rv64) != 4 || rv64[0] != 0x0807060504030201 || rv64[1] != 0 || rv64[2] != 0x09 || rv64[3] != 0 {
		t.Errorf("RV64 Packed() = %#x", rv64)
	}
}

func TestParsePerm(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want Perm
		ok   bool
	}{
		{"", 0, true},
		{"r", Read, true},
		{"rw-", RW, true},
		{"RX", RX, true},
		{"rwx", RWX, true},
		{"rwz", 0, false},
	} {
		p, err := ParsePerm(tc.s)

		if (err == nil) != tc.ok || p != tc.want {
			t.Errorf("ParsePerm(%q) = %v, %v", tc.s, p, err)
		}

	}

	if s := RX.String(); s != "r-x" {
		t.Errorf("RX.String() = %q, want r-x", s)
	}
}
