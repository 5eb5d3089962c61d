// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package mem

import (
	"log"
	"sync/atomic"
	"unsafe"
)

func load(tag string, desc string, addr uint64) uint32 {
	log.Printf("%s is about to read %s at %#x", tag, desc, addr)
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

// TestAccess attempts to read one 32-bit word from Security Monitor memory,
// a correct PMP configuration faults the caller.
func TestAccess(tag string) {
	smTextStart := uint64(SecureStart + 0x10000)
	val := load(tag, "Security Monitor memory", smTextStart)

	res := "success - *insecure configuration*"

	if val != textStartWord {
		res = "fail (expected, but you should never see this)"
	}

	log.Printf("%s read Security Monitor memory %#x: %#x (%s)", tag, smTextStart, val, res)
}

// TestShared reads and writes the first word of the shared buffer, which
// must be attached to the caller memory domain beforehand.
func TestShared(tag string) {
	val := load(tag, "shared buffer", SharedStart)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(SharedStart))), val+1)

	log.Printf("%s updated shared buffer %#x: %#x -> %#x", tag, uint64(SharedStart), val, val+1)
}
