// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package main

import (
	"log"
	"os"
	"runtime"
	"runtime/goos"
	"unsafe"

	"github.com/usbarmory/GoTEE/applet"
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/GoTEE-pmp/mem"
	"github.com/usbarmory/GoTEE-pmp/util"
)

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	// yield to monitor (w/ err != nil) on runtime panic
	goos.Exit = applet.Crash
}

func testRNG(n int) {
	buf := make([]byte, n)
	syscall.GetRandom(buf, uint(n))
	log.Printf("applet obtained %d random bytes from monitor: %x", n, buf)
}

func testRPC() {
	res := ""
	req := "hello"

	log.Printf("applet requests echo via RPC: %s", req)
	err := syscall.Call("RPC.Echo", req, &res)

	if err != nil {
		log.Printf("applet received RPC error: %v", err)
	} else {
		log.Printf("applet received echo via RPC: %s", res)
	}
}

func validate(desc string, addr uint64, size uint64, write bool) {
	var ok bool

	req := util.ValidateRequest{
		Addr:  addr,
		Size:  size,
		Write: write,
	}

	if err := syscall.Call("RPC.Validate", req, &ok); err != nil {
		log.Printf("applet received RPC error: %v", err)
		return
	}

	log.Printf("applet %s access addr:%#x size:%d write:%v authorized:%v", desc, addr, size, write, ok)
}

// testPartitions attaches the shared buffer to the applet memory domain,
// uses it and detaches it.
func testPartitions() {
	var id int

	buf := make([]byte, 16)

	validate("heap", uint64(uintptr(unsafe.Pointer(&buf[0]))), uint64(len(buf)), true)
	validate("shared buffer", mem.SharedStart, 4, true)

	req := util.PartitionRequest{
		Start: mem.SharedStart,
		Size:  mem.SharedSize,
		Perm:  "rw-",
	}

	if err := syscall.Call("RPC.Attach", req, &id); err != nil {
		log.Printf("applet could not attach shared buffer: %v", err)
		return
	}

	validate("shared buffer", mem.SharedStart, 4, true)
	mem.TestShared("applet")

	if err := syscall.Call("RPC.Detach", id, nil); err != nil {
		log.Printf("applet could not detach shared buffer: %v", err)
	}

	validate("shared buffer", mem.SharedStart, 4, true)

	// Security Monitor partitions are always refused
	req.Start = mem.SecureStart

	if err := syscall.Call("RPC.Attach", req, &id); err != nil {
		log.Printf("applet could not attach Security Monitor memory (expected): %v", err)
	}
}

func main() {
	log.Printf("%s/%s (%s) • TEE user applet", runtime.GOOS, runtime.GOARCH, runtime.Version())

	// test syscall interface
	testRNG(16)

	// test RPC interface
	testRPC()

	// test memory domain partitions
	testPartitions()

	// test memory protection
	mem.TestAccess("applet")

	// this should be unreachable

	// terminate applet
	applet.Exit()
}
