// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package gotee

import (
	"log"
	"sync"

	_ "github.com/usbarmory/tamago/board/qemu/sifive_u"

	"github.com/usbarmory/GoTEE-pmp/internal/csr"
)

func GoTEE() (err error) {
	var wg sync.WaitGroup
	var ta *Context
	var os *Context

	reset()

	// discard entries left by previous runs
	if err = Manager.ClearStaticConfig(&csr.PMP{}); err != nil {
		return
	}

	if ta, err = loadApplet(); err != nil {
		return
	}

	if os, err = loadSupervisor(); err != nil {
		return
	}

	log.Printf("SM PMP user entries:%d (fixed:%d partitions:%d) static entries:%d",
		Manager.Slots, Manager.FirstDynamicSlot(), Manager.MaxPartitions(), staticSlots)

	// test concurrent execution of:
	//   Security Monitor (machine mode)     - secure OS (this program)
	//   Applet (supervisor/user mode)       - trusted applet
	//   Untrusted OS (supervisor/user mode) - main OS
	wg.Add(2)
	go run(ta, &wg)
	go run(os, &wg)

	log.Printf("SM waiting for applet and kernel")
	wg.Wait()

	return
}
