// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package gotee

import (
	"fmt"
	"log"
	"sync"

	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/GoTEE-pmp/mem"
	"github.com/usbarmory/GoTEE-pmp/util"

	"github.com/usbarmory/armory-boot/exec"
)

var (
	TA []byte
	OS []byte
)

// loadApplet loads a TamaGo unikernel as trusted applet.
func loadApplet() (ta *Context, err error) {
	image := &exec.ELFImage{
		Region: mem.AppletRegion,
		ELF:    TA,
	}

	if err = image.Load(); err != nil {
		return
	}

	ctx, err := monitor.Load(image.Entry(), image.Region, true)

	if err != nil {
		return nil, fmt.Errorf("SM could not load applet, %v", err)
	}

	log.Printf("SM loaded applet addr:%#x entry:%#x size:%d", ctx.Memory.Start(), ctx.PC, len(TA))

	// set memory protection function
	if ta, err = register("applet", ctx); err != nil {
		return nil, fmt.Errorf("SM could not configure applet PMP, %v", err)
	}

	// register example RPC receiver
	ctx.Server.Register(&RPC{ctx: ta})

	// set stack pointer to the end of available memory
	ctx.X2 = uint64(ctx.Memory.End())

	// override default handler to validate buffers and improve logging
	ctx.Handler = goHandler

	// set applet as ELF debugging target
	util.SetDebugTarget(TA)

	return
}

// loadSupervisor loads a TamaGo unikernel as main OS.
func loadSupervisor() (os *Context, err error) {
	image := &exec.ELFImage{
		Region: mem.NonSecureRegion,
		ELF:    OS,
	}

	if err = image.Load(); err != nil {
		return
	}

	ctx, err := monitor.Load(image.Entry(), image.Region, false)

	if err != nil {
		return nil, fmt.Errorf("SM could not load kernel, %v", err)
	}

	log.Printf("SM loaded kernel addr:%#x entry:%#x size:%d", ctx.Memory.Start(), ctx.PC, len(OS))

	// set memory protection function
	if os, err = register("kernel", ctx); err != nil {
		return nil, fmt.Errorf("SM could not configure kernel PMP, %v", err)
	}

	// set stack pointer to the end of available memory
	ctx.X2 = uint64(ctx.Memory.End())

	// override default handler to support SBI and improve logging
	ctx.Handler = sbiHandler

	return
}

func run(c *Context, wg *sync.WaitGroup) {
	ctx := c.ExecCtx

	log.Printf("SM starting %s sp:%#.8x pc:%#.8x secure:%v", c.Name, ctx.X2, ctx.PC, ctx.Secure())

	err := ctx.Run()

	if wg != nil {
		wg.Done()
	}

	log.Printf("SM stopped %s sp:%#.8x ra:%#.8x pc:%#.8x err:%v %s", c.Name, ctx.X2, ctx.X1, ctx.PC, err, ctx)

	if err != nil {
		pcLine, _ := util.PCToLine(ctx.PC)
		lrLine, _ := util.PCToLine(ctx.X1)

		if pcLine != "" || lrLine != "" {
			log.Printf("stack trace:\n  %s\n  %s", pcLine, lrLine)
		}
	}
}
