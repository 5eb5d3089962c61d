// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package gotee

import (
	"crypto/rand"
	"errors"
	"fmt"
	"unsafe"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/GoTEE/sbi"
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/GoTEE-pmp/util"
)

// maxRandomSize is the maximum SYS_GETRANDOM buffer size.
const maxRandomSize = 4096

// ErrFault is returned when a system call buffer is not accessible by the
// calling context.
var ErrFault = errors.New("bad address")

var Console = util.NewScreenConsole()

// checkBuffer validates the buffer passed in a1 (address) and a2 (size)
// against the caller PMP entries.
func checkBuffer(ctx *monitor.ExecCtx, write bool) (buf []byte, err error) {
	c := lookupExec(ctx)

	if c == nil {
		return nil, errors.New("unregistered context")
	}

	addr := ctx.X11
	size := ctx.X12

	if size > maxRandomSize {
		return nil, fmt.Errorf("%s buffer size:%d exceeds %d", c.Name, size, maxRandomSize)
	}

	if !c.Validate(addr, size, write) {
		return nil, fmt.Errorf("%s buffer addr:%#x size:%d, %w", c.Name, addr, size, ErrFault)
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size), nil
}

func goHandler(ctx *monitor.ExecCtx) (err error) {
	defaultHandler := monitor.SecureHandler

	if !ctx.Secure() {
		defaultHandler = monitor.NonSecureHandler
	}

	switch {
	case ctx.A0() == syscall.SYS_WRITE:
		// Override write syscall to avoid interleaved logs and to log
		// simultaneously to remote terminal and serial console.
		Console.Log(byte(ctx.A1()), ctx.Secure())
	case ctx.A0() == syscall.SYS_GETRANDOM:
		// The monitor fills the buffer with machine mode privileges,
		// the caller must be able to write it on its own.
		buf, err := checkBuffer(ctx, true)

		if err != nil {
			return err
		}

		_, err = rand.Read(buf)

		return err
	case !ctx.Secure() && ctx.A0() == syscall.SYS_EXIT:
		ctx.Stop()
	default:
		return defaultHandler(ctx)
	}

	return
}

func sbiHandler(ctx *monitor.ExecCtx) (err error) {
	// SBI v0.2 or higher calls are treated separately from GoTEE calls
	if ctx.X17 != 0 {
		return sbi.Handler(ctx)
	} else {
		return goHandler(ctx)
	}
}
