// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package main

import (
	"github.com/usbarmory/GoTEE/syscall"
)

const (
	SYS_WRITE     = syscall.SYS_WRITE
	SYS_EXIT      = syscall.SYS_EXIT
	SYS_GETRANDOM = syscall.SYS_GETRANDOM
)

// defined in api_riscv64.s
func printSecure(byte)
func getRandom(addr uint64, size uint64)
func exit()
