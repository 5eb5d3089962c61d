// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package cmd

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/term"

	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/GoTEE-pmp/trusted_os_sifive_u/internal"
)

const maxBufferSize = 102400

func init() {
	Add(Cmd{
		Name:    "peek",
		Args:    3,
		Pattern: regexp.MustCompile(`^peek (\w+ )?([[:xdigit:]]+) (\d+)$`),
		Syntax:  "(<ctx>)? <hex addr> <size>",
		Help:    "memory display, as context if given (use with caution)",
		Fn:      memReadCmd,
	})

	Add(Cmd{
		Name:    "poke",
		Args:    3,
		Pattern: regexp.MustCompile(`^poke (\w+ )?([[:xdigit:]]+) ([[:xdigit:]]+)$`),
		Syntax:  "(<ctx>)? <hex addr> <hex value>",
		Help:    "memory write, as context if given (use with caution)",
		Fn:      memWriteCmd,
	})
}

func memCopy(start uint, size int, w []byte) (b []byte) {
	mem, err := dma.NewRegion(start, size, true)

	if err != nil {
		panic("could not allocate memory copy DMA")
	}

	start, buf := mem.Reserve(size, 0)
	defer mem.Release(start)

	if len(w) > 0 {
		copy(buf, w)
	} else {
		b = make([]byte, size)
		copy(b, buf)
	}

	return
}

// checkAccess refuses accesses the named context (if any) could not perform
// on its own.
func checkAccess(name string, addr uint64, size uint64, write bool) (err error) {
	if len(name) == 0 {
		return
	}

	c, err := gotee.Lookup(name[:len(name)-1])

	if err != nil {
		return
	}

	if !c.Validate(addr, size, write) {
		return errors.New("access denied by context PMP entries")
	}

	return
}

func memReadCmd(_ *term.Terminal, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[1], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	size, err := strconv.ParseUint(arg[2], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if (addr%4) != 0 || (size%4) != 0 {
		return "", fmt.Errorf("only 32-bit aligned accesses are supported")
	}

	if size > maxBufferSize {
		return "", fmt.Errorf("size argument must be <= %d", maxBufferSize)
	}

	if err = checkAccess(arg[0], addr, size, false); err != nil {
		return
	}

	return hex.Dump(memCopy(uint(addr), int(size), nil)), nil
}

func memWriteCmd(_ *term.Terminal, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[1], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	val, err := strconv.ParseUint(arg[2], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid data, %v", err)
	}

	if err = checkAccess(arg[0], addr, 4, true); err != nil {
		return
	}

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(val))

	memCopy(uint(addr), 4, buf)

	return
}
