// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package mem

import (
	"github.com/usbarmory/tamago/dma"
)

const (
	// Secure Monitor
	SecureStart = 0x90000000
	SecureSize  = 0x07f00000 // 127MB

	// Secure Monitor DMA (relocated to avoid conflicts with Main OS)
	SecureDMAStart = 0x97f00000
	SecureDMASize  = 0x00100000 // 1MB

	// Secure Monitor Applet
	AppletStart = 0x98000000
	AppletSize  = 0x04000000 // 64MB

	// Main OS
	NonSecureStart = 0x80000000
	NonSecureSize  = 0x10000000 // 256MB

	// Shared buffer, attached at runtime to memory domains
	SharedStart = 0x9c000000
	SharedSize  = 0x00100000 // 1MB

	// FU540 Mask ROM, readable and executable by all contexts
	MaskROMStart = 0x00010000
	MaskROMSize  = 0x00008000 // 32KB

	// Execution context stack size, carved from the end of the context
	// memory.
	StackSize = 0x00010000 // 64KB
)

// SecureEnd is the first address after Security Monitor memory (DMA
// included).
const SecureEnd = SecureDMAStart + SecureDMASize

const textStartWord = 0x010db303

var (
	AppletRegion    *dma.Region
	NonSecureRegion *dma.Region
)

func Init() {
	AppletRegion, _ = dma.NewRegion(AppletStart, AppletSize, false)
	AppletRegion.Reserve(AppletSize, 0)

	NonSecureRegion, _ = dma.NewRegion(NonSecureStart, NonSecureSize, false)
	NonSecureRegion.Reserve(NonSecureSize, 0)
}

// Overlaps returns whether the area [start, start+size) intersects Security
// Monitor memory.
func Overlaps(start uint64, size uint64) bool {
	return start < SecureEnd && start+size > SecureStart
}
