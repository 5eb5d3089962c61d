// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package gotee

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/GoTEE-pmp/internal/csr"
	"github.com/usbarmory/GoTEE-pmp/mem"
	"github.com/usbarmory/GoTEE-pmp/pmp"
)

// staticSlots is the number of PMP entries reserved, after the execution
// context ones, to the Security Monitor static configuration.
const staticSlots = 4

// userSlots is the number of PMP entries managed for each execution context.
const userSlots = csr.Entries - staticSlots

// The main OS used in GoTEE-pmp, for the riscv64 architecture, is a TamaGo
// unikernel which requires only PRCI, CLINT and UART0 access.
//
// On the FU540 the lack of IOPMP entails that only bus peripherals can be
// given access through PMP, while bus controllers (e.g. Ethernet) must be
// exposed only through the Security Monitor API, and never directly, for
// secure isolation.
var staticRegions = []pmp.Region{
	// PRCI and UART0
	{Start: fu540.PRCI_BASE, Size: fu540.UART1_BASE - fu540.PRCI_BASE, Perm: pmp.RW, Mode: pmp.TOR},
	// CLINT
	{Start: fu540.CLINT_BASE, Size: 0x10000, Perm: pmp.RW, Mode: pmp.Default},
	// Security Monitor
	{Start: mem.SecureStart, Size: mem.SecureEnd - mem.SecureStart, Mode: pmp.Default},
}

// contextState holds the identifier of the running execution context, it
// is readable by all contexts through the first user PMP entry.
var contextState uint32

// Manager translates execution context memory into PMP entries.
var Manager *pmp.Manager

var (
	mux      sync.Mutex
	contexts []*Context
)

// Context represents an execution context and its PMP state.
type Context struct {
	*monitor.ExecCtx

	// Name identifies the context in logs and console commands
	Name string
	// Thread holds the context PMP entries
	Thread *pmp.Thread
	// Domain holds the context memory partitions, partition 0 is the
	// context memory.
	Domain *pmp.Domain

	id uint32
}

func init() {
	var err error

	Manager, err = pmp.NewManager(pmp.Config{
		Slots:      userSlots,
		XLEN:       64,
		PowerOfTwo: true,
		Layout: pmp.Layout{
			StateWord: uint64(uintptr(unsafe.Pointer(&contextState))),
			ROMStart:  mem.MaskROMStart,
			ROMSize:   mem.MaskROMSize,
			RAMStart:  mem.SecureStart,
			RAMSize:   mem.SecureEnd - mem.SecureStart,
		},
	})

	if err != nil {
		panic(fmt.Sprintf("SM could not initialize PMP manager, %v", err))
	}

	Manager.Log = log.New(os.Stdout, "SM ", log.Ltime)
}

// reset discards all registered execution contexts.
func reset() {
	mux.Lock()
	defer mux.Unlock()

	contexts = nil
}

// register assigns a PMP thread context and memory domain to an execution
// context, its stack is taken from the end of its memory.
func register(name string, ctx *monitor.ExecCtx) (c *Context, err error) {
	start := uint64(ctx.Memory.Start())
	end := uint64(ctx.Memory.End())

	t := &pmp.Thread{
		Name: name,
		Stack: pmp.Extent{
			Start: end - mem.StackSize,
			Size:  mem.StackSize,
		},
	}

	mux.Lock()
	defer mux.Unlock()

	Manager.InitThread(t)

	if err = Manager.PopulateUserRegions(t); err != nil {
		return
	}

	d, err := Manager.NewDomain(pmp.Partition{Start: start, Size: end - start, Perm: pmp.RWX})

	if err != nil {
		return
	}

	if err = Manager.AddThread(d, t); err != nil {
		return
	}

	c = &Context{
		ExecCtx: ctx,
		Name:    name,
		Thread:  t,
		Domain:  d,
		id:      uint32(len(contexts) + 1),
	}

	ctx.PMP = c.activate
	contexts = append(contexts, c)

	return
}

// activate is the execution context PMP hook, it loads the context user
// entries at slot base i followed by the static configuration.
func (c *Context) activate(_ *monitor.ExecCtx, i int) (err error) {
	if i+userSlots+staticSlots > csr.Entries {
		return fmt.Errorf("PMP base %d leaves no room for %d entries", i, userSlots+staticSlots)
	}

	mux.Lock()
	defer mux.Unlock()

	atomic.StoreUint32(&contextState, c.id)

	if err = Manager.ActivateUser(c.Thread, &csr.PMP{Base: i}); err != nil {
		return
	}

	_, err = Manager.ApplyStatic(&csr.PMP{Base: i + userSlots}, staticRegions)

	return
}

// Attach adds a partition to the context memory domain, partitions
// overlapping the Security Monitor are refused.
func (c *Context) Attach(start uint64, size uint64, perm pmp.Perm) (id int, err error) {
	if mem.Overlaps(start, size) {
		return -1, errors.New("partition overlaps Security Monitor memory")
	}

	mux.Lock()
	defer mux.Unlock()

	return Manager.AddPartition(c.Domain, pmp.Partition{Start: start, Size: size, Perm: perm})
}

// Detach removes a partition from the context memory domain, the context
// memory partition cannot be removed.
func (c *Context) Detach(id int) (err error) {
	if id == 0 {
		return errors.New("context memory cannot be detached")
	}

	mux.Lock()
	defer mux.Unlock()

	return Manager.RemovePartition(c.Domain, id)
}

// Validate returns whether the context can access a buffer.
func (c *Context) Validate(addr uint64, size uint64, write bool) bool {
	mux.Lock()
	defer mux.Unlock()

	return Manager.ValidateAccess(c.Thread, addr, size, write)
}

// Dump returns the context user entries.
func (c *Context) Dump() string {
	mux.Lock()
	defer mux.Unlock()

	return c.Thread.User.Dump(userSlots)
}

// Contexts returns all registered execution contexts.
func Contexts() []*Context {
	mux.Lock()
	defer mux.Unlock()

	return append([]*Context(nil), contexts...)
}

// Lookup returns the execution context matching name.
func Lookup(name string) (c *Context, err error) {
	for _, c = range Contexts() {
		if c.Name == name {
			return
		}
	}

	return nil, fmt.Errorf("unknown context %q", name)
}

func lookupExec(ctx *monitor.ExecCtx) *Context {
	for _, c := range Contexts() {
		if c.ExecCtx == ctx {
			return c
		}
	}

	return nil
}
