// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
	"log"
)

// Extent represents a contiguous memory area.
type Extent struct {
	Start uint64
	Size  uint64
}

// End returns the first address after the extent.
func (e Extent) End() uint64 {
	return e.Start + e.Size
}

// Thread represents the PMP state carried by an execution context across
// context switches.
type Thread struct {
	// Name identifies the thread in logs.
	Name string

	// Stack is the thread stack.
	Stack Extent
	// PrivStack is the privileged (kernel) stack of a user thread, an
	// empty extent disables its guard.
	PrivStack Extent

	// Guard holds the machine mode stack guard entries.
	Guard Table
	// User holds the user mode entries.
	User Table

	domain *Domain
}

// Domain returns the memory domain the thread belongs to, if any.
func (t *Thread) Domain() *Domain {
	return t.domain
}

// Manager translates regions into PMP entries for a fixed configuration.
//
// A Manager holds no mutable state of its own, threads and domains passed to
// it must not be mutated concurrently.
type Manager struct {
	Config

	// Log, when set, receives diagnostics for non-fatal conditions.
	Log *log.Logger
}

// NewManager returns a Manager for the given configuration.
func NewManager(c Config) (m *Manager, err error) {
	if err = c.Validate(); err != nil {
		return
	}

	return &Manager{Config: c}, nil
}

func (m *Manager) logf(format string, v ...interface{}) {
	if m.Log != nil {
		m.Log.Printf(format, v...)
	}
}

// reload writes the first Slots entries of t to the live registers.
func (m *Manager) reload(rf RegisterFile, t *Table) (err error) {
	w := liveWriter{rf}

	for i := 0; i < m.Slots; i++ {
		if err = w.set(i, t.Entry(i)); err != nil {
			return
		}
	}

	return
}

// ClearStaticConfig disables all PMP entries available to the manager.
func (m *Manager) ClearStaticConfig(rf RegisterFile) (err error) {
	return m.reload(rf, &Table{})
}

// ApplyStatic writes a fixed set of regions to the live registers, starting
// at entry 0, and returns the index of the first unused entry.
//
// Entries are written as they are translated, callers must ensure the
// running code remains covered by an executable region throughout.
func (m *Manager) ApplyStatic(rf RegisterFile, regions []Region) (next int, err error) {
	n, err := m.demand(regions)

	if err != nil {
		return
	}

	if n > m.Slots {
		return 0, fmt.Errorf("%w, %d static entries (capacity %d)", ErrOutOfSlots, n, m.Slots)
	}

	return m.translate(liveWriter{rf}, 0, m.Slots, regions)
}

// guardBelow returns the stack guard region below a stack.
func (m *Manager) guardBelow(what string, stack Extent) (r Region, err error) {
	if stack.Size == 0 {
		return r, fmt.Errorf("%w, %s is empty", ErrInvalidArgument, what)
	}

	if stack.Start < m.StackGuardSize {
		return r, fmt.Errorf("%w, %s at %#x leaves no room for a %#x guard", ErrInvalidArgument, what, stack.Start, m.StackGuardSize)
	}

	return Region{Start: stack.Start - m.StackGuardSize, Size: m.StackGuardSize, Mode: Default}, nil
}

// ConfigureInterruptStackGuard protects the area below the interrupt stack
// from machine mode access, any other address remains accessible.
func (m *Manager) ConfigureInterruptStackGuard(rf RegisterFile, irqStack Extent) (err error) {
	if m.StackGuardSize == 0 {
		return fmt.Errorf("%w, stack guard size not configured", ErrInvalidArgument)
	}

	guard, err := m.guardBelow("interrupt stack", irqStack)

	if err != nil {
		return
	}

	regions := []Region{guard, {Perm: RWX, Mode: NAPOT}}

	if _, err = m.demand(regions); err != nil {
		return
	}

	rf.SetMPRV(false)

	if err = m.ClearStaticConfig(rf); err != nil {
		return
	}

	if _, err = m.ApplyStatic(rf, regions); err != nil {
		return
	}

	rf.SetMPRV(true)

	return
}

// InitThread clears both thread contexts.
func (m *Manager) InitThread(t *Thread) {
	t.Guard.Reset()
	t.User.Reset()
}

// userRegions returns the fixed entries of a user thread.
func (m *Manager) userRegions(t *Thread) []Region {
	return []Region{
		{Start: m.StateWord, Size: 4, Perm: Read, Mode: NA4},
		{Start: m.ROMStart, Size: m.ROMSize, Perm: RX, Mode: Default},
		{Start: t.Stack.Start, Size: t.Stack.Size, Perm: RW, Mode: Default},
	}
}

// PopulateUserRegions fills the fixed user mode entries (state word, ROM and
// thread stack).
func (m *Manager) PopulateUserRegions(t *Thread) (err error) {
	var tmp Table

	// an empty region would encode the whole address space
	if t.Stack.Size == 0 {
		return fmt.Errorf("%w, thread %s has no stack", ErrInvalidArgument, t.Name)
	}

	next, err := m.translate(&tmp, 0, m.Slots, m.userRegions(t))

	if err != nil {
		return fmt.Errorf("thread %s user regions, %w", t.Name, err)
	}

	if next != m.FirstDynamicSlot() {
		return fmt.Errorf("%w, thread %s fixed user regions use %d entries (expected %d)", ErrInvalidArgument, t.Name, next, m.FirstDynamicSlot())
	}

	copy(t.User.Cfg[:next], tmp.Cfg[:next])
	copy(t.User.Addr[:next], tmp.Addr[:next])

	return
}

// ActivateUser writes the thread user mode entries to the live registers.
func (m *Manager) ActivateUser(t *Thread, rf RegisterFile) (err error) {
	return m.reload(rf, &t.User)
}

// guardRegions returns the machine mode stack guard entries of a thread.
func (m *Manager) guardRegions(t *Thread) (regions []Region, err error) {
	guard, err := m.guardBelow("thread "+t.Name+" stack", t.Stack)

	if err != nil {
		return
	}

	regions = append(regions, guard)

	if t.PrivStack.Size != 0 {
		if guard, err = m.guardBelow("thread "+t.Name+" privileged stack", t.PrivStack); err != nil {
			return nil, err
		}

		regions = append(regions, guard)
	}

	regions = append(regions,
		Region{Start: m.RAMStart, Size: m.RAMSize, Perm: RWX, Mode: Default},
		Region{Perm: RWX, Mode: NAPOT},
	)

	return
}

// PopulateStackGuard fills the machine mode entries protecting the thread
// stack guards, followed by RAM and a whole address space fallback.
func (m *Manager) PopulateStackGuard(t *Thread) (err error) {
	if m.StackGuardSize == 0 {
		return fmt.Errorf("%w, stack guard size not configured", ErrInvalidArgument)
	}

	regions, err := m.guardRegions(t)

	if err != nil {
		return
	}

	n, err := m.demand(regions)

	if err != nil {
		return fmt.Errorf("thread %s stack guard, %w", t.Name, err)
	}

	if n > m.Slots {
		return fmt.Errorf("%w, thread %s stack guard needs %d entries (capacity %d)", ErrOutOfSlots, t.Name, n, m.Slots)
	}

	t.Guard.Reset()
	_, err = m.translate(&t.Guard, 0, m.Slots, regions)

	return
}

// ActivateStackGuard writes the thread machine mode entries to the live
// registers with machine mode enforcement suspended during the reload.
//
// On error enforcement is left disabled as the register contents are
// partial.
func (m *Manager) ActivateStackGuard(t *Thread, rf RegisterFile) (err error) {
	rf.SetMPRV(false)

	if err = m.reload(rf, &t.Guard); err != nil {
		return
	}

	rf.SetMPRV(true)

	return
}
