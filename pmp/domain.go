// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
)

// Partition represents a memory domain address range.
type Partition struct {
	Start uint64
	Size  uint64
	Perm  Perm
}

// Domain represents a set of partitions shared by its member threads.
//
// Partition identifiers are stable indices, a removed partition leaves a free
// identifier which the next AddPartition reuses.
type Domain struct {
	parts   []Partition
	threads []*Thread
}

// Partition returns the partition with the given identifier.
func (d *Domain) Partition(id int) (p Partition, ok bool) {
	if id < 0 || id >= len(d.parts) || d.parts[id].Size == 0 {
		return
	}

	return d.parts[id], true
}

// Threads returns the domain member threads.
func (d *Domain) Threads() []*Thread {
	return append([]*Thread(nil), d.threads...)
}

func (m *Manager) partitionRegion(p Partition) Region {
	return Region{
		Start: p.Start,
		Size:  p.Size,
		Perm:  p.Perm,
		Mode:  m.defaultMode(p.Size),
	}
}

// partitionSlots validates a partition returning its entry count.
func (m *Manager) partitionSlots(p Partition) (n int, err error) {
	if err = checkAlignment(p.Start, p.Size); err != nil {
		return
	}

	_, n, err = m.encode(m.partitionRegion(p))

	return
}

// nextDynamic returns the index of the first free dynamic entry of a user
// table, Slots when full.
func (m *Manager) nextDynamic(t *Thread) int {
	if i := t.User.firstFree(m.FirstDynamicSlot(), m.Slots); i >= 0 {
		return i
	}

	return m.Slots
}

// NewDomain returns a memory domain holding the given partitions.
func (m *Manager) NewDomain(parts ...Partition) (d *Domain, err error) {
	if len(parts) > m.MaxPartitions() {
		return nil, fmt.Errorf("%w, %d partitions (max %d)", ErrOutOfSlots, len(parts), m.MaxPartitions())
	}

	d = &Domain{
		parts: make([]Partition, m.MaxPartitions()),
	}

	for i, p := range parts {
		if _, err = m.partitionSlots(p); err != nil {
			return nil, fmt.Errorf("partition %d, %w", i, err)
		}

		d.parts[i] = p
	}

	return
}

// AddDynamic appends a region to the dynamic area of the thread user
// table, at the first free entry.
func (m *Manager) AddDynamic(t *Thread, addr uint64, size uint64, perm Perm) (err error) {
	if err = checkAlignment(addr, size); err != nil {
		return
	}

	i := t.User.firstFree(m.FirstDynamicSlot(), m.Slots)

	if i < 0 {
		return fmt.Errorf("%w, thread %s has no free entry", ErrOutOfSlots, t.Name)
	}

	_, err = m.place(&t.User, i, m.Slots, m.partitionRegion(Partition{addr, size, perm}))

	return
}

// AddPartition adds a partition to a domain and projects it on all member
// threads, either every thread receives the partition or none does.
func (m *Manager) AddPartition(d *Domain, p Partition) (id int, err error) {
	n, err := m.partitionSlots(p)

	if err != nil {
		return -1, err
	}

	id = -1

	for i := range d.parts {
		if d.parts[i].Size == 0 {
			id = i
			break
		}
	}

	if id < 0 {
		return -1, fmt.Errorf("%w, domain holds %d partitions", ErrOutOfSlots, len(d.parts))
	}

	for _, t := range d.threads {
		if m.nextDynamic(t)+n > m.Slots {
			return -1, fmt.Errorf("%w, thread %s cannot fit partition %d", ErrOutOfSlots, t.Name, id)
		}
	}

	for _, t := range d.threads {
		if err = m.AddDynamic(t, p.Start, p.Size, p.Perm); err != nil {
			return -1, err
		}
	}

	d.parts[id] = p

	return
}

// findPartition returns the index of the first entry representing an
// encoded partition in a thread user table, or -1.
func (m *Manager) findPartition(t *Thread, e [2]Entry, n int) int {
	key := e[n-1]

	for from := m.FirstDynamicSlot(); from < m.Slots; {
		i := t.User.find(from, m.Slots, key)

		if i < 0 {
			return -1
		}

		switch {
		case n == 2:
			// TOR top matched, the range bottom precedes it
			if i > 0 && t.User.Entry(i-1) == e[0] {
				return i - 1
			}

			from = i + 1
		case key.Mode() == NA4 && i+1 < m.Slots && t.User.Entry(i+1).Mode() == TOR:
			// bottom of a TOR pair, not a 4-byte region
			from = i + 2
		case t.User.Entry(i) != key:
			// same location, different permissions
			from = i + 1
		default:
			return i
		}
	}

	return -1
}

// RemovePartition removes a partition from a domain and from the user table
// of every member thread, entries above it are shifted down to keep tables
// packed.
//
// The table entries are located by re-encoding the partition, a thread
// table which does not hold it is left untouched. ErrNotFound is returned
// when no member thread holds the partition.
func (m *Manager) RemovePartition(d *Domain, id int) (err error) {
	p, ok := d.Partition(id)

	if !ok {
		return fmt.Errorf("%w, invalid partition %d", ErrInvalidArgument, id)
	}

	d.parts[id] = Partition{}

	if len(d.threads) == 0 {
		return
	}

	e, n, err := m.encode(m.partitionRegion(p))

	if err != nil {
		return
	}

	found := false

	for _, t := range d.threads {
		i := m.findPartition(t, e, n)

		if i < 0 {
			continue
		}

		t.User.remove(i, n, m.Slots)
		found = true
	}

	if !found {
		m.logf("pmp: partition %d (%#x+%#x) not found in any thread", id, p.Start, p.Size)
		return fmt.Errorf("%w, partition %d", ErrNotFound, id)
	}

	return
}

// AddThread makes a thread member of a domain, projecting all domain
// partitions on its user table. A thread belonging to another domain
// leaves it first.
func (m *Manager) AddThread(d *Domain, t *Thread) (err error) {
	if t.domain == d {
		return
	}

	need := 0

	for _, p := range d.parts {
		if p.Size == 0 {
			continue
		}

		n, err := m.partitionSlots(p)

		if err != nil {
			return fmt.Errorf("thread %s, %w", t.Name, err)
		}

		need += n
	}

	next := m.nextDynamic(t)

	if t.domain != nil {
		next = m.FirstDynamicSlot()
	}

	if next+need > m.Slots {
		return fmt.Errorf("%w, thread %s needs %d entries for domain", ErrOutOfSlots, t.Name, need)
	}

	m.RemoveThread(t)

	for _, p := range d.parts {
		if p.Size == 0 {
			continue
		}

		if err = m.AddDynamic(t, p.Start, p.Size, p.Perm); err != nil {
			return
		}
	}

	d.threads = append(d.threads, t)
	t.domain = d

	return
}

// RemoveThread detaches a thread from its domain, clearing all its dynamic
// entries.
func (m *Manager) RemoveThread(t *Thread) {
	d := t.domain

	if d == nil {
		return
	}

	t.User.clear(m.FirstDynamicSlot(), m.Slots)

	for i, th := range d.threads {
		if th == t {
			d.threads = append(d.threads[:i], d.threads[i+1:]...)
			break
		}
	}

	t.domain = nil
}

// DestroyDomain detaches all member threads from a domain.
func (m *Manager) DestroyDomain(d *Domain) {
	for len(d.threads) > 0 {
		m.RemoveThread(d.threads[0])
	}
}
