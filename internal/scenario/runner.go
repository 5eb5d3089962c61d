// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package scenario

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/usbarmory/GoTEE-pmp/pmp"
)

var expectedErrors = map[string]error{
	"invalid":      pmp.ErrInvalidArgument,
	"out-of-slots": pmp.ErrOutOfSlots,
	"not-found":    pmp.ErrNotFound,
}

// Runner executes scenario steps.
type Runner struct {
	// Manager is the PMP manager built from the scenario configuration.
	Manager *pmp.Manager
	// Registers holds the live registers of the last activation.
	Registers *pmp.Registers

	scenario *Scenario
	threads  map[string]*pmp.Thread
	domains  map[string]*pmp.Domain
	out      io.Writer
}

// NewRunner prepares threads and domains of a scenario, step output is
// written to out.
func NewRunner(s *Scenario, out io.Writer) (r *Runner, err error) {
	c := pmp.Config{
		Slots:          s.Config.Slots,
		XLEN:           s.Config.XLEN,
		PowerOfTwo:     s.Config.PowerOfTwo,
		StackGuardSize: s.Config.StackGuardSize,
		Layout: pmp.Layout{
			StateWord: s.Config.StateWord,
			ROMStart:  s.Config.ROM.Start,
			ROMSize:   s.Config.ROM.Size,
			RAMStart:  s.Config.RAM.Start,
			RAMSize:   s.Config.RAM.Size,
		},
	}

	m, err := pmp.NewManager(c)

	if err != nil {
		return
	}

	m.Log = log.New(out, "", 0)

	r = &Runner{
		Manager:   m,
		Registers: pmp.NewRegisters(c.Slots),
		scenario:  s,
		threads:   make(map[string]*pmp.Thread),
		domains:   make(map[string]*pmp.Domain),
		out:       out,
	}

	for _, name := range s.Domains {
		if r.domains[name], err = m.NewDomain(); err != nil {
			return nil, fmt.Errorf("domain %s, %v", name, err)
		}
	}

	for _, st := range s.Threads {
		t := &pmp.Thread{
			Name:      st.Name,
			Stack:     pmp.Extent{Start: st.Stack.Start, Size: st.Stack.Size},
			PrivStack: pmp.Extent{Start: st.PrivStack.Start, Size: st.PrivStack.Size},
		}

		m.InitThread(t)

		if err = m.PopulateUserRegions(t); err != nil {
			return nil, err
		}

		if c.StackGuardSize != 0 {
			if err = m.PopulateStackGuard(t); err != nil {
				return nil, err
			}
		}

		r.threads[st.Name] = t

		if st.Domain == "" {
			continue
		}

		d, ok := r.domains[st.Domain]

		if !ok {
			return nil, fmt.Errorf("thread %s, unknown domain %s", st.Name, st.Domain)
		}

		if err = m.AddThread(d, t); err != nil {
			return nil, err
		}
	}

	return
}

// Thread returns a scenario thread by name.
func (r *Runner) Thread(name string) *pmp.Thread {
	return r.threads[name]
}

func (r *Runner) thread(name string) (t *pmp.Thread, err error) {
	t, ok := r.threads[name]

	if !ok {
		return nil, fmt.Errorf("unknown thread %q", name)
	}

	return
}

func (r *Runner) domain(name string) (d *pmp.Domain, err error) {
	d, ok := r.domains[name]

	if !ok {
		return nil, fmt.Errorf("unknown domain %q", name)
	}

	return
}

func (r *Runner) step(s Step) (res string, err error) {
	var t *pmp.Thread
	var d *pmp.Domain

	if s.Thread != "" {
		if t, err = r.thread(s.Thread); err != nil {
			return
		}
	}

	if s.Domain != "" {
		if d, err = r.domain(s.Domain); err != nil {
			return
		}
	}

	perm, err := pmp.ParsePerm(s.Perm)

	if err != nil {
		return
	}

	m := r.Manager

	switch {
	case s.Op == "add-dynamic" && t != nil:
		err = m.AddDynamic(t, s.Start, s.Size, perm)
	case s.Op == "attach" && d != nil:
		var id int

		if id, err = m.AddPartition(d, pmp.Partition{Start: s.Start, Size: s.Size, Perm: perm}); err == nil {
			res = fmt.Sprintf("partition %d", id)
		}
	case s.Op == "detach" && d != nil:
		err = m.RemovePartition(d, s.Partition)
	case s.Op == "join" && t != nil && d != nil:
		err = m.AddThread(d, t)
	case s.Op == "leave" && t != nil:
		m.RemoveThread(t)
	case s.Op == "destroy" && d != nil:
		m.DestroyDomain(d)
	case s.Op == "validate" && t != nil:
		ok := m.ValidateAccess(t, s.Start, s.Size, s.Write)
		res = fmt.Sprintf("authorized:%v", ok)

		if s.Expect != nil && ok != *s.Expect {
			return res, fmt.Errorf("validate %#x+%#x write:%v = %v, expected %v", s.Start, s.Size, s.Write, ok, *s.Expect)
		}
	case s.Op == "activate" && t != nil:
		err = m.ActivateUser(t, r.Registers)
	case s.Op == "activate-guard" && t != nil:
		err = m.ActivateStackGuard(t, r.Registers)
	default:
		return "", fmt.Errorf("invalid step %q (thread:%q domain:%q)", s.Op, s.Thread, s.Domain)
	}

	return
}

func checkError(s Step, err error) error {
	if s.Error == "" {
		return err
	}

	want, ok := expectedErrors[s.Error]

	if !ok {
		return fmt.Errorf("unknown expected error %q", s.Error)
	}

	if !errors.Is(err, want) {
		return fmt.Errorf("got error %v, expected %v", err, want)
	}

	return nil
}

// Run executes all scenario steps, stopping at the first unexpected result.
func (r *Runner) Run() (err error) {
	for i, s := range r.scenario.Steps {
		res, err := r.step(s)

		if err = checkError(s, err); err != nil {
			return fmt.Errorf("step %d (%s): %v", i, s.Op, err)
		}

		fmt.Fprintf(r.out, "step %.3d %-14s %s\n", i, s.Op, res)
	}

	return
}

// Report writes the user and guard tables of all threads, followed by the
// packed pmpcfg values of the register file.
func (r *Runner) Report(w io.Writer) {
	n := r.Manager.Slots

	for _, st := range r.scenario.Threads {
		t := r.threads[st.Name]

		fmt.Fprintf(w, "thread %s user\n%s", t.Name, t.User.Dump(n))

		if r.Manager.StackGuardSize != 0 {
			fmt.Fprintf(w, "thread %s guard\n%s", t.Name, t.Guard.Dump(n))
		}
	}

	for i, v := range r.Registers.Packed(n, r.Manager.XLEN) {
		if r.Manager.XLEN == 64 && i%2 != 0 {
			continue
		}

		fmt.Fprintf(w, "pmpcfg%d %#.*x\n", i, r.Manager.XLEN/4, v)
	}
}
