// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/GoTEE-pmp/pmp"
)

const sharedDomain = `
name: shared domain
config:
  slots: 16
  xlen: 32
  powerOfTwo: true
  stackGuardSize: 64
  stateWord: 0x80000100
  rom: {start: 0x20000000, size: 0x100000}
  ram: {start: 0x80000000, size: 0x100000}
domains: [d0]
threads:
  - name: t0
    stack: {start: 0x80010000, size: 0x1000}
    domain: d0
  - name: t1
    stack: {start: 0x80020000, size: 0x1000}
    domain: d0
steps:
  - {op: attach, domain: d0, start: 0x20000000, size: 0x1000, perm: rw}
  - {op: attach, domain: d0, start: 0x20004000, size: 0x4000, perm: r}
  - {op: validate, thread: t1, start: 0x20000010, size: 0x10, write: true, expect: true}
  - {op: detach, domain: d0, partition: 0}
  - {op: validate, thread: t1, start: 0x20000010, size: 0x10, expect: false}
  - {op: validate, thread: t0, start: 0x20004000, size: 0x4000, expect: true}
  - {op: add-dynamic, thread: t0, start: 0x20001002, size: 4, perm: r, error: invalid}
  - {op: detach, domain: d0, partition: 0, error: invalid}
  - {op: activate, thread: t0}
`

func writeScenario(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenario.yaml")

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}

	return path
}

func TestLoad(t *testing.T) {
	s, err := Load(writeScenario(t, sharedDomain))

	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.Name != "shared domain" || len(s.Threads) != 2 || len(s.Steps) != 9 {
		t.Fatalf("unexpected scenario %+v", s)
	}

	if s.Config.StateWord != 0x80000100 || s.Config.ROM.Size != 0x100000 {
		t.Errorf("hex values not decoded: %+v", s.Config)
	}

	if s.Steps[2].Expect == nil || !*s.Steps[2].Expect {
		t.Errorf("expect not decoded: %+v", s.Steps[2])
	}
}

func TestLoadDefaults(t *testing.T) {
	s, err := Parse([]byte("name: empty\n"))

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if s.Config.Slots != 16 || s.Config.XLEN != 32 {
		t.Errorf("defaults not applied: %+v", s.Config)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(writeScenario(t, "steps: {op: [")); err == nil {
		t.Errorf("Load succeeded on malformed file")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load succeeded on missing file")
	}
}

func TestRun(t *testing.T) {
	s, err := Parse([]byte(sharedDomain))

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var out bytes.Buffer

	r, err := NewRunner(s, &out)

	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v\n%s", err, out.String())
	}

	first := r.Manager.FirstDynamicSlot()
	want := []pmp.Entry{{Cfg: 0x19, Addr: 0x080017ff}, {}}

	for _, name := range []string{"t0", "t1"} {
		th := r.Thread(name)

		got := []pmp.Entry{th.User.Entry(first), th.User.Entry(first + 1)}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("thread %s dynamic entries mismatch (-want +got):\n%s", name, diff)
		}
	}

	if r.Registers.Entry(first) != want[0] {
		t.Errorf("t0 not activated, register %d = %v", first, r.Registers.Entry(first))
	}

	var report bytes.Buffer
	r.Report(&report)

	for _, s := range []string{"thread t0 user", "thread t1 guard", "pmpcfg0 0x19", "pmpcfg3"} {
		if !strings.Contains(report.String(), s) {
			t.Errorf("report does not contain %q:\n%s", s, report.String())
		}
	}
}

func TestRunUnexpected(t *testing.T) {
	for _, step := range []string{
		"{op: validate, thread: t0, start: 0x20000000, size: 4, expect: true}",
		"{op: detach, domain: d0, partition: 3}",
		"{op: attach, domain: d0, start: 0x20000000, size: 0x1000, perm: rw, error: not-found}",
		"{op: attach, domain: d0, start: 0x20000000, size: 0x1000, perm: q}",
		"{op: reboot, thread: t0}",
		"{op: join, thread: t9, domain: d0}",
	} {
		s, err := Parse([]byte(strings.SplitN(sharedDomain, "steps:", 2)[0] + "steps:\n  - " + step + "\n"))

		if err != nil {
			t.Fatalf("Parse: %v", err)
		}

		var out bytes.Buffer

		r, err := NewRunner(s, &out)

		if err != nil {
			t.Fatalf("NewRunner: %v", err)
		}

		if err := r.Run(); err == nil {
			t.Errorf("Run succeeded on step %s", step)
		}
	}
}

func TestNewRunnerUnknownDomain(t *testing.T) {
	s, err := Parse([]byte(strings.Replace(sharedDomain, "domain: d0\n  - name: t1", "domain: d9\n  - name: t1", 1)))

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := NewRunner(s, &bytes.Buffer{}); err == nil {
		t.Errorf("NewRunner succeeded with unknown domain")
	}
}
