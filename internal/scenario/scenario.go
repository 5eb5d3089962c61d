// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package scenario replays sequences of PMP thread and memory domain
// operations described in YAML against an in-memory register file.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Extent describes a memory area.
type Extent struct {
	Start uint64 `yaml:"start"`
	Size  uint64 `yaml:"size"`
}

// Config describes the PMP configuration and memory layout.
type Config struct {
	Slots          int    `yaml:"slots"`
	XLEN           int    `yaml:"xlen"`
	PowerOfTwo     bool   `yaml:"powerOfTwo"`
	StackGuardSize uint64 `yaml:"stackGuardSize,omitempty"`

	StateWord uint64 `yaml:"stateWord"`
	ROM       Extent `yaml:"rom"`
	RAM       Extent `yaml:"ram"`
}

// Thread describes an execution context.
type Thread struct {
	Name      string `yaml:"name"`
	Stack     Extent `yaml:"stack"`
	PrivStack Extent `yaml:"privStack,omitempty"`
	Domain    string `yaml:"domain,omitempty"`
}

// Step describes a single operation.
//
// Supported operations are add-dynamic, attach, detach, join, leave,
// destroy, validate, activate and activate-guard.
type Step struct {
	Op        string `yaml:"op"`
	Thread    string `yaml:"thread,omitempty"`
	Domain    string `yaml:"domain,omitempty"`
	Partition int    `yaml:"partition,omitempty"`

	Start uint64 `yaml:"start,omitempty"`
	Size  uint64 `yaml:"size,omitempty"`
	Perm  string `yaml:"perm,omitempty"`
	Write bool   `yaml:"write,omitempty"`

	// Expect is the expected validate result.
	Expect *bool `yaml:"expect,omitempty"`
	// Error is the expected error (invalid, out-of-slots, not-found).
	Error string `yaml:"error,omitempty"`
}

// Scenario represents a scenario file.
type Scenario struct {
	Name    string   `yaml:"name"`
	Config  Config   `yaml:"config"`
	Threads []Thread `yaml:"threads"`
	Domains []string `yaml:"domains"`
	Steps   []Step   `yaml:"steps"`
}

func (s *Scenario) normalize() {
	if s.Config.Slots == 0 {
		s.Config.Slots = 16
	}

	if s.Config.XLEN == 0 {
		s.Config.XLEN = 32
	}
}

// Parse decodes a scenario.
func Parse(data []byte) (s *Scenario, err error) {
	s = &Scenario{}

	if err = yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("invalid scenario, %v", err)
	}

	s.normalize()

	return
}

// Load reads and decodes a scenario file.
func Load(path string) (s *Scenario, err error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return
	}

	if s, err = Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}

	return
}
