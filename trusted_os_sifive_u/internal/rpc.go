// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64
// +build tamago,riscv64

package gotee

import (
	"log"

	"github.com/usbarmory/GoTEE-pmp/pmp"
	"github.com/usbarmory/GoTEE-pmp/util"
)

// RPC represents an example receiver for user mode <--> system RPC over system
// calls.
type RPC struct {
	ctx *Context
}

// Echo returns a response with the input string.
func (r *RPC) Echo(in string, out *string) error {
	*out = in
	return nil
}

// Attach adds a partition to the caller memory domain and returns its
// identifier.
func (r *RPC) Attach(req util.PartitionRequest, id *int) (err error) {
	perm, err := pmp.ParsePerm(req.Perm)

	if err != nil {
		return
	}

	if *id, err = r.ctx.Attach(req.Start, req.Size, perm); err != nil {
		return
	}

	log.Printf("SM attached %s partition %d addr:%#x size:%#x %s", r.ctx.Name, *id, req.Start, req.Size, perm)

	return
}

// Detach removes a partition from the caller memory domain.
func (r *RPC) Detach(id int, _ *bool) (err error) {
	if err = r.ctx.Detach(id); err != nil {
		return
	}

	log.Printf("SM detached %s partition %d", r.ctx.Name, id)

	return
}

// Validate returns whether the caller can access a buffer.
func (r *RPC) Validate(req util.ValidateRequest, ok *bool) error {
	*ok = r.ctx.Validate(req.Addr, req.Size, req.Write)
	return nil
}
