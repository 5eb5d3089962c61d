// Copyright 2022 The Armored Witness OS authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"bytes"
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
	"sync"
)

var debugTarget struct {
	sync.Mutex

	elf   []byte
	table *gosym.Table
}

// LookupSym returns the ELF symbol matching name.
func LookupSym(buf []byte, name string) (*elf.Symbol, error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return nil, err
	}

	syms, err := exe.Symbols()

	if err != nil {
		return nil, err
	}

	for _, sym := range syms {
		if sym.Name == name {
			return &sym, nil
		}
	}

	return nil, errors.New("symbol not found")
}

func goSymTable(buf []byte) (symTable *gosym.Table, err error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	text := exe.Section(".text")
	pclntab := exe.Section(".gopclntab")

	if text == nil || pclntab == nil {
		return nil, errors.New("missing Go symbol sections")
	}

	lineTableData, err := pclntab.Data()

	if err != nil {
		return
	}

	lineTable := gosym.NewLineTable(lineTableData, text.Addr)

	var symTableData []byte

	if symtab := exe.Section(".gosymtab"); symtab != nil {
		if symTableData, err = symtab.Data(); err != nil {
			return
		}
	}

	return gosym.NewTable(symTableData, lineTable)
}

// SetDebugTarget sets the ELF image used to resolve guest program counters.
func SetDebugTarget(buf []byte) {
	debugTarget.Lock()
	defer debugTarget.Unlock()

	debugTarget.elf = buf
	debugTarget.table = nil
}

// PCToLine resolves a program counter of the debug target to its source
// file and line.
func PCToLine(pc uint64) (s string, err error) {
	debugTarget.Lock()
	defer debugTarget.Unlock()

	if debugTarget.elf == nil {
		return "", errors.New("no debug target")
	}

	if debugTarget.table == nil {
		if debugTarget.table, err = goSymTable(debugTarget.elf); err != nil {
			return
		}
	}

	file, line, fn := debugTarget.table.PCToLine(pc)

	if fn == nil {
		return "", fmt.Errorf("pc %#x not found", pc)
	}

	return fmt.Sprintf("%s:%d", file, line), nil
}
