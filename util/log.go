// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// worldOutput buffers the characters written by guest execution contexts,
// one line per world, to avoid interleaving concurrent output.
type worldOutput struct {
	sync.Mutex

	secure    bytes.Buffer
	nonSecure bytes.Buffer
}

var output worldOutput

// put appends c to the world buffer and, on line completion or buffer
// exhaustion, passes the buffered line to flush.
func (o *worldOutput) put(c byte, secure bool, flush func(line []byte, secure bool)) {
	o.Lock()
	defer o.Unlock()

	buf := &o.nonSecure

	if secure {
		buf = &o.secure
	}

	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		flush(buf.Bytes(), secure)
		buf.Reset()
	}
}

// BufferedLog buffers guest output to w, line by line.
func BufferedLog(c byte, secure bool, w io.Writer) {
	output.put(c, secure, func(line []byte, _ bool) {
		w.Write(line)
	})
}

// BufferedStdoutLog buffers guest output to standard output.
func BufferedStdoutLog(c byte, secure bool) {
	BufferedLog(c, secure, os.Stdout)
}

// BufferedTermLog buffers guest output to a terminal, secure world lines
// are printed in green and non-secure ones in red.
func BufferedTermLog(c byte, secure bool, t *term.Terminal) {
	output.put(c, secure, func(line []byte, secure bool) {
		color := t.Escape.Red

		if secure {
			color = t.Escape.Green
		}

		t.Write(color)
		t.Write(line)
		t.Write(t.Escape.Reset)
	})
}
