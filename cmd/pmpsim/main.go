// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// pmpsim replays a PMP scenario file on the host and prints the resulting
// shadow tables and register images.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-pmp/internal/scenario"
)

const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

func status(ok bool, msg string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return msg
	}

	if ok {
		return colorGreen + msg + colorReset
	}

	return colorRed + msg + colorReset
}

func replay(path string, report bool, out io.Writer) (err error) {
	s, err := scenario.Load(path)

	if err != nil {
		return fmt.Errorf("could not load scenario, %v", err)
	}

	r, err := scenario.NewRunner(s, out)

	if err != nil {
		return fmt.Errorf("could not prepare scenario, %v", err)
	}

	fmt.Fprintf(out, "scenario %q slots:%d xlen:%d pow2:%v partitions:%d\n",
		s.Name, r.Manager.Slots, r.Manager.XLEN, r.Manager.PowerOfTwo, r.Manager.MaxPartitions())

	err = r.Run()

	if report {
		r.Report(out)
	}

	return
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	file := fs.String("scenario", "", "scenario file to replay")
	report := fs.Bool("report", true, "print thread tables and pmpcfg registers")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := replay(*file, *report, os.Stdout); err != nil {
		fmt.Println(status(false, fmt.Sprintf("FAIL %v", err)))
		os.Exit(1)
	}

	fmt.Println(status(true, "PASS"))
}
