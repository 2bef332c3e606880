// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint-molecule-paf reports the molecule extents of long read
// mappings in a PAF file as BED, dropping extents shorter than a
// minimum size. Each mapping is treated as a single molecule.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/grosa1/tigmint/paf"
)

const version = "tigmint-molecule-paf 1.2.9"

var (
	minSize     = flag.Int("m", 2000, "minimum molecule extent size")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] PAF\n\nReads a PAF file, - for stdin.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	in := os.Stdin
	if name := flag.Arg(0); name != "-" {
		var err error
		in, err = os.Open(name)
		if err != nil {
			log.Fatalf("failed to open %q: %v", name, err)
		}
		defer in.Close()
	}

	err := filterExtents(in, os.Stdout, *minSize)
	if err != nil {
		log.Fatalf("failed to filter molecule extents: %v", err)
	}
}

// filterExtents writes a five column BED line to w for every PAF record
// in r whose target extent is at least min long, preserving input order.
func filterExtents(r io.Reader, w io.Writer, min int) error {
	pr := paf.NewReader(r)
	for {
		rec, err := pr.Read()
		if err != nil {
			if err != io.EOF {
				return err
			}
			return nil
		}
		if rec.Extent() < min {
			continue
		}
		_, err = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\n",
			rec.TName, rec.TStart, rec.TEnd, rec.QName, rec.Matches)
		if err != nil {
			return err
		}
	}
}
