// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint-estimate-dists estimates the maximum read distance parameter
// used by tigmint-molecule from the distribution of distances between
// neighbouring reads sharing a barcode. It reads a SAM/BAM file sorted
// by BX tag and then by position and writes a tigmint parameter TSV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"gonum.org/v1/gonum/stat"

	"github.com/grosa1/tigmint/molecule"
)

const version = "tigmint-estimate-dists 1.2.9"

var bxTag = sam.Tag{'B', 'X'}

var (
	pctl        = flag.Float64("p", 0.5, "read distance percentile reported first")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] BAM\n\nReads a SAM/BAM file sorted by BX tag then position, - for SAM on stdin.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if flag.NArg() != 1 || *pctl <= 0 || *pctl > 1 {
		flag.Usage()
		os.Exit(2)
	}

	in, closeIn, err := openAlignments(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to open %q: %v", flag.Arg(0), err)
	}
	defer closeIn()

	dists, err := gaps(in)
	if err != nil {
		log.Fatalf("failed to read alignments: %v", err)
	}
	if len(dists) == 0 {
		log.Fatal("no barcoded read pairs found: cannot estimate read distances")
	}
	sort.Float64s(dists)

	w := bufio.NewWriter(os.Stdout)
	seen := make(map[float64]bool)
	for _, p := range []float64{*pctl, 0.9, 0.95} {
		if seen[p] {
			continue
		}
		seen[p] = true
		d := stat.Quantile(p, stat.Empirical, dists, nil)
		_, err = fmt.Fprintf(w, "read_p%.4g\t%d\n", p*100, int(d))
		if err != nil {
			log.Fatalf("failed to write parameters: %v", err)
		}
	}
	err = w.Flush()
	if err != nil {
		log.Fatalf("failed to write parameters: %v", err)
	}
}

// gaps returns the distances between the starts of neighbouring mapped
// primary reads sharing a barcode on the same reference.
func gaps(r molecule.RecordReader) ([]float64, error) {
	var (
		dists   []float64
		barcode string
		ref     *sam.Reference
		last    int
		first   = true
	)
	for {
		rec, err := r.Read()
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			return dists, nil
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Flags&sam.Supplementary != 0 {
			continue
		}
		aux := rec.AuxFields.Get(bxTag)
		if aux == nil {
			continue
		}
		bx, ok := aux.Value().(string)
		if !ok {
			continue
		}

		if first || bx != barcode || rec.Ref != ref {
			barcode = bx
			ref = rec.Ref
			last = rec.Start()
			first = false
			continue
		}
		if d := rec.Start() - last; d >= 0 {
			dists = append(dists, float64(d))
		}
		last = rec.Start()
	}
}

// openAlignments opens a SAM or BAM stream, choosing the decoder by
// file suffix. The name - reads SAM from stdin.
func openAlignments(name string) (molecule.RecordReader, func() error, error) {
	if name == "-" {
		r, err := sam.NewReader(os.Stdin)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(name, ".bam") {
		r, err := bam.NewReader(f, 0)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return r, func() error {
			err := r.Close()
			f.Close()
			return err
		}, nil
	}
	r, err := sam.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, f.Close, nil
}
