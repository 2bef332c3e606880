// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint-molecule groups linked reads into molecules, reading a
// SAM/BAM file sorted by BX tag and then by position and writing the
// molecule extents as BED or TSV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/grosa1/tigmint/molecule"
)

const version = "tigmint-molecule 1.2.9"

var (
	outFile    = flag.String("o", "", "output file (default to stdout)")
	outBAM     = flag.String("w", "", "output BAM file with MI tags (optional)")
	bedFormat  = flag.Bool("bed", false, "output in BED format (default)")
	tsvFormat  = flag.Bool("tsv", false, "output in TSV format")
	maxDist    = flag.Int("d", 50000, "maximum distance between reads in the same molecule")
	minReads   = flag.Int("m", 4, "minimum number of reads per molecule (duplicates are filtered out)")
	minMapq    = flag.Int("q", 0, "minimum mapping quality")
	minASRatio = flag.Float64("a", 0.65, "minimum ratio of alignment score (AS) over read length")
	maxNM      = flag.Int("n", 5, "maximum number of mismatches (NM)")
	minSize    = flag.Int("s", 2000, "minimum molecule size")
	paramFile  = flag.String("p", "", "tigmint parameter file overriding -d")

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
	if flag.NArg() != 1 || (*bedFormat && *tsvFormat) {
		flag.Usage()
		os.Exit(2)
	}

	id := molecule.NewIdentifier()
	id.MaxDist = *maxDist
	id.MinReads = *minReads
	id.MinMapq = *minMapq
	id.MinASRatio = *minASRatio
	id.MaxNM = *maxNM
	id.MinSize = *minSize
	if *paramFile != "" {
		d, err := molecule.ReadDistParam(*paramFile)
		if err != nil {
			log.Fatalf("failed to read parameter file %q: %v", *paramFile, err)
		}
		id.MaxDist = d
	}

	in, header, closeIn, err := openAlignments(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to open %q: %v", flag.Arg(0), err)
	}
	defer closeIn()

	out := os.Stdout
	if *outFile != "" {
		out, err = os.Create(*outFile)
		if err != nil {
			log.Fatalf("failed to create output file: %v", err)
		}
		defer out.Close()
	}
	w := bufio.NewWriter(out)

	var bw *bam.Writer
	if *outBAM != "" {
		f, err := os.Create(*outBAM)
		if err != nil {
			log.Fatalf("failed to create BAM output file: %v", err)
		}
		defer f.Close()
		bw, err = bam.NewWriter(f, header, 1)
		if err != nil {
			log.Fatalf("failed to create BAM output stream: %v", err)
		}
		defer bw.Close()
	}

	write := func(m *molecule.Molecule) error { return m.WriteBED(w) }
	if *tsvFormat {
		_, err = fmt.Fprintln(w, molecule.TSVHeader)
		if err != nil {
			log.Fatalf("failed to write header: %v", err)
		}
		write = func(m *molecule.Molecule) error { return m.WriteTSV(w) }
	}

	// A nil *bam.Writer must not become a non-nil RecordWriter.
	var recOut molecule.RecordWriter
	if bw != nil {
		recOut = bw
	}
	err = id.Run(in, write, recOut)
	if err != nil {
		log.Fatalf("failed to group molecules: %v", err)
	}
	err = w.Flush()
	if err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
}

// openAlignments opens a SAM or BAM stream, choosing the decoder by
// file suffix. The name - reads SAM from stdin.
func openAlignments(name string) (molecule.RecordReader, *sam.Header, func() error, error) {
	if name == "-" {
		r, err := sam.NewReader(os.Stdin)
		if err != nil {
			return nil, nil, nil, err
		}
		return r, r.Header(), func() error { return nil }, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, nil, err
	}
	if strings.HasSuffix(name, ".bam") {
		r, err := bam.NewReader(f, 0)
		if err != nil {
			f.Close()
			return nil, nil, nil, err
		}
		return r, r.Header(), func() error {
			err := r.Close()
			f.Close()
			return err
		}, nil
	}
	r, err := sam.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	return r, r.Header(), f.Close, nil
}
