// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint maps long reads to a draft assembly with minimap2 and reports
// the molecule extents of the mappings as BED, treating each mapped
// read as a single molecule.
//
// The program is based on the original python code by Justin Chu and
// Shaun Jackman.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/grosa1/tigmint/minimap2"
	"github.com/grosa1/tigmint/paf"
)

var (
	reads   = flag.String("reads", "", "input long read fasta/fastq file name (required)")
	draft   = flag.String("draft", "", "input draft assembly fasta file name (required)")
	mm2Path = flag.String("minimap2", "", "path to minimap2 if not in $PATH")
	preset  = flag.String("preset", "map-ont", "minimap2 preset")
	procs   = flag.Int("procs", 1, "number of minimap2 threads")
	minSize = flag.Int("m", 2000, "minimum molecule extent size")
	run     = flag.Bool("run-minimap2", true, `actually run minimap2
    	false is useful to reconstruct output from an
    	existing tigmint .paf output`,
	)

	outFile = flag.String("out", "", "output file name (default to stdout)")
	errFile = flag.String("err", "", "log file name (default to stderr)")
)

var (
	outStream = os.Stdout
	errStream = os.Stderr
)

func main() {
	flag.Parse()
	if *reads == "" || (*draft == "" && *run) {
		fmt.Fprintln(os.Stderr, "invalid argument: must have reads and draft assembly set")
		flag.Usage()
		os.Exit(1)
	}

	var err error
	if *errFile != "" {
		errStream, err = os.Create(*errFile)
		if err != nil {
			// Oh, the irony.
			log.Fatalf("failed to create log file: %v", err)
		}
		defer errStream.Close()
		log.SetOutput(errStream)
	}
	if *outFile != "" {
		outStream, err = os.Create(*outFile)
		if err != nil {
			log.Fatalf("failed to create out file: %v", err)
		}
		defer outStream.Close()
	}

	log.Printf("mapping reads in %q to %q", *reads, *draft)
	err = extents(*reads, *draft, *preset, *procs, *run, *minSize)
	if err != nil {
		log.Fatalf("failed to report molecule extents: %v", err)
	}
}

// extents maps reads to the draft assembly and writes a BED line for
// every mapping whose extent on the draft is at least min long. If run
// is false, minimap2 is not run and the existing PAF output is used.
// procs specifies the number of minimap2 threads to use.
func extents(reads, draft, preset string, procs int, run bool, min int) error {
	m := minimap2.Minimap2{
		Cmd: *mm2Path,

		Target: draft, Query: reads,
		Preset:      preset,
		NoSecondary: true,
		CopyComment: true,

		OutFile: filepath.Base(reads) + ".paf",

		Procs: procs,
	}
	if run {
		cmd, err := m.BuildCommand()
		if err != nil {
			return err
		}
		cmd.Stdout = errStream
		cmd.Stderr = errStream
		err = cmd.Run()
		if err != nil {
			return err
		}
	}

	f, err := os.Open(m.OutFile)
	if err != nil {
		return err
	}
	defer f.Close()

	pr := paf.NewReader(f)
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
		_, err = fmt.Fprintf(outStream, "%s\t%d\t%d\t%s\t%d\n",
			rec.TName, rec.TStart, rec.TEnd, rec.QName, rec.Matches)
		if err != nil {
			return err
		}
	}
}
