// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint-cut breaks draft assembly sequences at regions that are not
// spanned by molecule extents, writing the corrected breaktigs as
// fasta. Molecule extents are read from a BED file such as the output
// of tigmint-molecule or tigmint-molecule-paf.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/bed"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/store/interval"
)

const version = "tigmint-cut 1.2.9"

var (
	span    = flag.Int("s", 2, "minimum number of molecules spanning a window")
	window  = flag.Int("w", 1000, "window size in base pairs")
	outFile = flag.String("o", "", "output breaktigs fasta file (default to stdout)")

	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] FASTA BED\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	trees, err := readMolecules(flag.Arg(1))
	if err != nil {
		log.Fatalf("failed to read molecule bed file: %v", err)
	}

	out := os.Stdout
	var bedOut *os.File
	if *outFile != "" {
		out, err = os.Create(*outFile)
		if err != nil {
			log.Fatalf("failed to create breaktigs file: %v", err)
		}
		defer out.Close()
		bedOut, err = os.Create(*outFile + ".bed")
		if err != nil {
			log.Fatalf("failed to create breakpoint bed file: %v", err)
		}
		defer bedOut.Close()
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to open assembly file: %v", err)
	}
	defer f.Close()

	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.DNA)))
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		cuts := cutPoints(trees[s.ID], len(s.Seq), *window, *span)
		for k, p := range pieces(len(s.Seq), cuts) {
			piece := *s
			piece.ID = fmt.Sprintf("%s-%d", s.ID, k+1)
			piece.Seq = s.Seq[p[0]:p[1]]
			_, err = fmt.Fprintf(out, "%60a\n", &piece)
			if err != nil {
				log.Fatalf("failed to write breaktig: %v", err)
			}
			if bedOut != nil {
				_, err = fmt.Fprintf(bedOut, "%s\t%d\t%d\n", s.ID, p[0], p[1])
				if err != nil {
					log.Fatalf("failed to write breakpoint bed: %v", err)
				}
			}
		}
	}
	err = sc.Error()
	if err != nil {
		log.Fatalf("error during fasta read: %v", err)
	}
}

// readMolecules returns the molecule extents of a BED file collected
// into an interval tree per reference sequence.
func readMolecules(file string) (map[string]*interval.IntTree, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br, err := bed.NewReader(f, 3)
	if err != nil {
		return nil, err
	}
	trees := make(map[string]*interval.IntTree)
	sc := featio.NewScanner(br)
	for id := uintptr(1); sc.Next(); id++ {
		b := sc.Feat().(*bed.Bed3)
		t, ok := trees[b.Chrom]
		if !ok {
			t = &interval.IntTree{}
			trees[b.Chrom] = t
		}
		err = t.Insert(bedInterval{start: b.ChromStart, end: b.ChromEnd, id: id}, true)
		if err != nil {
			return nil, err
		}
	}
	err = sc.Error()
	if err != nil {
		return nil, err
	}
	for _, t := range trees {
		t.AdjustRanges()
	}
	return trees, nil
}

type bedInterval struct {
	start, end int
	id         uintptr
}

func (i bedInterval) ID() uintptr { return i.id }
func (i bedInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.start, End: i.end}
}
func (i bedInterval) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return i.end > b.Start && i.start < b.End
}

// cutPoints returns the positions at which a sequence of the given
// length should be broken. Non-overlapping windows are scanned across
// the sequence and runs of windows spanned by fewer than span
// molecules become cut regions, cut at their midpoint. Runs touching
// either end of the sequence are ignored since no molecule can span
// beyond the sequence.
func cutPoints(t *interval.IntTree, length, window, span int) []int {
	n := length / window
	if n == 0 {
		return nil
	}
	unsupported := make([]bool, n)
	for i := range unsupported {
		start := i * window
		end := start + window
		var spanning int
		if t != nil {
			for _, h := range t.Get(bedInterval{start: start, end: end}) {
				r := h.Range()
				if r.Start <= start && end <= r.End {
					spanning++
				}
			}
		}
		unsupported[i] = spanning < span
	}

	var cuts []int
	for i := 0; i < n; {
		if !unsupported[i] {
			i++
			continue
		}
		j := i
		for j < n && unsupported[j] {
			j++
		}
		if i > 0 && j < n {
			cuts = append(cuts, (i*window+j*window)/2)
		}
		i = j
	}
	return cuts
}

// pieces returns the half-open coordinate ranges splitting a sequence
// of the given length at each cut point.
func pieces(length int, cuts []int) [][2]int {
	var p [][2]int
	start := 0
	for _, c := range cuts {
		p = append(p, [2]int{start, c})
		start = c
	}
	return append(p, [2]int{start, length})
}
