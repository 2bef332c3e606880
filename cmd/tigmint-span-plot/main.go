// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tigmint-span-plot renders a histogram of molecule extent sizes from
// a molecule BED file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/bed"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	in     = flag.String("in", "", "file name of a molecule BED file to be processed.")
	bins   = flag.Int("bins", 50, "specifies the number of histogram bins.")
	format = flag.String("format", "svg", "specifies the output format of the plot: eps, jpg, jpeg, pdf, png, svg, and tiff.")
)

func validFormat(format string) bool {
	for _, s := range []string{"eps", "jpg", "jpeg", "pdf", "png", "svg", "tiff"} {
		if format == s {
			return true
		}
	}
	return false
}

func main() {
	flag.Parse()
	if *in == "" || !validFormat(*format) {
		flag.Usage()
		os.Exit(1)
	}

	sizes, err := readSizes(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(sizes) == 0 {
		fmt.Fprintln(os.Stderr, "no molecule extents found")
		os.Exit(1)
	}

	p, err := plot.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	h, err := plotter.NewHist(sizes, *bins)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	p.Add(h)

	p.Title.Text = filepath.Base(*in)
	p.X.Label.Text = "molecule extent size (bp)"
	p.Y.Label.Text = "count"

	err = p.Save(19*vg.Centimeter, 15*vg.Centimeter, filepath.Base(*in)+"."+*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readSizes(in string) (plotter.Values, error) {
	bf, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer bf.Close()

	br, err := bed.NewReader(bf, 3)
	if err != nil {
		return nil, err
	}

	var sizes plotter.Values
	sc := featio.NewScanner(br)
	for sc.Next() {
		f := sc.Feat().(*bed.Bed3)
		sizes = append(sizes, float64(f.ChromEnd-f.ChromStart))
	}
	err = sc.Error()
	if err != nil {
		return nil, err
	}
	return sizes, nil
}
