// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minimap2 provides interaction with the minimap2 long read mapper.
package minimap2

import (
	"errors"
	"os/exec"

	"github.com/biogo/external"
)

var ErrMissingRequired = errors.New("minimap2: missing required argument")

// Minimap2 defines parameters for the minimap2 mapper. Only PAF output
// is modelled; the zero OutFile writes to stdout.
type Minimap2 struct {
	// Usage: minimap2 [options] target.fa query.fq
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}minimap2{{end}}"` // minimap2

	// Indexing options:
	Preset   string `buildarg:"{{if .}}-x{{split}}{{.}}{{end}}"` // -x: preset (map-ont, map-pb, ...)
	KmerSize int    `buildarg:"{{if .}}-k{{split}}{{.}}{{end}}"` // -k: k-mer size
	Window   int    `buildarg:"{{if .}}-w{{split}}{{.}}{{end}}"` // -w: minimizer window size

	// Mapping options:
	NoSecondary bool `buildarg:"{{if .}}--secondary=no{{end}}"` // --secondary=no: suppress secondary mappings
	CopyComment bool `buildarg:"{{if .}}-y{{end}}"`             // -y: copy fasta/q comments to output

	// Output options:
	OutFile string `buildarg:"{{if .}}-o{{split}}{{.}}{{end}}"` // -o: outfile (stdout if empty)

	// Parallelism:
	Procs int `buildarg:"{{if .}}-t{{split}}{{.}}{{end}}"` // -t: number of threads

	// Input files:
	Target string `buildarg:"{{.}}"` // "target.fa"
	Query  string `buildarg:"{{.}}"` // "query.fq"
}

// BuildCommand returns an exec.Cmd built from the parameters in m.
func (m Minimap2) BuildCommand() (*exec.Cmd, error) {
	if m.Target == "" || m.Query == "" {
		return nil, ErrMissingRequired
	}
	cl := external.Must(external.Build(m))
	return exec.Command(cl[0], cl[1:]...), nil
}
