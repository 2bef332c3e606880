// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package molecule

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"
)

var chr1, chr2 *sam.Reference

func init() {
	var err error
	chr1, err = sam.NewReference("chr1", "", "", 1000000, nil, nil)
	if err != nil {
		panic(err)
	}
	chr2, err = sam.NewReference("chr2", "", "", 1000000, nil, nil)
	if err != nil {
		panic(err)
	}
}

func mustAux(t sam.Tag, v interface{}) sam.Aux {
	aux, err := sam.NewAux(t, v)
	if err != nil {
		panic(err)
	}
	return aux
}

// read returns a 100 base mapped read record.
func read(name string, ref *sam.Reference, pos int, mapq byte, flags sam.Flags, auxs ...sam.Aux) *sam.Record {
	return &sam.Record{
		Name:  name,
		Ref:   ref,
		Pos:   pos,
		MapQ:  mapq,
		Cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 100)},
		Flags: flags,
		Seq:   sam.NewSeq(bytes.Repeat([]byte{'A'}, 100)),

		AuxFields: auxs,
	}
}

func barcoded(name string, ref *sam.Reference, pos int, bx string, flags sam.Flags) *sam.Record {
	return read(name, ref, pos, 60, flags,
		mustAux(bxTag, bx),
		mustAux(asTag, 80),
		mustAux(nmTag, 1),
	)
}

// sliceReader is a RecordReader over a fixed set of records.
type sliceReader struct {
	recs []*sam.Record
}

func (r *sliceReader) Read() (*sam.Record, error) {
	if len(r.recs) == 0 {
		return nil, io.EOF
	}
	rec := r.recs[0]
	r.recs = r.recs[1:]
	return rec, nil
}

// sliceWriter is a RecordWriter collecting written records.
type sliceWriter struct {
	recs []*sam.Record
}

func (w *sliceWriter) Write(r *sam.Record) error {
	w.recs = append(w.recs, r)
	return nil
}

func identify(t *testing.T, id *Identifier, recs []*sam.Record, bamOut RecordWriter) []*Molecule {
	t.Helper()
	var got []*Molecule
	err := id.Run(&sliceReader{recs: recs}, func(m *Molecule) error {
		got = append(got, m)
		return nil
	}, bamOut)
	require.NoError(t, err)
	return got
}

func TestIdentifierGroups(t *testing.T) {
	recs := []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", sam.Reverse),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
		barcoded("r4", chr1, 3000, "AACC-1", sam.Reverse),
	}

	got := identify(t, NewIdentifier(), recs, nil)
	want := []*Molecule{{
		Rname: "chr1", Start: 0, End: 3100,
		Barcode: "AACC-1", ID: 0, Reads: 4,
		MapqMedian: 60, ASMedian: 80, NMMedian: 1,
		HasAS: true, HasNM: true,
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected molecules:\ngot: %+v\nwant:%+v", got, want)
	}
}

func TestIdentifierSplitsOnDistance(t *testing.T) {
	recs := []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", 0),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
		barcoded("r4", chr1, 3000, "AACC-1", 0),
		// Gap greater than MaxDist starts a new molecule.
		barcoded("r5", chr1, 60000, "AACC-1", 0),
		barcoded("r6", chr1, 61000, "AACC-1", 0),
		barcoded("r7", chr1, 62000, "AACC-1", 0),
		barcoded("r8", chr1, 63000, "AACC-1", 0),
	}

	got := identify(t, NewIdentifier(), recs, nil)
	require.Len(t, got, 2)
	require.Equal(t, 0, got[0].Start)
	require.Equal(t, 3100, got[0].End)
	require.Equal(t, 0, got[0].ID)
	require.Equal(t, 60000, got[1].Start)
	require.Equal(t, 63100, got[1].End)
	require.Equal(t, 1, got[1].ID)
}

func TestIdentifierSplitsOnBarcodeAndReference(t *testing.T) {
	recs := []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", 0),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
		barcoded("r4", chr1, 3000, "AACC-1", 0),
		// Same positions, different reference.
		barcoded("r5", chr2, 0, "AACC-1", 0),
		barcoded("r6", chr2, 1000, "AACC-1", 0),
		barcoded("r7", chr2, 2000, "AACC-1", 0),
		barcoded("r8", chr2, 3000, "AACC-1", 0),
		// New barcode on the second reference.
		barcoded("r9", chr2, 0, "GGTT-1", 0),
		barcoded("r10", chr2, 1000, "GGTT-1", 0),
		barcoded("r11", chr2, 2000, "GGTT-1", 0),
		barcoded("r12", chr2, 3000, "GGTT-1", 0),
	}

	got := identify(t, NewIdentifier(), recs, nil)
	require.Len(t, got, 3)
	require.Equal(t, "chr1", got[0].Rname)
	require.Equal(t, "AACC-1", got[0].Barcode)
	require.Equal(t, "chr2", got[1].Rname)
	require.Equal(t, "AACC-1", got[1].Barcode)
	require.Equal(t, "chr2", got[2].Rname)
	require.Equal(t, "GGTT-1", got[2].Barcode)
}

func TestIdentifierCountsDistinctStarts(t *testing.T) {
	recs := []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		// Duplicate of r1: same start, same strand.
		barcoded("r2", chr1, 0, "AACC-1", 0),
		// Same start, opposite strand: counted.
		barcoded("r3", chr1, 0, "AACC-1", sam.Reverse),
		barcoded("r4", chr1, 1000, "AACC-1", 0),
		barcoded("r5", chr1, 3000, "AACC-1", 0),
	}

	got := identify(t, NewIdentifier(), recs, nil)
	require.Len(t, got, 1)
	require.Equal(t, 4, got[0].Reads)
}

func TestIdentifierFilters(t *testing.T) {
	id := NewIdentifier()
	id.MinMapq = 30

	recs := []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", 0),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
		barcoded("r4", chr1, 3000, "AACC-1", 0),

		// None of the following may contribute.
		barcoded("unmapped", chr1, 4000, "AACC-1", sam.Unmapped),
		barcoded("suppl", chr1, 4000, "AACC-1", sam.Supplementary),
		read("lowmapq", chr1, 4000, 10, 0, mustAux(bxTag, "AACC-1"), mustAux(asTag, 80), mustAux(nmTag, 1)),
		read("mismatched", chr1, 4000, 60, 0, mustAux(bxTag, "AACC-1"), mustAux(asTag, 80), mustAux(nmTag, 5)),
		read("lowscore", chr1, 4000, 60, 0, mustAux(bxTag, "AACC-1"), mustAux(asTag, 10), mustAux(nmTag, 1)),
	}

	got := identify(t, id, recs, nil)
	require.Len(t, got, 1)
	require.Equal(t, 4, got[0].Reads)
	require.Equal(t, 3100, got[0].End)
}

func TestIdentifierMinReadsAndSize(t *testing.T) {
	id := NewIdentifier()

	// Three reads only: below MinReads.
	got := identify(t, id, []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", 0),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
	}, nil)
	require.Len(t, got, 0)

	// Four reads spanning less than MinSize.
	got = identify(t, id, []*sam.Record{
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 100, "AACC-1", 0),
		barcoded("r3", chr1, 200, "AACC-1", 0),
		barcoded("r4", chr1, 300, "AACC-1", 0),
	}, nil)
	require.Len(t, got, 0)
}

func TestIdentifierBAMPassthrough(t *testing.T) {
	recs := []*sam.Record{
		read("nobx", chr1, 0, 60, 0),
		barcoded("r1", chr1, 0, "AACC-1", 0),
		barcoded("r2", chr1, 1000, "AACC-1", 0),
		barcoded("r3", chr1, 2000, "AACC-1", 0),
		barcoded("r4", chr1, 3000, "AACC-1", 0),
	}

	var w sliceWriter
	got := identify(t, NewIdentifier(), recs, &w)
	require.Len(t, got, 1)
	require.Len(t, w.recs, 5)

	require.Equal(t, "nobx", w.recs[0].Name)
	require.Nil(t, w.recs[0].AuxFields.Get(miTag))

	for _, rec := range w.recs[1:] {
		aux := rec.AuxFields.Get(miTag)
		require.NotNil(t, aux, rec.Name)
		mi, ok := auxInt(rec, miTag)
		require.True(t, ok)
		require.Equal(t, 0, mi)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		v    []float64
		want float64
	}{
		{[]float64{1}, 1},
		{[]float64{2, 1}, 1.5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{60, 60, 60, 50}, 60},
	}
	for _, test := range tests {
		if got := median(test.v); got != test.want {
			t.Errorf("unexpected median for %v: got %v, want %v", test.v, got, test.want)
		}
	}
}

func TestWriteBED(t *testing.T) {
	m := Molecule{Rname: "contigB", Start: 0, End: 2500, Barcode: "AACC-1", Reads: 12}
	var buf bytes.Buffer
	require.NoError(t, m.WriteBED(&buf))
	require.Equal(t, "contigB\t0\t2500\tAACC-1\t12\n", buf.String())
}

func TestWriteTSV(t *testing.T) {
	m := Molecule{
		Rname: "contigB", Start: 100, End: 2600, Barcode: "AACC-1", ID: 3, Reads: 12,
		MapqMedian: 59.5, ASMedian: 80, NMMedian: 1, HasAS: true, HasNM: true,
	}
	var buf bytes.Buffer
	require.NoError(t, m.WriteTSV(&buf))
	require.Equal(t, "contigB\t100\t2600\t2500\tAACC-1\t3\t12\t59.5\t80\t1\n", buf.String())

	// Missing tags are reported as NA.
	m.HasAS = false
	m.HasNM = false
	buf.Reset()
	require.NoError(t, m.WriteTSV(&buf))
	require.Equal(t, "contigB\t100\t2600\t2500\tAACC-1\t3\t12\t59.5\tNA\tNA\n", buf.String())
}

func TestReadDistParam(t *testing.T) {
	dir, err := ioutil.TempDir("", "molecule")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tigmint.params.tsv")
	err = ioutil.WriteFile(path, []byte("sample\tlr\nread_p50\t20000\nread_p90\t45000\n"), 0644)
	require.NoError(t, err)

	d, err := ReadDistParam(path)
	require.NoError(t, err)
	require.Equal(t, 20000, d)

	empty := filepath.Join(dir, "empty.tsv")
	err = ioutil.WriteFile(empty, []byte("sample\tlr\n"), 0644)
	require.NoError(t, err)
	_, err = ReadDistParam(empty)
	require.Error(t, err)

	_, err = ReadDistParam(filepath.Join(dir, "missing.tsv"))
	require.Error(t, err)
}
