// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package molecule groups linked reads into molecules. Reads sharing a
// barcode that map near one another on the same reference are taken to
// derive from a single long DNA molecule, and the extent of the group
// is reported with per-molecule read statistics.
package molecule

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

var (
	bxTag = sam.Tag{'B', 'X'}
	miTag = sam.Tag{'M', 'I'}
	asTag = sam.Tag{'A', 'S'}
	nmTag = sam.Tag{'N', 'M'}
)

// Molecule is the extent on a reference sequence of a group of linked
// reads sharing a barcode.
type Molecule struct {
	Rname   string
	Start   int
	End     int
	Barcode string
	ID      int

	// Reads is the number of position-distinct reads
	// supporting the molecule.
	Reads int

	MapqMedian float64
	ASMedian   float64
	NMMedian   float64
	HasAS      bool
	HasNM      bool
}

// Size returns the molecule extent length.
func (m *Molecule) Size() int { return m.End - m.Start }

// WriteBED writes m to w as a five column BED line.
func (m *Molecule) WriteBED(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\n",
		m.Rname, m.Start, m.End, m.Barcode, m.Reads)
	return err
}

// TSVHeader is the column header line for WriteTSV output.
const TSVHeader = "Rname\tStart\tEnd\tSize\tBX\tMI\tReads\tMapq_median\tAS_median\tNM_median"

// WriteTSV writes m to w as a TSV line following TSVHeader. Medians of
// tags absent from every read of the molecule are written as NA.
func (m *Molecule) WriteTSV(w io.Writer) error {
	as := "NA"
	if m.HasAS {
		as = formatMedian(m.ASMedian)
	}
	nm := "NA"
	if m.HasNM {
		nm = formatMedian(m.NMMedian)
	}
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%d\t%d\t%s\t%s\t%s\n",
		m.Rname, m.Start, m.End, m.Size(), m.Barcode, m.ID, m.Reads,
		formatMedian(m.MapqMedian), as, nm)
	return err
}

func formatMedian(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// RecordReader is the stream of alignment records consumed by an
// Identifier. Both sam.Reader and bam.Reader satisfy it.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// RecordWriter receives alignment records annotated with MI tags.
// bam.Writer satisfies it.
type RecordWriter interface {
	Write(*sam.Record) error
}

// Identifier groups alignment records into molecules. The input must
// be sorted by BX tag and then by position.
type Identifier struct {
	// MaxDist is the maximum distance between the starts of
	// adjacent reads in the same molecule.
	MaxDist int
	// MinReads is the minimum number of position-distinct reads
	// required to report a molecule.
	MinReads int
	// MinMapq is the minimum mapping quality of considered reads.
	MinMapq int
	// MinASRatio is the minimum ratio of the AS tag over the
	// aligned query length.
	MinASRatio float64
	// MaxNM is the edit distance at and above which a read
	// is excluded.
	MaxNM int
	// MinSize is the minimum reported molecule extent length.
	MinSize int

	nextID int
}

// NewIdentifier returns an Identifier with the default parameters.
func NewIdentifier() *Identifier {
	return &Identifier{
		MaxDist:    50000,
		MinReads:   4,
		MinMapq:    0,
		MinASRatio: 0.65,
		MaxNM:      5,
		MinSize:    2000,
	}
}

// Run streams records from r, calling emit for each identified molecule
// in input order. If bamOut is not nil, every read contributing to a
// molecule is written to it with an MI tag holding the molecule ID, and
// reads lacking a BX tag are passed through unchanged.
func (id *Identifier) Run(r RecordReader, emit func(*Molecule) error, bamOut RecordWriter) error {
	var (
		group   []*sam.Record
		barcode string
		ref     *sam.Reference
	)
	for {
		rec, err := r.Read()
		if err != nil {
			if err != io.EOF {
				return err
			}
			break
		}

		if rec.Flags&sam.Unmapped != 0 || rec.Flags&sam.Supplementary != 0 {
			continue
		}
		if int(rec.MapQ) < id.MinMapq {
			continue
		}
		if nm, ok := auxInt(rec, nmTag); ok && nm >= id.MaxNM {
			continue
		}
		if as, ok := auxInt(rec, asTag); ok && float64(as) < id.MinASRatio*float64(rec.Seq.Length) {
			continue
		}

		bx, ok := auxString(rec, bxTag)
		if !ok {
			if bamOut != nil {
				err = bamOut.Write(rec)
				if err != nil {
					return err
				}
			}
			continue
		}

		if len(group) != 0 && (bx != barcode || rec.Ref != ref) {
			err = id.flush(group, barcode, emit, bamOut)
			if err != nil {
				return err
			}
			group = group[:0]
		}
		group = append(group, rec)
		barcode = bx
		ref = rec.Ref
	}
	if len(group) != 0 {
		return id.flush(group, barcode, emit, bamOut)
	}
	return nil
}

// flush splits a (barcode, reference) read group into runs separated by
// start position gaps greater than MaxDist and reports each qualifying
// run as a molecule.
func (id *Identifier) flush(group []*sam.Record, barcode string, emit func(*Molecule) error, bamOut RecordWriter) error {
	sort.SliceStable(group, func(i, j int) bool { return group[i].Start() < group[j].Start() })

	runStart := 0
	for i := 1; i <= len(group); i++ {
		if i < len(group) && group[i].Start()-group[i-1].Start() <= id.MaxDist {
			continue
		}
		err := id.report(group[runStart:i], barcode, emit, bamOut)
		if err != nil {
			return err
		}
		runStart = i
	}
	return nil
}

func (id *Identifier) report(run []*sam.Record, barcode string, emit func(*Molecule) error, bamOut RecordWriter) error {
	var (
		mapqs, scores, nms []float64

		count    int
		lastFwd  = -1
		lastRev  = -1
		lastRead *sam.Record
	)
	for _, rec := range run {
		mapqs = append(mapqs, float64(rec.MapQ))
		if as, ok := auxInt(rec, asTag); ok {
			scores = append(scores, float64(as))
		}
		if nm, ok := auxInt(rec, nmTag); ok {
			nms = append(nms, float64(nm))
		}

		// Reads starting at the same position on the same strand
		// are counted once.
		last := &lastFwd
		if rec.Flags&sam.Reverse != 0 {
			last = &lastRev
		}
		if *last != rec.Start() {
			count++
		}
		*last = rec.Start()
		lastRead = rec

		if bamOut != nil {
			err := setAuxInt(rec, miTag, id.nextID)
			if err != nil {
				return err
			}
			err = bamOut.Write(rec)
			if err != nil {
				return err
			}
		}
	}

	m := &Molecule{
		Rname:   run[0].Ref.Name(),
		Start:   run[0].Start(),
		End:     lastRead.End(),
		Barcode: barcode,
		ID:      id.nextID,
		Reads:   count,

		MapqMedian: median(mapqs),
		HasAS:      len(scores) != 0,
		HasNM:      len(nms) != 0,
	}
	if m.HasAS {
		m.ASMedian = median(scores)
	}
	if m.HasNM {
		m.NMMedian = median(nms)
	}
	if m.Reads < id.MinReads || m.Size() < id.MinSize {
		return nil
	}
	id.nextID++
	return emit(m)
}

// median returns the median of v, averaging the two central values for
// even lengths. v is reordered.
func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

func auxString(r *sam.Record, tag sam.Tag) (string, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}

func auxInt(r *sam.Record, tag sam.Tag) (int, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func setAuxInt(r *sam.Record, tag sam.Tag, v int) error {
	for i, aux := range r.AuxFields {
		if aux.Tag() == tag {
			r.AuxFields = append(r.AuxFields[:i], r.AuxFields[i+1:]...)
			break
		}
	}
	aux, err := sam.NewAux(tag, v)
	if err != nil {
		return err
	}
	r.AuxFields = append(r.AuxFields, aux)
	return nil
}

// ReadDistParam returns the precomputed maximum read distance from a
// tigmint parameter TSV, taken from the first row whose key has the
// read_p prefix.
func ReadDistParam(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), "\t")
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "read_p") {
			continue
		}
		return strconv.Atoi(fields[1])
	}
	err = sc.Err()
	if err != nil {
		return 0, err
	}
	return 0, errors.New("molecule: no read distance parameter found")
}
