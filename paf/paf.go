// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package paf provides reading of minimap2 PAF pairwise mapping records.
package paf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/biogo/seq"
)

// ErrMalformedRecord is the base error for PAF lines that cannot be
// interpreted as a mapping record.
var ErrMalformedRecord = errors.New("paf: malformed record")

const (
	qnameField = iota
	qlenField
	qstartField
	qendField
	strandField
	tnameField
	tlenField
	tstartField
	tendField
	matchesField

	numRequiredFields

	alnlenField = numRequiredFields
	mapqField   = alnlenField + 1
)

// Record is a PAF mapping record. Coordinates are 0-based half-open
// on the forward strand of both sequences.
type Record struct {
	QName  string
	QLen   int
	QStart int
	QEnd   int

	Strand seq.Strand

	TName  string
	TLen   int
	TStart int
	TEnd   int

	// Matches is the number of matching bases, or the
	// number of shared minimizers for approximate mapping.
	Matches int

	// AlnLen and MapQ are filled when the optional eleventh
	// and twelfth columns are present.
	AlnLen int
	MapQ   int
}

// Extent returns the length of the mapped extent on the target.
func (r *Record) Extent() int { return r.TEnd - r.TStart }

// Parse returns the Record represented by a single PAF line. Lines with
// fewer than ten fields, a non-integer value in an integer field or an
// unknown strand sigil return an error wrapping ErrMalformedRecord.
func Parse(line string) (*Record, error) {
	fields := strings.Split(strings.TrimSpace(line), "\t")
	if len(fields) < numRequiredFields {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(fields))
	}
	r := Record{
		QName: fields[qnameField],
		TName: fields[tnameField],
	}
	var err error
	for _, v := range []struct {
		dst   *int
		field int
	}{
		{&r.QLen, qlenField},
		{&r.QStart, qstartField},
		{&r.QEnd, qendField},
		{&r.TLen, tlenField},
		{&r.TStart, tstartField},
		{&r.TEnd, tendField},
		{&r.Matches, matchesField},
	} {
		*v.dst, err = strconv.Atoi(fields[v.field])
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %q", ErrMalformedRecord, v.field+1, fields[v.field])
		}
	}
	switch fields[strandField] {
	case "+":
		r.Strand = seq.Plus
	case "-":
		r.Strand = seq.Minus
	default:
		return nil, fmt.Errorf("%w: bad strand: %q", ErrMalformedRecord, fields[strandField])
	}
	if len(fields) > alnlenField {
		r.AlnLen, err = strconv.Atoi(fields[alnlenField])
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %q", ErrMalformedRecord, alnlenField+1, fields[alnlenField])
		}
	}
	if len(fields) > mapqField {
		r.MapQ, err = strconv.Atoi(fields[mapqField])
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %q", ErrMalformedRecord, mapqField+1, fields[mapqField])
		}
	}
	return &r, nil
}

// Reader reads PAF records from a stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{sc: bufio.NewScanner(r)}
}

// Read returns the next record in the stream. It returns io.EOF at the
// end of input and a line-annotated parse error for any line that is
// not a valid record.
func (r *Reader) Read() (*Record, error) {
	if !r.sc.Scan() {
		err := r.sc.Err()
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	r.line++
	rec, err := Parse(r.sc.Text())
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	return rec, nil
}
