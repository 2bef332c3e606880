// Copyright ©2021 the tigmint authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grosa1/tigmint/paf"
)

func TestFilterExtents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		min   int
		want  string
	}{
		{
			name:  "qualifying row",
			input: "readA\t500\t0\t480\t+\tcontigB\t10000\t0\t2500\t80\t75\t60\n",
			min:   2000,
			want:  "contigB\t0\t2500\treadA\t80\n",
		},
		{
			name:  "below threshold",
			input: "readA\t500\t0\t480\t+\tcontigB\t10000\t0\t2500\t80\t75\t60\n",
			min:   3000,
			want:  "",
		},
		{
			name: "mixed rows preserve order",
			input: "r1\t500\t0\t480\t+\tc1\t10000\t0\t2500\t80\t75\t60\n" +
				"r2\t500\t0\t480\t+\tc2\t10000\t0\t1000\t40\t45\t60\n" +
				"r3\t500\t0\t480\t-\tc1\t10000\t5000\t9000\t90\t95\t60\n",
			min: 2000,
			want: "c1\t0\t2500\tr1\t80\n" +
				"c1\t5000\t9000\tr3\t90\n",
		},
		{
			name:  "boundary is inclusive",
			input: "r1\t500\t0\t480\t+\tc1\t10000\t100\t2100\t80\t75\t60\n",
			min:   2000,
			want:  "c1\t100\t2100\tr1\t80\n",
		},
		{
			name:  "empty input",
			input: "",
			min:   2000,
			want:  "",
		},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		err := filterExtents(strings.NewReader(test.input), &buf, test.min)
		assert.NoError(t, err, test.name)
		assert.Equal(t, test.want, buf.String(), test.name)

		// The filter is a pure function of input and threshold.
		var again bytes.Buffer
		err = filterExtents(strings.NewReader(test.input), &again, test.min)
		assert.NoError(t, err, test.name)
		assert.Equal(t, buf.String(), again.String(), test.name)
	}
}

func TestFilterExtentsMalformed(t *testing.T) {
	// A malformed row aborts the run; rows already seen remain written.
	const input = "r1\t500\t0\t480\t+\tc1\t10000\t0\t2500\t80\t75\t60\n" +
		"r2\t500\t0\t480\t+\tc2\n" +
		"r3\t500\t0\t480\t+\tc3\t10000\t0\t2500\t80\t75\t60\n"

	var buf bytes.Buffer
	err := filterExtents(strings.NewReader(input), &buf, 2000)
	if !errors.Is(err, paf.ErrMalformedRecord) {
		t.Fatalf("expected malformed record error, got: %v", err)
	}
	assert.Equal(t, "c1\t0\t2500\tr1\t80\n", buf.String())
}
