// Package fasta implements the single-pass FASTA normalization pass and the
// small record helpers shared by the command-line, web and terminal front
// ends. It intentionally keeps parsing simple and conservative.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// FastaRecord represents a single FASTA record (header and sequence).
type FastaRecord struct {
	Header   string
	Sequence string
}

// Len returns the sequence length in characters.
func (r FastaRecord) Len() int { return len(r.Sequence) }

// ParseFasta reads FASTA records from r and returns them in file order.
// Lines beginning with '>' denote headers; sequence lines are concatenated
// as-is, without normalization. Content before the first header is ignored.
func ParseFasta(r io.Reader) ([]FastaRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var records []FastaRecord
	var current FastaRecord
	var seq strings.Builder
	started := false
	flush := func() {
		if started {
			current.Sequence = seq.String()
			records = append(records, current)
			seq.Reset()
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			current = FastaRecord{Header: line[1:]}
			started = true
		} else if started {
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fasta: %w", err)
	}
	flush()
	return records, nil
}

// BaseCounts holds per-base totals for a sequence.
type BaseCounts struct {
	A, C, G, T int
	Other      int
}

// GC returns the GC fraction over the counted canonical bases, 0 when none
// were counted.
func (c BaseCounts) GC() float64 {
	n := c.A + c.C + c.G + c.T
	if n == 0 {
		return 0
	}
	return float64(c.C+c.G) / float64(n)
}

// Composition tallies seq case-insensitively over the four canonical bases;
// every other character lands in Other.
func Composition(seq string) BaseCounts {
	var c BaseCounts
	for i := 0; i < len(seq); i++ {
		u, ok := baseUpper(seq[i])
		if !ok {
			c.Other++
			continue
		}
		switch u {
		case 'A':
			c.A++
		case 'C':
			c.C++
		case 'G':
			c.G++
		case 'T':
			c.T++
		}
	}
	return c
}
