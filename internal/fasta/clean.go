package fasta

import (
	"bufio"
	"fmt"
	"io"
)

// FormatError reports malformed FASTA input. Offset is the absolute
// position of the offending byte in the input stream.
type FormatError struct {
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed fasta at byte %d: %s", e.Offset, e.Msg)
}

// Stats summarizes a completed normalization pass.
type Stats struct {
	Records int
	Width   int
	Kept    int64
	Dropped int64
}

// phase identifies where the normalizer currently stands within a record.
type phase uint8

const (
	phaseInit phase = iota
	phaseHeader
	phaseHeaderBreak
	phaseMeasure
	phaseMeasureBreak
	phaseSequence
	phaseSequenceBreak
)

// machine holds the transient state of the single forward pass: the current
// phase and the few counters that phase needs. Width 0 means the output
// line width has not been derived yet; once set it never changes.
type machine struct {
	phase phase
	width int
	raw   int
	row   int

	records int
	kept    int64
	dropped int64
}

func isLineBreak(b byte) bool { return b == '\n' || b == '\r' }

// leadingSpace reports whether b is ASCII whitespace tolerated before the
// first record.
func leadingSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// baseUpper returns the uppercased byte and whether it is one of the four
// canonical nucleotide letters.
func baseUpper(b byte) (byte, bool) {
	switch b {
	case 'a', 'c', 'g', 't':
		return b - 'a' + 'A', true
	case 'A', 'C', 'G', 'T':
		return b, true
	}
	return b, false
}

// emitBase applies the canonical-base filter to one sequence byte: kept
// bytes are written uppercased, everything else is dropped.
func (m *machine) emitBase(b byte, emit func(byte) error) error {
	u, ok := baseUpper(b)
	if !ok {
		m.dropped++
		return nil
	}
	if err := emit(u); err != nil {
		return err
	}
	m.row++
	m.kept++
	return nil
}

// step feeds one input byte to the machine. off is the byte's absolute
// offset, used only in error positions. Output goes through emit.
func (m *machine) step(b byte, off int64, emit func(byte) error) error {
	switch m.phase {
	case phaseInit:
		switch {
		case b == '>':
			if err := emit('>'); err != nil {
				return err
			}
			m.records++
			m.phase = phaseHeader
		case leadingSpace(b):
			// blank lines and stray whitespace before the first record
		default:
			return &FormatError{Offset: off, Msg: "non-whitespace content before the first record"}
		}

	case phaseHeader:
		if isLineBreak(b) {
			if err := emit('\n'); err != nil {
				return err
			}
			m.phase = phaseHeaderBreak
			return nil
		}
		return emit(b)

	case phaseHeaderBreak:
		switch {
		case isLineBreak(b):
			// CRLF and blank lines collapse into one boundary
		case b == '>':
			if err := emit('>'); err != nil {
				return err
			}
			m.records++
			m.phase = phaseHeader
		default:
			m.row = 0
			if m.width == 0 {
				m.raw = 1
				m.phase = phaseMeasure
			} else {
				m.phase = phaseSequence
			}
			return m.emitBase(b, emit)
		}

	case phaseMeasure:
		switch {
		case isLineBreak(b):
			// the raw length of the first sequence line fixes the width
			// for the rest of the run
			m.width = m.raw
			if m.row == m.width {
				if err := emit('\n'); err != nil {
					return err
				}
				m.row = 0
			}
			m.phase = phaseMeasureBreak
		case b == '>':
			return &FormatError{Offset: off, Msg: "'>' encountered within a sequence"}
		default:
			m.raw++
			return m.emitBase(b, emit)
		}

	case phaseMeasureBreak, phaseSequenceBreak:
		switch {
		case isLineBreak(b):
		case b == '>':
			if m.row > 0 {
				if err := emit('\n'); err != nil {
					return err
				}
			}
			if err := emit('>'); err != nil {
				return err
			}
			m.records++
			m.row = 0
			m.phase = phaseHeader
		default:
			if m.row == m.width {
				if err := emit('\n'); err != nil {
					return err
				}
				m.row = 0
			}
			m.phase = phaseSequence
			return m.emitBase(b, emit)
		}

	case phaseSequence:
		switch {
		case isLineBreak(b):
			if m.row == m.width {
				if err := emit('\n'); err != nil {
					return err
				}
				m.row = 0
			}
			m.phase = phaseSequenceBreak
		case b == '>':
			return &FormatError{Offset: off, Msg: "'>' encountered within a sequence"}
		default:
			if m.row == m.width {
				if err := emit('\n'); err != nil {
					return err
				}
				m.row = 0
			}
			return m.emitBase(b, emit)
		}
	}
	return nil
}

// finish completes the pass at end of input. A sequence in progress always
// gets a final line terminator, even when the current output row is empty.
func (m *machine) finish(emit func(byte) error) error {
	switch m.phase {
	case phaseMeasure, phaseMeasureBreak, phaseSequence, phaseSequenceBreak:
		return emit('\n')
	}
	return nil
}

func (m *machine) stats() Stats {
	return Stats{Records: m.records, Width: m.width, Kept: m.kept, Dropped: m.dropped}
}

// Clean normalizes FASTA data from r onto w in a single forward pass:
// headers are copied verbatim, sequence bytes are uppercased and filtered
// to the four canonical bases, and sequence output is re-wrapped to the
// raw length of the first sequence line of the first record that has one.
// Line terminators (\n, \r, \r\n) are collapsed and emitted as \n.
//
// Malformed input is reported as a *FormatError; read and write failures
// carry the underlying cause. The output already written when an error
// occurs must be considered incomplete.
func Clean(r io.Reader, w io.Writer) (Stats, error) {
	var m machine
	cur := newCursor(r)
	bw := bufio.NewWriter(w)
	emit := func(b byte) error {
		if err := bw.WriteByte(b); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	for {
		b, err := cur.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return m.stats(), err
		}
		if err := m.step(b, cur.pos(), emit); err != nil {
			return m.stats(), err
		}
	}
	if err := m.finish(emit); err != nil {
		return m.stats(), err
	}
	if err := bw.Flush(); err != nil {
		return m.stats(), fmt.Errorf("write output: %w", err)
	}
	return m.stats(), nil
}
