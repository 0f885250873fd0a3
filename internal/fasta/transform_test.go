package fasta

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/transform"
)

const transformFixture = "\r>WGCaC\n\nAACCcxXAA\naacc\n.ef34\nCGG\ntgtcgcgtagcgtgatcgtgtagtcgtag\r.\r>f\nTTT"

// drive pushes input through tr in srcChunk-sized pieces with a dstChunk
// destination buffer, exercising the ErrShortDst resume path.
func drive(t *testing.T, tr transform.Transformer, input string, srcChunk, dstChunk int) string {
	t.Helper()
	src := []byte(input)
	dst := make([]byte, dstChunk)
	var out bytes.Buffer
	p := 0
	for {
		end := p + srcChunk
		if end > len(src) {
			end = len(src)
		}
		atEOF := end == len(src)
		nDst, nSrc, err := tr.Transform(dst, src[p:end], atEOF)
		out.Write(dst[:nDst])
		p += nSrc
		switch {
		case err == transform.ErrShortDst:
			continue
		case err != nil:
			t.Fatalf("Transform failed at byte %d: %v", p, err)
		case atEOF && p == len(src):
			return out.String()
		}
	}
}

func TestNormalizerMatchesClean(t *testing.T) {
	var want bytes.Buffer
	if _, err := Clean(strings.NewReader(transformFixture), &want); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	for _, chunks := range [][2]int{{1, 2}, {2, 3}, {3, 8}, {7, 16}, {len(transformFixture), 4096}} {
		var n Normalizer
		got := drive(t, &n, transformFixture, chunks[0], chunks[1])
		if got != want.String() {
			t.Fatalf("chunks %v: got %q, want %q", chunks, got, want.String())
		}
		st := n.Stats()
		if st.Records != 2 || st.Width != 9 {
			t.Fatalf("chunks %v: unexpected stats %+v", chunks, st)
		}
	}
}

func TestNormalizerReader(t *testing.T) {
	var want bytes.Buffer
	if _, err := Clean(strings.NewReader(transformFixture), &want); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	var n Normalizer
	got, err := io.ReadAll(transform.NewReader(strings.NewReader(transformFixture), &n))
	if err != nil {
		t.Fatalf("reading through the transformer failed: %v", err)
	}
	if string(got) != want.String() {
		t.Fatalf("got %q, want %q", got, want.String())
	}
}

func TestNormalizerReset(t *testing.T) {
	var n Normalizer
	first := drive(t, &n, ">a\nACGT\nAC\n", 3, 4)
	n.Reset()
	second := drive(t, &n, ">a\nACGT\nAC\n", 3, 4)
	if first != second {
		t.Fatalf("reset did not restore the initial state: %q vs %q", first, second)
	}
	if st := n.Stats(); st.Records != 1 || st.Width != 4 {
		t.Fatalf("unexpected stats after reset and reuse: %+v", st)
	}
}

func TestNormalizerFormatError(t *testing.T) {
	var n Normalizer
	_, err := io.ReadAll(transform.NewReader(strings.NewReader(">h\nAC>G\n"), &n))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, expected a *FormatError", err)
	}
	if fe.Offset != 5 {
		t.Fatalf("offset %d, want 5", fe.Offset)
	}
}
