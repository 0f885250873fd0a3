package fasta

import (
	"golang.org/x/text/transform"
)

// Normalizer applies the same normalization as Clean through the
// transform.Transformer interface, so it can sit in a transform.NewReader
// or transform.NewWriter pipeline. The zero value is ready to use; a
// Normalizer must not be used for more than one stream without Reset.
type Normalizer struct {
	m   machine
	off int64
}

// Transform implements transform.Transformer. A single input byte expands
// to at most two output bytes, so the loop asks for that much headroom and
// reports ErrShortDst with the progress made so far.
func (n *Normalizer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	emit := func(b byte) error {
		dst[nDst] = b
		nDst++
		return nil
	}
	for nSrc < len(src) {
		if len(dst)-nDst < 2 {
			return nDst, nSrc, transform.ErrShortDst
		}
		if err := n.m.step(src[nSrc], n.off, emit); err != nil {
			return nDst, nSrc, err
		}
		n.off++
		nSrc++
	}
	if atEOF {
		if len(dst)-nDst < 1 {
			return nDst, nSrc, transform.ErrShortDst
		}
		if err := n.m.finish(emit); err != nil {
			return nDst, nSrc, err
		}
	}
	return nDst, nSrc, nil
}

// Reset implements transform.Transformer, restoring the initial state so
// the Normalizer can process a new stream.
func (n *Normalizer) Reset() {
	*n = Normalizer{}
}

// Stats reports the counters accumulated so far. It is meaningful once the
// stream has been fully transformed.
func (n *Normalizer) Stats() Stats {
	return n.m.stats()
}
