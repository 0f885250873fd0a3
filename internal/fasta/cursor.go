package fasta

import (
	"bufio"
	"fmt"
	"io"
)

// cursor yields one byte at a time from a buffered source and tracks how
// far into the input it has read, so malformed-input errors can carry a
// position.
type cursor struct {
	br  *bufio.Reader
	off int64
}

func newCursor(r io.Reader) *cursor {
	return &cursor{br: bufio.NewReader(r)}
}

// next returns the next input byte. io.EOF marks the clean end of input;
// any other error is a read failure and aborts the run.
func (c *cursor) next() (byte, error) {
	b, err := c.br.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read input: %w", err)
	}
	c.off++
	return b, nil
}

// pos is the absolute offset of the byte most recently returned by next.
func (c *cursor) pos() int64 { return c.off - 1 }
