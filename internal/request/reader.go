package request

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/xaitan80/httpingest/internal/protocol"
)

var errLineTooLong = errors.New("line too long")

type byteReader interface {
	io.Reader
	io.ByteReader
}

// lineReader consumes the connection strictly forward, one byte at a
// time, and counts what it consumed. A connection that cannot read
// single bytes is wrapped in a bufio.Reader owned by this request.
type lineReader struct {
	r byteReader
	n int64
}

func newLineReader(r io.Reader) *lineReader {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &lineReader{r: br}
}

func (lr *lineReader) ReadByte() (byte, error) {
	c, err := lr.r.ReadByte()
	if err == nil {
		lr.n++
	}
	return c, err
}

func (lr *lineReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	lr.n += int64(n)
	return n, err
}

// readLine reads up to '\n' and returns the line without it. visit, if
// set, sees the accumulated line after every byte and may abort the
// read. A line longer than max fails with errLineTooLong.
func (lr *lineReader) readLine(max int, visit func(line []byte) error) ([]byte, error) {
	buf := make([]byte, 0, 64)
	for {
		c, err := lr.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err, len(buf))
		}
		if c == '\n' {
			return buf, nil
		}
		buf = append(buf, c)
		if visit != nil {
			if err := visit(buf); err != nil {
				return nil, err
			}
		}
		if len(buf) > max {
			return nil, errLineTooLong
		}
	}
}

// readHeaderBlock reads up to and excluding the header terminator.
// An empty first line means the request has no headers; the returned
// block is then that bare line break.
func (lr *lineReader) readHeaderBlock(max int) (string, error) {
	buf := make([]byte, 0, 256)
	for {
		c, err := lr.ReadByte()
		if err != nil {
			// the status line was read, so the request is cut short
			return "", unexpectedEOF(err, 1)
		}
		buf = append(buf, c)
		if c == '\n' {
			switch {
			case len(buf) == 1 || (len(buf) == 2 && buf[0] == '\r'):
				return string(buf), nil
			case bytes.HasSuffix(buf, []byte(protocol.HeadersTerminator)):
				return string(buf[:len(buf)-len(protocol.HeadersTerminator)]), nil
			case bytes.HasSuffix(buf, []byte("\n\n")):
				return string(buf[:len(buf)-2]), nil
			}
		}
		if len(buf) > max {
			return "", protocol.Errorf(protocol.ErrHeadersTooLarge, "exceeded max size of %d", max)
		}
	}
}

// unexpectedEOF turns io.EOF into io.ErrUnexpectedEOF once any part of
// the request has been read.
func unexpectedEOF(err error, consumed int) error {
	if errors.Is(err, io.EOF) && consumed > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}
