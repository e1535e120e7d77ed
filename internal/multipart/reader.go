// Package multipart streams multipart/form-data bodies off a connection.
//
// A Reader yields parts one at a time. Each Part is an io.Reader over
// that part's body, reading straight from the connection up to the next
// boundary; nothing is buffered beyond the bytes of a partial boundary
// match. Parts must be consumed in order: NextPart discards whatever
// the previous part left unread.
package multipart

import (
	"errors"
	"io"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// DefaultMaxHeaderBytes bounds the header block of a single part.
const DefaultMaxHeaderBytes = 8 << 10

var errBodyExhausted = protocol.Malformed("declared body length exhausted before closing boundary")

// boundedReader stops after n bytes, the declared Content-Length.
type boundedReader struct {
	r io.ByteReader
	n int64
}

func (b *boundedReader) ReadByte() (byte, error) {
	if b.n <= 0 {
		return 0, errBodyExhausted
	}
	c, err := b.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	b.n--
	return c, nil
}

// Reader is a lazy, non-restartable sequence of parts.
type Reader struct {
	src            *boundedReader
	delim          []byte // "\n--" + boundary
	fail           []int  // KMP failure table for delim
	maxHeaderBytes int

	cur     *Part
	started bool
	done    bool
	err     error
}

// NewReader reads a multipart body of length bytes from r, split on
// boundary. The boundary is used verbatim.
func NewReader(r io.ByteReader, length int64, boundary string) *Reader {
	delim := []byte("\n--" + boundary)
	return &Reader{
		src:            &boundedReader{r: r, n: length},
		delim:          delim,
		fail:           failureTable(delim),
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
}

// SetMaxHeaderBytes changes the bound on a single part's header block.
func (r *Reader) SetMaxHeaderBytes(n int) {
	if n > 0 {
		r.maxHeaderBytes = n
	}
}

// Remaining returns how many bytes of the declared length are unread.
func (r *Reader) Remaining() int64 { return r.src.n }

// NextPart advances to the next part. It returns io.EOF after the
// closing boundary. Once it fails, every later call returns the same error.
func (r *Reader) NextPart() (*Part, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if r.cur != nil {
		if _, err := io.Copy(io.Discard, r.cur); err != nil {
			return nil, r.setErr(err)
		}
		r.cur = nil
	} else if !r.started {
		r.started = true
		// The body opens with "--boundary", i.e. the delimiter without
		// its leading LF. Anything before it is preamble.
		preamble := &Part{r: r, k: 1}
		if _, err := io.Copy(io.Discard, preamble); err != nil {
			return nil, r.setErr(err)
		}
	}

	last, err := r.readDelimiterTail()
	if err != nil {
		return nil, r.setErr(err)
	}
	if last {
		r.done = true
		return nil, io.EOF
	}

	block, err := r.readHeaderBlock()
	if err != nil {
		return nil, r.setErr(err)
	}
	hdr, err := ParsePartHeaders(block)
	if err != nil {
		return nil, r.setErr(err)
	}
	r.cur = &Part{Headers: hdr, r: r}
	return r.cur, nil
}

func (r *Reader) setErr(err error) error {
	r.err = err
	return err
}

// readDelimiterTail consumes what follows a boundary: "--" closes the
// body, otherwise optional whitespace and a line break open a part.
func (r *Reader) readDelimiterTail() (bool, error) {
	c, err := r.src.ReadByte()
	if err != nil {
		return false, err
	}
	if c == '-' {
		if c, err = r.src.ReadByte(); err != nil {
			return false, err
		}
		if c != '-' {
			return false, protocol.Malformed("unexpected %q after boundary", c)
		}
		return true, nil
	}
	for c == ' ' || c == '\t' {
		if c, err = r.src.ReadByte(); err != nil {
			return false, err
		}
	}
	if c == '\r' {
		if c, err = r.src.ReadByte(); err != nil {
			return false, err
		}
	}
	if c != '\n' {
		return false, protocol.Malformed("unexpected %q after boundary", c)
	}
	return false, nil
}

// readHeaderBlock reads part header lines up to the first empty line.
// The returned block keeps LF line ends and excludes the empty line.
func (r *Reader) readHeaderBlock() (string, error) {
	buf := make([]byte, 0, 128)
	lineStart := 0
	for {
		c, err := r.src.ReadByte()
		if err != nil {
			return "", err
		}
		if c == '\n' {
			line := buf[lineStart:]
			if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
				return string(buf[:lineStart]), nil
			}
			buf = append(buf, '\n')
			lineStart = len(buf)
			continue
		}
		buf = append(buf, c)
		if len(buf) > r.maxHeaderBytes {
			return "", protocol.Errorf(protocol.ErrHeadersTooLarge, "part headers exceed %d bytes", r.maxHeaderBytes)
		}
	}
}

// Part is one part of the body. Read returns io.EOF at the next boundary.
type Part struct {
	Headers PartHeaders

	r       *Reader
	k       int  // delimiter bytes matched so far
	cr      bool // a CR is held back: it belongs to the delimiter if one follows
	buf     []byte
	pending []byte
	eof     bool
	err     error
}

func (p *Part) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for len(p.pending) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		if p.eof {
			return 0, io.EOF
		}
		if err := p.fill(len(b)); err != nil {
			p.err = err
			return 0, err
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// fill scans the connection until want body bytes are known not to
// belong to a delimiter, or the delimiter has been consumed. A partial
// delimiter match and a held-back CR carry over to the next call.
func (p *Part) fill(want int) error {
	d, fail := p.r.delim, p.r.fail
	p.buf = p.buf[:0]
	for len(p.buf) < want && !p.eof {
		c, err := p.r.src.ReadByte()
		if err != nil {
			if len(p.buf) > 0 {
				// hand out what is known good; the error repeats on the next call
				p.pending = p.buf
				p.err = err
				return nil
			}
			return err
		}
		for p.k > 0 && d[p.k] != c {
			p.emit(d[:p.k-fail[p.k-1]])
			p.k = fail[p.k-1]
		}
		if d[p.k] == c {
			if p.k++; p.k == len(d) {
				p.eof = true
				p.cr = false // CRLF before the boundary belongs to it
			}
			continue
		}
		p.emitByte(c)
	}
	p.pending = p.buf
	return nil
}

func (p *Part) emit(bs []byte) {
	for _, c := range bs {
		p.emitByte(c)
	}
}

func (p *Part) emitByte(c byte) {
	if p.cr {
		p.buf = append(p.buf, '\r')
		p.cr = false
	}
	if c == '\r' {
		p.cr = true
		return
	}
	p.buf = append(p.buf, c)
}

// failureTable builds the KMP prefix function of pattern.
func failureTable(pattern []byte) []int {
	fail := make([]int, len(pattern))
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = fail[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}
