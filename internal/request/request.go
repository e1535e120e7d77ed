package request

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/xaitan80/httpingest/internal/form"
	"github.com/xaitan80/httpingest/internal/headers"
	"github.com/xaitan80/httpingest/internal/multipart"
	"github.com/xaitan80/httpingest/internal/protocol"
)

const boundaryStart = "boundary="

// Request is a fully parsed request. It is only handed out once every
// parsing step succeeded and must be treated as read-only.
type Request struct {
	Status         Status
	Headers        *headers.Headers
	Cookies        map[string]form.Cookie
	GetParameters  map[string]string
	PostParameters map[string]string
	UploadedFiles  []multipart.UploadedFile

	RemoteAddr string
	RemotePort int
	LocalAddr  string
	LocalPort  int
	Scheme     string
	Secure     bool
}

// Method returns the upper-cased request method.
func (r *Request) Method() string { return r.Status.Method }

// Cookie looks a cookie up by name.
func (r *Request) Cookie(name string) (form.Cookie, bool) {
	c, ok := r.Cookies[name]
	return c, ok
}

// UploadedFile returns the first uploaded file sent under field.
func (r *Request) UploadedFile(field string) (multipart.UploadedFile, bool) {
	for _, f := range r.UploadedFiles {
		if f.FieldName == field {
			return f, true
		}
	}
	return multipart.UploadedFile{}, false
}

// RemoveUploadedFiles deletes the temporary files backing the uploads.
func (r *Request) RemoveUploadedFiles() error {
	return multipart.RemoveAll(r.UploadedFiles)
}

// UploadError is returned when body parsing failed after some files
// were already written. The caller owns Files and should remove them.
type UploadError struct {
	Err   error
	Files []multipart.UploadedFile
}

func (e *UploadError) Error() string { return e.Err.Error() }

func (e *UploadError) Unwrap() error { return e.Err }

// ByteCounter receives the number of bytes each parse consumed.
type ByteCounter interface {
	Add(delta int64)
}

// Config holds the limits the parser enforces. Zero fields take defaults.
type Config struct {
	MaxURILength        int
	MaxStatusLineLength int // derived from MaxURILength when zero
	MaxHeaderBytes      int
	MaxPartHeaderBytes  int
	MaxFormBytes        int64 // plain POST bodies and multipart text fields
	TempDir             string
	Counter             ByteCounter
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxURILength <= 0 {
		c.MaxURILength = protocol.DefaultMaxURILength
	}
	if c.MaxStatusLineLength <= 0 {
		c.MaxStatusLineLength = protocol.MaxStatusLineLength(c.MaxURILength)
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 16 << 10
	}
	if c.MaxPartHeaderBytes <= 0 {
		c.MaxPartHeaderBytes = multipart.DefaultMaxHeaderBytes
	}
	if c.MaxFormBytes <= 0 {
		c.MaxFormBytes = 2 << 20
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// Parser builds requests from connections.
type Parser struct {
	cfg Config
}

// NewParser returns a Parser enforcing cfg.
func NewParser(cfg Config) *Parser {
	return &Parser{cfg: cfg.withDefaults()}
}

// RequestFromReader parses one request from reader with the default limits.
func RequestFromReader(reader io.Reader) (*Request, error) {
	return NewParser(Config{}).Parse(reader)
}

// Parse reads one request from conn: status line, headers, then the
// body of a POST. When conn is a net.Conn its addresses are recorded.
// On any failure no request is returned.
func (p *Parser) Parse(conn io.Reader) (*Request, error) {
	lr := newLineReader(conn)
	if p.cfg.Counter != nil {
		defer func() { p.cfg.Counter.Add(lr.n) }()
	}

	// The order matters
	line, err := lr.readStatusLine(p.cfg.MaxStatusLineLength)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatusLine(line)
	if err != nil {
		return nil, err
	}
	if excess := len(status.URI) - p.cfg.MaxURILength; excess > 0 {
		return nil, protocol.URITooLong(excess)
	}

	r := &Request{
		Status:         status,
		Cookies:        make(map[string]form.Cookie),
		PostParameters: make(map[string]string),
	}
	assignSocketMetadata(conn, r)
	r.GetParameters = form.ParseQuery(status.QueryString)

	block, err := lr.readHeaderBlock(p.cfg.MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	if r.Headers, err = headers.Parse(block); err != nil {
		return nil, err
	}
	if v, ok := r.Headers.Lookup(headers.Cookie); ok {
		r.Cookies = form.ParseCookies(v)
	}

	if r.Status.Method == protocol.MethodPost {
		if err := p.readPostBody(lr, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// readPostBody decodes the body into post parameters and uploads.
// A missing, invalid or non-positive Content-Length means no body.
func (p *Parser) readPostBody(lr *lineReader, r *Request) error {
	length := contentLength(r.Headers)
	if length < 1 {
		return nil
	}
	ct := r.Headers.Get(headers.ContentType)
	if strings.HasPrefix(strings.ToLower(ct), "multipart/form-data") {
		boundary := boundaryOf(ct)
		if boundary == "" {
			return nil
		}
		mr := multipart.NewReader(lr, length, boundary)
		mr.SetMaxHeaderBytes(p.cfg.MaxPartHeaderBytes)
		h := &multipart.Handler{TempDir: p.cfg.TempDir, MaxFieldBytes: p.cfg.MaxFormBytes}
		res, err := h.Handle(mr)
		if err != nil {
			if len(res.Files) > 0 {
				return &UploadError{Err: err, Files: res.Files}
			}
			return err
		}
		r.PostParameters = res.Fields
		r.UploadedFiles = res.Files
		return nil
	}

	if length > p.cfg.MaxFormBytes {
		return protocol.Errorf(protocol.ErrBodyTooLarge, "content length %d exceeds %d", length, p.cfg.MaxFormBytes)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(lr, body); err != nil {
		return unexpectedEOF(err, 1)
	}
	r.PostParameters = form.ParseQuery(string(body))
	return nil
}

func contentLength(h *headers.Headers) int64 {
	v, ok := h.Lookup(headers.ContentLength)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// boundaryOf returns everything after "boundary=" verbatim; quotes and
// any trailing parameters are not stripped.
func boundaryOf(contentType string) string {
	for i := 0; i+len(boundaryStart) <= len(contentType); i++ {
		if strings.EqualFold(contentType[i:i+len(boundaryStart)], boundaryStart) {
			return contentType[i+len(boundaryStart):]
		}
	}
	return ""
}

func assignSocketMetadata(conn io.Reader, r *Request) {
	r.Scheme = "http"
	if _, ok := conn.(interface{ ConnectionState() tls.ConnectionState }); ok {
		r.Scheme = "https"
		r.Secure = true
	}
	c, ok := conn.(interface {
		LocalAddr() net.Addr
		RemoteAddr() net.Addr
	})
	if !ok {
		return
	}
	r.RemoteAddr, r.RemotePort = splitAddr(c.RemoteAddr())
	r.LocalAddr, r.LocalPort = splitAddr(c.LocalAddr())
}

func splitAddr(a net.Addr) (string, int) {
	if a == nil {
		return "", 0
	}
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	n, _ := strconv.Atoi(port)
	return host, n
}

// FailedUploads returns the files a failed Parse left behind, if any.
func FailedUploads(err error) []multipart.UploadedFile {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Files
	}
	return nil
}
