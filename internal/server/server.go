package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/xaitan80/httpingest/internal/headers"
	"github.com/xaitan80/httpingest/internal/multipart"
	"github.com/xaitan80/httpingest/internal/protocol"
	"github.com/xaitan80/httpingest/internal/request"
	"github.com/xaitan80/httpingest/internal/response"
)

// Config configures a Server. Zero values are usable.
type Config struct {
	Addr        string        // listen address, ":42069" style
	ReadTimeout time.Duration // whole-request read deadline; zero disables it
	Request     request.Config
	Logger      zerolog.Logger
}

// Stats are process-wide counters for one Server.
type Stats struct {
	Requests          int64
	Failures          int64
	BytesReceived     int64
	ActiveConnections int
}

type Server struct {
	ln     net.Listener
	closed atomic.Bool
	h      Handler
	cfg    Config
	parser *request.Parser
	log    zerolog.Logger
	wg     sync.WaitGroup

	conns    *xsync.MapOf[net.Conn, struct{}]
	requests *xsync.Counter
	failures *xsync.Counter
	bytesIn  *xsync.Counter
}

// Serve starts a TCP listener on the given port and begins accepting
// connections in a background goroutine.
func Serve(port int, h Handler) (*Server, error) {
	return Listen(Config{Addr: fmt.Sprintf(":%d", port), Logger: zerolog.Nop()}, h)
}

// Listen starts a server with cfg and begins accepting connections in a
// background goroutine.
func Listen(cfg Config, h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:       ln,
		h:        h,
		cfg:      cfg,
		log:      cfg.Logger,
		conns:    xsync.NewMapOf[net.Conn, struct{}](),
		requests: xsync.NewCounter(),
		failures: xsync.NewCounter(),
		bytesIn:  xsync.NewCounter(),
	}
	rc := cfg.Request
	rc.Counter = s.bytesIn
	s.parser = request.NewParser(rc)
	s.wg.Add(1)
	go s.listen()
	return s, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Requests:          s.requests.Value(),
		Failures:          s.failures.Value(),
		BytesReceived:     s.bytesIn.Value(),
		ActiveConnections: s.conns.Size(),
	}
}

// Close stops the server, closes the listener and every open
// connection, and waits for connection handlers to return.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.conns.Range(func(c net.Conn, _ struct{}) bool {
		_ = c.Close()
		return true
	})
	s.wg.Wait()
	return err
}

// listen accepts connections until the server is closed, handling each in a goroutine.
func (s *Server) listen() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			// Ignore transient errors and continue accepting
			s.log.Debug().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// handle parses one request off conn, dispatches it and closes conn.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)
	if s.closed.Load() {
		return
	}

	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	r, err := s.parser.Parse(conn)
	if err != nil {
		s.failures.Inc()
		if files := request.FailedUploads(err); len(files) > 0 {
			if rerr := multipart.RemoveAll(files); rerr != nil {
				log.Error().Err(rerr).Msg("removing partial uploads")
			}
		}
		status, ok := statusFor(err)
		if !ok {
			if errors.Is(err, io.EOF) {
				log.Debug().Msg("connection closed before a request was sent")
			} else {
				log.Warn().Err(err).Msg("reading request")
			}
			return
		}
		log.Warn().Err(err).Int("status", int(status)).Msg("rejected request")
		_ = writeHandlerError(response.NewWriter(conn), &HandlerError{
			Status: status,
			Body:   []byte(err.Error() + "\n"),
		})
		closeWriteAndWait(conn)
		return
	}
	s.requests.Inc()
	status := s.dispatch(r, response.NewWriter(conn))
	if err := r.RemoveUploadedFiles(); err != nil {
		log.Error().Err(err).Msg("removing uploads")
	}
	log.Info().
		Str("method", r.Method()).
		Str("uri", r.Status.URI).
		Int("status", int(status)).
		Int("uploads", len(r.UploadedFiles)).
		Msg("served request")
	closeWriteAndWait(conn)
}

// dispatch runs the handler and makes sure a response was written.
func (s *Server) dispatch(r *request.Request, rw *response.Writer) response.StatusCode {
	status := response.StatusOK
	if s.h != nil {
		if herr := s.h(r, rw); herr != nil {
			status = herr.Status
			// If handler returned an error and hasn't written anything, default error output
			if !rw.WroteAnything() {
				_ = writeHandlerError(rw, herr)
			}
		}
	}
	// If handler didn't write anything, write default empty 200
	if !rw.WroteAnything() {
		_ = rw.WriteStatusLine(response.StatusOK)
		_ = rw.WriteHeaders(response.GetDefaultHeaders(0))
	}
	return status
}

// closeWriteAndWait half-closes conn and drains what the client still
// sends, so that closing with unread input does not reset the
// connection before the client has read the response.
func closeWriteAndWait(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcp.CloseWrite()
	_ = tcp.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(tcp, maxLingerBytes))
}

const (
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 256 << 10
)

// statusFor maps a parse failure to its response status. Transport
// errors have none: the connection is just closed.
func statusFor(err error) (response.StatusCode, bool) {
	switch {
	case errors.Is(err, protocol.ErrUnsupportedMethod):
		return response.StatusNotImplemented, true
	case errors.Is(err, protocol.ErrURITooLong), errors.Is(err, protocol.ErrStatusLineTooLong):
		return response.StatusURITooLong, true
	case errors.Is(err, protocol.ErrHeadersTooLarge):
		return response.StatusHeaderFieldsTooLarge, true
	case errors.Is(err, protocol.ErrBodyTooLarge):
		return response.StatusRequestEntityTooLarge, true
	case errors.Is(err, protocol.ErrMalformedInput):
		return response.StatusBadRequest, true
	}
	return 0, false
}

// Handler is the function signature used to handle requests.
type Handler func(r *request.Request, w *response.Writer) *HandlerError

// HandlerError represents an error returned from a Handler.
type HandlerError struct {
	Status  response.StatusCode
	Headers *headers.Headers
	Body    []byte
}

// writeHandlerError writes a standardized error response.
func writeHandlerError(w *response.Writer, he *HandlerError) error {
	if he == nil {
		return nil
	}
	if err := w.WriteStatusLine(he.Status); err != nil {
		return err
	}
	body := he.Body
	hdrs := he.Headers
	if hdrs == nil {
		hdrs = response.GetDefaultHeaders(len(body))
	} else {
		hdrs.Set(headers.ContentLength, strconv.Itoa(len(body)))
		if !hdrs.Has(headers.Connection) {
			hdrs.Set(headers.Connection, "close")
		}
		if !hdrs.Has(headers.ContentType) {
			hdrs.Set(headers.ContentType, "text/plain")
		}
	}
	if err := w.WriteHeaders(hdrs); err != nil {
		return err
	}
	_, err := w.WriteBody(body)
	return err
}
