package main

import (
	"flag"
	"fmt"
	"html"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/xaitan80/httpingest/internal/headers"
	"github.com/xaitan80/httpingest/internal/request"
	"github.com/xaitan80/httpingest/internal/response"
	"github.com/xaitan80/httpingest/internal/server"
)

const (
	pageHitsCookie       = "page_hits"
	firstVisitedAtCookie = "first_visited_at"
)

var (
	html400 = []byte("<html>\n  <head>\n    <title>400 Bad Request</title>\n  </head>\n  <body>\n    <h1>Bad Request</h1>\n    <p>Your request honestly kinda sucked.</p>\n  </body>\n</html>\n")
	html500 = []byte("<html>\n  <head>\n    <title>500 Internal Server Error</title>\n  </head>\n  <body>\n    <h1>Internal Server Error</h1>\n    <p>Okay, you know what? This one is on me.</p>\n  </body>\n</html>\n")
)

func main() {
	port := flag.Int("port", 42069, "port to listen on")
	tmp := flag.String("tmp", os.TempDir(), "directory for uploaded files")
	readTimeout := flag.Duration("read-timeout", 30*time.Second, "deadline for reading one request")
	maxURI := flag.Int("max-uri", 0, "maximum request URI length (0 for the default)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	srv, err := server.Listen(server.Config{
		Addr:        fmt.Sprintf(":%d", *port),
		ReadTimeout: *readTimeout,
		Request: request.Config{
			MaxURILength: *maxURI,
			TempDir:      *tmp,
		},
		Logger: logger,
	}, route)
	if err != nil {
		logger.Fatal().Err(err).Msg("starting server")
	}
	logger.Info().Str("addr", srv.Addr().String()).Msg("server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("closing server")
	}
	st := srv.Stats()
	logger.Info().
		Int64("requests", st.Requests).
		Int64("failures", st.Failures).
		Int64("bytes_received", st.BytesReceived).
		Msg("server gracefully stopped")
}

func route(r *request.Request, w *response.Writer) *server.HandlerError {
	switch r.Status.URI {
	case "/yourproblem":
		return htmlError(response.StatusBadRequest, html400)
	case "/myproblem":
		return htmlError(response.StatusInternalServerError, html500)
	case "/cookies":
		return cookies(r, w)
	default:
		return echo(r, w)
	}
}

func htmlError(status response.StatusCode, body []byte) *server.HandlerError {
	hdrs := headers.NewHeaders()
	hdrs.Set(headers.ContentType, "text/html")
	return &server.HandlerError{Status: status, Headers: hdrs, Body: body}
}

// echo describes the parsed request back to the client.
func echo(r *request.Request, w *response.Writer) *server.HandlerError {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", r.Method(), r.Status.URI, r.Status.Protocol)
	fmt.Fprintf(&b, "remote: %s:%d scheme: %s\n", r.RemoteAddr, r.RemotePort, r.Scheme)
	b.WriteString("headers:\n")
	for _, f := range r.Headers.Fields() {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Value)
	}
	writeParams(&b, "get", r.GetParameters)
	writeParams(&b, "post", r.PostParameters)
	if len(r.UploadedFiles) > 0 {
		b.WriteString("uploads:\n")
		for _, f := range r.UploadedFiles {
			fmt.Fprintf(&b, "  %s: %s (%s, %d bytes)\n", f.FieldName, f.FileName, f.ContentType, f.Size)
		}
	}
	return writeOK(w, response.GetDefaultHeaders(b.Len()), b.String())
}

func writeParams(b *strings.Builder, label string, params map[string]string) {
	if len(params) == 0 {
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s=%s\n", k, params[k])
	}
}

// cookies counts page hits and remembers the first visit in cookies.
func cookies(r *request.Request, w *response.Writer) *server.HandlerError {
	hits := 0
	if c, ok := r.Cookie(pageHitsCookie); ok {
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return htmlError(response.StatusBadRequest, html400)
		}
		hits = n
	}
	hits++

	hdrs := response.GetDefaultHeaders(0)
	hdrs.Set(headers.ContentType, "text/html")
	hdrs.Add(headers.SetCookie, pageHitsCookie+"="+strconv.Itoa(hits))

	var firstVisitedAt string
	if c, ok := r.Cookie(firstVisitedAtCookie); ok {
		firstVisitedAt = c.Value
	} else {
		firstVisitedAt = time.Now().UTC().Format(time.RFC1123)
		hdrs.Add(headers.SetCookie, firstVisitedAtCookie+"="+url.QueryEscape(firstVisitedAt))
	}

	body := fmt.Sprintf("<p>Cookie page hits: %d</p>\n<p>First visited at: %s</p>\n", hits, html.EscapeString(firstVisitedAt))
	hdrs.Set(headers.ContentLength, strconv.Itoa(len(body)))
	return writeOK(w, hdrs, body)
}

func writeOK(w *response.Writer, hdrs *headers.Headers, body string) *server.HandlerError {
	if err := w.WriteStatusLine(response.StatusOK); err != nil {
		return &server.HandlerError{Status: response.StatusInternalServerError, Body: []byte("write status error\n")}
	}
	if err := w.WriteHeaders(hdrs); err != nil {
		return &server.HandlerError{Status: response.StatusInternalServerError, Body: []byte("write headers error\n")}
	}
	if _, err := w.WriteBody([]byte(body)); err != nil {
		return &server.HandlerError{Status: response.StatusInternalServerError, Body: []byte("write body error\n")}
	}
	return nil
}
