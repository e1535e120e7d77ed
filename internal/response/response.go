package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xaitan80/httpingest/internal/headers"
)

// StatusCode is a limited set of HTTP status codes we support.
type StatusCode int

const (
	StatusOK                    StatusCode = 200
	StatusBadRequest            StatusCode = 400
	StatusRequestEntityTooLarge StatusCode = 413
	StatusURITooLong            StatusCode = 414
	StatusHeaderFieldsTooLarge  StatusCode = 431
	StatusInternalServerError   StatusCode = 500
	StatusNotImplemented        StatusCode = 501
)

// Reason returns the reason phrase for code, or "" if unknown.
func (code StatusCode) Reason() string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusRequestEntityTooLarge:
		return "Request Entity Too Large"
	case StatusURITooLong:
		return "Request-URI Too Long"
	case StatusHeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	}
	return ""
}

// WriteStatusLine writes the HTTP/1.1 status line for the given status code.
func WriteStatusLine(w io.Writer, statusCode StatusCode) error {
	reason := statusCode.Reason()
	if reason == "" {
		_, err := fmt.Fprintf(w, "HTTP/1.1 %d\r\n", int(statusCode))
		return err
	}
	_, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", int(statusCode), reason)
	return err
}

// GetDefaultHeaders returns the default headers for our responses.
func GetDefaultHeaders(contentLen int) *headers.Headers {
	h := headers.NewHeaders()
	h.Set(headers.ContentLength, strconv.Itoa(contentLen))
	h.Set(headers.Connection, "close")
	h.Set(headers.ContentType, "text/plain")
	return h
}

// WriteHeaders writes headers as "Key: Value\r\n" lines in insertion
// order, followed by the blank line.
func WriteHeaders(w io.Writer, h *headers.Headers) error {
	for _, f := range h.Fields() {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

type writerState int

const (
	stateStatusLine writerState = iota
	stateHeaders
	stateBody
)

// ErrWriteOrder is returned when a response part is written out of order
// or when the status line or headers are written twice.
var ErrWriteOrder = errors.New("response: status line, headers and body must be written in order")

// Writer enforces status line, then headers, then body.
type Writer struct {
	w     io.Writer
	state writerState
	wrote bool
}

// NewWriter wraps the connection's write side.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WroteAnything reports whether any part of the response was written.
func (w *Writer) WroteAnything() bool { return w.wrote }

func (w *Writer) WriteStatusLine(statusCode StatusCode) error {
	if w.state != stateStatusLine {
		return ErrWriteOrder
	}
	w.wrote = true
	if err := WriteStatusLine(w.w, statusCode); err != nil {
		return err
	}
	w.state = stateHeaders
	return nil
}

func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateHeaders {
		return ErrWriteOrder
	}
	if err := WriteHeaders(w.w, h); err != nil {
		return err
	}
	w.state = stateBody
	return nil
}

func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.state != stateBody {
		return 0, ErrWriteOrder
	}
	return w.w.Write(p)
}
