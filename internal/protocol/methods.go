package protocol

// Recognized request methods. The set is closed; anything else is
// rejected while the status line is still being read.
const (
	MethodOptions = "OPTIONS"
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodTrace   = "TRACE"
	MethodConnect = "CONNECT"
)

var recognizedMethods = [...]string{
	MethodOptions,
	MethodGet,
	MethodHead,
	MethodPost,
	MethodPut,
	MethodDelete,
	MethodTrace,
	MethodConnect,
}

// MaxMethodLength is the length of the longest recognized method.
var MaxMethodLength = func() int {
	n := 0
	for _, m := range recognizedMethods {
		if len(m) > n {
			n = len(m)
		}
	}
	return n
}()

// IsMethodValid reports whether method (already upper-cased) is recognized.
func IsMethodValid(method string) bool {
	switch method {
	case MethodOptions,
		MethodGet,
		MethodHead,
		MethodPost,
		MethodPut,
		MethodDelete,
		MethodTrace,
		MethodConnect:
		return true
	}
	return false
}

// Size limits.
const (
	DefaultMaxURILength = 2048
	// longest method + space, and space + "HTTP/1.0"
	statusLineOverhead = 8 + 9

	HeadersTerminator = "\n\r\n"
)

// MaxStatusLineLength derives the status line bound from a URI bound.
func MaxStatusLineLength(maxURILength int) int {
	return maxURILength + statusLineOverhead
}
