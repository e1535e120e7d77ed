package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/xaitan80/httpingest/internal/multipart"
	"github.com/xaitan80/httpingest/internal/protocol"
	"github.com/xaitan80/httpingest/internal/request"
)

func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	tmp := flag.String("tmp", os.TempDir(), "directory for uploaded files")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	defer ln.Close()
	parser := request.NewParser(request.Config{TempDir: *tmp})

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Warn().Err(err).Msg("accept")
			continue
		}
		log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("accepted connection")

		// Handle each connection concurrently so we keep accepting others.
		go func(c net.Conn) {
			defer c.Close()
			r, err := parser.Parse(c)
			if err != nil {
				if files := request.FailedUploads(err); len(files) > 0 {
					if rerr := multipart.RemoveAll(files); rerr != nil {
						log.Error().Err(rerr).Msg("removing partial uploads")
					}
				}
				ev := log.Debug()
				if protocol.IsParseFailure(err) {
					ev = log.Warn()
				}
				ev.Err(err).Str("remote", c.RemoteAddr().String()).Msg("parsing request")
				return
			}
			defer func() {
				if err := r.RemoveUploadedFiles(); err != nil {
					log.Error().Err(err).Msg("removing uploads")
				}
			}()
			printRequest(os.Stdout, r)
		}(conn)
	}
}

// printRequest writes a readable summary of r.
func printRequest(w io.Writer, r *request.Request) {
	fmt.Fprintln(w, "Request line:")
	fmt.Fprintf(w, "- Method: %s\n", r.Method())
	fmt.Fprintf(w, "- Target: %s\n", r.Status.URI)
	fmt.Fprintf(w, "- Version: %s\n", r.Status.Protocol)
	fmt.Fprintln(w, "Headers:")
	for _, f := range r.Headers.Fields() {
		fmt.Fprintf(w, "- %s: %s\n", f.Name, f.Value)
	}
	printParams(w, "Query", r.GetParameters)
	printParams(w, "Form", r.PostParameters)
	if len(r.UploadedFiles) > 0 {
		fmt.Fprintln(w, "Uploads:")
		for _, f := range r.UploadedFiles {
			fmt.Fprintf(w, "- %s: %s (%d bytes)\n", f.FieldName, f.FileName, f.Size)
		}
	}
}

func printParams(w io.Writer, label string, params map[string]string) {
	if len(params) == 0 {
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(w, "- %s: %s\n", k, params[k])
	}
}
