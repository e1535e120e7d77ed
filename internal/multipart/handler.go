package multipart

import (
	"errors"
	"io"
	"os"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// UploadedFile is a file part stored in temporary storage. The file at
// StoredPath outlives the request until someone calls Remove.
type UploadedFile struct {
	FieldName   string
	FileName    string
	ContentType string
	StoredPath  string
	Size        int64
}

// Remove deletes the stored file.
func (f UploadedFile) Remove() error {
	if err := os.Remove(f.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every stored file, returning the joined errors.
func RemoveAll(files []UploadedFile) error {
	var errs []error
	for _, f := range files {
		if err := f.Remove(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Result holds what a multipart body decoded into.
type Result struct {
	Fields map[string]string
	Files  []UploadedFile
}

// Handler routes parts: file parts are streamed into TempDir, text
// parts become fields. MaxFieldBytes bounds the text fields together;
// zero means no bound.
type Handler struct {
	TempDir       string
	MaxFieldBytes int64
}

// Handle consumes every part of mr. The returned Result is never nil:
// on failure it lists the files written so far, which the caller must
// remove.
func (h *Handler) Handle(mr *Reader) (*Result, error) {
	res := &Result{Fields: make(map[string]string)}
	var fieldBytes int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if part.Headers.Name == "" {
			// unnamed parts carry nothing addressable; NextPart skips the body
			continue
		}
		if part.Headers.IsFile() {
			f, err := h.store(part)
			if f.StoredPath != "" {
				res.Files = append(res.Files, f)
			}
			if err != nil {
				return res, err
			}
			continue
		}
		value, err := h.readField(part, fieldBytes)
		if err != nil {
			return res, err
		}
		fieldBytes += int64(len(value))
		res.Fields[part.Headers.Name] = value
	}
}

// store copies the part body to a new temporary file. The file is
// reported even when copying fails so that it can be removed.
func (h *Handler) store(part *Part) (UploadedFile, error) {
	uf := UploadedFile{
		FieldName:   part.Headers.Name,
		FileName:    part.Headers.FileName,
		ContentType: part.Headers.ContentType,
	}
	f, err := os.CreateTemp(h.TempDir, "upload-*")
	if err != nil {
		return uf, err
	}
	uf.StoredPath = f.Name()
	n, err := io.Copy(f, part)
	uf.Size = n
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return uf, err
}

func (h *Handler) readField(part *Part, used int64) (string, error) {
	if h.MaxFieldBytes <= 0 {
		b, err := io.ReadAll(part)
		return string(b), err
	}
	left := h.MaxFieldBytes - used
	b, err := io.ReadAll(io.LimitReader(part, left+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > left {
		return "", protocol.Errorf(protocol.ErrBodyTooLarge, "form fields exceed %d bytes", h.MaxFieldBytes)
	}
	return string(b), nil
}
