package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// MethodField tunnels the logical HTTP method through a multipart POST,
// since the backend only parses file uploads on POST.
const MethodField = "_method"

// Form is a multipart/form-data payload: text fields plus at most one file.
type Form struct {
	fields []field
	file   *filePart
}

type field struct{ key, value string }

type filePart struct {
	field    string
	filename string
	r        io.Reader
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Set appends a text field.
func (f *Form) Set(key, value string) *Form {
	f.fields = append(f.fields, field{key, value})
	return f
}

// File attaches a file under fieldName. A nil reader is ignored.
func (f *Form) File(fieldName, filename string, r io.Reader) *Form {
	if r != nil {
		f.file = &filePart{field: fieldName, filename: filename, r: r}
	}
	return f
}

// Tunnel marks the POST as carrying method (e.g. PUT).
func (f *Form) Tunnel(method string) *Form {
	return f.Set(MethodField, method)
}

// Value returns the first value of key, for inspection.
func (f *Form) Value(key string) (string, bool) {
	for _, fl := range f.fields {
		if fl.key == key {
			return fl.value, true
		}
	}
	return "", false
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fl := range f.fields {
		if err := w.WriteField(fl.key, fl.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", fl.key, err)
		}
	}
	if f.file != nil {
		part, err := w.CreateFormFile(f.file.field, f.file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.file.r); err != nil {
			return nil, "", fmt.Errorf("failed to copy form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
