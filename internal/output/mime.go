package output

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	DefaultContentType = "application/octet-stream"
	defaultExtension   = "bin"
)

// MIMETypes maps between file names, content types and extensions
type MIMETypes interface {
	// TypeForPath returns the content type for a file name, or "" if unknown
	TypeForPath(path string) string
	// Extensions returns candidate extensions without a leading dot
	Extensions(contentType string) []string
}

// SystemTypes uses the mime package's built-in table and the system
// mime.types files.
func SystemTypes() MIMETypes {
	return systemTypes{}
}

type systemTypes struct{}

func (systemTypes) TypeForPath(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}

func (systemTypes) Extensions(contentType string) []string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, strings.TrimPrefix(e, "."))
	}
	return out
}

// InferContentType guesses the content type of a file to publish. Stdin and
// unknown extensions are sent as application/octet-stream.
func InferContentType(types MIMETypes, path string) string {
	if path == "" || path == Stdout {
		return DefaultContentType
	}
	if ct := types.TypeForPath(path); ct != "" {
		return ct
	}
	return DefaultContentType
}

func extensionFor(types MIMETypes, contentType string) string {
	if contentType == "" {
		contentType = DefaultContentType
	}
	for _, ext := range types.Extensions(contentType) {
		if ext != "" {
			return ext
		}
	}
	return defaultExtension
}
