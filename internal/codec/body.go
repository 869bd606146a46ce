package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/glimte/rabbiteer/internal/apperr"
)

const (
	ContentTypeJSON = "application/json"
	textPrefix      = "text/"
)

var errInvalidUTF8 = errors.New("body is not valid utf-8")

// DecodeBody interprets a message body according to its content type:
// application/json is parsed, text/* becomes a string and everything else is
// base64 encoded.
func DecodeBody(contentType string, body []byte) (any, error) {
	switch {
	case contentType == ContentTypeJSON:
		return decodeJSON(body)

	case strings.HasPrefix(contentType, textPrefix):
		if !utf8.Valid(body) {
			return nil, apperr.EncodingError("decode text body", errInvalidUTF8)
		}
		return string(body), nil

	default:
		return base64.StdEncoding.EncodeToString(body), nil
	}
}

func decodeJSON(body []byte) (any, error) {
	if !utf8.Valid(body) {
		return nil, apperr.EncodingError("decode json body", errInvalidUTF8)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperr.EncodingError("decode json body", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.EncodingError("decode json body", fmt.Errorf("trailing data after json value"))
	}

	return v, nil
}

// marshalPretty indents with two spaces and leaves <, > and & unescaped.
func marshalPretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, apperr.EncodingError("encode json", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
