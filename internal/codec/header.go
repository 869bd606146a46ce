package codec

import (
	"strconv"
	"strings"

	"github.com/glimte/rabbiteer/internal/apperr"
)

// ParseHeader splits a raw "Key: Value" string on its first colon and narrows
// the value to the most specific type it parses as: bool, then double, then
// string.
func ParseHeader(raw string) (string, Value, error) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return "", nil, apperr.ValidationError("parse header "+strconv.Quote(raw), apperr.ErrMalformedHeader)
	}

	key := strings.TrimSpace(raw[:idx])
	return key, Narrow(strings.TrimSpace(raw[idx+1:])), nil
}

// Narrow never fails; anything that is not a bool or a number stays a string.
func Narrow(s string) Value {
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	if !isHexFloat(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Double(f)
		}
	}

	return LongString(s)
}

// isHexFloat catches the 0x form strconv accepts but a decimal float
// parser does not.
func isHexFloat(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// ParseHeaders builds a table from raw header strings. Later duplicates win.
func ParseHeaders(raw []string) (Table, error) {
	table := make(Table, len(raw))
	for _, h := range raw {
		key, val, err := ParseHeader(h)
		if err != nil {
			return nil, err
		}
		table[key] = val
	}
	return table, nil
}
