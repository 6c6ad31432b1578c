package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the JSON type of a raw value.
type Kind string

const (
	KindNull    Kind = "null"
	KindBool    Kind = "boolean"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindInvalid Kind = "invalid"
)

// KindOf reports the JSON type of raw from its first significant byte.
// An empty message is treated as null. The value itself is not validated;
// callers decode it afterwards.
func KindOf(raw json.RawMessage) Kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return KindNull
	}
	switch c := trimmed[0]; {
	case c == 'n':
		return KindNull
	case c == 't' || c == 'f':
		return KindBool
	case c == '"':
		return KindString
	case c == '[':
		return KindArray
	case c == '{':
		return KindObject
	case c == '-' || (c >= '0' && c <= '9'):
		return KindNumber
	default:
		return KindInvalid
	}
}

// IsAbsent reports whether a field should be treated as not provided.
func IsAbsent(raw json.RawMessage) bool {
	return KindOf(raw) == KindNull
}

// Describe renders a raw value for error messages, e.g. `string "high"`.
func Describe(raw json.RawMessage) string {
	kind := KindOf(raw)
	switch kind {
	case KindNull, KindArray, KindObject, KindInvalid:
		return string(kind)
	case KindString:
		return string(kind) + ` "` + ScalarText(raw) + `"`
	default:
		return string(kind) + " " + ScalarText(raw)
	}
}

// ScalarText returns the text of a string, number or boolean value. Numbers
// print without exponent or trailing zeros. Null is empty; anything else is
// returned as trimmed raw JSON.
func ScalarText(raw json.RawMessage) string {
	switch KindOf(raw) {
	case KindNull:
		return ""
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case KindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return string(bytes.TrimSpace(raw))
}
