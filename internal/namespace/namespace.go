// Package namespace implements TrackNamespace: the tuple-of-byte-strings
// identifier publishers announce and subscribers address, plus its wire
// codec and a slash-path convenience mapping.
package namespace

import (
	"errors"
	"strings"

	"github.com/quic-go/quic-go/quicvarint"
)

const (
	// MaxFieldLen is the maximum length in bytes of a single tuple field.
	MaxFieldLen = 4096
	// MaxFields is the maximum number of tuple fields a namespace may carry.
	MaxFields = 32
)

var (
	// ErrTooManyFields is returned when a namespace tuple exceeds MaxFields.
	ErrTooManyFields = errors.New("namespace: too many fields")
	// ErrFieldTooLong is returned when a tuple field exceeds MaxFieldLen.
	ErrFieldTooLong = errors.New("namespace: field too long")
	// ErrTruncated is returned when a wire-encoded namespace is cut short.
	ErrTruncated = errors.New("namespace: truncated")
)

// Namespace is an ordered sequence of tuple fields. Equality and hashing
// are field-wise; it is the authoritative track-namespace identifier.
// The zero value is the empty namespace (prefixes everything).
type Namespace struct {
	fields []string
}

// New builds a Namespace from tuple fields, validating field count and
// length per the wire format's limits.
func New(fields ...string) (Namespace, error) {
	if len(fields) > MaxFields {
		return Namespace{}, ErrTooManyFields
	}
	for _, f := range fields {
		if len(f) > MaxFieldLen {
			return Namespace{}, ErrFieldTooLong
		}
	}
	cp := make([]string, len(fields))
	copy(cp, fields)
	return Namespace{fields: cp}, nil
}

// FromPath converts a slash-delimited path string ("/org/channel") into a
// Namespace. Leading/trailing slashes are ignored; empty segments (from a
// doubled slash) are dropped. The tuple form remains authoritative — this
// is a convenience mapping only.
func FromPath(path string) (Namespace, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return Namespace{}, nil
	}
	parts := strings.Split(trimmed, "/")
	fields := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		fields = append(fields, p)
	}
	return New(fields...)
}

// Path renders the Namespace back to a slash-delimited path string.
func (n Namespace) Path() string {
	if len(n.fields) == 0 {
		return "/"
	}
	return "/" + strings.Join(n.fields, "/")
}

// Fields returns a copy of the tuple fields.
func (n Namespace) Fields() []string {
	cp := make([]string, len(n.fields))
	copy(cp, n.fields)
	return cp
}

// Len reports the number of tuple fields.
func (n Namespace) Len() int { return len(n.fields) }

// Equal reports field-wise equality.
func (n Namespace) Equal(other Namespace) bool {
	if len(n.fields) != len(other.fields) {
		return false
	}
	for i, f := range n.fields {
		if f != other.fields[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's fields are an element-wise prefix of
// n's fields (prefix itself included — a namespace is its own prefix).
func (n Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix.fields) > len(n.fields) {
		return false
	}
	for i, f := range prefix.fields {
		if n.fields[i] != f {
			return false
		}
	}
	return true
}

// Key returns a collision-safe string suitable for use as a map key.
// Joining on a NUL byte avoids ambiguity between e.g. ["a","b"] and
// ["a/b"] that a naive "/"-join would introduce.
func (n Namespace) Key() string {
	return strings.Join(n.fields, "\x00")
}

// String implements fmt.Stringer for logging.
func (n Namespace) String() string { return n.Path() }

// Encode appends the wire form of n to buf: a varint field count followed
// by varint-length-prefixed field byte strings.
func (n Namespace) Encode(buf []byte) []byte {
	buf = quicvarint.Append(buf, uint64(len(n.fields)))
	for _, f := range n.fields {
		buf = quicvarint.Append(buf, uint64(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// Decode reads a wire-encoded Namespace from data, returning the decoded
// value and the number of bytes consumed.
func Decode(data []byte) (Namespace, int, error) {
	count, n, err := quicvarint.Parse(data)
	if err != nil {
		return Namespace{}, 0, ErrTruncated
	}
	if count > MaxFields {
		return Namespace{}, 0, ErrTooManyFields
	}
	pos := n
	fields := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		if pos >= len(data) {
			return Namespace{}, 0, ErrTruncated
		}
		l, ln, err := quicvarint.Parse(data[pos:])
		if err != nil {
			return Namespace{}, 0, ErrTruncated
		}
		pos += ln
		if l > MaxFieldLen {
			return Namespace{}, 0, ErrFieldTooLong
		}
		end := pos + int(l)
		if end > len(data) {
			return Namespace{}, 0, ErrTruncated
		}
		fields = append(fields, string(data[pos:end]))
		pos = end
	}
	return Namespace{fields: fields}, pos, nil
}
