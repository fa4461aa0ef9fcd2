package event

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Priority is an ordered severity. The zero value is invalid.
type Priority int

const (
	// Low covers routine filings.
	Low Priority = iota + 1

	// Medium covers offerings and partnerships.
	Medium

	// High covers M&A, FDA decisions, and bankruptcy.
	High
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p >= Low && p <= High
}

// AtLeast reports whether p is at or above min.
func (p Priority) AtLeast(min Priority) bool {
	return p >= min
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// EncodeMsgpack writes the priority as its name.
func (p Priority) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(p.String())
}

// DecodeMsgpack reads a priority name.
func (p *Priority) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}
