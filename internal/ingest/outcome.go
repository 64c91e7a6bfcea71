package ingest

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrBind means the listening endpoint could not be acquired.
	ErrBind = errors.New("bind ingest socket")
	// ErrAccept wraps a failed accept; the loop keeps running.
	ErrAccept = errors.New("accept connection")
	// ErrRead wraps an I/O failure while draining a connection.
	ErrRead = errors.New("read payload")
	// ErrParse means the payload is not a single well-formed JSON document.
	ErrParse = errors.New("parse payload")
	// ErrTooLarge means the payload exceeded the configured maximum.
	ErrTooLarge = errors.New("payload too large")
	// ErrTimeout means the peer went quiet for longer than the idle timeout.
	ErrTimeout = errors.New("payload idle timeout")
)

// Kind classifies an Outcome.
type Kind string

const (
	KindDecoded      Kind = "decoded"
	KindReadFailed   Kind = "read_failed"
	KindParseFailed  Kind = "parse_failed"
	KindTooLarge     Kind = "too_large"
	KindTimedOut     Kind = "timed_out"
	KindAcceptFailed Kind = "accept_failed"
)

// Kinds lists every Kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindDecoded, KindReadFailed, KindParseFailed, KindTooLarge, KindTimedOut, KindAcceptFailed}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, x := range Kinds() {
		if k == x {
			return true
		}
	}
	return false
}

// Message is a decoded payload. Value holds the generic document tree:
// nil, bool, json.Number, string, []any or map[string]any.
type Message struct {
	Value any
	Raw   []byte
}

// String renders the value as compact JSON with sorted keys.
func (m *Message) String() string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(m.Value)
	if err != nil {
		return string(m.Raw)
	}
	return string(b)
}

// Outcome is what the server reports for one accepted connection, or for
// one failed accept. Message is set only for KindDecoded; Err only for
// the failure kinds.
type Outcome struct {
	ConnID  string
	Kind    Kind
	Message *Message
	Size    int
	Err     error
	At      time.Time
}

// OK reports whether the outcome carries a decoded message.
func (o Outcome) OK() bool { return o.Kind == KindDecoded }
