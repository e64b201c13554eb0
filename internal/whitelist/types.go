package whitelist

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Kind is the shape of entries a cache holds. Its string form is also the
// line prefix that selects entries of that kind in a shared source.
type Kind string

const (
	KindSpan Kind = "SPAN"
	KindJSON Kind = "JSON"
	KindXML  Kind = "XML"
)

// Arity is the number of fields that make up a key of this kind
func (k Kind) Arity() int {
	if k == KindSpan {
		return 4 // finder, service, operation, tag
	}
	return 2 // finder, identifier
}

// Delimiter separates fields on a whitelist line
const Delimiter = ";"

// keySeparator joins key fields in the snapshot set; it cannot appear in a
// parsed field since the fields were split from a line.
const keySeparator = "\x1f"

// Source supplies the raw whitelist text
type Source interface {
	Name() string
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// InvalidLineError reports a consumed line with too few fields
type InvalidLineError struct {
	Line int
	Text string
	Want int
	Got  int
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("whitelist line %d has %d fields, expected %d: %q", e.Line, e.Got, e.Want, e.Text)
}

// Snapshot is an immutable set of whitelisted keys
type Snapshot struct {
	kind    Kind
	entries map[string]struct{}
}

func newSnapshot(kind Kind) *Snapshot {
	return &Snapshot{kind: kind, entries: make(map[string]struct{})}
}

// Contains reports whether the exact key is whitelisted
func (s *Snapshot) Contains(fields ...string) bool {
	if len(fields) != s.kind.Arity() {
		return false
	}
	_, ok := s.entries[strings.Join(fields, keySeparator)]
	return ok
}

// Len returns the number of distinct keys
func (s *Snapshot) Len() int {
	return len(s.entries)
}

func (s *Snapshot) add(fields []string) {
	s.entries[strings.Join(fields, keySeparator)] = struct{}{}
}
