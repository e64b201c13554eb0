package whitelist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads whitelist lines into a snapshot of the given kind. When
// discriminate is set only lines prefixed with the kind are consumed and the
// prefix is dropped. A consumed line with fewer fields than the kind's arity
// fails the whole parse; extra fields are ignored.
func Parse(r io.Reader, kind Kind, discriminate bool) (*Snapshot, error) {
	snapshot := newSnapshot(kind)
	arity := kind.Arity()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, Delimiter)
		if discriminate {
			if fields[0] != string(kind) {
				continue
			}
			fields = fields[1:]
		}

		if len(fields) < arity {
			return nil, &InvalidLineError{Line: lineNo, Text: line, Want: arity, Got: len(fields)}
		}
		snapshot.add(fields[:arity])
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}

	return snapshot, nil
}
