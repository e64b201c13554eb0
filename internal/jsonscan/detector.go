// Package jsonscan locates confidential values in JSON documents. A
// location is the dot-joined path of member names and "[i]" array indices
// from the root to the string value, e.g. "rootElement.childArray.[0]".
package jsonscan

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/raaihank/trace-sentinel/internal/privacy"
	"go.uber.org/zap"
)

// Whitelist suppresses known-safe (finder, path) pairs
type Whitelist interface {
	Contains(fields ...string) bool
}

// Detector walks JSON documents with the detection engine
type Detector struct {
	engine    *privacy.Engine
	whitelist Whitelist
	logger    *zap.Logger
}

// NewDetector creates a JSON detector; whitelist may be nil
func NewDetector(engine *privacy.Engine, whitelist Whitelist, logger *zap.Logger) *Detector {
	return &Detector{engine: engine, whitelist: whitelist, logger: logger}
}

// Scan finds the secrets in a document and drops whitelisted ones
func (d *Detector) Scan(data []byte) privacy.Findings {
	return d.Filter(d.FindSecrets(data))
}

// FindSecrets streams the document so member order is preserved. Malformed
// input is logged and the findings gathered before the error are returned.
func (d *Detector) FindSecrets(data []byte) privacy.Findings {
	findings := privacy.Findings{}
	if len(bytes.TrimSpace(data)) == 0 {
		return findings
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	w := &walker{dec: dec, engine: d.engine, findings: findings}
	if err := w.value(nil); err != nil {
		d.logger.Warn("Malformed JSON document; findings may be incomplete", zap.Error(err))
	}
	return findings
}

// FindSecretsInValue walks an already decoded document. Object members are
// visited in sorted key order.
func (d *Detector) FindSecretsInValue(v any) privacy.Findings {
	findings := privacy.Findings{}
	d.walkValue(v, nil, findings)
	return findings
}

func (d *Detector) walkValue(v any, path []string, findings privacy.Findings) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d.walkValue(t[k], append(path, k), findings)
		}
	case []any:
		for i, elem := range t {
			d.walkValue(elem, append(path, index(i)), findings)
		}
	case string:
		record(d.engine, t, path, findings)
	}
}

// Filter drops findings whose (finder, path) pair is whitelisted
func (d *Detector) Filter(findings privacy.Findings) privacy.Findings {
	if d.whitelist == nil || len(findings) == 0 {
		return findings
	}

	filtered := privacy.Findings{}
	for name, paths := range findings {
		for _, path := range paths {
			if !d.whitelist.Contains(name, path) {
				filtered.Add(name, path)
			}
		}
	}
	return filtered
}

type walker struct {
	dec      *json.Decoder
	engine   *privacy.Engine
	findings privacy.Findings
}

func (w *walker) value(path []string) error {
	tok, err := w.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for w.dec.More() {
				keyTok, err := w.dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				if err := w.value(append(path, key)); err != nil {
					return err
				}
			}
			_, err = w.dec.Token()
			return err
		case '[':
			for i := 0; w.dec.More(); i++ {
				if err := w.value(append(path, index(i))); err != nil {
					return err
				}
			}
			_, err = w.dec.Token()
			return err
		}
	case string:
		record(w.engine, t, path, w.findings)
	}
	return nil
}

func record(engine *privacy.Engine, value string, path []string, findings privacy.Findings) {
	for name := range engine.Find(value) {
		findings.Add(name, strings.Join(path, "."))
	}
}

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
