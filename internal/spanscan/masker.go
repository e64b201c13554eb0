package spanscan

import "github.com/raaihank/trace-sentinel/internal/privacy"

// DefaultPlaceholder replaces flagged values
const DefaultPlaceholder = "Confidential data has been masked"

// Recorder receives one call per masked location
type Recorder interface {
	Add(finder, service, operation, field string)
}

// Masker replaces flagged tag and log field values with a placeholder
type Masker struct {
	detector    *Detector
	counter     SecretCounter
	recorder    Recorder
	placeholder string
}

// NewMasker creates a masker; counter and recorder may be nil
func NewMasker(detector *Detector, counter SecretCounter, recorder Recorder, placeholder string) *Masker {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Masker{
		detector:    detector,
		counter:     counter,
		recorder:    recorder,
		placeholder: placeholder,
	}
}

// Mask returns span itself when nothing is flagged, otherwise a copy in
// which every string or bytes value under a flagged key is replaced.
func (m *Masker) Mask(span *Span) *Span {
	masked, _ := m.MaskWithFindings(span)
	return masked
}

// MaskWithFindings is Mask that also returns the findings that were masked
func (m *Masker) MaskWithFindings(span *Span) (*Span, privacy.Findings) {
	if span == nil {
		return nil, privacy.Findings{}
	}

	findings := m.detector.Filter(m.detector.FindSecrets(span), span)
	if len(findings) == 0 {
		return span, findings
	}

	flagged := make(map[string]bool)
	for _, name := range findings.Names() {
		for _, key := range findings[name] {
			flagged[key] = true
			if m.counter != nil {
				m.counter.IncSecret(name, span.ServiceName)
			}
			if m.recorder != nil {
				m.recorder.Add(name, span.ServiceName, span.OperationName, key)
			}
		}
	}

	masked := span.clone()
	m.maskTags(masked.Tags, flagged)
	for i := range masked.Logs {
		m.maskTags(masked.Logs[i].Fields, flagged)
	}
	return masked, findings
}

func (m *Masker) maskTags(tags []Tag, flagged map[string]bool) {
	for i := range tags {
		if !flagged[tags[i].Key] {
			continue
		}
		switch {
		case tags[i].VStr != "":
			tags[i].VStr = m.placeholder
		case len(tags[i].VBytes) > 0:
			tags[i].VBytes = []byte(m.placeholder)
		}
	}
}
