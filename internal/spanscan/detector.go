package spanscan

import (
	"fmt"
	"strings"

	"github.com/raaihank/trace-sentinel/internal/privacy"
	"go.uber.org/zap"
)

// Whitelist suppresses known-safe findings
type Whitelist interface {
	Contains(fields ...string) bool
}

// SecretCounter counts surviving findings per finder and service
type SecretCounter interface {
	IncSecret(finder, service string)
}

// Detector locates confidential values in span tags and log fields. The
// location of a finding is the tag or field key.
type Detector struct {
	engine     *privacy.Engine
	whitelist  Whitelist
	counter    SecretCounter
	logFinders map[string]bool
	logger     *zap.Logger
}

// NewDetector creates a span detector. whitelist and counter may be nil.
// Findings of the finders named in logFinders are written to the log by Apply.
func NewDetector(engine *privacy.Engine, whitelist Whitelist, counter SecretCounter, logFinders []string, logger *zap.Logger) *Detector {
	d := &Detector{
		engine:     engine,
		whitelist:  whitelist,
		counter:    counter,
		logFinders: make(map[string]bool, len(logFinders)),
		logger:     logger,
	}
	for _, name := range logFinders {
		d.logFinders[name] = true
	}
	return d
}

// FindSecrets scans every tag, then every field of every log, and returns
// the keys whose values matched, grouped by finder name
func (d *Detector) FindSecrets(span *Span) privacy.Findings {
	findings := privacy.Findings{}
	if span == nil {
		return findings
	}

	d.scanTags(span.Tags, findings)
	for _, log := range span.Logs {
		d.scanTags(log.Fields, findings)
	}
	return findings
}

func (d *Detector) scanTags(tags []Tag, findings privacy.Findings) {
	for _, tag := range tags {
		value, ok := tag.text()
		if !ok {
			continue
		}
		for name := range d.engine.Find(value) {
			findings.Add(name, tag.Key)
		}
	}
}

// Filter drops findings whitelisted for the span's service and operation
func (d *Detector) Filter(findings privacy.Findings, span *Span) privacy.Findings {
	if d.whitelist == nil || len(findings) == 0 {
		return findings
	}

	filtered := privacy.Findings{}
	for name, keys := range findings {
		for _, key := range keys {
			if d.whitelist.Contains(name, span.ServiceName, span.OperationName, key) {
				continue
			}
			filtered.Add(name, key)
		}
	}
	return filtered
}

// Inspect finds and filters the secrets in a span, counts them, logs the
// findings of log-worthy finders and returns the surviving findings with
// the notification text. Both are empty when nothing survives.
func (d *Detector) Inspect(span *Span) (privacy.Findings, []string) {
	findings := d.Filter(d.FindSecrets(span), span)
	if len(findings) == 0 {
		return findings, []string{}
	}

	text := NotificationText(span, findings)
	for _, name := range findings.Names() {
		if d.counter != nil {
			for range findings[name] {
				d.counter.IncSecret(name, span.ServiceName)
			}
		}
		if d.logFinders[name] {
			d.logger.Info(text, zap.String("finder", name))
		}
	}
	return findings, []string{text}
}

// Apply returns the notification text for a span, see Inspect
func (d *Detector) Apply(span *Span) []string {
	_, notifications := d.Inspect(span)
	return notifications
}

// NotificationText describes where secrets were found in a span
func NotificationText(span *Span, findings privacy.Findings) string {
	parts := make([]string, 0, len(findings))
	for _, name := range findings.Names() {
		parts = append(parts, name+"=["+strings.Join(findings[name], ", ")+"]")
	}
	return fmt.Sprintf("Confidential data has been found in a span: service [%s] operation [%s] span [%s] trace [%s] tag(s) [%s]",
		span.ServiceName, span.OperationName, span.SpanID, span.TraceID, strings.Join(parts, "; "))
}
