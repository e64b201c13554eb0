// Package xmlscan locates confidential values in XML documents.
//
// Locations are "/"-joined node names from the document root and always end
// in "#text": element text is reported as "#document/root/child/#text" and
// an attribute value as "#document/root/elem/attr/#text".
package xmlscan

import (
	"bytes"

	"github.com/raaihank/trace-sentinel/internal/privacy"
	"go.uber.org/zap"
)

// Whitelist suppresses known-safe (finder, path) pairs
type Whitelist interface {
	Contains(fields ...string) bool
}

// Detector walks XML documents with the detection engine
type Detector struct {
	engine    *privacy.Engine
	whitelist Whitelist
	logger    *zap.Logger
}

// NewDetector creates an XML detector; whitelist may be nil
func NewDetector(engine *privacy.Engine, whitelist Whitelist, logger *zap.Logger) *Detector {
	return &Detector{engine: engine, whitelist: whitelist, logger: logger}
}

// Scan finds the secrets in a document and drops whitelisted ones
func (d *Detector) Scan(data []byte) privacy.Findings {
	return d.Filter(d.FindSecrets(data))
}

// FindSecrets parses and walks the document. A malformed document is
// logged and whatever was parsed before the error is still scanned.
func (d *Detector) FindSecrets(data []byte) privacy.Findings {
	if len(bytes.TrimSpace(data)) == 0 {
		return privacy.Findings{}
	}

	doc, err := Parse(data)
	if err != nil {
		d.logger.Warn("Malformed XML document; findings may be incomplete", zap.Error(err))
	}
	return d.FindSecretsInNode(doc)
}

// FindSecretsInNode walks a parsed tree. Under each element, text and child
// elements are visited in document order, then the attributes.
func (d *Detector) FindSecretsInNode(root *Node) privacy.Findings {
	findings := privacy.Findings{}
	if root == nil {
		return findings
	}
	d.walk(root, root.Name, findings)
	return findings
}

func (d *Detector) walk(node *Node, path string, findings privacy.Findings) {
	for _, child := range node.Children {
		switch child.Kind {
		case TextNode:
			d.record(child.Value, path+"/"+textName, findings)
		case ElementNode:
			d.walk(child, path+"/"+child.Name, findings)
		}
	}
	for _, attr := range node.Attrs {
		d.record(attr.Value, path+"/"+attr.Name+"/"+textName, findings)
	}
}

func (d *Detector) record(value, path string, findings privacy.Findings) {
	for name := range d.engine.Find(value) {
		findings.Add(name, path)
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
