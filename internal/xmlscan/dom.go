package xmlscan

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NodeKind distinguishes the node types the walker cares about
type NodeKind int

const (
	DocumentNode NodeKind = iota
	ElementNode
	AttributeNode
	TextNode
)

// Node is a minimal DOM node. Attribute and element text are separate
// node kinds so each value is visited exactly once.
type Node struct {
	Kind     NodeKind
	Name     string // qualified name, prefix kept; empty for text
	Value    string // text and attribute values
	Attrs    []*Node
	Children []*Node
}

const (
	documentName = "#document"
	textName     = "#text"
)

// Parse builds a DOM from data. Whitespace-only text is dropped and adjacent
// character data (including CDATA sections) is merged into one text node.
func Parse(data []byte) (*Node, error) {
	doc := &Node{Kind: DocumentNode, Name: documentName}
	dec := xml.NewDecoder(bytes.NewReader(data))

	stack := []*Node{doc}
	var text strings.Builder

	flush := func() {
		if strings.TrimSpace(text.String()) != "" {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Node{Kind: TextNode, Value: text.String()})
		}
		text.Reset()
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return doc, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			flush()
			el := &Node{Kind: ElementNode, Name: qualified(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, &Node{Kind: AttributeNode, Name: qualified(a.Name), Value: a.Value})
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)
		case xml.EndElement:
			flush()
			if len(stack) == 1 || stack[len(stack)-1].Name != qualified(t.Name) {
				return doc, fmt.Errorf("unexpected end element </%s>", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 1 {
				text.Write(t)
			}
		}
	}

	if len(stack) > 1 {
		return doc, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Name)
	}
	return doc, nil
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
