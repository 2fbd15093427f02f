// Package richtext inspects serialized Quill Delta documents, the format
// message bodies are stored in.
package richtext

import (
	"encoding/json"
	"regexp"
	"strings"
)

type Op struct {
	Insert     json.RawMessage `json:"insert,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

type Document struct {
	Ops []Op `json:"ops"`
}

var markup = regexp.MustCompile(`<(.|\n)*?>`)

// Parse decodes either {"ops":[...]} or a bare op array.
func Parse(body string) (*Document, error) {
	trimmed := strings.TrimSpace(body)
	var doc Document
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &doc.Ops); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Text concatenates the string inserts of the document. Embeds such as
// images or mentions contribute nothing.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, op := range d.Ops {
		var s string
		if err := json.Unmarshal(op.Insert, &s); err == nil {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// Text returns the plain text of body. Bodies that are not delta documents
// are returned unchanged.
func Text(body string) string {
	doc, err := Parse(body)
	if err != nil {
		return body
	}
	return doc.Text()
}

// StripMarkup removes anything that looks like a tag.
func StripMarkup(s string) string {
	return markup.ReplaceAllString(s, "")
}

// IsEmpty reports whether body renders no visible text once markup is
// stripped and whitespace trimmed.
func IsEmpty(body string) bool {
	return strings.TrimSpace(StripMarkup(Text(body))) == ""
}
