package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrNoText      = errors.New("pipeline: document has no text")
	ErrInvalidSpan = errors.New("pipeline: span is outside of the text")
)

// Pipeline classifies the concepts of a request and sends the JSON response
// on the returned channel.
type Pipeline func(Request) <-chan string

type Request struct {
	Tid      string   `json:"tid"`
	Document Document `json:"document"`
}

// Document is the input of a classification. Offsets count unicode code
// points of Text, End is exclusive.
type Document struct {
	Text      string         `json:"text"`
	Sentences []TextSpan     `json:"sentences,omitempty"`
	Concepts  []ConceptInput `json:"concepts"`
	// Configs restricts the response to these configurations, unknown names
	// are ignored.
	Configs []string `json:"configs,omitempty"`
}

type TextSpan struct {
	Begin int32 `json:"begin"`
	End   int32 `json:"end"`
}

type ConceptInput struct {
	TextSpan
	Type string `json:"type,omitempty"`
}

func ParseDocument(buf []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return doc, err
	}
	return doc, doc.Validate()
}

// Validate checks that every span lies within the text.
func (doc Document) Validate() error {
	if doc.Text == "" {
		return ErrNoText
	}
	length := int32(utf8.RuneCountInString(doc.Text))
	check := func(kind string, i int, span TextSpan) error {
		if span.Begin < 0 || span.End <= span.Begin || span.End > length {
			return fmt.Errorf("%w: %s %d [%d, %d) of %d", ErrInvalidSpan, kind, i, span.Begin, span.End, length)
		}
		return nil
	}
	for i, sent := range doc.Sentences {
		if err := check("sentence", i, sent); err != nil {
			return err
		}
	}
	for i, concept := range doc.Concepts {
		if err := check("concept", i, concept.TextSpan); err != nil {
			return err
		}
	}
	return nil
}
