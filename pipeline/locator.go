package pipeline

import (
	"github.com/jianlins/FastContext/types"
)

const (
	ErrorAttribute = "error"

	notLocatedMessage = "concept does not match the tokens of any sentence"
)

// NewConceptLocator maps every concept of the document to the token range of
// the first sentence covering it. Concepts no sentence covers are sent last,
// without a sentence and with an error attribute.
func NewConceptLocator(concepts []ConceptInput) func(in <-chan *types.Sentence) <-chan []types.Annotation {
	return func(in <-chan *types.Sentence) <-chan []types.Annotation {
		out := make(chan []types.Annotation)
		go func() {
			defer close(out)
			located := make([]bool, len(concepts))
			for sent := range in {
				var annotations []types.Annotation
				for i, concept := range concepts {
					if located[i] {
						continue
					}
					span := types.Span{Begin: concept.Begin, End: concept.End}
					if !sent.Covers(span) {
						continue
					}
					first, last, ok := sent.Locate(concept.Begin, concept.End)
					if !ok {
						continue
					}
					located[i] = true
					text, _ := span.GetTextFromSentence(sent)
					annotations = append(annotations, types.Annotation{
						Span:       types.NewSpan(text, concept.Begin, concept.End),
						ID:         i,
						Type:       concept.Type,
						Sentence:   sent,
						TokenBegin: first,
						TokenEnd:   last,
						Attributes: map[string]interface{}{},
					})
				}
				if len(annotations) > 0 {
					out <- annotations
				}
			}

			var missing []types.Annotation
			for i, concept := range concepts {
				if located[i] {
					continue
				}
				missing = append(missing, types.Annotation{
					Span:       types.Span{Begin: concept.Begin, End: concept.End},
					ID:         i,
					Type:       concept.Type,
					TokenBegin: -1,
					TokenEnd:   -1,
					Attributes: map[string]interface{}{ErrorAttribute: notLocatedMessage},
				})
			}
			if len(missing) > 0 {
				out <- missing
			}
		}()
		return out
	}
}
