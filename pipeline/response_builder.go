package pipeline

import (
	"sort"

	"github.com/jianlins/FastContext/types"
)

type Result struct {
	ConfigName string
	Data       interface{}
}

type ContextResponse struct {
	DocId    string          `json:"doc_id"`
	Concepts []ConceptResult `json:"concepts"`
}

// ConceptResult is the classified concept. Text is [text, begin, end] and
// Sentence is [begin, end] of the sentence the concept was found in.
type ConceptResult struct {
	ID         int                    `json:"id"`
	Name       string                 `json:"name"`
	Text       []interface{}          `json:"text"`
	Sentence   []int32                `json:"sentence,omitempty"`
	Attributes map[string]interface{} `json:"attributes"`
}

func NewContextResult() func(in <-chan []types.Annotation, configName string, request Request) <-chan Result {
	return func(in <-chan []types.Annotation, configName string, request Request) <-chan Result {
		out := make(chan Result)
		go func() {
			defer close(out)
			var allAnnotations []types.Annotation
			for annotations := range in {
				allAnnotations = append(allAnnotations, annotations...)
			}
			sort.Slice(allAnnotations, func(i, j int) bool {
				return allAnnotations[i].ID < allAnnotations[j].ID
			})

			response := ContextResponse{
				DocId:    request.Tid,
				Concepts: make([]ConceptResult, len(allAnnotations)),
			}
			for i, ann := range allAnnotations {
				text := ""
				if ann.Text != nil {
					text = *ann.Text
				}
				item := ConceptResult{
					ID:         ann.ID,
					Name:       ann.GetName(),
					Text:       []interface{}{text, ann.Begin, ann.End},
					Attributes: ann.Attributes,
				}
				if ann.Sentence != nil {
					item.Sentence = []int32{ann.Sentence.Begin, ann.Sentence.End}
				}
				response.Concepts[i] = item
			}

			out <- Result{
				ConfigName: configName,
				Data:       response,
			}
		}()
		return out
	}
}
