package types

// Annotation is a concept mention whose context is classified. ID is the
// position of the concept in the request.
type Annotation struct {
	Span
	ID         int
	Type       string
	Sentence   *Sentence
	TokenBegin int
	TokenEnd   int
	Attributes map[string]interface{}
}

func (ann Annotation) GetName() string {
	if ann.Type == "" {
		return "Concept"
	}
	return ann.Type
}
