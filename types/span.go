package types

// Span is a rune offset range [Begin, End) with the covered text.
type Span struct {
	Begin int32
	End   int32
	Text  *string
}

func NewSpan(text string, begin int32, end int32) Span {
	return Span{Begin: begin, End: end, Text: &text}
}

func (span Span) Covers(other Span) bool {
	return span.Begin <= other.Begin && span.End >= other.End
}

func (span Span) Overlaps(other Span) bool {
	return span.Begin < other.End && other.Begin < span.End
}

// GetTextFromSentence cuts the span text out of the sentence it belongs to.
func (span Span) GetTextFromSentence(sent *Sentence) (string, bool) {
	if sent.Text == nil || span.Begin < sent.Begin || span.End > sent.End {
		return "", false
	}
	runes := []rune(*sent.Text)
	localBegin := span.Begin - sent.Begin
	localEnd := span.End - sent.Begin
	if int(localEnd) > len(runes) {
		return "", false
	}
	return string(runes[localBegin:localEnd]), true
}

// SpanSortFunction orders spans by begin, then by end.
func SpanSortFunction(spanA *Span, spanB *Span) bool {
	if spanA.Begin == spanB.Begin {
		return spanA.End < spanB.End
	}
	return spanA.Begin < spanB.Begin
}
