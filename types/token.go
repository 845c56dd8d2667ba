package types

type Token struct {
	Span
	Index    int
	Sentence *Sentence
}

func NewToken(text string, begin int32, end int32) *Token {
	return &Token{Span: NewSpan(text, begin, end)}
}

// NewTokens builds tokens from bare texts, one rune offset per token.
func NewTokens(texts ...string) []*Token {
	tokens := make([]*Token, len(texts))
	for i, txt := range texts {
		tokens[i] = NewToken(txt, int32(i), int32(i+1))
		tokens[i].Index = i
	}
	return tokens
}

func TokenTexts(tokens []*Token) []string {
	texts := make([]string, len(tokens))
	for i, token := range tokens {
		if token != nil && token.Text != nil {
			texts[i] = *token.Text
		}
	}
	return texts
}
