package tokenizer

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/jianlins/FastContext/types"
)

var ErrNoText = errors.New("tokenizer: sentence has no text")

// Tokenizer fills sent.Tokens. Token offsets are rune offsets in the
// document, the sentence text starting at sent.Begin.
type Tokenizer func(sent *types.Sentence) error

func New(name string) (Tokenizer, error) {
	switch name {
	case "", types.TokenizerWhitespace:
		return NewWhitespace(), nil
	case types.TokenizerChars:
		return NewChars(), nil
	}
	return nil, fmt.Errorf("%w %q", types.ErrUnknownTokenizer, name)
}

// NewWhitespace splits on unicode whitespace, the ideographic space included.
func NewWhitespace() Tokenizer {
	return func(sent *types.Sentence) error {
		if sent.Text == nil {
			return ErrNoText
		}
		sent.Tokens = sent.Tokens[:0]
		runes := []rune(*sent.Text)
		begin := -1
		for i := 0; i <= len(runes); i++ {
			if i < len(runes) && !isSeparator(runes[i]) {
				if begin == -1 {
					begin = i
				}
				continue
			}
			if begin != -1 {
				appendToken(sent, string(runes[begin:i]), begin, i)
				begin = -1
			}
		}
		return nil
	}
}

// NewChars emits one token per non-space rune, for scripts written without
// spaces between words.
func NewChars() Tokenizer {
	return func(sent *types.Sentence) error {
		if sent.Text == nil {
			return ErrNoText
		}
		sent.Tokens = sent.Tokens[:0]
		for i, r := range []rune(*sent.Text) {
			if isSeparator(r) {
				continue
			}
			appendToken(sent, string(r), i, i+1)
		}
		return nil
	}
}

// Whitespace tokenizes a standalone text starting at offset 0.
func Whitespace(text string) []*types.Token {
	sent := types.Sentence{Span: types.NewSpan(text, 0, int32(len([]rune(text))))}
	_ = NewWhitespace()(&sent)
	return sent.Tokens
}

// Chars tokenizes a standalone text one rune at a time.
func Chars(text string) []*types.Token {
	sent := types.Sentence{Span: types.NewSpan(text, 0, int32(len([]rune(text))))}
	_ = NewChars()(&sent)
	return sent.Tokens
}

// Locate maps the rune range [begin, end) to the indices of the first and
// last tokens it overlaps.
func Locate(tokens []*types.Token, begin int32, end int32) (int, int, bool) {
	sent := types.Sentence{Tokens: tokens}
	return sent.Locate(begin, end)
}

func appendToken(sent *types.Sentence, txt string, begin int, end int) {
	token := types.NewToken(txt, sent.Begin+int32(begin), sent.Begin+int32(end))
	token.Index = len(sent.Tokens)
	token.Sentence = sent
	sent.Tokens = append(sent.Tokens, token)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '　'
}
