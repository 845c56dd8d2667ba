package pipeline

import (
	"sort"

	"github.com/jianlins/FastContext/types"
)

// NewSentenceSplitter emits the sentences a document declares in text order,
// or the whole text as a single sentence.
func NewSentenceSplitter() func(in <-chan Document) <-chan types.Sentence {
	return func(in <-chan Document) <-chan types.Sentence {
		out := make(chan types.Sentence)
		go func() {
			defer close(out)
			for doc := range in {
				runes := []rune(doc.Text)
				spans := doc.Sentences
				if len(spans) == 0 {
					spans = []TextSpan{{Begin: 0, End: int32(len(runes))}}
				}
				sentences := make([]types.Sentence, len(spans))
				for i, span := range spans {
					sentences[i] = types.Sentence{Span: types.NewSpan(string(runes[span.Begin:span.End]), span.Begin, span.End)}
				}
				sort.SliceStable(sentences, func(i, j int) bool {
					return types.SpanSortFunction(&sentences[i].Span, &sentences[j].Span)
				})
				for _, sent := range sentences {
					out <- sent
				}
			}
		}()
		return out
	}
}

// NewSentenceChannelSplitter copies every sentence to n channels, one per
// configuration.
func NewSentenceChannelSplitter(n int) func(in <-chan types.Sentence) []chan *types.Sentence {
	return func(in <-chan types.Sentence) []chan *types.Sentence {
		outs := make([]chan *types.Sentence, n)
		for i := 0; i < n; i++ {
			outs[i] = make(chan *types.Sentence)
		}

		go func() {
			defer closeAllChannels(outs)
			for sent := range in {
				for _, out := range outs {
					copied := sent
					out <- &copied
				}
			}
		}()
		return outs
	}
}

func closeAllChannels(outs []chan *types.Sentence) {
	for _, out := range outs {
		close(out)
	}
}
