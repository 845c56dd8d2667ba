package pipeline

import (
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/tokenizer"
	"github.com/jianlins/FastContext/types"
)

type Tokenizer func(in <-chan *types.Sentence) <-chan *types.Sentence

func NewTokenizer(name string) (Tokenizer, error) {
	tokenize, err := tokenizer.New(name)
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger("Tokenizer").With().Str("tokenizer", name).Logger()

	return func(in <-chan *types.Sentence) <-chan *types.Sentence {
		out := make(chan *types.Sentence)
		go func() {
			defer close(out)
			for sent := range in {
				if err := tokenize(sent); err != nil {
					log.Error().Err(err).Int32("begin", sent.Begin).Msg("Failed to tokenize sentence")
					continue
				}
				out <- sent
			}
		}()
		return out
	}, nil
}
