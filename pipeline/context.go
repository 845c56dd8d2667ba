package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jianlins/FastContext/fastcontext"
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/redis"
	"github.com/jianlins/FastContext/rules"
	"github.com/jianlins/FastContext/types"
	"golang.org/x/sync/errgroup"
)

// Classifier pairs a configuration with its live rule set.
type Classifier struct {
	Config   types.Configuration
	Registry *rules.Registry
}

// Options translates a configuration into matching options.
func Options(cfg types.Configuration) fastcontext.Options {
	opts := fastcontext.Options{
		CaseSensitive:   cfg.CaseSensitive,
		SkipBlankTokens: cfg.SkipBlankTokens,
		MaxTokens:       cfg.MaxTokens,
		TypeHierarchy:   cfg.TypeHierarchy,
		Trace:           cfg.Trace,
	}
	if cfg.Trace {
		opts.Tracer = fastcontext.LogTracer(logger.NewLogger("Context trace").With().Str("config_name", cfg.Name).Logger())
	}
	return opts
}

// NewClassifiers loads the rules of every configuration in parallel. Any
// configuration without usable rules fails the whole set.
func NewClassifiers(cfgs []types.Configuration, downloader rules.Downloader, m *metrics.Metrics) ([]Classifier, error) {
	classifiers := make([]Classifier, len(cfgs))
	var group errgroup.Group
	for i, cfg := range cfgs {
		i, cfg := i, cfg
		group.Go(func() error {
			registry := rules.NewRegistry(cfg.Name, cfg.Rules, Options(cfg), downloader, m)
			if err := registry.Reload(); err != nil {
				return fmt.Errorf("configuration %q: %w", cfg.Name, err)
			}
			classifiers[i] = Classifier{Config: cfg, Registry: registry}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return classifiers, nil
}

func Registries(classifiers []Classifier) []*rules.Registry {
	registries := make([]*rules.Registry, len(classifiers))
	for i, classifier := range classifiers {
		registries[i] = classifier.Registry
	}
	return registries
}

type ContextParams struct {
	Classifiers []Classifier
	Cache       *redis.ResultCache
	Metrics     *metrics.Metrics
	Parallelism int
}

type configStages struct {
	classifier Classifier
	tokenizer  Tokenizer
	detector   func(ctx context.Context, in <-chan []types.Annotation) <-chan []types.Annotation
}

// Context builds the pipeline classifying a document with every
// configuration. Each configuration yields a section of the response named
// after it.
func Context(params ContextParams) (Pipeline, error) {
	log := logger.NewLogger("Context pipeline")
	stages := make([]configStages, len(params.Classifiers))
	for i, classifier := range params.Classifiers {
		tok, err := NewTokenizer(classifier.Config.Tokenizer)
		if err != nil {
			log.Err(err).Str("config_name", classifier.Config.Name).Msg("Failed to create tokenizer")
			return nil, err
		}
		stages[i] = configStages{
			classifier: classifier,
			tokenizer:  tok,
			detector: NewContextDetector(DetectorParams{
				Registry:    classifier.Registry,
				Config:      classifier.Config,
				Cache:       params.Cache,
				Metrics:     params.Metrics,
				Parallelism: params.Parallelism,
			}),
		}
	}
	splitter := NewSentenceSplitter()
	responseBuilder := NewContextResult()

	return func(request Request) <-chan string {
		responseChan := make(chan string, 1)
		pplnLog := log.With().Str("tid", request.Tid).Logger()
		pplnLog.Info().Msg("Started context pipeline")

		go func() {
			defer close(responseChan)
			doc := request.Document
			if err := doc.Validate(); err != nil {
				pplnLog.Err(err).Msg("Invalid document")
				responseChan <- errorResponse(err)
				return
			}
			selected := selectStages(stages, doc.Configs)

			in := make(chan Document)
			split := NewSentenceChannelSplitter(len(selected))(splitter(in))

			resultChannel := make(chan Result)
			for i, stage := range selected {
				sentences := stage.tokenizer(split[i])
				annotations := NewConceptLocator(doc.Concepts)(sentences)
				annotations = stage.detector(context.Background(), annotations)
				connect(responseBuilder(annotations, stage.classifier.Config.Name, request), resultChannel)
			}

			in <- doc
			close(in)

			response := make(map[string]interface{}, len(selected))
			for range selected {
				res := <-resultChannel
				pplnLog.Info().
					Str("config_name", res.ConfigName).
					Msg("Finished pipeline for configuration")
				response[res.ConfigName] = res.Data
			}
			buf, err := json.Marshal(response)
			if err != nil {
				pplnLog.Err(err).Msg("Failed to marshal response")
				responseChan <- errorResponse(err)
				return
			}
			pplnLog.Info().Msg("Finished context pipeline")
			responseChan <- string(buf)
		}()

		return responseChan
	}, nil
}

func selectStages(stages []configStages, names []string) []configStages {
	if len(names) == 0 {
		return stages
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var selected []configStages
	for _, stage := range stages {
		if wanted[stage.classifier.Config.Name] {
			selected = append(selected, stage)
		}
	}
	return selected
}

func errorResponse(err error) string {
	buf, _ := json.Marshal(map[string]string{ErrorAttribute: err.Error()})
	return string(buf)
}

func connect(from <-chan Result, to chan<- Result) {
	go func() {
		for v := range from {
			to <- v
		}
	}()
}
