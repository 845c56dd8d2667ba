package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jianlins/FastContext/fastcontext"
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/redis"
	"github.com/jianlins/FastContext/rules"
	"github.com/jianlins/FastContext/types"
	"github.com/jianlins/FastContext/utils"
	"golang.org/x/sync/errgroup"
)

const (
	AssertionsAttribute = "assertions"
	FeaturesAttribute   = types.FeaturesAttributes
	PolarityAttribute   = types.PolarityAttributes
)

type DetectorParams struct {
	Registry *rules.Registry
	Config   types.Configuration
	Cache    *redis.ResultCache
	Metrics  *metrics.Metrics
	// Parallelism bounds the concepts of a batch classified at once.
	Parallelism int
}

// Classification is the context of one concept, as cached and as attached
// to its annotation.
type Classification struct {
	Modifiers  []string        `json:"modifiers"`
	Assertions json.RawMessage `json:"assertions"`
	Features   json.RawMessage `json:"features,omitempty"`
}

// NewContextDetector attaches the assertions, and when configured the
// features and polarity, to every located annotation. A concept that cannot
// be classified gets an error attribute and does not stop the others.
func NewContextDetector(params DetectorParams) func(ctx context.Context, in <-chan []types.Annotation) <-chan []types.Annotation {
	log := logger.NewLogger("Context detector").With().Str("config_name", params.Config.Name).Logger()
	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	withFeatures := params.Config.CheckFeature(FeaturesAttribute)
	withPolarity := params.Config.CheckFeature(PolarityAttribute)
	negations := params.Config.Negations()

	return func(ctx context.Context, in <-chan []types.Annotation) <-chan []types.Annotation {
		out := make(chan []types.Annotation)
		go func() {
			defer close(out)
			for annotations := range in {
				group, groupCtx := errgroup.WithContext(ctx)
				group.SetLimit(parallelism)
				for i := range annotations {
					ann := &annotations[i]
					if ann.Sentence == nil {
						continue
					}
					group.Go(func() error {
						if err := groupCtx.Err(); err != nil {
							return err
						}
						started := time.Now()
						result, err := classify(groupCtx, params, ann, withFeatures)
						if err != nil {
							log.Warn().Err(err).Int("concept", ann.ID).Msg("Failed to classify concept")
							ann.Attributes[ErrorAttribute] = err.Error()
							params.Metrics.ObserveClassification(params.Config.Name, metrics.StatusError, nil, time.Since(started))
							return nil
						}
						ann.Attributes[AssertionsAttribute] = result.Assertions
						if withFeatures && len(result.Features) > 0 {
							ann.Attributes[FeaturesAttribute] = result.Features
						}
						if withPolarity {
							ann.Attributes[PolarityAttribute] = types.PolarityOf(result.Modifiers, negations).Name()
						}
						params.Metrics.ObserveClassification(params.Config.Name, metrics.StatusSuccess, result.Modifiers, time.Since(started))
						return nil
					})
				}
				if err := group.Wait(); err != nil {
					log.Warn().Err(err).Msg("Context detection interrupted")
				}
				out <- annotations
			}
		}()
		return out
	}
}

func classify(ctx context.Context, params DetectorParams, ann *types.Annotation, withFeatures bool) (result Classification, err error) {
	defer utils.RecoverWithError(&err)
	ruleSet := params.Registry.RuleSet()
	if ruleSet == nil {
		return result, rules.ErrNotLoaded
	}
	tokens := ann.Sentence.Tokens
	conceptType := ""
	if withFeatures {
		conceptType = ann.GetName()
	}
	key := redis.ResultKey(ruleSet.Fingerprint(), tokens, ann.TokenBegin, ann.TokenEnd, conceptType)
	buf, err := params.Cache.GetOrCompute(ctx, key, func() ([]byte, error) {
		computed, err := compute(ruleSet, tokens, ann.TokenBegin, ann.TokenEnd, conceptType)
		if err != nil {
			return nil, err
		}
		return json.Marshal(computed)
	})
	if err != nil {
		return result, err
	}
	if err = json.Unmarshal(buf, &result); err != nil {
		return result, fmt.Errorf("pipeline: decoding classification: %w", err)
	}
	return result, nil
}

// compute classifies a concept. Features are left out for an empty type or
// a type the rules declare no features for.
func compute(ruleSet *fastcontext.RuleSet, tokens []*types.Token, begin int, end int, conceptType string) (Classification, error) {
	assertions, err := ruleSet.MatchContext(tokens, begin, end)
	if err != nil {
		return Classification{}, err
	}
	result := Classification{Modifiers: assertions.Modifiers()}
	if result.Assertions, err = json.Marshal(assertions); err != nil {
		return Classification{}, err
	}
	if conceptType == "" {
		return result, nil
	}
	features, err := ruleSet.ProjectFeatures(assertions, conceptType)
	if errors.Is(err, fastcontext.ErrUnknownConceptType) {
		return result, nil
	}
	if err != nil {
		return Classification{}, err
	}
	if result.Features, err = json.Marshal(features); err != nil {
		return Classification{}, err
	}
	return result, nil
}
