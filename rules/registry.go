package rules

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jianlins/FastContext/fastcontext"
	"github.com/jianlins/FastContext/metrics"
)

var ErrNotLoaded = errors.New("rules: registry has no rule set")

// Registry holds the active rule set of one configuration. Readers never
// block: Reload compiles a new rule set and swaps it in only on success.
type Registry struct {
	name       string
	location   string
	opts       fastcontext.Options
	downloader Downloader
	metrics    *metrics.Metrics

	current atomic.Pointer[fastcontext.RuleSet]
	report  atomic.Pointer[Report]
	reload  sync.Mutex
}

func NewRegistry(name string, location string, opts fastcontext.Options, downloader Downloader, m *metrics.Metrics) *Registry {
	return &Registry{
		name:       name,
		location:   location,
		opts:       opts,
		downloader: downloader,
		metrics:    m,
	}
}

// Static wraps an already compiled rule set. Reload keeps it as is.
func Static(name string, ruleSet *fastcontext.RuleSet) *Registry {
	registry := &Registry{name: name}
	registry.current.Store(ruleSet)
	registry.report.Store(&Report{Location: name, Rules: ruleSet.Len()})
	return registry
}

func (registry *Registry) Name() string {
	return registry.name
}

func (registry *Registry) Location() string {
	return registry.location
}

// RuleSet returns the active rule set, nil before the first successful load.
func (registry *Registry) RuleSet() *fastcontext.RuleSet {
	return registry.current.Load()
}

// Report describes the last successful load.
func (registry *Registry) Report() Report {
	report := registry.report.Load()
	if report == nil {
		return Report{Location: registry.location}
	}
	return *report
}

// Reload rebuilds the rule set from its location. On failure the previous
// rule set stays active and the error is returned.
func (registry *Registry) Reload() error {
	if registry.location == "" {
		if registry.current.Load() == nil {
			return ErrNotLoaded
		}
		return nil
	}

	registry.reload.Lock()
	defer registry.reload.Unlock()

	ruleSet, report, err := Build(registry.location, registry.opts, registry.downloader)
	if err != nil {
		registry.metrics.ObserveReload(registry.name, metrics.StatusFailure, 0)
		loaderLogger.Error().
			Err(err).
			Str("config", registry.name).
			Str("location", registry.location).
			Bool("keeping_previous", registry.current.Load() != nil).
			Msg("Rule reload failed")
		return err
	}

	previous := registry.current.Swap(ruleSet)
	registry.report.Store(&report)
	registry.metrics.ObserveReload(registry.name, metrics.StatusSuccess, ruleSet.Len())
	if previous != nil && previous.Fingerprint() != ruleSet.Fingerprint() {
		loaderLogger.Info().
			Str("config", registry.name).
			Uint64("fingerprint", ruleSet.Fingerprint()).
			Msg("Rule set replaced")
	}
	return nil
}
