package fastcontext

import "github.com/rs/zerolog"

type TraceAction string

const (
	TraceInserted TraceAction = "inserted"
	TraceReplaced TraceAction = "replaced"
	TraceRejected TraceAction = "rejected"
	TraceKept     TraceAction = "kept"
	TraceDropped  TraceAction = "dropped"
)

// TraceEvent describes one decision of match resolution or of applying
// matches to a concept.
type TraceEvent struct {
	Action      TraceAction
	Determinant string
	Reason      string
	Candidate   Match
	Existing    *Match
}

// Tracer receives trace events when Options.Trace is set.
type Tracer func(event TraceEvent)

// LogTracer writes trace events at debug level.
func LogTracer(log zerolog.Logger) Tracer {
	return func(event TraceEvent) {
		entry := log.Debug().
			Str("action", string(event.Action)).
			Str("determinant", event.Determinant).
			Int("rule_id", event.Candidate.RuleID).
			Int("begin", event.Candidate.Begin).
			Int("end", event.Candidate.End).
			Int("win_begin", event.Candidate.WinBegin).
			Int("win_end", event.Candidate.WinEnd)
		if event.Existing != nil {
			entry = entry.Int("existing_rule_id", event.Existing.RuleID).
				Int("existing_begin", event.Existing.Begin).
				Int("existing_end", event.Existing.End)
		}
		if event.Reason != "" {
			entry = entry.Str("reason", event.Reason)
		}
		entry.Msg("Context resolution")
	}
}

func (ruleSet *RuleSet) trace(event TraceEvent) {
	if ruleSet.opts.Tracer != nil {
		ruleSet.opts.Tracer(event)
	}
}
