package fastcontext

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jianlins/FastContext/types"
)

// Assertions maps each modifier asserted about a concept to the trigger
// match asserting it, in the order modifiers were first found.
type Assertions struct {
	set *matchSet
}

func (assertions *Assertions) Get(modifier string) (Match, bool) {
	match, ok := assertions.set.get(modifier)
	if !ok {
		return Match{}, false
	}
	return *match, true
}

func (assertions *Assertions) Has(modifier string) bool {
	_, ok := assertions.set.get(modifier)
	return ok
}

func (assertions *Assertions) Modifiers() []string {
	return append([]string{}, assertions.set.keys...)
}

func (assertions *Assertions) Len() int {
	return len(assertions.set.keys)
}

func (assertions *Assertions) MarshalJSON() ([]byte, error) {
	return marshalOrdered(assertions.set.keys, func(key string) interface{} {
		return assertions.set.matches[key]
	})
}

// MatchContext finds the modifiers that apply to the concept spanning tokens
// conceptBegin..conceptEnd (inclusive). Forward triggers are searched before
// the concept and backward triggers after it, each within its rule window.
func (ruleSet *RuleSet) MatchContext(tokens []*types.Token, conceptBegin int, conceptEnd int) (*Assertions, error) {
	if ruleSet.opts.MaxTokens > 0 && len(tokens) > ruleSet.opts.MaxTokens {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTokens, len(tokens), ruleSet.opts.MaxTokens)
	}
	if conceptBegin < 0 || conceptEnd < conceptBegin || conceptEnd >= len(tokens) {
		return nil, fmt.Errorf("%w: [%d, %d] of %d tokens", ErrConceptOutOfRange, conceptBegin, conceptEnd, len(tokens))
	}
	result := newMatchSet()
	if err := ruleSet.apply(tokens[:conceptBegin], Forward, 0, result); err != nil {
		return nil, err
	}
	if err := ruleSet.apply(tokens[conceptEnd+1:], Backward, conceptEnd+1, result); err != nil {
		return nil, err
	}
	return &Assertions{set: result}, nil
}

// apply matches one side of the concept and keeps the trigger matches that
// look towards the concept and reach it within their window. offset is the
// index of window[0] in the sentence.
func (ruleSet *RuleSet) apply(window []*types.Token, direction Direction, offset int, result *matchSet) error {
	w := ruleSet.newWalker(window)
	if err := w.scan(); err != nil {
		return err
	}
	for _, key := range w.matches.keys {
		match := *w.matches.matches[key]
		rule, err := ruleSet.rule(match.RuleID)
		if err != nil {
			return err
		}
		if rule.TriggerType != Trigger || match.Direction != direction {
			continue
		}
		distance := match.Begin
		if direction == Forward {
			distance = len(window) - match.End
		}
		if distance > rule.WindowSize {
			ruleSet.trace(TraceEvent{Action: TraceDropped, Determinant: key, Reason: "concept is outside of the window", Candidate: match})
			continue
		}
		if window[match.Begin] == nil || window[match.End] == nil {
			return fmt.Errorf("%w: missing token in [%d, %d]", ErrConceptOutOfRange, match.Begin+offset, match.End+offset)
		}
		match.CharBegin = window[match.Begin].Begin
		match.CharEnd = window[match.End].End
		match.Begin += offset
		match.End += offset
		match.WinBegin += offset
		match.WinEnd += offset
		result.put(rule.Modifier, match)
		ruleSet.trace(TraceEvent{Action: TraceKept, Determinant: key, Candidate: match})
	}
	return nil
}

// FeatureValue is the value of a concept feature and the match that set it.
// Default values carry a match with RuleID -1.
type FeatureValue struct {
	Value string `json:"value"`
	Match
}

// Features holds the feature values of a concept in declaration order.
type Features struct {
	names  []string
	values map[string]*FeatureValue
}

func (features *Features) Get(feature string) (FeatureValue, bool) {
	value, ok := features.values[feature]
	if !ok {
		return FeatureValue{}, false
	}
	return *value, true
}

func (features *Features) Names() []string {
	return append([]string(nil), features.names...)
}

func (features *Features) Len() int {
	return len(features.names)
}

// Values projects the features on their value names.
func (features *Features) Values() map[string]string {
	values := make(map[string]string, len(features.names))
	for _, name := range features.names {
		values[name] = features.values[name].Value
	}
	return values
}

func (features *Features) MarshalJSON() ([]byte, error) {
	return marshalOrdered(features.names, func(key string) interface{} {
		return features.values[key]
	})
}

func (features *Features) put(name string, value FeatureValue) {
	if existing, ok := features.values[name]; ok {
		*existing = value
		return
	}
	features.names = append(features.names, name)
	features.values[name] = &value
}

// MatchContextWithFeatures projects the modifiers of a concept onto the
// features declared for its type. Unmatched features keep their default
// value. When two modifiers set the same feature, the one declared later in
// the feature value list wins.
func (ruleSet *RuleSet) MatchContextWithFeatures(tokens []*types.Token, conceptBegin int, conceptEnd int, conceptType string) (*Features, error) {
	if _, ok := ruleSet.schema.features(conceptType, ruleSet.hierarchy); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownConceptType, conceptType)
	}
	assertions, err := ruleSet.MatchContext(tokens, conceptBegin, conceptEnd)
	if err != nil {
		return nil, err
	}
	return ruleSet.ProjectFeatures(assertions, conceptType)
}

// ProjectFeatures is MatchContextWithFeatures for assertions already found.
func (ruleSet *RuleSet) ProjectFeatures(assertions *Assertions, conceptType string) (*Features, error) {
	names, ok := ruleSet.schema.features(conceptType, ruleSet.hierarchy)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownConceptType, conceptType)
	}
	features := &Features{values: make(map[string]*FeatureValue, len(names))}
	for _, name := range names {
		features.put(name, FeatureValue{Value: ruleSet.schema.DefaultValue(name), Match: defaultMatch()})
	}
	for _, modifier := range assertions.set.keys {
		name, ok := ruleSet.schema.FeatureOf(modifier)
		if !ok {
			continue
		}
		if existing, ok := features.values[name]; ok && !existing.IsDefault() {
			if ruleSet.schema.Weight(existing.Value) >= ruleSet.schema.Weight(modifier) {
				continue
			}
		}
		features.put(name, FeatureValue{Value: modifier, Match: *assertions.set.matches[modifier]})
	}
	return features, nil
}

// ModifierValue returns the value a rule assigns to a feature, or the
// feature default for rule id -1.
func (ruleSet *RuleSet) ModifierValue(feature string, ruleID int) (string, error) {
	if ruleID == -1 {
		return ruleSet.schema.DefaultValue(feature), nil
	}
	rule, err := ruleSet.rule(ruleID)
	if err != nil {
		return "", err
	}
	return rule.Modifier, nil
}

func marshalOrdered(keys []string, value func(key string) interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value(key))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
