package fastcontext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func compileRules(t *testing.T, opts Options, records ...string) *RuleSet {
	t.Helper()
	defs, issues := ParseRules(records...)
	require.Empty(t, issues)
	ruleSet, err := Compile(defs, opts)
	require.NoError(t, err)
	return ruleSet
}

func TestCompile(t *testing.T) {
	ruleSet := compileRules(t, Options{},
		"denied|forward|trigger|negated|30",
		"although|forward|termination|negated|10",
		"free air|both|pseudo|negated|10",
	)
	require.Equal(t, 3, ruleSet.Len())
	require.Empty(t, ruleSet.Warnings())
	require.False(t, ruleSet.CaseSensitive())

	rule, ok := ruleSet.Rule(2)
	require.True(t, ok)
	require.Equal(t, Both, rule.Direction)
	_, ok = ruleSet.Rule(3)
	require.False(t, ok)

	patterns := make([]string, 0, ruleSet.Len())
	for _, rule := range ruleSet.Rules() {
		patterns = append(patterns, rule.Pattern)
	}
	require.Equal(t, []string{"denied", "although", "free air"}, patterns)
}

func TestCompileWarnings(t *testing.T) {
	defs, issues := ParseRules(
		"@CONCEPT_FEATURES|Concept|Negation",
		"@FEATURE_VALUES|Negation|affirm|negated",
		"denied|forward|trigger|negated|30",
		"denied|forward|trigger|uncertain|30",
		"denied|forward|pseudo|negated|30",
		`\> |forward|trigger|negated|30`,
	)
	require.Empty(t, issues)
	ruleSet, err := Compile(defs, Options{})
	require.NoError(t, err)

	warnings := ruleSet.Warnings()
	require.Len(t, warnings, 3)
	require.ErrorIs(t, warnings[0], ErrUndeclaredModifier)
	require.ErrorIs(t, warnings[1], ErrDuplicateDeterminant)
	require.ErrorIs(t, warnings[2], ErrMalformedRule)

	// the later record owns the determinant
	assertions, err := ruleSet.MatchContext(tokens("He denied fever"), 2, 2)
	require.NoError(t, err)
	require.False(t, assertions.Has("negated"))
}

func TestCompileEmpty(t *testing.T) {
	_, err := Compile(Definitions{}, Options{})
	require.ErrorIs(t, err, ErrEmptyRuleSet)

	defs, _ := ParseRules("@FEATURE_VALUES|Negation|affirm|negated", "denied|forward|trigger|maybe|30")
	_, err = Compile(defs, Options{})
	require.ErrorIs(t, err, ErrEmptyRuleSet)
}

func TestFingerprint(t *testing.T) {
	records := []string{"denied|forward|trigger|negated|30", "although|forward|termination|negated|10"}
	first := compileRules(t, Options{}, records...)
	second := compileRules(t, Options{}, records...)
	require.Equal(t, first.Fingerprint(), second.Fingerprint())

	caseSensitive := compileRules(t, Options{CaseSensitive: true}, records...)
	require.NotEqual(t, first.Fingerprint(), caseSensitive.Fingerprint())

	other := compileRules(t, Options{}, "denied|forward|trigger|negated|20", records[1])
	require.NotEqual(t, first.Fingerprint(), other.Fingerprint())

	withHierarchy := compileRules(t, Options{TypeHierarchy: map[string]string{"Fever": "Concept"}}, records...)
	require.NotEqual(t, first.Fingerprint(), withHierarchy.Fingerprint())
}

func TestCompileRules(t *testing.T) {
	ruleSet, err := CompileRules([]Rule{
		{ID: 0, Pattern: "Denied", Direction: Forward, TriggerType: Trigger, Modifier: "negated", WindowSize: 5},
	}, true)
	require.NoError(t, err)

	assertions, err := ruleSet.MatchContext(tokens("He denied fever"), 2, 2)
	require.NoError(t, err)
	require.Zero(t, assertions.Len())

	assertions, err = ruleSet.MatchContext(tokens("He Denied fever"), 2, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"negated"}, assertions.Modifiers())
}
