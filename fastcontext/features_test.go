package fastcontext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var schemaRecords = []string{
	"@CONCEPT_FEATURES|Concept|Negation|Certainty|Temporality|Experiencer",
	"@FEATURE_VALUES|Negation|affirm|negated",
	"@FEATURE_VALUES|Certainty|certain|uncertain",
	"@FEATURE_VALUES|Temporality|present|historical|hypothetical",
	"@FEATURE_VALUES|Experiencer|patient|nonpatient",
}

func withSchema(records ...string) []string {
	return append(append([]string(nil), schemaRecords...), records...)
}

func TestMatchContextWithFeatures(t *testing.T) {
	ruleSet := compileRules(t, Options{}, withSchema(
		"denied|forward|trigger|negated|30",
		"although|forward|termination|negated|10",
	)...)
	text := "The patient denied any fever , although he complained some headache ."

	features, err := ruleSet.MatchContextWithFeatures(tokens(text), 4, 4, "Concept")
	require.NoError(t, err)
	require.Equal(t, []string{"Negation", "Certainty", "Temporality", "Experiencer"}, features.Names())
	require.Equal(t, map[string]string{
		"Negation":    "negated",
		"Certainty":   "certain",
		"Temporality": "present",
		"Experiencer": "patient",
	}, features.Values())

	negation, ok := features.Get("Negation")
	require.True(t, ok)
	require.Equal(t, 5, negation.RuleID)
	require.Equal(t, int32(12), negation.CharBegin)
	require.Equal(t, int32(18), negation.CharEnd)
	for _, name := range []string{"Certainty", "Temporality", "Experiencer"} {
		value, ok := features.Get(name)
		require.True(t, ok)
		require.True(t, value.IsDefault(), name)
		require.Equal(t, -1, value.RuleID)
	}

	features, err = ruleSet.MatchContextWithFeatures(tokens(text), 10, 10, "Concept")
	require.NoError(t, err)
	require.Equal(t, "affirm", features.Values()["Negation"])

	_, err = ruleSet.MatchContextWithFeatures(tokens(text), 4, 4, "Drug")
	require.ErrorIs(t, err, ErrUnknownConceptType)
}

func TestFeaturePriority(t *testing.T) {
	ruleSet := compileRules(t, Options{}, withSchema(
		"history of|forward|trigger|historical|30",
		"if|forward|trigger|hypothetical|10",
	)...)

	for _, text := range []string{"if history of fever", "history of if fever"} {
		t.Run(text, func(t *testing.T) {
			features, err := ruleSet.MatchContextWithFeatures(tokens(text), 3, 3, "Concept")
			require.NoError(t, err)
			require.Equal(t, "hypothetical", features.Values()["Temporality"])
		})
	}
}

func TestFeatureTypeHierarchy(t *testing.T) {
	records := withSchema(
		"@CONCEPT_FEATURES|Drug|Negation",
		"@CONCEPT_FEATURES|ANY|Experiencer",
		"mother|forward|trigger|nonpatient|10",
		"no|forward|trigger|negated|8",
	)
	ruleSet := compileRules(t, Options{TypeHierarchy: map[string]string{"Fever": "Concept", "Cough": "Symptom"}}, records...)
	sentence := tokens("mother has no fever")

	assertions, err := ruleSet.MatchContext(sentence, 3, 3)
	require.NoError(t, err)

	testCases := []struct {
		conceptType string
		values      map[string]string
	}{
		{"Fever", map[string]string{"Negation": "negated", "Certainty": "certain", "Temporality": "present", "Experiencer": "nonpatient"}},
		{"Drug", map[string]string{"Negation": "negated", "Experiencer": "nonpatient"}},
		{"Cough", map[string]string{"Experiencer": "nonpatient"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.conceptType, func(t *testing.T) {
			features, err := ruleSet.ProjectFeatures(assertions, testCase.conceptType)
			require.NoError(t, err)
			require.Equal(t, testCase.values, features.Values())
		})
	}

	features, err := ruleSet.ProjectFeatures(assertions, "Drug")
	require.NoError(t, err)
	require.Equal(t, []string{"Negation", "Experiencer"}, features.Names())
}

func TestModifierValue(t *testing.T) {
	ruleSet := compileRules(t, Options{}, withSchema("denied|forward|trigger|negated|30")...)

	value, err := ruleSet.ModifierValue("Negation", -1)
	require.NoError(t, err)
	require.Equal(t, "affirm", value)

	value, err = ruleSet.ModifierValue("Negation", 5)
	require.NoError(t, err)
	require.Equal(t, "negated", value)

	_, err = ruleSet.ModifierValue("Negation", 42)
	require.ErrorIs(t, err, ErrUnknownRule)
}

func TestSchema(t *testing.T) {
	ruleSet := compileRules(t, Options{}, withSchema("denied|forward|trigger|negated|30")...)
	schema := ruleSet.Schema()

	require.Equal(t, []string{"Concept"}, schema.ConceptTypes())
	feature, ok := schema.FeatureOf("hypothetical")
	require.True(t, ok)
	require.Equal(t, "Temporality", feature)
	require.Equal(t, 0, schema.Weight("present"))
	require.Equal(t, 2, schema.Weight("hypothetical"))
	require.Equal(t, 1, schema.Weight("nonpatient"))

	// the copy does not leak into the rule set
	schema.DeclareValues("Negation", "maybe")
	require.Equal(t, "affirm", ruleSet.Schema().DefaultValue("Negation"))
}
