package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfiguration(t *testing.T) {
	buf := []byte(`
rules: rules/general.txt
case_sensitive: true
skip_blank_tokens: true
max_tokens: 120
tokenizer: chars
type_hierarchy:
  Fever: Concept
negation_modifiers: [negated, absent]
features: [features, polarity]
`)
	cfg, err := ParseConfiguration("general", "/etc/fastcontext", buf)
	require.NoError(t, err)
	require.Equal(t, Configuration{
		Name:              "general",
		FilePath:          "/etc/fastcontext/general.yaml",
		Rules:             "/etc/fastcontext/rules/general.txt",
		CaseSensitive:     true,
		SkipBlankTokens:   true,
		MaxTokens:         120,
		Tokenizer:         TokenizerChars,
		TypeHierarchy:     map[string]string{"Fever": "Concept"},
		NegationModifiers: []string{"negated", "absent"},
		Features:          []string{FeaturesAttributes, PolarityAttributes},
	}, cfg)
	require.True(t, cfg.CheckFeature(PolarityAttributes))
	require.False(t, cfg.CheckFeature("lemmas"))
	require.Equal(t, map[string]bool{"negated": true, "absent": true}, cfg.Negations())
}

func TestParseConfigurationRules(t *testing.T) {
	for _, rules := range []string{"s3://rules/general.txt", "/abs/general.txt"} {
		cfg, err := ParseConfiguration("general", "/etc/fastcontext", []byte("rules: "+rules))
		require.NoError(t, err)
		require.Equal(t, rules, cfg.Rules)
		require.Equal(t, map[string]bool{"negated": true}, cfg.Negations())
	}

	_, err := ParseConfiguration("general", "/etc/fastcontext", []byte("case_sensitive: true"))
	require.ErrorIs(t, err, ErrNoRules)

	_, err = ParseConfiguration("general", "/etc/fastcontext", []byte("rules: default\ntokenizer: bpe"))
	require.ErrorIs(t, err, ErrUnknownTokenizer)

	_, err = ParseConfiguration("general", "/etc/fastcontext", []byte("rules: [a"))
	require.Error(t, err)
}

func TestLoadConfigurations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"radiology.yaml": "rules: s3://rules/radiology.txt\n",
		"general.yaml":   "rules: default\nfeatures: [polarity]\n",
		"broken.yaml":    "tokenizer: bpe\n",
		"notes.txt":      "rules: default\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	cfgs, err := LoadConfigurations(dir)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	require.Equal(t, "general", cfgs[0].Name)
	require.Equal(t, DefaultRules, cfgs[0].Rules)
	require.Equal(t, "radiology", cfgs[1].Name)

	_, err = LoadConfigurations(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestSpan(t *testing.T) {
	sent := Sentence{Span: NewSpan("denies chest pain", 10, 27)}
	text, ok := Span{Begin: 17, End: 27}.GetTextFromSentence(&sent)
	require.True(t, ok)
	require.Equal(t, "chest pain", text)

	_, ok = Span{Begin: 5, End: 12}.GetTextFromSentence(&sent)
	require.False(t, ok)

	require.True(t, sent.Covers(Span{Begin: 10, End: 16}))
	require.False(t, sent.Covers(Span{Begin: 20, End: 30}))
	require.True(t, sent.Overlaps(Span{Begin: 20, End: 30}))
}

func TestPolarity(t *testing.T) {
	negations := map[string]bool{"negated": true}
	require.Equal(t, PolarityNegative, PolarityOf([]string{"historical", "negated"}, negations))
	require.Equal(t, PolarityPositive, PolarityOf([]string{"historical"}, negations))
	require.Equal(t, PolarityNeutral, PolarityOf([]string{"negated"}, nil))
	require.Equal(t, "negative", PolarityNegative.Name())
	require.Equal(t, "neutral", PolarityNeutral.Name())
}
