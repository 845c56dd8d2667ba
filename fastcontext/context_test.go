package fastcontext

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jianlins/FastContext/tokenizer"
	"github.com/jianlins/FastContext/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func tokens(text string) []*types.Token {
	return tokenizer.Whitespace(text)
}

// evidence returns the text of the trigger asserting modifier, "" when the
// modifier does not apply.
func evidence(t *testing.T, ruleSet *RuleSet, text string, begin int, end int, modifier string) string {
	t.Helper()
	assertions, err := ruleSet.MatchContext(tokens(text), begin, end)
	require.NoError(t, err)
	match, ok := assertions.Get(modifier)
	if !ok {
		return ""
	}
	return string([]rune(text)[match.CharBegin:match.CharEnd])
}

func TestMatchContext(t *testing.T) {
	testCases := []struct {
		name     string
		rules    []string
		opts     Options
		text     string
		begin    int
		end      int
		modifier string
		evidence string
	}{
		{
			name:     "Backward trigger",
			rules:    []string{"free|backward|trigger|negated|10", "free air|both|pseudo|negated|10"},
			text:     "He is smoke free .",
			begin:    2,
			end:      2,
			modifier: "negated",
			evidence: "free",
		},
		{
			name:     "Pseudo trigger blocks shorter trigger",
			rules:    []string{"free|backward|trigger|negated|10", "free air|both|pseudo|negated|10"},
			text:     "He needs some free air to relax .",
			begin:    6,
			end:      6,
			modifier: "negated",
		},
		{
			name:     "Forward trigger",
			rules:    []string{"may be contributing|both|pseudo|uncertain|30", "may be|forward|trigger|uncertain|30"},
			text:     "The fever may be caused by the infection .",
			begin:    7,
			end:      7,
			modifier: "uncertain",
			evidence: "may be",
		},
		{
			name:     "Longer pseudo trigger replaces trigger",
			rules:    []string{"may be contributing|both|pseudo|uncertain|30", "may be|forward|trigger|uncertain|30"},
			text:     "The infection may be contributing his fever .",
			begin:    6,
			end:      6,
			modifier: "uncertain",
		},
		{
			name:     "Case insensitive pseudo trigger",
			rules:    []string{"history of present illness|forward|pseudo|historical|30", "history of|forward|trigger|historical|30"},
			text:     "History of Present Illness : The patient is a 78-year-old gentleman with abdomen pain .",
			begin:    12,
			end:      13,
			modifier: "historical",
		},
		{
			name:     "Multi token concept",
			rules:    []string{"did have|forward|termination|negated|10", "denied|forward|trigger|negated|30"},
			text:     "He denied any drug abuse, as well as heavy drink history .",
			begin:    8,
			end:      10,
			modifier: "negated",
			evidence: "denied",
		},
		{
			name:     "Forward termination",
			rules:    []string{"did have|forward|termination|negated|10", "denied|forward|trigger|negated|30"},
			text:     "He denied any drug abuse, but did have heavy drink history .",
			begin:    8,
			end:      10,
			modifier: "negated",
		},
		{
			name:     "Historical trigger",
			rules:    []string{"presenting|forward|termination|historical|30", "history of|forward|trigger|historical|30"},
			text:     "The patient is 45 yo male with history of HTN and diabetes .",
			begin:    11,
			end:      11,
			modifier: "historical",
			evidence: "history of",
		},
		{
			name:     "Historical termination",
			rules:    []string{"presenting|forward|termination|historical|30", "history of|forward|trigger|historical|30"},
			text:     "The patient is 45 yo male with history of HTN , presenting with check pain .",
			begin:    13,
			end:      14,
			modifier: "historical",
		},
		{
			name:     "Backward trigger at sentence end",
			rules:    []string{"normal|backward|termination|negated|30", "absent|backward|trigger|negated|30"},
			text:     "The BP is absent",
			begin:    1,
			end:      1,
			modifier: "negated",
			evidence: "absent",
		},
		{
			name:     "Backward termination",
			rules:    []string{"normal|backward|termination|negated|30", "absent|backward|trigger|negated|30"},
			text:     "The BP is normal , R is absent",
			begin:    1,
			end:      1,
			modifier: "negated",
		},
		{
			name:     "Backward termination before trigger of both directions",
			rules:    []string{"not|backward|termination|deep|30", "deep|both|trigger|deep|30"},
			opts:     Options{CaseSensitive: true},
			text:     "The thrombus extends up to the axillary confluence does not enter into the deep venous system",
			begin:    1,
			end:      1,
			modifier: "deep",
		},
		{
			name:     "Literal operator",
			rules:    []string{">|forward|trigger|negated|10", `\> 5|forward|trigger|historical|10`},
			text:     "He is  > 6 smoke.",
			begin:    4,
			end:      4,
			modifier: "negated",
			evidence: ">",
		},
		{
			name:     "Numeric comparison",
			rules:    []string{">|forward|trigger|negated|10", `\> 5|forward|trigger|historical|10`},
			text:     "He is  > 6 smoke.",
			begin:    4,
			end:      4,
			modifier: "historical",
			evidence: "6",
		},
		{
			name:     "Both modifiers",
			rules:    []string{"did have|forward|termination|negated|10", "history of|forward|trigger|historical|30", "denied|forward|trigger|negated|30"},
			text:     "He denied history of smoking .",
			begin:    4,
			end:      4,
			modifier: "negated",
			evidence: "denied",
		},
		{
			name:     "Wider backward trigger wins over termination",
			rules:    []string{"no|backward|termination|negated|10", ": no|backward|trigger|negated|30", "no|forward|trigger|negated|30"},
			text:     "He history of smoking : no .",
			begin:    3,
			end:      3,
			modifier: "negated",
			evidence: ": no",
		},
		{
			name:     "Trigger with larger window wins",
			rules:    []string{"advised|forward|trigger|uncertain|30", "or|both|trigger|uncertain|3"},
			text:     "I advised she resume OCP or take progesterone in some form Depo , IUD , cyclic provera to prevent endometrial cancer.",
			begin:    13,
			end:      13,
			modifier: "uncertain",
			evidence: "advised",
		},
		{
			name:     "Wider trigger",
			rules:    []string{"remove|forward|trigger|removed|30", "does not want to remove|forward|trigger|notremoved|30", "does not want to remove|forward|pseudo|removed|30"},
			text:     "she does not want to remove IUD.",
			begin:    6,
			end:      6,
			modifier: "notremoved",
			evidence: "does not want to remove",
		},
		{
			name:     "Wider pseudo trigger",
			rules:    []string{"remove|forward|trigger|removed|30", "does not want to remove|forward|trigger|notremoved|30", "does not want to remove|forward|pseudo|removed|30"},
			text:     "she does not want to remove IUD.",
			begin:    6,
			end:      6,
			modifier: "removed",
		},
		{
			name:     "Backward current",
			rules:    []string{"currently|both|trigger|current|30", "in the past|both|trigger|historical|30"},
			text:     "no vomiting currently , although she did in the past .",
			begin:    1,
			end:      1,
			modifier: "current",
			evidence: "currently",
		},
		{
			name:     "Backward historical",
			rules:    []string{"currently|both|trigger|current|30", "in the past|both|trigger|historical|30"},
			text:     "no vomiting currently , although she did in the past .",
			begin:    1,
			end:      1,
			modifier: "historical",
			evidence: "in the past",
		},
		{
			name:     "Trigger after termination",
			rules:    []string{"but|both|termination|negated|30", "no|both|trigger|negated|30"},
			text:     "but there is no fever.",
			begin:    4,
			end:      4,
			modifier: "negated",
			evidence: "no",
		},
		{
			name:     "Termination inside trigger",
			rules:    []string{"concern for|forward|trigger|uncertain|30", "for|forward|termination|uncertain|30"},
			text:     "There is a concern for skin infection.",
			begin:    5,
			end:      6,
			modifier: "uncertain",
			evidence: "concern for",
		},
		{
			name:     "Outside of window",
			rules:    []string{"denied|forward|trigger|negated|2"},
			text:     "He denied that he has any fever",
			begin:    6,
			end:      6,
			modifier: "negated",
		},
		{
			name:     "Any word",
			rules:    []string{`no \w+ of|forward|trigger|negated|8`},
			text:     "no sign of pneumonia",
			begin:    3,
			end:      3,
			modifier: "negated",
			evidence: "no sign of",
		},
		{
			name:     "Upper case word",
			rules:    []string{`\W+ positive|backward|trigger|confirmed|4`},
			text:     "sample HIV positive",
			begin:    0,
			end:      0,
			modifier: "confirmed",
			evidence: "HIV positive",
		},
		{
			name:     "Upper case word matches any word when case is ignored",
			rules:    []string{`\W+ positive|backward|trigger|confirmed|4`},
			text:     "sample hiv positive",
			begin:    0,
			end:      0,
			modifier: "confirmed",
			evidence: "hiv positive",
		},
		{
			name:     "Upper case word when case sensitive",
			rules:    []string{`\W+ positive|backward|trigger|confirmed|4`},
			opts:     Options{CaseSensitive: true},
			text:     "sample HIV positive",
			begin:    0,
			end:      0,
			modifier: "confirmed",
			evidence: "HIV positive",
		},
		{
			name:     "Upper case word does not match lower case when case sensitive",
			rules:    []string{`\W+ positive|backward|trigger|confirmed|4`},
			opts:     Options{CaseSensitive: true},
			text:     "sample hiv positive",
			begin:    0,
			end:      0,
			modifier: "confirmed",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ruleSet := compileRules(t, testCase.opts, testCase.rules...)
			got := evidence(t, ruleSet, testCase.text, testCase.begin, testCase.end, testCase.modifier)
			require.Equal(t, testCase.evidence, got)
		})
	}
}

func TestWindowBoundary(t *testing.T) {
	testCases := []struct {
		name     string
		rule     string
		text     string
		concept  int
		evidence string
	}{
		{
			name:     "Forward at window size",
			rule:     "denied|forward|trigger|negated|2",
			text:     "He denied any fever",
			concept:  3,
			evidence: "denied",
		},
		{
			name:    "Forward one past window size",
			rule:    "denied|forward|trigger|negated|2",
			text:    "He denied any old fever",
			concept: 4,
		},
		{
			name:     "Backward at window size",
			rule:     "free|backward|trigger|negated|2",
			text:     "smoke is now free",
			concept:  0,
			evidence: "free",
		},
		{
			name:    "Backward one past window size",
			rule:    "free|backward|trigger|negated|2",
			text:    "smoke is now totally free",
			concept: 0,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ruleSet := compileRules(t, Options{}, testCase.rule)
			got := evidence(t, ruleSet, testCase.text, testCase.concept, testCase.concept, "negated")
			require.Equal(t, testCase.evidence, got)
		})
	}
}

func TestBothExpansion(t *testing.T) {
	both := compileRules(t, Options{}, "denied|both|trigger|negated|5")
	pair := compileRules(t, Options{}, "denied|forward|trigger|negated|5", "denied|backward|trigger|negated|5")

	testCases := []struct {
		text    string
		concept int
	}{
		{text: "He denied fever", concept: 2},
		{text: "fever denied by patient", concept: 0},
		{text: "patient denied fever denied", concept: 2},
		{text: "patient reports fever", concept: 2},
	}

	for _, testCase := range testCases {
		t.Run(testCase.text, func(t *testing.T) {
			want, err := pair.MatchContext(tokens(testCase.text), testCase.concept, testCase.concept)
			require.NoError(t, err)
			got, err := both.MatchContext(tokens(testCase.text), testCase.concept, testCase.concept)
			require.NoError(t, err)

			require.Equal(t, want.Modifiers(), got.Modifiers())
			for _, modifier := range want.Modifiers() {
				wantMatch, _ := want.Get(modifier)
				gotMatch, ok := got.Get(modifier)
				require.True(t, ok)
				// rule ids differ, the expanded rule is a single record
				wantMatch.RuleID, gotMatch.RuleID = 0, 0
				require.Equal(t, wantMatch, gotMatch)
			}
		})
	}
}

func TestMatchContextEvidence(t *testing.T) {
	ruleSet := compileRules(t, Options{},
		"denied|forward|trigger|negated|30",
		"although|forward|termination|negated|10",
	)
	text := "The patient denied any fever , although he complained some headache ."

	assertions, err := ruleSet.MatchContext(tokens(text), 4, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"negated"}, assertions.Modifiers())
	match, ok := assertions.Get("negated")
	require.True(t, ok)
	require.Equal(t, 2, match.Begin)
	require.Equal(t, 2, match.End)
	require.Equal(t, 0, match.RuleID)
	require.Equal(t, int32(12), match.CharBegin)
	require.Equal(t, int32(18), match.CharEnd)
	require.Equal(t, Forward, match.Direction)

	buf, err := assertions.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"negated": {"token_begin": 2, "token_end": 2, "direction": "forward", "rule_id": 0, "begin": 12, "end": 18}}`, string(buf))

	assertions, err = ruleSet.MatchContext(tokens(text), 10, 10)
	require.NoError(t, err)
	require.Zero(t, assertions.Len())
	require.False(t, assertions.Has("negated"))
}

func TestMatchContextOffsets(t *testing.T) {
	ruleSet := compileRules(t, Options{}, "mother|forward|trigger|nonpatient|10", "ruled out|backward|trigger|negated|5")
	sent := types.Sentence{Span: types.NewSpan("His mother has asthma , ruled out", 100, 133)}
	require.NoError(t, tokenizer.NewWhitespace()(&sent))

	assertions, err := ruleSet.MatchContext(sent.Tokens, 3, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"nonpatient", "negated"}, assertions.Modifiers())

	nonpatient, _ := assertions.Get("nonpatient")
	require.Equal(t, 1, nonpatient.Begin)
	require.Equal(t, int32(104), nonpatient.CharBegin)
	require.Equal(t, int32(110), nonpatient.CharEnd)

	negated, _ := assertions.Get("negated")
	require.Equal(t, 5, negated.Begin)
	require.Equal(t, 6, negated.End)
	require.Equal(t, Backward, negated.Direction)
	require.Equal(t, int32(124), negated.CharBegin)
	require.Equal(t, int32(133), negated.CharEnd)
}

func TestMatchContextNumbers(t *testing.T) {
	ruleSet := compileRules(t, Options{},
		`\> 14 days ago|backward|trigger|historical|4`,
		`\> 2 \< 5 mg|backward|trigger|lowdose|4`,
	)
	testCases := []struct {
		text     string
		modifier string
		evidence string
	}{
		{"fever 20 days ago", "historical", "20 days ago"},
		{"fever 10 days ago", "historical", ""},
		{"fever 30-days ago", "historical", "30-days ago"},
		{"fever 20000 days ago", "historical", "20000 days ago"},
		{"aspirin 3 mg", "lowdose", "3 mg"},
		{"aspirin 2 mg", "lowdose", ""},
		{"aspirin 7 mg", "lowdose", ""},
	}
	for _, testCase := range testCases {
		t.Run(testCase.text, func(t *testing.T) {
			require.Equal(t, testCase.evidence, evidence(t, ruleSet, testCase.text, 0, 0, testCase.modifier))
		})
	}
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		token  string
		value  float64
		suffix string
		ok     bool
	}{
		{"6", 6, "", true},
		{"2.5", 2.5, "", true},
		{"30-days", 30, "days", true},
		{"999", 999, "", true},
		{"1234", 1000, "", true},
		{"20000-mg", 1000, "mg", true},
		{"mg", 0, "", false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.token, func(t *testing.T) {
			value, suffix, ok := parseNumber(testCase.token)
			require.Equal(t, testCase.ok, ok)
			require.Equal(t, testCase.value, value)
			require.Equal(t, testCase.suffix, suffix)
		})
	}
}

func TestSkipBlankTokens(t *testing.T) {
	records := []string{"no evidence|forward|trigger|negated|8"}
	sentence := types.NewTokens("no", " ", "evidence", "pneumonia")

	assertions, err := compileRules(t, Options{}, records...).MatchContext(sentence, 3, 3)
	require.NoError(t, err)
	require.False(t, assertions.Has("negated"))

	assertions, err = compileRules(t, Options{SkipBlankTokens: true}, records...).MatchContext(sentence, 3, 3)
	require.NoError(t, err)
	match, ok := assertions.Get("negated")
	require.True(t, ok)
	require.Equal(t, 0, match.Begin)
	require.Equal(t, 2, match.End)
}

func TestSkipBlankTokensLeading(t *testing.T) {
	ruleSet := compileRules(t, Options{SkipBlankTokens: true}, "no evidence|forward|trigger|negated|8")
	sentence := types.NewTokens(" ", "no", "evidence", "pneumonia")

	assertions, err := ruleSet.MatchContext(sentence, 3, 3)
	require.NoError(t, err)
	match, ok := assertions.Get("negated")
	require.True(t, ok)
	// a walk starting on the blank token keeps it in the span
	require.Equal(t, 0, match.Begin)
	require.Equal(t, 2, match.End)
	require.Equal(t, int32(0), match.CharBegin)
	require.Equal(t, int32(3), match.CharEnd)
}

func TestMatchContextErrors(t *testing.T) {
	ruleSet := compileRules(t, Options{MaxTokens: 4}, "denied|forward|trigger|negated|8")
	sentence := tokens("He denied any fever")

	for _, span := range [][2]int{{-1, 0}, {2, 1}, {0, 4}} {
		_, err := ruleSet.MatchContext(sentence, span[0], span[1])
		require.ErrorIs(t, err, ErrConceptOutOfRange)
	}

	_, err := ruleSet.MatchContext(tokens("He denied any fever today"), 3, 3)
	require.ErrorIs(t, err, ErrTooManyTokens)
}

func TestTrace(t *testing.T) {
	var events []TraceEvent
	records := []string{"denied|forward|trigger|negated|30", "although|forward|termination|negated|10"}
	defs, _ := ParseRules(records...)
	ruleSet, err := Compile(defs, Options{Trace: true, Tracer: func(event TraceEvent) {
		events = append(events, event)
	}})
	require.NoError(t, err)

	_, err = ruleSet.MatchContext(tokens("The patient denied any fever , although he complained some headache ."), 10, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, TraceInserted, events[0].Action)
	require.Equal(t, "forward_negated", events[0].Determinant)
	require.Equal(t, TraceReplaced, events[1].Action)
	require.Equal(t, 1, events[1].Candidate.RuleID)
	require.NotNil(t, events[1].Existing)
	require.Equal(t, 0, events[1].Existing.RuleID)

	events = nil
	_, err = ruleSet.MatchContext(tokens("He denied fever"), 2, 2)
	require.NoError(t, err)
	require.Equal(t, []TraceAction{TraceInserted, TraceKept}, []TraceAction{events[0].Action, events[1].Action})

	events = nil
	ruleSet, err = Compile(defs, Options{Tracer: func(event TraceEvent) {
		events = append(events, event)
	}})
	require.NoError(t, err)
	_, err = ruleSet.MatchContext(tokens("He denied fever"), 2, 2)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestTraceDropped(t *testing.T) {
	var events []TraceEvent
	defs, _ := ParseRules("denied|forward|trigger|negated|2")
	ruleSet, err := Compile(defs, Options{Trace: true, Tracer: func(event TraceEvent) {
		events = append(events, event)
	}})
	require.NoError(t, err)

	_, err = ruleSet.MatchContext(tokens("He denied that he has any fever"), 6, 6)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, TraceDropped, events[1].Action)
	require.NotEmpty(t, events[1].Reason)
}

func TestMatchContextConcurrent(t *testing.T) {
	ruleSet := compileRules(t, Options{},
		"denied|forward|trigger|negated|30",
		"although|forward|termination|negated|10",
		"history of|forward|trigger|historical|30",
	)
	texts := []string{
		"The patient denied any fever , although he complained some headache .",
		"He denied history of smoking .",
	}
	want := make([][]string, len(texts))
	for i, text := range texts {
		assertions, err := ruleSet.MatchContext(tokens(text), 4, 4)
		require.NoError(t, err)
		want[i] = assertions.Modifiers()
	}

	var mu sync.Mutex
	var mismatches []string
	var group errgroup.Group
	for n := 0; n < 64; n++ {
		n := n
		group.Go(func() error {
			i := n % len(texts)
			assertions, err := ruleSet.MatchContext(tokens(texts[i]), 4, 4)
			if err != nil {
				return err
			}
			if fmt.Sprint(assertions.Modifiers()) != fmt.Sprint(want[i]) {
				mu.Lock()
				mismatches = append(mismatches, texts[i])
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())
	require.Empty(t, mismatches)
}
