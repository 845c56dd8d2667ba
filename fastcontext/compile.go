package fastcontext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/utils"
)

var compilerLogger = logger.NewLogger("Rule compiler")

type Options struct {
	CaseSensitive bool
	// SkipBlankTokens steps over whitespace-only tokens without consuming a
	// pattern token, as annotation tokenizers may emit them.
	SkipBlankTokens bool
	// MaxTokens rejects sentences longer than this, 0 disables the check.
	MaxTokens int
	// TypeHierarchy maps a concept type to its parent type.
	TypeHierarchy map[string]string
	Trace         bool
	Tracer        Tracer
}

// RuleSet is a compiled, read-only rule table. It is safe for concurrent use.
type RuleSet struct {
	rules       map[int]*Rule
	order       []int
	trie        *trie
	schema      *Schema
	hierarchy   map[string]string
	opts        Options
	warnings    []error
	fingerprint uint64
}

// CompileRules compiles rules without a feature schema.
func CompileRules(rules []Rule, caseSensitive bool) (*RuleSet, error) {
	return Compile(Definitions{Rules: rules}, Options{CaseSensitive: caseSensitive})
}

// Compile builds the rule trie. Records that cannot be compiled are skipped
// and reported by Warnings; only a rule set without any usable rule fails.
func Compile(defs Definitions, opts Options) (*RuleSet, error) {
	schema := NewSchema()
	if defs.Schema != nil {
		schema = defs.Schema.clone()
	}
	schema.computeWeights()

	ruleSet := &RuleSet{
		rules:     make(map[int]*Rule, len(defs.Rules)),
		trie:      newTrie(),
		schema:    schema,
		hierarchy: make(map[string]string, len(opts.TypeHierarchy)),
		opts:      opts,
	}
	for child, parent := range opts.TypeHierarchy {
		ruleSet.hierarchy[child] = parent
	}
	ruleSet.opts.TypeHierarchy = nil
	if ruleSet.opts.Tracer == nil || !ruleSet.opts.Trace {
		ruleSet.opts.Tracer = nil
	}

	for _, rule := range defs.Rules {
		if err := ruleSet.add(rule); err != nil {
			ruleSet.warnings = append(ruleSet.warnings, err)
		}
	}
	for _, warning := range ruleSet.warnings {
		compilerLogger.Debug().Err(warning).Msg("Rule skipped or overwritten")
	}
	if len(ruleSet.order) == 0 {
		return nil, ErrEmptyRuleSet
	}
	ruleSet.fingerprint = ruleSet.computeFingerprint()
	compilerLogger.Debug().
		Int("rules", len(ruleSet.order)).
		Int("nodes", len(ruleSet.trie.nodes)).
		Int("warnings", len(ruleSet.warnings)).
		Msg("Compiled rule set")
	return ruleSet, nil
}

func (ruleSet *RuleSet) add(rule Rule) error {
	if _, exists := ruleSet.rules[rule.ID]; exists {
		return fmt.Errorf("%w: duplicated rule id %d", ErrMalformedRule, rule.ID)
	}
	if ruleSet.schema.HasValues() {
		if _, ok := ruleSet.schema.FeatureOf(rule.Modifier); !ok {
			return fmt.Errorf("%w: rule %d %q", ErrUndeclaredModifier, rule.ID, rule.Modifier)
		}
	}
	if rule.Direction > Both || rule.TriggerType > Terminal {
		return fmt.Errorf("%w: rule %d has an invalid direction or trigger type", ErrMalformedRule, rule.ID)
	}
	if rule.WindowSize < 0 {
		return fmt.Errorf("%w: rule %d has a negative window", ErrMalformedRule, rule.ID)
	}
	tokens, err := compilePattern(rule.Pattern, ruleSet.opts.CaseSensitive)
	if err != nil {
		return fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	stored := rule
	ruleSet.rules[rule.ID] = &stored
	ruleSet.order = append(ruleSet.order, rule.ID)

	at := nodeID(0)
	for _, token := range tokens {
		at = ruleSet.trie.extend(at, token)
	}
	directions := []Direction{rule.Direction}
	if rule.Direction == Both {
		directions = []Direction{Forward, Backward}
	}
	var overwritten []string
	for _, direction := range directions {
		key := determinant(direction, rule.Modifier)
		if previous, replaced := ruleSet.trie.bind(at, key, rule.ID); replaced {
			overwritten = append(overwritten, fmt.Sprintf("%s (rule %d)", key, previous))
		}
	}
	if len(overwritten) > 0 {
		return fmt.Errorf("%w: rule %d %q replaces %s", ErrDuplicateDeterminant, rule.ID, rule.Pattern, strings.Join(overwritten, ", "))
	}
	return nil
}

func (ruleSet *RuleSet) computeFingerprint() uint64 {
	var sb strings.Builder
	fmt.Fprintf(&sb, "case_sensitive=%t;skip_blank=%t\n", ruleSet.opts.CaseSensitive, ruleSet.opts.SkipBlankTokens)
	for _, id := range ruleSet.order {
		fmt.Fprintf(&sb, "%d:%s\n", id, ruleSet.rules[id].Record())
	}
	for _, value := range ruleSet.schema.values {
		fmt.Fprintf(&sb, "value:%s=%s\n", ruleSet.schema.valueFeature[value], value)
	}
	conceptTypes := ruleSet.schema.ConceptTypes()
	sort.Strings(conceptTypes)
	for _, conceptType := range conceptTypes {
		fmt.Fprintf(&sb, "concept:%s=%s\n", conceptType, strings.Join(ruleSet.schema.conceptFeatures[conceptType], ","))
	}
	children := make([]string, 0, len(ruleSet.hierarchy))
	for child := range ruleSet.hierarchy {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		fmt.Fprintf(&sb, "parent:%s=%s\n", child, ruleSet.hierarchy[child])
	}
	return utils.HashString(sb.String())
}

// Rule returns the rule with the given id.
func (ruleSet *RuleSet) Rule(id int) (Rule, bool) {
	rule, ok := ruleSet.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *rule, true
}

// Rules returns the compiled rules in source order.
func (ruleSet *RuleSet) Rules() []Rule {
	rules := make([]Rule, len(ruleSet.order))
	for i, id := range ruleSet.order {
		rules[i] = *ruleSet.rules[id]
	}
	return rules
}

func (ruleSet *RuleSet) Len() int {
	return len(ruleSet.order)
}

// Warnings lists the records skipped or overwritten during compilation.
func (ruleSet *RuleSet) Warnings() []error {
	return append([]error(nil), ruleSet.warnings...)
}

// Fingerprint identifies the rule content and matching options.
func (ruleSet *RuleSet) Fingerprint() uint64 {
	return ruleSet.fingerprint
}

// Schema returns a copy of the feature schema.
func (ruleSet *RuleSet) Schema() *Schema {
	schema := ruleSet.schema.clone()
	schema.computeWeights()
	return schema
}

func (ruleSet *RuleSet) CaseSensitive() bool {
	return ruleSet.opts.CaseSensitive
}

func (ruleSet *RuleSet) rule(id int) (*Rule, error) {
	rule, ok := ruleSet.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownRule, id)
	}
	return rule, nil
}
