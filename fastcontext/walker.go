package fastcontext

import (
	"strings"

	"github.com/jianlins/FastContext/types"
)

// walker matches a token window against the rule trie. Each walker owns its
// match set, the trie is only read.
type walker struct {
	ruleSet *RuleSet
	raw     []string
	texts   []string
	matches *matchSet
}

func (ruleSet *RuleSet) newWalker(tokens []*types.Token) *walker {
	w := &walker{
		ruleSet: ruleSet,
		raw:     make([]string, len(tokens)),
		texts:   make([]string, len(tokens)),
		matches: newMatchSet(),
	}
	for i, token := range tokens {
		if token != nil && token.Text != nil {
			w.raw[i] = *token.Text
		}
		w.texts[i] = w.raw[i]
		if !ruleSet.opts.CaseSensitive {
			w.texts[i] = strings.ToLower(w.raw[i])
		}
	}
	return w
}

// scan walks the trie from every start position of the window. A walk may
// start on a blank token, which then begins the match span.
func (w *walker) scan() error {
	for start := range w.texts {
		if err := w.walk(0, start, start); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) skippable(position int) bool {
	return w.ruleSet.opts.SkipBlankTokens && strings.TrimSpace(w.raw[position]) == ""
}

func (w *walker) walk(at nodeID, matchBegin int, position int) error {
	n := &w.ruleSet.trie.nodes[at]
	if position >= len(w.texts) {
		if position == len(w.texts) && n.bindings != nil {
			return w.resolve(n, matchBegin, position)
		}
		return nil
	}
	if w.skippable(position) {
		return w.walk(at, matchBegin, position+1)
	}

	text := w.texts[position]
	if n.anyWord != noNode {
		if err := w.walk(n.anyWord, matchBegin, position+1); err != nil {
			return err
		}
	}
	if n.anyUpper != noNode && isUpperWord(w.raw[position]) {
		if err := w.walk(n.anyUpper, matchBegin, position+1); err != nil {
			return err
		}
	}
	if n.bindings != nil {
		if err := w.resolve(n, matchBegin, position); err != nil {
			return err
		}
	}
	if next, ok := n.literals[text]; ok {
		if err := w.walk(next, matchBegin, position+1); err != nil {
			return err
		}
	}
	if startsWithDigit(text) {
		if len(n.greater) > 0 {
			if err := w.compare(n.greater, true, matchBegin, position); err != nil {
				return err
			}
		}
		if len(n.less) > 0 {
			if err := w.compare(n.less, false, matchBegin, position); err != nil {
				return err
			}
		}
	}
	return nil
}

// compare follows every threshold edge the number at position satisfies.
// A plain number may satisfy a second comparison nested right under the
// threshold, which expresses a range. A number with a suffix, like
// "30-days", continues only through a literal edge named after the suffix.
func (w *walker) compare(edges []threshold, greater bool, matchBegin int, position int) error {
	value, suffix, ok := parseNumber(w.texts[position])
	if !ok {
		return nil
	}
	for _, edge := range edges {
		if (greater && !(value > edge.value)) || (!greater && !(value < edge.value)) {
			continue
		}
		child := &w.ruleSet.trie.nodes[edge.child]
		if suffix != "" {
			if next, ok := child.literals[suffix]; ok {
				if err := w.walk(next, matchBegin, position+1); err != nil {
					return err
				}
			}
			continue
		}
		if len(child.greater) > 0 {
			if err := w.compare(child.greater, true, matchBegin, position); err != nil {
				return err
			}
		}
		if len(child.less) > 0 {
			if err := w.compare(child.less, false, matchBegin, position); err != nil {
				return err
			}
		}
		if err := w.walk(edge.child, matchBegin, position+1); err != nil {
			return err
		}
	}
	return nil
}
