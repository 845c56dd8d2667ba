package fastcontext

type nodeID int32

const noNode nodeID = -1

type threshold struct {
	key   string
	value float64
	child nodeID
}

type binding struct {
	determinant string
	ruleID      int
}

type node struct {
	literals map[string]nodeID
	anyWord  nodeID
	anyUpper nodeID
	greater  []threshold
	less     []threshold
	// nil unless a rule ends here
	bindings []binding
}

// trie is an arena of nodes, index 0 is the root.
type trie struct {
	nodes []node
}

func newTrie() *trie {
	t := &trie{}
	t.add()
	return t
}

func (t *trie) add() nodeID {
	t.nodes = append(t.nodes, node{anyWord: noNode, anyUpper: noNode})
	return nodeID(len(t.nodes) - 1)
}

func (t *trie) extend(from nodeID, token patternToken) nodeID {
	switch token.kind {
	case edgeAnyWord:
		if next := t.nodes[from].anyWord; next != noNode {
			return next
		}
		next := t.add()
		t.nodes[from].anyWord = next
		return next
	case edgeAnyUpper:
		if next := t.nodes[from].anyUpper; next != noNode {
			return next
		}
		next := t.add()
		t.nodes[from].anyUpper = next
		return next
	case edgeGreater:
		return t.threshold(from, token, true)
	case edgeLess:
		return t.threshold(from, token, false)
	default:
		if next, ok := t.nodes[from].literals[token.text]; ok {
			return next
		}
		next := t.add()
		if t.nodes[from].literals == nil {
			t.nodes[from].literals = make(map[string]nodeID)
		}
		t.nodes[from].literals[token.text] = next
		return next
	}
}

func (t *trie) threshold(from nodeID, token patternToken, greater bool) nodeID {
	edges := t.nodes[from].less
	if greater {
		edges = t.nodes[from].greater
	}
	for _, edge := range edges {
		if edge.key == token.text {
			return edge.child
		}
	}
	next := t.add()
	edge := threshold{key: token.text, value: token.value, child: next}
	if greater {
		t.nodes[from].greater = append(t.nodes[from].greater, edge)
	} else {
		t.nodes[from].less = append(t.nodes[from].less, edge)
	}
	return next
}

// bind attaches a determinant to a terminal node. It reports the rule id that
// was bound to the same determinant before, if any.
func (t *trie) bind(at nodeID, determinant string, ruleID int) (int, bool) {
	n := &t.nodes[at]
	for i := range n.bindings {
		if n.bindings[i].determinant == determinant {
			previous := n.bindings[i].ruleID
			n.bindings[i].ruleID = ruleID
			return previous, true
		}
	}
	n.bindings = append(n.bindings, binding{determinant: determinant, ruleID: ruleID})
	return 0, false
}
