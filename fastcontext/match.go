package fastcontext

// Match is a rule occurrence. Begin and End are inclusive token indices,
// CharBegin and CharEnd are character offsets filled in once the match is
// applied to a concept. A default feature value carries RuleID -1.
type Match struct {
	Begin     int       `json:"token_begin"`
	End       int       `json:"token_end"`
	WinBegin  int       `json:"-"`
	WinEnd    int       `json:"-"`
	Direction Direction `json:"direction"`
	RuleID    int       `json:"rule_id"`
	CharBegin int32     `json:"begin"`
	CharEnd   int32     `json:"end"`
}

func defaultMatch() Match {
	return Match{Begin: -1, End: -1, WinBegin: -1, WinEnd: -1, RuleID: -1, CharBegin: -1, CharEnd: -1}
}

func (match Match) width() int {
	return match.End - match.Begin + 1
}

func (match Match) IsDefault() bool {
	return match.RuleID == -1
}

// matchSet keeps at most one match per key, in first-insertion order.
type matchSet struct {
	keys    []string
	matches map[string]*Match
}

func newMatchSet() *matchSet {
	return &matchSet{matches: make(map[string]*Match)}
}

func (set *matchSet) get(key string) (*Match, bool) {
	match, ok := set.matches[key]
	return match, ok
}

func (set *matchSet) put(key string, match Match) {
	if existing, ok := set.matches[key]; ok {
		*existing = match
		return
	}
	set.keys = append(set.keys, key)
	set.matches[key] = &match
}
