package types

type Sentence struct {
	Span
	Tokens []*Token
}

// Locate returns the indices of the first and last tokens overlapping the
// rune range [begin, end).
func (sent *Sentence) Locate(begin int32, end int32) (int, int, bool) {
	first, last := -1, -1
	target := Span{Begin: begin, End: end}
	for i, token := range sent.Tokens {
		if !token.Overlaps(target) {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	return first, last, first != -1
}
