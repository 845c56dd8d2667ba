package types

type Polarity int8

func (p Polarity) Name() string {
	switch p {
	case PolarityPositive:
		return "positive"
	case PolarityNegative:
		return "negative"
	default:
		return "neutral"
	}
}

const (
	PolarityPositive Polarity = 1
	PolarityNegative Polarity = -1
	PolarityNeutral  Polarity = 0
)

// PolarityOf is negative when any of the negation modifiers was asserted.
func PolarityOf(modifiers []string, negations map[string]bool) Polarity {
	if len(negations) == 0 {
		return PolarityNeutral
	}
	for _, modifier := range modifiers {
		if negations[modifier] {
			return PolarityNegative
		}
	}
	return PolarityPositive
}
