package fastcontext

import "errors"

var (
	// compile time, the offending record is skipped
	ErrMalformedRule        = errors.New("fastcontext: malformed rule record")
	ErrUndeclaredModifier   = errors.New("fastcontext: modifier is not a declared feature value")
	ErrDuplicateDeterminant = errors.New("fastcontext: determinant overwritten at identical pattern")
	ErrEmptyRuleSet         = errors.New("fastcontext: rule set has no usable rules")

	// match time
	ErrUnknownRule        = errors.New("fastcontext: no rule for id")
	ErrConceptOutOfRange  = errors.New("fastcontext: concept span is outside of the token range")
	ErrUnknownConceptType = errors.New("fastcontext: no features declared for concept type")
	ErrTooManyTokens      = errors.New("fastcontext: token count exceeds budget")
)
