package fastcontext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type edgeKind uint8

const (
	edgeLiteral edgeKind = iota
	edgeAnyWord
	edgeAnyUpper
	edgeGreater
	edgeLess
)

const (
	anyWordToken      = `\w+`
	anyUpperToken     = `\W+`
	greaterEscape     = `\>`
	lessEscape        = `\<`
	greaterBare       = ">"
	lessBare          = "<"
	numberClampDigits = 4
	numberClampValue  = 1000
)

type patternToken struct {
	kind  edgeKind
	text  string
	value float64
}

var (
	thresholdPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(?:-(\w+))?$`)
	leadingNumber    = regexp.MustCompile(`^(\d+\.?\d?)(-\w+)?`)
)

// splitPattern splits a rule pattern on whitespace, ideographic space included.
func splitPattern(pattern string) []string {
	return strings.FieldsFunc(pattern, func(r rune) bool {
		return unicode.IsSpace(r) || r == '　'
	})
}

func compilePattern(pattern string, caseSensitive bool) ([]patternToken, error) {
	fields := splitPattern(pattern)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrMalformedRule)
	}
	tokens := make([]patternToken, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		switch {
		case field == anyWordToken:
			tokens = append(tokens, patternToken{kind: edgeAnyWord, text: field})
		case field == anyUpperToken && !caseSensitive:
			// Rules are lower cased when case is ignored, so any word matches.
			tokens = append(tokens, patternToken{kind: edgeAnyWord, text: field})
		case field == anyUpperToken:
			tokens = append(tokens, patternToken{kind: edgeAnyUpper, text: field})
		case isComparison(fields, i):
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("%w: %q has no threshold in %q", ErrMalformedRule, field, pattern)
			}
			groups := thresholdPattern.FindStringSubmatch(fields[i+1])
			if groups == nil {
				return nil, fmt.Errorf("%w: invalid threshold %q in %q", ErrMalformedRule, fields[i+1], pattern)
			}
			value, err := strconv.ParseFloat(groups[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid threshold %q: %v", ErrMalformedRule, fields[i+1], err)
			}
			kind := edgeLess
			if field == greaterEscape || field == greaterBare {
				kind = edgeGreater
			}
			tokens = append(tokens, patternToken{kind: kind, text: groups[1], value: value})
			if groups[2] != "" {
				tokens = append(tokens, literalToken(groups[2], caseSensitive))
			}
			i++
		default:
			tokens = append(tokens, literalToken(field, caseSensitive))
		}
	}
	return tokens, nil
}

// isComparison reports whether fields[i] opens a numeric comparison. Escaped
// operators always do, bare ones only when a number follows.
func isComparison(fields []string, i int) bool {
	switch fields[i] {
	case greaterEscape, lessEscape:
		return true
	case greaterBare, lessBare:
		return i+1 < len(fields) && thresholdPattern.MatchString(fields[i+1])
	}
	return false
}

func literalToken(text string, caseSensitive bool) patternToken {
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	return patternToken{kind: edgeLiteral, text: text}
}

// parseNumber extracts the leading number of a token and its optional
// hyphenated suffix. Digit runs of four or more characters saturate.
func parseNumber(token string) (float64, string, bool) {
	groups := leadingNumber.FindStringSubmatch(token)
	if groups == nil {
		return 0, "", false
	}
	suffix := strings.TrimPrefix(groups[2], "-")
	if len(groups[1]) >= numberClampDigits {
		return numberClampValue, suffix, true
	}
	value, err := strconv.ParseFloat(groups[1], 64)
	if err != nil {
		return numberClampValue, suffix, true
	}
	return value, suffix, true
}

func startsWithDigit(token string) bool {
	return len(token) > 0 && token[0] >= '0' && token[0] <= '9'
}

func isUpperWord(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
