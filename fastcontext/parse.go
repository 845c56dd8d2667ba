package fastcontext

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	conceptFeaturesDirective = "@CONCEPT_FEATURES"
	featureValuesDirective   = "@FEATURE_VALUES"
)

// Definitions is the decoded content of a rule source.
type Definitions struct {
	Rules  []Rule
	Schema *Schema
}

// ParseLines decodes rule records. Blank lines and lines starting with "#"
// or "//" are ignored, every other line takes the next rule id whether or not
// it is a declaration. Malformed records are skipped and returned as issues.
func ParseLines(lines []string) (Definitions, []error) {
	defs := Definitions{Schema: NewSchema()}
	var issues []error
	id := 0
	for lineNo, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		fields := SplitRecord(strings.TrimRight(line, "\r\n"))
		if err := defs.addRecord(fields, id); err != nil {
			issues = append(issues, fmt.Errorf("line %d: %w", lineNo+1, err))
		}
		id++
	}
	return defs, issues
}

// SplitRecord splits a record on "|", then on tabs, then on commas,
// whichever delimiter the record contains first in that order.
func SplitRecord(line string) []string {
	sep := ","
	switch {
	case strings.Contains(line, "|"):
		sep = "|"
	case strings.Contains(line, "\t"):
		sep = "\t"
	}
	fields := strings.Split(line, sep)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

func (defs *Definitions) addRecord(fields []string, id int) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty record", ErrMalformedRule)
	}
	if strings.HasPrefix(fields[0], "@") {
		return defs.addDeclaration(fields)
	}
	rule, err := ParseRule(fields, id)
	if err != nil {
		return err
	}
	defs.Rules = append(defs.Rules, rule)
	return nil
}

func (defs *Definitions) addDeclaration(fields []string) error {
	switch strings.ToUpper(fields[0]) {
	case conceptFeaturesDirective:
		if len(fields) < 2 || fields[1] == "" {
			return fmt.Errorf("%w: %s needs a concept type", ErrMalformedRule, conceptFeaturesDirective)
		}
		defs.Schema.DeclareConcept(fields[1], fields[2:]...)
	case featureValuesDirective:
		if len(fields) < 3 || fields[1] == "" {
			return fmt.Errorf("%w: %s needs a feature name and a default value", ErrMalformedRule, featureValuesDirective)
		}
		defs.Schema.DeclareValues(fields[1], fields[2:]...)
	default:
		return fmt.Errorf("%w: unknown directive %q", ErrMalformedRule, fields[0])
	}
	return nil
}

// ParseRule decodes pattern|direction|triggerType|modifier[|windowSize].
func ParseRule(fields []string, id int) (Rule, error) {
	if len(fields) < 4 || len(fields) > 5 {
		return Rule{}, fmt.Errorf("%w: expected 4 or 5 fields, got %d", ErrMalformedRule, len(fields))
	}
	if fields[0] == "" {
		return Rule{}, fmt.Errorf("%w: empty pattern", ErrMalformedRule)
	}
	direction, err := ParseDirection(fields[1])
	if err != nil {
		return Rule{}, err
	}
	triggerType, err := ParseTriggerType(fields[2])
	if err != nil {
		return Rule{}, err
	}
	if fields[3] == "" {
		return Rule{}, fmt.Errorf("%w: empty modifier", ErrMalformedRule)
	}
	window := DefaultWindowSize
	if len(fields) == 5 && fields[4] != "" {
		window, err = strconv.Atoi(fields[4])
		if err != nil || window < 0 {
			return Rule{}, fmt.Errorf("%w: invalid window size %q", ErrMalformedRule, fields[4])
		}
	}
	return Rule{
		ID:          id,
		Pattern:     fields[0],
		Direction:   direction,
		TriggerType: triggerType,
		Modifier:    fields[3],
		WindowSize:  window,
	}, nil
}

// ParseRules is ParseLines for in-memory rule strings.
func ParseRules(records ...string) (Definitions, []error) {
	return ParseLines(records)
}
