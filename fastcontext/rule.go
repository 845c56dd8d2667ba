package fastcontext

import (
	"fmt"
	"strings"
)

// DefaultWindowSize is used when a rule record has no window column.
const DefaultWindowSize = 8

type Direction uint8

const (
	Forward Direction = iota
	Backward
	Both
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", d)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "both":
		return Both, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrMalformedRule, s)
}

// directionOf reads the direction encoded in the first byte of a determinant key.
func directionOf(determinant string) Direction {
	if len(determinant) > 0 && determinant[0] == 'b' {
		return Backward
	}
	return Forward
}

type TriggerType uint8

const (
	Trigger TriggerType = iota
	Pseudo
	Termination
	Positive
	Terminal
)

var triggerTypeNames = [...]string{
	Trigger:     "trigger",
	Pseudo:      "pseudo",
	Termination: "termination",
	Positive:    "positive",
	Terminal:    "terminal",
}

func (t TriggerType) String() string {
	if int(t) < len(triggerTypeNames) {
		return triggerTypeNames[t]
	}
	return fmt.Sprintf("trigger_type(%d)", t)
}

func (t TriggerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func ParseTriggerType(s string) (TriggerType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range triggerTypeNames {
		if n == name {
			return TriggerType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown trigger type %q", ErrMalformedRule, s)
}

// Rule is a single parsed context rule. ID is its position in the rule list.
type Rule struct {
	ID          int
	Pattern     string
	Direction   Direction
	TriggerType TriggerType
	Modifier    string
	WindowSize  int
}

// Determinant is the direction-qualified modifier key, e.g. "forward_negated".
func (rule Rule) Determinant() string {
	return determinant(rule.Direction, rule.Modifier)
}

func determinant(direction Direction, modifier string) string {
	return direction.String() + "_" + modifier
}

// Record renders the rule back in its pipe-delimited source form.
func (rule Rule) Record() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", rule.Pattern, rule.Direction, rule.TriggerType, rule.Modifier, rule.WindowSize)
}
