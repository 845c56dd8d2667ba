package fastcontext

// resolve records every determinant bound at a terminal node for the span
// [matchBegin, position-1], arbitrating against the match already held for
// the same determinant.
func (w *walker) resolve(n *node, matchBegin int, position int) error {
	length := len(w.texts)
	for _, b := range n.bindings {
		rule, err := w.ruleSet.rule(b.ruleID)
		if err != nil {
			return err
		}
		candidate := Match{
			Begin:     matchBegin,
			End:       position - 1,
			RuleID:    b.ruleID,
			Direction: directionOf(b.determinant),
			CharBegin: -1,
			CharEnd:   -1,
		}
		if rule.TriggerType == Termination {
			candidate.WinBegin = candidate.Begin
			candidate.WinEnd = candidate.End
		} else {
			candidate.WinBegin = candidate.Begin - rule.WindowSize
			candidate.WinEnd = candidate.End + rule.WindowSize
		}

		existing, found := w.matches.get(b.determinant)
		if !found {
			w.matches.put(b.determinant, candidate)
			w.ruleSet.trace(TraceEvent{Action: TraceInserted, Determinant: b.determinant, Candidate: candidate})
			continue
		}

		var reason string
		if candidate.Direction == Forward {
			reason, err = w.rejectForward(rule, *existing, candidate, length)
		} else {
			reason, err = w.rejectBackward(rule, *existing, candidate)
		}
		if err != nil {
			return err
		}
		previous := *existing
		if reason != "" {
			w.ruleSet.trace(TraceEvent{Action: TraceRejected, Determinant: b.determinant, Reason: reason, Candidate: candidate, Existing: &previous})
			continue
		}

		if candidate.Direction == Forward && previous.Begin != -1 {
			if rule.TriggerType == Termination {
				if previous.WinBegin > candidate.End {
					candidate.WinBegin = previous.WinBegin
				} else {
					candidate.WinBegin = candidate.End
				}
			} else {
				candidate.WinBegin = previous.WinBegin
			}
		} else if candidate.Direction == Backward && previous.End != -1 {
			if rule.TriggerType == Termination {
				if previous.WinEnd < candidate.WinEnd {
					candidate.WinEnd = previous.WinEnd
				} else {
					candidate.WinEnd = candidate.Begin
				}
			} else {
				candidate.WinEnd = previous.WinEnd
			}
		}
		w.matches.put(b.determinant, candidate)
		w.ruleSet.trace(TraceEvent{Action: TraceReplaced, Determinant: b.determinant, Candidate: candidate, Existing: &previous})
	}
	return nil
}

// rejectForward returns why a forward candidate loses against the existing
// match, or "" when it replaces it. length is the size of the token window.
func (w *walker) rejectForward(rule *Rule, existing Match, candidate Match, length int) (string, error) {
	if rule.TriggerType == Trigger {
		switch {
		case existing.WinEnd > candidate.WinEnd:
			return "existing window reaches further", nil
		case existing.width() > candidate.width() && existing.End >= candidate.End:
			return "existing match is wider", nil
		case length-candidate.End > rule.WindowSize:
			return "candidate is outside of its window", nil
		}
		existingRule, err := w.ruleSet.rule(existing.RuleID)
		if err != nil {
			return "", err
		}
		if existingRule.TriggerType == Termination && existing.Begin > candidate.End {
			return "terminated after candidate", nil
		}
		return "", nil
	}
	switch {
	case existing.Begin > candidate.End:
		return "existing match begins after candidate", nil
	case existing.width() > candidate.width() && existing.End >= candidate.End:
		return "existing match is wider", nil
	case length-candidate.End > rule.WindowSize:
		return "candidate is outside of its window", nil
	}
	return "", nil
}

// rejectBackward mirrors rejectForward, measuring distance from the window start.
func (w *walker) rejectBackward(rule *Rule, existing Match, candidate Match) (string, error) {
	if rule.TriggerType == Trigger {
		switch {
		case existing.WinBegin < candidate.WinBegin:
			return "existing window reaches further", nil
		case existing.width() > candidate.width() && existing.Begin <= candidate.Begin:
			return "existing match is wider", nil
		case candidate.Begin > rule.WindowSize:
			return "candidate is outside of its window", nil
		}
		existingRule, err := w.ruleSet.rule(existing.RuleID)
		if err != nil {
			return "", err
		}
		if existingRule.TriggerType == Termination && existing.End < candidate.Begin {
			return "terminated before candidate", nil
		}
		return "", nil
	}
	switch {
	case existing.End < candidate.Begin:
		return "existing match ends before candidate", nil
	case existing.width() > candidate.width() && existing.Begin <= candidate.Begin:
		return "existing match is wider", nil
	case candidate.Begin > rule.WindowSize:
		return "candidate is outside of its window", nil
	}
	return "", nil
}
