package node

import (
	"fmt"
)

// InvalidArgumentError is returned when a caller supplies neither facts
// nor hw_info, or no match-eligible keys.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// ValidationError is returned when node attributes violate an invariant
// (hw_info malformed, IPMI credentials without a hostname, and so on).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// DuplicateNodeError is returned when an incoming descriptor matches an
// ambiguous set of nodes. It carries the offending fingerprint and the
// matching nodes so the caller can inspect or log against each.
type DuplicateNodeError struct {
	HwInfo []string
	Nodes  []*Node
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node: %d candidates matched hw_info %v", len(e.Nodes), e.HwInfo)
}

// RuleEvaluationError wraps a failure from the external TagMatcher. It is
// logged against the node by the checkin processor before being
// re-raised.
type RuleEvaluationError struct {
	Message string
	Err     error
}

func (e *RuleEvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rule evaluation error: %s: %v", e.Message, e.Err)
	}
	return "rule evaluation error: " + e.Message
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// ManagementError wraps a failure from the remote management channel,
// distinguished from a plain transport error so callers can reset
// last_known_power_state to unknown.
type ManagementError struct {
	Message string
	Err     error
}

func (e *ManagementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("management error: %s: %v", e.Message, e.Err)
	}
	return "management error: " + e.Message
}

func (e *ManagementError) Unwrap() error { return e.Err }
