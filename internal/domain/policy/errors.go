package policy

import "fmt"

// EntitlementRefusedError is returned when pre-entitlement rules veto a
// bind. The result carries the rule-supplied reason keys.
type EntitlementRefusedError struct {
	Result *ValidationResult
}

func (e *EntitlementRefusedError) Error() string {
	return fmt.Sprintf("entitlement refused by rules: %v", e.Result.Errors())
}

// RuleExecutionError wraps a script failure inside a named rule function.
type RuleExecutionError struct {
	Function string
	Err      error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule function %q failed: %v", e.Function, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// RuleParseError wraps a failure to compile or load a rules file.
type RuleParseError struct {
	Source string
	Err    error
}

func (e *RuleParseError) Error() string {
	return fmt.Sprintf("failed to parse rules from %s: %v", e.Source, e.Err)
}

func (e *RuleParseError) Unwrap() error { return e.Err }
