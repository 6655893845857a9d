// Package policy defines the rules-engine contract: validation results,
// rule metadata and matching, and the enforcer interface the scripted rules
// engine implements.
package policy

// ValidationResult accumulates errors and warnings raised by rule
// execution. Errors veto the operation; warnings are advisory.
type ValidationResult struct {
	errors   []string
	warnings []string
}

// NewValidationResult returns an empty result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{}
}

// AddError records a veto with a rule-supplied reason key.
func (r *ValidationResult) AddError(key string) {
	r.errors = append(r.errors, key)
}

// AddWarning records an advisory message.
func (r *ValidationResult) AddWarning(key string) {
	r.warnings = append(r.warnings, key)
}

func (r *ValidationResult) HasErrors() bool   { return len(r.errors) > 0 }
func (r *ValidationResult) HasWarnings() bool { return len(r.warnings) > 0 }

// IsSuccessful reports whether no rule vetoed the operation.
func (r *ValidationResult) IsSuccessful() bool { return !r.HasErrors() }

func (r *ValidationResult) Errors() []string   { return r.errors }
func (r *ValidationResult) Warnings() []string { return r.warnings }
