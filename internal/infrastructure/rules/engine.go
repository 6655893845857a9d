package rules

import (
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/wick-sh/wick/internal/domain/policy"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// Engine holds the compiled rules program and the rule declarations it
// exports. The program is compiled once and never mutated; each evaluation
// runs it into a fresh runtime so script-local state cannot leak between
// concurrent calls.
type Engine struct {
	program *goja.Program
	rules   []policy.Rule
	log     logger.Interface
}

// NewEngine compiles a rules source. Rule declarations are read from the
// script's attribute_mappings() export in the legacy "name:order:attrs"
// format; extra typed rules registered by the caller are appended.
func NewEngine(name string, source []byte, log logger.Interface, extra ...policy.Rule) (*Engine, error) {
	program, err := goja.Compile(name, string(source), true)
	if err != nil {
		return nil, &policy.RuleParseError{Source: name, Err: err}
	}

	e := &Engine{program: program, log: log.Named("rules")}

	declared, err := e.readAttributeMappings(name)
	if err != nil {
		return nil, err
	}
	e.rules = append(declared, extra...)

	e.log.Infow("compiled rules", "source", name, "rules", len(e.rules))
	return e, nil
}

// NewEngineFromFile compiles the rules file at path.
func NewEngineFromFile(path string, log logger.Interface, extra ...policy.Rule) (*Engine, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &policy.RuleParseError{Source: path, Err: err}
	}
	return NewEngine(path, source, log, extra...)
}

// Rules returns the registered rule declarations.
func (e *Engine) Rules() []policy.Rule {
	return e.rules
}

// readAttributeMappings runs the program once in a scratch runtime and
// collects the legacy declarations, if the script exports any.
func (e *Engine) readAttributeMappings(name string) ([]policy.Rule, error) {
	vm, err := e.newRuntime()
	if err != nil {
		return nil, &policy.RuleParseError{Source: name, Err: err}
	}
	fn, ok := goja.AssertFunction(vm.Get("attribute_mappings"))
	if !ok {
		return nil, nil
	}
	v, err := fn(goja.Undefined())
	if err != nil {
		return nil, &policy.RuleParseError{Source: name, Err: err}
	}

	raw, ok := v.Export().([]any)
	if !ok {
		return nil, &policy.RuleParseError{
			Source: name,
			Err:    fmt.Errorf("attribute_mappings must return an array, got %T", v.Export()),
		}
	}
	rules := make([]policy.Rule, 0, len(raw))
	for _, item := range raw {
		decl, ok := item.(string)
		if !ok {
			return nil, &policy.RuleParseError{
				Source: name,
				Err:    fmt.Errorf("attribute_mappings entries must be strings, got %T", item),
			}
		}
		r, err := policy.ParseRule(decl)
		if err != nil {
			return nil, &policy.RuleParseError{Source: name, Err: err}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// newRuntime builds a per-invocation runtime with the program loaded and
// the logging bridge installed.
func (e *Engine) newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := vm.Set("log", map[string]any{
		"debug": func(msg string) { e.log.Debugw(msg) },
		"info":  func(msg string) { e.log.Infow(msg) },
		"warn":  func(msg string) { e.log.Warnw(msg) },
	}); err != nil {
		return nil, err
	}
	if _, err := vm.RunProgram(e.program); err != nil {
		return nil, err
	}
	return vm, nil
}

// call invokes a named script function if it exists. The bool reports
// whether a function was actually found and run; a missing function is a
// silent no-op by contract.
func (e *Engine) call(vm *goja.Runtime, name string, args ...goja.Value) (goja.Value, bool, error) {
	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return nil, false, nil
	}
	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		return nil, true, &policy.RuleExecutionError{Function: name, Err: err}
	}
	return v, true, nil
}
