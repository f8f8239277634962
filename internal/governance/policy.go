package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of an execution about to happen: a shell
// block, a package install, a file operation.
type Request struct {
	Action    string // "bash", "python", "install", "filesystem"
	Arguments string // the command line or script text
	StepID    string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates execution requests against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedActions map[string]bool
	DeniedRegex   []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
		DeniedRegex:   make([]*regexp.Regexp, 0),
	}
}

// WithSafetyDefaults installs the standing deny rules for destructive
// commands.
func (e *DefaultPolicyEngine) WithSafetyDefaults() *DefaultPolicyEngine {
	for _, pattern := range []string{`rm\s+-rf\s+/`, `mkfs`, `shutdown`, `reboot`, `:\(\)\s*\{.*\};\s*:`} {
		_ = e.DenyArguments(pattern)
	}
	return e
}

func (e *DefaultPolicyEngine) DenyAction(name string) {
	e.DeniedActions[name] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedActions[req.Action] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' is restricted by system policy", req.Action),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Arguments) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Arguments match restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
