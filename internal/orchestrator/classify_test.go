package orchestrator

import (
	"strings"
	"testing"
)

func TestMissingModule(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ModuleNotFoundError: No module named 'requests'", "requests", true},
		{`ImportError: no module named "bs4"`, "bs4", true},
		{"try running pip install numpy first", "numpy", true},
		{"SyntaxError: invalid syntax", "", false},
	}
	for _, c := range cases {
		got, ok := MissingModule(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("MissingModule(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func matchRule(t *testing.T, errText string) RecoveryRule {
	t.Helper()
	for _, rule := range defaultRecoveryRules() {
		if rule.Match(errText) {
			return rule
		}
	}
	t.Fatalf("no rule matched %q", errText)
	return RecoveryRule{}
}

func failedStep(deps ...string) (*ExecutionPlan, *TaskStep) {
	plan := NewPlan("goal", []TaskSpec{
		{Agent: "web", Task: "a"},
		{Agent: "coder", Task: "b"},
		{Agent: "coder", Task: "c"},
	})
	step := plan.Steps[1]
	step.Status = StatusFailed
	step.Dependencies = deps
	return plan, step
}

func TestRecovery_MissingDependency(t *testing.T) {
	plan, step := failedStep("1")
	step.Error = "ModuleNotFoundError: No module named 'pandas'"

	rule := matchRule(t, step.Error)
	if rule.Name != "missing_dependency" {
		t.Fatalf("expected missing_dependency, got %s", rule.Name)
	}

	steps := rule.Build(plan, step)
	if len(steps) != 2 {
		t.Fatalf("expected browse + retry pair, got %d steps", len(steps))
	}

	browse, retry := steps[0], steps[1]
	if browse.AgentType != "web" || retry.AgentType != "coder" {
		t.Errorf("expected web then coder, got %s then %s", browse.AgentType, retry.AgentType)
	}
	if browse.ID != 4 || retry.ID != 5 {
		t.Errorf("expected ids 4,5 got %d,%d", browse.ID, retry.ID)
	}
	// The browse step inherits the failed step's dependencies; the retry
	// step waits for the browse step.
	if len(browse.Dependencies) != 1 || browse.Dependencies[0] != "1" {
		t.Errorf("browse deps: %v", browse.Dependencies)
	}
	if len(retry.Dependencies) != 1 || retry.Dependencies[0] != "4" {
		t.Errorf("retry deps: %v", retry.Dependencies)
	}
	if browse.MaxAttempts != RecoveryMaxAttempts || retry.MaxAttempts != RecoveryMaxAttempts {
		t.Errorf("recovery budget: %d,%d", browse.MaxAttempts, retry.MaxAttempts)
	}
	if !strings.Contains(browse.Description, "pandas") {
		t.Errorf("browse step should name the package: %q", browse.Description)
	}
}

func TestRecovery_Permission(t *testing.T) {
	plan, step := failedStep("1")
	step.Error = "PermissionError: [Errno 13] Permission denied"

	rule := matchRule(t, step.Error)
	if rule.Name != "permission" {
		t.Fatalf("expected permission, got %s", rule.Name)
	}
	steps := rule.Build(plan, step)
	if len(steps) != 1 || steps[0].AgentType != "file" {
		t.Fatalf("expected one file step, got %v", steps)
	}
	if len(steps[0].Dependencies) != 1 || steps[0].Dependencies[0] != "1" {
		t.Errorf("recovery step should inherit dependencies: %v", steps[0].Dependencies)
	}
}

func TestRecovery_SyntaxAndTimeout(t *testing.T) {
	if rule := matchRule(t, "SyntaxError: invalid syntax on line 3"); rule.Name != "syntax" {
		t.Errorf("expected syntax, got %s", rule.Name)
	}
	if rule := matchRule(t, "requests.exceptions.ConnectionError: connection refused"); rule.Name != "timeout" {
		t.Errorf("expected timeout, got %s", rule.Name)
	}
	if rule := matchRule(t, "read timeout after 30s"); rule.Name != "timeout" {
		t.Errorf("expected timeout, got %s", rule.Name)
	}
}

func TestRecovery_GenericSwapsCapability(t *testing.T) {
	plan, step := failedStep()
	step.Error = "something inexplicable happened"

	rule := matchRule(t, step.Error)
	if rule.Name != "generic" {
		t.Fatalf("expected generic, got %s", rule.Name)
	}
	steps := rule.Build(plan, step)
	if len(steps) != 1 {
		t.Fatalf("expected one step, got %d", len(steps))
	}
	if steps[0].AgentType != "file" {
		t.Errorf("coder should swap to file, got %s", steps[0].AgentType)
	}
	if !strings.Contains(steps[0].Description, "Never ask for clarification") {
		t.Errorf("recovery directive missing: %q", steps[0].Description)
	}
}

func TestAlternateAgent(t *testing.T) {
	cases := map[string]string{
		"coder":   "file",
		"file":    "coder",
		"web":     "casual",
		"casual":  "coder",
		"unknown": "unknown",
	}
	for in, want := range cases {
		if got := alternateAgent(in); got != want {
			t.Errorf("alternateAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRevisePlan_FirstMatchWins(t *testing.T) {
	o := New(map[string]Worker{}, testLogger(t))
	plan := NewPlan("goal", []TaskSpec{{Agent: "coder", Task: "a"}})
	o.plan = plan

	failed := plan.Steps[0]
	failed.Status = StatusFailed
	// Matches both missing_dependency ("import") and syntax; only the
	// first rule may fire.
	failed.Error = "ImportError caused a syntax fallout"

	o.RevisePlan(failed)
	if len(plan.Steps) != 3 {
		t.Fatalf("expected the browse+retry pair appended, got %d steps", len(plan.Steps))
	}
	if plan.Steps[1].AgentType != "web" {
		t.Errorf("first appended step should be the browse step, got %s", plan.Steps[1].AgentType)
	}
}
