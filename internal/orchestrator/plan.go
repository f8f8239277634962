package orchestrator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Step status values. A step retries in place while attempts remain, so
// "failed" is terminal.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskStep is one unit of delegated work inside a plan.
//
// Dependencies hold step identifiers as strings and are matched against
// strconv.Itoa(step.ID). Identifiers are integers but the comparison is
// deliberately string-based so that task files carrying "1" and 1 behave the
// same; a dependency that resolves to nothing simply never becomes satisfied.
type TaskStep struct {
	ID           int      `json:"id" yaml:"id"`
	Description  string   `json:"description" yaml:"description"`
	AgentType    string   `json:"agent_type" yaml:"agent_type"`
	Status       string   `json:"status" yaml:"status"`
	Result       string   `json:"result,omitempty" yaml:"result,omitempty"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts     int      `json:"attempts" yaml:"attempts"`
	MaxAttempts  int      `json:"max_attempts" yaml:"max_attempts"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// ExecutionPlan is the ordered set of steps pursuing one goal within a single
// run. Step order defines scheduling priority; revision appends new steps but
// never removes or reorders existing ones. The run controller is the sole
// mutator for the duration of a run.
type ExecutionPlan struct {
	Goal          string
	Steps         []*TaskStep
	Completed     bool
	ReflectionLog []string
	StartTime     time.Time
}

// TaskSpec is one entry of the externally supplied task list that seeds a
// plan. Need tolerates a scalar or a list, and int or string ids.
type TaskSpec struct {
	Agent string  `json:"agent" yaml:"agent"`
	Task  string  `json:"task" yaml:"task"`
	Need  DepList `json:"need,omitempty" yaml:"need,omitempty"`
}

// NewPlan builds a plan from a task list. Identifiers are assigned from the
// list position, starting at 1.
func NewPlan(goal string, tasks []TaskSpec) *ExecutionPlan {
	plan := &ExecutionPlan{Goal: goal, StartTime: time.Now()}
	for i, t := range tasks {
		agent := t.Agent
		if agent == "" {
			agent = "coder"
		}
		plan.Steps = append(plan.Steps, &TaskStep{
			ID:           i + 1,
			Description:  t.Task,
			AgentType:    agent,
			Status:       StatusPending,
			MaxAttempts:  DefaultMaxAttempts,
			Dependencies: []string(t.Need),
		})
	}
	return plan
}

// DefaultMaxAttempts is the per-step attempt budget used when a step is
// created without an explicit one.
const DefaultMaxAttempts = 3

// NextStep returns the first pending step whose dependencies all resolve to
// completed steps, or nil. This is a pure query: the status transition to
// running happens at dispatch. First-ready beats topological order; ties go
// to the earlier plan position.
func (p *ExecutionPlan) NextStep() *TaskStep {
	for _, step := range p.Steps {
		if step.Status != StatusPending {
			continue
		}
		if p.depsMet(step) {
			return step
		}
	}
	return nil
}

func (p *ExecutionPlan) depsMet(step *TaskStep) bool {
	for _, dep := range step.Dependencies {
		ds := p.findByID(dep)
		if ds == nil || ds.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func (p *ExecutionPlan) findByID(id string) *TaskStep {
	for _, s := range p.Steps {
		if strconv.Itoa(s.ID) == id {
			return s
		}
	}
	return nil
}

// HasPending reports whether any step is still pending.
func (p *ExecutionPlan) HasPending() bool {
	for _, s := range p.Steps {
		if s.Status == StatusPending {
			return true
		}
	}
	return false
}

// IsComplete reports whether every step reached a terminal status.
func (p *ExecutionPlan) IsComplete() bool {
	for _, s := range p.Steps {
		if s.Status != StatusCompleted && s.Status != StatusFailed {
			return false
		}
	}
	return true
}

// CountByStatus returns how many steps currently hold the given status.
func (p *ExecutionPlan) CountByStatus(status string) int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// SuccessRate is completed/total, 0 for an empty plan.
func (p *ExecutionPlan) SuccessRate() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return float64(p.CountByStatus(StatusCompleted)) / float64(len(p.Steps))
}

// Elapsed returns the wall time since the plan was created.
func (p *ExecutionPlan) Elapsed() time.Duration {
	if p.StartTime.IsZero() {
		return 0
	}
	return time.Since(p.StartTime)
}

// ProgressText renders the plan state as a readable checklist.
func (p *ExecutionPlan) ProgressText() string {
	icons := map[string]string{
		StatusPending:   "...",
		StatusRunning:   "[~]",
		StatusCompleted: "[OK]",
		StatusFailed:    "[X]",
	}
	lines := []string{fmt.Sprintf("**Plan: %s**\n", p.Goal)}
	for _, s := range p.Steps {
		icon, ok := icons[s.Status]
		if !ok {
			icon = "..."
		}
		lines = append(lines, fmt.Sprintf("%s Step %d: [%s] %s (%s)",
			icon, s.ID, strings.ToUpper(s.AgentType), s.Description, s.Status))
	}
	if elapsed := p.Elapsed(); elapsed > 0 {
		lines = append(lines, fmt.Sprintf("\nElapsed: %.1fs", elapsed.Seconds()))
	}
	return strings.Join(lines, "\n")
}

// StepProgress is the wire shape of one step in plan-update notifications.
type StepProgress struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	AgentType   string `json:"agent_type"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}

// ProgressData returns the per-step snapshot pushed to notifiers.
func (p *ExecutionPlan) ProgressData() []StepProgress {
	out := make([]StepProgress, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, StepProgress{
			ID:          s.ID,
			Description: s.Description,
			AgentType:   s.AgentType,
			Status:      s.Status,
			Attempts:    s.Attempts,
		})
	}
	return out
}

// DepList unmarshals a dependency field that may be a scalar or a sequence,
// holding ints or strings; everything normalizes to strings.
type DepList []string

func (d *DepList) UnmarshalYAML(unmarshal func(any) error) error {
	var one any
	if err := unmarshal(&one); err != nil {
		return err
	}
	*d = coerceDeps(one)
	return nil
}

func (d *DepList) UnmarshalJSON(data []byte) error {
	var one any
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*d = coerceDeps(one)
	return nil
}

func coerceDeps(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	case int:
		return []string{strconv.Itoa(vv)}
	case float64:
		return []string{strconv.Itoa(int(vv))}
	case []any:
		var out []string
		for _, item := range vv {
			out = append(out, coerceDeps(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(vv)}
	}
}
