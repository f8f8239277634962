package orchestrator

import (
	"encoding/json"
	"testing"
)

func TestNewPlan_Defaults(t *testing.T) {
	plan := NewPlan("test goal", []TaskSpec{
		{Agent: "web", Task: "research"},
		{Task: "build it"},
	})

	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].ID != 1 || plan.Steps[1].ID != 2 {
		t.Errorf("expected ids 1,2 got %d,%d", plan.Steps[0].ID, plan.Steps[1].ID)
	}
	if plan.Steps[1].AgentType != "coder" {
		t.Errorf("expected default agent coder, got %s", plan.Steps[1].AgentType)
	}
	if plan.Steps[0].MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected max attempts %d, got %d", DefaultMaxAttempts, plan.Steps[0].MaxAttempts)
	}
	if plan.Steps[0].Status != StatusPending {
		t.Errorf("expected pending, got %s", plan.Steps[0].Status)
	}
}

func TestNextStep_FirstReady(t *testing.T) {
	plan := NewPlan("goal", []TaskSpec{
		{Agent: "coder", Task: "a", Need: DepList{"2"}},
		{Agent: "coder", Task: "b"},
		{Agent: "coder", Task: "c"},
	})

	// Step 1 waits on step 2, so the first ready step is 2.
	next := plan.NextStep()
	if next == nil || next.ID != 2 {
		t.Fatalf("expected step 2, got %v", next)
	}

	next.Status = StatusCompleted
	next.Result = "done"

	// Step 1 is ready now and sits earlier in the plan than step 3.
	next = plan.NextStep()
	if next == nil || next.ID != 1 {
		t.Fatalf("expected step 1, got %v", next)
	}
}

func TestNextStep_UnsatisfiableDependency(t *testing.T) {
	plan := NewPlan("goal", []TaskSpec{
		{Agent: "coder", Task: "a", Need: DepList{"99"}},
	})

	if next := plan.NextStep(); next != nil {
		t.Fatalf("expected no ready step, got %d", next.ID)
	}
	if !plan.HasPending() {
		t.Error("step should still be pending")
	}
	if plan.IsComplete() {
		t.Error("plan should not be complete")
	}
}

func TestNextStep_FailedDependencyBlocks(t *testing.T) {
	plan := NewPlan("goal", []TaskSpec{
		{Agent: "coder", Task: "a"},
		{Agent: "coder", Task: "b", Need: DepList{"1"}},
	})
	plan.Steps[0].Status = StatusFailed

	if next := plan.NextStep(); next != nil {
		t.Fatalf("expected no ready step behind a failed dependency, got %d", next.ID)
	}
}

func TestDepList_Coercion(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`{"agent":"coder","task":"t","need":1}`, []string{"1"}},
		{`{"agent":"coder","task":"t","need":"2"}`, []string{"2"}},
		{`{"agent":"coder","task":"t","need":[1,"2",3]}`, []string{"1", "2", "3"}},
		{`{"agent":"coder","task":"t"}`, nil},
	}

	for _, c := range cases {
		var spec TaskSpec
		if err := json.Unmarshal([]byte(c.in), &spec); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if len(spec.Need) != len(c.want) {
			t.Fatalf("%s: expected %v got %v", c.in, c.want, spec.Need)
		}
		for i := range c.want {
			if spec.Need[i] != c.want[i] {
				t.Errorf("%s: expected %v got %v", c.in, c.want, spec.Need)
			}
		}
	}
}

func TestCountByStatusAndSuccessRate(t *testing.T) {
	plan := NewPlan("goal", []TaskSpec{
		{Task: "a"}, {Task: "b"}, {Task: "c"}, {Task: "d"},
	})
	plan.Steps[0].Status = StatusCompleted
	plan.Steps[1].Status = StatusCompleted
	plan.Steps[2].Status = StatusFailed

	if n := plan.CountByStatus(StatusCompleted); n != 2 {
		t.Errorf("completed: expected 2 got %d", n)
	}
	if n := plan.CountByStatus(StatusPending); n != 1 {
		t.Errorf("pending: expected 1 got %d", n)
	}
	if r := plan.SuccessRate(); r != 0.5 {
		t.Errorf("success rate: expected 0.5 got %f", r)
	}
}
