package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
)

// stubWorker is a programmable Worker that records every prompt it sees.
type stubWorker struct {
	role    string
	fn      func(call int, prompt string) (Result, error)
	prompts []string
}

func (s *stubWorker) Role() string { return s.role }

func (s *stubWorker) Process(_ context.Context, prompt string) (Result, error) {
	s.prompts = append(s.prompts, prompt)
	if s.fn == nil {
		return Result{Answer: "ok", Success: true}, nil
	}
	return s.fn(len(s.prompts), prompt)
}

func testLogger(t *testing.T) *observability.Logger {
	t.Helper()
	return observability.NewLoggerWithPath(filepath.Join(t.TempDir(), "llm.jsonl"))
}

func TestResolveWorker(t *testing.T) {
	coder := &stubWorker{role: "coder"}
	web := &stubWorker{role: "web"}
	o := New(map[string]Worker{"coder": coder, "web": web}, testLogger(t))

	if key, w := o.resolveWorker("web"); key != "web" || w != Worker(web) {
		t.Errorf("exact match failed, got %s", key)
	}
	if key, _ := o.resolveWorker("coding"); key != "coder" {
		t.Errorf("prefix match failed, got %s", key)
	}
	if key, _ := o.resolveWorker("WEB"); key != "web" {
		t.Errorf("case-insensitive match failed, got %s", key)
	}
	if key, _ := o.resolveWorker("mystery"); key != "coder" {
		t.Errorf("fallback to coder failed, got %s", key)
	}
}

func TestResolveWorker_PrefixTieIsStable(t *testing.T) {
	// Both names share the 3-char prefix; resolution must not depend on
	// map iteration order.
	o := New(map[string]Worker{
		"website":    &stubWorker{role: "website"},
		"webscraper": &stubWorker{role: "webscraper"},
	}, testLogger(t))

	for i := 0; i < 20; i++ {
		if key, _ := o.resolveWorker("web_research"); key != "webscraper" {
			t.Fatalf("tie resolved to %s on run %d", key, i)
		}
	}
}

func TestExecuteStep_WorkerErrorIsFailedResult(t *testing.T) {
	coder := &stubWorker{role: "coder", fn: func(int, string) (Result, error) {
		return Result{}, errors.New("provider unavailable")
	}}
	o := New(map[string]Worker{"coder": coder}, testLogger(t))

	step := &TaskStep{ID: 1, Description: "do something", AgentType: "coder", MaxAttempts: 3}
	answer, success := o.ExecuteStep(context.Background(), step, nil)
	if success {
		t.Error("expected failure")
	}
	if !strings.Contains(answer, "provider unavailable") {
		t.Errorf("expected error text in answer, got %q", answer)
	}
	if step.Status != StatusRunning {
		t.Errorf("step should be running during dispatch, got %s", step.Status)
	}
}

func TestExecuteStep_RetryPromptCarriesWarning(t *testing.T) {
	coder := &stubWorker{role: "coder"}
	o := New(map[string]Worker{"coder": coder}, testLogger(t))

	step := &TaskStep{
		ID: 1, Description: "build the thing", AgentType: "coder",
		MaxAttempts: 3, Attempts: 1, Error: "previous boom",
	}
	o.ExecuteStep(context.Background(), step, nil)

	if len(coder.prompts) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(coder.prompts))
	}
	prompt := coder.prompts[0]
	if !strings.Contains(prompt, "WARNING") || !strings.Contains(prompt, "previous boom") {
		t.Errorf("retry prompt missing failure warning: %q", prompt)
	}
	if !strings.Contains(prompt, "DIFFERENT approach") {
		t.Errorf("retry prompt missing directive: %q", prompt)
	}
}

func TestExecuteStep_DependencyContext(t *testing.T) {
	coder := &stubWorker{role: "coder"}
	o := New(map[string]Worker{"coder": coder}, testLogger(t))

	step := &TaskStep{ID: 2, Description: "use it", AgentType: "coder", MaxAttempts: 3}
	o.ExecuteStep(context.Background(), step, map[string]string{"1": "the research output"})

	prompt := coder.prompts[0]
	if !strings.Contains(prompt, "Result of step 1: the research output") {
		t.Errorf("prompt missing dependency result: %q", prompt)
	}
	if !strings.Contains(prompt, "Start working immediately") {
		t.Errorf("prompt missing execution directive: %q", prompt)
	}
}

func TestReflect_Transitions(t *testing.T) {
	o := New(map[string]Worker{}, testLogger(t))
	step := &TaskStep{ID: 1, Description: "d", AgentType: "coder", Status: StatusRunning, MaxAttempts: 2}

	o.Reflect(step, "partial failure", false)
	if step.Status != StatusPending || step.Attempts != 1 {
		t.Errorf("expected requeued step, got status=%s attempts=%d", step.Status, step.Attempts)
	}
	if step.Error != "partial failure" {
		t.Errorf("expected error recorded, got %q", step.Error)
	}

	step.Status = StatusRunning
	o.Reflect(step, "final failure", false)
	if step.Status != StatusFailed || step.Attempts != 2 {
		t.Errorf("expected terminal failure, got status=%s attempts=%d", step.Status, step.Attempts)
	}

	good := &TaskStep{ID: 2, Description: "d", AgentType: "coder", Status: StatusRunning, MaxAttempts: 2}
	o.Reflect(good, "all done", true)
	if good.Status != StatusCompleted || good.Result != "all done" {
		t.Errorf("expected completed step with result, got status=%s result=%q", good.Status, good.Result)
	}
}

func TestBrowseAssistedRetry_OnMissingModule(t *testing.T) {
	var coderCalls int
	coder := &stubWorker{role: "coder", fn: func(call int, prompt string) (Result, error) {
		coderCalls = call
		if call == 1 {
			return Result{Answer: "ModuleNotFoundError: No module named 'requests'", Success: false}, nil
		}
		return Result{Answer: "installed and done", Success: true}, nil
	}}
	web := &stubWorker{role: "web", fn: func(int, string) (Result, error) {
		return Result{Answer: "Run pip install requests to fix it", Success: true}, nil
	}}
	o := New(map[string]Worker{"coder": coder, "web": web}, testLogger(t))

	step := &TaskStep{ID: 1, Description: "fetch a page", AgentType: "coder", MaxAttempts: 3}
	answer, success := o.ExecuteStep(context.Background(), step, nil)

	if !success {
		t.Fatalf("expected browse-assisted retry to succeed, got %q", answer)
	}
	if coderCalls != 2 {
		t.Errorf("expected exactly one retry dispatch, coder saw %d calls", coderCalls)
	}
	if len(web.prompts) != 1 || !strings.Contains(web.prompts[0], "requests") {
		t.Errorf("web worker not consulted about the missing package: %v", web.prompts)
	}
	retryPrompt := coder.prompts[1]
	if !strings.Contains(retryPrompt, "pip install requests") {
		t.Errorf("retry prompt missing mined install command: %q", retryPrompt)
	}

	records := o.ExecutionMemory()
	if len(records) != 2 {
		t.Fatalf("expected 2 execution records, got %d", len(records))
	}
	if !records[1].RetryWithBrowse {
		t.Error("second record should be marked as a browse retry")
	}
}

func TestBrowseAssistedRetry_NotTriggeredForOtherErrors(t *testing.T) {
	coder := &stubWorker{role: "coder", fn: func(int, string) (Result, error) {
		return Result{Answer: "something else went wrong", Success: false}, nil
	}}
	web := &stubWorker{role: "web"}
	o := New(map[string]Worker{"coder": coder, "web": web}, testLogger(t))

	step := &TaskStep{ID: 1, Description: "task", AgentType: "coder", MaxAttempts: 3}
	_, success := o.ExecuteStep(context.Background(), step, nil)

	if success {
		t.Error("expected failure to propagate")
	}
	if len(web.prompts) != 0 {
		t.Errorf("web worker should not be consulted, saw %v", web.prompts)
	}
	if len(coder.prompts) != 1 {
		t.Errorf("expected a single coder dispatch, got %d", len(coder.prompts))
	}
}
