package gateway

import (
	"strings"
	"testing"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
)

type fakeMessenger struct {
	sent []string
}

func (f *fakeMessenger) Start() error { return nil }
func (f *fakeMessenger) Stop() error  { return nil }

func (f *fakeMessenger) Send(chatID, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fakeGoals struct {
	added   []string
	cleared int
}

func (f *fakeGoals) AddGoal(chatID, goal string, intervalSeconds int) error {
	f.added = append(f.added, goal)
	return nil
}

func (f *fakeGoals) ClearGoals(chatID string) error {
	f.cleared++
	return nil
}

type fakeStopper struct{ stopped bool }

func (f *fakeStopper) Stop() { f.stopped = true }

func TestTelegramHandleCommand(t *testing.T) {
	goals := &fakeGoals{}
	stopper := &fakeStopper{}
	tg := &TelegramGateway{Goals: goals, Stopper: stopper}

	if _, handled := tg.handleCommand("1", "build me a website"); handled {
		t.Error("plain text must not be treated as a command")
	}

	reply, handled := tg.handleCommand("1", "/schedule 3600 check the news")
	if !handled || !strings.Contains(reply, "check the news") {
		t.Errorf("schedule reply: %q handled=%v", reply, handled)
	}
	if len(goals.added) != 1 || goals.added[0] != "check the news" {
		t.Errorf("goal not stored: %v", goals.added)
	}

	if reply, _ := tg.handleCommand("1", "/schedule abc goal"); !strings.Contains(reply, "non-negative") {
		t.Errorf("bad interval reply: %q", reply)
	}

	tg.handleCommand("1", "/clear")
	if goals.cleared != 1 {
		t.Error("clear not forwarded")
	}

	tg.handleCommand("1", "/stop")
	if !stopper.stopped {
		t.Error("stop not forwarded")
	}

	if reply, handled := tg.handleCommand("1", "/bogus"); !handled || !strings.Contains(reply, "Unknown command") {
		t.Errorf("unknown command reply: %q", reply)
	}
}

func TestChatNotifier_UnboundDropsEverything(t *testing.T) {
	n := NewChatNotifier(nil, "")
	// Must not panic with no sink attached.
	n.Status("orchestrator", "done", 1.0, "details")
	n.ExecutionLog("error", "boom", "coder")
	n.Progress(orchestrator.ProgressUpdate{})
}

func TestChatNotifier_DeliversAfterBind(t *testing.T) {
	m := &fakeMessenger{}
	n := NewChatNotifier(nil, "")
	n.Bind(m, "42")

	n.Status("orchestrator", "Done: 2/2", 1.0, "Elapsed: 3.0s")
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "Done: 2/2") {
		t.Fatalf("completion status not delivered: %v", m.sent)
	}

	// Intermediate statuses below completion are not pushed.
	n.Status("orchestrator", "Step 1/2", 0.5, "working")
	if len(m.sent) != 1 {
		t.Errorf("intermediate status should be dropped, got %v", m.sent)
	}

	n.ExecutionLog("error", "step 1 failed", "coder")
	if len(m.sent) != 2 || !strings.Contains(m.sent[1], "step 1 failed") {
		t.Errorf("error log not delivered: %v", m.sent)
	}
	n.ExecutionLog("success", "step 2 ok", "coder")
	if len(m.sent) != 2 {
		t.Errorf("non-error logs should be dropped, got %v", m.sent)
	}
}

func TestChatNotifier_ProgressThrottled(t *testing.T) {
	m := &fakeMessenger{}
	n := NewChatNotifier(m, "42")

	u := orchestrator.ProgressUpdate{TotalSteps: 3, CompletedSteps: 1, CurrentStepID: 2, CurrentDescription: "build"}
	n.Progress(u)
	n.Progress(u)
	n.Progress(u)
	if len(m.sent) != 1 {
		t.Errorf("progress should be throttled to one push, got %d", len(m.sent))
	}
}

func TestPlanUpdateRendering(t *testing.T) {
	m := &fakeMessenger{}
	n := NewChatNotifier(m, "42")

	n.PlanUpdate([]orchestrator.StepProgress{
		{ID: 1, Description: "research", AgentType: "web", Status: "completed"},
		{ID: 2, Description: "build", AgentType: "coder", Status: "running"},
	}, 2)

	if len(m.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(m.sent))
	}
	text := m.sent[0]
	if !strings.Contains(text, "▶ 2.") {
		t.Errorf("current step marker missing: %q", text)
	}
	if !strings.Contains(text, "[completed] research") {
		t.Errorf("step line missing: %q", text)
	}
}

func TestSplitMessage(t *testing.T) {
	parts := SplitMessage("first line\nsecond line\nthird", 12)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != "first line" {
		t.Errorf("split should land on the newline: %q", parts[0])
	}

	// No newline within the limit forces a hard cut.
	parts = SplitMessage("abcdefghij", 4)
	if len(parts) != 3 || parts[0] != "abcd" {
		t.Errorf("hard cut failed: %v", parts)
	}

	if got := SplitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text should pass through: %v", got)
	}
	if got := SplitMessage("text\n\n\n", 5); len(got) != 1 {
		t.Errorf("whitespace tail should be dropped: %v", got)
	}
}
