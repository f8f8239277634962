package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel returns canned answers in order; the last answer repeats.
type scriptedModel struct {
	answers []string
	calls   int
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	i := m.calls
	if i >= len(m.answers) {
		i = len(m.answers) - 1
	}
	m.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.answers[i]}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, nil)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// recordingWorker stands in for the browse collaborator.
type recordingWorker struct {
	role    string
	answer  string
	prompts []string
}

func (w *recordingWorker) Role() string { return w.role }

func (w *recordingWorker) Process(_ context.Context, prompt string) (orchestrator.Result, error) {
	w.prompts = append(w.prompts, prompt)
	return orchestrator.Result{Answer: w.answer, Success: true}, nil
}

func newTestCoder(t *testing.T, model llms.Model, opts ...CoderOption) *CoderAgent {
	t.Helper()
	logger := observability.NewLoggerWithPath(filepath.Join(t.TempDir(), "llm.jsonl"))
	runner := tools.NewRunner(t.TempDir(), nil)
	return NewCoderAgent(model, NewPromptManager(""), runner, nil, logger, opts...)
}

func TestCoder_ProseAnswerPassesThrough(t *testing.T) {
	model := &scriptedModel{answers: []string{"The capital of France is Paris."}}
	c := newTestCoder(t, model)

	res, err := c.Process(context.Background(), "what is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Answer != "The capital of France is Paris." {
		t.Errorf("unexpected result: %+v", res)
	}
	if model.calls != 1 {
		t.Errorf("expected one model call, got %d", model.calls)
	}
}

func TestCoder_ExecutesBlocksAndReportsSuccess(t *testing.T) {
	model := &scriptedModel{answers: []string{
		"Here you go:\n```bash\necho all good\n```",
	}}
	c := newTestCoder(t, model)

	res, err := c.Process(context.Background(), "write a script that greets")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success: %+v", res)
	}
	if !strings.Contains(res.Answer, "all good") {
		t.Errorf("answer missing execution output: %q", res.Answer)
	}
	if strings.Contains(res.Answer, "```") {
		t.Errorf("code fences should be stripped from the final answer: %q", res.Answer)
	}
}

func TestCoder_NudgesWhenBuildPromptYieldsNoCode(t *testing.T) {
	model := &scriptedModel{answers: []string{
		"I would use a loop for that.",
		"```bash\necho built\n```",
	}}
	c := newTestCoder(t, model)

	res, err := c.Process(context.Background(), "create a script that counts to ten")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success after nudge: %+v", res)
	}
	if model.calls != 2 {
		t.Errorf("expected the no-code answer to trigger one nudge, got %d calls", model.calls)
	}
}

func TestCoder_ClarificationRequestFailsStep(t *testing.T) {
	model := &scriptedModel{answers: []string{
		"REQUEST_CLARIFICATION Which database should the app use?",
	}}
	c := newTestCoder(t, model)

	res, err := c.Process(context.Background(), "build the app")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("a clarification request must not count as success")
	}
	if !strings.Contains(res.Answer, "Which database") {
		t.Errorf("question lost: %q", res.Answer)
	}
}

func TestSelfCorrect_FixOnFirstAttempt(t *testing.T) {
	model := &scriptedModel{answers: []string{
		"Fixed:\n```bash\necho repaired\n```",
	}}
	c := newTestCoder(t, model)

	var messages []llms.MessageContent
	ok, answer, feedback := c.selfCorrect(context.Background(), &messages,
		"```bash\nexit 1\n```", "[failure] exit code 1")
	if !ok {
		t.Fatalf("expected correction to succeed, feedback: %q", feedback)
	}
	if !strings.Contains(answer, "repaired") {
		t.Errorf("corrected answer: %q", answer)
	}
	if model.calls != 1 {
		t.Errorf("expected one correction call, got %d", model.calls)
	}
}

func TestSelfCorrect_BudgetIsBounded(t *testing.T) {
	// Every correction attempt returns prose, which still burns budget.
	model := &scriptedModel{answers: []string{"I am not sure what went wrong."}}
	c := newTestCoder(t, model, WithMaxCorrections(3))

	var messages []llms.MessageContent
	ok, _, feedback := c.selfCorrect(context.Background(), &messages,
		"```bash\nexit 1\n```", "[failure] exit code 1")
	if ok {
		t.Error("correction should fail")
	}
	if model.calls != 3 {
		t.Errorf("expected exactly 3 correction attempts, got %d", model.calls)
	}
	if !strings.Contains(feedback, "no code block") {
		t.Errorf("final feedback should name the no-code failure: %q", feedback)
	}
}

func TestSelfCorrect_ConsultsBrowseHelperForMissingModule(t *testing.T) {
	browser := &recordingWorker{role: "web", answer: "pip install beautifulsoup4"}
	model := &scriptedModel{answers: []string{"still broken, no code"}}
	c := newTestCoder(t, model, WithBrowseHelper(browser), WithMaxCorrections(1))

	var messages []llms.MessageContent
	c.selfCorrect(context.Background(), &messages,
		"```python\nimport bs4\n```", "ModuleNotFoundError: No module named 'bs4'")

	if len(browser.prompts) != 1 {
		t.Fatalf("browse helper should be consulted once, saw %d", len(browser.prompts))
	}
	if !strings.Contains(browser.prompts[0], "bs4") {
		t.Errorf("browse query should name the module: %q", browser.prompts[0])
	}

	// The research notes flow into the correction prompt.
	if len(messages) == 0 {
		t.Fatal("correction prompt not appended to the conversation")
	}
	prompt := renderParts(messages[0])
	if !strings.Contains(prompt, "beautifulsoup4") {
		t.Errorf("correction prompt missing research notes: %q", prompt)
	}
}

// fakeInstaller stands in for the pip remediation step.
type fakeInstaller struct {
	result bool
	errs   []string
}

func (f *fakeInstaller) InstallFromError(_ context.Context, errText string) bool {
	f.errs = append(f.errs, errText)
	return f.result
}

func TestSelfCorrect_InstallerRunsBeforeBrowseHelper(t *testing.T) {
	missing := "ModuleNotFoundError: No module named 'bs4'"

	// A successful install suppresses the browse consultation entirely.
	installer := &fakeInstaller{result: true}
	browser := &recordingWorker{role: "web", answer: "pip install beautifulsoup4"}
	model := &scriptedModel{answers: []string{"still broken, no code"}}
	logger := observability.NewLoggerWithPath(filepath.Join(t.TempDir(), "llm.jsonl"))
	c := NewCoderAgent(model, NewPromptManager(""), tools.NewRunner(t.TempDir(), nil),
		installer, logger, WithBrowseHelper(browser), WithMaxCorrections(1))

	var messages []llms.MessageContent
	c.selfCorrect(context.Background(), &messages, "```python\nimport bs4\n```", missing)

	if len(installer.errs) != 1 {
		t.Fatalf("installer should be consulted once, saw %d", len(installer.errs))
	}
	if len(browser.prompts) != 0 {
		t.Errorf("browse helper should be skipped after a successful install, saw %d calls", len(browser.prompts))
	}

	// A failed install falls through to the browse helper.
	installer = &fakeInstaller{result: false}
	browser = &recordingWorker{role: "web", answer: "pip install beautifulsoup4"}
	model = &scriptedModel{answers: []string{"still broken, no code"}}
	c = NewCoderAgent(model, NewPromptManager(""), tools.NewRunner(t.TempDir(), nil),
		installer, logger, WithBrowseHelper(browser), WithMaxCorrections(1))

	messages = nil
	c.selfCorrect(context.Background(), &messages, "```python\nimport bs4\n```", missing)

	if len(installer.errs) != 1 {
		t.Fatalf("installer should still run first, saw %d calls", len(installer.errs))
	}
	if len(browser.prompts) != 1 {
		t.Errorf("browse helper should be consulted after a failed install, saw %d calls", len(browser.prompts))
	}
}

func TestExecuteBlocks_FormatsExitCode(t *testing.T) {
	c := newTestCoder(t, &scriptedModel{answers: []string{""}})

	ok, feedback := c.executeBlocks(context.Background(), "```bash\nexit 3\n```")
	if ok {
		t.Fatal("expected the block to fail")
	}
	if !strings.Contains(feedback, "[failure] exit code 3") {
		t.Errorf("feedback missing the exit code signal: %q", feedback)
	}

	ok, feedback = c.executeBlocks(context.Background(), "```bash\necho fine\n```")
	if !ok {
		t.Fatalf("expected the block to succeed: %q", feedback)
	}
	if !strings.Contains(feedback, "[success] execution completed") || !strings.Contains(feedback, "fine") {
		t.Errorf("feedback missing the success header or output: %q", feedback)
	}
}

func renderParts(msg llms.MessageContent) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestHasErrorIndicators(t *testing.T) {
	bad := []string{
		"Traceback (most recent call last):",
		"NameError: name 'x' is not defined",
		"bash: foo: command not found",
		"Segmentation fault (core dumped)",
	}
	for _, s := range bad {
		if !hasErrorIndicators(s) {
			t.Errorf("expected indicator in %q", s)
		}
	}
	// Clean-exit transcripts that merely talk about errors are not failures.
	benign := []string{
		"all tests passed, 10 ok",
		"lint finished: checked 3 files, 0 errors",
		"validated 12 rows, none invalid",
		"wrote error handling section to README.md",
	}
	for _, s := range benign {
		if hasErrorIndicators(s) {
			t.Errorf("false positive on %q", s)
		}
	}
}

func TestWantsCode(t *testing.T) {
	if !wantsCode("Create a website for my portfolio") {
		t.Error("build prompt not detected")
	}
	if wantsCode("what time is it in Tokyo?") {
		t.Error("question misdetected as build prompt")
	}
}
