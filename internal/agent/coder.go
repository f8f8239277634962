package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

const (
	// maxCodeAttempts bounds the outer generate/execute/debug loop.
	maxCodeAttempts = 7
	// maxNoCodeNudges bounds reminders to a model that answers a build
	// request with prose only.
	maxNoCodeNudges = 3

	clarificationMarker = "REQUEST_CLARIFICATION"
)

// buildKeywords mark prompts that are expected to yield code blocks.
var buildKeywords = []string{
	"create", "write", "build", "make", "generate", "implement",
	"script", "program", "code", "app", "website", "file",
}

// errorIndicators mark an execution transcript as a failure even when the
// process exited zero. Interpreter tracebacks often print to stdout and exit
// clean. Matching is case sensitive on the exception-class spellings so
// prose like "checked 3 files, 0 errors" does not trip it.
var errorIndicators = []string{
	"Traceback", "Exception", "SyntaxError", "NameError", "TypeError",
	"ValueError", "ImportError", "ModuleNotFoundError", "AttributeError",
	"KeyError", "IndexError", "FileNotFoundError", "PermissionError",
	"RuntimeError", "OSError", "IOError", "ZeroDivisionError",
	"IndentationError", "UnboundLocalError",
	"Permission denied", "command not found", "No such file",
	"Segmentation fault",
}

// ModuleInstaller remediates a missing interpreter module mined from an
// execution error. *tools.Installer is the production implementation.
type ModuleInstaller interface {
	InstallFromError(ctx context.Context, errText string) bool
}

// CoderAgent generates code, executes it, and self-corrects on failure.
// It is the default target of fuzzy capability resolution.
type CoderAgent struct {
	model     llms.Model
	prompts   *PromptManager
	runner    *tools.Runner
	installer ModuleInstaller
	browser   orchestrator.Worker
	logger    *observability.Logger

	maxCorrections int
}

// CoderOption configures a CoderAgent.
type CoderOption func(*CoderAgent)

// WithBrowseHelper gives the coder a browse-capable collaborator to consult
// when a dependency install fails and documentation is needed.
func WithBrowseHelper(w orchestrator.Worker) CoderOption {
	return func(c *CoderAgent) { c.browser = w }
}

// WithMaxCorrections overrides the self-correction budget.
func WithMaxCorrections(n int) CoderOption {
	return func(c *CoderAgent) {
		if n > 0 {
			c.maxCorrections = n
		}
	}
}

func NewCoderAgent(model llms.Model, prompts *PromptManager, runner *tools.Runner, installer ModuleInstaller, logger *observability.Logger, opts ...CoderOption) *CoderAgent {
	c := &CoderAgent{
		model:          model,
		prompts:        prompts,
		runner:         runner,
		installer:      installer,
		logger:         logger,
		maxCorrections: defaultMaxCorrections,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CoderAgent) Role() string { return "coder" }

// Process drives the generate/execute loop: ask the model for code, run
// every block, and on failure either debug in place or hand off to the
// self-correction loop. Plain-prose answers to non-build prompts pass
// through untouched.
func (c *CoderAgent) Process(ctx context.Context, prompt string) (orchestrator.Result, error) {
	systemPrompt, err := c.prompts.RolePrompt("coder")
	if err != nil {
		log.Printf("Warning: failed to load coder prompt: %v", err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt+c.environmentNote()),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	expectsCode := wantsCode(prompt)
	var (
		answer   string
		feedback string
		execOK   bool
		nudges   int
	)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		answer, err = c.ask(ctx, &messages)
		if err != nil {
			return orchestrator.Result{Answer: fmt.Sprintf("Error: %v", err)}, nil
		}

		if strings.Contains(answer, clarificationMarker) {
			question := strings.TrimSpace(strings.ReplaceAll(answer, clarificationMarker, ""))
			if question == "" {
				question = "The request is ambiguous. Please clarify what you need."
			}
			return orchestrator.Result{Answer: question, Reasoning: "clarification requested", Success: false}, nil
		}

		if !tools.HasBlocks(answer) {
			if expectsCode && nudges < maxNoCodeNudges {
				nudges++
				messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
					"You explained but did not provide any code block. Write the complete code now, "+
						"inside a fenced code block with the language tag and a filename, for example "+
						"```python:app.py. Do not ask questions, produce the code."))
				continue
			}
			// Prose answer to a prose question.
			return orchestrator.Result{Answer: answer, Success: true}, nil
		}

		execOK, feedback = c.executeBlocks(ctx, answer)
		if execOK && !hasErrorIndicators(feedback) {
			break
		}

		c.logger.LogStep("", "", "coder", "execution_failed")
		corrected, fixedAnswer, fixedFeedback := c.selfCorrect(ctx, &messages, answer, feedback)
		if corrected {
			answer, feedback, execOK = fixedAnswer, fixedFeedback, true
			break
		}
		answer, feedback = fixedAnswer, fixedFeedback

		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
			c.debugPrompt(feedback)))
	}

	final := strings.TrimSpace(tools.StripBlocks(answer))
	if v := c.verifySavedFiles(answer); v != "" {
		final = strings.TrimSpace(final + "\n\n" + v)
	}
	if feedback != "" {
		tag := "[failure]"
		if execOK {
			tag = "[success]"
		}
		final = strings.TrimSpace(final + "\n\n" + tag + " execution output:\n" + truncateText(feedback, 1500))
	}

	success := execOK || !tools.HasBlocks(answer)
	return orchestrator.Result{Answer: final, Success: success}, nil
}

func (c *CoderAgent) ask(ctx context.Context, messages *[]llms.MessageContent) (string, error) {
	resp, err := c.model.GenerateContent(ctx, *messages)
	if err != nil {
		return "", err
	}
	answer := resp.Choices[0].Content
	c.logger.LogLLM("", "", "", truncateText(answer, 500))
	*messages = append(*messages, llms.TextParts(llms.ChatMessageTypeAI, answer))
	return answer, nil
}

// executeBlocks runs every block in the answer, saving save-only languages
// and executing the rest. It returns overall success plus the combined
// transcript.
func (c *CoderAgent) executeBlocks(ctx context.Context, answer string) (bool, string) {
	blocks := tools.ParseBlocks(answer)
	ok := true
	var transcript []string
	for _, b := range blocks {
		switch {
		case c.runner.SaveOnly(b.Language):
			if path, err := c.runner.Save(b); err != nil {
				ok = false
				transcript = append(transcript, fmt.Sprintf("failed to save %s: %v", b.Filename, err))
			} else {
				transcript = append(transcript, fmt.Sprintf("Saved %s", path))
			}
		case c.runner.Executable(b.Language):
			res := c.runner.Execute(ctx, b)
			transcript = append(transcript, c.runner.Format(res))
			if !res.Success {
				ok = false
			}
		case b.Filename != "":
			if path, err := c.runner.Save(b); err != nil {
				transcript = append(transcript, fmt.Sprintf("failed to save %s: %v", b.Filename, err))
			} else {
				transcript = append(transcript, fmt.Sprintf("Saved %s", path))
			}
		}
		if !ok {
			break
		}
	}
	return ok, strings.Join(transcript, "\n")
}

func (c *CoderAgent) debugPrompt(feedback string) string {
	hint := ""
	lower := strings.ToLower(feedback)
	switch {
	case strings.Contains(lower, "modulenotfounderror"), strings.Contains(lower, "no module named"):
		hint = "A required package is missing. Either install it with a bash block or rewrite without the dependency."
	case strings.Contains(lower, "syntaxerror"), strings.Contains(lower, "indentationerror"):
		hint = "The code has a syntax problem. Rewrite the affected file completely and carefully."
	case strings.Contains(lower, "filenotfounderror"), strings.Contains(lower, "no such file"):
		hint = "A referenced file does not exist. Create it first or correct the path."
	}
	p := fmt.Sprintf("Execution failed with the following output:\n%s\n\n"+
		"Fix the problem and return the COMPLETE corrected code, not a fragment.",
		truncateText(feedback, 1500))
	if hint != "" {
		p += "\nHint: " + hint
	}
	return p
}

// verifySavedFiles confirms that files the answer claims to have written
// exist on disk.
func (c *CoderAgent) verifySavedFiles(answer string) string {
	names := tools.SavedFilenames(answer)
	if len(names) == 0 {
		return ""
	}
	var lines []string
	for _, name := range names {
		path := filepath.Join(c.runner.WorkDir, name)
		if info, err := os.Stat(path); err == nil {
			lines = append(lines, fmt.Sprintf("Verified: %s (%d bytes)", name, info.Size()))
		} else {
			lines = append(lines, fmt.Sprintf("Warning: %s was not written to disk", name))
		}
	}
	return strings.Join(lines, "\n")
}

func (c *CoderAgent) environmentNote() string {
	return fmt.Sprintf("\n\nEnvironment: %s/%s. Working directory: %s. "+
		"Python is available as python3 and shell scripts run under bash. "+
		"Always put code in fenced blocks tagged with the language, and name files "+
		"that must be saved, for example ```python:main.py.",
		runtime.GOOS, runtime.GOARCH, c.runner.WorkDir)
}

func wantsCode(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range buildKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasErrorIndicators(feedback string) bool {
	for _, ind := range errorIndicators {
		if strings.Contains(feedback, ind) {
			return true
		}
	}
	return false
}
