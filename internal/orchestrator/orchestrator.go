package orchestrator

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
)

// Result is what a worker reports back for one invocation. Success is the
// worker's own verdict; the dispatcher folds transport faults into a failed
// Result rather than letting them escape.
type Result struct {
	Answer    string
	Reasoning string
	Success   bool
}

// Worker is one delegable capability (coder, web, file, casual). Process
// must not block indefinitely; cancellation arrives through ctx.
type Worker interface {
	Role() string
	Process(ctx context.Context, prompt string) (Result, error)
}

// FactStore is the long-lived memory collaborator. This core only reads
// topic context and appends facts; nil-tolerant wrappers are the caller's
// concern, so the orchestrator accepts a nil store.
type FactStore interface {
	ContextFor(topic string) string
	StoreFact(kind, content, source string) error
	StoreProject(name, projectType, path, description, status string) error
	AppendExecution(stepID int, agent string, success bool, preview string, browseRetry bool) error
}

// ExecutionRecord is one append-only entry of the dispatch log.
type ExecutionRecord struct {
	StepID          int       `json:"step_id"`
	Agent           string    `json:"agent"`
	Success         bool      `json:"success"`
	AnswerPreview   string    `json:"answer_preview"`
	Timestamp       time.Time `json:"timestamp"`
	RetryWithBrowse bool      `json:"retry_with_browse,omitempty"`
}

// Limits bounds the run loop. Zero values fall back to the defaults so
// tests can tune a single knob.
type Limits struct {
	MaxAttempts       int // per-step attempt budget for initial steps
	IterationFactor   int // iteration cap = factor * initial step count
	FailureBreaker    int // consecutive failures that suspend revision
	SelfCorrectionMax int // advisory budget passed to workers that self-correct
}

// DefaultLimits are the values a nil or zero Limits resolves to.
func DefaultLimits() Limits {
	return Limits{
		MaxAttempts:       DefaultMaxAttempts,
		IterationFactor:   4,
		FailureBreaker:    3,
		SelfCorrectionMax: 3,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = d.MaxAttempts
	}
	if l.IterationFactor <= 0 {
		l.IterationFactor = d.IterationFactor
	}
	if l.FailureBreaker <= 0 {
		l.FailureBreaker = d.FailureBreaker
	}
	if l.SelfCorrectionMax <= 0 {
		l.SelfCorrectionMax = d.SelfCorrectionMax
	}
	return l
}

// Orchestrator drives one plan at a time to completion. The worker map is
// fixed at construction and shared by reference; the plan is owned and
// mutated exclusively by the run loop.
type Orchestrator struct {
	workers  map[string]Worker
	memory   FactStore
	notifier Notifier
	logger   *observability.Logger
	limits   Limits
	rules    []RecoveryRule
	verifier Verifier

	plan            *ExecutionPlan
	executionMemory []ExecutionRecord
	lastAnswer      string
	statusMessage   string
	stopped         atomic.Bool
}

// Option mutates orchestrator construction.
type Option func(*Orchestrator)

// WithNotifier attaches a notifier sink; absent, events are dropped.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithFactStore attaches the persistent memory collaborator.
func WithFactStore(s FactStore) Option {
	return func(o *Orchestrator) { o.memory = s }
}

// WithLimits overrides the run bounds.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l.withDefaults() }
}

// WithRecoveryRules replaces the ordered failure taxonomy.
func WithRecoveryRules(rules []RecoveryRule) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// New builds an orchestrator over an immutable capability map.
func New(workers map[string]Worker, logger *observability.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workers:       workers,
		notifier:      NopNotifier{},
		logger:        logger,
		limits:        DefaultLimits(),
		rules:         defaultRecoveryRules(),
		statusMessage: "Idle",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = observability.NewLogger()
	}
	return o
}

// Stop requests cooperative cancellation: the run loop checks the flag
// between iterations and never preempts an in-flight worker call.
func (o *Orchestrator) Stop() { o.stopped.Store(true) }

// LastAnswer returns the most recent progress or summary text.
func (o *Orchestrator) LastAnswer() string { return o.lastAnswer }

// StatusMessage returns the current human-readable run state.
func (o *Orchestrator) StatusMessage() string { return o.statusMessage }

// ExecutionMemory returns the append-only dispatch log of the current run.
func (o *Orchestrator) ExecutionMemory() []ExecutionRecord { return o.executionMemory }

// resolveWorker maps a capability tag to a worker: exact match, then prefix
// match on the first three characters, then the coder fallback. Candidates
// are scanned in sorted name order so ties resolve the same way every run.
// It never returns nil as long as the map has a coder or at least one entry.
func (o *Orchestrator) resolveWorker(agentType string) (string, Worker) {
	key := strings.ToLower(agentType)
	if w, ok := o.workers[key]; ok {
		return key, w
	}
	names := make([]string, 0, len(o.workers))
	for name := range o.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	prefix := key
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name, o.workers[name]
		}
	}
	if w, ok := o.workers["coder"]; ok {
		return "coder", w
	}
	for _, name := range names {
		return name, o.workers[name]
	}
	return "", nil
}

// ExecuteStep dispatches one step: builds the context bundle, resolves the
// worker, runs it, and applies at most one browse-assisted remediation pass
// for failed coder steps. Worker faults come back as a failed result, never
// as an error.
func (o *Orchestrator) ExecuteStep(ctx context.Context, step *TaskStep, requiredInfos map[string]string) (string, bool) {
	step.Status = StatusRunning
	agentKey, worker := o.resolveWorker(step.AgentType)
	if worker == nil {
		return "no worker available for capability " + step.AgentType, false
	}

	prompt := o.buildPrompt(step, requiredInfos)

	log.Printf("Executing step %d: %s with agent %s", step.ID, step.Description, agentKey)
	o.statusMessage = fmt.Sprintf("Step %d: %s", step.ID, step.Description)
	o.logger.LogStep("", fmt.Sprint(step.ID), agentKey, truncate(step.Description, 200))

	total := 1
	if o.plan != nil {
		total = len(o.plan.Steps)
	}
	o.notifier.Status("orchestrator", fmt.Sprintf("Step %d/%d", step.ID, total),
		float64(step.ID)/float64(total), truncate(step.Description, 100))

	res, err := worker.Process(ctx, prompt)
	if err != nil {
		log.Printf("Step %d error: %v", step.ID, err)
		return fmt.Sprintf("Error: %v", err), false
	}

	o.recordExecution(step, agentKey, res, false)

	if !res.Success && agentKey == "coder" {
		if fixed, ok := o.browseAssistedRetry(ctx, step, res.Answer, worker); ok {
			res = fixed
		}
	}

	if res.Success && o.memory != nil {
		_ = o.memory.StoreFact("execution_success",
			fmt.Sprintf("Step '%s' succeeded with agent %s", truncate(step.Description, 100), agentKey),
			"orchestrator")
	}

	return res.Answer, res.Success
}

func (o *Orchestrator) buildPrompt(step *TaskStep, requiredInfos map[string]string) string {
	prompt := step.Description

	if len(requiredInfos) > 0 {
		var parts []string
		for id, result := range requiredInfos {
			parts = append(parts, fmt.Sprintf("- Result of step %s: %s\n", id, result))
		}
		prompt = fmt.Sprintf(
			"Context from previous steps:\n%s\nYour task now:\n%s\n\n"+
				"INSTRUCTIONS: Start working immediately without asking questions. Use the information from the previous steps.",
			strings.Join(parts, ""), step.Description)
	}

	if o.plan != nil {
		if rich := richContext(o.plan); rich != "" {
			prompt = rich + "\n\n" + prompt
		}
	}

	if step.Error != "" && step.Attempts > 0 {
		prompt += fmt.Sprintf(
			"\n\nWARNING: The previous attempt FAILED with this error:\n%s\n"+
				"Use a DIFFERENT approach this time. Do not repeat the same method.",
			truncate(step.Error, 500))
	}

	if o.memory != nil {
		if recalled := o.memory.ContextFor(step.Description); recalled != "" {
			prompt += "\n" + recalled
		}
	}
	return prompt
}

// installCommandPatterns mine browse answers for shell package-manager
// invocations worth repeating verbatim.
var (
	pipCommandPattern = regexp.MustCompile(`pip3?\s+install\s+[\w\-.\[\]>=<]+(?:\s+[\w\-.\[\]>=<]+)*`)
	aptCommandPattern = regexp.MustCompile(`(?:sudo\s+)?apt(?:-get)?\s+install\s+[\w\-]+(?:\s+[\w\-]+)*`)
)

// browseAssistedRetry is the single cross-worker remediation pass: when a
// coder step failed with a missing-dependency signature, ask the web worker
// for install guidance, fold any install commands it surfaced into a retry
// prompt, and re-invoke the coder once.
func (o *Orchestrator) browseAssistedRetry(ctx context.Context, step *TaskStep, errText string, coder Worker) (Result, bool) {
	lower := strings.ToLower(errText)
	if !strings.Contains(lower, "no module named") &&
		!strings.Contains(lower, "pip install") &&
		!strings.Contains(lower, "modulenotfounderror") {
		return Result{}, false
	}

	packageName, ok := MissingModule(errText)
	if !ok {
		return Result{}, false
	}
	log.Printf("Detected install failure for: %s", packageName)

	_, webWorker := o.resolveWorker("web")
	if webWorker == nil || webWorker == coder {
		return Result{}, false
	}

	o.notifier.Event("multi_tool", map[string]any{
		"action":  "auto_browse_install",
		"details": fmt.Sprintf("Coder failed to install '%s', asking the browse worker for a fix", packageName),
		"agent":   "orchestrator",
	})
	o.logger.LogMultiTool("", fmt.Sprint(step.ID), "auto_browse_install", packageName)

	query := fmt.Sprintf("install %s python pip Linux Ubuntu error fix", packageName)
	browseRes, err := webWorker.Process(ctx, query)
	if err != nil || browseRes.Answer == "" {
		if err != nil {
			log.Printf("Browse for install failed: %v", err)
		}
		return Result{}, false
	}
	guidance := truncate(browseRes.Answer, 1500)

	var commands []string
	commands = append(commands, pipCommandPattern.FindAllString(guidance, -1)...)
	commands = append(commands, aptCommandPattern.FindAllString(guidance, -1)...)

	var retryPrompt strings.Builder
	if len(commands) > 0 {
		fmt.Fprintf(&retryPrompt, "Based on a web search, here is how to install '%s':\nCommands found:\n", packageName)
		for _, cmd := range capList(commands, 5) {
			fmt.Fprintf(&retryPrompt, "  - %s\n", cmd)
		}
		fmt.Fprintf(&retryPrompt, "\nFull details from the web:\n%s\n\nTry installing with the commands above, then repeat the original task:\n%s",
			truncate(guidance, 800), step.Description)
	} else {
		fmt.Fprintf(&retryPrompt, "Web information about '%s':\n%s\n\nUse this to fix the installation, then repeat the task:\n%s",
			packageName, truncate(guidance, 800), step.Description)
	}

	log.Printf("Retrying step %d with browser-assisted install info", step.ID)
	o.notifier.Event("multi_tool", map[string]any{
		"action":  "retry_with_browser_info",
		"details": fmt.Sprintf("Step %d retried with install info from the web", step.ID),
		"agent":   "orchestrator",
	})

	res, err := coder.Process(ctx, retryPrompt.String())
	if err != nil {
		res = Result{Answer: fmt.Sprintf("Error: %v", err), Success: false}
	}
	o.recordExecution(step, "coder", res, true)
	return res, true
}

func (o *Orchestrator) recordExecution(step *TaskStep, agentKey string, res Result, browseRetry bool) {
	o.executionMemory = append(o.executionMemory, ExecutionRecord{
		StepID:          step.ID,
		Agent:           agentKey,
		Success:         res.Success,
		AnswerPreview:   truncate(res.Answer, 200),
		Timestamp:       time.Now(),
		RetryWithBrowse: browseRetry,
	})
	if o.memory != nil {
		_ = o.memory.AppendExecution(step.ID, agentKey, res.Success, truncate(res.Answer, 200), browseRetry)
	}
}

// Reflect interprets one dispatch outcome. Success completes the step;
// failure burns an attempt and either re-queues the step or, once the budget
// is exhausted, marks it terminally failed. Must be called exactly once per
// dispatch.
func (o *Orchestrator) Reflect(step *TaskStep, result string, success bool) string {
	var reflection string
	if success {
		reflection = fmt.Sprintf("Step %d succeeded: %s", step.ID, step.Description)
		step.Status = StatusCompleted
		step.Result = result
	} else {
		step.Attempts++
		step.Error = result
		if step.Attempts >= step.MaxAttempts {
			reflection = fmt.Sprintf("Step %d failed after %d attempts: %s", step.ID, step.MaxAttempts, step.Description)
			step.Status = StatusFailed
		} else {
			reflection = fmt.Sprintf("Step %d failed (attempt %d/%d), will retry", step.ID, step.Attempts, step.MaxAttempts)
			step.Status = StatusPending
		}
	}

	if o.plan != nil {
		o.plan.ReflectionLog = append(o.plan.ReflectionLog, reflection)
	}
	log.Printf("Reflection: %s", reflection)
	o.logger.LogReflection("", fmt.Sprint(step.ID), reflection, success)

	level := "success"
	if !success {
		level = "error"
	}
	o.notifier.ExecutionLog(level, reflection, step.AgentType)
	return reflection
}

// RevisePlan classifies a terminally failed step's error against the ordered
// rule list and appends the synthesized recovery steps. The failed step is
// never mutated or removed.
func (o *Orchestrator) RevisePlan(failed *TaskStep) {
	if o.plan == nil {
		return
	}
	for _, rule := range o.rules {
		if !rule.Match(failed.Error) {
			continue
		}
		steps := rule.Build(o.plan, failed)
		o.plan.Steps = append(o.plan.Steps, steps...)
		for _, s := range steps {
			log.Printf("Plan revised (%s): recovery step %d (agent: %s) for failed step %d",
				rule.Name, s.ID, s.AgentType, failed.ID)
		}
		o.logger.LogRevision("", fmt.Sprint(failed.ID), rule.Name, len(steps))
		return
	}
}
