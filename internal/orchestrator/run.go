package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
)

// DeadlockError is the synthetic error text written to steps that can never
// become ready because a prerequisite failed or does not exist.
const DeadlockError = "dependency deadlock: a required step failed or is missing"

// Verifier inspects the workspace after a run and, when the produced
// artifacts look wrong, returns a one-shot fix prompt for the coder worker.
// An empty string means nothing to fix.
type Verifier interface {
	BuildFixPrompt(ctx context.Context, goal string) string
}

// WithVerifier attaches a post-run artifact verifier.
func WithVerifier(v Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// Summary aggregates the outcome of a finished run.
type Summary struct {
	TotalSteps     int      `json:"total_steps"`
	Completed      int      `json:"completed"`
	Failed         int      `json:"failed"`
	Skipped        int      `json:"skipped"`
	ElapsedSeconds float64  `json:"elapsed_time"`
	SuccessRate    float64  `json:"success_rate"`
	ReflectionLog  []string `json:"reflection_log"`
	FilesCreated   []string `json:"files_created"`
	URLsFound      []string `json:"urls_found"`
}

// Summary builds the aggregate view of the current (or last) plan.
func (o *Orchestrator) Summary() Summary {
	if o.plan == nil {
		return Summary{}
	}
	files, urls := ExtractArtifacts(o.plan)
	tail := o.plan.ReflectionLog
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	return Summary{
		TotalSteps:     len(o.plan.Steps),
		Completed:      o.plan.CountByStatus(StatusCompleted),
		Failed:         o.plan.CountByStatus(StatusFailed),
		Skipped:        o.plan.CountByStatus(StatusPending),
		ElapsedSeconds: o.plan.Elapsed().Seconds(),
		SuccessRate:    o.plan.SuccessRate(),
		ReflectionLog:  append([]string(nil), tail...),
		FilesCreated:   files,
		URLsFound:      urls,
	}
}

// RunLoop drives a fresh plan built from the supplied task list until every
// step is terminal or a bound trips. It processes exactly one step at a
// time; the bound of iterationFactor * initial steps guarantees termination
// no matter how many recovery steps revision appends. The stop flag and ctx
// are checked between iterations only.
func (o *Orchestrator) RunLoop(ctx context.Context, goal string, tasks []TaskSpec) string {
	plan := NewPlan(goal, tasks)
	for _, s := range plan.Steps {
		s.MaxAttempts = o.limits.MaxAttempts
	}
	o.plan = plan
	o.executionMemory = nil
	o.stopped.Store(false)

	log.Printf("Plan created with %d steps for: %s", len(plan.Steps), goal)
	o.logger.LogPlan("", goal, len(plan.Steps))
	o.notifier.Status("orchestrator", "Starting autonomous run", 0, fmt.Sprintf("%d steps", len(plan.Steps)))
	o.notifier.PlanUpdate(plan.ProgressData(), 0)
	o.notifier.Phase("plan", 0, fmt.Sprintf("Planning %d steps for: %s", len(plan.Steps), goal))

	maxIterations := len(plan.Steps) * o.limits.IterationFactor
	iteration := 0
	consecutiveFailures := 0
	var finalAnswer string

	for !plan.IsComplete() && iteration < maxIterations {
		if o.stopped.Load() || ctx.Err() != nil {
			log.Printf("Run cancelled after %d iterations", iteration)
			break
		}

		step := plan.NextStep()
		if step == nil {
			if plan.HasPending() {
				log.Printf("Dependency deadlock detected - marking blocked steps as failed")
				for _, s := range plan.Steps {
					if s.Status == StatusPending {
						s.Status = StatusFailed
						s.Error = DeadlockError
					}
				}
			}
			break
		}

		iteration++
		o.lastAnswer = plan.ProgressText()
		o.notifier.PlanUpdate(plan.ProgressData(), step.ID)

		requiredInfos := dependencyResults(plan, step)

		o.notifier.Phase("execute", step.ID, step.Description)
		result, success := o.ExecuteStep(ctx, step, requiredInfos)

		o.notifier.Phase("observe", step.ID, fmt.Sprintf("Success: %v", success))
		o.notifier.Phase("reflect", step.ID, "Analyzing result")
		o.Reflect(step, result, success)
		observability.SetProgress(plan.CountByStatus(StatusCompleted), len(plan.Steps))

		if success {
			consecutiveFailures = 0
			finalAnswer = result
		} else {
			consecutiveFailures++
		}

		// Revision is gated by the consecutive-failure breaker so repeated
		// failures cannot grow the plan without bound.
		if !success && step.Status == StatusFailed {
			if consecutiveFailures < o.limits.FailureBreaker {
				o.notifier.Phase("revise", step.ID, "Revising plan after failure")
				o.RevisePlan(step)
			} else {
				log.Printf("Too many consecutive failures (%d), skipping recovery", consecutiveFailures)
			}
		}

		o.lastAnswer = plan.ProgressText()
		o.notifier.PlanUpdate(plan.ProgressData(), step.ID)
		o.sendProgress(step)
	}

	o.runVerifier(ctx, goal, &finalAnswer)

	summary := o.Summary()
	log.Printf("Run finished: %d/%d steps succeeded (%.1fs)",
		summary.Completed, summary.TotalSteps, summary.ElapsedSeconds)
	o.notifier.Status("orchestrator", fmt.Sprintf("Done: %d/%d", summary.Completed, summary.TotalSteps),
		1.0, fmt.Sprintf("Elapsed: %.1fs", summary.ElapsedSeconds))

	if o.memory != nil {
		status := "completed"
		if summary.Completed != summary.TotalSteps {
			status = "partial"
		}
		_ = o.memory.StoreProject(truncate(goal, 100), "autonomous", "",
			fmt.Sprintf("%d/%d steps succeeded", summary.Completed, summary.TotalSteps), status)
	}

	o.lastAnswer = o.renderSummary(summary, finalAnswer)
	o.statusMessage = "Idle"
	return o.lastAnswer
}

func (o *Orchestrator) sendProgress(current *TaskStep) {
	plan := o.plan
	completed := plan.CountByStatus(StatusCompleted)
	failed := plan.CountByStatus(StatusFailed)
	total := len(plan.Steps)
	elapsed := plan.Elapsed().Seconds()

	estimated := 0.0
	if completed > 0 && elapsed > 0 {
		avg := elapsed / float64(completed)
		estimated = avg * float64(total-completed-failed)
	}
	o.notifier.Progress(ProgressUpdate{
		TotalSteps:         total,
		CompletedSteps:     completed,
		FailedSteps:        failed,
		CurrentStepID:      current.ID,
		CurrentDescription: current.Description,
		ElapsedSeconds:     elapsed,
		EstimatedRemaining: estimated,
		SuccessRate:        plan.SuccessRate(),
	})
}

func (o *Orchestrator) runVerifier(ctx context.Context, goal string, finalAnswer *string) {
	if o.verifier == nil {
		return
	}
	fixPrompt := o.verifier.BuildFixPrompt(ctx, goal)
	if fixPrompt == "" {
		return
	}
	coder, ok := o.workers["coder"]
	if !ok {
		return
	}

	log.Printf("Artifact verification requested a fix pass")
	o.notifier.Event("visual_verification", map[string]any{
		"phase":   "fixing",
		"details": "Coder worker is fixing reported layout issues",
	})

	res, err := coder.Process(ctx, fixPrompt)
	if err == nil && res.Success {
		*finalAnswer = res.Answer
	} else {
		log.Printf("Verification fix pass failed, keeping previous result")
	}
}

func (o *Orchestrator) renderSummary(summary Summary, finalAnswer string) string {
	var b strings.Builder
	b.WriteString(o.plan.ProgressText())
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "**Outcome:** %d/%d steps finished in %.1f seconds",
		summary.Completed, summary.TotalSteps, summary.ElapsedSeconds)

	if len(summary.ReflectionLog) > 0 {
		b.WriteString("\n\n**Reflection log:**")
		tail := summary.ReflectionLog
		if len(tail) > 5 {
			tail = tail[len(tail)-5:]
		}
		for _, entry := range tail {
			fmt.Fprintf(&b, "\n  - %s", entry)
		}
	}

	if finalAnswer != "" {
		fmt.Fprintf(&b, "\n\n**Final result:**\n%s", finalAnswer)
	}
	return b.String()
}
