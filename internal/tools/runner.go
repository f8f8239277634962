package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/governance"
)

// saveOnlyLanguages are artifacts that are written to disk but never run by
// the runner itself.
var saveOnlyLanguages = map[string]bool{
	"c": true, "go": true, "java": true,
	"html": true, "css": true, "javascript": true,
	"typescript": true, "sql": true,
}

// interpreters maps an executable language to the command that runs a file
// of it.
var interpreters = map[string]string{
	"python": "python3",
	"bash":   "bash",
	"sh":     "bash",
}

// ExecResult is the outcome of running (or saving) one block.
type ExecResult struct {
	Language string
	Success  bool
	Output   string
	ExitCode int
	Duration time.Duration
	Saved    string // path the block was written to, if any
}

// Runner executes fenced blocks inside a working directory. Every run goes
// through the policy engine first; policy denials come back as failed
// results, not errors, so workers can self-correct around them.
type Runner struct {
	WorkDir string
	Timeout time.Duration
	Policy  governance.PolicyEngine
}

func NewRunner(workDir string, policy governance.PolicyEngine) *Runner {
	abs, _ := filepath.Abs(workDir)
	return &Runner{
		WorkDir: abs,
		Timeout: 120 * time.Second,
		Policy:  policy,
	}
}

// SaveOnly reports whether the language is written to disk without running.
func (r *Runner) SaveOnly(language string) bool {
	return saveOnlyLanguages[language]
}

// Executable reports whether the runner knows how to run the language.
func (r *Runner) Executable(language string) bool {
	_, ok := interpreters[language]
	return ok
}

// Save writes a named block under the working directory and returns the
// absolute path. Paths escaping the working directory are rejected.
func (r *Runner) Save(block Block) (string, error) {
	if block.Filename == "" {
		return "", fmt.Errorf("block has no filename")
	}
	target := filepath.Join(r.WorkDir, block.Filename)
	rel, err := filepath.Rel(r.WorkDir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("unsafe path attempt: %s", block.Filename)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(block.Code), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return target, nil
}

// Execute runs one executable block and never returns an error: faults are
// folded into a failed ExecResult with the fault text as output.
func (r *Runner) Execute(ctx context.Context, block Block) ExecResult {
	interpreter, ok := interpreters[block.Language]
	if !ok {
		return ExecResult{
			Language: block.Language,
			Success:  false,
			Output:   fmt.Sprintf("no interpreter registered for language %q", block.Language),
		}
	}

	if r.Policy != nil {
		verdict, err := r.Policy.Evaluate(ctx, governance.Request{
			Action:    block.Language,
			Arguments: block.Code,
		})
		if err == nil && verdict.Effect == governance.EffectDeny {
			return ExecResult{
				Language: block.Language,
				Success:  false,
				Output:   "Blocked by policy: " + verdict.Reason,
			}
		}
	}

	scriptPath, err := r.writeScript(block)
	if err != nil {
		return ExecResult{Language: block.Language, Success: false, Output: err.Error()}
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, interpreter, scriptPath)
	cmd.Dir = r.WorkDir
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	res := ExecResult{
		Language: block.Language,
		Output:   strings.TrimSpace(string(output)),
		Duration: duration,
		Saved:    block.Filename,
	}
	if res.Output == "" {
		res.Output = "(no output)"
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.Success = false
		res.Output = fmt.Sprintf("execution timeout after %s\n%s", r.Timeout, res.Output)
		return res
	}
	if err != nil {
		res.Success = false
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Output = fmt.Sprintf("%v\n%s", err, res.Output)
		}
		return res
	}
	res.Success = true
	return res
}

// writeScript materializes the block for the interpreter. Named blocks land
// at their declared path; anonymous ones go to a scratch file.
func (r *Runner) writeScript(block Block) (string, error) {
	if block.Filename != "" {
		return r.Save(block)
	}
	ext := ".sh"
	if block.Language == "python" {
		ext = ".py"
	}
	scratch := filepath.Join(r.WorkDir, ".scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path := filepath.Join(scratch, fmt.Sprintf("block_%d%s", time.Now().UnixNano(), ext))
	if err := os.WriteFile(path, []byte(block.Code), 0644); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return path, nil
}

// Format renders an ExecResult as the feedback text workers reason over.
func (r *Runner) Format(res ExecResult) string {
	if res.Success {
		return fmt.Sprintf("[success] execution completed in %.2fs\n%s", res.Duration.Seconds(), res.Output)
	}
	return fmt.Sprintf("[failure] exit code %d\n%s", res.ExitCode, res.Output)
}
