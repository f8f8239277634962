package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/governance"
)

type ShellTool struct {
	WorkDir string
	Policy  governance.PolicyEngine
}

func NewShellTool(workDir string, policy governance.PolicyEngine) *ShellTool {
	return &ShellTool{WorkDir: workDir, Policy: policy}
}

func (s *ShellTool) Name() string {
	return "shell"
}

func (s *ShellTool) Description() string {
	return "Execute a shell command in the working directory. Output is captured and returned."
}

func (s *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (s *ShellTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.Command == "" {
		return "Error: empty command", nil
	}

	if s.Policy != nil {
		verdict, err := s.Policy.Evaluate(ctx, governance.Request{Action: "bash", Arguments: args.Command})
		if err == nil && verdict.Effect == governance.EffectDeny {
			return "Blocked by policy: " + verdict.Reason, nil
		}
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", args.Command)
	cmd.Dir = s.WorkDir
	output, err := cmd.CombinedOutput()

	result := strings.TrimSpace(string(output))
	if result == "" {
		result = "(no output)"
	}
	if err != nil {
		return fmt.Sprintf("Command failed with error: %v\nOutput: %s", err, result), nil
	}
	return result, nil
}
