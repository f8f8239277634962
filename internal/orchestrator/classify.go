package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// RecoveryMaxAttempts is the attempt budget given to synthesized recovery
// steps; tighter than the default so a broken recovery path burns out fast.
const RecoveryMaxAttempts = 2

// RecoveryRule pairs a predicate over failure text with a builder that
// synthesizes recovery steps for the plan. Rules are evaluated in slice
// order and the first match wins; several predicates can match the same
// text, so the order is part of the contract.
type RecoveryRule struct {
	Name  string
	Match func(errText string) bool
	Build func(plan *ExecutionPlan, failed *TaskStep) []*TaskStep
}

var moduleNamePattern = regexp.MustCompile(`(?i)no module named ['"]?(\w+)`)

// MissingModule extracts the package name from a missing-dependency error,
// falling back to an explicit "pip install <pkg>" suggestion in the text.
func MissingModule(errText string) (string, bool) {
	if m := moduleNamePattern.FindStringSubmatch(errText); m != nil {
		return m[1], true
	}
	if m := regexp.MustCompile(`(?i)pip install ([\w][\w\-]*)`).FindStringSubmatch(errText); m != nil {
		return m[1], true
	}
	return "", false
}

// defaultRecoveryRules is the ordered failure taxonomy: missing dependency,
// permission, syntax, timeout/connection, then the generic capability swap.
func defaultRecoveryRules() []RecoveryRule {
	return []RecoveryRule{
		{
			Name: "missing_dependency",
			Match: func(errText string) bool {
				lower := strings.ToLower(errText)
				return strings.Contains(lower, "no module named") || strings.Contains(lower, "import")
			},
			Build: buildMissingDependencyRecovery,
		},
		{
			Name: "permission",
			Match: func(errText string) bool {
				lower := strings.ToLower(errText)
				return strings.Contains(lower, "permission") || strings.Contains(lower, "access denied")
			},
			Build: func(plan *ExecutionPlan, failed *TaskStep) []*TaskStep {
				return []*TaskStep{newRecoveryStep(plan, failed, "file", fmt.Sprintf(
					"[RECOVERY - FIX PERMISSIONS] Fix the file permission/access problem, then repeat the task: %s",
					failed.Description))}
			},
		},
		{
			Name: "syntax",
			Match: func(errText string) bool {
				return strings.Contains(strings.ToLower(errText), "syntax")
			},
			Build: func(plan *ExecutionPlan, failed *TaskStep) []*TaskStep {
				return []*TaskStep{newRecoveryStep(plan, failed, "coder", fmt.Sprintf(
					"[RECOVERY - FIX SYNTAX] Fix the syntax error in the code. "+
						"Read the offending file, identify the syntax problem, and correct it. Original task: %s",
					failed.Description))}
			},
		},
		{
			Name: "timeout",
			Match: func(errText string) bool {
				lower := strings.ToLower(errText)
				return strings.Contains(lower, "timeout") || strings.Contains(lower, "connection")
			},
			Build: func(plan *ExecutionPlan, failed *TaskStep) []*TaskStep {
				return []*TaskStep{newRecoveryStep(plan, failed, "web", fmt.Sprintf(
					"[RECOVERY - RETRY CONNECTION] Try again with a different search query or an alternate source. Original task: %s",
					failed.Description))}
			},
		},
		{
			Name:  "generic",
			Match: func(string) bool { return true },
			Build: func(plan *ExecutionPlan, failed *TaskStep) []*TaskStep {
				return []*TaskStep{newRecoveryStep(plan, failed, alternateAgent(failed.AgentType), fmt.Sprintf(
					"[RECOVERY] Try again with a different approach: %s", failed.Description))}
			},
		},
	}
}

// alternateAgent maps a capability to a different kind of worker for the
// generic fallback: a task one worker cannot do may suit another family.
func alternateAgent(agentType string) string {
	alternatives := map[string]string{
		"coder":  "file",
		"file":   "coder",
		"web":    "casual",
		"casual": "coder",
	}
	if alt, ok := alternatives[strings.ToLower(agentType)]; ok {
		return alt
	}
	return agentType
}

// buildMissingDependencyRecovery synthesizes a browse step that looks up
// install instructions, then a coder retry step depending on it.
func buildMissingDependencyRecovery(plan *ExecutionPlan, failed *TaskStep) []*TaskStep {
	moduleName, ok := MissingModule(failed.Error)
	if !ok {
		moduleName = "the required package"
	}

	browseStep := &TaskStep{
		ID: len(plan.Steps) + 1,
		Description: fmt.Sprintf(
			"[MULTI-TOOL BROWSE] Find out how to install the library '%s' on Linux/Ubuntu. "+
				"Search the web for: 'how to install %s python pip Linux'. Note the exact install command.",
			moduleName, moduleName),
		AgentType:    "web",
		Status:       StatusPending,
		MaxAttempts:  RecoveryMaxAttempts,
		Dependencies: failed.Dependencies,
	}

	retryStep := &TaskStep{
		ID: len(plan.Steps) + 2,
		Description: withRetryInstructions(fmt.Sprintf(
			"[RECOVERY - INSTALL DEPENDENCY WITH BROWSER INFO] Use the information from "+
				"the previous browse step to install '%s'. Then repeat the original task: %s",
			moduleName, failed.Description), failed.Error),
		AgentType:    "coder",
		Status:       StatusPending,
		MaxAttempts:  RecoveryMaxAttempts,
		Dependencies: []string{fmt.Sprint(browseStep.ID)},
	}
	return []*TaskStep{browseStep, retryStep}
}

func newRecoveryStep(plan *ExecutionPlan, failed *TaskStep, agentType, description string) *TaskStep {
	return &TaskStep{
		ID:           len(plan.Steps) + 1,
		Description:  withRetryInstructions(description, failed.Error),
		AgentType:    agentType,
		Status:       StatusPending,
		MaxAttempts:  RecoveryMaxAttempts,
		Dependencies: failed.Dependencies,
	}
}

// withRetryInstructions suffixes the truncated prior error and the standing
// directive that recovery steps must be self-contained and act immediately.
func withRetryInstructions(description, errText string) string {
	if errText == "" {
		errText = "Unknown error"
	}
	return fmt.Sprintf(
		"%s\n\nPREVIOUS ERROR:\n%s\n"+
			"INSTRUCTIONS: Use a DIFFERENT approach. Do not repeat the same method. "+
			"Never ask for clarification, execute immediately.",
		description, truncate(errText, 500))
}
