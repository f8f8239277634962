package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns used to mine prior step results for artifacts. File paths cover
// absolute workspace paths, relative ./ paths and work/ subdirectories; URLs
// are anything http(s) up to whitespace or quoting.
var (
	filePathPattern = regexp.MustCompile(`(?:/[\w./\-]*workspace/[^\s'"]+|\./[^\s'"]+|work(?:_dir)?/[^\s'"]+)`)
	urlPattern      = regexp.MustCompile(`https?://[^\s'"<>]+`)
)

// ExtractArtifacts returns the deduplicated file paths and URLs found in the
// results of all completed steps, in first-seen order.
func ExtractArtifacts(plan *ExecutionPlan) (files, urls []string) {
	for _, step := range plan.Steps {
		if step.Status != StatusCompleted || step.Result == "" {
			continue
		}
		files = append(files, filePathPattern.FindAllString(step.Result, -1)...)
		urls = append(urls, urlPattern.FindAllString(step.Result, -1)...)
	}
	return dedupe(files), dedupe(urls)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// richContext digests every completed step so far, so later steps see
// artifacts produced earlier even without an explicit dependency edge.
func richContext(plan *ExecutionPlan) string {
	var parts []string
	for _, step := range plan.Steps {
		if step.Status != StatusCompleted || step.Result == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("- Step %d [%s]: %s\n  Result: %s",
			step.ID, strings.ToUpper(step.AgentType),
			truncate(step.Description, 100), truncate(step.Result, 300)))
	}
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== PROJECT CONTEXT ===\n")
	b.WriteString(strings.Join(parts, "\n"))

	files, urls := ExtractArtifacts(plan)
	if len(files) > 0 {
		b.WriteString("\n\n--- Files created so far ---\n")
		for _, f := range capList(files, 20) {
			fmt.Fprintf(&b, "  * %s\n", f)
		}
	}
	if len(urls) > 0 {
		b.WriteString("\n--- URLs / resources found ---\n")
		for _, u := range capList(urls, 10) {
			fmt.Fprintf(&b, "  * %s\n", u)
		}
	}
	b.WriteString("=== END CONTEXT ===\n")
	return b.String()
}

// dependencyResults collects the truncated results of the step's completed
// dependencies. When the step declares none, it falls back to every earlier
// completed step with a shorter excerpt.
func dependencyResults(plan *ExecutionPlan, step *TaskStep) map[string]string {
	infos := make(map[string]string)
	for _, prev := range plan.Steps {
		if prev.Status != StatusCompleted {
			continue
		}
		if containsID(step.Dependencies, prev.ID) {
			infos[fmt.Sprint(prev.ID)] = truncate(prev.Result, 500)
		}
	}
	if len(infos) > 0 {
		return infos
	}
	for _, prev := range plan.Steps {
		if prev.ID < step.ID && prev.Status == StatusCompleted {
			infos[fmt.Sprint(prev.ID)] = truncate(prev.Result, 300)
		}
	}
	return infos
}

func containsID(deps []string, id int) bool {
	for _, d := range deps {
		if d == fmt.Sprint(id) {
			return true
		}
	}
	return false
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
