package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// sharedPromptOrder fixes the concatenation order of the prompt fragments
// every role shares.
var sharedPromptOrder = []string{"identity.md", "soul.md", "capabilities.md"}

// defaultRolePrompts back each role when no prompt file is present on disk.
var defaultRolePrompts = map[string]string{
	"coder": "You are a senior software engineer. Solve the task by writing complete, " +
		"runnable code in fenced blocks tagged with the language and a filename, for " +
		"example ```python:app.py. Prefer small working programs over explanations. " +
		"If the request is truly impossible to act on, reply with REQUEST_CLARIFICATION " +
		"followed by one precise question.",
	"web": "You are a research specialist. Use your search, scraping and browser tools " +
		"to find accurate, current information. Always cite the URLs you used and quote " +
		"exact commands or version numbers when the task needs them.",
	"file": "You are a filesystem specialist. Use your file and shell tools to inspect, " +
		"create, move and fix files inside the working directory. Report every path you " +
		"touched.",
	"casual": "You are a helpful, concise assistant. Answer directly in plain language.",
	"planner": "You are a planning specialist. Break the goal into small, concrete steps, " +
		"each assigned to one capability (coder, web, file or casual), with explicit " +
		"dependencies between steps.",
}

// PromptManager assembles system prompts from markdown fragments in a
// directory, with built-in fallbacks so a missing directory still yields a
// usable prompt.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// RolePrompt builds the system prompt for a role: the shared fragments in
// fixed order, then <role>.md. When neither exists the built-in default is
// returned, with an error only for unknown roles.
func (pm *PromptManager) RolePrompt(role string) (string, error) {
	var contents []string
	for _, name := range sharedPromptOrder {
		if data := pm.readFragment(name); data != "" {
			contents = append(contents, data)
		}
	}
	if data := pm.readFragment(role + ".md"); data != "" {
		contents = append(contents, data)
	} else if fallback, ok := defaultRolePrompts[role]; ok {
		contents = append(contents, fallback)
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("no prompt available for role %q", role)
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}

// PlannerPrompt returns the decomposition prompt used by the planner.
func (pm *PromptManager) PlannerPrompt() (string, error) {
	return pm.RolePrompt("planner")
}

func (pm *PromptManager) readFragment(name string) string {
	if pm.Directory == "" {
		return ""
	}
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
