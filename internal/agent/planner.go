package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
	"github.com/tmc/langchaingo/llms"
)

// plannerRetries bounds re-asks when the model answers with prose instead of
// a task proposal.
const plannerRetries = 3

// Planner turns a goal into an ordered task list via a forced tool call, so
// the decomposition arrives as structured data rather than parsed prose.
type Planner struct {
	Model   llms.Model
	Prompts *PromptManager
	Roles   []string
}

func NewPlanner(model llms.Model, prompts *PromptManager, roles []string) *Planner {
	if len(roles) == 0 {
		roles = []string{"coder", "web", "file", "casual"}
	}
	return &Planner{Model: model, Prompts: prompts, Roles: roles}
}

type proposedTask struct {
	Agent string   `json:"agent"`
	Task  string   `json:"task"`
	Need  []string `json:"need"`
}

type proposal struct {
	Tasks []proposedTask `json:"tasks"`
}

// ProposeTasks asks the model to decompose the goal. A goal the model cannot
// or will not decompose falls back to a single default-capability task, so a
// run can always start.
func (p *Planner) ProposeTasks(ctx context.Context, goal string) ([]orchestrator.TaskSpec, error) {
	plannerPrompt, err := p.Prompts.PlannerPrompt()
	if err != nil {
		return nil, fmt.Errorf("failed to load planner prompt: %v", err)
	}

	fullPrompt := fmt.Sprintf("%s\n\n## Available capabilities:\n%s",
		plannerPrompt, p.roleList())

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fullPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, goal),
	}

	for attempt := 0; attempt < plannerRetries; attempt++ {
		resp, err := p.Model.GenerateContent(ctx, messages, llms.WithTools(p.plannerTools()))
		if err != nil {
			return nil, err
		}
		choice := resp.Choices[0]

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall.Name != "propose_tasks" {
				continue
			}
			var prop proposal
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &prop); err != nil {
				return nil, fmt.Errorf("failed to parse propose_tasks arguments: %v", err)
			}
			if len(prop.Tasks) == 0 {
				break
			}
			return p.toSpecs(prop.Tasks), nil
		}

		log.Printf("Planner answered with text instead of a task proposal (attempt %d)", attempt+1)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
			"Do not answer directly. Call the propose_tasks function with the decomposed task list."))
	}

	// The goal still has to run.
	return []orchestrator.TaskSpec{{Agent: "coder", Task: goal}}, nil
}

func (p *Planner) toSpecs(tasks []proposedTask) []orchestrator.TaskSpec {
	specs := make([]orchestrator.TaskSpec, 0, len(tasks))
	for _, t := range tasks {
		specs = append(specs, orchestrator.TaskSpec{
			Agent: t.Agent,
			Task:  t.Task,
			Need:  orchestrator.DepList(t.Need),
		})
	}
	return specs
}

func (p *Planner) roleList() string {
	var lines []string
	for _, r := range p.Roles {
		lines = append(lines, "- "+r)
	}
	return strings.Join(lines, "\n")
}

func (p *Planner) plannerTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "propose_tasks",
				Description: "Submit the decomposed task list for the goal.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tasks": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"agent": map[string]any{
										"type": "string",
										"enum": p.Roles,
									},
									"task": map[string]any{
										"type": "string",
									},
									"need": map[string]any{
										"type":  "array",
										"items": map[string]any{"type": "string"},
									},
								},
								"required": []string{"agent", "task"},
							},
						},
					},
					"required": []string{"tasks"},
				},
			},
		},
	}
}
