package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// maxReasoningSteps bounds a worker's tool loop for one prompt.
const maxReasoningSteps = 10

// ToolWorker is a capability backed by a reasoning loop over a tool
// registry: think, call tools, observe, repeat. The browse and file workers
// are ToolWorker instances with different registries and prompts.
type ToolWorker struct {
	role     string
	model    llms.Model
	registry *tools.Registry
	prompts  *PromptManager
	logger   *observability.Logger
}

func NewToolWorker(role string, model llms.Model, registry *tools.Registry, prompts *PromptManager, logger *observability.Logger) *ToolWorker {
	return &ToolWorker{
		role:     role,
		model:    model,
		registry: registry,
		prompts:  prompts,
		logger:   logger,
	}
}

func (w *ToolWorker) Role() string { return w.role }

// Process runs the reasoning loop until the model answers without a tool
// call or the step bound trips. Tool faults are reported back into the
// conversation rather than aborting the loop.
func (w *ToolWorker) Process(ctx context.Context, prompt string) (orchestrator.Result, error) {
	systemPrompt, err := w.prompts.RolePrompt(w.role)
	if err != nil {
		log.Printf("Warning: failed to load %s prompt: %v", w.role, err)
	}

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var llmTools []llms.Tool
	for _, t := range w.registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	var finalResponse string
	for i := 0; i < maxReasoningSteps; i++ {
		resp, err := w.model.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			return orchestrator.Result{Answer: fmt.Sprintf("Error: %v", err)}, nil
		}
		choice := resp.Choices[0]
		w.logger.LogLLM("", "", truncateText(prompt, 500), truncateText(choice.Content, 500))

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		if len(choice.ToolCalls) == 0 {
			finalResponse = choice.Content
			break
		}

		for _, tc := range choice.ToolCalls {
			tool := w.registry.Get(tc.FunctionCall.Name)
			var result string
			if tool == nil {
				result = fmt.Sprintf("Error: Tool %s not found", tc.FunctionCall.Name)
			} else {
				log.Printf("[%s step %d] Executing tool %s with args: %s",
					w.role, i+1, tool.Name(), tc.FunctionCall.Arguments)
				res, err := tool.Execute(ctx, tc.FunctionCall.Arguments)
				if err != nil {
					res = fmt.Sprintf("Error: %v", err)
				}
				result = res
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	if finalResponse == "" {
		return orchestrator.Result{
			Answer:  "Reached the maximum reasoning steps without a final answer.",
			Success: false,
		}, nil
	}
	return orchestrator.Result{Answer: finalResponse, Success: true}, nil
}

// CasualWorker is a plain conversational capability: one model call, no
// tools.
type CasualWorker struct {
	model   llms.Model
	prompts *PromptManager
	logger  *observability.Logger
}

func NewCasualWorker(model llms.Model, prompts *PromptManager, logger *observability.Logger) *CasualWorker {
	return &CasualWorker{model: model, prompts: prompts, logger: logger}
}

func (w *CasualWorker) Role() string { return "casual" }

func (w *CasualWorker) Process(ctx context.Context, prompt string) (orchestrator.Result, error) {
	systemPrompt, err := w.prompts.RolePrompt("casual")
	if err != nil {
		log.Printf("Warning: failed to load casual prompt: %v", err)
	}

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := w.model.GenerateContent(ctx, messages)
	if err != nil {
		return orchestrator.Result{Answer: fmt.Sprintf("Error: %v", err)}, nil
	}
	answer := resp.Choices[0].Content
	w.logger.LogLLM("", "", truncateText(prompt, 500), truncateText(answer, 500))
	return orchestrator.Result{Answer: answer, Success: answer != ""}, nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
