package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
)

// Brain is the entry point the gateways and the scheduler dispatch goals to.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

// Controller is the top-level Brain: it decomposes an incoming goal into
// tasks and drives the execution loop to a summary.
type Controller struct {
	Planner      *Planner
	Orchestrator *orchestrator.Orchestrator
	Logger       *observability.Logger
}

func NewController(planner *Planner, orch *orchestrator.Orchestrator, logger *observability.Logger) *Controller {
	return &Controller{Planner: planner, Orchestrator: orch, Logger: logger}
}

// Think plans the goal, runs the plan, and returns the run summary. Trivial
// conversational inputs skip planning and go straight to the casual
// capability as a single-step plan.
func (c *Controller) Think(ctx context.Context, chatID string, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "I need a goal to work on.", nil
	}

	observability.SetStatus(observability.RolePlanner, input)
	defer observability.SetStatus(observability.RoleIdle, "")

	tasks, err := c.Planner.ProposeTasks(ctx, input)
	if err != nil {
		return "", fmt.Errorf("planning error: %v", err)
	}
	c.Logger.LogPlan(chatID, input, len(tasks))
	log.Printf("[Controller] Goal decomposed into %d tasks", len(tasks))

	observability.SetStatus(observability.RoleWorker, input)
	return c.Orchestrator.RunLoop(ctx, input, tasks), nil
}
