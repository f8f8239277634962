package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/store"
)

// Messenger delivers run output back to the channel a goal came from.
type Messenger interface {
	Send(chatID string, text string) error
}

// GoalStore is the slice of the persistence layer the scheduler needs.
type GoalStore interface {
	DueGoals() ([]store.ScheduledGoal, error)
	MarkGoalRun(id int) error
	DeleteGoal(chatID string, id int) error
}

// Scheduler polls for due goals and dispatches them through the Brain.
// One-shot goals (interval 0) are deleted after their run.
type Scheduler struct {
	Brain    Brain
	Store    GoalStore
	Gateway  Messenger
	Interval time.Duration
}

func NewScheduler(brain Brain, goals GoalStore, gateway Messenger) *Scheduler {
	return &Scheduler{
		Brain:    brain,
		Store:    goals,
		Gateway:  gateway,
		Interval: 30 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Goal scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	goals, err := s.Store.DueGoals()
	if err != nil {
		log.Printf("Error polling scheduled goals: %v", err)
		return
	}

	for _, g := range goals {
		log.Printf("Executing scheduled goal %d for chat %s: %s", g.ID, g.ChatID, g.Goal)

		response, err := s.Brain.Think(ctx, g.ChatID,
			fmt.Sprintf("[SYSTEM: Execution of a previously scheduled goal: %q. "+
				"Produce the output for the user. Do not schedule it again.]", g.Goal))
		if err != nil {
			log.Printf("Error executing scheduled goal %d: %v", g.ID, err)
			continue
		}

		if err := s.Store.MarkGoalRun(g.ID); err != nil {
			log.Printf("Error updating last run for goal %d: %v", g.ID, err)
		}
		if g.IntervalSeconds == 0 {
			if err := s.Store.DeleteGoal(g.ChatID, g.ID); err != nil {
				log.Printf("Error deleting one-time goal %d: %v", g.ID, err)
			}
		}

		if s.Gateway != nil {
			s.Gateway.Send(g.ChatID, "⏰ *Scheduled Goal Output*\n\n"+response)
		}
	}
}
