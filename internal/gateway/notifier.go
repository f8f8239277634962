package gateway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
)

// progressInterval throttles progress pushes so a chat is not flooded by a
// long run.
const progressInterval = 20 * time.Second

// ChatNotifier forwards orchestration events to one chat through a
// Messenger. Delivery failures are swallowed: the run must not depend on
// the chat being reachable. The sink can be bound after construction, so
// the notifier can be attached to the orchestrator before any gateway is
// up.
type ChatNotifier struct {
	mu           sync.Mutex
	messenger    Messenger
	chatID       string
	lastProgress time.Time
}

func NewChatNotifier(m Messenger, chatID string) *ChatNotifier {
	return &ChatNotifier{messenger: m, chatID: chatID}
}

// Bind points the notifier at a delivery channel. Unbound, every event is
// dropped.
func (n *ChatNotifier) Bind(m Messenger, chatID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messenger = m
	n.chatID = chatID
}

func (n *ChatNotifier) send(text string) {
	n.mu.Lock()
	m, id := n.messenger, n.chatID
	n.mu.Unlock()
	if m == nil || id == "" {
		return
	}
	m.Send(id, text)
}

func (n *ChatNotifier) Status(agent, status string, progress float64, details string) {
	if progress >= 1.0 {
		n.send(fmt.Sprintf("✅ *%s*: %s\n%s", agent, status, details))
	}
}

func (n *ChatNotifier) PlanUpdate(steps []orchestrator.StepProgress, currentStep int) {
	var b strings.Builder
	b.WriteString("📋 *Plan updated*\n")
	for _, s := range steps {
		marker := "· "
		if s.ID == currentStep {
			marker = "▶ "
		}
		b.WriteString(fmt.Sprintf("%s%d. [%s] %s\n", marker, s.ID, s.Status, truncate(s.Description, 60)))
	}
	n.send(b.String())
}

func (n *ChatNotifier) Progress(u orchestrator.ProgressUpdate) {
	n.mu.Lock()
	due := time.Since(n.lastProgress) >= progressInterval
	if due {
		n.lastProgress = time.Now()
	}
	n.mu.Unlock()
	if !due {
		return
	}
	n.send(fmt.Sprintf("⏳ Step %d: %s\n%d/%d done, %.0fs elapsed",
		u.CurrentStepID, truncate(u.CurrentDescription, 80),
		u.CompletedSteps, u.TotalSteps, u.ElapsedSeconds))
}

func (n *ChatNotifier) Phase(phase string, stepID int, details string) {}

func (n *ChatNotifier) ExecutionLog(level, message, agent string) {
	if level == "error" {
		n.send(fmt.Sprintf("⚠️ [%s] %s", agent, truncate(message, 300)))
	}
}

func (n *ChatNotifier) Event(kind string, payload map[string]any) {}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
