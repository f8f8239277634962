package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan           EventType = "plan"
	EventTypeStep           EventType = "step"
	EventTypeReflection     EventType = "reflection"
	EventTypeRevision       EventType = "revision"
	EventTypeSelfCorrection EventType = "self_correction"
	EventTypeMultiTool      EventType = "multi_tool"
	EventTypeProgress       EventType = "progress"
	EventTypeHeartbeat      EventType = "heartbeat"
	EventTypeLLM            EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerWithPath(filepath.Join("logs", "llm.jsonl"))
}

// NewLoggerWithPath places the LLM transcript file at an explicit path.
func NewLoggerWithPath(llmLogPath string) *Logger {
	return &Logger{
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(chatID, goal string, stepCount int) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		Data: map[string]any{
			"goal":  goal,
			"steps": stepCount,
		},
	})
}

func (l *Logger) LogStep(chatID, stepID, agent, description string) {
	l.Log(Event{
		Type:   EventTypeStep,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]string{
			"agent":       agent,
			"description": description,
		},
	})
}

func (l *Logger) LogReflection(chatID, stepID, reflection string, success bool) {
	l.Log(Event{
		Type:   EventTypeReflection,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]any{
			"reflection": reflection,
			"success":    success,
		},
	})
}

func (l *Logger) LogRevision(chatID, stepID, rule string, newSteps int) {
	l.Log(Event{
		Type:   EventTypeRevision,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]any{
			"rule":      rule,
			"new_steps": newSteps,
		},
	})
}

func (l *Logger) LogSelfCorrection(chatID, stepID string, attempt, max int, phase, details string) {
	l.Log(Event{
		Type:   EventTypeSelfCorrection,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]any{
			"attempt":     attempt,
			"max_retries": max,
			"phase":       phase,
			"details":     details,
		},
	})
}

func (l *Logger) LogMultiTool(chatID, stepID, action, details string) {
	l.Log(Event{
		Type:   EventTypeMultiTool,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]string{
			"action":  action,
			"details": details,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, stepID string, prompt any, response string) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		StepID: stepID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}
