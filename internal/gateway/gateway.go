package gateway

import "strings"

// Messenger is a chat transport the daemon listens on for goals and pushes
// run output to. Telegram and Discord implementations live in this package.
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send delivers text to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// SplitMessage chunks text at newline boundaries so every piece fits the
// transport's message length cap. A chunk with no newline is cut hard at
// the limit, and a whitespace-only tail is dropped.
func SplitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
	}
	return parts
}
