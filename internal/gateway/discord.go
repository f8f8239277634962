package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/agent"
)

type DiscordGateway struct {
	Session *discordgo.Session
	Brain   agent.Brain
	Goals   GoalManager
	Stopper Stopper
}

func NewDiscordGateway(token string, brain agent.Brain, goals GoalManager, stopper Stopper) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	return &DiscordGateway{
		Session: session,
		Brain:   brain,
		Goals:   goals,
		Stopper: stopper,
	}, nil
}

func (dg *DiscordGateway) Start() error {
	dg.Session.AddHandler(dg.onMessage)
	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Discord gateway connected as %s", dg.Session.State.User.Username)
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	log.Printf("[discord %s] %s", m.Author.Username, m.Content)

	if strings.HasPrefix(m.Content, "!stop") {
		if dg.Stopper != nil {
			dg.Stopper.Stop()
			dg.Send(m.ChannelID, "Stopping the current run after the active step.")
		}
		return
	}

	dg.Send(m.ChannelID, "🛠 Working on it...")
	go func(channelID, goal string) {
		response, err := dg.Brain.Think(context.Background(), channelID, goal)
		if err != nil {
			log.Printf("Error thinking: %v", err)
			response = "I'm having trouble thinking right now..."
		}
		dg.Send(channelID, response)
	}(m.ChannelID, m.Content)
}

// Send splits long responses to fit Discord's message size limit.
func (dg *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range SplitMessage(text, 1900) {
		if _, err := dg.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
