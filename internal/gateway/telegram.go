package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/agent"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// GoalManager is the slice of the persistence layer the gateways use for
// goal scheduling commands.
type GoalManager interface {
	AddGoal(chatID, goal string, intervalSeconds int) error
	ClearGoals(chatID string) error
}

// Stopper requests cooperative cancellation of the running goal.
type Stopper interface {
	Stop()
}

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Brain   agent.Brain
	Goals   GoalManager
	Stopper Stopper
}

func NewTelegramGateway(token string, brain agent.Brain, goals GoalManager, stopper Stopper) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:     bot,
		Brain:   brain,
		Goals:   goals,
		Stopper: stopper,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
		text := update.Message.Text

		if reply, handled := tg.handleCommand(chatID, text); handled {
			tg.Send(chatID, reply)
			continue
		}

		// Goal runs take minutes; acknowledge now and report when done.
		tg.Send(chatID, "🛠 Working on it...")
		go func(chatID, goal string) {
			response, err := tg.Brain.Think(context.Background(), chatID, goal)
			if err != nil {
				log.Printf("Error thinking: %v", err)
				response = "I'm having trouble thinking right now..."
			}
			tg.Send(chatID, response)
		}(chatID, text)
	}
	return nil
}

// handleCommand intercepts slash commands; everything else is a goal.
func (tg *TelegramGateway) handleCommand(chatID, text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	fields := strings.Fields(text)
	switch fields[0] {
	case "/start", "/help":
		return "Send me a goal and I will plan and execute it.\n" +
			"/schedule <seconds> <goal> runs a goal on an interval (0 = once)\n" +
			"/clear removes your scheduled goals\n" +
			"/stop cancels the current run", true
	case "/stop":
		if tg.Stopper != nil {
			tg.Stopper.Stop()
			return "Stopping the current run after the active step.", true
		}
		return "Nothing to stop.", true
	case "/clear":
		if tg.Goals == nil {
			return "Scheduling is not enabled.", true
		}
		if err := tg.Goals.ClearGoals(chatID); err != nil {
			return fmt.Sprintf("Failed to clear goals: %v", err), true
		}
		return "Cleared your scheduled goals.", true
	case "/schedule":
		if tg.Goals == nil {
			return "Scheduling is not enabled.", true
		}
		if len(fields) < 3 {
			return "Usage: /schedule <seconds> <goal>", true
		}
		interval, err := strconv.Atoi(fields[1])
		if err != nil || interval < 0 {
			return "Interval must be a non-negative number of seconds.", true
		}
		goal := strings.Join(fields[2:], " ")
		if err := tg.Goals.AddGoal(chatID, goal, interval); err != nil {
			return fmt.Sprintf("Failed to schedule goal: %v", err), true
		}
		return fmt.Sprintf("Scheduled: %q every %ds.", goal, interval), true
	}
	return "Unknown command. Try /help.", true
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id := 0
	fmt.Sscanf(chatID, "%d", &id)
	if id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = "Markdown" // Enable markdown for better alerts
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
