package bot

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier implements the reminder.Notifier and admin
// notification surfaces on top of the bot's transport.
type TelegramNotifier struct {
	api     *tgbotapi.BotAPI
	groupID int64
	devID   int64
}

func (n *TelegramNotifier) NotifyUser(chatID int64, text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (n *TelegramNotifier) NotifyOperators(text string) error {
	if n.groupID == 0 {
		return errors.New("operator group not configured")
	}
	_, err := n.api.Send(tgbotapi.NewMessage(n.groupID, text))
	return err
}

func (n *TelegramNotifier) NotifyDev(text string) error {
	if n.devID == 0 {
		// Dev channel is optional; silently dropping keeps sweeps quiet
		// on installs without one.
		return nil
	}
	_, err := n.api.Send(tgbotapi.NewMessage(n.devID, text))
	return err
}
