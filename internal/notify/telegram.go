package notify

import (
	"context"
	"fmt"
)

// messageSender is the slice of the Telegram client this sender uses.
type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramSender delivers alerts to the subscriber's own Telegram chat via
// the Bot API.
type TelegramSender struct {
	client messageSender
}

// NewTelegramSender wraps a Telegram Bot API client as a notification sender.
func NewTelegramSender(client messageSender) *TelegramSender {
	return &TelegramSender{client: client}
}

// SendTo posts the alert to the given chat with the title in bold.
func (t *TelegramSender) SendTo(ctx context.Context, chatID int64, title, message string) error {
	text := fmt.Sprintf("*%s*\n%s", title, message)
	return t.client.SendMessage(ctx, chatID, text)
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
