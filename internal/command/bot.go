package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/defiwatchbot/defiwatch/internal/platform/telegram"
)

// updatesClient is the slice of the Telegram client the bot loop uses.
type updatesClient interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// pollBackoff is the pause after a failed getUpdates call, so a Telegram
// outage does not turn into a busy loop.
const pollBackoff = 5 * time.Second

// Bot drives the long-poll loop: fetch updates, route each message, reply.
type Bot struct {
	client updatesClient
	router *Router
	logger *slog.Logger
}

// NewBot creates the bot front-end.
func NewBot(client updatesClient, router *Router, logger *slog.Logger) *Bot {
	return &Bot{
		client: client,
		router: router,
		logger: logger.With(slog.String("component", "bot")),
	}
}

// Run polls for updates until the context is canceled. Per-update failures
// are logged and skipped; the loop only exits with the context.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started")

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			b.logger.Info("bot stopped")
			return err
		}

		updates, err := b.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("bot stopped")
				return ctx.Err()
			}
			b.logger.Warn("get updates failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollBackoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	if u.Message.From != nil && u.Message.From.IsBot {
		return
	}

	chatID := u.Message.Chat.ID
	reply := b.router.Handle(ctx, chatID, u.Message.Text)
	if reply == "" {
		return
	}
	if err := b.client.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("send reply failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}
