package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coffee-timer/internal/alert"
)

// Notifier delivers brew alerts as chat messages.
type Notifier struct {
	out sender
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{out: api}
}

// Notify implements alert.Notifier.
func (n *Notifier) Notify(ctx context.Context, a alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.Recipient, "⏰ "+escape(a.Message))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.out.Send(msg); err != nil {
		return fmt.Errorf("send alert to %d: %w", a.Recipient, err)
	}
	return nil
}
