package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "apgrhost/pkg/errors"
	"apgrhost/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers visit reports to humans
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// TelegramNotifier sends reports to every configured chat
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *logger.Logger
}

// NewTelegramNotifier authenticates the bot token. An empty endpoint uses the
// public Bot API; otherwise it must contain two %s verbs for token and method.
func NewTelegramNotifier(token, endpoint string, chatIDs []int64, timeout time.Duration, log *logger.Logger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("no telegram chat ids configured")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"bot":   bot.Self.UserName,
		"chats": len(chatIDs),
	}).Info("Telegram notifier ready")

	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: log}, nil
}

// Notify sends the location pin (when known) and then the text to each chat.
// A failing chat does not stop delivery to the others.
func (n *TelegramNotifier) Notify(ctx context.Context, report Report) error {
	var errs []error

	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if report.HasLocation {
			if _, err := n.bot.Send(tgbotapi.NewLocation(chatID, report.Latitude, report.Longitude)); err != nil {
				n.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send location")
			}
		}

		msg := tgbotapi.NewMessage(chatID, report.Text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send report")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}

	if len(errs) > 0 {
		return apperrors.NewExternalError("Telegram delivery failed", errors.Join(errs...))
	}
	return nil
}

// LogNotifier writes reports to the application log when no bot is configured
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(ctx context.Context, report Report) error {
	n.logger.WithFields(map[string]interface{}{
		"report":       report.Text,
		"has_location": report.HasLocation,
	}).Info("Visit report")
	return nil
}
