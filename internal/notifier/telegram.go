package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const pollTimeout = 30 * time.Second

// CommandHandler is called when a user command is received. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// TelegramNotifier sends messages via the Telegram Bot API and serves commands.
type TelegramNotifier struct {
	ChatID  string
	bot     *bot.Bot
	handler CommandHandler
	logger  zerolog.Logger
}

// Option adjusts the underlying bot client.
type Option = bot.Option

// NewTelegramNotifier creates a notifier with optional proxy support.
// The token is checked against the API once at construction.
func NewTelegramNotifier(botToken, chatID, proxyURL string, logger zerolog.Logger, opts ...Option) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{
		Timeout:   pollTimeout + 5*time.Second,
		Transport: transport,
	}

	t := &TelegramNotifier{ChatID: chatID, logger: logger}
	opts = append([]Option{
		bot.WithHTTPClient(pollTimeout, client),
		bot.WithDefaultHandler(t.dispatch),
	}, opts...)

	b, err := bot.New(botToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = b
	return t, nil
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.ChatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := t.Send(ctx, text); err != nil {
			lastErr = err
			if i == maxRetries {
				break
			}
			backoff := time.Duration(1<<uint(i)) * time.Second
			t.logger.Warn().Err(err).
				Int("attempt", i+1).
				Int("max", maxRetries+1).
				Dur("backoff", backoff).
				Msg("telegram send failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// StartPolling begins long-polling for Telegram commands. Only the configured
// chat is served. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	t.handler = handler
	t.logger.Info().Msg("telegram polling started")
	t.bot.Start(ctx)
	t.logger.Info().Msg("telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if t.handler == nil || update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	if strconv.FormatInt(chatID, 10) != t.ChatID {
		t.logger.Warn().Int64("chat_id", chatID).Msg("ignoring command from unknown chat")
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	t.logger.Info().Str("command", text).Int64("chat_id", chatID).Msg("received command")

	reply := t.handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		t.logger.Error().Err(err).Msg("send reply")
	}
}
