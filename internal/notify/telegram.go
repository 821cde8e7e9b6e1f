package notify

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const helpMessage = "*Bot usage:* \n" +
	"*/start:* `Starts the bot`\n" +
	"*/status:* `Show trading status`\n" +
	"*/version:* `Show version of the bot`\n" +
	"*/help:* `Show this help message`\n"

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramOptions struct {
	Version string
	// Status renders the reply to /status.
	Status func() string
	Logger *zap.Logger
}

type Telegram struct {
	bot     botAPI
	chatID  int64
	version string
	status  func() string
	logger  *zap.Logger
}

func NewTelegram(token string, chatID int64, opts TelegramOptions) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newTelegram(bot, chatID, opts), nil
}

func newTelegram(bot botAPI, chatID int64, opts TelegramOptions) *Telegram {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		version: opts.Version,
		status:  opts.Status,
		logger:  logger.Named("telegram"),
	}
}

// Send delivers text to the configured chat. A transport failure is retried once.
func (t *Telegram) Send(ctx context.Context, text string) error {
	return t.send(ctx, text, "")
}

func (t *Telegram) send(ctx context.Context, text string, parseMode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = parseMode

	_, err := t.bot.Send(msg)
	var apiErr *tgbotapi.Error
	if err != nil && !errors.As(err, &apiErr) {
		t.logger.Warn("TelegramError: " + err.Error() + "! Trying one more time.")
		_, err = t.bot.Send(msg)
	}
	if err != nil {
		t.logger.Warn("TelegramError: " + err.Error() + "! Giving up on that message.")
	}
	return err
}

// Listen answers /start, /help, /version and /status until ctx is done.
func (t *Telegram) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Telegram is listening for commands", zap.Strings("commands", []string{"start", "help", "version", "status"}))

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			t.handle(ctx, update.Message.Command())
		}
	}
}

func (t *Telegram) handle(ctx context.Context, command string) {
	switch command {
	case "start":
		_ = t.send(ctx, "Started bot", "")
	case "help":
		_ = t.send(ctx, helpMessage, tgbotapi.ModeMarkdown)
	case "version":
		_ = t.send(ctx, "*Bot version:* "+t.version, tgbotapi.ModeMarkdown)
	case "status":
		if t.status != nil {
			_ = t.send(ctx, t.status(), "")
		}
	}
}
