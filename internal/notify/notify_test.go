package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type fakeBot struct {
	errs    []error
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
	// delivered, when set, receives a value after every Send.
	delivered chan struct{}
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	if f.delivered != nil {
		defer func() { f.delivered <- struct{}{} }()
	}
	if len(f.errs) == 0 {
		return tgbotapi.Message{}, nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return tgbotapi.Message{}, err
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() { f.stopped = true }

func TestTelegramRetriesTransportFailureOnce(t *testing.T) {
	bot := &fakeBot{errs: []error{errors.New("connection reset")}}
	tg := newTelegram(bot, 42, TelegramOptions{})

	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("second attempt should succeed, got %v", err)
	}
	if len(bot.sent) != 2 || bot.sent[1].ChatID != 42 || bot.sent[1].Text != "hello" {
		t.Errorf("unexpected sends %+v", bot.sent)
	}
}

func TestTelegramGivesUp(t *testing.T) {
	bot := &fakeBot{errs: []error{errors.New("reset"), errors.New("reset again")}}
	tg := newTelegram(bot, 42, TelegramOptions{})
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error after the second failure")
	}
	if len(bot.sent) != 2 {
		t.Errorf("expected exactly two attempts, got %d", len(bot.sent))
	}
}

func TestTelegramDoesNotRetryAPIErrors(t *testing.T) {
	bot := &fakeBot{errs: []error{&tgbotapi.Error{Code: 400, Message: "chat not found"}}}
	tg := newTelegram(bot, 42, TelegramOptions{})
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if len(bot.sent) != 1 {
		t.Errorf("api errors should not be retried, got %d sends", len(bot.sent))
	}
}

func TestTelegramCommands(t *testing.T) {
	bot := &fakeBot{}
	tg := newTelegram(bot, 7, TelegramOptions{Version: "1.2.3", Status: func() string { return "state=idle" }})

	for _, cmd := range []string{"start", "help", "version", "status", "unknown"} {
		tg.handle(context.Background(), cmd)
	}
	if len(bot.sent) != 4 {
		t.Fatalf("expected 4 replies, got %d", len(bot.sent))
	}
	if bot.sent[0].Text != "Started bot" {
		t.Errorf("start reply = %q", bot.sent[0].Text)
	}
	if !strings.Contains(bot.sent[1].Text, "/version") || bot.sent[1].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("help reply = %+v", bot.sent[1])
	}
	if !strings.Contains(bot.sent[2].Text, "1.2.3") {
		t.Errorf("version reply = %q", bot.sent[2].Text)
	}
	if bot.sent[3].Text != "state=idle" {
		t.Errorf("status reply = %q", bot.sent[3].Text)
	}
}

func TestTelegramListenStopsOnCancel(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 1), delivered: make(chan struct{}, 1)}
	tg := newTelegram(bot, 7, TelegramOptions{})
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tg.Listen(ctx)
		close(done)
	}()
	<-bot.delivered
	cancel()
	<-done
	if !bot.stopped {
		t.Errorf("updates should be stopped on cancel")
	}
	if len(bot.sent) != 1 || bot.sent[0].Text != "Started bot" {
		t.Errorf("expected the /start reply before stopping, got %+v", bot.sent)
	}
}

type fakeWebhook struct {
	embeds []discord.Embed
	err    error
}

func (f *fakeWebhook) CreateEmbeds(embeds []discord.Embed, opts ...rest.RequestOpt) (*discord.Message, error) {
	f.embeds = append(f.embeds, embeds...)
	return &discord.Message{}, f.err
}

func (f *fakeWebhook) Close(context.Context) {}

func TestDiscordSend(t *testing.T) {
	hook := &fakeWebhook{}
	d := &Discord{client: hook, logger: zap.NewNop()}

	if err := d.Send(context.Background(), "BUY 1 @ 100"); err != nil {
		t.Fatal(err)
	}
	if len(hook.embeds) != 1 || hook.embeds[0].Description != "BUY 1 @ 100" {
		t.Errorf("unexpected embeds %+v", hook.embeds)
	}
}

type failing struct{ err error }

func (f failing) Send(context.Context, string) error { return f.err }

func TestMultiCombinesErrors(t *testing.T) {
	e1, e2 := errors.New("a"), errors.New("b")
	err := Multi{Nop{}, failing{e1}, failing{e2}}.Send(context.Background(), "x")
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Errorf("expected both errors, got %v", err)
	}
	if err := (Multi{Nop{}}).Send(context.Background(), "x"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
