package notify

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"go.uber.org/zap"
)

type embedSender interface {
	CreateEmbeds(embeds []discord.Embed, opts ...rest.RequestOpt) (*discord.Message, error)
	Close(ctx context.Context)
}

// Discord posts messages as embeds to a webhook.
type Discord struct {
	client embedSender
	logger *zap.Logger
}

func NewDiscord(webhookURL string, logger *zap.Logger) (*Discord, error) {
	client, err := webhook.NewWithURL(webhookURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{client: client, logger: logger.Named("discord")}, nil
}

func (d *Discord) Send(ctx context.Context, text string) error {
	_, err := d.client.CreateEmbeds([]discord.Embed{
		discord.NewEmbedBuilder().
			SetTitle("Arbitrage bot").
			SetColor(0x00ff00).
			SetDescription(text).
			Build()},
		rest.WithCtx(ctx))
	if err != nil {
		d.logger.Error("Failed to send message to discord: " + err.Error())
	}
	return err
}

func (d *Discord) Close(ctx context.Context) {
	d.client.Close(ctx)
}
