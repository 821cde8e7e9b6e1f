package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier delivers a plain text message to an operator channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }

// Multi sends to every notifier and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Send(ctx, text))
	}
	return err
}
