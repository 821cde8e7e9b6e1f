package luno

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"spot-arbitrage/internal/domain"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const lunoWebsocketBaseUrl = "wss://ws.luno.com/api/1/stream/"

// Stream keeps one pair's order book current from the Luno websocket feed,
// resubscribing after a dropped connection or a sequence gap.
type Stream struct {
	url            string
	pair           string
	credentials    domain.Credentials
	reconnectDelay time.Duration
	logger         *zap.Logger
	book           streamBook
}

func NewStream(baseURL string, pair string, credentials domain.Credentials, logger *zap.Logger) *Stream {
	if baseURL == "" {
		baseURL = lunoWebsocketBaseUrl
	}
	return &Stream{
		url:            baseURL + pair,
		pair:           pair,
		credentials:    credentials,
		reconnectDelay: 2 * time.Second,
		logger:         logger,
	}
}

// Run subscribes until ctx is done.
func (s *Stream) Run(ctx context.Context) {
	s.logger.Info("Subscribing to Luno websocket for pair: " + s.pair)
	for {
		err := s.subscribe(ctx)
		s.book.reset()
		if ctx.Err() != nil {
			s.logger.Info("Closed Luno websocket connection for pair: " + s.pair)
			return
		}

		var seqErr *SequenceIncorrectError
		if errors.As(err, &seqErr) {
			s.logger.Warn("Sequence number mismatch, resubscribing",
				zap.Int64("expected", seqErr.ExpectedSequence), zap.Int64("actual", seqErr.ActualSequence))
		} else {
			s.logger.Error("Luno websocket disconnected", zap.String("pair", s.pair), zap.Error(err))
		}

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Stream) subscribe(ctx context.Context) error {
	c, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer c.Close(websocket.StatusNormalClosure, "")
	c.SetReadLimit(-1)

	if err := s.sendAuthenticationMessage(ctx, c); err != nil {
		return err
	}

	for {
		messageType, message, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if messageType != websocket.MessageText {
			s.logger.Warn("Received unknown message type from Luno websocket: " + strconv.Itoa(int(messageType)))
			continue
		}
		if err := s.book.apply(message, time.Now()); err != nil {
			var seqErr *SequenceIncorrectError
			if errors.As(err, &seqErr) {
				return err
			}
			s.logger.Error("Failed to process Luno order book feed", zap.Error(err))
		}
	}
}

func (s *Stream) sendAuthenticationMessage(ctx context.Context, c *websocket.Conn) error {
	authMessageBytes, err := json.Marshal(LunoWebsocketAuthenticationRequest{
		ApiKeyId:     s.credentials.Key,
		ApiKeySecret: s.credentials.Secret,
	})
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, authMessageBytes)
}

// OrderBook returns the streamed book once the snapshot has arrived.
func (s *Stream) OrderBook(symbol domain.Symbol) (domain.OrderBook, bool) {
	return s.book.snapshot(Name, symbol)
}
