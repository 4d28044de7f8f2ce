package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

const (
	userUpdatesRoom = "UserUpdatesRoom"
	eventBuffer     = 256
)

var ErrAlreadySubscribed = errors.New("event stream already subscribed")

var errClosedEarly = errors.New("connection closed before the first message")

type Options struct {
	URL          string
	PublicKey    string
	Token        string
	ReadTimeout  time.Duration
	PingInterval time.Duration
	Reconnect    retry.Policy
}

// Subscriber keeps one websocket to the user updates room open and
// reconnects with backoff until its context ends.
type Subscriber struct {
	options Options
	dialer  websocket.Dialer

	mu         sync.Mutex
	subscribed bool
}

func New(options Options) *Subscriber {
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = 60 * time.Second
	}
	if options.PingInterval <= 0 {
		options.PingInterval = 20 * time.Second
	}
	if options.Reconnect.BaseDelay <= 0 {
		options.Reconnect = retry.Policy{BaseDelay: time.Second, MaxDelay: time.Minute}
	}

	return &Subscriber{
		options: options,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Subscribe starts the stream. Events arrive in the order the exchange
// sent them; the channel closes when ctx ends.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan models.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil, fmt.Errorf("Subscriber.Subscribe: %w", ErrAlreadySubscribed)
	}
	s.subscribed = true

	events := make(chan models.OrderEvent, eventBuffer)
	go s.run(ctx, events)

	return events, nil
}

// run reconnects until ctx ends. The backoff resets only after a
// connection delivers at least one message, so a server that accepts and
// drops the socket right away is retried with growing delays.
func (s *Subscriber) run(ctx context.Context, events chan<- models.OrderEvent) {
	defer close(events)

	attempt := 0
	for ctx.Err() == nil {
		conn, err := s.connect(ctx)
		if err == nil {
			zapLogger.Info(ctx, "event stream connected", zap.String("url", s.options.URL))
			if s.process(ctx, conn, events) {
				attempt = 0
				continue
			}
			err = errClosedEarly
		}
		if ctx.Err() != nil {
			return
		}

		delay := s.options.Reconnect.Backoff(attempt)
		attempt++
		zapLogger.Warn(ctx, "event stream unavailable",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.options.URL, http.Header{})
	if err != nil {
		return nil, err
	}

	message := subscribeMessage{
		Event:     "SUBSCRIBE",
		Room:      userUpdatesRoom,
		PublicKey: s.options.PublicKey,
		Token:     s.options.Token,
	}
	if err := conn.WriteJSON(message); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	return conn, nil
}

// process reads until the connection fails and reports whether any message
// arrived.
func (s *Subscriber) process(ctx context.Context, conn *websocket.Conn, events chan<- models.OrderEvent) bool {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go s.ping(connCtx, conn)

	received := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				zapLogger.Warn(ctx, "event stream read failed", zap.Error(err))
			}
			return received
		}
		received = true

		event, ok := decode(ctx, message)
		if !ok {
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return received
		}
	}
}

func (s *Subscriber) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.options.PingInterval / 2)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				zapLogger.Warn(ctx, "event stream ping failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}

func decode(ctx context.Context, message []byte) (models.OrderEvent, bool) {
	var frame envelope
	if err := json.Unmarshal(message, &frame); err != nil {
		zapLogger.Debug(ctx, "event stream frame skipped", zap.Error(err))
		return models.OrderEvent{}, false
	}

	event, ok := frame.toDomain()
	if !ok {
		zapLogger.Debug(ctx, "event stream frame ignored", zap.String("event", frame.EventName))
	}
	return event, ok
}
