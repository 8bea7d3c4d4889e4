package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

// HeartbeatPayload is the reserved keep-alive message on the
// notification channel. It is filtered out and never triggers a run.
const HeartbeatPayload = "ping"

// Notifier subscribes to the dev server's push notification channel.
// Watch mode cannot detect rebuild-and-reload cycles without it, so a
// transport error is fatal to the whole harness.
type Notifier struct {
	url    string
	logger *slog.Logger
}

// NewNotifier creates a notifier for the given websocket URL.
func NewNotifier(url string, logger *slog.Logger) *Notifier {
	return &Notifier{url: url, logger: logger}
}

// messageConn is the read side of a websocket connection.
type messageConn interface {
	ReadMessage() (int, []byte, error)
}

// Run connects and pumps notifications into events until the context is
// cancelled. Any transport error is returned; callers treat it as fatal.
func (n *Notifier) Run(ctx context.Context, events chan<- Event) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return fmt.Errorf("notification channel dial %s: %w", n.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	n.logger.Info("notification_channel_connected", "url", n.url)
	return n.pump(ctx, conn, events)
}

// pump reads messages, filters heartbeats, and publishes the rest.
func (n *Notifier) pump(ctx context.Context, conn messageConn, events chan<- Event) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("notification channel: %w", err)
		}

		payload := string(msg)
		if payload == HeartbeatPayload {
			continue
		}

		select {
		case events <- Event{Source: SourceDevServer, Payload: payload}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
