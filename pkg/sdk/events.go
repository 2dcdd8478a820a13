package sdk

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// Subscription is a live event stream from the daemon. Events is closed
// when the connection drops or the context is canceled; the client is
// expected to re-fetch the board and subscribe again to re-baseline.
type Subscription struct {
	Events <-chan schema.Event
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// Close tears the stream down.
func (s *Subscription) Close() {
	s.cancel()
	s.conn.Close()
}

// Subscribe opens the websocket and starts streaming events. The
// session authenticates once at connect time with the client's token.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.Token()}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan schema.Event, 16)
	sub := &Subscription{Events: events, conn: conn, cancel: cancel}

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev schema.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}
