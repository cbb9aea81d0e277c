package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsPongWait         = 60 * time.Second
)

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}

// Subscribe streams backend change events to fn until ctx is cancelled or
// the connection drops. It returns nil only when ctx ends the stream.
func (c *Client) Subscribe(ctx context.Context, fn func(Event)) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, c.wsURL(), header)
	if err != nil {
		if resp != nil {
			return &StatusError{Method: http.MethodGet, Path: "/ws", Code: resp.StatusCode}
		}
		return fmt.Errorf("%w: websocket: %v", apperrors.ErrOffline, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	logger.Debug("Subscribed to backend events", "url", c.wsURL())
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: websocket read: %v", apperrors.ErrOffline, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		fn(ev)
	}
}
