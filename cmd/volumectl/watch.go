package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"volumestate/internal/wire"
)

// watchState connects to the state websocket and writes one line per state
// message until ctx is canceled or the server closes the connection.
// Messages older than the last one seen (by seq) are skipped.
func watchState(ctx context.Context, wsURL string, out io.Writer) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancel.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	var (
		lastSeq uint64
		seen    bool
	)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("connection closed: %d %s", ce.Code, ce.Text)
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg wire.StateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != wire.TypeStateInit && msg.Type != wire.TypeVolumeChanged {
			continue
		}
		if seen && msg.Data.Seq < lastSeq {
			continue
		}
		seen = true
		lastSeq = msg.Data.Seq

		ts := time.Now()
		if msg.Ts != nil {
			ts = *msg.Ts
		}
		fmt.Fprintf(out, "%s %s %s\n", ts.Local().Format("15:04:05.000"), msg.Type, formatState(msg.Data.IsVolumeOn))
	}
}
