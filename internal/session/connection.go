package session

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Flgjfvevdk/pilot-together/internal/metrics"
)

// connectionLoop maintains the connection to the server. It runs on its own
// goroutine and only talks to the controller loop through c.net. Dial
// attempts are spaced at least ReconnectDelay apart.
func (c *Controller) connectionLoop(ctx context.Context) {
	var gen uint64
	everConnected := false
	retry := rate.NewLimiter(rate.Every(c.cfg.ReconnectDelay), 1)

	for ctx.Err() == nil {
		if err := retry.Wait(ctx); err != nil {
			return
		}
		gen++
		if everConnected {
			c.reconnects.Add(1)
			metrics.RecordReconnect()
		}
		if !c.emit(ctx, netEvent{kind: netConnecting, gen: gen}) {
			return
		}

		conn, err := c.deps.Dialer.Dial(ctx, c.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.warnf("⚠️ Connect failed: %v", err)
			continue
		}

		// Closing the connection is the only way to unblock a pending read
		stop := context.AfterFunc(ctx, func() { conn.Close() })

		if !c.emit(ctx, netEvent{kind: netConnected, gen: gen, conn: conn}) {
			stop()
			conn.Close()
			return
		}
		everConnected = true
		log.Printf("✅ Connected to %s", c.cfg.URL)

		err = c.readLoop(ctx, gen, conn)
		stop()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		logReadError(err)
		if !c.emit(ctx, netEvent{kind: netDisconnected, gen: gen, err: err}) {
			return
		}
	}
}

// readLoop forwards frames until the connection fails.
func (c *Controller) readLoop(ctx context.Context, gen uint64, conn Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !c.emit(ctx, netEvent{kind: netFrame, gen: gen, frame: frame}) {
			return ctx.Err()
		}
	}
}

// emit hands an event to the controller loop. It returns false once the
// session is shutting down.
func (c *Controller) emit(ctx context.Context, ev netEvent) bool {
	select {
	case c.net <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func logReadError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		log.Println("🔌 Server closed connection")
	default:
		log.Printf("⚠️ Read error: %v", err)
	}
}
