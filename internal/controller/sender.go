package controller

import (
	"context"

	"github.com/gorilla/websocket"
)

// Output is the frame shape for every server-to-client event.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) {
	if err := conn.WriteJSON(output); err != nil {
		c.logger.DebugContext(ctx, "failed to write to connection",
			"message_type", output.Type,
			"error", err,
		)
	}
}

// broadcast writes the output to every connection, skipping over write
// failures: a broken member connection resolves through its own read loop.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		c.writeToConn(ctx, conn, output)
	}
}
