package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"btc-scenario-lab/internal/observability"
)

const streamWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /api/v1/simulations/:id/progress/stream
//
// Pushes the progress view every stream interval until the simulation is
// terminal, then sends a close frame.
func (h *handler) progressStream(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	user := userID(c)

	// Resolve ownership before upgrading so errors stay plain HTTP.
	first, err := h.svc.Progress(ctx, user, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("simulation_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	observability.AddProgressStreams(1)
	defer observability.AddProgressStreams(-1)

	// Reader loop only detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	p := first
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(newProgressResponse(p)); err != nil {
			h.logger.Debug("progress stream write failed", zap.String("simulation_id", id), zap.Error(err))
			return
		}
		if p.Status.IsTerminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(p.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}

		p, err = h.svc.Progress(ctx, user, id)
		if err != nil {
			status, code := statusFor(err)
			h.logger.Info("progress stream ended", zap.String("simulation_id", id), zap.Int("status", status), zap.String("code", code))
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, code)
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
			return
		}
	}
}
