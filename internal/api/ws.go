package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/event"
)

const (
	wsBuffer       = 64
	wsWriteTimeout = 5 * time.Second
)

var wsEvents = []string{
	domain.EventNameQuizStarted,
	domain.EventNameQuestionLoaded,
	domain.EventNameAnswerSelected,
	domain.EventNameQuizTicked,
	domain.EventNameQuizFinished,
	domain.EventNameQuizReset,
	domain.EventNameLeaderboardUpdated,
	domain.EventNameThemeChanged,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events streams engine notifications to a WebSocket client. The stream is one-way: messages
// sent by the client are discarded.
func (a *API) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	out := make(chan Notification, wsBuffer)
	for _, name := range wsEvents {
		unsubscribe := a.eb.Subscribe(name, func(_ context.Context, e event.Event) error {
			select {
			case out <- Notification{Event: e.Name(), Data: e}:
			default:
				// Slow client, drop rather than hold a bus slot.
			}
			return nil
		})
		defer unsubscribe()
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case n := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(n); err != nil {
				slog.DebugContext(c.Request.Context(), "api: websocket write failed", "error", err)
				return
			}
		}
	}
}
