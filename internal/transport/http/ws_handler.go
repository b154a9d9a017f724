package http

import (
	"net/http"
	"time"

	"edulearn-quiz-service/internal/app"
	"edulearn-quiz-service/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ProgressWSHandler streams a user's stats over a websocket after each submission.
type ProgressWSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewProgressWSHandler(service *app.QuizService, log *logger.Logger) *ProgressWSHandler {
	return &ProgressWSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS expects requireAuth to have placed the user in the request context.
func (h *ProgressWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), user.ID)
	if err != nil {
		respondError(w, h.log, err, "Failed to load progress")
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	readerDone := make(chan struct{})

	// Clients never send anything meaningful; reading keeps pongs and close frames flowing.
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case stats, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(outboundMessage[any]{Type: "progress", Payload: stats}); err != nil {
				h.log.Debug("ws write error", "user_id", user.ID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
