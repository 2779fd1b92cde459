package http

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
)

// WSHandler streams a leaderboard to a websocket client and re-sends it
// whenever a score lands in the watched configuration.
type WSHandler struct {
	service  *app.ScoreService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ScoreService, log *zap.Logger) *WSHandler {
	return &WSHandler{
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

type errorPayload struct {
	Message string `json:"message"`
}

// leaderboardView is either a scoped (cfg set) or a global (cfg nil) subscription.
type leaderboardView struct {
	cfg   *domain.Configuration
	limit int
}

func (v leaderboardView) wants(updated domain.Configuration) bool {
	return v.cfg == nil || *v.cfg == updated
}

// ServeWS upgrades the request. Without configuration parameters it streams the global leaderboard.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var view leaderboardView
	if hasConfiguration(r) {
		cfg, err := configurationFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		view.cfg = &cfg
	}
	limit, err := limitFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view.limit = limit

	updates, cancel, err := h.service.Updates(r.Context())
	if err != nil {
		http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}()

	send <- h.snapshot(r.Context(), view)

	go func() {
		defer close(updatesDone)
		for {
			select {
			case updated, ok := <-updates:
				if !ok {
					return
				}
				if !view.wants(updated) {
					continue
				}
				select {
				case send <- h.snapshot(r.Context(), view):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Clients only listen; anything they send is answered with an error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		select {
		case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}:
		default:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) snapshot(ctx context.Context, view leaderboardView) outboundMessage[any] {
	var (
		payload any
		err     error
	)
	if view.cfg != nil {
		payload, err = h.service.ScopedLeaderboard(ctx, *view.cfg, view.limit)
	} else {
		payload, err = h.service.GlobalLeaderboard(ctx, view.limit)
	}
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "failed to fetch leaderboard"}}
	}
	return outboundMessage[any]{Type: "leaderboard", Payload: payload}
}
