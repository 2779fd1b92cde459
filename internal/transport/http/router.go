package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"mathquiz-leaderboard/internal/app"
)

// NewRouter mounts health, JSON API and live leaderboard routes.
func NewRouter(service *app.ScoreService, log *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestLogger(log))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	NewHandler(service).Register(r)
	r.HandleFunc("/ws/leaderboard", NewWSHandler(service, log).ServeWS).Methods(http.MethodGet)
	return r
}
