package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
)

// Handler exposes the score use cases as JSON endpoints.
type Handler struct {
	service *app.ScoreService
}

func NewHandler(service *app.ScoreService) *Handler {
	return &Handler{service: service}
}

// Register mounts the API routes under /api.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scores", h.SubmitScore).Methods(http.MethodPost)
	api.HandleFunc("/scores/high-score", h.CheckHighScore).Methods(http.MethodPost)
	api.HandleFunc("/scores/{id}/rank", h.UserRank).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.ScopedLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/global", h.GlobalLeaderboard).Methods(http.MethodGet)
}

// scoreRequest is the body shared by submit and high-score checks; the check ignores the nickname.
type scoreRequest struct {
	Nickname      string `json:"nickname"`
	Operation     string `json:"operation"`
	NumberUsed    int    `json:"numberUsed"`
	Rounds        int    `json:"rounds"`
	TimerDuration int    `json:"timerDuration"`
	Difficulty    string `json:"difficulty"`
	Score         int    `json:"score"`
	Percentage    int    `json:"percentage"`
}

func (r scoreRequest) configuration() domain.Configuration {
	return domain.Configuration{
		Operation:     domain.Operation(r.Operation),
		NumberUsed:    r.NumberUsed,
		Rounds:        r.Rounds,
		TimerDuration: r.TimerDuration,
		Difficulty:    r.Difficulty,
	}
}

type submitResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type highScoreResponse struct {
	IsHighScore  bool   `json:"isHighScore"`
	PreviousBest int    `json:"previousBest"`
	Error        string `json:"error,omitempty"`
}

type rankResponse struct {
	Rank  *int   `json:"rank"`
	Total int    `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: "invalid request body"})
		return
	}

	id, err := h.service.SubmitScore(r.Context(), domain.NewScore{
		Nickname:      req.Nickname,
		Configuration: req.configuration(),
		Score:         req.Score,
		Percentage:    req.Percentage,
	})
	if err != nil {
		status, msg := failure(err, "failed to save score")
		writeJSON(w, status, submitResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Success: true, ID: id})
}

func (h *Handler) CheckHighScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, highScoreResponse{Error: "invalid request body"})
		return
	}

	res, err := h.service.CheckHighScore(r.Context(), domain.HighScoreCandidate{
		Configuration: req.configuration(),
		Score:         req.Score,
		Percentage:    req.Percentage,
	})
	if err != nil {
		status, msg := failure(err, "failed to check high score")
		writeJSON(w, status, highScoreResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, highScoreResponse{IsHighScore: res.IsHighScore, PreviousBest: res.PreviousBest})
}

func (h *Handler) UserRank(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, rankResponse{Error: "invalid score id"})
		return
	}

	rank, err := h.service.UserRank(r.Context(), id)
	if err != nil {
		status, msg := failure(err, "failed to get rank")
		writeJSON(w, status, rankResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Rank: &rank.Rank, Total: rank.Total})
}

func (h *Handler) ScopedLeaderboard(w http.ResponseWriter, r *http.Request) {
	cfg, err := configurationFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	limit, err := limitFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entries, err := h.service.ScopedLeaderboard(r.Context(), cfg, limit)
	if err != nil {
		status, msg := failure(err, "failed to fetch leaderboard")
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := limitFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entries, err := h.service.GlobalLeaderboard(r.Context(), limit)
	if err != nil {
		status, msg := failure(err, "failed to fetch leaderboard")
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

var configurationParams = []string{"operation", "numberUsed", "rounds", "timerDuration", "difficulty"}

// hasConfiguration reports whether any configuration parameter is present.
func hasConfiguration(r *http.Request) bool {
	q := r.URL.Query()
	for _, p := range configurationParams {
		if q.Has(p) {
			return true
		}
	}
	return false
}

func configurationFromQuery(r *http.Request) (domain.Configuration, error) {
	q := r.URL.Query()
	ints := make(map[string]int, 3)
	for _, name := range []string{"numberUsed", "rounds", "timerDuration"} {
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			return domain.Configuration{}, errors.New(name + " must be an integer")
		}
		ints[name] = v
	}
	return domain.Configuration{
		Operation:     domain.Operation(q.Get("operation")),
		NumberUsed:    ints["numberUsed"],
		Rounds:        ints["rounds"],
		TimerDuration: ints["timerDuration"],
		Difficulty:    q.Get("difficulty"),
	}.Normalize()
}

// limitFromQuery returns 0 (service default) when limit is absent.
func limitFromQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return limit, nil
}

// failure maps a use-case error to a status and a client-safe message.
func failure(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrScoreNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, fallback
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
