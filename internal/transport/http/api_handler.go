package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/progression"
)

// Catalog answers category and inventory questions about the question source.
type Catalog interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	Count(ctx context.Context, category, difficulty string) (int, error)
}

// Users registers identities and reads their progress.
type Users interface {
	Register(ctx context.Context, username string) (domain.Progress, error)
	Progress(ctx context.Context, userID string) (domain.Progress, error)
}

// APIHandler serves the REST surface next to the WebSocket driver.
type APIHandler struct {
	catalog Catalog
	users   Users
	service *app.QuizService
	logger  *zap.Logger
}

func NewAPIHandler(catalog Catalog, users Users, service *app.QuizService, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{catalog: catalog, users: users, service: service, logger: logger}
}

// Register mounts the REST routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/categories", h.categories)
	mux.HandleFunc("GET /api/difficulties", h.difficulties)
	mux.HandleFunc("GET /api/count", h.count)
	mux.HandleFunc("POST /api/users", h.register)
	mux.HandleFunc("GET /api/users/{id}/progress", h.progress)
	mux.HandleFunc("GET /api/users/{id}/active", h.active)
}

func (h *APIHandler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.Warn("list categories", zap.Error(err))
		respondJSON(w, http.StatusBadGateway, newErrorPayload(err))
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (h *APIHandler) difficulties(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, domain.Difficulties)
}

type countResponse struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
	// MaxAmount is the largest attempt the selection can fill.
	MaxAmount int `json:"maxAmount"`
}

func (h *APIHandler) count(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = domain.AnyCategory
	}
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty == "" {
		difficulty = domain.AnyDifficulty
	}

	n, err := h.catalog.Count(r.Context(), category, difficulty)
	if err != nil {
		h.logger.Warn("count questions", zap.String("category", category), zap.Error(err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{
		Category:   category,
		Difficulty: difficulty,
		Count:      n,
		MaxAmount:  min(n, domain.MaxAmount),
	})
}

type registerRequest struct {
	Username string `json:"username"`
}

type progressResponse struct {
	domain.Progress
	XPForNextLevel int     `json:"xpForNextLevel"`
	LevelProgress  int     `json:"levelProgress"`
	Accuracy       float64 `json:"accuracy"`
}

func newProgressResponse(p domain.Progress) progressResponse {
	return progressResponse{
		Progress:       p,
		XPForNextLevel: progression.XPForNextLevel(p.XP),
		LevelProgress:  progression.LevelProgress(p.XP),
		Accuracy:       p.Accuracy(),
	}
}

func (h *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	p, err := h.users.Register(r.Context(), req.Username)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("register user", zap.Error(err))
		}
		respondError(w, err)
		return
	}
	h.logger.Info("user registered", zap.String("user", p.UserID))
	respondJSON(w, http.StatusCreated, newProgressResponse(p))
}

func (h *APIHandler) progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newProgressResponse(p))
}

type activeResponse struct {
	Active  bool                  `json:"active"`
	Attempt *domain.ActiveAttempt `json:"attempt,omitempty"`
	// Penalty is the XP an abandon would cost; guests pay nothing.
	Penalty int `json:"penalty"`
	// Connected is set while a socket holds the identity's session.
	Connected bool `json:"connected"`
}

func (h *APIHandler) active(w http.ResponseWriter, r *http.Request) {
	guest, _ := strconv.ParseBool(r.URL.Query().Get("guest"))
	id := identityKey(r.PathValue("id"), guest)

	info, ok, err := h.service.ActiveAttempt(r.Context(), id)
	if err != nil {
		h.logger.Warn("load active attempt", zap.String("identity", id), zap.Error(err))
		respondError(w, err)
		return
	}
	connected, err := h.service.Connected(r.Context(), id)
	if err != nil {
		// liveness is advisory
		h.logger.Warn("check session liveness", zap.String("identity", id), zap.Error(err))
	}
	resp := activeResponse{Active: ok, Connected: connected}
	if ok {
		resp.Attempt = &info
		if !guest {
			resp.Penalty = progression.AbandonPenalty
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
