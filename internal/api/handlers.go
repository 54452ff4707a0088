// Package api serves draw generation and saved numbers over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	msgGenerateFailed = "Failed to generate numbers."
	msgParseFailed    = "Failed to parse generate numbers."
	msgSavedFailed    = "Failed to retrieve saved numbers"
	msgBadNumbers     = "Numbers must be distinct values between 1 and 49"
)

// NumberHistory is every stored number. *database.DB satisfies it.
type NumberHistory interface {
	AllNumbers(ctx context.Context) ([]int, error)
}

// DrawGenerator builds a frequency-weighted draw. *frequency.Generator satisfies it.
type DrawGenerator interface {
	Generate(history []int) models.PredictedDraw
}

// Predictor runs the trained model. *prediction.Driver satisfies it.
type Predictor interface {
	PredictNext(ctx context.Context) (models.PredictedDraw, error)
}

// SavedNumbersStore keeps user draws. *database.DB satisfies it.
type SavedNumbersStore interface {
	SavedNumbers(ctx context.Context, userID int64) (models.SavedNumbers, error)
	SaveNumbers(ctx context.Context, userID int64, draw models.PredictedDraw) (models.SavedNumbers, error)
}

// PredictionResponse is the body of both generate endpoints
type PredictionResponse struct {
	Prediction []int `json:"prediction"`
}

type saveNumbersRequest struct {
	Numbers []int  `json:"numbers"`
	Source  string `json:"source"`
}

// Handler handles generation and user HTTP requests
type Handler struct {
	history   NumberHistory
	generator DrawGenerator
	predictor Predictor
	saved     SavedNumbersStore
	log       zerolog.Logger

	// neither generator nor predictor is safe for concurrent use
	genMu     sync.Mutex
	predictMu sync.Mutex
}

// NewHandler creates a new API handler
func NewHandler(
	history NumberHistory,
	generator DrawGenerator,
	predictor Predictor,
	saved SavedNumbersStore,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		history:   history,
		generator: generator,
		predictor: predictor,
		saved:     saved,
		log:       log.With().Str("handler", "api").Logger(),
	}
}

// RegisterRoutes mounts the handlers; auth guards everything but /test
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/test", h.HandleTest)

	r.Route("/generate", func(r chi.Router) {
		r.Use(auth)
		r.Post("/weighted", h.HandleGenerateWeighted)
		r.Post("/ai", h.HandleGenerateAI)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(auth)
		r.Get("/getSavedNumbers", h.HandleGetSavedNumbers)
		r.Post("/saveNumbers", h.HandleSaveNumbers)
	})
}

// HandleTest handles GET /api/test
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]string{
		"message":   "Test route working!",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// HandleGenerateWeighted handles POST /api/generate/weighted
func (h *Handler) HandleGenerateWeighted(w http.ResponseWriter, r *http.Request) {
	history, err := h.history.AllNumbers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Error generating weighted numbers")
		writeError(w, h.log, http.StatusInternalServerError, msgGenerateFailed)
		return
	}

	h.genMu.Lock()
	draw := h.generator.Generate(history)
	h.genMu.Unlock()

	writeJSON(w, h.log, http.StatusOK, PredictionResponse{Prediction: draw.Numbers})
}

// HandleGenerateAI handles POST /api/generate/ai
func (h *Handler) HandleGenerateAI(w http.ResponseWriter, r *http.Request) {
	h.predictMu.Lock()
	draw, err := h.predictor.PredictNext(r.Context())
	h.predictMu.Unlock()

	if err != nil {
		h.log.Error().Err(err).Msg("Model prediction failed")
		writeError(w, h.log, http.StatusInternalServerError, msgGenerateFailed)
		return
	}
	if draw.Empty() {
		writeError(w, h.log, http.StatusInternalServerError, msgParseFailed)
		return
	}

	writeJSON(w, h.log, http.StatusOK, PredictionResponse{Prediction: draw.Numbers})
}

// HandleGetSavedNumbers handles GET /api/user/getSavedNumbers
func (h *Handler) HandleGetSavedNumbers(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	saved, err := h.saved.SavedNumbers(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to load saved numbers")
		}
		writeError(w, h.log, http.StatusBadRequest, msgSavedFailed)
		return
	}

	writeJSON(w, h.log, http.StatusOK, saved)
}

// HandleSaveNumbers handles POST /api/user/saveNumbers
func (h *Handler) HandleSaveNumbers(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var req saveNumbersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validNumbers(req.Numbers) {
		writeError(w, h.log, http.StatusBadRequest, msgBadNumbers)
		return
	}

	saved, err := h.saved.SaveNumbers(r.Context(), userID, models.PredictedDraw{
		Numbers: req.Numbers,
		Source:  req.Source,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to save numbers")
		writeError(w, h.log, http.StatusInternalServerError, "Failed to save numbers")
		return
	}

	writeJSON(w, h.log, http.StatusCreated, saved)
}

func validNumbers(numbers []int) bool {
	if len(numbers) == 0 {
		return false
	}
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > 49 || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, status int, message string) {
	writeJSON(w, log, status, map[string]string{"error": message})
}
