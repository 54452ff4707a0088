package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	numbers []int
	err     error
}

func (f fakeHistory) AllNumbers(context.Context) ([]int, error) {
	return f.numbers, f.err
}

type fakeGenerator struct {
	history []int
}

func (f *fakeGenerator) Generate(history []int) models.PredictedDraw {
	f.history = history
	return models.PredictedDraw{Numbers: []int{3, 8, 15, 22, 30, 41, 47}, Source: models.SourceFrequency}
}

type fakePredictor struct {
	draw models.PredictedDraw
	err  error
}

func (f fakePredictor) PredictNext(context.Context) (models.PredictedDraw, error) {
	return f.draw, f.err
}

type fakeSaved struct {
	byUser map[int64]models.SavedNumbers
	err    error
	saved  []models.PredictedDraw
}

func (f *fakeSaved) SavedNumbers(_ context.Context, userID int64) (models.SavedNumbers, error) {
	if f.err != nil {
		return models.SavedNumbers{}, f.err
	}
	s, ok := f.byUser[userID]
	if !ok {
		return models.SavedNumbers{}, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	return s, nil
}

func (f *fakeSaved) SaveNumbers(_ context.Context, userID int64, draw models.PredictedDraw) (models.SavedNumbers, error) {
	if f.err != nil {
		return models.SavedNumbers{}, f.err
	}
	f.saved = append(f.saved, draw)
	return models.SavedNumbers{ID: int64(len(f.saved)), UserID: userID, Numbers: draw.Numbers, Source: draw.Source}, nil
}

func newTestHandler(history NumberHistory, gen DrawGenerator, pred Predictor, saved SavedNumbersStore) *Handler {
	return NewHandler(history, gen, pred, saved, zerolog.New(nil).Level(zerolog.Disabled))
}

func withUser(req *http.Request, userID int64) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), userIDKey{}, userID))
}

func decodePrediction(t *testing.T, w *httptest.ResponseRecorder) []int {
	t.Helper()
	var response PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Prediction
}

func TestHandleTest(t *testing.T) {
	handler := newTestHandler(fakeHistory{}, &fakeGenerator{}, fakePredictor{}, &fakeSaved{})

	req := httptest.NewRequest("GET", "/api/test", nil)
	w := httptest.NewRecorder()
	handler.HandleTest(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Test route working!", response["message"])
	_, err := time.Parse(time.RFC3339, response["timestamp"])
	assert.NoError(t, err)
}

func TestHandleGenerateWeighted(t *testing.T) {
	tests := []struct {
		name           string
		history        fakeHistory
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder, *fakeGenerator)
	}{
		{
			name:           "success",
			history:        fakeHistory{numbers: []int{1, 1, 2, 3}},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder, gen *fakeGenerator) {
				assert.Equal(t, []int{3, 8, 15, 22, 30, 41, 47}, decodePrediction(t, w))
				assert.Equal(t, []int{1, 1, 2, 3}, gen.history)
			},
		},
		{
			name:           "store error",
			history:        fakeHistory{err: errors.New("db down")},
			expectedStatus: http.StatusInternalServerError,
			validate: func(t *testing.T, w *httptest.ResponseRecorder, gen *fakeGenerator) {
				assert.JSONEq(t, `{"error":"Failed to generate numbers."}`, w.Body.String())
				assert.Nil(t, gen.history)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			handler := newTestHandler(tt.history, gen, fakePredictor{}, &fakeSaved{})

			req := httptest.NewRequest("POST", "/api/generate/weighted", nil)
			w := httptest.NewRecorder()
			handler.HandleGenerateWeighted(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.validate(t, w, gen)
		})
	}
}

func TestHandleGenerateAI(t *testing.T) {
	tests := []struct {
		name           string
		predictor      fakePredictor
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "success",
			predictor:      fakePredictor{draw: models.PredictedDraw{Numbers: []int{2, 9, 17, 28, 36, 44, 49}}},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"prediction":[2,9,17,28,36,44,49]}`,
		},
		{
			name:           "empty prediction",
			predictor:      fakePredictor{draw: models.PredictedDraw{}},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to parse generate numbers."}`,
		},
		{
			name:           "model failure",
			predictor:      fakePredictor{err: errors.New("no model")},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to generate numbers."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(fakeHistory{}, &fakeGenerator{}, tt.predictor, &fakeSaved{})

			req := httptest.NewRequest("POST", "/api/generate/ai", nil)
			w := httptest.NewRecorder()
			handler.HandleGenerateAI(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHandleGetSavedNumbers(t *testing.T) {
	stored := models.SavedNumbers{ID: 3, UserID: 7, Numbers: []int{4, 11, 19, 23, 31, 40}, Source: models.SourceModel}

	tests := []struct {
		name           string
		userID         int64
		saved          *fakeSaved
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "found",
			userID:         7,
			saved:          &fakeSaved{byUser: map[int64]models.SavedNumbers{7: stored}},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var response models.SavedNumbers
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, stored.Numbers, response.Numbers)
				assert.Equal(t, int64(7), response.UserID)
			},
		},
		{
			name:           "nothing saved",
			userID:         8,
			saved:          &fakeSaved{byUser: map[int64]models.SavedNumbers{7: stored}},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"error":"Failed to retrieve saved numbers"}`, w.Body.String())
			},
		},
		{
			name:           "store error",
			userID:         7,
			saved:          &fakeSaved{err: errors.New("db down")},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"error":"Failed to retrieve saved numbers"}`, w.Body.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(fakeHistory{}, &fakeGenerator{}, fakePredictor{}, tt.saved)

			req := withUser(httptest.NewRequest("GET", "/api/user/getSavedNumbers", nil), tt.userID)
			w := httptest.NewRecorder()
			handler.HandleGetSavedNumbers(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.validate(t, w)
		})
	}
}

func TestHandleSaveNumbers(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{name: "valid", body: `{"numbers":[2,9,17,28,36,44],"source":"model"}`, expectedStatus: http.StatusCreated},
		{name: "not json", body: `numbers`, expectedStatus: http.StatusBadRequest},
		{name: "empty", body: `{"numbers":[]}`, expectedStatus: http.StatusBadRequest},
		{name: "out of range", body: `{"numbers":[0,9,17]}`, expectedStatus: http.StatusBadRequest},
		{name: "above range", body: `{"numbers":[9,50]}`, expectedStatus: http.StatusBadRequest},
		{name: "duplicate", body: `{"numbers":[9,9,17]}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := &fakeSaved{}
			handler := newTestHandler(fakeHistory{}, &fakeGenerator{}, fakePredictor{}, saved)

			req := withUser(httptest.NewRequest("POST", "/api/user/saveNumbers", bytes.NewBufferString(tt.body)), 7)
			w := httptest.NewRecorder()
			handler.HandleSaveNumbers(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusCreated {
				require.Len(t, saved.saved, 1)
				assert.Equal(t, []int{2, 9, 17, 28, 36, 44}, saved.saved[0].Numbers)
				assert.Equal(t, models.SourceModel, saved.saved[0].Source)
			} else {
				assert.Empty(t, saved.saved)
			}
		})
	}
}

func TestRegisterRoutes(t *testing.T) {
	handler := newTestHandler(fakeHistory{}, &fakeGenerator{}, fakePredictor{}, &fakeSaved{})
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		router.Route("/api", func(r chi.Router) {
			handler.RegisterRoutes(r, newTestAuth(t).Middleware)
		})
	})

	var patterns []string
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		patterns = append(patterns, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, patterns, "GET /api/test")
	assert.Contains(t, patterns, "POST /api/generate/weighted")
	assert.Contains(t, patterns, "POST /api/generate/ai")
	assert.Contains(t, patterns, "GET /api/user/getSavedNumbers")
	assert.Contains(t, patterns, "POST /api/user/saveNumbers")
}
