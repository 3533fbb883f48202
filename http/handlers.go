package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"irisapi/db"
	"irisapi/ml"
	"irisapi/monitoring"
	"irisapi/service"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	storeWriteTimeout  = 2 * time.Second

	predictionIDHeader = "X-Prediction-ID"
)

// Predictor is the model service as seen by the handlers.
type Predictor interface {
	Available() bool
	Predict(ctx context.Context, req ml.PredictionRequest) (ml.PredictionResponse, error)
	Info() (service.ModelInfo, error)
}

// PredictionStore persists served predictions. It is optional.
type PredictionStore interface {
	SavePrediction(ctx context.Context, rec db.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
	GetPrediction(ctx context.Context, id string) (db.PredictionRecord, error)
}

// Publisher receives every served prediction. It is optional.
type Publisher interface {
	Publish(msgType monitoring.MessageType, id string, data any) error
}

// Dependencies are the collaborators of Handlers. Only Predictor is
// required; the rest are switched off when nil.
type Dependencies struct {
	Predictor   Predictor
	Store       PredictionStore
	Metrics     *monitoring.MetricsCollector
	Feed        Publisher
	FeedHandler http.HandlerFunc
	Logger      *zap.Logger
	HistorySize int
}

// Handlers serves the prediction API.
type Handlers struct {
	predictor   Predictor
	store       PredictionStore
	metrics     *monitoring.MetricsCollector
	feed        Publisher
	feedHandler http.HandlerFunc
	history     *History
	logger      *zap.Logger
}

// NewHandlers fills in defaults for the optional dependencies and builds the
// in-memory history.
func NewHandlers(deps Dependencies) (*Handlers, error) {
	if deps.Predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetricsCollector()
	}
	if deps.HistorySize <= 0 {
		deps.HistorySize = 1024
	}
	history, err := NewHistory(deps.HistorySize)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		predictor:   deps.Predictor,
		store:       deps.Store,
		metrics:     deps.Metrics,
		feed:        deps.Feed,
		feedHandler: deps.FeedHandler,
		history:     history,
		logger:      deps.Logger,
	}, nil
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /model", h.handleModel)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
	mux.HandleFunc("GET /predictions/recent", h.handleRecent)
	mux.HandleFunc("GET /predictions/{id}", h.handlePrediction)
	if h.feedHandler != nil {
		mux.HandleFunc("GET /ws/predictions", h.feedHandler)
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "Iris API is running",
	})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	// an unavailable model answers 503 before the body is even looked at
	if !h.predictor.Available() {
		h.metrics.RecordRequest(monitoring.OutcomeUnavailable)
		writeDetail(w, http.StatusServiceUnavailable, "Model service not initialized")
		return
	}

	req, err := decodePredictionRequest(r.Body)
	if err != nil {
		h.metrics.RecordRequest(monitoring.OutcomeInvalid)
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verrs})
			return
		}
		if errors.Is(err, errBodyTooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	resp, err := h.predictor.Predict(r.Context(), req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, service.ErrModelUnavailable) {
			h.metrics.RecordRequest(monitoring.OutcomeUnavailable)
			writeDetail(w, http.StatusServiceUnavailable, "Model service not initialized")
			return
		}
		h.metrics.RecordRequest(monitoring.OutcomeError)
		h.logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Prediction error: "+err.Error())
		return
	}

	h.metrics.RecordPrediction(resp.Species, latency)
	id := h.record(r.Context(), req, resp, latency)

	w.Header().Set(predictionIDHeader, id)
	writeJSON(w, http.StatusOK, resp)
}

// record feeds a served prediction to the history, the store and the live
// feed, and returns the id it was logged under. Each prediction gets a fresh
// id so a client reusing X-Request-ID cannot overwrite an earlier one.
// Failures are logged and never change the response.
func (h *Handlers) record(ctx context.Context, req ml.PredictionRequest, resp ml.PredictionResponse, latency time.Duration) string {
	id := uuid.NewString()
	requestID := GetRequestID(ctx)
	rec := db.PredictionRecord{
		ID:        id,
		RequestID: requestID,
		Request:   req,
		Response:  resp,
		Latency:   latency,
		CreatedAt: time.Now().UTC(),
	}
	if info, err := h.predictor.Info(); err == nil {
		rec.ModelVersion = info.Version
	}
	h.history.Add(rec)

	if h.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancel()
		if err := h.store.SavePrediction(storeCtx, rec); err != nil {
			h.logger.Warn("failed to persist prediction",
				zap.String("prediction_id", id), zap.String("request_id", requestID), zap.Error(err))
		}
	}
	if h.feed != nil {
		if err := h.feed.Publish(monitoring.PredictionEvent, id, rec); err != nil {
			h.logger.Warn("failed to publish prediction", zap.String("prediction_id", id), zap.Error(err))
		}
	}
	return id
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.predictor.Info()
	if err != nil {
		writeDetail(w, http.StatusServiceUnavailable, "Model service not initialized")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handlers) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": ValidationErrors{{
				Loc: []string{"query", "limit"}, Msg: "Input should be a positive integer", Type: "int_parsing",
			}}})
			return
		}
		limit = min(l, maxRecentLimit)
	}

	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"data": h.history.Recent(limit)})
		return
	}
	records, err := h.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to query predictions", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Failed to query predictions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handlers) handlePrediction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if rec, ok := h.history.Get(id); ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	if h.store != nil {
		rec, err := h.store.GetPrediction(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("failed to load prediction", zap.String("id", id), zap.Error(err))
			writeDetail(w, http.StatusInternalServerError, "Failed to load prediction")
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Prediction not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
