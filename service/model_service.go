// Package service holds the process-wide model service: the classifier is
// loaded once at startup and only read afterwards.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"irisapi/config"
	"irisapi/ml"
)

// ErrModelUnavailable is returned by every prediction when the artifact
// could not be loaded at startup.
var ErrModelUnavailable = errors.New("model service not initialized")

// PredictionError wraps a failure raised by the classifier itself.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string { return e.Err.Error() }
func (e *PredictionError) Unwrap() error { return e.Err }

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	ModelType string    `json:"model_type"`
	Version   string    `json:"version,omitempty"`
	Path      string    `json:"path"`
	Features  []string  `json:"features"`
	Classes   []string  `json:"classes"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// ModelService answers predictions from the classifier loaded at startup.
type ModelService struct {
	model   ml.Classifier
	classes []string
	info    ModelInfo
	initErr error
	logger  *zap.Logger
}

// NewModelService loads the artifact described by cfg. It never fails: a
// missing or corrupt artifact yields a service whose Available reports false
// and whose InitError holds the cause.
func NewModelService(cfg config.ModelConfig, logger *zap.Logger) *ModelService {
	model, err := ml.LoadModel(cfg.Type, cfg.Path)
	if err != nil {
		err = fmt.Errorf("load model %s: %w", cfg.Path, err)
		logger.Error("model service unavailable", zap.Error(err))
		return &ModelService{initErr: err, logger: logger, info: ModelInfo{ModelType: cfg.Type, Path: cfg.Path}}
	}
	svc, err := NewModelServiceFromClassifier(model, ModelInfo{ModelType: cfg.Type, Path: cfg.Path}, logger)
	if err != nil {
		logger.Error("model service unavailable", zap.Error(err))
		return &ModelService{initErr: err, logger: logger, info: ModelInfo{ModelType: cfg.Type, Path: cfg.Path}}
	}
	return svc
}

// NewModelServiceFromClassifier wraps an already loaded classifier. The
// classifier must expect the four iris measurements in FeatureNames order.
func NewModelServiceFromClassifier(model ml.Classifier, info ModelInfo, logger *zap.Logger) (*ModelService, error) {
	if want, got := ml.FeatureNames(), model.Features(); !slices.Equal(want, got) {
		return nil, fmt.Errorf("model features %v do not match %v", got, want)
	}
	classes := model.Classes()
	if len(classes) == 0 {
		return nil, errors.New("model has no classes")
	}
	seen := make(map[string]bool, len(classes))
	for i, c := range classes {
		classes[i] = ml.NormalizeLabel(c)
		if seen[classes[i]] {
			return nil, fmt.Errorf("class %q appears more than once after normalisation", classes[i])
		}
		seen[classes[i]] = true
	}

	if dt, ok := model.(*ml.DecisionTree); ok {
		meta := dt.Metadata()
		info.ModelType = meta.ModelType
		info.Version = meta.Version
	}
	info.Features = ml.FeatureNames()
	info.Classes = classes
	info.LoadedAt = time.Now().UTC()

	logger.Info("model loaded",
		zap.String("path", info.Path),
		zap.String("type", info.ModelType),
		zap.String("version", info.Version),
		zap.Strings("classes", classes),
	)
	return &ModelService{model: model, classes: classes, info: info, logger: logger}, nil
}

func (s *ModelService) Available() bool { return s.model != nil }

// InitError is why the model failed to load, or nil.
func (s *ModelService) InitError() error { return s.initErr }

func (s *ModelService) Info() (ModelInfo, error) {
	if !s.Available() {
		return ModelInfo{}, ErrModelUnavailable
	}
	info := s.info
	info.Classes = slices.Clone(s.classes)
	return info, nil
}

// Predict classifies one flower. It fails fast with ErrModelUnavailable when
// the model did not load and wraps classifier failures in *PredictionError.
func (s *ModelService) Predict(ctx context.Context, req ml.PredictionRequest) (ml.PredictionResponse, error) {
	if !s.Available() {
		return ml.PredictionResponse{}, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return ml.PredictionResponse{}, err
	}

	label, probs, err := s.model.Predict(req.Vector())
	if err != nil {
		return ml.PredictionResponse{}, &PredictionError{Err: err}
	}
	if label < 0 || label >= len(s.classes) {
		return ml.PredictionResponse{}, &PredictionError{Err: fmt.Errorf("class index %d out of range", label)}
	}
	if len(probs) != len(s.classes) {
		return ml.PredictionResponse{}, &PredictionError{Err: fmt.Errorf("expected %d probabilities, got %d", len(s.classes), len(probs))}
	}

	resp := ml.PredictionResponse{
		Species:       s.classes[label],
		Confidence:    probs[label],
		Probabilities: make(map[string]float64, len(s.classes)),
	}
	for i, class := range s.classes {
		resp.Probabilities[class] = probs[i]
	}
	return resp, nil
}
