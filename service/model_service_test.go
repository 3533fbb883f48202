package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"irisapi/config"
	"irisapi/ml"
)

type fakeClassifier struct {
	predict  func(features []float64) (int, []float64, error)
	classes  []string
	features []string
}

func (f *fakeClassifier) Predict(features []float64) (int, []float64, error) {
	return f.predict(features)
}
func (f *fakeClassifier) Classes() []string  { return append([]string(nil), f.classes...) }
func (f *fakeClassifier) Features() []string { return append([]string(nil), f.features...) }

func shippedModelConfig() config.ModelConfig {
	return config.ModelConfig{Type: ml.ModelTypeDecisionTree, Path: filepath.Join("..", "models", "iris_tree.json")}
}

func TestModelServicePredict(t *testing.T) {
	svc := NewModelService(shippedModelConfig(), zap.NewNop())
	if !svc.Available() {
		t.Fatalf("expected service to be available: %v", svc.InitError())
	}

	resp, err := svc.Predict(context.Background(), ml.PredictionRequest{
		SepalLength: 5.1, SepalWidth: 3.5, PetalLength: 1.4, PetalWidth: 0.2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Species != "setosa" || resp.Confidence != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Probabilities) != 3 {
		t.Fatalf("expected 3 probabilities, got %v", resp.Probabilities)
	}

	info, err := svc.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Version != "2024.1" || len(info.Classes) != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestModelServiceDeterministic(t *testing.T) {
	svc := NewModelService(shippedModelConfig(), zap.NewNop())
	req := ml.PredictionRequest{SepalLength: 6.0, SepalWidth: 2.9, PetalLength: 5.0, PetalWidth: 1.7}
	first, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := svc.Predict(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.Species != first.Species || next.Confidence != first.Confidence {
			t.Fatalf("prediction changed: %+v vs %+v", first, next)
		}
	}
}

func TestModelServiceMissingArtifact(t *testing.T) {
	svc := NewModelService(config.ModelConfig{Type: ml.ModelTypeDecisionTree, Path: filepath.Join(t.TempDir(), "none.json")}, zap.NewNop())
	if svc.Available() {
		t.Fatal("expected service to be unavailable")
	}
	if svc.InitError() == nil {
		t.Fatal("expected init error to be recorded")
	}
	if _, err := svc.Predict(context.Background(), ml.PredictionRequest{}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if _, err := svc.Info(); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable from Info, got %v", err)
	}
}

func TestModelServiceCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	svc := NewModelService(config.ModelConfig{Type: ml.ModelTypeDecisionTree, Path: path}, zap.NewNop())
	if svc.Available() {
		t.Fatal("expected service to be unavailable")
	}
}

func TestModelServiceWrapsClassifierErrors(t *testing.T) {
	fake := &fakeClassifier{
		predict: func([]float64) (int, []float64, error) {
			return 0, nil, errors.New("boom")
		},
		classes:  []string{"Iris-Setosa"},
		features: ml.FeatureNames(),
	}
	svc, err := NewModelServiceFromClassifier(fake, ModelInfo{ModelType: "fake"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Predict(context.Background(), ml.PredictionRequest{})
	var predErr *PredictionError
	if !errors.As(err, &predErr) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
	if predErr.Error() != "boom" {
		t.Fatalf("unexpected message %q", predErr.Error())
	}
}

func TestModelServiceNormalizesClasses(t *testing.T) {
	fake := &fakeClassifier{
		predict: func(features []float64) (int, []float64, error) {
			if len(features) != 4 || features[2] != 1.4 {
				t.Errorf("unexpected feature vector %v", features)
			}
			return 0, []float64{0.9, 0.1}, nil
		},
		classes:  []string{"Iris-Setosa", "Iris-Versicolor"},
		features: ml.FeatureNames(),
	}
	svc, err := NewModelServiceFromClassifier(fake, ModelInfo{ModelType: "fake"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := svc.Predict(context.Background(), ml.PredictionRequest{PetalLength: 1.4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Species != "setosa" || resp.Probabilities["versicolor"] != 0.1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestModelServiceRejectsFeatureMismatch(t *testing.T) {
	fake := &fakeClassifier{classes: []string{"a"}, features: []string{"x", "y"}}
	if _, err := NewModelServiceFromClassifier(fake, ModelInfo{}, zap.NewNop()); err == nil {
		t.Fatal("expected feature mismatch error")
	}
}

func TestModelServiceRejectsCollidingClasses(t *testing.T) {
	fake := &fakeClassifier{
		predict: func([]float64) (int, []float64, error) {
			return 1, []float64{0.3, 0.7}, nil
		},
		classes:  []string{"Setosa", "Iris-setosa"},
		features: ml.FeatureNames(),
	}
	if _, err := NewModelServiceFromClassifier(fake, ModelInfo{}, zap.NewNop()); err == nil {
		t.Fatal("expected duplicate class error")
	}
}

func TestModelServiceHonoursCancelledContext(t *testing.T) {
	svc := NewModelService(shippedModelConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Predict(ctx, ml.PredictionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
