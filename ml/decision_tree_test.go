package ml

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 1, 1}

	model := NewDecisionTree([]string{"x", "y"}, []string{"low", "high"}, 2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, probs, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if probs[0] != 1 {
		t.Fatalf("expected probability 1 for class 0, got %v", probs)
	}
}

func TestDecisionTreePredictUntrained(t *testing.T) {
	model := NewDecisionTree(FeatureNames(), []string{"a"}, 3)
	if _, _, err := model.Predict([]float64{1, 2, 3, 4}); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}

func TestDecisionTreeRejectsWrongWidth(t *testing.T) {
	model := &DecisionTree{}
	if err := model.Load(filepath.Join("..", "models", "iris_tree.json")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := model.Predict([]float64{1, 2}); err == nil {
		t.Fatal("expected error for short feature vector")
	}
}

func TestShippedArtifact(t *testing.T) {
	model, err := LoadModel(ModelTypeDecisionTree, filepath.Join("..", "models", "iris_tree.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		input      []float64
		species    string
		confidence float64
	}{
		{[]float64{5.1, 3.5, 1.4, 0.2}, "setosa", 1},
		{[]float64{6.4, 3.2, 4.5, 1.5}, "versicolor", 47.0 / 48.0},
		{[]float64{6.3, 3.3, 6.0, 2.5}, "virginica", 45.0 / 46.0},
	}
	for _, tc := range cases {
		label, probs, err := model.Predict(tc.input)
		if err != nil {
			t.Fatalf("predict %v: %v", tc.input, err)
		}
		if got := model.Classes()[label]; got != tc.species {
			t.Errorf("predict %v: got %s want %s", tc.input, got, tc.species)
		}
		if math.Abs(probs[label]-tc.confidence) > 1e-9 {
			t.Errorf("predict %v: confidence %f want %f", tc.input, probs[label], tc.confidence)
		}
	}
}

func TestTrainedTreeSurvivesSaveLoad(t *testing.T) {
	ds, err := LoadCSV(filepath.Join("..", "data", "iris.csv"))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	model := NewDecisionTree(FeatureNames(), ds.Classes, 4)
	if err := model.Train(ds.Features, ds.Labels); err != nil {
		t.Fatalf("train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := &DecisionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NodeCount() != model.NodeCount() {
		t.Fatalf("node count: got %d want %d", loaded.NodeCount(), model.NodeCount())
	}
	for _, row := range ds.Features {
		a, _, errA := model.Predict(row)
		b, _, errB := loaded.Predict(row)
		if errA != nil || errB != nil {
			t.Fatalf("predict %v: %v / %v", row, errA, errB)
		}
		if a != b {
			t.Fatalf("predict %v: trained %d, reloaded %d", row, a, b)
		}
	}
}

func TestDecodeRejectsCorruptArtifacts(t *testing.T) {
	cases := map[string]string{
		"not json":    `{"model_type":`,
		"wrong type":  `{"model_type":"svm","features":["a"],"classes":["x"],"nodes":[{"is_leaf":true}]}`,
		"no nodes":    `{"model_type":"decision_tree","features":["a"],"classes":["x"],"nodes":[]}`,
		"cycle":       `{"model_type":"decision_tree","features":["a"],"classes":["x"],"nodes":[{"feature_idx":0,"left_child":0,"right_child":0}]}`,
		"bad label":   `{"model_type":"decision_tree","features":["a"],"classes":["x"],"nodes":[{"is_leaf":true,"class_label":3}]}`,
		"bad counts":  `{"model_type":"decision_tree","features":["a"],"classes":["x","y"],"nodes":[{"is_leaf":true,"class_counts":[1]}]}`,
		"bad feature": `{"model_type":"decision_tree","features":["a"],"classes":["x"],"nodes":[{"feature_idx":4,"left_child":1,"right_child":2},{"is_leaf":true},{"is_leaf":true}]}`,
	}
	for name, payload := range cases {
		model := &DecisionTree{}
		if err := model.Decode([]byte(payload)); err == nil {
			t.Errorf("%s: expected error", name)
		}
		if model.NodeCount() != 0 {
			t.Errorf("%s: tree modified on failure", name)
		}
	}
}

func TestLoadModelUnsupportedType(t *testing.T) {
	_, err := LoadModel("random_forest", "unused")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported model error, got %v", err)
	}
}
