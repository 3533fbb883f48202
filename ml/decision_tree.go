package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

const ModelTypeDecisionTree = "decision_tree"

var ErrNotTrained = errors.New("model not trained")

// DecisionTree is a CART classifier stored as a flat pre-order node slice:
// the left child of a split node is always the next node, the right child
// follows the whole left subtree.
type DecisionTree struct {
	maxDepth int
	meta     Metadata
	nodes    []TreeNode
}

// Metadata describes what a classifier artifact was trained on.
type Metadata struct {
	ModelType string   `json:"model_type"`
	Version   string   `json:"version,omitempty"`
	Features  []string `json:"features"`
	Classes   []string `json:"classes"`
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassLabel  int     `json:"class_label"`
	IsLeaf      bool    `json:"is_leaf"`
	ClassCounts []int   `json:"class_counts,omitempty"`
}

type treeArtifact struct {
	Metadata
	Nodes []TreeNode `json:"nodes"`
}

func NewDecisionTree(features, classes []string, maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &DecisionTree{
		maxDepth: maxDepth,
		meta: Metadata{
			ModelType: ModelTypeDecisionTree,
			Features:  append([]string(nil), features...),
			Classes:   append([]string(nil), classes...),
		},
	}
}

func (dt *DecisionTree) Classes() []string  { return append([]string(nil), dt.meta.Classes...) }
func (dt *DecisionTree) Features() []string { return append([]string(nil), dt.meta.Features...) }
func (dt *DecisionTree) Metadata() Metadata { return dt.meta }
func (dt *DecisionTree) NodeCount() int     { return len(dt.nodes) }

func (dt *DecisionTree) SetVersion(version string) { dt.meta.Version = version }

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(dt.meta.Features)
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d: expected %d features, got %d", i, width, len(row))
		}
	}
	for i, label := range labels {
		if label < 0 || label >= len(dt.meta.Classes) {
			return fmt.Errorf("row %d: label %d out of range", i, label)
		}
	}

	dt.nodes = dt.buildNode(features, labels, 0)
	return nil
}

// Predict walks the tree and returns the leaf's class together with the
// class distribution of the training rows that reached that leaf.
func (dt *DecisionTree) Predict(features []float64) (int, []float64, error) {
	if len(dt.nodes) == 0 {
		return 0, nil, ErrNotTrained
	}
	if len(features) != len(dt.meta.Features) {
		return 0, nil, fmt.Errorf("expected %d features, got %d", len(dt.meta.Features), len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, dt.leafProbabilities(node), nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, nil, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return ErrNotTrained
	}
	payload, err := json.MarshalIndent(treeArtifact{Metadata: dt.meta, Nodes: dt.nodes}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return dt.Decode(payload)
}

// Decode parses and validates an artifact. A tree that fails validation
// leaves dt untouched.
func (dt *DecisionTree) Decode(payload []byte) error {
	var artifact treeArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	if err := validateArtifact(artifact); err != nil {
		return err
	}
	dt.meta = artifact.Metadata
	dt.nodes = artifact.Nodes
	return nil
}

func validateArtifact(a treeArtifact) error {
	if a.ModelType != ModelTypeDecisionTree {
		return fmt.Errorf("unexpected model type %q", a.ModelType)
	}
	if len(a.Features) == 0 {
		return errors.New("artifact has no features")
	}
	if len(a.Classes) == 0 {
		return errors.New("artifact has no classes")
	}
	if len(a.Nodes) == 0 {
		return ErrNotTrained
	}
	for i, node := range a.Nodes {
		if node.IsLeaf {
			if node.ClassLabel < 0 || node.ClassLabel >= len(a.Classes) {
				return fmt.Errorf("node %d: class label %d out of range", i, node.ClassLabel)
			}
			if len(node.ClassCounts) != 0 && len(node.ClassCounts) != len(a.Classes) {
				return fmt.Errorf("node %d: expected %d class counts, got %d", i, len(a.Classes), len(node.ClassCounts))
			}
			for _, c := range node.ClassCounts {
				if c < 0 {
					return fmt.Errorf("node %d: negative class count", i)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(a.Features) {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if math.IsNaN(node.Threshold) || math.IsInf(node.Threshold, 0) {
			return fmt.Errorf("node %d: invalid threshold", i)
		}
		// children must come after their parent, which rules out cycles
		if node.LeftChild <= i || node.LeftChild >= len(a.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(a.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

func (dt *DecisionTree) leafProbabilities(node TreeNode) []float64 {
	probs := make([]float64, len(dt.meta.Classes))
	total := 0
	for _, c := range node.ClassCounts {
		total += c
	}
	if total == 0 {
		probs[node.ClassLabel] = 1
		return probs
	}
	for i, c := range node.ClassCounts {
		probs[i] = float64(c) / float64(total)
	}
	return probs
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	counts := classCounts(labels, len(dt.meta.Classes))
	leaf := []TreeNode{{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		ClassLabel:  argmax(counts),
		IsLeaf:      true,
		ClassCounts: counts,
	}}
	if depth >= dt.maxDepth || isPure(labels) {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, len(dt.meta.Classes))
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return leaf
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: leaf[0].ClassLabel,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shiftChildren(leftNodes, 1)...)
	nodes = append(nodes, shiftChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// shiftChildren rebases the child indexes of a subtree that is placed at
// offset in the parent's slice.
func shiftChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

// findBestSplit tries the midpoints between consecutive distinct values of
// every feature and keeps the one with the lowest weighted gini, provided it
// improves on the parent.
func findBestSplit(features [][]float64, labels []int, numClasses int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := gini(labels, numClasses) - 1e-12

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		sort.Float64s(values)
		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			threshold := (values[i-1] + values[i]) / 2
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) == 0 || len(rightLabels) == 0 {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels, numClasses)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int, numClasses int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels, numClasses) + (rightWeight/total)*gini(rightLabels, numClasses)
}

func gini(labels []int, numClasses int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range classCounts(labels, numClasses) {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(labels []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

// argmax breaks ties towards the lower class index.
func argmax(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
