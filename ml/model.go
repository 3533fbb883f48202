package ml

// Classifier maps a feature vector to a class index and the probability of
// every class. Implementations must be safe for concurrent Predict calls once
// loaded.
type Classifier interface {
	Predict(features []float64) (int, []float64, error)
	Classes() []string
	Features() []string
}

// Trainable is a Classifier that can be fitted and persisted.
type Trainable interface {
	Classifier
	Train(features [][]float64, labels []int) error
	Save(path string) error
}
