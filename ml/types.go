package ml

// Feature order expected by every classifier artifact.
const (
	FeatureSepalLength = "sepal_length"
	FeatureSepalWidth  = "sepal_width"
	FeaturePetalLength = "petal_length"
	FeaturePetalWidth  = "petal_width"
)

// FeatureNames returns the measurement names in vector order.
func FeatureNames() []string {
	return []string{FeatureSepalLength, FeatureSepalWidth, FeaturePetalLength, FeaturePetalWidth}
}

// PredictionRequest holds the four flower measurements, in centimetres.
type PredictionRequest struct {
	SepalLength float64 `json:"sepal_length"`
	SepalWidth  float64 `json:"sepal_width"`
	PetalLength float64 `json:"petal_length"`
	PetalWidth  float64 `json:"petal_width"`
}

// Vector returns the measurements in FeatureNames order.
func (r PredictionRequest) Vector() []float64 {
	return []float64{r.SepalLength, r.SepalWidth, r.PetalLength, r.PetalWidth}
}

// PredictionResponse is the species chosen by the model and the class
// probabilities it was chosen from.
type PredictionResponse struct {
	Species       string             `json:"species"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}
