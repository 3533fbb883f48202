package ml

import (
	"fmt"
)

// LoadModel reads the artifact at path with the loader registered for
// modelType.
func LoadModel(modelType, path string) (Classifier, error) {
	switch modelType {
	case ModelTypeDecisionTree, "":
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
