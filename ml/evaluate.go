package ml

import (
	"errors"
	"fmt"
)

// Evaluation summarises a classifier on a labelled set. Precision and recall
// are macro averages over the classes that occur in either the predictions or
// the labels.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	Samples   int
}

func Evaluate(model Classifier, ds *Dataset) (Evaluation, error) {
	if ds == nil || ds.Len() == 0 {
		return Evaluation{}, errors.New("evaluation set is empty")
	}
	numClasses := len(model.Classes())
	truePositive := make([]int, numClasses)
	predicted := make([]int, numClasses)
	actual := make([]int, numClasses)

	correct := 0
	for i, row := range ds.Features {
		label, _, err := model.Predict(row)
		if err != nil {
			return Evaluation{}, err
		}
		want := ds.Labels[i]
		if label < 0 || label >= numClasses || want < 0 || want >= numClasses {
			return Evaluation{}, fmt.Errorf("row %d: label out of range", i)
		}
		if label == want {
			correct++
			truePositive[label]++
		}
		predicted[label]++
		actual[want]++
	}

	eval := Evaluation{
		Accuracy: float64(correct) / float64(ds.Len()),
		Samples:  ds.Len(),
	}
	seen := 0
	for c := 0; c < numClasses; c++ {
		if predicted[c] == 0 && actual[c] == 0 {
			continue
		}
		seen++
		if predicted[c] > 0 {
			eval.Precision += float64(truePositive[c]) / float64(predicted[c])
		}
		if actual[c] > 0 {
			eval.Recall += float64(truePositive[c]) / float64(actual[c])
		}
	}
	if seen > 0 {
		eval.Precision /= float64(seen)
		eval.Recall /= float64(seen)
	}
	return eval, nil
}
