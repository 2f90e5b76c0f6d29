package router

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classification labels.
const (
	LabelSimple  = "simple"
	LabelComplex = "complex"
)

// Classifier predicts whether a question is simple enough for the structured
// path. Implementations are trained offline; the router only consumes them.
type Classifier interface {
	Predict(features []float64) (label string, probability float64)
}

// LogisticClassifier is a binary logistic model over the feature vector.
// Probability is reported for the predicted class.
type LogisticClassifier struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// LoadLogistic reads trained weights from a JSON file.
func LoadLogistic(path string) (*LogisticClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var c LogisticClassifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	if len(c.Weights) == 0 {
		return nil, fmt.Errorf("weights file %s has no weights", path)
	}
	return &c, nil
}

// Predict scores the features. The positive class is complex; the returned
// probability belongs to whichever label wins.
func (c *LogisticClassifier) Predict(features []float64) (string, float64) {
	z := c.Bias
	n := len(c.Weights)
	if len(features) < n {
		n = len(features)
	}
	for i := 0; i < n; i++ {
		z += c.Weights[i] * features[i]
	}
	pComplex := 1 / (1 + math.Exp(-z))
	if pComplex >= 0.5 {
		return LabelComplex, pComplex
	}
	return LabelSimple, 1 - pComplex
}

// HeuristicClassifier is the zero-training default: a question is simple when
// it looks like a single tabular lookup.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Predict(features []float64) (string, float64) {
	// Feature layout per Features(): [2] course code, [3] aggregate wording,
	// [4] comparison, [5] explanation, [8] requires reasoning.
	if len(features) < 9 {
		return LabelComplex, 0.9
	}
	if features[4] == 1 || features[5] == 1 || features[8] == 1 {
		return LabelComplex, 0.9
	}
	if features[2] == 1 || features[3] == 1 {
		return LabelSimple, 0.8
	}
	return LabelComplex, 0.75
}
