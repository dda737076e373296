// Package model provides the shared estimator interfaces, fitted-state
// bookkeeping and gob helpers used by the sklearn-style classifiers.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy on the given test data and labels.
	Score(X, y mat.Matrix) float64
}

// ProbabilisticClassifier is implemented by classifiers that expose class
// probability estimates.
type ProbabilisticClassifier interface {
	Estimator

	// PredictProba returns probability estimates for each class,
	// one column per entry of Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class indices seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
