package classifier

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/preprocessing"
)

// Model is a trained estimator of one kind together with the label
// encoding it was trained with.
//
// A training set holding a single label yields a constant model that
// always predicts that label without fitting an estimator. SVC and
// logistic regression cannot fit one class, and small folds hit this.
type Model struct {
	Kind      Kind
	Encoder   *preprocessing.LabelEncoder[string]
	Estimator model.Estimator // nil for a constant model
}

type estimatorFactory func(Kind) (model.Estimator, error)

// fit trains a fresh estimator of kind on X and labels.
func fit(newEstimator estimatorFactory, kind Kind, X mat.Matrix, labels []string) (*Model, error) {
	enc := preprocessing.NewLabelEncoder[string]()
	y, err := enc.FitTransform(labels)
	if err != nil {
		return nil, err
	}
	if enc.NClasses() == 1 {
		return &Model{Kind: kind, Encoder: enc}, nil
	}

	est, err := newEstimator(kind)
	if err != nil {
		return nil, err
	}
	if err := errors.SafeExecute(string(kind)+".Fit", func() error {
		return est.Fit(X, y)
	}); err != nil {
		return nil, err
	}
	return &Model{Kind: kind, Encoder: enc, Estimator: est}, nil
}

// Constant reports whether the model predicts a single label.
func (m *Model) Constant() bool {
	return m.Estimator == nil
}

// PredictRows returns one label per row of X.
func (m *Model) PredictRows(X mat.Matrix) ([]string, error) {
	rows, _ := X.Dims()
	if m.Constant() {
		out := make([]string, rows)
		for i := range out {
			out[i] = m.Encoder.Classes[0]
		}
		return out, nil
	}

	var pred mat.Matrix
	err := errors.SafeExecute(string(m.Kind)+".Predict", func() error {
		var err error
		pred, err = m.Estimator.Predict(X)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.Encoder.InverseTransform(pred)
}

// Predict returns the label of a single feature vector.
func (m *Model) Predict(x []float64) (string, error) {
	if len(x) == 0 {
		return "", errors.NewModelError(string(m.Kind)+".Predict", "empty data", errors.ErrEmptyData)
	}
	labels, err := m.PredictRows(mat.NewDense(1, len(x), x))
	if err != nil {
		return "", err
	}
	return labels[0], nil
}

// denseRows copies non-empty rectangular rows into a matrix.
func denseRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.NewModelError("denseRows", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		if len(r) != len(rows[0]) {
			return nil, errors.NewDimensionError("denseRows", len(rows[0]), len(r), 1)
		}
		out.SetRow(i, r)
	}
	return out, nil
}
