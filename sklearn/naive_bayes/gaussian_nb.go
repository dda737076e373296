// Package naive_bayes implements the Gaussian naive Bayes classifier.
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// GaussianNB models each feature as an independent normal distribution
// per class. Compatible with scikit-learn's GaussianNB.
type GaussianNB struct {
	state *model.StateManager

	// Hyperparameters
	varSmoothing float64 // Share of the largest feature variance added to every variance
	priors       []float64

	// Model parameters
	classes_     []int
	classCount_  []float64
	classPrior_  []float64
	theta_       [][]float64 // per-class feature means
	var_         [][]float64 // per-class feature variances
	epsilon_     float64
	nFeatures_   int
}

// GaussianNBOption is a functional option for GaussianNB
type GaussianNBOption func(*GaussianNB)

// NewGaussianNB creates a GaussianNB with scikit-learn defaults
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// WithVarSmoothing sets the variance smoothing share
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// WithPriors fixes the class priors instead of estimating them
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.priors = priors
	}
}

// Fit estimates per-class means and variances
func (nb *GaussianNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")

	nSamples, nFeatures, err := model.CheckXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	labels, err := model.Labels("GaussianNB.Fit", y)
	if err != nil {
		return err
	}
	classes := model.UniqueClasses(labels)
	if nb.priors != nil {
		if len(nb.priors) != len(classes) {
			return errors.NewValidationError("priors", "number of priors must match number of classes", len(nb.priors))
		}
		if math.Abs(floats.Sum(nb.priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "the sum of the priors should be 1", floats.Sum(nb.priors))
		}
	}

	columns := make([][]float64, nFeatures)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		columns[j] = mat.Col(nil, j, X)
		_, v := stat.PopMeanVariance(columns[j], nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	members := make([][]int, len(classes))
	for i, l := range labels {
		members[classIdx[l]] = append(members[classIdx[l]], i)
	}

	nb.theta_ = make([][]float64, len(classes))
	nb.var_ = make([][]float64, len(classes))
	nb.classCount_ = make([]float64, len(classes))
	values := make([]float64, 0, nSamples)
	for k, idx := range members {
		nb.theta_[k] = make([]float64, nFeatures)
		nb.var_[k] = make([]float64, nFeatures)
		nb.classCount_[k] = float64(len(idx))
		for j := 0; j < nFeatures; j++ {
			values = values[:0]
			for _, i := range idx {
				values = append(values, columns[j][i])
			}
			mean, v := stat.PopMeanVariance(values, nil)
			nb.theta_[k][j] = mean
			nb.var_[k][j] = v + nb.epsilon_
		}
	}

	if nb.priors != nil {
		nb.classPrior_ = append([]float64(nil), nb.priors...)
	} else {
		nb.classPrior_ = make([]float64, len(classes))
		for k, c := range nb.classCount_ {
			nb.classPrior_[k] = c / float64(nSamples)
		}
	}

	nb.classes_ = classes
	nb.nFeatures_ = nFeatures
	nb.state.MarkFitted(nFeatures, nSamples)
	return nil
}

// jointLogLikelihood returns log P(c) + log P(x | c) for every class
func (nb *GaussianNB) jointLogLikelihood(row []float64, out []float64) {
	for k := range nb.classes_ {
		jll := math.Log(nb.classPrior_[k])
		for j, x := range row {
			v := nb.var_[k][j]
			d := x - nb.theta_[k][j]
			jll -= 0.5*math.Log(2*math.Pi*v) + 0.5*d*d/v
		}
		out[k] = jll
	}
}

// PredictLogProba returns log-probability estimates for each class
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("GaussianNB", "PredictLogProba"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("GaussianNB.PredictLogProba", X, nb.nFeatures_)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(nb.classes_), nil)
	row := make([]float64, nb.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		jll := out.RawRowView(i)
		nb.jointLogLikelihood(row, jll)
		norm := floats.LogSumExp(jll)
		floats.AddConst(-norm, jll)
	}
	return out, nil
}

// PredictProba returns probability estimates for each class
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	logProba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, logProba)
	return logProba, nil
}

// Predict returns the class with the highest posterior
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := logProba.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(nb.classes_[floats.MaxIdx(logProba.RawRowView(i))]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (nb *GaussianNB) Score(X, y mat.Matrix) float64 {
	predictions, err := nb.Predict(X)
	if err != nil {
		return 0.0
	}
	score, err := metrics.AccuracyMatrix(y, predictions)
	if err != nil {
		return 0.0
	}
	return score
}

// Classes returns the class labels seen during fitting
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.classes_...)
}

// ClassPrior returns the class prior probabilities
func (nb *GaussianNB) ClassPrior() []float64 {
	return append([]float64(nil), nb.classPrior_...)
}

// GetParams returns the model hyperparameters
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// SetParams sets the model hyperparameters
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "var_smoothing":
			nb.varSmoothing = value.(float64)
		case "priors":
			nb.priors = value.([]float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

type gaussianNBState struct {
	model.ModelState
	VarSmoothing float64
	Priors       []float64
	Classes      []int
	ClassCount   []float64
	ClassPrior   []float64
	Theta        [][]float64
	Var          [][]float64
	Epsilon      float64
}

// MarshalBinary encodes the fitted model with gob
func (nb *GaussianNB) MarshalBinary() ([]byte, error) {
	if err := nb.state.RequireFitted("GaussianNB", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeState(gaussianNBState{
		ModelState:   nb.state.Snapshot(),
		VarSmoothing: nb.varSmoothing,
		Priors:       nb.priors,
		Classes:      nb.classes_,
		ClassCount:   nb.classCount_,
		ClassPrior:   nb.classPrior_,
		Theta:        nb.theta_,
		Var:          nb.var_,
		Epsilon:      nb.epsilon_,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary
func (nb *GaussianNB) UnmarshalBinary(data []byte) error {
	var s gaussianNBState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Theta) != len(s.Classes) || len(s.Var) != len(s.Classes) || len(s.ClassPrior) != len(s.Classes) {
		return errors.NewValueError("GaussianNB.UnmarshalBinary", "inconsistent class parameters")
	}

	if nb.state == nil {
		nb.state = model.NewStateManager()
	}
	nb.varSmoothing, nb.priors = s.VarSmoothing, s.Priors
	nb.classes_, nb.classCount_, nb.classPrior_ = s.Classes, s.ClassCount, s.ClassPrior
	nb.theta_, nb.var_, nb.epsilon_ = s.Theta, s.Var, s.Epsilon
	nb.nFeatures_ = s.NFeatures
	nb.state.Restore(s.ModelState)
	return nil
}
