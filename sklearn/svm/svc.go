// Package svm implements a C-support vector classifier.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

const (
	// GammaScale selects gamma = 1 / (n_features * X.var())
	GammaScale = "scale"
	// GammaAuto selects gamma = 1 / n_features
	GammaAuto = "auto"

	tau = 1e-12
)

// SVC is a C-support vector classifier with an RBF or linear kernel.
// Multiclass problems are solved one-vs-one with majority voting,
// matching scikit-learn's SVC.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	C       float64 // Regularization parameter
	kernel  string  // "rbf" or "linear"
	gamma   string  // "scale", "auto"
	gammaV  float64 // explicit gamma, used when > 0
	tol     float64 // Stopping tolerance on the KKT violation
	maxIter int     // Iteration cap per binary problem, -1 for the libsvm default

	// Model parameters
	classes_   []int
	nFeatures_ int
	gamma_     float64
	machines_  []binaryMachine
}

// binaryMachine is the decision function for one class pair.
// A positive decision value votes for classes_[Pos].
type binaryMachine struct {
	Pos, Neg int
	Support  [][]float64
	DualCoef []float64
	Rho      float64
	NIter    int
}

// SVCOption is a functional option for SVC
type SVCOption func(*SVC)

// NewSVC creates a new SVC with scikit-learn defaults
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:   model.NewStateManager(),
		C:       1.0,
		kernel:  "rbf",
		gamma:   GammaScale,
		tol:     1e-3,
		maxIter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithC sets the regularization parameter
func WithC(c float64) SVCOption {
	return func(s *SVC) {
		s.C = c
	}
}

// WithKernel sets the kernel ("rbf" or "linear")
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) {
		s.kernel = kernel
	}
}

// WithGamma sets the gamma mode ("scale" or "auto")
func WithGamma(gamma string) SVCOption {
	return func(s *SVC) {
		s.gamma = gamma
	}
}

// WithGammaValue sets an explicit RBF gamma
func WithGammaValue(gamma float64) SVCOption {
	return func(s *SVC) {
		s.gammaV = gamma
	}
}

// WithTol sets the stopping tolerance
func WithTol(tol float64) SVCOption {
	return func(s *SVC) {
		s.tol = tol
	}
}

// WithMaxIter caps SMO iterations per binary problem
func WithMaxIter(maxIter int) SVCOption {
	return func(s *SVC) {
		s.maxIter = maxIter
	}
}

// Fit trains one binary SVM per pair of classes
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	if s.kernel != "rbf" && s.kernel != "linear" {
		return errors.NewValidationError("kernel", "must be \"rbf\" or \"linear\"", s.kernel)
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}

	nSamples, nFeatures, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	labels, err := model.Labels("SVC.Fit", y)
	if err != nil {
		return err
	}
	classes := model.UniqueClasses(labels)
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit",
			fmt.Sprintf("the number of classes has to be greater than one; got %d class", len(classes)))
	}

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	s.gamma_ = s.resolveGamma(rows, nFeatures)
	s.nFeatures_ = nFeatures
	s.classes_ = classes

	kernel := make([][]float64, nSamples)
	for i := range kernel {
		kernel[i] = make([]float64, nSamples)
		for j := 0; j <= i; j++ {
			k := s.kernelValue(rows[i], rows[j])
			kernel[i][j] = k
			kernel[j][i] = k
		}
	}

	byClass := make(map[int][]int, len(classes))
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}

	s.machines_ = s.machines_[:0]
	for a := 0; a < len(classes); a++ {
		for b := a + 1; b < len(classes); b++ {
			idx := append(append([]int(nil), byClass[classes[a]]...), byClass[classes[b]]...)
			signs := make([]float64, len(idx))
			for t := range idx {
				if t < len(byClass[classes[a]]) {
					signs[t] = 1
				} else {
					signs[t] = -1
				}
			}

			alpha, rho, iter := s.solve(kernel, idx, signs)

			m := binaryMachine{Pos: a, Neg: b, Rho: rho, NIter: iter}
			for t, av := range alpha {
				if av > 0 {
					m.Support = append(m.Support, rows[idx[t]])
					m.DualCoef = append(m.DualCoef, av*signs[t])
				}
			}
			s.machines_ = append(s.machines_, m)
		}
	}

	s.state.MarkFitted(nFeatures, nSamples)
	return nil
}

func (s *SVC) resolveGamma(rows [][]float64, nFeatures int) float64 {
	if s.gammaV > 0 {
		return s.gammaV
	}
	if s.gamma == GammaAuto {
		return 1.0 / float64(nFeatures)
	}
	all := make([]float64, 0, len(rows)*nFeatures)
	for _, r := range rows {
		all = append(all, r...)
	}
	_, variance := stat.PopMeanVariance(all, nil)
	if variance == 0 {
		return 1.0
	}
	return 1.0 / (float64(nFeatures) * variance)
}

func (s *SVC) kernelValue(a, b []float64) float64 {
	if s.kernel == "linear" {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-s.gamma_ * d * d)
}

// solve runs SMO with maximal violating pair selection on the samples idx.
// It returns the dual variables, the offset rho and the iteration count.
func (s *SVC) solve(kernel [][]float64, idx []int, y []float64) ([]float64, float64, int) {
	l := len(idx)
	C := s.C
	alpha := make([]float64, l)
	grad := make([]float64, l)
	for t := range grad {
		grad[t] = -1
	}
	q := func(i, j int) float64 {
		return y[i] * y[j] * kernel[idx[i]][idx[j]]
	}

	maxIter := s.maxIter
	if maxIter < 0 {
		maxIter = 10000000
		if 100*l > maxIter {
			maxIter = 100 * l
		}
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		i, j := -1, -1
		gmax, gmin := math.Inf(-1), math.Inf(1)
		for t := 0; t < l; t++ {
			v := -y[t] * grad[t]
			if (y[t] > 0 && alpha[t] < C) || (y[t] < 0 && alpha[t] > 0) {
				if v > gmax {
					gmax, i = v, t
				}
			}
			if (y[t] > 0 && alpha[t] > 0) || (y[t] < 0 && alpha[t] < C) {
				if v < gmin {
					gmin, j = v, t
				}
			}
		}
		if i < 0 || j < 0 || gmax-gmin < s.tol {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		if y[i] != y[j] {
			quad := q(i, i) + q(j, j) + 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := q(i, i) + q(j, j) - 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < l; t++ {
			grad[t] += q(t, i)*dI + q(t, j)*dJ
		}
	}
	if iter == maxIter {
		errors.Warn(errors.NewConvergenceWarning("smo", iter, "solver terminated early (max_iter reached)"))
	}

	return alpha, s.rho(alpha, grad, y), iter
}

func (s *SVC) rho(alpha, grad, y []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	nFree, sumFree := 0, 0.0
	for t := range alpha {
		yG := y[t] * grad[t]
		switch {
		case alpha[t] >= s.C:
			if y[t] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// DecisionFunction returns one column per class pair, in the order
// (0,1), (0,2), ..., (1,2), ...
func (s *SVC) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("SVC.DecisionFunction", X, s.nFeatures_)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(s.machines_), nil)
	for i := 0; i < nSamples; i++ {
		row := mat.Row(nil, i, X)
		for m, machine := range s.machines_ {
			sum := -machine.Rho
			for k, sv := range machine.Support {
				sum += machine.DualCoef[k] * s.kernelValue(sv, row)
			}
			out.Set(i, m, sum)
		}
	}
	return out, nil
}

// Predict returns the class with the most one-vs-one votes. Ties go to the
// class that comes first in Classes.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := dec.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	votes := make([]int, len(s.classes_))
	for i := 0; i < nSamples; i++ {
		for k := range votes {
			votes[k] = 0
		}
		for m, machine := range s.machines_ {
			if dec.At(i, m) > 0 {
				votes[machine.Pos]++
			} else {
				votes[machine.Neg]++
			}
		}
		best := 0
		for k := 1; k < len(votes); k++ {
			if votes[k] > votes[best] {
				best = k
			}
		}
		predictions.Set(i, 0, float64(s.classes_[best]))
	}
	return predictions, nil
}

// Classes returns the class labels seen during fitting
func (s *SVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// NSupport returns the number of support vectors of each binary machine
func (s *SVC) NSupport() []int {
	out := make([]int, len(s.machines_))
	for i, m := range s.machines_ {
		out[i] = len(m.Support)
	}
	return out
}

// Gamma returns the kernel coefficient resolved during Fit
func (s *SVC) Gamma() float64 {
	return s.gamma_
}

// Score returns the mean accuracy on the given test data and labels
func (s *SVC) Score(X, y mat.Matrix) float64 {
	predictions, err := s.Predict(X)
	if err != nil {
		return 0.0
	}
	score, err := metrics.AccuracyMatrix(y, predictions)
	if err != nil {
		return 0.0
	}
	return score
}

// GetParams returns the model hyperparameters
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.gamma)
	if s.gammaV > 0 {
		gamma = s.gammaV
	}
	return map[string]interface{}{
		"C":        s.C,
		"kernel":   s.kernel,
		"gamma":    gamma,
		"tol":      s.tol,
		"max_iter": s.maxIter,
	}
}

// SetParams sets the model hyperparameters
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			s.C = value.(float64)
		case "kernel":
			s.kernel = value.(string)
		case "gamma":
			switch g := value.(type) {
			case string:
				s.gamma, s.gammaV = g, 0
			case float64:
				s.gammaV = g
			default:
				return errors.NewValidationError("gamma", "must be \"scale\", \"auto\" or a float", value)
			}
		case "tol":
			s.tol = value.(float64)
		case "max_iter":
			s.maxIter = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

type svcState struct {
	model.ModelState
	C        float64
	Kernel   string
	Gamma    string
	GammaV   float64
	Tol      float64
	MaxIter  int
	Classes  []int
	Resolved float64
	Machines []binaryMachine
}

// MarshalBinary encodes the fitted model with gob
func (s *SVC) MarshalBinary() ([]byte, error) {
	if err := s.state.RequireFitted("SVC", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeState(svcState{
		ModelState: s.state.Snapshot(),
		C:          s.C,
		Kernel:     s.kernel,
		Gamma:      s.gamma,
		GammaV:     s.gammaV,
		Tol:        s.tol,
		MaxIter:    s.maxIter,
		Classes:    s.classes_,
		Resolved:   s.gamma_,
		Machines:   s.machines_,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary
func (s *SVC) UnmarshalBinary(data []byte) error {
	var st svcState
	if err := model.DecodeState(data, &st); err != nil {
		return err
	}
	for _, m := range st.Machines {
		if m.Pos >= len(st.Classes) || m.Neg >= len(st.Classes) || len(m.Support) != len(m.DualCoef) {
			return errors.NewValueError("SVC.UnmarshalBinary", "inconsistent machine state")
		}
	}

	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.C, s.kernel, s.gamma, s.gammaV = st.C, st.Kernel, st.Gamma, st.GammaV
	s.tol, s.maxIter = st.Tol, st.MaxIter
	s.classes_, s.gamma_, s.machines_ = st.Classes, st.Resolved, st.Machines
	s.nFeatures_ = st.NFeatures
	s.state.Restore(st.ModelState)
	return nil
}
