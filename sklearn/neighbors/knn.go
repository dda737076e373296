// Package neighbors implements a k-nearest-neighbors classifier.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/core/parallel"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// parallelThreshold is the batch size above which prediction fans out
// across CPU cores.
const parallelThreshold = 256

// KNeighborsClassifier votes among the k nearest training samples.
// Neighbors are ranked by distance, then by training order.
type KNeighborsClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nNeighbors int
	p          float64 // Minkowski power, 2 for euclidean
	weights    string  // "uniform" or "distance"

	// Model parameters
	fitX_      [][]float64
	fitY_      []int // index into classes_
	classes_   []int
	nFeatures_ int
}

// KNNOption is a functional option for KNeighborsClassifier
type KNNOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a classifier with scikit-learn defaults
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		p:          2,
		weights:    "uniform",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets k
func WithNNeighbors(k int) KNNOption {
	return func(knn *KNeighborsClassifier) {
		knn.nNeighbors = k
	}
}

// WithP sets the Minkowski power
func WithP(p float64) KNNOption {
	return func(knn *KNeighborsClassifier) {
		knn.p = p
	}
}

// WithWeights sets the vote weighting ("uniform" or "distance")
func WithWeights(w string) KNNOption {
	return func(knn *KNeighborsClassifier) {
		knn.weights = w
	}
}

// Fit stores the training set
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", knn.nNeighbors)
	}
	if knn.weights != "uniform" && knn.weights != "distance" {
		return errors.NewValidationError("weights", "must be \"uniform\" or \"distance\"", knn.weights)
	}
	nSamples, nFeatures, err := model.CheckXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors > nSamples {
		return errors.NewValueError("KNeighborsClassifier.Fit", "n_neighbors cannot exceed the number of samples")
	}
	labels, err := model.Labels("KNeighborsClassifier.Fit", y)
	if err != nil {
		return err
	}

	classes := model.UniqueClasses(labels)
	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	knn.fitX_ = make([][]float64, nSamples)
	knn.fitY_ = make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		knn.fitX_[i] = mat.Row(nil, i, X)
		knn.fitY_[i] = classIdx[labels[i]]
	}
	knn.classes_ = classes
	knn.nFeatures_ = nFeatures
	knn.state.MarkFitted(nFeatures, nSamples)
	return nil
}

type neighbor struct {
	index int
	dist  float64
}

func (knn *KNeighborsClassifier) kNearest(row []float64) []neighbor {
	all := make([]neighbor, len(knn.fitX_))
	for i, x := range knn.fitX_ {
		all[i] = neighbor{index: i, dist: floats.Distance(x, row, knn.p)}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].dist < all[b].dist
	})
	return all[:knn.nNeighbors]
}

func (knn *KNeighborsClassifier) vote(row []float64, out []float64) {
	for k := range out {
		out[k] = 0
	}
	neighbors := knn.kNearest(row)

	if knn.weights == "distance" {
		for _, nb := range neighbors {
			if nb.dist == 0 {
				// exact matches take all the weight
				for k := range out {
					out[k] = 0
				}
				for _, m := range neighbors {
					if m.dist == 0 {
						out[knn.fitY_[m.index]]++
					}
				}
				break
			}
			out[knn.fitY_[nb.index]] += 1 / nb.dist
		}
	} else {
		for _, nb := range neighbors {
			out[knn.fitY_[nb.index]]++
		}
	}
	floats.Scale(1/floats.Sum(out), out)
}

// PredictProba returns the share of neighbor votes per class
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("KNeighborsClassifier.PredictProba", X, knn.nFeatures_)
	if err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, len(knn.classes_), nil)
	parallel.ParallelizeWithThreshold(nSamples, parallelThreshold, func(start, end int) {
		row := make([]float64, knn.nFeatures_)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			knn.vote(row, probas.RawRowView(i))
		}
	})
	return probas, nil
}

// Predict returns the class with the most neighbor votes. Ties go to the
// smallest class label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}

	p := probas.(*mat.Dense)
	nSamples, _ := p.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(knn.classes_[floats.MaxIdx(p.RawRowView(i))]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := knn.Predict(X)
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
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.classes_...)
}

// GetParams returns the model hyperparameters
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"p":           knn.p,
		"weights":     knn.weights,
	}
}

// SetParams sets the model hyperparameters
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_neighbors":
			knn.nNeighbors = value.(int)
		case "p":
			knn.p = value.(float64)
		case "weights":
			knn.weights = value.(string)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

type knnState struct {
	model.ModelState
	NNeighbors int
	P          float64
	Weights    string
	FitX       [][]float64
	FitY       []int
	Classes    []int
}

// MarshalBinary encodes the fitted model with gob
func (knn *KNeighborsClassifier) MarshalBinary() ([]byte, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeState(knnState{
		ModelState: knn.state.Snapshot(),
		NNeighbors: knn.nNeighbors,
		P:          knn.p,
		Weights:    knn.weights,
		FitX:       knn.fitX_,
		FitY:       knn.fitY_,
		Classes:    knn.classes_,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary
func (knn *KNeighborsClassifier) UnmarshalBinary(data []byte) error {
	var s knnState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.FitX) != len(s.FitY) || s.NNeighbors < 1 || s.NNeighbors > len(s.FitX) {
		return errors.NewValueError("KNeighborsClassifier.UnmarshalBinary", "inconsistent training set")
	}
	for _, c := range s.FitY {
		if c < 0 || c >= len(s.Classes) {
			return errors.NewValueError("KNeighborsClassifier.UnmarshalBinary", "class index out of range")
		}
	}

	if knn.state == nil {
		knn.state = model.NewStateManager()
	}
	knn.nNeighbors, knn.p, knn.weights = s.NNeighbors, s.P, s.Weights
	knn.fitX_, knn.fitY_, knn.classes_ = s.FitX, s.FitY, s.Classes
	knn.nFeatures_ = s.NFeatures
	knn.state.Restore(s.ModelState)
	return nil
}
