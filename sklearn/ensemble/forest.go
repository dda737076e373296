// Package ensemble implements a random forest classifier.
package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/core/parallel"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/sklearn/tree"
)

// MaxFeaturesSqrt considers floor(sqrt(n_features)) features per split
const MaxFeaturesSqrt = -1

// RandomForestClassifier averages the class probabilities of bootstrapped
// decision trees, as scikit-learn's RandomForestClassifier does.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // MaxFeaturesSqrt, 0 for all, or an explicit count
	bootstrap       bool
	randomState     int64
	nJobs           int

	// Model parameters
	trees_     []*tree.DecisionTreeClassifier
	classes_   []int
	nFeatures_ int
}

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with scikit-learn defaults
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesSqrt,
		bootstrap:       true,
		randomState:     0,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithCriterion sets the split criterion of every tree
func WithCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of every tree
func WithMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithMaxFeatures sets the features considered per split
func WithMaxFeatures(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = n
	}
}

// WithBootstrap toggles bootstrap sampling
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = b
	}
}

// WithRandomState sets the seed. Tree i uses a stream derived from the seed
// and i, so results do not depend on NJobs.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

func (rf *RandomForestClassifier) resolveMaxFeatures(nFeatures int) int {
	switch {
	case rf.maxFeatures == MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(nFeatures))))
	case rf.maxFeatures <= 0 || rf.maxFeatures > nFeatures:
		return nFeatures
	default:
		return rf.maxFeatures
	}
}

// Fit trains every tree on its own bootstrap sample
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	nSamples, nFeatures, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	labels, err := model.Labels("RandomForestClassifier.Fit", y)
	if err != nil {
		return err
	}
	maxFeatures := rf.resolveMaxFeatures(nFeatures)

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	treeErrs := make([]error, rf.nEstimators)
	parallel.ParallelizeN(rf.nEstimators, rf.nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(rf.randomState+int64(i)),
			)
			var weights []float64
			if rf.bootstrap {
				weights = bootstrapWeights(nSamples, uint64(rf.randomState), uint64(i))
			}
			treeErrs[i] = dt.FitWeighted(X, y, weights)
			trees[i] = dt
		}
	})
	for i, e := range treeErrs {
		if e != nil {
			return errors.Wrapf(e, "RandomForestClassifier.Fit: tree %d", i)
		}
	}

	rf.trees_ = trees
	rf.classes_ = model.UniqueClasses(labels)
	rf.nFeatures_ = nFeatures
	rf.state.MarkFitted(nFeatures, nSamples)
	return nil
}

// bootstrapWeights draws n indices with replacement and returns how often
// each sample was drawn.
func bootstrapWeights(n int, seed, stream uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, stream))
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[r.IntN(n)]++
	}
	return weights
}

// PredictProba averages the class probabilities of the trees
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("RandomForestClassifier.PredictProba", X, rf.nFeatures_)
	if err != nil {
		return nil, err
	}

	sum := mat.NewDense(nSamples, len(rf.classes_), nil)
	for _, dt := range rf.trees_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.trees_)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	p := probas.(*mat.Dense)
	nSamples, _ := p.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(rf.classes_[floats.MaxIdx(p.RawRowView(i))]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// NEstimators returns the number of fitted trees
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.trees_)
}

// GetFeatureImportances returns the mean of the trees' feature importances
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, rf.nFeatures_)
	if len(rf.trees_) == 0 {
		return out
	}
	for _, dt := range rf.trees_ {
		imp := dt.GetFeatureImportances()
		if len(imp) == len(out) {
			floats.Add(out, imp)
		}
	}
	floats.Scale(1/float64(len(rf.trees_)), out)
	return out
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			rf.nEstimators = value.(int)
		case "criterion":
			rf.criterion = value.(string)
		case "max_depth":
			rf.maxDepth = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf = value.(int)
		case "max_features":
			rf.maxFeatures = value.(int)
		case "bootstrap":
			rf.bootstrap = value.(bool)
		case "random_state":
			rf.randomState = value.(int64)
		case "n_jobs":
			rf.nJobs = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

type forestState struct {
	model.ModelState
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	Classes         []int
	Trees           []tree.TreeState
}

// MarshalBinary encodes the fitted forest with gob
func (rf *RandomForestClassifier) MarshalBinary() ([]byte, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "MarshalBinary"); err != nil {
		return nil, err
	}
	st := forestState{
		ModelState:      rf.state.Snapshot(),
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		RandomState:     rf.randomState,
		Classes:         rf.classes_,
		Trees:           make([]tree.TreeState, len(rf.trees_)),
	}
	for i, dt := range rf.trees_ {
		st.Trees[i] = dt.State()
	}
	return model.EncodeState(st)
}

// UnmarshalBinary restores a forest written by MarshalBinary
func (rf *RandomForestClassifier) UnmarshalBinary(data []byte) error {
	var st forestState
	if err := model.DecodeState(data, &st); err != nil {
		return err
	}
	if len(st.Trees) == 0 {
		return errors.NewValueError("RandomForestClassifier.UnmarshalBinary", "forest has no trees")
	}
	trees := make([]*tree.DecisionTreeClassifier, len(st.Trees))
	for i, ts := range st.Trees {
		dt, err := tree.FromState(ts)
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		if len(dt.Classes()) != len(st.Classes) {
			return errors.NewValueError("RandomForestClassifier.UnmarshalBinary", "tree classes do not match forest")
		}
		trees[i] = dt
	}

	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	rf.nEstimators = st.NEstimators
	rf.criterion = st.Criterion
	rf.maxDepth = st.MaxDepth
	rf.minSamplesSplit = st.MinSamplesSplit
	rf.minSamplesLeaf = st.MinSamplesLeaf
	rf.maxFeatures = st.MaxFeatures
	rf.bootstrap = st.Bootstrap
	rf.randomState = st.RandomState
	rf.classes_ = st.Classes
	rf.trees_ = trees
	rf.nFeatures_ = st.NFeatures
	rf.state.Restore(st.ModelState)
	if rf.nJobs == 0 {
		rf.nJobs = 1
	}
	return nil
}
