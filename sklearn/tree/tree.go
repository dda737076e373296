// Package tree implements a CART decision tree classifier.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

const leaf = -1

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // weighted class counts
	Impurity  float64
	NSamples  int
	Weight    float64
}

// DecisionTreeClassifier is a CART classifier compatible with
// scikit-learn's DecisionTreeClassifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     int64

	// Model parameters
	nodes_              []Node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new tree with scikit-learn defaults
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the split quality measure
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth, 0 for unlimited
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum samples required to split a node
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum samples required in a leaf
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features considered per split
func WithMaxFeatures(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState fixes the feature visiting order
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// Fit builds the tree from the training set
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored. A nil weight slice means unit weights.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be \"gini\" or \"entropy\"", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}

	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}
	labels, err := model.Labels("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}

	classes := model.UniqueClasses(labels)
	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	b := &builder{
		dt:        dt,
		X:         X,
		targets:   make([]int, nSamples),
		weights:   make([]float64, nSamples),
		nClasses:  len(classes),
		nFeatures: nFeatures,
	}
	samples := make([]int, 0, nSamples)
	for i, l := range labels {
		b.targets[i] = classIdx[l]
		b.weights[i] = 1
		if sampleWeight != nil {
			b.weights[i] = sampleWeight[i]
		}
		if b.weights[i] > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}
	if dt.randomState >= 0 {
		b.rng = rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)))
	}
	b.importances = make([]float64, nFeatures)

	b.build(samples, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		floats.Scale(1/total, b.importances)
	}

	dt.nodes_ = b.nodes
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = b.importances
	dt.state.MarkFitted(nFeatures, nSamples)
	return nil
}

type builder struct {
	dt          *DecisionTreeClassifier
	X           mat.Matrix
	targets     []int
	weights     []float64
	nClasses    int
	nFeatures   int
	rng         *rand.Rand
	nodes       []Node
	importances []float64
	rootWeight  float64
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
	left, right []int
}

func (b *builder) counts(samples []int) ([]float64, float64) {
	value := make([]float64, b.nClasses)
	w := 0.0
	for _, s := range samples {
		value[b.targets[s]] += b.weights[s]
		w += b.weights[s]
	}
	return value, w
}

func (b *builder) impurity(value []float64, w float64) float64 {
	if w <= 0 {
		return 0
	}
	imp := 0.0
	if b.dt.criterion == "entropy" {
		for _, c := range value {
			if c > 0 {
				p := c / w
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	for _, c := range value {
		p := c / w
		imp += p * p
	}
	return 1 - imp
}

// build appends the subtree for samples and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	value, w := b.counts(samples)
	if depth == 0 {
		b.rootWeight = w
	}
	imp := b.impurity(value, w)

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  leaf,
		Left:     leaf,
		Right:    leaf,
		Value:    value,
		Impurity: imp,
		NSamples: len(samples),
		Weight:   w,
	})

	dt := b.dt
	n := len(samples)
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		imp <= 1e-7 {
		return id
	}

	best, ok := b.bestSplit(samples, imp, w)
	if !ok {
		return id
	}

	lv, lw := b.counts(best.left)
	rv, rw := b.counts(best.right)
	decrease := w*imp - lw*b.impurity(lv, lw) - rw*b.impurity(rv, rw)
	b.importances[best.feature] += decrease / b.rootWeight

	left := b.build(best.left, depth+1)
	right := b.build(best.right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = left
	b.nodes[id].Right = right
	return id
}

// featureOrder returns the order in which features are visited. Without a
// random state the natural order is used.
func (b *builder) featureOrder() []int {
	order := make([]int, b.nFeatures)
	for i := range order {
		order[i] = i
	}
	if b.rng != nil {
		b.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

// bestSplit visits features in random order and evaluates up to maxFeatures
// of them that are not constant in the node. The first candidate with the
// highest improvement wins.
func (b *builder) bestSplit(samples []int, parentImp, parentW float64) (split, bool) {
	maxFeatures := b.dt.maxFeatures
	if maxFeatures <= 0 || maxFeatures > b.nFeatures {
		maxFeatures = b.nFeatures
	}

	var best split
	found := false
	visited := 0
	sorted := make([]int, len(samples))

	for _, f := range b.featureOrder() {
		if visited >= maxFeatures {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], f) < b.X.At(sorted[j], f)
		})
		lo, hi := b.X.At(sorted[0], f), b.X.At(sorted[len(sorted)-1], f)
		if hi <= lo {
			continue
		}
		visited++

		leftVal := make([]float64, b.nClasses)
		leftW := 0.0
		rightVal, _ := b.counts(sorted)
		rightW := parentW

		for p := 0; p < len(sorted)-1; p++ {
			s := sorted[p]
			leftVal[b.targets[s]] += b.weights[s]
			rightVal[b.targets[s]] -= b.weights[s]
			leftW += b.weights[s]
			rightW -= b.weights[s]

			cur, next := b.X.At(s, f), b.X.At(sorted[p+1], f)
			if next <= cur {
				continue
			}
			nLeft := p + 1
			if nLeft < b.dt.minSamplesLeaf || len(sorted)-nLeft < b.dt.minSamplesLeaf {
				continue
			}

			improvement := parentW*parentImp -
				leftW*b.impurity(leftVal, leftW) -
				rightW*b.impurity(rightVal, rightW)
			if !found || improvement > best.improvement+1e-12 {
				threshold := cur/2 + next/2
				if threshold >= next {
					threshold = cur
				}
				best = split{
					feature:     f,
					threshold:   threshold,
					improvement: improvement,
					left:        append([]int(nil), sorted[:nLeft]...),
					right:       append([]int(nil), sorted[nLeft:]...),
				}
				found = true
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) leafFor(row []float64) *Node {
	node := &dt.nodes_[0]
	for node.Feature != leaf {
		if row[node.Feature] <= node.Threshold {
			node = &dt.nodes_[node.Left]
		} else {
			node = &dt.nodes_[node.Right]
		}
	}
	return node
}

// PredictProba returns the class distribution of the leaf each sample falls in
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("DecisionTreeClassifier.PredictProba", X, dt.nFeatures_)
	if err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		node := dt.leafFor(row)
		for k, c := range node.Value {
			probas.Set(i, k, c/node.Weight)
		}
	}
	return probas, nil
}

// Predict returns the majority class of the leaf each sample falls in
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	probas, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}

	p := probas.(*mat.Dense)
	nSamples, _ := p.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(dt.classes_[floats.MaxIdx(p.RawRowView(i))]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized impurity decrease per feature
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	if len(dt.nodes_) == 0 {
		return 0
	}
	var depth func(id int) int
	depth = func(id int) int {
		n := dt.nodes_[id]
		if n.Feature == leaf {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

// GetNLeaves returns the number of leaves of the fitted tree
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	count := 0
	for _, n := range dt.nodes_ {
		if n.Feature == leaf {
			count++
		}
	}
	return count
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			dt.criterion = value.(string)
		case "max_depth":
			dt.maxDepth = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf = value.(int)
		case "max_features":
			dt.maxFeatures = value.(int)
		case "random_state":
			dt.randomState = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

// TreeState is the gob form of a fitted tree. RandomForest embeds it.
type TreeState struct {
	model.ModelState
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64
	Nodes           []Node
	Classes         []int
	Importances     []float64
}

// State returns the gob form of the fitted tree
func (dt *DecisionTreeClassifier) State() TreeState {
	return TreeState{
		ModelState:      dt.state.Snapshot(),
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,
		Nodes:           dt.nodes_,
		Classes:         dt.classes_,
		Importances:     dt.featureImportances_,
	}
}

// FromState rebuilds a fitted tree from its gob form
func FromState(s TreeState) (*DecisionTreeClassifier, error) {
	if len(s.Nodes) == 0 {
		return nil, errors.NewValueError("DecisionTreeClassifier.FromState", "tree has no nodes")
	}
	for _, n := range s.Nodes {
		if len(n.Value) != len(s.Classes) {
			return nil, errors.NewValueError("DecisionTreeClassifier.FromState", "node value does not match classes")
		}
		if n.Feature != leaf && (n.Left >= len(s.Nodes) || n.Right >= len(s.Nodes) || n.Feature >= s.NFeatures) {
			return nil, errors.NewValueError("DecisionTreeClassifier.FromState", "node references out of range")
		}
	}

	dt := NewDecisionTreeClassifier()
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.minSamplesSplit = s.MinSamplesSplit
	dt.minSamplesLeaf = s.MinSamplesLeaf
	dt.maxFeatures = s.MaxFeatures
	dt.randomState = s.RandomState
	dt.nodes_ = s.Nodes
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.nFeatures_ = s.NFeatures
	dt.featureImportances_ = s.Importances
	dt.state.Restore(s.ModelState)
	return dt, nil
}

// MarshalBinary encodes the fitted tree with gob
func (dt *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeState(dt.State())
}

// UnmarshalBinary restores a tree written by MarshalBinary
func (dt *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s TreeState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	restored, err := FromState(s)
	if err != nil {
		return err
	}
	*dt = *restored
	return nil
}
