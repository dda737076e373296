// Package model_selection provides cross-validation splitting.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// Split generates train/test indices for n samples. The first n % NSplits
// folds hold one extra test sample. Train indices are sorted.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot exceed the number of samples", kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[current:current+testSize])

		isTest := make(map[int]bool, testSize)
		for _, idx := range testIndices {
			isTest[idx] = true
		}
		trainIndices := make([]int, 0, n-testSize)
		for j := 0; j < n; j++ {
			if !isTest[j] {
				trainIndices = append(trainIndices, j)
			}
		}

		folds[i] = Fold{TrainIndices: trainIndices, TestIndices: testIndices}
		current += testSize
	}
	return folds, nil
}

// SubsetRows returns the rows of X at indices, in index order.
func SubsetRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// Subset returns the elements of s at indices, in index order.
func Subset[T any](s []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = s[idx]
	}
	return out
}

// Scores summarizes per-fold test scores.
type Scores []float64

// Mean returns the mean fold score, or 0 for no folds.
func (s Scores) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	return stat.Mean(s, nil)
}

// Std returns the sample standard deviation of the fold scores.
func (s Scores) Std() float64 {
	if len(s) <= 1 {
		return 0
	}
	_, std := stat.MeanStdDev(s, nil)
	return std
}

// Sorted returns a sorted copy of the scores.
func (s Scores) Sorted() Scores {
	out := make(Scores, len(s))
	copy(out, s)
	sort.Float64s(out)
	return out
}
