// Package numbers generates the FizzBuzz training and test sets.
//
// Each integer n is labelled by the rule
//
//	n % 15 == 0 -> "FizzBuzz"
//	n % 3 == 0  -> "Fizz"
//	n % 5 == 0  -> "Buzz"
//	otherwise   -> "None"
//
// and encoded as the two indicator features [n%3 == 0, n%5 == 0].
package numbers

import (
	"fmt"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// Labels
const (
	FizzBuzz = "FizzBuzz"
	Fizz     = "Fizz"
	Buzz     = "Buzz"
	None     = "None"
)

// Encoder maps a raw input to a feature vector.
type Encoder[T any] func(T) []float64

// Label classifies n by divisibility by 3 and 5.
func Label(n int) string {
	switch {
	case n%15 == 0:
		return FizzBuzz
	case n%3 == 0:
		return Fizz
	case n%5 == 0:
		return Buzz
	default:
		return None
	}
}

// Encode returns the remainder indicator features of n.
func Encode(n int) []float64 {
	f := []float64{0, 0}
	if n%3 == 0 {
		f[0] = 1
	}
	if n%5 == 0 {
		f[1] = 1
	}
	return f
}

// Range is an integer range that includes End when the steps land on it.
type Range struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	Step  int `yaml:"step"`
}

// Validate reports an empty step or a step pointing away from End.
func (r Range) Validate() error {
	if r.Step == 0 {
		return errors.NewValidationError("step", "step must not be zero", r.Step)
	}
	if (r.Start > r.End && r.Step > 0) || (r.Start < r.End && r.Step < 0) {
		return errors.NewValidationError("range",
			"start index cannot be greater than end index with a positive step or vice versa",
			fmt.Sprintf("%d..%d/%d", r.Start, r.End, r.Step))
	}
	return nil
}

// Values lists the integers of the range.
func (r Range) Values() []int {
	if r.Validate() != nil {
		return nil
	}
	// 距離は uint で比べ、End が int の端にあっても v += Step が溢れないようにする
	step := uint(r.Step)
	if r.Step < 0 {
		step = -step
	}
	var out []int
	for v := r.Start; ; v += r.Step {
		out = append(out, v)
		remaining := uint(r.End) - uint(v)
		if r.Step < 0 {
			remaining = uint(v) - uint(r.End)
		}
		if remaining < step {
			return out
		}
	}
}

// Dataset holds the train and test splits.
type Dataset struct {
	TrainValues   []int
	TrainFeatures [][]float64
	TrainLabels   []string
	TestValues    []int
	TestFeatures  [][]float64
	TestLabels    []string
}

// NewDataset assembles a dataset from precomputed splits and checks that
// features and labels line up.
func NewDataset(trainFeatures [][]float64, trainLabels []string, testFeatures [][]float64, testLabels []string) (*Dataset, error) {
	ds := &Dataset{
		TrainFeatures: trainFeatures,
		TrainLabels:   trainLabels,
		TestFeatures:  testFeatures,
		TestLabels:    testLabels,
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks the split lengths and that every feature row has the same width.
func (ds *Dataset) Validate() error {
	if len(ds.TrainFeatures) != len(ds.TrainLabels) || len(ds.TestFeatures) != len(ds.TestLabels) {
		return errors.NewDatasetShapeError(len(ds.TrainFeatures), len(ds.TrainLabels),
			len(ds.TestFeatures), len(ds.TestLabels), "")
	}

	width := -1
	for _, rows := range [][][]float64{ds.TrainFeatures, ds.TestFeatures} {
		for _, row := range rows {
			if width < 0 {
				width = len(row)
			}
			if len(row) != width || width == 0 {
				return errors.NewDatasetShapeError(len(ds.TrainFeatures), len(ds.TrainLabels),
					len(ds.TestFeatures), len(ds.TestLabels), "feature rows must share one non-zero width")
			}
		}
	}
	return nil
}

// NFeatures returns the feature width, or 0 for an empty dataset.
func (ds *Dataset) NFeatures() int {
	if len(ds.TrainFeatures) > 0 {
		return len(ds.TrainFeatures[0])
	}
	if len(ds.TestFeatures) > 0 {
		return len(ds.TestFeatures[0])
	}
	return 0
}

// Load labels and encodes both ranges with Encode.
func Load(train, test Range) (*Dataset, error) {
	return LoadWith(train, test, Encode)
}

// LoadWith labels both ranges and encodes them with encode.
func LoadWith(train, test Range, encode Encoder[int]) (*Dataset, error) {
	if err := train.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid train data range")
	}
	if err := test.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid test data range")
	}

	ds := &Dataset{}
	ds.TrainValues, ds.TrainFeatures, ds.TrainLabels = generate(train.Values(), encode)
	ds.TestValues, ds.TestFeatures, ds.TestLabels = generate(test.Values(), encode)
	return ds, nil
}

func generate(values []int, encode Encoder[int]) ([]int, [][]float64, []string) {
	features := make([][]float64, len(values))
	labels := make([]string, len(values))
	for i, v := range values {
		features[i] = encode(v)
		labels[i] = Label(v)
	}
	return values, features, labels
}
