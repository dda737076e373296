package numbers

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, FizzBuzz},
		{1, None},
		{3, Fizz},
		{5, Buzz},
		{9, Fizz},
		{10, Buzz},
		{15, FizzBuzz},
		{30, FizzBuzz},
		{-3, Fizz},
		{-15, FizzBuzz},
		{-7, None},
		{1001, None},
	}

	for _, tt := range tests {
		if got := Label(tt.n); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestLabelMatchesEncoding(t *testing.T) {
	byFeatures := map[[2]float64]string{
		{1, 1}: FizzBuzz,
		{1, 0}: Fizz,
		{0, 1}: Buzz,
		{0, 0}: None,
	}
	for n := -100; n <= 100; n++ {
		f := Encode(n)
		if got := byFeatures[[2]float64{f[0], f[1]}]; got != Label(n) {
			t.Fatalf("Encode(%d) = %v maps to %q, Label gives %q", n, f, got, Label(n))
		}
	}
}

func TestRangeValues(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		want []int
	}{
		{"inclusive end", Range{1, 5, 1}, []int{1, 2, 3, 4, 5}},
		{"step overshoots end", Range{1, 6, 2}, []int{1, 3, 5}},
		{"single value", Range{7, 7, 1}, []int{7}},
		{"descending", Range{5, 1, -2}, []int{5, 3, 1}},
		{"ends at MaxInt", Range{math.MaxInt - 2, math.MaxInt, 2}, []int{math.MaxInt - 2, math.MaxInt}},
		{"stops short of MaxInt", Range{math.MaxInt - 2, math.MaxInt, 5}, []int{math.MaxInt - 2}},
		{"ends at MinInt", Range{math.MinInt + 3, math.MinInt, -2}, []int{math.MinInt + 3, math.MinInt + 1}},
		{"MinInt step", Range{0, math.MinInt, math.MinInt}, []int{0, math.MinInt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.Values()
			if len(got) != len(tt.want) {
				t.Fatalf("Values() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Values() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRangeValidate(t *testing.T) {
	invalid := []Range{
		{1, 10, 0},
		{10, 1, 1},
		{1, 10, -1},
	}
	for _, r := range invalid {
		var valErr *errors.ValidationError
		if err := r.Validate(); !errors.As(err, &valErr) {
			t.Errorf("Validate(%v) = %v, want ValidationError", r, err)
		}
		if r.Values() != nil {
			t.Errorf("Values(%v) should be empty for an invalid range", r)
		}
	}
}

func TestLoad(t *testing.T) {
	ds, err := Load(Range{1000, 2000, 1}, Range{1, 100, 1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(ds.TrainFeatures) != 1001 || len(ds.TrainLabels) != 1001 {
		t.Errorf("train split has %d/%d rows, want 1001", len(ds.TrainFeatures), len(ds.TrainLabels))
	}
	if len(ds.TestFeatures) != 100 || len(ds.TestLabels) != 100 {
		t.Errorf("test split has %d/%d rows, want 100", len(ds.TestFeatures), len(ds.TestLabels))
	}
	if ds.NFeatures() != 2 {
		t.Errorf("NFeatures() = %d, want 2", ds.NFeatures())
	}
	if err := ds.Validate(); err != nil {
		t.Errorf("generated dataset should be valid: %v", err)
	}

	for i, v := range ds.TestValues {
		if ds.TestLabels[i] != Label(v) {
			t.Fatalf("test label for %d = %q, want %q", v, ds.TestLabels[i], Label(v))
		}
	}
	if ds.TrainValues[0] != 1000 || ds.TrainLabels[0] != Buzz {
		t.Errorf("first training sample = %d/%q", ds.TrainValues[0], ds.TrainLabels[0])
	}
}

func TestLoadInvalidRange(t *testing.T) {
	if _, err := Load(Range{10, 1, 1}, Range{1, 10, 1}); err == nil {
		t.Error("expected error for invalid train range")
	}
	if _, err := Load(Range{1, 10, 1}, Range{1, 10, -1}); err == nil {
		t.Error("expected error for invalid test range")
	}
}

func TestLoadWith(t *testing.T) {
	identity := func(n int) []float64 { return []float64{float64(n)} }

	ds, err := LoadWith(Range{1, 3, 1}, Range{4, 4, 1}, identity)
	if err != nil {
		t.Fatal(err)
	}
	if ds.TrainFeatures[2][0] != 3 || ds.TestFeatures[0][0] != 4 {
		t.Errorf("encoder not applied: %v %v", ds.TrainFeatures, ds.TestFeatures)
	}
}

func TestNewDataset(t *testing.T) {
	_, err := NewDataset([][]float64{{1, 0}, {0, 1}}, []string{Fizz}, nil, nil)
	var shapeErr *errors.DatasetShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected DatasetShapeError, got %v", err)
	}
	if shapeErr.TrainFeatures != 2 || shapeErr.TrainLabels != 1 {
		t.Errorf("unexpected shape in error: %+v", shapeErr)
	}

	if _, err := NewDataset([][]float64{{1, 0}, {0}}, []string{Fizz, Buzz}, nil, nil); !errors.As(err, &shapeErr) {
		t.Errorf("expected DatasetShapeError for ragged rows, got %v", err)
	}

	ds, err := NewDataset([][]float64{{1, 0}}, []string{Fizz}, [][]float64{}, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.NFeatures() != 2 {
		t.Errorf("NFeatures() = %d, want 2", ds.NFeatures())
	}
}
