package preprocessing

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

func TestLabelEncoderFitTransform(t *testing.T) {
	enc := NewLabelEncoder[string]()

	y, err := enc.FitTransform([]string{"Fizz", "1", "Buzz", "Fizz", "FizzBuzz"})
	if err != nil {
		t.Fatal(err)
	}

	wantClasses := []string{"1", "Buzz", "Fizz", "FizzBuzz"}
	if enc.NClasses() != len(wantClasses) {
		t.Fatalf("NClasses() = %d, want %d", enc.NClasses(), len(wantClasses))
	}
	for i, c := range wantClasses {
		if enc.Classes[i] != c {
			t.Errorf("Classes[%d] = %q, want %q", i, enc.Classes[i], c)
		}
	}

	want := []float64{2, 0, 1, 2, 3}
	for i, w := range want {
		if y.At(i, 0) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.At(i, 0), w)
		}
	}
}

func TestLabelEncoderInverseTransform(t *testing.T) {
	enc := NewLabelEncoder[string]()
	if err := enc.Fit([]string{"Fizz", "Buzz"}); err != nil {
		t.Fatal(err)
	}

	labels, err := enc.InverseTransform(mat.NewDense(3, 1, []float64{1, 0, 1}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Fizz", "Buzz", "Fizz"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}

	if _, err := enc.InverseTransform(mat.NewDense(1, 1, []float64{5})); err == nil {
		t.Error("expected error for out-of-range class index")
	}
}

func TestLabelEncoderErrors(t *testing.T) {
	enc := NewLabelEncoder[int]()

	_, err := enc.Transform([]int{1})
	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("Transform before Fit = %v, want NotFittedError", err)
	}

	if err := enc.Fit(nil); err == nil {
		t.Error("expected error for empty labels")
	}

	if err := enc.Fit([]int{3, 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Transform([]int{2}); err == nil {
		t.Error("expected error for unseen label")
	}
}

func TestFromClasses(t *testing.T) {
	enc := FromClasses([]string{"Buzz", "Fizz"})
	if !enc.IsFitted() {
		t.Fatal("FromClasses should return a fitted encoder")
	}
	y, err := enc.Transform([]string{"Fizz"})
	if err != nil {
		t.Fatal(err)
	}
	if y.At(0, 0) != 1 {
		t.Errorf("Transform(Fizz) = %v, want 1", y.At(0, 0))
	}
}
