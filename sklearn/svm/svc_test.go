package svm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// remainderData returns the (n%3==0, n%5==0) features for 1..n and the
// pattern class 0=number, 1=Fizz, 2=Buzz, 3=FizzBuzz
func remainderData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 1; i <= n; i++ {
		f3, f5 := 0.0, 0.0
		if i%3 == 0 {
			f3 = 1
		}
		if i%5 == 0 {
			f5 = 1
		}
		X.Set(i-1, 0, f3)
		X.Set(i-1, 1, f5)
		y.Set(i-1, 0, f3+2*f5)
	}
	return X, y
}

func TestSVC_BinarySeparable(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		0.5, 0.5,
		3, 3,
		3, 4,
		4, 3,
		3.5, 3.5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	for _, kernel := range []string{"rbf", "linear"} {
		t.Run(kernel, func(t *testing.T) {
			svc := NewSVC(WithKernel(kernel))
			if err := svc.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit: %v", err)
			}
			if score := svc.Score(X, y); score != 1.0 {
				t.Errorf("Score() = %v, want 1.0", score)
			}

			dec, err := svc.DecisionFunction(mat.NewDense(2, 2, []float64{0, 0, 4, 4}))
			if err != nil {
				t.Fatal(err)
			}
			// 正の決定値は classes_[0] への投票
			if dec.At(0, 0) <= 0 || dec.At(1, 0) >= 0 {
				t.Errorf("unexpected decision values: %v", mat.Formatted(dec))
			}
		})
	}
}

func TestSVC_RemainderFeatures(t *testing.T) {
	X, y := remainderData(60)

	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if score := svc.Score(X, y); score != 1.0 {
		t.Errorf("Score() = %v, want 1.0", score)
	}

	classes := svc.Classes()
	if len(classes) != 4 {
		t.Fatalf("expected 4 classes, got %v", classes)
	}

	// 4クラスの one-vs-one は 6 個の二値分類器
	dec, err := svc.DecisionFunction(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, cols := dec.Dims(); cols != 6 {
		t.Errorf("expected 6 decision columns, got %d", cols)
	}
	for i, n := range svc.NSupport() {
		if n == 0 {
			t.Errorf("machine %d has no support vectors", i)
		}
	}
}

func TestSVC_Gamma(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 2, 2, 0, 2, 2})
	y := mat.NewDense(4, 1, []float64{0, 1, 1, 0})

	auto := NewSVC(WithGamma(GammaAuto))
	if err := auto.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if auto.Gamma() != 0.5 {
		t.Errorf("auto gamma = %v, want 0.5", auto.Gamma())
	}

	// 全要素の分散は 1
	scale := NewSVC()
	if err := scale.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(scale.Gamma()-0.5) > 1e-12 {
		t.Errorf("scale gamma = %v, want 0.5", scale.Gamma())
	}

	fixed := NewSVC(WithGammaValue(3))
	if err := fixed.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if fixed.Gamma() != 3 {
		t.Errorf("explicit gamma = %v, want 3", fixed.Gamma())
	}
	if fixed.GetParams()["gamma"] != 3.0 {
		t.Errorf("GetParams() gamma = %v", fixed.GetParams()["gamma"])
	}

	// XOR は RBF カーネルなら分離できる
	if score := fixed.Score(X, y); score != 1.0 {
		t.Errorf("XOR Score() = %v, want 1.0", score)
	}
}

func TestSVC_InvalidInput(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	var notFitted *errors.NotFittedError
	if _, err := NewSVC().Predict(X); !errors.As(err, &notFitted) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}

	if err := NewSVC().Fit(X, mat.NewDense(3, 1, []float64{1, 1, 1})); err == nil {
		t.Error("Expected error for a single class")
	}

	var valErr *errors.ValidationError
	if err := NewSVC(WithKernel("poly")).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 1})); !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError for kernel, got %v", err)
	}
	if err := NewSVC(WithC(0)).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 1})); !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError for C, got %v", err)
	}

	svc := NewSVC()
	if err := svc.SetParams(map[string]interface{}{"degree": 3}); err == nil {
		t.Error("Expected error for unknown parameter")
	}
	if err := svc.SetParams(map[string]interface{}{"gamma": 1}); err == nil {
		t.Error("Expected error for integer gamma")
	}
}

func TestSVC_MarshalBinary(t *testing.T) {
	X, y := remainderData(30)

	svc := NewSVC(WithC(10))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := svc.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	restored := &SVC{}
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if restored.GetParams()["C"] != 10.0 {
		t.Errorf("restored C = %v", restored.GetParams()["C"])
	}

	want, _ := svc.DecisionFunction(X)
	got, err := restored.DecisionFunction(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored decision function differs")
	}
}
