package errors

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "numclass: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "numclass: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("KNeighborsClassifier.Predict", 2, 3, 1)

	want := "numclass: KNeighborsClassifier.Predict: dimension mismatch on axis 1 (features). Expected 2, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("GaussianNB", "Predict")

	want := "numclass: GaussianNB: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestDatasetShapeError(t *testing.T) {
	err := NewDatasetShapeError(10, 9, 3, 3, "")

	want := "numclass: dataset lists must have equal dimensions: train 10/9, test 3/3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var shapeErr *DatasetShapeError
	if !As(err, &shapeErr) {
		t.Fatal("Error should be castable to *DatasetShapeError")
	}
	if shapeErr.TrainLabels != 9 {
		t.Errorf("TrainLabels = %d, want 9", shapeErr.TrainLabels)
	}

	withReason := NewDatasetShapeError(1, 1, 0, 0, "need at least 2 training samples")
	if !strings.HasSuffix(withReason.Error(), ": need at least 2 training samples") {
		t.Errorf("reason not appended: %v", withReason)
	}
}

func TestTrainingError(t *testing.T) {
	cause := fmt.Errorf("singular matrix")

	tests := []struct {
		name string
		fold int
		want string
	}{
		{"fold", 3, "numclass: training svc failed on fold 3: singular matrix"},
		{"full training set", -1, "numclass: training svc failed: singular matrix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTrainingError("svc", tt.fold, cause)
			if err.Error() != tt.want {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.want)
			}
			// 原因エラーまで辿れること
			if !Is(err, cause) {
				t.Error("TrainingError should unwrap to its cause")
			}
		})
	}
}

func TestUnknownModelError(t *testing.T) {
	err := NewUnknownModelError("unknown_model", []string{"knn", "svc"})

	if !strings.Contains(err.Error(), "not recognized") {
		t.Errorf("Error() = %v, want it to contain 'not recognized'", err.Error())
	}

	var unknown *UnknownModelError
	if !As(err, &unknown) {
		t.Fatal("Error should be castable to *UnknownModelError")
	}
	if unknown.Name != "unknown_model" {
		t.Errorf("Name = %q", unknown.Name)
	}
}

func TestPersistenceError(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := NewPersistenceError("save", "/models/knn.gob", cause)

	want := "numclass: save /models/knn.gob: permission denied"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	if !Is(err, cause) {
		t.Error("PersistenceError should unwrap to its cause")
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("lbfgs", 100, "gradient norm above tolerance")

	want := "lbfgs failed to converge after 100 iterations: gradient norm above tolerance"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	var convWarn *ConvergenceWarning
	if !As(warn, &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("smo", 10, ""))

	if len(got) != 1 {
		t.Fatalf("expected warning to reach zerolog func, got %d", len(got))
	}

	// zerolog 未設定ならフォールバックのハンドラに届く
	SetZerologWarnFunc(nil)
	var fallback []error
	SetWarningHandler(func(w error) { fallback = append(fallback, w) })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("lbfgs", 100, ""))
	if len(fallback) != 1 || len(got) != 1 {
		t.Fatalf("fallback=%d zerolog=%d, want 1 and 1", len(fallback), len(got))
	}
	if !strings.Contains(fallback[0].Error(), "Consider increasing max_iter") {
		t.Errorf("default message = %q", fallback[0].Error())
	}
}

// zerologへの構造化出力の確認
func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	trainingErr := &TrainingError{Kind: "knn", Fold: 2, Err: fmt.Errorf("boom")}
	logger.Error().EmbedObject(trainingErr).Msg("build failed")

	out := buf.String()
	for _, want := range []string{`"kind":"knn"`, `"fold":2`, `"type":"TrainingError"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrNoModels, "in Classifier.Predict")

	if !Is(wrapped, ErrNoModels) {
		t.Error("Expected Is(wrapped, ErrNoModels) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Classifier.Predict") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Fit", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Fit: expected 10, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	// スタックトレースの確認（詳細表示）
	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("lbfgs", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := CheckNumericalStability("lbfgs", []float64{1, math.NaN()}, 7)
	var instability *NumericalInstabilityError
	if !As(err, &instability) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if instability.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", instability.Iteration)
	}
}
