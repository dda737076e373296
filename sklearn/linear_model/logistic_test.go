package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// remainderData は (n%3==0, n%5==0) を特徴量に、f3+2*f5 をクラスに持つデータを返す
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

func TestLogisticRegression_Fit(t *testing.T) {
	remX, remY := remainderData(300)

	tests := []struct {
		name     string
		opts     []LogisticRegressionOption
		X, y     *mat.Dense
		nClasses int
		minScore float64
		probe    *mat.Dense
		want     []float64
	}{
		{
			name: "separable clusters",
			opts: []LogisticRegressionOption{WithLRMaxIter(1000), WithLRTol(1e-4)},
			X: mat.NewDense(6, 2, []float64{
				0.5, 0.5, 1.0, 1.5, 1.5, 1.0,
				3.0, 2.5, 2.5, 3.0, 3.5, 3.5,
			}),
			y:        mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1}),
			nClasses: 2,
			minScore: 1.0,
			probe:    mat.NewDense(2, 2, []float64{1, 1, 3, 3}),
			want:     []float64{0, 1},
		},
		{
			name: "majority of three bits",
			opts: []LogisticRegressionOption{WithLRMaxIter(1000), WithLRC(10)},
			X: mat.NewDense(8, 3, []float64{
				0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 1,
				1, 0, 0, 1, 0, 1, 1, 1, 0, 1, 1, 1,
			}),
			y:        mat.NewDense(8, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1}),
			nClasses: 2,
			minScore: 0.75,
		},
		{
			name: "three clusters",
			opts: []LogisticRegressionOption{WithLRMaxIter(1000), WithLRC(10)},
			X: mat.NewDense(9, 2, []float64{
				0, 0, 0, 1, 1, 0,
				2, 2, 2, 3, 3, 2,
				4, 4, 4, 5, 5, 4,
			}),
			y:        mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2}),
			nClasses: 3,
			minScore: 8.0 / 9.0,
		},
		{
			name:     "remainder features",
			opts:     []LogisticRegressionOption{WithLRC(100), WithLRMaxIter(500), WithLRRandomState(42)},
			X:        remX,
			y:        remY,
			nClasses: 4,
			minScore: 1.0,
			probe:    mat.NewDense(2, 2, []float64{1, 1, 0, 1}),
			want:     []float64{3, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := NewLogisticRegression(tt.opts...)
			if err := lr.Fit(tt.X, tt.y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			if len(lr.Classes()) != tt.nClasses {
				t.Errorf("classes = %v, want %d", lr.Classes(), tt.nClasses)
			}
			if score := lr.Score(tt.X, tt.y); score < tt.minScore-1e-12 {
				t.Errorf("training score = %v, want >= %v", score, tt.minScore)
			}

			probas, err := lr.PredictProba(tt.X)
			if err != nil {
				t.Fatalf("PredictProba failed: %v", err)
			}
			pred, err := lr.Predict(tt.X)
			if err != nil {
				t.Fatalf("Predict failed: %v", err)
			}
			rows, cols := probas.Dims()
			if cols != tt.nClasses {
				t.Fatalf("probability columns = %d, want %d", cols, tt.nClasses)
			}
			for i := 0; i < rows; i++ {
				sum := 0.0
				for j := 0; j < cols; j++ {
					sum += probas.At(i, j)
				}
				if math.Abs(sum-1.0) > 1e-6 {
					t.Errorf("probabilities for sample %d sum to %v", i, sum)
				}
				// 予測クラスの確率が最大であること
				predicted := int(pred.At(i, 0))
				for j := 0; j < cols; j++ {
					if probas.At(i, j) > probas.At(i, predicted) {
						t.Errorf("sample %d: P(%d)=%v exceeds P(predicted %d)", i, j, probas.At(i, j), predicted)
					}
				}
			}

			if tt.probe == nil {
				return
			}
			got, err := lr.Predict(tt.probe)
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				if got.At(i, 0) != want {
					t.Errorf("probe %d: got %v, want %v", i, got.At(i, 0), want)
				}
			}
		})
	}
}

// 正則化を強めると係数ノルムが小さくなる
func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	norm := func(c float64) float64 {
		lr := NewLogisticRegression(WithLRC(c), WithLRMaxIter(1000))
		if err := lr.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		sq := 0.0
		for _, row := range lr.coef_ {
			for _, w := range row {
				sq += w * w
			}
		}
		return math.Sqrt(sq)
	}

	strong, weak := norm(0.01), norm(100)
	if strong >= weak {
		t.Errorf("C=0.01 norm %v should be below C=100 norm %v", strong, weak)
	}
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	if params["C"].(float64) != 1.0 || params["max_iter"].(int) != 100 || params["solver"] != "lbfgs" {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 200,
		"penalty":  "none",
		"tol":      1e-5,
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if lr.C != 2.0 || lr.maxIter != 200 || lr.penalty != "none" || lr.tol != 1e-5 {
		t.Errorf("params not applied: %v", lr.GetParams())
	}

	invalid := []map[string]interface{}{
		{"penalty": "elasticnet"},
		{"C": -1.0},
		{"warm_start": true},
	}
	for _, p := range invalid {
		if err := lr.SetParams(p); err == nil {
			t.Errorf("SetParams(%v) should fail", p)
		}
	}
}

func TestLogisticRegression_InvalidInput(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	lr := NewLogisticRegression()
	if _, err := lr.Predict(X); err == nil {
		t.Error("expected error predicting with an unfitted model")
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("expected error from PredictProba with an unfitted model")
	}

	// 単一クラスは学習できない
	err := NewLogisticRegression().Fit(mat.NewDense(3, 1, []float64{0, 1, 2}), mat.NewDense(3, 1, []float64{4, 4, 4}))
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("single-class Fit() = %v, want ValueError", err)
	}
}

func TestLogisticRegression_MarshalBinary(t *testing.T) {
	X, y := remainderData(60)

	lr := NewLogisticRegression(WithLRC(100))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := lr.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewLogisticRegression()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	want, _ := lr.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored model gives different probabilities")
	}
	if restored.NIter() != lr.NIter() {
		t.Errorf("NIter = %d, want %d", restored.NIter(), lr.NIter())
	}

	if _, err := NewLogisticRegression().MarshalBinary(); err == nil {
		t.Error("expected error marshaling an unfitted model")
	}
}
