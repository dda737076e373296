package classifier

import (
	"testing"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/sklearn/neighbors"
)

func TestKinds(t *testing.T) {
	want := []string{"logistic_regression", "svc", "decision_tree", "random_forest", "knn", "naive_bayes"}

	got := KindNames()
	if len(got) != len(want) {
		t.Fatalf("KindNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] || string(Kinds()[i]) != want[i] {
			t.Errorf("kind %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range KindNames() {
		kind, err := ParseKind(name)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", name, err)
		}
		if kind.String() != name {
			t.Errorf("ParseKind(%q) = %q", name, kind)
		}
	}

	for _, name := range []string{"", "SVC", "gradient_boosting"} {
		var unsupported *errors.UnsupportedKindError
		if _, err := ParseKind(name); !errors.As(err, &unsupported) {
			t.Errorf("ParseKind(%q) = %v, want UnsupportedKindError", name, err)
		}
	}
}

func TestInstantiate(t *testing.T) {
	for _, kind := range Kinds() {
		a, err := Instantiate(kind)
		if err != nil {
			t.Fatalf("Instantiate(%s) failed: %v", kind, err)
		}
		b, _ := Instantiate(kind)
		if a == b {
			t.Errorf("Instantiate(%s) returned a shared instance", kind)
		}
	}

	var unsupported *errors.UnsupportedKindError
	if _, err := Instantiate(Kind("perceptron")); !errors.As(err, &unsupported) {
		t.Errorf("expected UnsupportedKindError, got %v", err)
	}
	if unsupported.Kind != "perceptron" {
		t.Errorf("UnsupportedKindError.Kind = %q", unsupported.Kind)
	}

	est, _ := Instantiate(KNN)
	if _, ok := est.(*neighbors.KNeighborsClassifier); !ok {
		t.Errorf("knn instantiated as %T", est)
	}
}

func TestHyperparams(t *testing.T) {
	tests := []struct {
		kind  Kind
		key   string
		value interface{}
	}{
		{LogisticRegression, "C", 1.0},
		{LogisticRegression, "random_state", int64(42)},
		{SVC, "kernel", "rbf"},
		{SVC, "gamma", "scale"},
		{DecisionTree, "criterion", "gini"},
		{RandomForest, "n_estimators", 100},
		{KNN, "n_neighbors", 1},
		{NaiveBayes, "var_smoothing", 1e-9},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.key, func(t *testing.T) {
			params, err := Hyperparams(tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			if params[tt.key] != tt.value {
				t.Errorf("%s = %v (%T), want %v", tt.key, params[tt.key], params[tt.key], tt.value)
			}
		})
	}

	if _, err := Hyperparams(Kind("nope")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestInstantiate_Interfaces(t *testing.T) {
	for _, kind := range Kinds() {
		est, err := Instantiate(kind)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := est.(model.ParameterGetter); !ok {
			t.Errorf("%s does not expose GetParams", kind)
		}
		if _, ok := est.(model.ParameterSetter); !ok {
			t.Errorf("%s does not accept SetParams", kind)
		}
		if _, ok := est.(model.Scorer); !ok {
			t.Errorf("%s does not implement Score", kind)
		}
		// SVC は確率を出さない
		_, proba := est.(model.ProbabilisticClassifier)
		if proba == (kind == SVC) {
			t.Errorf("%s: ProbabilisticClassifier = %v", kind, proba)
		}
	}
}
