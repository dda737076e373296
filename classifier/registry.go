package classifier

import (
	"runtime"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/sklearn/ensemble"
	"github.com/YuminosukeSato/numclass/sklearn/linear_model"
	"github.com/YuminosukeSato/numclass/sklearn/naive_bayes"
	"github.com/YuminosukeSato/numclass/sklearn/neighbors"
	"github.com/YuminosukeSato/numclass/sklearn/svm"
	"github.com/YuminosukeSato/numclass/sklearn/tree"
)

// Kind identifies one of the registered classifier algorithms.
type Kind string

// Registered kinds, in registration order.
const (
	LogisticRegression Kind = "logistic_regression"
	SVC                Kind = "svc"
	DecisionTree       Kind = "decision_tree"
	RandomForest       Kind = "random_forest"
	KNN                Kind = "knn"
	NaiveBayes         Kind = "naive_bayes"
)

// randomState seeds every estimator that takes one.
const randomState = 42

var registry = []struct {
	kind Kind
	new  func() model.Estimator
}{
	{LogisticRegression, func() model.Estimator {
		return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(randomState))
	}},
	{SVC, func() model.Estimator {
		return svm.NewSVC()
	}},
	{DecisionTree, func() model.Estimator {
		return tree.NewDecisionTreeClassifier(tree.WithRandomState(randomState))
	}},
	{RandomForest, func() model.Estimator {
		return ensemble.NewRandomForestClassifier(
			ensemble.WithRandomState(randomState),
			ensemble.WithNJobs(runtime.GOMAXPROCS(0)),
		)
	}},
	{KNN, func() model.Estimator {
		return neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(1))
	}},
	{NaiveBayes, func() model.Estimator {
		return naive_bayes.NewGaussianNB()
	}},
}

// Kinds returns every registered kind in registration order.
func Kinds() []Kind {
	out := make([]Kind, len(registry))
	for i, r := range registry {
		out[i] = r.kind
	}
	return out
}

// KindNames returns Kinds as strings.
func KindNames() []string {
	out := make([]string, len(registry))
	for i, r := range registry {
		out[i] = string(r.kind)
	}
	return out
}

func (k Kind) String() string {
	return string(k)
}

// order returns the registration index of k, or -1.
func (k Kind) order() int {
	for i, r := range registry {
		if r.kind == k {
			return i
		}
	}
	return -1
}

// ParseKind validates a kind identifier.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if k.order() < 0 {
		return "", errors.NewUnsupportedKindError(name)
	}
	return k, nil
}

// Instantiate returns a fresh, untrained estimator for kind.
func Instantiate(kind Kind) (model.Estimator, error) {
	i := kind.order()
	if i < 0 {
		return nil, errors.NewUnsupportedKindError(string(kind))
	}
	return registry[i].new(), nil
}

// Hyperparams returns the fixed hyperparameters of kind.
func Hyperparams(kind Kind) (map[string]interface{}, error) {
	est, err := Instantiate(kind)
	if err != nil {
		return nil, err
	}
	if pg, ok := est.(model.ParameterGetter); ok {
		return pg.GetParams(), nil
	}
	return map[string]interface{}{}, nil
}
