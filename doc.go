// Package numclass classifies integers into FizzBuzz, Fizz, Buzz or None
// with an ensemble of machine learning models, and serves the result over
// HTTP.
//
// numclass trains six model kinds (logistic regression, SVC, decision tree,
// random forest, k-nearest neighbours and Gaussian naive Bayes) on
// remainder features of a synthetic integer range, scores each kind with
// shuffled k-fold cross-validation, and keeps the best ones. Predictions
// come from a named model or from a majority vote of every kept model.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/numclass/classifier"
//	    "github.com/YuminosukeSato/numclass/dataset/numbers"
//	)
//
//	func main() {
//	    ds, err := numbers.Load(
//	        numbers.Range{Start: 1000, End: 2000, Step: 1},
//	        numbers.Range{Start: 1, End: 100, Step: 1},
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    c := classifier.New()
//	    if err := c.Build(ds); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    label, err := classifier.Predict(c, 15, numbers.Encode, "")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(label) // FizzBuzz
//	}
//
// # Packages
//
//   - classifier: model registry, ensemble build, prediction and persistence
//   - dataset/numbers: labelling oracle, remainder features and ranges
//   - sklearn/...: the estimators (linear_model, svm, tree, ensemble, neighbors, naive_bayes)
//   - model_selection: KFold and cross-validation scores
//   - metrics: accuracy and classification metrics
//   - preprocessing: LabelEncoder
//   - server: HTTP API with request logging and a prediction cache
//   - report: CV score charts
//   - pkg/config, pkg/log, pkg/errors, pkg/store: configuration, logging, errors and the training log
//   - core/model, core/parallel: estimator state and parallel helpers
//
// # Binaries
//
//	go run ./cmd/numclass-train -config config.yaml -plot scores.png
//	go run ./cmd/numclass-server -config config.yaml
//
// The server answers on:
//
//	GET  /api/number-classifier/list_models/
//	POST /api/number-classifier/predict/        {"values":[1,2,3],"model_name":"knn"}
//	GET  /api/number-classifier/training_runs/?limit=20
//	GET  /api/health
package numclass
