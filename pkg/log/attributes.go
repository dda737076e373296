// Standard attribute keys.
//
// Keys follow a hierarchical naming convention ("model.kind", "data.samples")
// so that build and request logs can be filtered the same way.

package log

// Model and operation context.
const (
	// ModelKindKey identifies the registered model kind, e.g. "svc" or "knn".
	ModelKindKey = "model.kind"

	// ModelNameKey identifies the Go estimator type, e.g. "SVC".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// StrategyKey records the build strategy ("select_best" or "train_all").
	StrategyKey = "ensemble.strategy"

	// SelectedKey lists the kinds kept after selection.
	SelectedKey = "ensemble.selected"
)

// Data shape.
const (
	// SamplesKey indicates the number of samples in a dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features per sample.
	FeaturesKey = "data.features"

	// FoldKey is the zero-based cross-validation fold index.
	FoldKey = "cv.fold"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "cv.folds"

	// ScoreStdKey is the standard deviation of the fold scores.
	ScoreStdKey = "cv.std"
)

// Performance and metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy on a fold or on the test set.
	AccuracyKey = "metrics.accuracy"

	// IterationKey records the iteration count of an iterative solver.
	IterationKey = "training.iteration"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Request context.
const (
	// RequestIDKey correlates log records of one HTTP request.
	RequestIDKey = "http.request_id"

	// MethodKey is the HTTP method.
	MethodKey = "http.method"

	// PathKey is the HTTP request path.
	PathKey = "http.path"

	// StatusKey is the HTTP response status code.
	StatusKey = "http.status"

	// RunIDKey identifies a recorded training run.
	RunIDKey = "run.id"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard operation values for OperationKey.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationBuild    = "build"
	OperationSave     = "save"
	OperationLoad     = "load"
)
