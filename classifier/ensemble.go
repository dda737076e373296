// Package classifier trains, selects, persists and serves an ensemble of
// number classifiers.
//
// Every registered kind is scored by k-fold cross-validation on the
// training set. The kinds with the best mean fold accuracy are retrained on
// the full training set and kept. Predictions come from one named model or
// from a majority vote over all kept models.
//
// Lifecycle:
//
//	c := classifier.New()
//	if err := c.Build(ds); err != nil { ... }   // or c.Load(dir)
//	label, err := classifier.Predict(c, 15, numbers.Encode, "")
package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/model_selection"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
)

// Strategy decides which evaluated kinds are kept.
type Strategy int

const (
	// SelectBest keeps every kind whose mean fold accuracy equals the best.
	SelectBest Strategy = iota
	// TrainAll keeps every kind regardless of score.
	TrainAll
)

func (s Strategy) String() string {
	switch s {
	case SelectBest:
		return "select_best"
	case TrainAll:
		return "train_all"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "select_best" or "train_all".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "select_best", "":
		return SelectBest, nil
	case "train_all":
		return TrainAll, nil
	default:
		return 0, errors.NewValidationError("strategy", "must be \"select_best\" or \"train_all\"", s)
	}
}

const (
	defaultMaxFolds = 10
	defaultSeed     = 42
)

// Evaluation records how one kind fared in a build.
type Evaluation struct {
	Kind       Kind
	FoldScores []float64
	Score      float64 // mean of FoldScores
	Selected   bool
	// TestAccuracy is set only for selected kinds with a non-empty test set.
	TestAccuracy  float64
	TestEvaluated bool
	Duration      time.Duration
}

// Classifier holds the trained ensemble. Build and Load write the state;
// Predict, Save and Models only read it. A Classifier is safe for
// concurrent use.
type Classifier struct {
	mu     sync.RWMutex
	models map[Kind]*Model
	evals  []Evaluation

	strategy     Strategy
	seed         uint64
	maxFolds     int
	kinds        []Kind
	logger       log.Logger
	newEstimator estimatorFactory
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStrategy sets the selection strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Classifier) {
		c.strategy = s
	}
}

// WithSeed sets the cross-validation shuffle seed.
func WithSeed(seed uint64) Option {
	return func(c *Classifier) {
		c.seed = seed
	}
}

// WithMaxFolds caps the number of cross-validation folds.
func WithMaxFolds(k int) Option {
	return func(c *Classifier) {
		c.maxFolds = k
	}
}

// WithKinds restricts the evaluated kinds. Unregistered kinds are ignored.
func WithKinds(kinds ...Kind) Option {
	return func(c *Classifier) {
		c.kinds = c.kinds[:0]
		for _, k := range Kinds() {
			for _, want := range kinds {
				if k == want {
					c.kinds = append(c.kinds, k)
					break
				}
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Classifier) {
		c.logger = l
	}
}

// New creates an empty classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		models:       make(map[Kind]*Model),
		strategy:     SelectBest,
		seed:         defaultSeed,
		maxFolds:     defaultMaxFolds,
		kinds:        Kinds(),
		logger:       log.GetLoggerWithName("classifier"),
		newEstimator: Instantiate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build evaluates every kind on ds and replaces the ensemble with the
// selected models.
func (c *Classifier) Build(ds *numbers.Dataset) error {
	return c.BuildContext(context.Background(), ds)
}

// BuildContext is Build with cancellation checked between folds. On any
// error the previous ensemble is left untouched.
func (c *Classifier) BuildContext(ctx context.Context, ds *numbers.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	nTrain := len(ds.TrainFeatures)
	if nTrain < 2 {
		return errors.NewDatasetShapeError(nTrain, len(ds.TrainLabels), len(ds.TestFeatures), len(ds.TestLabels),
			"need at least 2 training samples for cross-validation")
	}
	if len(c.kinds) == 0 {
		return errors.Wrap(errors.ErrNoModels, "no kinds to evaluate")
	}
	if c.maxFolds < 2 {
		return errors.NewValidationError("max_folds", "must be at least 2", c.maxFolds)
	}

	start := time.Now()
	k := min(c.maxFolds, nTrain)
	folds, err := model_selection.NewKFold(k, true, c.seed).Split(nTrain)
	if err != nil {
		return err
	}
	X, err := denseRows(ds.TrainFeatures)
	if err != nil {
		return err
	}

	logger := c.logger.With(log.OperationKey, log.OperationBuild, log.StrategyKey, c.strategy.String())
	logger.Info("Building ensemble",
		log.SamplesKey, nTrain,
		log.FeaturesKey, ds.NFeatures(),
		log.FoldsKey, k,
		log.RandomSeedKey, c.seed,
	)

	evals := make([]Evaluation, 0, len(c.kinds))
	for _, kind := range c.kinds {
		ev, err := c.evaluate(ctx, kind, X, ds.TrainLabels, folds)
		if err != nil {
			logger.Error("Cross-validation failed", log.ModelKindKey, kind.String(), log.ErrAttrKey, err)
			return err
		}
		evals = append(evals, ev)
	}

	best := evals[0].Score
	for _, ev := range evals[1:] {
		best = max(best, ev.Score)
	}

	models := make(map[Kind]*Model)
	var selected []string
	for i := range evals {
		ev := &evals[i]
		if c.strategy == SelectBest && ev.Score != best {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "build cancelled")
		}

		m, err := fit(c.newEstimator, ev.Kind, X, ds.TrainLabels)
		if err != nil {
			return errors.NewTrainingError(ev.Kind.String(), -1, err)
		}
		ev.Selected = true
		models[ev.Kind] = m
		selected = append(selected, ev.Kind.String())

		if len(ds.TestFeatures) == 0 {
			logger.Info("Test set empty, skipping test accuracy", log.ModelKindKey, ev.Kind.String())
			continue
		}
		XTest, err := denseRows(ds.TestFeatures)
		if err != nil {
			return err
		}
		pred, err := m.PredictRows(XTest)
		if err != nil {
			return errors.NewTrainingError(ev.Kind.String(), -1, err)
		}
		acc, err := metrics.AccuracyScore(ds.TestLabels, pred)
		if err != nil {
			return err
		}
		ev.TestAccuracy, ev.TestEvaluated = acc, true
		logger.Info("Test accuracy", log.ModelKindKey, ev.Kind.String(), log.AccuracyKey, acc)
	}

	c.mu.Lock()
	c.models = models
	c.evals = evals
	c.mu.Unlock()

	logger.Info("Ensemble built",
		log.SelectedKey, selected,
		log.AccuracyKey, best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *Classifier) evaluate(ctx context.Context, kind Kind, X mat.Matrix, labels []string, folds []model_selection.Fold) (Evaluation, error) {
	start := time.Now()
	scores := make(model_selection.Scores, 0, len(folds))

	for i, fold := range folds {
		if err := ctx.Err(); err != nil {
			return Evaluation{}, errors.Wrap(err, "build cancelled")
		}

		m, err := fit(c.newEstimator, kind, model_selection.SubsetRows(X, fold.TrainIndices),
			model_selection.Subset(labels, fold.TrainIndices))
		if err != nil {
			return Evaluation{}, errors.NewTrainingError(kind.String(), i, err)
		}
		pred, err := m.PredictRows(model_selection.SubsetRows(X, fold.TestIndices))
		if err != nil {
			return Evaluation{}, errors.NewTrainingError(kind.String(), i, err)
		}
		acc, err := metrics.AccuracyScore(model_selection.Subset(labels, fold.TestIndices), pred)
		if err != nil {
			return Evaluation{}, err
		}
		scores = append(scores, acc)

		c.logger.Debug("Fold evaluated",
			log.ModelKindKey, kind.String(),
			log.FoldKey, i,
			log.AccuracyKey, acc,
		)
	}

	ev := Evaluation{
		Kind:       kind,
		FoldScores: scores,
		Score:      scores.Mean(),
		Duration:   time.Since(start),
	}
	c.logger.Info("Cross-validation score",
		log.OperationKey, log.OperationEvaluate,
		log.ModelKindKey, kind.String(),
		log.AccuracyKey, ev.Score,
		log.ScoreStdKey, scores.Std(),
		log.DurationMsKey, ev.Duration.Milliseconds(),
	)
	return ev, nil
}

// Evaluations returns the per-kind records of the last successful build.
func (c *Classifier) Evaluations() []Evaluation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Evaluation, len(c.evals))
	copy(out, c.evals)
	return out
}
