package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/metrics"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// LogisticRegression implements multinomial logistic regression fitted with L-BFGS.
// Compatible with scikit-learn's LogisticRegression(solver="lbfgs").
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Recorded for parity with sklearn; L-BFGS is deterministic
	maxIter      int     // Maximum L-BFGS iterations
	tol          float64 // Gradient infinity-norm threshold

	// Model parameters
	coef_      [][]float64 // n_classes x n_features
	intercept_ []float64   // n_classes
	classes_   []int       // Unique class labels
	nClasses_  int
	nFeatures_ int
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	labels, err := model.Labels("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}
	classes := model.UniqueClasses(labels)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("this solver needs samples of at least 2 classes in the data, but the data contains only one class: %d", classes[0]))
	}

	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	targets := make([]int, nSamples)
	for i, l := range labels {
		targets[i] = classIdx[l]
	}
	rows := denseRows(X)

	lr.classes_ = classes
	lr.nClasses_ = len(classes)
	lr.nFeatures_ = nFeatures

	obj := &softmaxObjective{
		rows:         rows,
		targets:      targets,
		nClasses:     lr.nClasses_,
		nFeatures:    nFeatures,
		fitIntercept: lr.fitIntercept,
	}
	if lr.penalty == "l2" {
		obj.alpha = 1.0 / (lr.C * float64(nSamples))
	}

	problem := optimize.Problem{
		Func: obj.loss,
		Grad: obj.grad,
	}
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	init := make([]float64, lr.nClasses_*(nFeatures+1))

	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.Wrap(err, "LogisticRegression.Fit: lbfgs failed")
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.MajorIterations); err != nil {
		return err
	}
	if err != nil || result.Status == optimize.IterationLimit {
		reason := "increase the number of iterations (max_iter)"
		if err != nil {
			reason = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.MajorIterations, reason))
	}

	lr.coef_ = make([][]float64, lr.nClasses_)
	lr.intercept_ = make([]float64, lr.nClasses_)
	stride := nFeatures + 1
	for k := 0; k < lr.nClasses_; k++ {
		lr.coef_[k] = append([]float64(nil), result.X[k*stride:k*stride+nFeatures]...)
		lr.intercept_[k] = result.X[k*stride+nFeatures]
	}
	lr.nIter_ = result.MajorIterations

	lr.state.MarkFitted(nFeatures, nSamples)
	return nil
}

// softmaxObjective is the mean multinomial cross-entropy plus an L2 term
// on the weights. Parameters are laid out per class as weights then intercept.
type softmaxObjective struct {
	rows         [][]float64
	targets      []int
	nClasses     int
	nFeatures    int
	fitIntercept bool
	alpha        float64
}

func (o *softmaxObjective) scores(theta []float64, row []float64, out []float64) {
	stride := o.nFeatures + 1
	for k := 0; k < o.nClasses; k++ {
		w := theta[k*stride : k*stride+o.nFeatures]
		out[k] = floats.Dot(w, row)
		if o.fitIntercept {
			out[k] += theta[k*stride+o.nFeatures]
		}
	}
}

func (o *softmaxObjective) loss(theta []float64) float64 {
	z := make([]float64, o.nClasses)
	total := 0.0
	for i, row := range o.rows {
		o.scores(theta, row, z)
		total += floats.LogSumExp(z) - z[o.targets[i]]
	}
	total /= float64(len(o.rows))
	return total + 0.5*o.alpha*o.weightNorm(theta)
}

func (o *softmaxObjective) grad(grad, theta []float64) {
	for i := range grad {
		grad[i] = 0
	}
	stride := o.nFeatures + 1
	n := float64(len(o.rows))
	z := make([]float64, o.nClasses)
	for i, row := range o.rows {
		o.scores(theta, row, z)
		lse := floats.LogSumExp(z)
		for k := 0; k < o.nClasses; k++ {
			d := math.Exp(z[k] - lse)
			if k == o.targets[i] {
				d -= 1
			}
			d /= n
			floats.AddScaled(grad[k*stride:k*stride+o.nFeatures], d, row)
			if o.fitIntercept {
				grad[k*stride+o.nFeatures] += d
			}
		}
	}
	for k := 0; k < o.nClasses; k++ {
		floats.AddScaled(grad[k*stride:k*stride+o.nFeatures], o.alpha, theta[k*stride:k*stride+o.nFeatures])
	}
}

func (o *softmaxObjective) weightNorm(theta []float64) float64 {
	stride := o.nFeatures + 1
	sum := 0.0
	for k := 0; k < o.nClasses; k++ {
		w := theta[k*stride : k*stride+o.nFeatures]
		sum += floats.Dot(w, w)
	}
	return sum
}

func denseRows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = X.At(i, j)
		}
	}
	return rows
}

// DecisionFunction returns the per-class linear scores
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, err := model.CheckFeatures("LogisticRegression.DecisionFunction", X, lr.nFeatures_)
	if err != nil {
		return nil, err
	}

	scores := mat.NewDense(nSamples, lr.nClasses_, nil)
	row := make([]float64, lr.nFeatures_)
	for i := 0; i < nSamples; i++ {
		for j := range row {
			row[j] = X.At(i, j)
		}
		for k := 0; k < lr.nClasses_; k++ {
			scores.Set(i, k, floats.Dot(lr.coef_[k], row)+lr.intercept_[k])
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := scores.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := floats.MaxIdx(scores.RawRowView(i))
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		z := scores.RawRowView(i)
		lse := floats.LogSumExp(z)
		for k, v := range z {
			probas.Set(i, k, math.Exp(v-lse))
		}
	}
	return probas, nil
}

// Classes returns the class labels seen during fitting
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the number of L-BFGS iterations run by the last Fit
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	score, err := metrics.AccuracyMatrix(y, predictions)
	if err != nil {
		return 0.0
	}
	return score
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        "lbfgs",
		"max_iter":      lr.maxIter,
		"multi_class":   "multinomial",
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			p, ok := value.(string)
			if !ok || (p != "l2" && p != "none") {
				return errors.NewValidationError("penalty", "must be \"l2\" or \"none\"", value)
			}
			lr.penalty = p
		case "C":
			c, ok := value.(float64)
			if !ok || c <= 0 {
				return errors.NewValidationError("C", "must be a positive float", value)
			}
			lr.C = c
		case "fit_intercept":
			lr.fitIntercept = value.(bool)
		case "random_state":
			lr.randomState = value.(int64)
		case "max_iter":
			lr.maxIter = value.(int)
		case "tol":
			lr.tol = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

type logisticState struct {
	model.ModelState
	Penalty      string
	C            float64
	FitIntercept bool
	RandomState  int64
	MaxIter      int
	Tol          float64
	Coef         [][]float64
	Intercept    []float64
	Classes      []int
	NIter        int
}

// MarshalBinary encodes the fitted model with gob
func (lr *LogisticRegression) MarshalBinary() ([]byte, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeState(logisticState{
		ModelState:   lr.state.Snapshot(),
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		RandomState:  lr.randomState,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		Coef:         lr.coef_,
		Intercept:    lr.intercept_,
		Classes:      lr.classes_,
		NIter:        lr.nIter_,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary
func (lr *LogisticRegression) UnmarshalBinary(data []byte) error {
	var s logisticState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Coef) != len(s.Classes) || len(s.Intercept) != len(s.Classes) {
		return errors.NewValueError("LogisticRegression.UnmarshalBinary", "inconsistent coefficient shapes")
	}

	if lr.state == nil {
		lr.state = model.NewStateManager()
	}
	lr.penalty, lr.C, lr.fitIntercept = s.Penalty, s.C, s.FitIntercept
	lr.randomState, lr.maxIter, lr.tol = s.RandomState, s.MaxIter, s.Tol
	lr.coef_, lr.intercept_, lr.classes_ = s.Coef, s.Intercept, s.Classes
	lr.nClasses_ = len(s.Classes)
	lr.nFeatures_ = s.NFeatures
	lr.nIter_ = s.NIter
	lr.state.Restore(s.ModelState)
	return nil
}
