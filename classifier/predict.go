package classifier

import (
	"sort"

	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// Predict encodes value and classifies it with the model named modelName,
// or by majority vote over all held models when modelName is empty.
func Predict[T any](c *Classifier, value T, encode numbers.Encoder[T], modelName string) (string, error) {
	return c.PredictFeatures(encode(value), modelName)
}

// PredictFeatures classifies one feature vector.
func (c *Classifier) PredictFeatures(x []float64, modelName string) (string, error) {
	labels, err := c.PredictBatch([][]float64{x}, modelName)
	if err != nil {
		return "", err
	}
	return labels[0], nil
}

// PredictBatch classifies each row of X. An empty X yields an empty result
// once modelName has been checked.
func (c *Classifier) PredictBatch(X [][]float64, modelName string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if modelName != "" {
		m, ok := c.models[Kind(modelName)]
		if !ok {
			return nil, errors.NewUnknownModelError(modelName, c.heldNames())
		}
		if len(X) == 0 {
			return []string{}, nil
		}
		dense, err := denseRows(X)
		if err != nil {
			return nil, err
		}
		return m.PredictRows(dense)
	}

	if len(X) == 0 {
		return []string{}, nil
	}
	if len(c.models) == 0 {
		return nil, errors.WithStack(errors.ErrNoModels)
	}

	dense, err := denseRows(X)
	if err != nil {
		return nil, err
	}
	held := c.heldKinds()
	votes := make([][]string, len(held))
	for i, kind := range held {
		labels, err := c.models[kind].PredictRows(dense)
		if err != nil {
			return nil, err
		}
		votes[i] = labels
	}

	out := make([]string, len(X))
	ballot := make([]string, len(held))
	for row := range X {
		for i := range held {
			ballot[i] = votes[i][row]
		}
		out[row] = majority(ballot)
	}
	return out, nil
}

// PredictAll returns every held model's label for x.
func (c *Classifier) PredictAll(x []float64) (map[Kind]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.models) == 0 {
		return nil, errors.WithStack(errors.ErrNoModels)
	}
	out := make(map[Kind]string, len(c.models))
	for kind, m := range c.models {
		label, err := m.Predict(x)
		if err != nil {
			return nil, err
		}
		out[kind] = label
	}
	return out, nil
}

// majority returns the most frequent label. Ties go to the label that
// appears first, which is the vote of the earliest registered kind.
func majority(ballot []string) string {
	counts := make(map[string]int, len(ballot))
	best, bestCount := "", 0
	for _, label := range ballot {
		counts[label]++
	}
	for _, label := range ballot {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best
}

// Models lists the held kinds in registration order.
func (c *Classifier) Models() []Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heldKinds()
}

// Model returns the held model of kind.
func (c *Classifier) Model(kind Kind) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[kind]
	return m, ok
}

func (c *Classifier) heldKinds() []Kind {
	out := make([]Kind, 0, len(c.models))
	for kind := range c.models {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].order() < out[j].order()
	})
	return out
}

func (c *Classifier) heldNames() []string {
	kinds := c.heldKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
