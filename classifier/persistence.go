package classifier

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
	"github.com/YuminosukeSato/numclass/preprocessing"
)

// FileExt is the extension of persisted model files.
const FileExt = ".gob"

const envelopeFormat = 1

// Envelope is the on-disk form of one Model.
type Envelope struct {
	Format    int
	Kind      string
	Classes   []string
	Estimator []byte // MarshalBinary output, empty for a constant model
}

// Save writes one <kind>.gob file per held model into dir, creating dir
// when missing. Files written before a failure are kept.
func (c *Classifier) Save(dir string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewPersistenceError("mkdir", dir, err)
	}

	for _, kind := range c.heldKinds() {
		m := c.models[kind]
		env := Envelope{
			Format:  envelopeFormat,
			Kind:    string(kind),
			Classes: m.Encoder.Classes,
		}
		if !m.Constant() {
			data, err := m.Estimator.MarshalBinary()
			if err != nil {
				return errors.NewPersistenceError("encode", string(kind), err)
			}
			env.Estimator = data
		}

		path := filepath.Join(dir, string(kind)+FileExt)
		if err := model.SaveModel(env, path); err != nil {
			return err
		}
		c.logger.Debug("Model saved", log.OperationKey, log.OperationSave, log.ModelKindKey, string(kind), "path", path)
	}

	c.logger.Info("Ensemble saved", log.OperationKey, log.OperationSave, "dir", dir, "models", len(c.models))
	return nil
}

// Load reads every <kind>.gob file in dir and merges the models into the
// ensemble. Other files are skipped. Any decode failure aborts the call
// before the ensemble is touched.
func (c *Classifier) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewPersistenceError("readdir", dir, err)
	}

	loaded := make(map[Kind]*Model)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != FileExt {
			continue
		}
		kind, err := ParseKind(strings.TrimSuffix(name, FileExt))
		if err != nil {
			c.logger.Warn("Skipping file with unknown model kind", log.OperationKey, log.OperationLoad, "file", name)
			continue
		}

		m, err := c.loadModel(kind, filepath.Join(dir, name))
		if err != nil {
			return err
		}
		loaded[kind] = m
	}

	c.mu.Lock()
	for kind, m := range loaded {
		c.models[kind] = m
	}
	c.mu.Unlock()

	c.logger.Info("Ensemble loaded", log.OperationKey, log.OperationLoad, "dir", dir, "models", len(loaded))
	return nil
}

func (c *Classifier) loadModel(kind Kind, path string) (*Model, error) {
	var env Envelope
	if err := model.LoadModel(&env, path); err != nil {
		return nil, err
	}
	if env.Format != envelopeFormat {
		return nil, errors.NewPersistenceError("decode", path, errors.Newf("unsupported format %d", env.Format))
	}
	if env.Kind != string(kind) {
		return nil, errors.NewPersistenceError("decode", path, errors.Newf("file holds a %q model", env.Kind))
	}
	if len(env.Classes) == 0 {
		return nil, errors.NewPersistenceError("decode", path, errors.New("no classes"))
	}

	m := &Model{Kind: kind, Encoder: preprocessing.FromClasses(env.Classes)}
	if len(env.Estimator) == 0 {
		if len(env.Classes) != 1 {
			return nil, errors.NewPersistenceError("decode", path, errors.New("missing estimator state"))
		}
		return m, nil
	}

	est, err := c.newEstimator(kind)
	if err != nil {
		return nil, err
	}
	if err := est.UnmarshalBinary(env.Estimator); err != nil {
		return nil, errors.NewPersistenceError("decode", path, err)
	}
	m.Estimator = est
	return m, nil
}
