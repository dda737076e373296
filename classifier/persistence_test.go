package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
)

// trainAll returns a classifier holding every kind.
func trainAll(t *testing.T) *Classifier {
	t.Helper()
	ds := loadDataset(t, numbers.Range{Start: 1, End: 60, Step: 1}, numbers.Range{Start: 1, End: 10, Step: 1})
	c := New(WithStrategy(TrainAll), WithLogger(log.Nop()))
	if err := c.Build(ds); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return c
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	c := trainAll(t)
	dir := filepath.Join(t.TempDir(), "nested", "models")

	if err := c.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, kind := range Kinds() {
		if _, err := os.Stat(filepath.Join(dir, string(kind)+FileExt)); err != nil {
			t.Errorf("missing file for %s: %v", kind, err)
		}
	}

	restored := New(WithLogger(log.Nop()))
	if err := restored.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(restored.Models()) != len(Kinds()) {
		t.Fatalf("restored %v, want all kinds", restored.Models())
	}

	for _, kind := range Kinds() {
		for n := -30; n <= 30; n++ {
			want, err := Predict(c, n, numbers.Encode, string(kind))
			if err != nil {
				t.Fatal(err)
			}
			got, err := Predict(restored, n, numbers.Encode, string(kind))
			if err != nil {
				t.Fatalf("%s: restored prediction failed: %v", kind, err)
			}
			if got != want {
				t.Errorf("%s: Predict(%d) = %q after load, %q before", kind, n, got, want)
			}
		}
	}
}

func TestSaveLoad_ConstantModel(t *testing.T) {
	c := New(WithLogger(log.Nop()))
	c.models[KNN] = constantModel(KNN, numbers.Buzz)

	dir := t.TempDir()
	if err := c.Save(dir); err != nil {
		t.Fatal(err)
	}

	restored := New(WithLogger(log.Nop()))
	if err := restored.Load(dir); err != nil {
		t.Fatal(err)
	}
	m, ok := restored.Model(KNN)
	if !ok || !m.Constant() {
		t.Fatalf("expected a constant knn model, got %+v", m)
	}
	if got, _ := restored.PredictFeatures([]float64{1, 0}, "knn"); got != numbers.Buzz {
		t.Errorf("constant model predicted %q", got)
	}
}

func TestLoad_SkipsForeignFiles(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	c := New(WithLogger(logger))
	c.models[KNN] = constantModel(KNN, numbers.Fizz)

	dir := t.TempDir()
	if err := c.Save(dir); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"README.txt":         "not a model",
		"gradient_boost.gob": "unknown kind",
		"svc.gob.tmp123":     "leftover temp file",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gob"), 0o755); err != nil {
		t.Fatal(err)
	}

	restored := New(WithLogger(logger))
	restored.models[SVC] = constantModel(SVC, numbers.None)
	if err := restored.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 既存のエントリは残り、読み込んだものが追加される
	held := restored.Models()
	if len(held) != 2 || held[0] != SVC || held[1] != KNN {
		t.Errorf("Models() = %v, want [svc knn]", held)
	}
	if !logger.ContainsMessage("Skipping file with unknown model kind") {
		t.Error("expected skipped file to be logged")
	}
}

func TestLoad_Errors(t *testing.T) {
	c := New(WithLogger(log.Nop()))
	c.models[KNN] = constantModel(KNN, numbers.Fizz)
	c.models[SVC] = constantModel(SVC, numbers.Buzz)

	t.Run("missing directory", func(t *testing.T) {
		var persistErr *errors.PersistenceError
		err := New(WithLogger(log.Nop())).Load(filepath.Join(t.TempDir(), "absent"))
		if !errors.As(err, &persistErr) || persistErr.Op != "readdir" {
			t.Errorf("expected readdir PersistenceError, got %v", err)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		if err := c.Save(dir); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "svc.gob"), []byte("garbage"), 0o644); err != nil {
			t.Fatal(err)
		}

		restored := New(WithLogger(log.Nop()))
		var persistErr *errors.PersistenceError
		if err := restored.Load(dir); !errors.As(err, &persistErr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if len(restored.Models()) != 0 {
			t.Errorf("failed load must not change the ensemble, got %v", restored.Models())
		}
	})

	t.Run("kind mismatch", func(t *testing.T) {
		dir := t.TempDir()
		if err := c.Save(dir); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "knn.gob"))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "svc.gob"), data, 0o644); err != nil {
			t.Fatal(err)
		}

		if err := New(WithLogger(log.Nop())).Load(dir); err == nil {
			t.Error("expected error when the file name and stored kind differ")
		}
	})
}

func TestSave_Errors(t *testing.T) {
	c := New(WithLogger(log.Nop()))
	c.models[KNN] = constantModel(KNN, numbers.Fizz)

	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var persistErr *errors.PersistenceError
	if err := c.Save(filepath.Join(file, "models")); !errors.As(err, &persistErr) || persistErr.Op != "mkdir" {
		t.Errorf("expected mkdir PersistenceError, got %v", err)
	}
}
