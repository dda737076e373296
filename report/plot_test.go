package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/numclass/classifier"
)

func sampleEvaluations() []classifier.Evaluation {
	return []classifier.Evaluation{
		{Kind: classifier.LogisticRegression, FoldScores: []float64{0.9, 0.95, 1}, Score: 0.95},
		{Kind: classifier.SVC, FoldScores: []float64{1, 1, 1}, Score: 1, Selected: true},
		{Kind: classifier.KNN, FoldScores: []float64{1, 1, 1}, Score: 1, Selected: true},
	}
}

func TestPlotScores(t *testing.T) {
	for _, name := range []string{"scores.png", "scores.svg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := PlotScores(sampleEvaluations(), path); err != nil {
				t.Fatalf("PlotScores failed: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() == 0 {
				t.Error("chart file is empty")
			}
		})
	}
}

func TestPlotScoresErrors(t *testing.T) {
	dir := t.TempDir()
	if err := PlotScores(nil, filepath.Join(dir, "empty.png")); err == nil {
		t.Error("expected error for no evaluations")
	}
	if err := PlotScores(sampleEvaluations(), filepath.Join(dir, "scores.bmp")); err == nil {
		t.Error("expected error for an unsupported format")
	}
}
