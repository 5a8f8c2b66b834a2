package report

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

func TestPlotFitness(t *testing.T) {
	var stats []ai.GenerationStats
	for g := range 20 {
		stats = append(stats, ai.GenerationStats{
			Generation:     g,
			MeanFitness:    500 + float64(g)*10,
			MinFitness:     300 + g*5,
			PerfectMatches: g * 5,
			Pixels:         100,
		})
	}
	path := filepath.Join(t.TempDir(), "fitness.png")
	if err := PlotFitness(stats, "test run", path); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("plot is not a png: %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Fatalf("empty plot")
	}
}

func TestPlotFitnessNoStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitness.png")
	if err := PlotFitness(nil, "", path); !errors.Is(err, ErrNoStats) {
		t.Fatalf("expected ErrNoStats, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("plot written without stats")
	}
}
