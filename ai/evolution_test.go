package ai

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func smallParams() Params {
	p := DefaultParams()
	p.ImgSize = 8
	p.Iterations = 12
	p.Seed = 42
	p.Workers = 3
	p.LogEvery = 0
	return p
}

func gradient(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / size),
				G: uint8(y * 255 / size),
				B: uint8((x + y) * 255 / (2 * size)),
				A: 0xff,
			})
		}
	}
	return img
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"elite exceeds population", func(p *Params) { p.EliteSize = p.PopulationSize + 1 }, false},
		{"elite equals population", func(p *Params) { p.EliteSize = p.PopulationSize }, true},
		{"tournament exceeds population", func(p *Params) { p.TournamentSize = p.PopulationSize + 1 }, false},
		{"zero tournament", func(p *Params) { p.TournamentSize = 0 }, false},
		{"negative mutation rate", func(p *Params) { p.MutationRate = -0.1 }, false},
		{"crossover rate above one", func(p *Params) { p.CrossoverRate = 1.5 }, false},
		{"jump rate above one", func(p *Params) { p.JumpRate = 2 }, false},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }, false},
		{"zero image size", func(p *Params) { p.ImgSize = 0 }, false},
		{"unknown crossover", func(p *Params) { p.Crossover = CrossoverMode(9) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestNewEvolverRejectsWrongShape(t *testing.T) {
	p := smallParams()
	_, err := NewEvolver(p, gradient(p.ImgSize+1))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, err := NewEvolver(p, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for nil target, got %v", err)
	}
}

func TestNewEvolverRejectsInvalidParams(t *testing.T) {
	p := smallParams()
	p.EliteSize = 10
	if _, err := NewEvolver(p, gradient(p.ImgSize)); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRunRecordsEveryGeneration(t *testing.T) {
	p := smallParams()
	e, err := NewEvolver(p, gradient(p.ImgSize))
	if err != nil {
		t.Fatal(err)
	}
	res := e.Run(NewFrameRecorder(p.Iterations, 1))
	if len(res.Frames) != p.Iterations {
		t.Fatalf("recorded %d frames, want %d", len(res.Frames), p.Iterations)
	}
	if len(res.Stats) != p.Iterations {
		t.Fatalf("collected %d stats, want %d", len(res.Stats), p.Iterations)
	}
	for i, f := range res.Frames {
		if f.Generation != i {
			t.Fatalf("frame %d has generation %d", i, f.Generation)
		}
		if i > 0 && f.Image == res.Frames[i-1].Image {
			t.Fatalf("frames %d and %d share a buffer", i-1, i)
		}
	}
	if last := res.Frames[len(res.Frames)-1].Image; last != res.Final {
		t.Fatalf("final raster is not the last frame")
	}
	if b := res.Final.Bounds(); b.Dx() != p.ImgSize || b.Dy() != p.ImgSize {
		t.Fatalf("final raster is %v", b)
	}
}

func TestRunSampledFrames(t *testing.T) {
	p := smallParams()
	e, err := NewEvolver(p, gradient(p.ImgSize))
	if err != nil {
		t.Fatal(err)
	}
	res := e.Run(NewFrameRecorder(p.Iterations, 5))
	if want := ExpectedFrames(p.Iterations, 5); len(res.Frames) != want {
		t.Fatalf("recorded %d frames, want %d", len(res.Frames), want)
	}
	gens := []int{}
	for _, f := range res.Frames {
		gens = append(gens, f.Generation)
	}
	want := []int{0, 5, 10, 11}
	for i := range want {
		if gens[i] != want[i] {
			t.Fatalf("recorded generations %v, want %v", gens, want)
		}
	}
	if res.Frames[len(res.Frames)-1].Image != res.Final {
		t.Fatalf("last recorded frame is not the final raster")
	}
}

func TestPixelIndependence(t *testing.T) {
	p := smallParams()
	target := gradient(p.ImgSize)
	e, err := NewEvolver(p, target)
	if err != nil {
		t.Fatal(err)
	}
	res := e.Run(nil)
	for y := 0; y < p.ImgSize; y++ {
		for x := 0; x < p.ImgSize; x++ {
			idx := y*p.ImgSize + x
			alone := EvolvePixel(target.RGBAAt(x, y), p, PixelRand(p.Seed, idx))
			if got := res.Final.RGBAAt(x, y); got != alone.Color() {
				t.Fatalf("pixel (%d,%d): grid %v, isolated %v", x, y, got, alone.Color())
			}
		}
	}
}

func TestWorkerCountDoesNotChangeResult(t *testing.T) {
	var finals [][]byte
	for _, workers := range []int{1, 2, 7} {
		p := smallParams()
		p.Workers = workers
		e, err := NewEvolver(p, gradient(p.ImgSize))
		if err != nil {
			t.Fatal(err)
		}
		finals = append(finals, e.Run(nil).Final.Pix)
	}
	for i := 1; i < len(finals); i++ {
		if !bytes.Equal(finals[0], finals[i]) {
			t.Fatalf("result differs between worker counts")
		}
	}
}

func TestMeanFitnessNeverDrops(t *testing.T) {
	p := smallParams()
	p.Iterations = 30
	e, err := NewEvolver(p, gradient(p.ImgSize))
	if err != nil {
		t.Fatal(err)
	}
	res := e.Run(nil)
	prev := res.Initial.MeanFitness
	for _, s := range res.Stats {
		if s.MeanFitness < prev {
			t.Fatalf("generation %d: mean fitness dropped from %.2f to %.2f", s.Generation, prev, s.MeanFitness)
		}
		prev = s.MeanFitness
	}
	if res.Stats[len(res.Stats)-1].MeanFitness <= res.Initial.MeanFitness {
		t.Fatalf("no improvement over the initial population")
	}
}

func TestObserversSeeEveryGeneration(t *testing.T) {
	p := smallParams()
	e, err := NewEvolver(p, gradient(p.ImgSize))
	if err != nil {
		t.Fatal(err)
	}
	var gens []int
	e.Observe(func(stats GenerationStats, frame Frame) {
		if stats.Generation != frame.Generation {
			t.Errorf("stats generation %d, frame generation %d", stats.Generation, frame.Generation)
		}
		if stats.Pixels != p.ImgSize*p.ImgSize {
			t.Errorf("stats cover %d pixels", stats.Pixels)
		}
		gens = append(gens, stats.Generation)
	})
	e.Run(nil)
	if len(gens) != p.Iterations || gens[0] != 0 || gens[len(gens)-1] != p.Iterations-1 {
		t.Fatalf("observer saw generations %v", gens)
	}
	if e.Generation() != p.Iterations {
		t.Fatalf("Generation() = %d", e.Generation())
	}
}

func TestPopulationSizeInvariantOnGrid(t *testing.T) {
	p := smallParams()
	e, err := NewEvolver(p, gradient(p.ImgSize))
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		e.Step()
		for y := 0; y < p.ImgSize; y++ {
			for x := 0; x < p.ImgSize; x++ {
				if n := len(e.Population(x, y)); n != p.PopulationSize {
					t.Fatalf("pixel (%d,%d) has %d individuals", x, y, n)
				}
			}
		}
	}
}
