package ai

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math/rand/v2"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// GenerationStats summarises the best-of-population raster of one generation
type GenerationStats struct {
	Generation     int           `json:"generation"`
	MeanFitness    float64       `json:"mean_fitness"`
	MinFitness     int           `json:"min_fitness"`
	PerfectMatches int           `json:"perfect_matches"`
	Pixels         int           `json:"pixels"`
	Duration       time.Duration `json:"duration"`
}

// PerfectRatio is the fraction of pixels whose best colour equals the target
func (s GenerationStats) PerfectRatio() float64 {
	if s.Pixels == 0 {
		return 0
	}
	return float64(s.PerfectMatches) / float64(s.Pixels)
}

// Observer is notified after every generation, once all pixels are advanced
type Observer func(stats GenerationStats, frame Frame)

// Result is the outcome of a full run
type Result struct {
	// Initial describes the random generation 0 before any step
	Initial GenerationStats
	Stats   []GenerationStats
	Frames  []Frame
	Final   *image.RGBA
}

// Evolver drives one independent population per pixel through the
// generations in lock-step.
type Evolver struct {
	params    Params
	size      int
	targets   []color.RGBA
	cur, next []Individual
	rngs      []*rand.Rand
	observers []Observer
	gen       int
}

// PixelRand returns the random source of the pixel at index y*size+x
func PixelRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}

// NewEvolver validates the parameters and the target shape and seeds a
// random population for every pixel.
func NewEvolver(p Params, target image.Image) (*Evolver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no target image", ErrConfig)
	}
	b := target.Bounds()
	if b.Dx() != p.ImgSize || b.Dy() != p.ImgSize {
		return nil, fmt.Errorf("%w: target is %dx%d, expected %dx%d", ErrConfig, b.Dx(), b.Dy(), p.ImgSize, p.ImgSize)
	}

	n := p.ImgSize * p.ImgSize
	e := &Evolver{
		params:  p,
		size:    p.ImgSize,
		targets: make([]color.RGBA, n),
		cur:     make([]Individual, n*p.PopulationSize),
		next:    make([]Individual, n*p.PopulationSize),
		rngs:    make([]*rand.Rand, n),
	}
	for y := 0; y < e.size; y++ {
		for x := 0; x < e.size; x++ {
			c := color.NRGBAModel.Convert(target.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			e.targets[y*e.size+x] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
		}
	}
	for i := range e.rngs {
		e.rngs[i] = PixelRand(p.Seed, i)
		e.population(e.cur, i).randomize(e.rngs[i])
	}
	return e, nil
}

// Observe registers fn to be called after every generation
func (e *Evolver) Observe(fn Observer) {
	e.observers = append(e.observers, fn)
}

// Params returns the parameters of the run
func (e *Evolver) Params() Params { return e.params }

// Generation returns the number of completed generations
func (e *Evolver) Generation() int { return e.gen }

// Population returns the current population of pixel (x, y)
func (e *Evolver) Population(x, y int) Population {
	return e.population(e.cur, y*e.size+x)
}

func (e *Evolver) population(buf []Individual, i int) Population {
	lo := i * e.params.PopulationSize
	return Population(buf[lo : lo+e.params.PopulationSize])
}

// Step advances every pixel by one generation and returns the resulting frame
func (e *Evolver) Step() (Frame, GenerationStats) {
	start := time.Now()

	workers := e.params.workers()
	band := max(1, (e.size+workers*4-1)/(workers*4))
	p := pool.New().WithMaxGoroutines(workers)
	for y0 := 0; y0 < e.size; y0 += band {
		lo, hi := y0*e.size, min(y0+band, e.size)*e.size
		p.Go(func() {
			b := newBreeder(e.params)
			for i := lo; i < hi; i++ {
				b.step(e.population(e.cur, i), e.population(e.next, i), e.targets[i], e.rngs[i])
			}
		})
	}
	// no pixel may see generation g+1 before every pixel finished g
	p.Wait()
	e.cur, e.next = e.next, e.cur

	frame, stats := e.snapshot(e.gen)
	stats.Duration = time.Since(start)
	e.gen++
	for _, fn := range e.observers {
		fn(stats, frame)
	}
	return frame, stats
}

// Snapshot materialises the best colour of every pixel without advancing
func (e *Evolver) Snapshot() (Frame, GenerationStats) {
	return e.snapshot(e.gen - 1)
}

func (e *Evolver) snapshot(gen int) (Frame, GenerationStats) {
	img := image.NewRGBA(image.Rect(0, 0, e.size, e.size))
	stats := GenerationStats{Generation: gen, Pixels: len(e.targets), MinFitness: MaxFitness}
	total := 0
	for i, target := range e.targets {
		best, fitness := e.population(e.cur, i).Best(target)
		c := best.Color()
		img.SetRGBA(i%e.size, i/e.size, c)
		total += fitness
		stats.MinFitness = min(stats.MinFitness, fitness)
		if c == target {
			stats.PerfectMatches++
		}
	}
	stats.MeanFitness = float64(total) / float64(len(e.targets))
	return Frame{Generation: gen, Image: img}, stats
}

// Run evolves all pixels for Params.Iterations generations. Every frame is
// offered to rec, which may be nil.
func (e *Evolver) Run(rec *FrameRecorder) *Result {
	_, initial := e.Snapshot()
	res := &Result{Initial: initial}

	for g := 0; g < e.params.Iterations; g++ {
		frame, stats := e.Step()
		res.Stats = append(res.Stats, stats)
		res.Final = frame.Image
		if rec != nil {
			if err := rec.Record(frame); err != nil {
				log.Printf("Frame %d not recorded: %v", frame.Generation, err)
			}
		}
		if every := e.params.LogEvery; every > 0 && (g%every == 0 || g == e.params.Iterations-1) {
			e.logProgress(stats)
		}
	}
	if rec != nil {
		res.Frames = rec.Finalize()
	}
	return res
}

func (e *Evolver) logProgress(stats GenerationStats) {
	log.Printf("Generation %d/%d: mean fitness %.2f, perfect matches %.2f%% (%d/%d), took %v",
		stats.Generation+1, e.params.Iterations, stats.MeanFitness,
		100*stats.PerfectRatio(), stats.PerfectMatches, stats.Pixels, stats.Duration)

	c := e.size / 2
	avg, hi, lo := e.Population(c, c).FitnessStats(e.targets[c*e.size+c])
	log.Printf("  Centre pixel fitness: avg=%.2f max=%d min=%d", avg, hi, lo)
}

// EvolvePixel evolves a single population toward target and returns its
// best individual. With rng from PixelRand it reproduces the grid's result
// for that pixel.
func EvolvePixel(target color.RGBA, p Params, rng *rand.Rand) Individual {
	pop := NewPopulation(p.PopulationSize, rng)
	next := make(Population, p.PopulationSize)
	b := newBreeder(p)
	for g := 0; g < p.Iterations; g++ {
		b.step(pop, next, target, rng)
		pop, next = next, pop
	}
	best, _ := pop.Best(target)
	return best
}
