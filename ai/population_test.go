package ai

import (
	"image/color"
	"slices"
	"testing"
)

var orange = color.RGBA{R: 200, G: 50, B: 10, A: 0xff}

func TestFitnessTransform(t *testing.T) {
	tests := []struct {
		c    color.RGBA
		want int
	}{
		{orange, MaxFitness},
		{color.RGBA{R: 201, G: 50, B: 10, A: 0xff}, MaxFitness - 1},
		{color.RGBA{R: 190, G: 60, B: 0, A: 0xff}, MaxFitness - 30},
		{color.RGBA{R: 0, G: 255, B: 255, A: 0xff}, MaxFitness - 200 - 205 - 245},
	}
	for _, tt := range tests {
		if got := NewIndividual(tt.c).Fitness(orange); got != tt.want {
			t.Fatalf("Fitness(%v) = %d, want %d", tt.c, got, tt.want)
		}
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 0xff}
	if got := NewIndividual(color.RGBA{A: 0xff}).Fitness(white); got != 0 {
		t.Fatalf("worst fitness = %d, want 0", got)
	}
}

func TestRankIsStable(t *testing.T) {
	got := Rank([]int{5, 9, 5, 9, 1, 5})
	want := []int{1, 3, 0, 2, 5, 4}
	if !slices.Equal(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestBestPrefersLowerIndex(t *testing.T) {
	pop := Population{
		NewIndividual(color.RGBA{R: 190, G: 50, B: 10}),
		NewIndividual(color.RGBA{R: 210, G: 50, B: 10}),
		NewIndividual(color.RGBA{R: 0, G: 0, B: 0}),
	}
	best, fitness := pop.Best(orange)
	if best != pop[0] || fitness != MaxFitness-10 {
		t.Fatalf("Best = %v (%d), want first individual", best.Color(), fitness)
	}
}

func TestStepKeepsPopulationSize(t *testing.T) {
	for _, size := range []int{2, 5, 6, 7, 12} {
		p := DefaultParams()
		p.PopulationSize = size
		p.EliteSize = min(2, size)
		p.TournamentSize = min(3, size)
		rng := PixelRand(uint64(size), 0)
		pop := NewPopulation(size, rng)
		next := make(Population, size)
		b := newBreeder(p)
		for range 20 {
			b.step(pop, next, orange, rng)
			pop, next = next, pop
			if len(pop) != size {
				t.Fatalf("population size %d, want %d", len(pop), size)
			}
		}
	}
}

func TestStepCarriesElitesUnmodified(t *testing.T) {
	p := DefaultParams()
	rng := PixelRand(7, 0)
	pop := NewPopulation(p.PopulationSize, rng)
	order := Rank(pop.Evaluate(orange))
	next := make(Population, p.PopulationSize)
	Step(pop, next, orange, p, rng)
	for i := 0; i < p.EliteSize; i++ {
		if next[i] != pop[order[i]] {
			t.Fatalf("elite %d = %v, want %v", i, next[i].Color(), pop[order[i]].Color())
		}
	}
}

func TestElitismNeverLosesBestFitness(t *testing.T) {
	p := DefaultParams()
	for seed := range uint64(50) {
		rng := PixelRand(seed, 0)
		target := color.RGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 0xff}
		pop := NewPopulation(p.PopulationSize, rng)
		next := make(Population, p.PopulationSize)
		b := newBreeder(p)
		_, prev := pop.Best(target)
		for g := range p.Iterations {
			b.step(pop, next, target, rng)
			pop, next = next, pop
			_, best := pop.Best(target)
			if best < prev {
				t.Fatalf("seed %d generation %d: best fitness dropped from %d to %d", seed, g, prev, best)
			}
			prev = best
		}
	}
}

func TestTournamentOverWholePopulationPicksBest(t *testing.T) {
	p := DefaultParams()
	p.TournamentSize = p.PopulationSize
	b := newBreeder(p)
	copy(b.fitness, []int{10, 40, 20, 40, 5, 0})
	rng := PixelRand(1, 1)
	for range 100 {
		if got := b.tournament(rng); got != 1 {
			t.Fatalf("tournament = %d, want 1", got)
		}
	}
}

func TestTournamentSizeOneIsUniform(t *testing.T) {
	p := DefaultParams()
	p.TournamentSize = 1
	b := newBreeder(p)
	rng := PixelRand(2, 2)
	counts := make([]int, p.PopulationSize)
	for range 6000 {
		counts[b.tournament(rng)]++
	}
	for i, n := range counts {
		if n < 800 || n > 1200 {
			t.Fatalf("index %d drawn %d times out of 6000: %v", i, n, counts)
		}
	}
}

func TestConvergesTowardTarget(t *testing.T) {
	p := DefaultParams()
	const runs = 100
	improved := 0
	for seed := range uint64(runs) {
		initial := NewPopulation(p.PopulationSize, PixelRand(seed, 0))
		start, _ := initial.Best(orange)
		final := EvolvePixel(orange, p, PixelRand(seed, 0))
		if final.Distance(orange) < start.Distance(orange) {
			improved++
		}
	}
	if improved < runs*95/100 {
		t.Fatalf("only %d of %d runs improved on the initial population", improved, runs)
	}
}
