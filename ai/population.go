package ai

import (
	"cmp"
	"image/color"
	"math/rand/v2"
	"slices"
)

// Population is the set of candidate colours competing for one pixel
type Population []Individual

// NewPopulation creates a random population of the given size
func NewPopulation(size int, rng *rand.Rand) Population {
	pop := make(Population, size)
	pop.randomize(rng)
	return pop
}

func (pop Population) randomize(rng *rand.Rand) {
	for i := range pop {
		pop[i] = randomIndividual(rng)
	}
}

// Evaluate returns the fitness of every individual, in population order
func (pop Population) Evaluate(target color.RGBA) []int {
	fitness := make([]int, len(pop))
	pop.evaluate(target, fitness)
	return fitness
}

func (pop Population) evaluate(target color.RGBA, fitness []int) {
	for i, ind := range pop {
		fitness[i] = ind.Fitness(target)
	}
}

// Best returns the fittest individual and its fitness. Ties go to the lower index.
func (pop Population) Best(target color.RGBA) (Individual, int) {
	best, bestFitness := 0, -1
	for i, ind := range pop {
		if f := ind.Fitness(target); f > bestFitness {
			best, bestFitness = i, f
		}
	}
	return pop[best], bestFitness
}

// FitnessStats returns the mean, max and min fitness of the population
func (pop Population) FitnessStats(target color.RGBA) (avg float64, maxFit, minFit int) {
	if len(pop) == 0 {
		return 0, 0, 0
	}
	maxFit, minFit = -1, MaxFitness+1
	sum := 0
	for _, ind := range pop {
		f := ind.Fitness(target)
		sum += f
		maxFit = max(maxFit, f)
		minFit = min(minFit, f)
	}
	return float64(sum) / float64(len(pop)), maxFit, minFit
}

// Rank returns population indices ordered by descending fitness. The sort is
// stable, so equal fitness keeps the original index order.
func Rank(fitness []int) []int {
	order := make([]int, len(fitness))
	rank(fitness, order)
	return order
}

func rank(fitness []int, order []int) {
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(fitness[b], fitness[a])
	})
}

// breeder holds the scratch buffers for advancing populations. One breeder
// serves many pixels sequentially but is never shared between goroutines.
type breeder struct {
	params  Params
	fitness []int
	order   []int
	draw    []int
}

func newBreeder(p Params) *breeder {
	return &breeder{
		params:  p,
		fitness: make([]int, p.PopulationSize),
		order:   make([]int, p.PopulationSize),
		draw:    make([]int, p.PopulationSize),
	}
}

// Step builds the next generation of pop into next: elites first, then
// children of tournament-selected parents. len(next) must equal
// p.PopulationSize and next must not alias pop.
func Step(pop, next Population, target color.RGBA, p Params, rng *rand.Rand) {
	newBreeder(p).step(pop, next, target, rng)
}

func (b *breeder) step(pop, next Population, target color.RGBA, rng *rand.Rand) {
	pop.evaluate(target, b.fitness)
	rank(b.fitness, b.order)

	i := 0
	for ; i < b.params.EliteSize; i++ {
		next[i] = pop[b.order[i]]
	}
	for i < len(next) {
		p1 := pop[b.tournament(rng)]
		p2 := pop[b.tournament(rng)]
		c1, c2 := b.breed(p1, p2, rng)
		next[i] = c1
		i++
		if i < len(next) {
			next[i] = c2
			i++
		}
	}
}

// tournament draws TournamentSize distinct individuals and returns the index
// of the fittest. Ties go to the lower index.
func (b *breeder) tournament(rng *rand.Rand) int {
	n := len(b.fitness)
	for i := range b.draw {
		b.draw[i] = i
	}
	best := -1
	for k := 0; k < b.params.TournamentSize; k++ {
		j := k + rng.IntN(n-k)
		b.draw[k], b.draw[j] = b.draw[j], b.draw[k]
		c := b.draw[k]
		if best < 0 || b.fitness[c] > b.fitness[best] || (b.fitness[c] == b.fitness[best] && c < best) {
			best = c
		}
	}
	return best
}

func (b *breeder) breed(p1, p2 Individual, rng *rand.Rand) (Individual, Individual) {
	var c1, c2 Individual
	for ch := range Channels {
		if b.params.Crossover == CrossoverUniform {
			c1[ch], c2[ch] = UniformCrossover(p1[ch], p2[ch], b.params.CrossoverRate, rng)
		} else {
			c1[ch], c2[ch] = Crossover(p1[ch], p2[ch], b.params.CrossoverRate, rng)
		}
	}
	return b.mutate(c1, rng), b.mutate(c2, rng)
}

func (b *breeder) mutate(ind Individual, rng *rand.Rand) Individual {
	for ch := range ind {
		ind[ch] = ind[ch].Mutate(b.params.MutationRate, rng)
	}
	if rng.Float64() < b.params.JumpRate {
		ch, bit := rng.IntN(Channels), rng.IntN(GeneLength)
		ind[ch][bit] = !ind[ch][bit]
	}
	return ind
}
