package ai

import (
	"image/color"
	"math/rand/v2"
)

// Channels is the number of colour channels of an individual (R, G, B)
const Channels = 3

// MaxFitness is the fitness of an exact colour match
const MaxFitness = Channels * MaxChannelValue

// Individual is one candidate colour for a pixel
type Individual [Channels]Chromosome

// NewIndividual creates an individual from a colour
func NewIndividual(c color.RGBA) Individual {
	return Individual{Encode(c.R), Encode(c.G), Encode(c.B)}
}

func randomIndividual(rng *rand.Rand) Individual {
	var ind Individual
	for ch := range ind {
		ind[ch] = randomChromosome(rng)
	}
	return ind
}

// Color decodes the individual into an opaque colour
func (ind Individual) Color() color.RGBA {
	return color.RGBA{R: ind[0].Decode(), G: ind[1].Decode(), B: ind[2].Decode(), A: 0xff}
}

// Distance is the summed absolute channel difference to target
func (ind Individual) Distance(target color.RGBA) int {
	c := ind.Color()
	return abs(int(c.R)-int(target.R)) + abs(int(c.G)-int(target.G)) + abs(int(c.B)-int(target.B))
}

// Fitness maps the distance to target onto [0, MaxFitness]; higher is better
func (ind Individual) Fitness(target color.RGBA) int {
	return MaxFitness - ind.Distance(target)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
