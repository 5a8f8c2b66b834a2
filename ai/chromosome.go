package ai

import "math/rand/v2"

const (
	// GeneLength is the number of bits encoding one colour channel
	GeneLength = 8
	// MaxChannelValue is the largest value of a colour channel
	MaxChannelValue = 255
)

// Chromosome is the bit encoding of one colour channel, most significant bit first
type Chromosome [GeneLength]bool

// Encode converts a channel value into its gene sequence
func Encode(v uint8) Chromosome {
	var c Chromosome
	for i := range c {
		c[i] = v&(1<<(GeneLength-1-i)) != 0
	}
	return c
}

// Decode converts the gene sequence back into a channel value
func (c Chromosome) Decode() uint8 {
	var v uint8
	for _, bit := range c {
		v <<= 1
		if bit {
			v |= 1
		}
	}
	return v
}

// Mutate flips every bit independently with probability rate
func (c Chromosome) Mutate(rate float64, rng *rand.Rand) Chromosome {
	for i := range c {
		if rng.Float64() < rate {
			c[i] = !c[i]
		}
	}
	return c
}

// Crossover performs single-point crossover with probability rate. The cut is
// drawn from [1, GeneLength-1] so both parents always contribute bits.
func Crossover(a, b Chromosome, rate float64, rng *rand.Rand) (Chromosome, Chromosome) {
	if rng.Float64() >= rate {
		return a, b
	}
	point := 1 + rng.IntN(GeneLength-1)
	for i := point; i < GeneLength; i++ {
		a[i], b[i] = b[i], a[i]
	}
	return a, b
}

// UniformCrossover swaps each bit between the parents with probability 1/2,
// applied with probability rate.
func UniformCrossover(a, b Chromosome, rate float64, rng *rand.Rand) (Chromosome, Chromosome) {
	if rng.Float64() >= rate {
		return a, b
	}
	for i := range a {
		if rng.IntN(2) == 0 {
			a[i], b[i] = b[i], a[i]
		}
	}
	return a, b
}

func randomChromosome(rng *rand.Rand) Chromosome {
	return Encode(uint8(rng.Uint32()))
}
