package ai

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrConfig marks a fatal configuration error. It is returned before any
// generation runs.
var ErrConfig = errors.New("invalid configuration")

// CrossoverMode selects how parent channels are recombined
type CrossoverMode int

const (
	// CrossoverSinglePoint swaps the tails after one random cut
	CrossoverSinglePoint CrossoverMode = iota
	// CrossoverUniform swaps each bit with probability 1/2
	CrossoverUniform
)

func (m CrossoverMode) String() string {
	switch m {
	case CrossoverUniform:
		return "uniform"
	default:
		return "single-point"
	}
}

// Params holds the fixed parameters of an evolution run
type Params struct {
	ImgSize        int
	PopulationSize int
	Iterations     int
	MutationRate   float64
	CrossoverRate  float64
	TournamentSize int
	EliteSize      int

	// JumpRate is the chance of one extra random bit flip per child
	JumpRate  float64
	Crossover CrossoverMode

	Seed     uint64
	Workers  int
	LogEvery int
}

// DefaultParams returns the parameters of a standard run
func DefaultParams() Params {
	return Params{
		ImgSize:        100,
		PopulationSize: 6,
		Iterations:     50,
		MutationRate:   0.05,
		CrossoverRate:  0.8,
		TournamentSize: 3,
		EliteSize:      2,
		JumpRate:       0.1,
		Crossover:      CrossoverSinglePoint,
		Seed:           1,
		Workers:        runtime.GOMAXPROCS(0),
		LogEvery:       25,
	}
}

// Validate checks the invariants the GA relies on. The returned error wraps
// ErrConfig and names the failed invariant.
func (p Params) Validate() error {
	switch {
	case p.ImgSize <= 0:
		return fmt.Errorf("%w: image size must be positive, got %d", ErrConfig, p.ImgSize)
	case p.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be positive, got %d", ErrConfig, p.PopulationSize)
	case p.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrConfig, p.Iterations)
	case p.EliteSize < 0 || p.EliteSize > p.PopulationSize:
		return fmt.Errorf("%w: elite size %d exceeds population size %d", ErrConfig, p.EliteSize, p.PopulationSize)
	case p.TournamentSize <= 0 || p.TournamentSize > p.PopulationSize:
		return fmt.Errorf("%w: tournament size %d must be in [1, %d]", ErrConfig, p.TournamentSize, p.PopulationSize)
	case !isRate(p.MutationRate):
		return fmt.Errorf("%w: mutation rate %v outside [0, 1]", ErrConfig, p.MutationRate)
	case !isRate(p.CrossoverRate):
		return fmt.Errorf("%w: crossover rate %v outside [0, 1]", ErrConfig, p.CrossoverRate)
	case !isRate(p.JumpRate):
		return fmt.Errorf("%w: jump rate %v outside [0, 1]", ErrConfig, p.JumpRate)
	case p.Crossover != CrossoverSinglePoint && p.Crossover != CrossoverUniform:
		return fmt.Errorf("%w: unknown crossover mode %d", ErrConfig, p.Crossover)
	case GeneLength < 2 || 1<<GeneLength-1 < MaxChannelValue:
		return fmt.Errorf("%w: gene length %d cannot represent channel range 0..%d", ErrConfig, GeneLength, MaxChannelValue)
	}
	return nil
}

func isRate(r float64) bool {
	return r >= 0 && r <= 1
}

func (p Params) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}
