package gateway

import (
	"math/rand"
	"sync"
)

// UsageEstimator supplies the command-usage figure for a guild. Discord
// does not expose command counts, so the default implementation is a
// seeded estimate; deployments tracking real usage can plug their own.
type UsageEstimator interface {
	CommandsUsed(guildID string) int
}

type RandomEstimator struct {
	rng *rand.Rand
	mu  sync.Mutex
}

func NewRandomEstimator() *RandomEstimator {
	return &RandomEstimator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// CommandsUsed returns a figure in [10, 109], matching the dashboard's
// historical estimate range.
func (e *RandomEstimator) CommandsUsed(_ string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(100) + 10
}

// FixedEstimator returns the same figure for every guild, for tests.
type FixedEstimator struct {
	Value int
}

func (e *FixedEstimator) CommandsUsed(_ string) int {
	return e.Value
}
