// Package game defines the pluggable two-player game contract and the
// registry the server picks adapters from by their config name.
package game

import (
	"fmt"
	"sort"

	"github.com/comprl/comprl/internal/models"
)

// Adapter implements the rules of one match. The orchestrator owns the tick
// loop and the sessions; the adapter owns rules, scores and round state.
// All methods are called from the scheduler goroutine.
type Adapter interface {
	// ValidateAction reports whether a raw agent action is acceptable.
	// Rejected actions disconnect the sender.
	ValidateAction(action []float64) bool

	// Observation returns the vector the named player should see before
	// acting this tick (handling side-swap/symmetry internally).
	Observation(player models.PlayerID) []float64

	// Update advances one tick given both players' actions and reports
	// whether the whole match is over, not merely a round.
	Update(actions map[models.PlayerID][]float64) bool

	// PlayerWon reports whether the named player won. False while the
	// match is still in progress.
	PlayerWon(player models.PlayerID) bool

	// PlayerStats is the post-game summary sent to the named player.
	PlayerStats(player models.PlayerID) []float64

	// Scores holds the running per-player scores used for the persisted
	// result and the rating update.
	Scores() map[models.PlayerID]float64
}

// RecordingInfoProvider is an optional hook for adapters that want extra
// keys in the per-game recording file.
type RecordingInfoProvider interface {
	RecordingInfo() map[string]any
}

// Factory builds a fresh Adapter for a match between two players.
type Factory func(players [2]models.PlayerID) Adapter

var registry = map[string]Factory{}

// Register makes a game constructor selectable through the game_class
// config key. It is meant to be called from an adapter package's init and
// panics on duplicates, like database/sql driver registration.
func Register(name string, f Factory) {
	if f == nil {
		panic("game: Register with nil factory for " + name)
	}
	if _, dup := registry[name]; dup {
		panic("game: Register called twice for " + name)
	}
	registry[name] = f
}

// Lookup resolves a registered game by name.
func Lookup(name string) (Factory, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown game %q (registered: %v)", name, Names())
	}
	return f, nil
}

// Names lists the registered games, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
