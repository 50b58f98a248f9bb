// Package duel is the built-in reference game: each tick both agents bid a
// single number, the higher bid takes the round, first to five rounds wins.
// It doubles as the fixture for integration tests and as a template for
// writing real adapters.
package duel

import (
	"math"

	"github.com/comprl/comprl/internal/game"
	"github.com/comprl/comprl/internal/models"
)

const (
	pointsToWin = 5
	maxRounds   = 50
)

func init() {
	game.Register("duel", New)
}

type Duel struct {
	players  [2]models.PlayerID
	scores   map[models.PlayerID]float64
	rounds   int
	finished bool
}

func New(players [2]models.PlayerID) game.Adapter {
	return &Duel{
		players: players,
		scores:  map[models.PlayerID]float64{players[0]: 0, players[1]: 0},
	}
}

// ValidateAction accepts any action whose first element is a finite bid.
// Extra elements are ignored.
func (d *Duel) ValidateAction(action []float64) bool {
	if len(action) < 1 {
		return false
	}
	return !math.IsNaN(action[0]) && !math.IsInf(action[0], 0)
}

func (d *Duel) Observation(player models.PlayerID) []float64 {
	opp := d.opponent(player)
	return []float64{d.scores[player], d.scores[opp], float64(d.rounds)}
}

func (d *Duel) Update(actions map[models.PlayerID][]float64) bool {
	if d.finished {
		return true
	}
	d.rounds++

	bid0 := actions[d.players[0]][0]
	bid1 := actions[d.players[1]][0]
	switch {
	case bid0 > bid1:
		d.scores[d.players[0]]++
	case bid1 > bid0:
		d.scores[d.players[1]]++
	}

	if d.scores[d.players[0]] >= pointsToWin ||
		d.scores[d.players[1]] >= pointsToWin ||
		d.rounds >= maxRounds {
		d.finished = true
	}
	return d.finished
}

func (d *Duel) PlayerWon(player models.PlayerID) bool {
	if !d.finished {
		return false
	}
	return d.scores[player] > d.scores[d.opponent(player)]
}

func (d *Duel) PlayerStats(player models.PlayerID) []float64 {
	return []float64{d.scores[player], d.scores[d.opponent(player)], float64(d.rounds)}
}

func (d *Duel) Scores() map[models.PlayerID]float64 {
	out := make(map[models.PlayerID]float64, len(d.scores))
	for id, score := range d.scores {
		out[id] = score
	}
	return out
}

// RecordingInfo adds the round count to the recording file.
func (d *Duel) RecordingInfo() map[string]any {
	return map[string]any{"game": "duel", "rounds": d.rounds}
}

func (d *Duel) opponent(player models.PlayerID) models.PlayerID {
	if player == d.players[0] {
		return d.players[1]
	}
	return d.players[0]
}
