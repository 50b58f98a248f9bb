package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/game"
	"github.com/comprl/comprl/internal/models"
)

const recordingDir = "game_actions"

// GameInstance drives one running game between two sessions. Each tick it
// requests an action from both players concurrently and advances the game
// exactly once when both replies are in. A disconnect at any point aborts
// the game in favour of the remaining player.
//
// Owned by the scheduler goroutine.
type GameInstance struct {
	ID        models.GameID
	StartTime time.Time

	players map[models.PlayerID]*Session
	order   [2]models.PlayerID
	adapter game.Adapter
	dataDir string
	log     *zap.Logger

	finishCallbacks []func(*GameInstance)
	actions         [][][]float64
	disconnectedID  models.PlayerID
	ended           bool
}

func newGameInstance(players [2]*Session, factory game.Factory, dataDir string, log *zap.Logger) *GameInstance {
	order := [2]models.PlayerID{players[0].ID, players[1].ID}
	id := models.NewGameID()
	return &GameInstance{
		ID:        id,
		StartTime: time.Now(),
		players: map[models.PlayerID]*Session{
			players[0].ID: players[0],
			players[1].ID: players[1],
		},
		order:   order,
		adapter: factory(order),
		dataDir: dataDir,
		log:     log.With(zap.String("game_id", string(id))),
		actions: [][][]float64{},
	}
}

// OnFinish registers a callback that runs once when the game ends, before
// the players are notified. Callbacks run in registration order.
func (g *GameInstance) OnFinish(cb func(*GameInstance)) {
	g.finishCallbacks = append(g.finishCallbacks, cb)
}

func (g *GameInstance) Start() {
	g.StartTime = time.Now()
	for _, pid := range g.order {
		g.players[pid].NotifyStart(g.ID)
	}
	g.runTick()
}

func (g *GameInstance) runTick() {
	if g.ended {
		return
	}
	actions := make(map[models.PlayerID][]float64, len(g.players))
	for _, pid := range g.order {
		pid := pid
		sess := g.players[pid]
		sess.GetAction(g.adapter.Observation(pid), func(action []float64) {
			if !g.adapter.ValidateAction(action) {
				// The disconnect cascades through ForceEnd before we
				// continue, so the tick below sees the aborted game.
				sess.Disconnect("Invalid action")
			}
			actions[pid] = action
			if len(actions) < len(g.players) {
				return
			}
			if g.ended || g.disconnectedID != "" {
				return
			}
			g.actions = append(g.actions, [][]float64{actions[g.order[0]], actions[g.order[1]]})
			if g.adapter.Update(actions) {
				g.finish("game over")
			} else {
				g.runTick()
			}
		})
	}
}

// ForceEnd aborts the game because the given player dropped out. The
// recording is discarded and only the surviving player is notified.
func (g *GameInstance) ForceEnd(playerID models.PlayerID) {
	if g.ended {
		return
	}
	g.disconnectedID = playerID
	g.finish("player disconnected")
}

func (g *GameInstance) finish(reason string) {
	if g.ended {
		return
	}
	g.ended = true
	g.log.Debug("game finished", zap.String("reason", reason))

	if g.disconnectedID == "" {
		g.saveRecording()
	}
	for _, cb := range g.finishCallbacks {
		cb(g)
	}
	for _, pid := range g.order {
		if pid == g.disconnectedID {
			continue
		}
		sess := g.players[pid]
		if !sess.IsConnected() {
			continue
		}
		sess.NotifyEnd(g.adapter.PlayerWon(pid), g.adapter.PlayerStats(pid))
	}
}

// Result builds the database row for this game, or nil if either session
// never authenticated.
func (g *GameInstance) Result() *models.GameResult {
	p1, p2 := g.order[0], g.order[1]
	u1 := g.players[p1].UserID
	u2 := g.players[p2].UserID
	if u1 == 0 || u2 == 0 {
		return nil
	}

	endState := models.EndStateDraw
	var winnerID *int64
	if g.adapter.PlayerWon(p1) {
		endState = models.EndStateWin
		winnerID = &u1
	} else if g.adapter.PlayerWon(p2) {
		endState = models.EndStateWin
		winnerID = &u2
	}

	var disconnectedID *int64
	if g.disconnectedID != "" {
		endState = models.EndStateDisconnected
		winnerID = nil
		if g.disconnectedID == p1 {
			disconnectedID = &u1
		} else {
			disconnectedID = &u2
		}
	}

	scores := g.adapter.Scores()
	return &models.GameResult{
		GameID:         g.ID,
		User1ID:        u1,
		User2ID:        u2,
		Score1:         scores[p1],
		Score2:         scores[p2],
		StartTime:      g.StartTime,
		EndState:       endState,
		WinnerID:       winnerID,
		DisconnectedID: disconnectedID,
	}
}

func (g *GameInstance) HasPlayer(id models.PlayerID) bool {
	_, ok := g.players[id]
	return ok
}

func (g *GameInstance) PlayerIDs() [2]models.PlayerID { return g.order }

// saveRecording writes the action history next to whatever extra state the
// adapter wants persisted. Failures are logged but never abort the game.
func (g *GameInstance) saveRecording() {
	info := map[string]any{}
	if p, ok := g.adapter.(game.RecordingInfoProvider); ok {
		for k, v := range p.RecordingInfo() {
			info[k] = v
		}
	}
	info["actions"] = g.actions

	dir := filepath.Join(g.dataDir, recordingDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		g.log.Error("failed to create recording directory", zap.Error(err))
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		g.log.Error("failed to encode game recording", zap.Error(err))
		return
	}
	path := filepath.Join(dir, string(g.ID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		g.log.Error("failed to save game recording", zap.Error(err))
	}
}
