package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/game"
	"github.com/comprl/comprl/internal/models"
)

// GameManager starts games, tracks the running ones and persists their
// results when they end. Owned by the scheduler goroutine.
type GameManager struct {
	factory game.Factory
	store   *database.GameStore
	dataDir string
	log     *zap.Logger

	games map[models.GameID]*GameInstance
}

func NewGameManager(factory game.Factory, store *database.GameStore, dataDir string, log *zap.Logger) *GameManager {
	return &GameManager{
		factory: factory,
		store:   store,
		dataDir: dataDir,
		log:     log,
		games:   make(map[models.GameID]*GameInstance),
	}
}

// StartGame creates a game between the two sessions and starts it. Extra
// finish callbacks are registered before the first tick so they cannot miss
// a game that ends immediately.
func (gm *GameManager) StartGame(players [2]*Session, extraFinish ...func(*GameInstance)) *GameInstance {
	g := newGameInstance(players, gm.factory, gm.dataDir, gm.log)
	g.OnFinish(gm.endGame)
	for _, cb := range extraFinish {
		g.OnFinish(cb)
	}
	gm.games[g.ID] = g
	gm.log.Info("game started",
		zap.String("game_id", string(g.ID)),
		zap.String("player1", string(players[0].ID)),
		zap.String("player2", string(players[1].ID)))
	g.Start()
	return g
}

func (gm *GameManager) endGame(g *GameInstance) {
	if _, ok := gm.games[g.ID]; !ok {
		return
	}
	gm.log.Info("game ended",
		zap.String("game_id", string(g.ID)),
		zap.Duration("duration", time.Since(g.StartTime)))

	if res := g.Result(); res == nil {
		gm.log.Error("game ended without a valid result", zap.String("game_id", string(g.ID)))
	} else if err := gm.store.Add(res); err != nil {
		gm.log.Error("failed to persist game result",
			zap.String("game_id", string(g.ID)), zap.Error(err))
	}
	delete(gm.games, g.ID)
}

// ForceGameEnd aborts every running game the player is part of.
func (gm *GameManager) ForceGameEnd(playerID models.PlayerID) {
	var involved []*GameInstance
	for _, g := range gm.games {
		if g.HasPlayer(playerID) {
			involved = append(involved, g)
		}
	}
	for _, g := range involved {
		gm.log.Info("force-ending game of disconnected player",
			zap.String("game_id", string(g.ID)),
			zap.String("player_id", string(playerID)))
		g.ForceEnd(playerID)
	}
}

func (gm *GameManager) ActiveCount() int { return len(gm.games) }

// ActiveGames returns the running games, for monitoring.
func (gm *GameManager) ActiveGames() []*GameInstance {
	games := make([]*GameInstance, 0, len(gm.games))
	for _, g := range gm.games {
		games = append(games, g)
	}
	return games
}
