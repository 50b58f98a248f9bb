package server

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/models"
	"github.com/comprl/comprl/internal/rating"
)

// MatchmakingManager pairs queued players into games. Pairing is stochastic:
// each queue pass scores the legal pairings for the longest-waiting player
// and samples one with probability proportional to its quality, so unlikely
// pairings still happen occasionally. Owned by the scheduler goroutine.
type MatchmakingManager struct {
	players  *PlayerManager
	games    *GameManager
	settings config.Matchmaking
	log      *zap.Logger

	queue         []queueEntry
	qualityScores map[qualityKey]float64

	// Overridable in tests for deterministic pairing.
	rng *rand.Rand
	now func() time.Time
}

type queueEntry struct {
	playerID     models.PlayerID
	user         models.User
	inQueueSince time.Time
}

// qualityKey caches quality per user pairing, independent of order.
type qualityKey struct {
	a, b string
}

func newQualityKey(u1, u2 string) qualityKey {
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	return qualityKey{a: u1, b: u2}
}

func NewMatchmakingManager(players *PlayerManager, games *GameManager, settings config.Matchmaking, log *zap.Logger) *MatchmakingManager {
	return &MatchmakingManager{
		players:       players,
		games:         games,
		settings:      settings,
		log:           log,
		qualityScores: make(map[qualityKey]float64),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		now:           time.Now,
	}
}

// ApplySettings swaps the matchmaking parameters, e.g. after a config
// reload. Takes effect on the next update pass.
func (m *MatchmakingManager) ApplySettings(settings config.Matchmaking) {
	m.settings = settings
}

// TryMatch asks the player whether it is ready for a game and queues it on a
// positive answer. Unauthenticated players are ignored.
func (m *MatchmakingManager) TryMatch(id models.PlayerID) {
	player := m.players.PlayerByID(id)
	if player == nil {
		return
	}
	player.IsReady(func(ready bool) {
		if !ready {
			return
		}
		player.NotifyInfo("Waiting in queue")
		m.enqueue(id)
	})
}

func (m *MatchmakingManager) enqueue(id models.PlayerID) {
	userID, ok := m.players.UserID(id)
	if !ok {
		m.log.Error("refusing to queue unauthenticated player",
			zap.String("player_id", string(id)))
		return
	}
	if m.inQueue(id) {
		return
	}
	user, err := m.players.User(userID)
	if err != nil {
		m.log.Error("failed to load user for queueing",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	m.queue = append(m.queue, queueEntry{
		playerID:     id,
		user:         *user,
		inQueueSince: m.now(),
	})
	m.log.Info("player queued",
		zap.String("user", user.Username),
		zap.String("player_id", string(id)),
		zap.Int("queue_length", len(m.queue)))
}

// Remove drops the player from the queue if present.
func (m *MatchmakingManager) Remove(id models.PlayerID) {
	for i, e := range m.queue {
		if e.playerID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *MatchmakingManager) inQueue(id models.PlayerID) bool {
	for _, e := range m.queue {
		if e.playerID == id {
			return true
		}
	}
	return false
}

func (m *MatchmakingManager) QueueLength() int { return len(m.queue) }

// Update runs one matchmaking pass. Quality scores are cached per pass only
// because the waiting time bonus changes between passes.
func (m *MatchmakingManager) Update() {
	m.qualityScores = make(map[qualityKey]float64)
	m.searchForMatches()
}

func (m *MatchmakingManager) minPlayersWaiting() int {
	return int(float64(m.players.AuthenticatedCount()) * m.settings.PercentageMinPlayersWaiting)
}

func (m *MatchmakingManager) searchForMatches() {
	if len(m.queue) < m.minPlayersWaiting() {
		return
	}

	i := 0
	for i < len(m.queue)-1 {
		if m.games.ActiveCount() >= m.settings.MaxParallelGames {
			m.log.Debug("parallel game limit reached",
				zap.Int("active_games", m.games.ActiveCount()))
			return
		}

		player1 := m.queue[i]
		type scoredEntry struct {
			entry   queueEntry
			quality float64
		}
		var candidates []scoredEntry
		var totalQuality float64
		for _, cand := range m.queue[i+1:] {
			if !legalMatch(player1, cand) {
				continue
			}
			q := m.matchQuality(player1, cand)
			if q <= m.settings.MatchQualityThreshold {
				continue
			}
			candidates = append(candidates, scoredEntry{entry: cand, quality: q})
			totalQuality += q
		}
		if len(candidates) == 0 {
			i++
			continue
		}

		pick := m.rng.Float64() * totalQuality
		chosen := candidates[len(candidates)-1]
		for _, c := range candidates {
			if pick < c.quality {
				chosen = c
				break
			}
			pick -= c.quality
		}
		m.log.Debug("players matched",
			zap.String("user1", player1.user.Username),
			zap.String("user2", chosen.entry.user.Username),
			zap.Float64("quality", chosen.quality))
		// The queue shrank by two, so the entry at i is a new player now
		// and gets its own pass without advancing.
		m.startGame(player1, chosen.entry)
	}
}

// legalMatch reports whether the two entries may play each other. A user
// must not play itself and two bots playing each other would be pointless.
func legalMatch(a, b queueEntry) bool {
	if a.user.ID == b.user.ID {
		return false
	}
	if a.user.Role == models.RoleBot && b.user.Role == models.RoleBot {
		return false
	}
	return true
}

// matchQuality scores a pairing as the predicted draw probability plus a
// bonus that grows with the combined time both players spent waiting.
func (m *MatchmakingManager) matchQuality(a, b queueEntry) float64 {
	key := newQualityKey(a.user.Username, b.user.Username)
	if q, ok := m.qualityScores[key]; ok {
		return q
	}

	now := m.now()
	combinedWait := now.Sub(a.inQueueSince).Seconds() + now.Sub(b.inQueueSince).Seconds()
	waitingBonus := math.Max(0, (combinedWait/60-1)*m.settings.PercentalTimeBonus)

	drawProb := rating.PredictDraw(
		rating.New(a.user.Mu, a.user.Sigma),
		rating.New(b.user.Mu, b.user.Sigma))

	q := drawProb + waitingBonus
	m.qualityScores[key] = q
	return q
}

// QualityScores returns the scores computed during the last update pass,
// for monitoring.
func (m *MatchmakingManager) QualityScores() map[[2]string]float64 {
	scores := make(map[[2]string]float64, len(m.qualityScores))
	for k, v := range m.qualityScores {
		scores[[2]string{k.a, k.b}] = v
	}
	return scores
}

// QueueEntries returns a snapshot of the queue, for monitoring.
func (m *MatchmakingManager) QueueEntries() []QueuedPlayer {
	entries := make([]QueuedPlayer, 0, len(m.queue))
	for _, e := range m.queue {
		entries = append(entries, QueuedPlayer{
			PlayerID:     e.playerID,
			Username:     e.user.Username,
			InQueueSince: e.inQueueSince,
		})
	}
	return entries
}

// QueuedPlayer is a monitoring view of one queue entry.
type QueuedPlayer struct {
	PlayerID     models.PlayerID
	Username     string
	InQueueSince time.Time
}

func (m *MatchmakingManager) startGame(e1, e2 queueEntry) {
	p1 := m.players.PlayerByID(e1.playerID)
	p2 := m.players.PlayerByID(e2.playerID)
	if p1 == nil || p2 == nil {
		// Queue and player manager disagree; drop the stale entries.
		m.log.Error("queued player is no longer connected",
			zap.String("player1", string(e1.playerID)),
			zap.String("player2", string(e2.playerID)))
		if p1 == nil {
			m.Remove(e1.playerID)
		}
		if p2 == nil {
			m.Remove(e2.playerID)
		}
		return
	}
	m.Remove(e1.playerID)
	m.Remove(e2.playerID)
	m.games.StartGame([2]*Session{p1, p2}, m.endGame)
}

// endGame updates ratings after a completed game and offers both players a
// new match. Games that ended in a disconnect leave ratings untouched.
func (m *MatchmakingManager) endGame(g *GameInstance) {
	res := g.Result()
	if res != nil && res.EndState != models.EndStateDisconnected {
		m.updateRatings(res)
	}
	for _, pid := range g.PlayerIDs() {
		m.TryMatch(pid)
	}
}

func (m *MatchmakingManager) updateRatings(res *models.GameResult) {
	mu1, sigma1, err := m.players.MatchmakingParameters(res.User1ID)
	if err != nil {
		m.log.Error("failed to load rating", zap.Int64("user_id", res.User1ID), zap.Error(err))
		return
	}
	mu2, sigma2, err := m.players.MatchmakingParameters(res.User2ID)
	if err != nil {
		m.log.Error("failed to load rating", zap.Int64("user_id", res.User2ID), zap.Error(err))
		return
	}

	r1, r2 := rating.Rate(rating.New(mu1, sigma1), rating.New(mu2, sigma2), res.Score1, res.Score2)

	if err := m.players.SetMatchmakingParameters(res.User1ID, r1.Mu, r1.Sigma); err != nil {
		m.log.Error("failed to store rating", zap.Int64("user_id", res.User1ID), zap.Error(err))
	}
	if err := m.players.SetMatchmakingParameters(res.User2ID, r2.Mu, r2.Sigma); err != nil {
		m.log.Error("failed to store rating", zap.Int64("user_id", res.User2ID), zap.Error(err))
	}
}
