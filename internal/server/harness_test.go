package server

import (
	"encoding/json"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/game"
	"github.com/comprl/comprl/internal/models"
	"github.com/comprl/comprl/internal/protocol"
)

// fakeTransport records outgoing frames so tests can inspect requests and
// feed replies back through the session.
type fakeTransport struct {
	sent        []protocol.Frame
	closed      bool
	closeReason string
}

func (t *fakeTransport) Send(f protocol.Frame) error {
	t.sent = append(t.sent, f)
	return nil
}

func (t *fakeTransport) Close(reason string) {
	if !t.closed {
		t.closed = true
		t.closeReason = reason
	}
}

// lastRequest returns the newest frame carrying a call id.
func (t *fakeTransport) lastRequest(tb testing.TB) protocol.Frame {
	tb.Helper()
	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].ID != 0 {
			return t.sent[i]
		}
	}
	tb.Fatal("no request sent")
	return protocol.Frame{}
}

func (t *fakeTransport) requests(method string) []protocol.Frame {
	var out []protocol.Frame
	for _, f := range t.sent {
		if f.ID != 0 && f.Method == method {
			out = append(out, f)
		}
	}
	return out
}

func (t *fakeTransport) notifications(method string) []protocol.Frame {
	var out []protocol.Frame
	for _, f := range t.sent {
		if f.ID == 0 && f.Method == method {
			out = append(out, f)
		}
	}
	return out
}

func defaultMatchmaking() config.Matchmaking {
	return config.Matchmaking{
		MatchQualityThreshold:       0.3,
		PercentageMinPlayersWaiting: 0.1,
		PercentalTimeBonus:          0.1,
		MaxParallelGames:            100,
	}
}

// harness wires the managers the way the server does, but with inline
// posting and fake transports so tests drive everything synchronously.
type harness struct {
	t           *testing.T
	users       *database.UserStore
	gameStore   *database.GameStore
	players     *PlayerManager
	games       *GameManager
	matchmaking *MatchmakingManager
	dataDir     string
}

func newHarness(t *testing.T, factory game.Factory, settings config.Matchmaking) *harness {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "comprl.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	users := database.NewUserStore(db)
	gameStore := database.NewGameStore(db)
	dataDir := t.TempDir()

	players := NewPlayerManager(users, log)
	games := NewGameManager(factory, gameStore, dataDir, log)
	matchmaking := NewMatchmakingManager(players, games, settings, log)
	matchmaking.rng = rand.New(rand.NewSource(1))

	return &harness{
		t:           t,
		users:       users,
		gameStore:   gameStore,
		players:     players,
		games:       games,
		matchmaking: matchmaking,
		dataDir:     dataDir,
	}
}

func (h *harness) addUser(username, token string, role models.UserRole) int64 {
	h.t.Helper()
	id, err := h.users.Add(username, []byte("hash"), token, role)
	if err != nil {
		h.t.Fatalf("add user %s: %v", username, err)
	}
	return id
}

// connect creates an authenticated session backed by a fake transport,
// wired with the same disconnect cascade the server installs.
func (h *harness) connect(token string) (*Session, *fakeTransport) {
	h.t.Helper()
	ft := &fakeTransport{}
	sess := NewSession(ft, func(op func()) { op() }, time.Hour, zap.NewNop())
	sess.onDisconnect = func(s *Session) {
		h.matchmaking.Remove(s.ID)
		h.players.Remove(s)
		h.games.ForceGameEnd(s.ID)
	}
	h.players.Add(sess)
	if !h.players.Auth(sess.ID, token) {
		h.t.Fatalf("auth failed for token %s", token)
	}
	return sess, ft
}

// reply resolves the newest pending request on the session.
func (h *harness) reply(sess *Session, ft *fakeTransport, result any) {
	h.t.Helper()
	req := ft.lastRequest(h.t)
	raw, err := json.Marshal(result)
	if err != nil {
		h.t.Fatalf("marshal reply: %v", err)
	}
	sess.handleFrame(protocol.Frame{ID: req.ID, Result: raw})
}

// replyTo resolves the newest pending request for the given method, which
// matters when requests of several kinds are in flight at once.
func (h *harness) replyTo(sess *Session, ft *fakeTransport, method string, result any) {
	h.t.Helper()
	reqs := ft.requests(method)
	if len(reqs) == 0 {
		h.t.Fatalf("no %s request sent", method)
	}
	req := reqs[len(reqs)-1]
	raw, err := json.Marshal(result)
	if err != nil {
		h.t.Fatalf("marshal reply: %v", err)
	}
	sess.handleFrame(protocol.Frame{ID: req.ID, Result: raw})
}

// queueUp drives the session through the ready handshake into the queue.
func (h *harness) queueUp(sess *Session, ft *fakeTransport) {
	h.t.Helper()
	h.matchmaking.TryMatch(sess.ID)
	if got := len(ft.requests(protocol.MethodIsReady)); got == 0 {
		h.t.Fatal("no is_ready request sent")
	}
	h.reply(sess, ft, protocol.ReadyReply{Ready: true})
}

// backdate pretends the player has been waiting since the given duration.
func (h *harness) backdate(sess *Session, ago time.Duration) {
	h.t.Helper()
	for i := range h.matchmaking.queue {
		if h.matchmaking.queue[i].playerID == sess.ID {
			h.matchmaking.queue[i].inQueueSince = time.Now().Add(-ago)
			return
		}
	}
	h.t.Fatalf("player %s not in queue", sess.ID)
}

// scriptGame is a deterministic adapter for orchestration tests. It ends
// after a fixed number of ticks and declares the configured winner.
type scriptGame struct {
	players   [2]models.PlayerID
	ticks     int
	maxTicks  int
	winnerIdx int // index into players, -1 for draw
}

func scriptFactory(maxTicks, winnerIdx int) game.Factory {
	return func(players [2]models.PlayerID) game.Adapter {
		return &scriptGame{players: players, maxTicks: maxTicks, winnerIdx: winnerIdx}
	}
}

func (g *scriptGame) ValidateAction(action []float64) bool {
	return len(action) == 1 && action[0] >= 0
}

func (g *scriptGame) Observation(models.PlayerID) []float64 {
	return []float64{float64(g.ticks)}
}

func (g *scriptGame) Update(map[models.PlayerID][]float64) bool {
	g.ticks++
	return g.ticks >= g.maxTicks
}

func (g *scriptGame) PlayerWon(id models.PlayerID) bool {
	return g.ticks >= g.maxTicks && g.winnerIdx >= 0 && g.players[g.winnerIdx] == id
}

func (g *scriptGame) PlayerStats(models.PlayerID) []float64 {
	return []float64{float64(g.ticks)}
}

func (g *scriptGame) Scores() map[models.PlayerID]float64 {
	scores := map[models.PlayerID]float64{g.players[0]: 0, g.players[1]: 0}
	if g.ticks >= g.maxTicks && g.winnerIdx >= 0 {
		scores[g.players[g.winnerIdx]] = 1
	}
	return scores
}
