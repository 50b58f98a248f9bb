package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/game"
	"github.com/comprl/comprl/internal/monitor"
	"github.com/comprl/comprl/internal/protocol"
)

const (
	opsBufferSize        = 256
	monitorWriteInterval = 10 * time.Second
)

// Server hosts games between remote agents. All mutable state, including
// the player, game and matchmaking managers, is owned by a single scheduler
// goroutine running in Run. Transport pumps and timers never touch state
// directly; they post closures that the scheduler executes in order, so no
// manager needs locking.
type Server struct {
	log *zap.Logger

	players     *PlayerManager
	games       *GameManager
	matchmaking *MatchmakingManager

	ops  chan func()
	done chan struct{}

	rpcTimeout     time.Duration
	updateInterval time.Duration

	monitorPath      string
	lastMonitorWrite time.Time

	upgrader websocket.Upgrader
}

func New(cfg *config.Config, factory game.Factory, users *database.UserStore, gameStore *database.GameStore, log *zap.Logger) *Server {
	players := NewPlayerManager(users, log.Named("players"))
	games := NewGameManager(factory, gameStore, cfg.DataDir, log.Named("games"))
	matchmaking := NewMatchmakingManager(players, games, cfg.Matchmaking, log.Named("matchmaking"))

	return &Server{
		log:            log.Named("server"),
		players:        players,
		games:          games,
		matchmaking:    matchmaking,
		ops:            make(chan func(), opsBufferSize),
		done:           make(chan struct{}),
		rpcTimeout:     cfg.RPCTimeout(),
		updateInterval: cfg.UpdateInterval(),
		monitorPath:    cfg.MonitorLogPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run executes the scheduler loop until ctx is cancelled. Queued operations
// are drained before each matchmaking pass so game callbacks from the
// current tick are seen by the matchmaker.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.done)

	s.log.Info("server started", zap.Duration("update_interval", s.updateInterval))
	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.players.DisconnectAll("Server shutting down")
			s.log.Info("server stopped")
			return nil
		case op := <-s.ops:
			op()
		case <-ticker.C:
			s.drainOps()
			s.onUpdate()
		}
	}
}

// post hands an operation to the scheduler goroutine. Called from transport
// pumps and timers. Operations posted after shutdown are dropped.
func (s *Server) post(op func()) {
	select {
	case s.ops <- op:
	case <-s.done:
	}
}

func (s *Server) drainOps() {
	for {
		select {
		case op := <-s.ops:
			op()
		default:
			return
		}
	}
}

// AcceptConnection upgrades an HTTP request to a websocket session and
// registers it with the scheduler. Satisfies http.HandlerFunc.
func (s *Server) AcceptConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	t := newWSTransport(conn)
	sess := NewSession(t, s.post, s.rpcTimeout, s.log.Named("session"))
	sess.onDisconnect = s.onDisconnect
	sess.onTimeout = s.onTimeout
	sess.onRemoteError = s.onRemoteError

	// Register before the pumps start so no frame can beat the connect op.
	s.post(func() { s.onConnect(sess) })
	t.start(
		func(f protocol.Frame) { s.post(func() { sess.handleFrame(f) }) },
		func() { s.post(func() { sess.Disconnect("Invalid message") }) },
		func() { s.post(func() { sess.transportClosed() }) },
	)
}

func (s *Server) onConnect(sess *Session) {
	s.log.Info("player connected", zap.String("player_id", string(sess.ID)))
	s.players.Add(sess)
	sess.Authenticate(func(token string) {
		if !s.players.Auth(sess.ID, token) {
			sess.Disconnect("Authentication failed")
			return
		}
		s.matchmaking.TryMatch(sess.ID)
		sess.NotifyInfo("Authentication successful")
	})
}

// onDisconnect runs exactly once per session, whichever side initiated the
// disconnect. Matchmaking and player bookkeeping are cleaned up before any
// game is aborted so the cascade cannot re-queue the leaving player.
func (s *Server) onDisconnect(sess *Session) {
	s.log.Info("player disconnected",
		zap.String("user", sess.Username),
		zap.String("player_id", string(sess.ID)))
	s.matchmaking.Remove(sess.ID)
	s.players.Remove(sess)
	s.games.ForceGameEnd(sess.ID)
}

func (s *Server) onTimeout(sess *Session, method string, timeout time.Duration) {
	s.log.Info("player timed out",
		zap.String("user", sess.Username),
		zap.String("player_id", string(sess.ID)),
		zap.String("method", method))
	sess.Disconnect(fmt.Sprintf("Timeout after %.0fs", timeout.Seconds()))
}

func (s *Server) onRemoteError(sess *Session, msg string) {
	if sess.IsConnected() {
		s.log.Error("agent reported an error",
			zap.String("user", sess.Username),
			zap.String("player_id", string(sess.ID)),
			zap.String("error", msg))
	} else {
		s.log.Info("disconnected agent reported an error",
			zap.String("player_id", string(sess.ID)),
			zap.String("error", msg))
	}
}

func (s *Server) onUpdate() {
	s.matchmaking.Update()
	s.writeMonitoringData()
}

// ApplyMatchmakingSettings swaps the matchmaking tunables at runtime, e.g.
// after a SIGHUP config reload. Safe to call from any goroutine.
func (s *Server) ApplyMatchmakingSettings(settings config.Matchmaking) {
	s.post(func() {
		s.matchmaking.ApplySettings(settings)
		s.log.Info("matchmaking settings updated",
			zap.Float64("match_quality_threshold", settings.MatchQualityThreshold),
			zap.Int("max_parallel_games", settings.MaxParallelGames))
	})
}

func (s *Server) writeMonitoringData() {
	if s.monitorPath == "" {
		return
	}
	now := time.Now()
	if now.Sub(s.lastMonitorWrite) < monitorWriteInterval {
		return
	}
	s.lastMonitorWrite = now

	snap := s.buildSnapshot(now)
	if err := os.WriteFile(s.monitorPath, []byte(monitor.Render(snap)), 0o644); err != nil {
		s.log.Error("failed to write monitoring data",
			zap.String("path", s.monitorPath), zap.Error(err))
	}
}

func (s *Server) buildSnapshot(now time.Time) *monitor.Snapshot {
	snap := &monitor.Snapshot{Timestamp: now}

	for _, sess := range s.players.ConnectedSessions() {
		snap.Players = append(snap.Players, monitor.Player{
			Username: orDash(sess.Username),
			PlayerID: string(sess.ID),
		})
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		if snap.Players[i].Username != snap.Players[j].Username {
			return snap.Players[i].Username < snap.Players[j].Username
		}
		return snap.Players[i].PlayerID < snap.Players[j].PlayerID
	})

	for _, g := range s.games.ActiveGames() {
		ids := g.PlayerIDs()
		snap.Games = append(snap.Games, monitor.Game{
			GameID:  string(g.ID),
			Player1: string(ids[0]),
			Player2: string(ids[1]),
		})
	}
	sort.Slice(snap.Games, func(i, j int) bool {
		return snap.Games[i].GameID < snap.Games[j].GameID
	})

	// Queue order is wait order, keep it.
	for _, e := range s.matchmaking.QueueEntries() {
		snap.Queue = append(snap.Queue, monitor.QueueEntry{
			Username: orDash(e.Username),
			PlayerID: string(e.PlayerID),
			Since:    e.InQueueSince,
		})
	}

	for pair, score := range s.matchmaking.QualityScores() {
		snap.Qualities = append(snap.Qualities, monitor.Quality{
			User1: pair[0],
			User2: pair[1],
			Score: score,
		})
	}
	sort.Slice(snap.Qualities, func(i, j int) bool {
		if snap.Qualities[i].User1 != snap.Qualities[j].User1 {
			return snap.Qualities[i].User1 < snap.Qualities[j].User1
		}
		return snap.Qualities[i].User2 < snap.Qualities[j].User2
	})

	return snap
}

func orDash(username string) string {
	if username == "" {
		return "-"
	}
	return username
}
