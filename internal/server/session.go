package server

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/models"
	"github.com/comprl/comprl/internal/protocol"
)

// Session is the server side of one agent connection. It issues requests,
// matches replies by id and notifies the server when the peer misbehaves,
// times out or goes away.
//
// Sessions are owned by the scheduler goroutine. Every method must be called
// from there; the transport pumps hand their events back via the post
// function.
type Session struct {
	ID       models.PlayerID
	UserID   int64
	Username string

	transport Transport
	post      func(func())
	timeout   time.Duration
	log       *zap.Logger

	connected  bool
	lastCallID uint64
	pending    map[uint64]*pendingCall

	onDisconnect  func(*Session)
	onTimeout     func(*Session, string, time.Duration)
	onRemoteError func(*Session, string)
}

type pendingCall struct {
	method  string
	timer   *time.Timer
	resolve func(json.RawMessage)
}

func NewSession(t Transport, post func(func()), timeout time.Duration, log *zap.Logger) *Session {
	id := models.NewPlayerID()
	return &Session{
		ID:        id,
		transport: t,
		post:      post,
		timeout:   timeout,
		log:       log.With(zap.String("player_id", string(id))),
		connected: true,
		pending:   make(map[uint64]*pendingCall),
	}
}

func (s *Session) IsConnected() bool { return s.connected }

// call sends a request and registers resolve to run when the matching reply
// arrives. If no reply shows up within the session timeout, the timeout hook
// fires instead and resolve is dropped.
func (s *Session) call(method string, data any, resolve func(json.RawMessage)) {
	if !s.connected {
		return
	}
	s.lastCallID++
	id := s.lastCallID

	f, err := protocol.NewRequest(id, method, data)
	if err != nil {
		s.log.Error("failed to encode request", zap.String("method", method), zap.Error(err))
		return
	}

	timer := time.AfterFunc(s.timeout, func() {
		s.post(func() { s.expire(id) })
	})
	s.pending[id] = &pendingCall{method: method, timer: timer, resolve: resolve}

	if err := s.transport.Send(f); err != nil {
		// Leave the call pending; the timeout will take the connection down.
		s.log.Warn("failed to send request", zap.String("method", method), zap.Error(err))
	}
}

func (s *Session) notify(method string, data any) {
	if !s.connected {
		return
	}
	f, err := protocol.NewNotification(method, data)
	if err != nil {
		s.log.Error("failed to encode notification", zap.String("method", method), zap.Error(err))
		return
	}
	if err := s.transport.Send(f); err != nil {
		s.log.Warn("failed to send notification", zap.String("method", method), zap.Error(err))
	}
}

// expire runs when a pending call outlived the timeout. The reply handler
// and the timer race on the scheduler; whoever removes the call first wins
// and the loser is a no-op.
func (s *Session) expire(id uint64) {
	pc, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)
	if s.onTimeout != nil {
		s.onTimeout(s, pc.method, s.timeout)
	}
}

// handleFrame processes one frame from the agent. Agents may only send
// replies; anything else tears the connection down.
func (s *Session) handleFrame(f protocol.Frame) {
	if !s.connected {
		return
	}
	if !f.IsReply() {
		s.Disconnect("Invalid message")
		return
	}

	pc, ok := s.pending[f.ID]
	if !ok {
		// Stale reply, most likely the call already timed out.
		s.log.Debug("reply for unknown call", zap.Uint64("id", f.ID))
		return
	}

	if f.Error != "" {
		// The call stays pending so the timeout still closes the
		// connection if the agent never recovers.
		if s.onRemoteError != nil {
			s.onRemoteError(s, f.Error)
		}
		return
	}

	pc.timer.Stop()
	delete(s.pending, f.ID)
	pc.resolve(f.Result)
}

// Authenticate asks the agent for its access token.
func (s *Session) Authenticate(cb func(token string)) {
	s.call(protocol.MethodAuth, nil, func(raw json.RawMessage) {
		var reply protocol.AuthReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			s.Disconnect("Invalid message")
			return
		}
		cb(reply.Token)
	})
}

// IsReady asks the agent whether it wants to be queued for a game.
func (s *Session) IsReady(cb func(ready bool)) {
	s.call(protocol.MethodIsReady, nil, func(raw json.RawMessage) {
		var reply protocol.ReadyReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			s.Disconnect("Invalid message")
			return
		}
		cb(reply.Ready)
	})
}

// GetAction sends an observation and asks the agent for its next action.
func (s *Session) GetAction(observation []float64, cb func(action []float64)) {
	data := protocol.GetActionData{Observation: observation}
	s.call(protocol.MethodGetAction, data, func(raw json.RawMessage) {
		var reply protocol.ActionReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			s.Disconnect("Invalid message")
			return
		}
		cb(reply.Action)
	})
}

func (s *Session) NotifyStart(gameID models.GameID) {
	s.notify(protocol.MethodNotifyStart, protocol.StartData{GameID: string(gameID)})
}

func (s *Session) NotifyEnd(won bool, stats []float64) {
	s.notify(protocol.MethodNotifyEnd, protocol.EndData{Result: won, Stats: stats})
}

func (s *Session) NotifyInfo(msg string) {
	s.notify(protocol.MethodNotifyInfo, protocol.MessageData{Msg: msg})
}

func (s *Session) NotifyError(msg string) {
	s.notify(protocol.MethodNotifyError, protocol.MessageData{Msg: msg})
}

// Disconnect tells the agent why it is being dropped, closes the transport
// and runs the disconnect hook. Pending calls are cancelled without firing
// their continuations. Safe to call repeatedly.
func (s *Session) Disconnect(reason string) {
	if !s.connected {
		return
	}
	s.connected = false
	s.log.Info("disconnecting player", zap.String("reason", reason))

	if f, err := protocol.NewNotification(protocol.MethodNotifyError, protocol.MessageData{Msg: reason}); err == nil {
		s.transport.Send(f)
	}
	s.transport.Close(reason)
	s.failPending()
	if s.onDisconnect != nil {
		s.onDisconnect(s)
	}
}

// transportClosed runs when the read pump dies, i.e. the agent went away on
// its own. A disconnect initiated by us already flipped connected, so this
// only acts on remote closes.
func (s *Session) transportClosed() {
	if !s.connected {
		return
	}
	s.connected = false
	s.failPending()
	if s.onDisconnect != nil {
		s.onDisconnect(s)
	}
}

func (s *Session) failPending() {
	for id, pc := range s.pending {
		pc.timer.Stop()
		delete(s.pending, id)
	}
}
