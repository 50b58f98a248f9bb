// Package client implements the agent side of the comprl wire protocol.
// Implement Agent (usually by embedding Base and overriding Step) and hand
// it to Client.Run to participate in games.
package client

// Agent reacts to server requests and notifications. All methods are called
// sequentially from the connection loop.
type Agent interface {
	// Auth returns the access token identifying the user.
	Auth() string

	// IsReady reports whether the agent wants to be queued for a game.
	// Returning false leaves the connection open without playing.
	IsReady() bool

	// Step computes the next action for the given observation.
	Step(observation []float64) []float64

	// OnStart is called when a game begins.
	OnStart(gameID string)

	// OnEnd is called when a game finished normally. won reports whether
	// this agent won; stats carries game-specific final values.
	OnEnd(won bool, stats []float64)

	// OnMessage receives informational messages from the server.
	OnMessage(msg string)

	// OnError receives error messages, e.g. the reason before a disconnect.
	OnError(msg string)
}

// Base provides default behaviour for everything except Step: it hands out
// the configured token, is always ready and ignores notifications. Embed it
// and override what you need.
type Base struct {
	Token string
}

func (b *Base) Auth() string           { return b.Token }
func (b *Base) IsReady() bool          { return true }
func (b *Base) OnStart(string)         {}
func (b *Base) OnEnd(bool, []float64)  {}
func (b *Base) OnMessage(string)       {}
func (b *Base) OnError(string)         {}
