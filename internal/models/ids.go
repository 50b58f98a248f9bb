package models

import "github.com/google/uuid"

// PlayerID identifies one live connection. A user running two agents holds
// two distinct player IDs.
type PlayerID string

// GameID identifies a single match, live and in the games table.
type GameID string

func NewPlayerID() PlayerID {
	return PlayerID(uuid.NewString())
}

func NewGameID() GameID {
	return GameID(uuid.NewString())
}

// NewToken mints the opaque credential stored on a user row.
func NewToken() string {
	return uuid.NewString()
}
