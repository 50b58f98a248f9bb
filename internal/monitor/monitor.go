// Package monitor renders and parses the plain-text status file the server
// periodically writes for external monitoring tools. The format is line
// oriented and ends with an END marker so readers can detect files caught
// mid-write.
package monitor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used throughout the status file.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Snapshot is one self-contained server status dump.
type Snapshot struct {
	Timestamp time.Time
	Players   []Player
	Games     []Game
	Queue     []QueueEntry
	Qualities []Quality
}

// Player is one connected session. Username is "-" until the session
// authenticates.
type Player struct {
	Username string
	PlayerID string
}

// Game is one running game with the player ids of both participants.
type Game struct {
	GameID  string
	Player1 string
	Player2 string
}

// QueueEntry is one player waiting for a match.
type QueueEntry struct {
	Username string
	PlayerID string
	Since    time.Time
}

// Quality is the matchmaking score computed for a user pairing during the
// last matchmaking pass.
type Quality struct {
	User1 string
	User2 string
	Score float64
}

// Render produces the status file content.
func Render(s *Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", s.Timestamp.Format(TimeLayout))

	fmt.Fprintf(&b, "\nConnected players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		fmt.Fprintf(&b, "\t%s [%s]\n", p.Username, p.PlayerID)
	}

	fmt.Fprintf(&b, "\nGames (%d):\n", len(s.Games))
	for _, g := range s.Games {
		fmt.Fprintf(&b, "\t%s ('%s', '%s')\n", g.GameID, g.Player1, g.Player2)
	}

	fmt.Fprintf(&b, "\nPlayers in queue (%d):\n", len(s.Queue))
	for _, q := range s.Queue {
		fmt.Fprintf(&b, "\t%s [%s] since %s\n", q.Username, q.PlayerID, q.Since.Format(TimeLayout))
	}

	b.WriteString("\nMatch quality scores:\n")
	for _, q := range s.Qualities {
		fmt.Fprintf(&b, "\t%s vs %s: %.4f\n", q.User1, q.User2, q.Score)
	}

	b.WriteString("\nEND\n")
	return b.String()
}

var (
	rePlayersHeader = regexp.MustCompile(`^Connected players \((\d+)\):`)
	reGamesHeader   = regexp.MustCompile(`^Games \((\d+)\):`)
	reQueueHeader   = regexp.MustCompile(`^Players in queue \((\d+)\):`)
	reQualityHeader = regexp.MustCompile(`^Match quality scores:`)

	rePlayerLine  = regexp.MustCompile(`^\s+(\S+) \[(\S+)\]$`)
	reGameLine    = regexp.MustCompile(`^\s+(\S+) \('(\S+)', '(\S+)'\)$`)
	reQueueLine   = regexp.MustCompile(`^\s+(\S+) \[(\S+)\] since (.+)$`)
	reQualityLine = regexp.MustCompile(`^\s+(\S+) vs (\S+): (\S+)$`)
)

// Parse reads a rendered snapshot back. It fails on truncated files, which
// happens when the server is caught mid-write.
func Parse(data string) (*Snapshot, error) {
	lines := strings.Split(data, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, errors.New("empty snapshot")
	}
	ts, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(lines[0]), time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}

	snap := &Snapshot{Timestamp: ts}
	section := ""
	sawEnd := false

	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == "END" && !strings.HasPrefix(line, "\t"):
			sawEnd = true
		case rePlayersHeader.MatchString(line):
			section = "players"
		case reGamesHeader.MatchString(line):
			section = "games"
		case reQueueHeader.MatchString(line):
			section = "queue"
		case reQualityHeader.MatchString(line):
			section = "qualities"
		default:
			if err := parseEntry(snap, section, line); err != nil {
				return nil, err
			}
		}
	}

	if !sawEnd {
		return nil, errors.New("truncated snapshot")
	}
	return snap, nil
}

func parseEntry(snap *Snapshot, section, line string) error {
	switch section {
	case "players":
		m := rePlayerLine.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("malformed player line %q", line)
		}
		snap.Players = append(snap.Players, Player{Username: m[1], PlayerID: m[2]})
	case "games":
		m := reGameLine.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("malformed game line %q", line)
		}
		snap.Games = append(snap.Games, Game{GameID: m[1], Player1: m[2], Player2: m[3]})
	case "queue":
		m := reQueueLine.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("malformed queue line %q", line)
		}
		since, err := time.ParseInLocation(TimeLayout, m[3], time.Local)
		if err != nil {
			return fmt.Errorf("malformed queue timestamp %q: %w", m[3], err)
		}
		snap.Queue = append(snap.Queue, QueueEntry{Username: m[1], PlayerID: m[2], Since: since})
	case "qualities":
		m := reQualityLine.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("malformed quality line %q", line)
		}
		score, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return fmt.Errorf("malformed quality score %q: %w", m[3], err)
		}
		snap.Qualities = append(snap.Qualities, Quality{User1: m[1], User2: m[2], Score: score})
	default:
		return fmt.Errorf("unexpected line %q", line)
	}
	return nil
}
