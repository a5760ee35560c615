package game

import (
	"context"
	"time"
)

type Phase string

const (
	PhaseNotStarted     Phase = "NotStarted"
	PhaseAwaitingRound  Phase = "AwaitingRound"
	PhaseRoundActive    Phase = "RoundActive"
	PhaseShowingResults Phase = "ShowingResults"
	PhaseFinished       Phase = "Finished"
)

// Image is an opaque image payload, usually a base64 data URL sent by a
// player's device.
type Image string

type SessionConfig struct {
	Rounds          int           `json:"rounds"`
	RoundLength     time.Duration `json:"roundLength"`
	InterRoundDelay time.Duration `json:"interRoundDelay"`
	StartDelay      time.Duration `json:"startDelay"`
	TickInterval    time.Duration `json:"tickInterval"`
	ImageTimeout    time.Duration `json:"imageTimeout"`
	MaxOptions      int           `json:"maxOptions"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Rounds:          1,
		RoundLength:     5 * time.Second,
		InterRoundDelay: 5 * time.Second,
		StartDelay:      3 * time.Second,
		TickInterval:    500 * time.Millisecond,
		ImageTimeout:    30 * time.Second,
		MaxOptions:      4,
	}
}

// withDefaults fills missing counts and durations from DefaultSessionConfig.
// Zero delays are kept and mean "no delay"; negative ones are clamped to zero.
func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Rounds <= 0 {
		c.Rounds = def.Rounds
	}
	if c.RoundLength <= 0 {
		c.RoundLength = def.RoundLength
	}
	if c.InterRoundDelay < 0 {
		c.InterRoundDelay = 0
	}
	if c.StartDelay < 0 {
		c.StartDelay = 0
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = def.ImageTimeout
	}
	if c.MaxOptions <= 0 {
		c.MaxOptions = def.MaxOptions
	}
	return c
}

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoundState is the mutable per-round data of a session. Answers and Scores
// are keyed by player ID; names only appear in outbound payloads.
type RoundState struct {
	Round        int
	Phase        Phase
	PhaseStarted time.Time

	Answers map[string]string // playerID -> submitted name
	Options []string
	Correct string // playerID of this round's subject
	Image   Image

	Scores map[string]int // playerID -> points

	unreachable map[string]struct{}
}

func newRoundState() RoundState {
	return RoundState{
		Phase:       PhaseNotStarted,
		Answers:     make(map[string]string),
		Scores:      make(map[string]int),
		unreachable: make(map[string]struct{}),
	}
}

// Notifier pushes session state to the players of a session. Every call is
// keyed by session ID. RequestImage blocks until the player answers or ctx
// expires.
type Notifier interface {
	SetRound(sessionID string, round int)
	SendRoundData(sessionID string, image Image, options []string)
	TimeLeft(sessionID string, seconds int)
	RoundResults(sessionID string, scores map[string]int)
	GameEnded(sessionID string, scores map[string]int)
	RequestImage(ctx context.Context, sessionID, playerID string) (Image, error)
}

// Snapshot is a read-only copy of a session's public state.
type Snapshot struct {
	ID      string         `json:"id"`
	Creator string         `json:"creator"`
	Phase   Phase          `json:"phase"`
	Round   int            `json:"round"`
	Rounds  int            `json:"rounds"`
	Players []string       `json:"players"`
	Options []string       `json:"options,omitempty"`
	Scores  map[string]int `json:"scores"`
}

// Summary describes a finished game.
type Summary struct {
	ID      string
	Rounds  int
	Players []string
	Scores  map[string]int
	EndedAt time.Time
}
