package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session is a single game: its roster, its round state and the goroutine
// that drives the round algorithm once the creator starts it.
type Session struct {
	ID      string
	Creator string

	cfg      SessionConfig
	notifier Notifier
	onDone   func(*Session)
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// emitMu serializes notifier calls with Stop. Once Stop returns nothing
	// more reaches the notifier.
	emitMu sync.Mutex

	mu      sync.Mutex
	players []Player
	state   RoundState
	rng     *rand.Rand
	now     func() time.Time
	running bool
	stopped bool
}

func newSession(id string, creator Player, cfg SessionConfig, n Notifier, onDone func(*Session), logger zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:       id,
		Creator:  creator.ID,
		cfg:      cfg.withDefaults(),
		notifier: n,
		onDone:   onDone,
		log:      logger.With().Str("session", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		players:  []Player{creator},
		state:    newRoundState(),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		now:      time.Now,
	}
}

func (s *Session) Config() SessionConfig { return s.cfg }

// Done is closed once the session's loop has exited, or when a session that
// was never started is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start moves the session out of the lobby and launches the round loop.
// New players are rejected from now on. Round 1 is announced once the start
// delay has passed.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.stopped || s.state.Phase == PhaseFinished {
		s.mu.Unlock()
		return ErrGameFinished
	}
	if s.state.Phase != PhaseNotStarted {
		s.mu.Unlock()
		return ErrGameInProgress
	}
	s.running = true
	s.state.Phase = PhaseAwaitingRound
	s.state.Round = 1
	s.state.PhaseStarted = time.Time{}
	s.mu.Unlock()

	s.log.Info().Int("rounds", s.cfg.Rounds).Msg("game started")
	go s.run()
	return nil
}

// Stop ends the session immediately. A pending image request is cancelled,
// no further ticks run and no notification is sent after Stop returns. Safe
// to call more than once, but not from inside a Notifier method.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	s.mu.Unlock()

	s.cancel()
	// wait out a notification already in flight
	s.emitMu.Lock()
	s.emitMu.Unlock()
	if !running {
		close(s.done)
	}
}

// notify hands f the notifier unless the session has been stopped.
func (s *Session) notify(f func(n Notifier)) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return false
	}
	f(s.notifier)
	return true
}

func (s *Session) run() {
	defer close(s.done)

	if s.cfg.StartDelay > 0 {
		t := time.NewTimer(s.cfg.StartDelay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	if !s.notify(func(n Notifier) { n.SetRound(s.ID, 1) }) {
		return
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for s.tick(s.now()) {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}

	if s.Phase() == PhaseFinished && s.onDone != nil {
		s.onDone(s)
	}
}

// Join adds a player to the lobby. A taken name or ID is reported before the
// phase, so a duplicate name is ErrPlayerExists even once the game runs.
func (s *Session) Join(p Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.players {
		if existing.Name == p.Name || existing.ID == p.ID {
			return ErrPlayerExists
		}
	}
	if err := s.joinableLocked(); err != nil {
		return err
	}
	s.players = append(s.players, p)
	return nil
}

func (s *Session) joinableLocked() error {
	switch {
	case s.stopped || s.state.Phase == PhaseFinished:
		return ErrGameFinished
	case s.state.Phase != PhaseNotStarted:
		return ErrGameInProgress
	}
	return nil
}

// Leave removes a player. Once the game is running their pending answer and
// score go with them. Reports whether the player was in the session.
func (s *Session) Leave(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(playerID)
	if i < 0 {
		return false
	}
	s.players = append(s.players[:i:i], s.players[i+1:]...)
	if s.state.Phase != PhaseNotStarted {
		delete(s.state.Answers, playerID)
		delete(s.state.Scores, playerID)
	}
	return true
}

func (s *Session) SubmitAnswer(playerID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	switch {
	case s.stopped || st.Phase == PhaseFinished:
		return ErrGameFinished
	case st.Phase == PhaseNotStarted:
		return ErrGameNotStarted
	case s.indexLocked(playerID) < 0:
		return ErrNotInSession
	case st.Phase != PhaseRoundActive:
		return ErrRoundClosed
	}
	if _, ok := st.Answers[playerID]; ok {
		return ErrAlreadyAnswered
	}
	st.Answers[playerID] = answer
	return nil
}

func (s *Session) HasPlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(playerID) >= 0
}

func (s *Session) ResolveIDByName(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idByNameLocked(name)
}

func (s *Session) ResolveNameByID(playerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(playerID); i >= 0 {
		return s.players[i].Name, true
	}
	return "", false
}

// PlayerNames returns display names in join order.
func (s *Session) PlayerNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

func (s *Session) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, len(s.players))
	copy(out, s.players)
	return out
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase
}

func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Round
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:      s.ID,
		Creator: s.Creator,
		Phase:   s.state.Phase,
		Round:   s.state.Round,
		Rounds:  s.cfg.Rounds,
		Players: s.namesLocked(),
		Scores:  s.namedScoresLocked(),
	}
	if s.state.Phase == PhaseRoundActive {
		snap.Options = append([]string(nil), s.state.Options...)
	}
	return snap
}

func (s *Session) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:      s.ID,
		Rounds:  s.cfg.Rounds,
		Players: s.namesLocked(),
		Scores:  s.namedScoresLocked(),
		EndedAt: s.now().UTC(),
	}
}

func (s *Session) indexLocked(playerID string) int {
	for i, p := range s.players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

func (s *Session) idByNameLocked(name string) (string, bool) {
	for _, p := range s.players {
		if p.Name == name {
			return p.ID, true
		}
	}
	return "", false
}

func (s *Session) namesLocked() []string {
	names := make([]string, len(s.players))
	for i, p := range s.players {
		names[i] = p.Name
	}
	return names
}

// namedScoresLocked translates ID-keyed scores into name-keyed ones. Players
// who already left are dropped.
func (s *Session) namedScoresLocked() map[string]int {
	out := make(map[string]int, len(s.state.Scores))
	for id, score := range s.state.Scores {
		if i := s.indexLocked(id); i >= 0 {
			out[s.players[i].Name] = score
		}
	}
	return out
}
