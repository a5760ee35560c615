package game

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

type RoomManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	salt     uint64 // never reset, so salts are never reused

	cfg      SessionConfig
	notifier Notifier
	ids      *IDGenerator
	log      zerolog.Logger
	onFinish func(Summary)
}

type Option func(*RoomManager)

func WithLogger(l zerolog.Logger) Option {
	return func(rm *RoomManager) { rm.log = l }
}

func WithIDLength(n int) Option {
	return func(rm *RoomManager) { rm.ids = NewIDGenerator(n) }
}

// WithFinishHook registers f to run after a game reaches its end. It is not
// called for sessions removed early.
func WithFinishHook(f func(Summary)) Option {
	return func(rm *RoomManager) { rm.onFinish = f }
}

func NewRoomManager(cfg SessionConfig, n Notifier, opts ...Option) *RoomManager {
	rm := &RoomManager{
		sessions: make(map[string]*Session),
		cfg:      cfg.withDefaults(),
		notifier: n,
		ids:      NewIDGenerator(DefaultIDLength),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

func (rm *RoomManager) Config() SessionConfig { return rm.cfg }

// CreateSession opens a lobby with the creator as its only player and returns
// the session code.
func (rm *RoomManager) CreateSession(creatorName, creatorID string) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var code string
	for {
		code = rm.ids.Generate(strconv.FormatUint(rm.salt, 10))
		rm.salt++
		if rm.sessions[code] == nil {
			break
		}
	}
	creator := Player{ID: creatorID, Name: creatorName}
	rm.sessions[code] = newSession(code, creator, rm.cfg, rm.notifier, rm.release, rm.log)
	rm.log.Info().Str("code", code).Str("creator", creatorID).Msg("session created")
	return code
}

// release is called by a session whose game has ended. The entry is only
// deleted if it still refers to s.
func (rm *RoomManager) release(s *Session) {
	rm.mu.Lock()
	owned := rm.sessions[s.ID] == s
	if owned {
		delete(rm.sessions, s.ID)
	}
	rm.mu.Unlock()
	if !owned {
		return
	}
	rm.log.Info().Str("code", s.ID).Msg("session finished")
	if rm.onFinish != nil {
		rm.onFinish(s.summary())
	}
}

// RemoveSession stops and forgets a session. Removing an unknown code is a
// no-op.
func (rm *RoomManager) RemoveSession(code string) {
	code = NormalizeID(code)
	rm.mu.Lock()
	s := rm.sessions[code]
	delete(rm.sessions, code)
	rm.mu.Unlock()
	if s != nil {
		s.Stop()
		rm.log.Info().Str("code", code).Msg("session removed")
	}
}

// Get looks a session up by code. Surrounding whitespace and case are
// ignored.
func (rm *RoomManager) Get(code string) (*Session, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	s := rm.sessions[NormalizeID(code)]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (rm *RoomManager) Exists(code string) bool {
	_, err := rm.Get(code)
	return err == nil
}

func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.sessions)
}

func (rm *RoomManager) all() []*Session {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		out = append(out, s)
	}
	return out
}

func (rm *RoomManager) SessionsWithPlayer(playerID string) []*Session {
	var out []*Session
	for _, s := range rm.all() {
		if s.HasPlayer(playerID) {
			out = append(out, s)
		}
	}
	return out
}

// AddPlayer joins a player to a lobby. Display names are unique per session.
func (rm *RoomManager) AddPlayer(name, playerID, code string) error {
	s, err := rm.Get(code)
	if err != nil {
		return err
	}
	return s.Join(Player{ID: playerID, Name: name})
}

func (rm *RoomManager) Players(code string) ([]string, error) {
	s, err := rm.Get(code)
	if err != nil {
		return nil, err
	}
	return s.PlayerNames(), nil
}

// StartSession starts the game on behalf of callerID, who must be the
// session's creator.
func (rm *RoomManager) StartSession(code, callerID string) error {
	s, err := rm.Get(code)
	if err != nil {
		return err
	}
	if s.Creator != callerID {
		return ErrNotCreator
	}
	return s.Start()
}

func (rm *RoomManager) SubmitAnswer(code, playerID, answer string) error {
	s, err := rm.Get(code)
	if err != nil {
		return err
	}
	return s.SubmitAnswer(playerID, answer)
}

// Departure describes what a disconnect did to one session.
type Departure struct {
	SessionID string
	Name      string
	Deleted   bool // the creator left and the session was removed
}

// Disconnect removes playerID from every session it is in. Sessions created
// by that player are removed entirely.
func (rm *RoomManager) Disconnect(playerID string) []Departure {
	var out []Departure
	for _, s := range rm.SessionsWithPlayer(playerID) {
		name, _ := s.ResolveNameByID(playerID)
		if s.Creator == playerID {
			rm.RemoveSession(s.ID)
			out = append(out, Departure{SessionID: s.ID, Name: name, Deleted: true})
			continue
		}
		s.Leave(playerID)
		out = append(out, Departure{SessionID: s.ID, Name: name})
	}
	return out
}

// Shutdown stops every session and waits for their loops to exit.
func (rm *RoomManager) Shutdown(ctx context.Context) error {
	rm.mu.Lock()
	sessions := make([]*Session, 0, len(rm.sessions))
	for code, s := range rm.sessions {
		sessions = append(sessions, s)
		delete(rm.sessions, code)
	}
	rm.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
