package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type roundStart struct {
	Image   Image
	Options []string
}

// fakeNotifier records every call. Images default to "img:<playerID>".
type fakeNotifier struct {
	mu        sync.Mutex
	rounds    []int
	starts    []roundStart
	timeLeft  []int
	results   []map[string]int
	ended     []map[string]int
	requested []string

	image     func(ctx context.Context, playerID string) (Image, error)
	onResults func()
	onTime    func()
	endedCh   chan struct{}
	startCh chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		endedCh: make(chan struct{}, 16),
		startCh: make(chan struct{}, 64),
	}
}

func (f *fakeNotifier) SetRound(_ string, round int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, round)
}

func (f *fakeNotifier) SendRoundData(_ string, image Image, options []string) {
	f.mu.Lock()
	f.starts = append(f.starts, roundStart{Image: image, Options: options})
	f.mu.Unlock()
	f.startCh <- struct{}{}
}

func (f *fakeNotifier) TimeLeft(_ string, seconds int) {
	f.mu.Lock()
	f.timeLeft = append(f.timeLeft, seconds)
	hook := f.onTime
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeNotifier) RoundResults(_ string, scores map[string]int) {
	f.mu.Lock()
	f.results = append(f.results, scores)
	hook := f.onResults
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeNotifier) GameEnded(_ string, scores map[string]int) {
	f.mu.Lock()
	f.ended = append(f.ended, scores)
	f.mu.Unlock()
	f.endedCh <- struct{}{}
}

func (f *fakeNotifier) RequestImage(ctx context.Context, _ string, playerID string) (Image, error) {
	f.mu.Lock()
	f.requested = append(f.requested, playerID)
	fn := f.image
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, playerID)
	}
	return Image("img:" + playerID), nil
}

// calls returns the total number of outbound notifications so far.
func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rounds) + len(f.starts) + len(f.timeLeft) + len(f.results) + len(f.ended)
}

func (f *fakeNotifier) lastRequested() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requested) == 0 {
		return ""
	}
	return f.requested[len(f.requested)-1]
}

// fastConfig keeps real-clock games in the tens of milliseconds.
func fastConfig(rounds int) SessionConfig {
	return SessionConfig{
		Rounds:          rounds,
		RoundLength:     40 * time.Millisecond,
		InterRoundDelay: 10 * time.Millisecond,
		TickInterval:    5 * time.Millisecond,
		ImageTimeout:    200 * time.Millisecond,
		MaxOptions:      4,
	}
}

// fakeClock is a manually advanced clock for tick-by-tick tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// manualSession builds a session driven by explicit tick calls instead of
// its own goroutine.
func manualSession(t *testing.T, cfg SessionConfig, players ...Player) (*Session, *fakeNotifier, *fakeClock) {
	t.Helper()
	n := newFakeNotifier()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := newSession("TEST1", players[0], cfg, n, nil, zerolog.Nop())
	s.now = clock.Now
	for _, p := range players[1:] {
		if err := s.Join(p); err != nil {
			t.Fatalf("join %s: %v", p.Name, err)
		}
	}
	return s, n, clock
}

// begin puts a manual session into its first round without starting the loop.
func begin(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseAwaitingRound
	s.state.Round = 1
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func waitChan(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// stopConcurrently stops s from another goroutine, the way a creator
// disconnect would, and returns once the stop has been recorded. Stop itself
// may still be waiting for the caller's notification to finish.
func stopConcurrently(s *Session) {
	go s.Stop()
	for {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

var (
	alice = Player{ID: "A1", Name: "alice"}
	bob   = Player{ID: "B1", Name: "bob"}
	carol = Player{ID: "C1", Name: "carol"}
)
