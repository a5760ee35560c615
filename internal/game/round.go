package game

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	errSubjectLeft = errors.New("player left before sending an image")
	errEmptyImage  = errors.New("empty image")
)

// tick evaluates the round algorithm once. It returns false when the loop
// should stop, either because the game finished or the session was stopped.
// Notifications go out after s.mu is released, through notify.
func (s *Session) tick(now time.Time) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	st := &s.state

	if st.Round > s.cfg.Rounds {
		st.Phase = PhaseFinished
		scores := s.namedScoresLocked()
		s.mu.Unlock()
		s.log.Info().Interface("scores", scores).Msg("game ended")
		s.notify(func(n Notifier) { n.GameEnded(s.ID, scores) })
		return false
	}

	switch st.Phase {
	case PhaseAwaitingRound:
		if now.Sub(st.PhaseStarted) < s.cfg.InterRoundDelay {
			s.mu.Unlock()
			return true
		}
		return s.beginRound(now)

	case PhaseRoundActive:
		elapsed := now.Sub(st.PhaseStarted)
		left := timeLeft(s.cfg.RoundLength, elapsed)
		if elapsed > s.cfg.RoundLength {
			st.Phase = PhaseShowingResults
		}
		s.mu.Unlock()
		return s.notify(func(n Notifier) { n.TimeLeft(s.ID, left) })

	case PhaseShowingResults:
		for _, p := range s.players {
			st.Scores[p.ID] += s.pointsLocked(p.ID)
		}
		scores := s.namedScoresLocked()
		st.Round++
		st.Phase = PhaseAwaitingRound
		st.PhaseStarted = now
		round := st.Round
		s.mu.Unlock()
		if !s.notify(func(n Notifier) { n.RoundResults(s.ID, scores) }) {
			return false
		}
		return s.notify(func(n Notifier) { n.SetRound(s.ID, round) })
	}

	s.mu.Unlock()
	return true
}

// beginRound is entered with s.mu held and returns with it released. The
// image request runs unlocked so answers, leaves and Stop are never blocked
// behind a slow device.
func (s *Session) beginRound(now time.Time) bool {
	st := &s.state
	subject, ok := s.pickSubjectLocked()
	if !ok {
		st.Round++
		st.PhaseStarted = now
		clear(st.unreachable)
		round := st.Round
		s.mu.Unlock()
		s.log.Warn().Int("round", round-1).Msg("no player could provide an image, skipping round")
		return s.notify(func(n Notifier) { n.SetRound(s.ID, round) })
	}
	clear(st.Answers)
	s.mu.Unlock()

	image, err := s.requestImage(subject)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if err == nil && s.indexLocked(subject) < 0 {
		err = errSubjectLeft
	}
	if err != nil {
		st.unreachable[subject] = struct{}{}
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("player", subject).Msg("image request failed")
		return true
	}

	st.Correct = subject
	st.Image = image
	st.Options = s.optionsLocked(subject)
	st.PhaseStarted = s.now()
	st.Phase = PhaseRoundActive
	clear(st.unreachable)
	options := append([]string(nil), st.Options...)
	round := st.Round
	s.mu.Unlock()

	s.log.Debug().Int("round", round).Str("subject", subject).Msg("round started")
	return s.notify(func(n Notifier) { n.SendRoundData(s.ID, image, options) })
}

func (s *Session) requestImage(playerID string) (Image, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ImageTimeout)
	defer cancel()
	image, err := s.notifier.RequestImage(ctx, s.ID, playerID)
	if err != nil {
		return "", err
	}
	if image == "" {
		return "", errEmptyImage
	}
	return image, nil
}

func (s *Session) pickSubjectLocked() (string, bool) {
	candidates := make([]string, 0, len(s.players))
	for _, p := range s.players {
		if _, skip := s.state.unreachable[p.ID]; !skip {
			candidates = append(candidates, p.ID)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[s.rng.IntN(len(candidates))], true
}

// optionsLocked lists every name when the roster is small enough, otherwise
// a shuffled random sample that always contains the subject.
func (s *Session) optionsLocked(subject string) []string {
	if len(s.players) <= s.cfg.MaxOptions {
		return s.namesLocked()
	}
	var subjectName string
	others := make([]string, 0, len(s.players)-1)
	for _, p := range s.players {
		if p.ID == subject {
			subjectName = p.Name
			continue
		}
		others = append(others, p.Name)
	}
	s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	options := append(others[:s.cfg.MaxOptions-1:s.cfg.MaxOptions-1], subjectName)
	s.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options
}

// pointsLocked is 1 when the player's answer names this round's subject.
func (s *Session) pointsLocked(playerID string) int {
	answer, ok := s.state.Answers[playerID]
	if !ok {
		return 0
	}
	if id, found := s.idByNameLocked(answer); found && id == s.state.Correct {
		return 1
	}
	return 0
}

// timeLeft is clamped at zero, including on the tick that closes the round.
func timeLeft(length, elapsed time.Duration) int {
	left := int(math.Round((length - elapsed).Seconds()))
	if left < 0 {
		return 0
	}
	return left
}
