package game

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeOK},
		{"in progress", ErrGameInProgress, 101},
		{"not started", ErrGameNotStarted, 102},
		{"finished", ErrGameFinished, 103},
		{"not found", ErrSessionNotFound, 104},
		{"round closed", ErrRoundClosed, 105},
		{"already answered", ErrAlreadyAnswered, 201},
		{"player exists", ErrPlayerExists, 202},
		{"not in session", ErrNotInSession, 203},
		{"not creator", ErrNotCreator, 204},
		{"wrapped", fmt.Errorf("join 48213: %w", ErrPlayerExists), 202},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	if got := ErrSessionNotFound.Error(); got != "session not found (104)" {
		t.Fatalf("unexpected message %q", got)
	}
}
