package ws

import "github.com/kiliankoe/wttp/internal/game"

var _ game.Notifier = (*Server)(nil)

type roundStart struct {
	Image   game.Image `json:"image"`
	Options []string   `json:"options"`
}

func (srv *Server) SetRound(sessionID string, round int) {
	srv.broadcast(sessionID, EventSyncRound, round)
}

func (srv *Server) SendRoundData(sessionID string, image game.Image, options []string) {
	srv.broadcast(sessionID, EventRoundStart, roundStart{Image: image, Options: options})
}

func (srv *Server) TimeLeft(sessionID string, seconds int) {
	srv.broadcast(sessionID, EventTimeLeft, seconds)
}

func (srv *Server) RoundResults(sessionID string, scores map[string]int) {
	srv.broadcast(sessionID, EventRoundOver, scores)
}

// GameEnded also forgets the room; the session is removed from the registry
// right after.
func (srv *Server) GameEnded(sessionID string, scores map[string]int) {
	srv.broadcast(sessionID, EventGameEnded, scores)
	srv.mu.Lock()
	delete(srv.members, sessionID)
	srv.mu.Unlock()
}
