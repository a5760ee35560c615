package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("player is not connected")

type imageResult struct {
	image game.Image
	err   error
}

type pendingImage struct {
	playerID string
	ch       chan imageResult
}

// imageBroker tracks outstanding image requests so an ack or a disconnect
// can end them. Each request is keyed by a random ID that also tags its
// log lines.
type imageBroker struct {
	mu      sync.Mutex
	pending map[string]pendingImage
}

func newImageBroker() *imageBroker {
	return &imageBroker{pending: make(map[string]pendingImage)}
}

func (b *imageBroker) open(playerID string) (string, <-chan imageResult) {
	id := uuid.NewString()
	ch := make(chan imageResult, 1)
	b.mu.Lock()
	b.pending[id] = pendingImage{playerID: playerID, ch: ch}
	b.mu.Unlock()
	return id, ch
}

func (b *imageBroker) close(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// resolve hands the image to the waiting request. It reports false when the
// request already ended, by timeout, disconnect or an earlier ack.
func (b *imageBroker) resolve(id string, image game.Image) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		return false
	}
	p.ch <- imageResult{image: image}
	return true
}

// fail ends every request outstanding for playerID with err.
func (b *imageBroker) fail(playerID string, err error) int {
	b.mu.Lock()
	var failed []chan imageResult
	for id, p := range b.pending {
		if p.playerID == playerID {
			failed = append(failed, p.ch)
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()
	for _, ch := range failed {
		ch <- imageResult{err: err}
	}
	return len(failed)
}

func (b *imageBroker) outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// RequestImage asks the player's device for a photo and waits for its ack,
// a disconnect, or ctx. The request carries no payload; the client answers
// through the socket.io acknowledgement with the image as a data URL.
func (srv *Server) RequestImage(ctx context.Context, sessionID, playerID string) (game.Image, error) {
	c := srv.conn(playerID)
	if c == nil {
		return "", ErrNotConnected
	}

	id, ch := srv.images.open(playerID)
	defer srv.images.close(id)

	logger := log.With().Str("code", sessionID).Str("sid", playerID).Str("requestId", id).Logger()
	logger.Debug().Msg("requesting image")
	c.Emit(EventRequestImage, func(image string) {
		if !srv.images.resolve(id, game.Image(image)) {
			logger.Warn().Msg("image arrived after the request ended")
		}
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.image, res.err
	}
}
