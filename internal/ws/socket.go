package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/rs/zerolog/log"
)

const namespace = "/"

// Client to server.
const (
	EventAskConfig    = "c:ask:config"
	EventCreate       = "c:ask:menu/create"
	EventJoin         = "c:ask:menu/join"
	EventListPlayers  = "c:ask:lobby/get-players-in-game"
	EventStartGame    = "c:say:lobby/start-game"
	EventChooseAnswer = "c:say:game/choose-answer"
)

// Server to client.
const (
	EventPlayerJoined = "s:say:lobby:player-joined"
	EventPlayerLeft   = "s:say:lobby:player-left"
	EventLobbyDeleted = "s:say:lobby:lobby-del"
	EventGameStarted  = "s:say:lobby/game-started"
	EventRequestImage = "s:ask:game/request-image"
	EventRoundStart   = "s:say:game/round-start"
	EventSyncRound    = "s:say:game/sync-round"
	EventTimeLeft     = "s:say:game/time-left-in-round"
	EventRoundOver    = "s:say:game/round-over"
	EventGameEnded    = "s:say:game/game-ended"
)

// conn is the part of socketio.Conn the handlers use.
type conn interface {
	ID() string
	Emit(event string, v ...interface{})
	Join(room string)
	Leave(room string)
}

type broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

// Server routes socket.io events to the RoomManager and implements
// game.Notifier on top of socket.io rooms. A session's room is named after
// its code.
type Server struct {
	RM *game.RoomManager

	io     broadcaster
	images *imageBroker

	mu      sync.RWMutex
	conns   map[string]conn            // socketID -> Conn
	members map[string]map[string]conn // sessionCode -> socketID -> Conn
}

func New() *Server {
	return &Server{
		images:  newImageBroker(),
		conns:   make(map[string]conn),
		members: make(map[string]map[string]conn),
	}
}

type joinRequest struct {
	Name   string `json:"name"`
	GameID string `json:"gameId"`
}

type configReply struct {
	Rounds      int `json:"rounds"`
	RoundLength int `json:"roundLength"` // seconds
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect(namespace, func(s socketio.Conn) error {
		srv.connect(s)
		return nil
	})

	io.OnEvent(namespace, EventAskConfig, func(s socketio.Conn) configReply {
		return srv.askConfig()
	})

	io.OnEvent(namespace, EventCreate, func(s socketio.Conn, name string) string {
		return srv.create(s, name)
	})

	io.OnEvent(namespace, EventJoin, func(s socketio.Conn, req joinRequest) int {
		return srv.join(s, req)
	})

	io.OnEvent(namespace, EventListPlayers, func(s socketio.Conn, gameID string) interface{} {
		return srv.listPlayers(gameID)
	})

	io.OnEvent(namespace, EventStartGame, func(s socketio.Conn, gameID string) int {
		return srv.startGame(s, gameID)
	})

	io.OnEvent(namespace, EventChooseAnswer, func(s socketio.Conn, gameID, answer string) int {
		return srv.chooseAnswer(s, gameID, answer)
	})

	io.OnError(namespace, func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		srv.disconnect(s, reason)
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) connect(c conn) {
	srv.mu.Lock()
	srv.conns[c.ID()] = c
	srv.mu.Unlock()
	log.Info().Str("sid", c.ID()).Msg("socket connected")
}

func (srv *Server) askConfig() configReply {
	cfg := srv.RM.Config()
	return configReply{
		Rounds:      cfg.Rounds,
		RoundLength: int(cfg.RoundLength.Seconds()),
	}
}

func (srv *Server) create(c conn, name string) string {
	code := srv.RM.CreateSession(name, c.ID())
	c.Join(code)
	srv.addMember(code, c)
	log.Info().Str("sid", c.ID()).Str("code", code).Msg("game created")
	return code
}

// join uses the normalized code for the room so broadcasts from the session
// reach the player however the code was typed.
func (srv *Server) join(c conn, req joinRequest) int {
	code := game.NormalizeID(req.GameID)
	if err := srv.RM.AddPlayer(req.Name, c.ID(), code); err != nil {
		log.Info().Str("sid", c.ID()).Str("code", code).Err(err).Msg("join rejected")
		return int(game.CodeOf(err))
	}
	c.Join(code)
	srv.addMember(code, c)
	srv.emitExcept(code, c.ID(), EventPlayerJoined, req.Name)
	log.Info().Str("sid", c.ID()).Str("code", code).Str("name", req.Name).Msg("player joined")
	return int(game.CodeOK)
}

// listPlayers answers with the player names, or a status code when the game
// does not exist.
func (srv *Server) listPlayers(gameID string) interface{} {
	names, err := srv.RM.Players(gameID)
	if err != nil {
		return int(game.CodeOf(err))
	}
	return names
}

func (srv *Server) startGame(c conn, gameID string) int {
	gameID = game.NormalizeID(gameID)
	if err := srv.RM.StartSession(gameID, c.ID()); err != nil {
		log.Info().Str("sid", c.ID()).Str("code", gameID).Err(err).Msg("start rejected")
		return int(game.CodeOf(err))
	}
	srv.broadcast(gameID, EventGameStarted)
	log.Info().Str("code", gameID).Msg("game started")
	return int(game.CodeOK)
}

func (srv *Server) chooseAnswer(c conn, gameID, answer string) int {
	if err := srv.RM.SubmitAnswer(gameID, c.ID(), answer); err != nil {
		log.Debug().Str("sid", c.ID()).Str("code", gameID).Err(err).Msg("answer rejected")
		return int(game.CodeOf(err))
	}
	return int(game.CodeOK)
}

// disconnect removes the socket from every game. Games it created are
// deleted, the others are told the player left.
func (srv *Server) disconnect(c conn, reason string) {
	sid := c.ID()
	srv.images.fail(sid, ErrNotConnected)

	for _, d := range srv.RM.Disconnect(sid) {
		if d.Deleted {
			srv.emitExcept(d.SessionID, sid, EventLobbyDeleted)
			srv.dropRoom(d.SessionID)
			log.Info().Str("code", d.SessionID).Msg("game removed because its creator disconnected")
			continue
		}
		srv.emitExcept(d.SessionID, sid, EventPlayerLeft, d.Name)
		srv.removeMember(d.SessionID, sid)
		log.Info().Str("sid", sid).Str("code", d.SessionID).Msg("player left")
	}

	srv.mu.Lock()
	delete(srv.conns, sid)
	for code, m := range srv.members {
		delete(m, sid)
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
	srv.mu.Unlock()
	log.Info().Str("sid", sid).Str("reason", reason).Msg("socket disconnected")
}

func (srv *Server) addMember(code string, c conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]conn)
	}
	srv.members[code][c.ID()] = c
}

func (srv *Server) removeMember(code, sid string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, sid)
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

// dropRoom forgets a deleted game and takes its sockets out of the room.
func (srv *Server) dropRoom(code string) {
	srv.mu.Lock()
	m := srv.members[code]
	delete(srv.members, code)
	srv.mu.Unlock()
	for _, c := range m {
		c.Leave(code)
	}
}

func (srv *Server) conn(sid string) conn {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return srv.conns[sid]
}

// emitExcept sends to every member of a game but the given socket.
func (srv *Server) emitExcept(code, sid, event string, args ...interface{}) {
	srv.mu.RLock()
	targets := make([]conn, 0, len(srv.members[code]))
	for id, c := range srv.members[code] {
		if id != sid {
			targets = append(targets, c)
		}
	}
	srv.mu.RUnlock()
	for _, c := range targets {
		c.Emit(event, args...)
	}
}

func (srv *Server) broadcast(code, event string, args ...interface{}) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom(namespace, code, event, args...)
}
