package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/wttp/internal/config"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/kiliankoe/wttp/internal/ws"
)

func newTestRouter(t *testing.T) (*gin.Engine, *game.RoomManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sock := ws.New()
	rm := game.NewRoomManager(game.DefaultSessionConfig(), sock)
	sock.RM = rm
	r := gin.New()
	r.Use(requestLogger())
	registerAPI(r, rm)
	return r, rm
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, rm := newTestRouter(t)
	rm.CreateSession("alice", "A1")

	w := get(r, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		OK       bool `json:"ok"`
		Sessions int  `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Sessions != 1 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestConfigEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := get(r, "/api/config")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["rounds"] != 1 || body["roundLength"] != 5 || body["maxOptions"] != 4 {
		t.Fatalf("unexpected config %v", body)
	}
}

func TestSessionSnapshot(t *testing.T) {
	r, rm := newTestRouter(t)
	code := rm.CreateSession("alice", "A1")
	if err := rm.AddPlayer("bob", "B1", code); err != nil {
		t.Fatalf("join: %v", err)
	}

	w := get(r, "/api/sessions/"+code+"%20")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap game.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.ID != code || snap.Phase != game.PhaseNotStarted || len(snap.Players) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/api/sessions/NOPE", "/api/sessions/NOPE/qr"} {
		w := get(r, path)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
		var body struct {
			Code int `json:"code"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != 104 {
			t.Fatalf("%s: expected code 104, got %d", path, body.Code)
		}
	}
}

func TestSessionQRCode(t *testing.T) {
	r, rm := newTestRouter(t)
	code := rm.CreateSession("alice", "A1")

	w := get(r, "/api/sessions/"+code+"/qr")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("body is not a PNG")
	}
}

func TestJoinURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/48213/qr", nil)
	req.Host = "party.example"
	if got := joinURL(req, "48213"); got != "http://party.example/join/48213" {
		t.Fatalf("unexpected url %s", got)
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := joinURL(req, "48213"); got != "https://party.example/join/48213" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestExportHook(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "results.txt")
	exportHook(filename)(game.Summary{
		ID:      "48213",
		Rounds:  1,
		Players: []string{"alice"},
		Scores:  map[string]int{"alice": 1},
		EndedAt: time.Now(),
	})
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "- alice: 1 points") {
		t.Fatalf("unexpected export:\n%s", b)
	}
}

func TestCommandFlags(t *testing.T) {
	cfg := config.Default()
	cmd := newCmd(&cfg)
	if err := cmd.Flags().Parse([]string{"--port=9000", "--rounds=3", "--log-json"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != 9000 || cfg.Rounds != 3 || !cfg.LogJSON {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cmd.Version != version {
		t.Fatalf("unexpected version %s", cmd.Version)
	}
}
