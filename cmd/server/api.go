package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// requestLogger logs every request except the socket.io polling noise.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

func registerAPI(r *gin.Engine, rm *game.RoomManager) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "sessions": rm.Count()})
	})

	r.GET("/api/config", func(c *gin.Context) {
		cfg := rm.Config()
		c.JSON(http.StatusOK, gin.H{
			"rounds":          cfg.Rounds,
			"roundLength":     int(cfg.RoundLength.Seconds()),
			"interRoundDelay": int(cfg.InterRoundDelay.Seconds()),
			"maxOptions":      cfg.MaxOptions,
		})
	})

	r.GET("/api/sessions/:id", func(c *gin.Context) {
		s, err := rm.Get(c.Param("id"))
		if err != nil {
			statusError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	})

	// PNG QR code pointing players at the join screen of a session.
	r.GET("/api/sessions/:id/qr", func(c *gin.Context) {
		code := game.NormalizeID(c.Param("id"))
		if !rm.Exists(code) {
			statusError(c, game.ErrSessionNotFound)
			return
		}
		png, err := qrcode.Encode(joinURL(c.Request, code), qrcode.Medium, qrSize)
		if err != nil {
			log.Error().Err(err).Str("code", code).Msg("qr generation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"code": game.CodeInternal, "error": "qr generation failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})
}

func statusError(c *gin.Context, err error) {
	code := game.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case game.CodeSessionNotFound:
		status = http.StatusNotFound
	case game.CodeInternal:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}

// joinURL respects TLS and X-Forwarded-Proto when deriving the scheme.
func joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/join/" + code
}
