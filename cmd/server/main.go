package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/wttp/internal/config"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/kiliankoe/wttp/internal/ws"
	staticserver "github.com/kiliankoe/wttp/static"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("could not read .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if err := newCmd(&cfg).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		stop()
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wttp",
		Short:   "Who Took That Photo: guess which player took the picture.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			setupLogging(cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wttp v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)
}

func serve(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	sock := ws.New()
	opts := []game.Option{
		game.WithLogger(log.Logger),
		game.WithIDLength(cfg.IDLength),
	}
	if cfg.ExportEnabled {
		opts = append(opts, game.WithFinishHook(exportHook(cfg.ExportFile)))
	}
	rm := game.NewRoomManager(cfg.Session(), sock, opts...)
	sock.RM = rm

	io := sock.Mount(r)
	defer io.Close()

	registerAPI(r, rm)

	// Serve frontend (if embedded build is present) for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rm.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("games did not stop in time")
	}
	return srv.Shutdown(shutdownCtx)
}

// exportHook appends every finished game to filename.
func exportHook(filename string) func(game.Summary) {
	return func(sum game.Summary) {
		if err := game.ExportSummary(sum, filename); err != nil {
			log.Error().Err(err).Str("code", sum.ID).Msg("failed to export game data")
			return
		}
		log.Info().Str("code", sum.ID).Str("file", filename).Msg("exported game data")
	}
}
