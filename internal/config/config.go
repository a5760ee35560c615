package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiliankoe/wttp/internal/game"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every flag name to form its environment variable,
// e.g. --round-length is WTTP_ROUND_LENGTH.
const EnvPrefix = "WTTP"

type Config struct {
	Port int
	Bind string

	Rounds          int
	RoundLength     time.Duration
	InterRoundDelay time.Duration
	StartDelay      time.Duration
	TickInterval    time.Duration
	ImageTimeout    time.Duration
	IDLength        int

	ExportEnabled bool
	ExportFile    string

	LogLevel string
	LogJSON  bool
}

func Default() Config {
	sc := game.DefaultSessionConfig()
	return Config{
		Port:            8080,
		Bind:            "0.0.0.0",
		Rounds:          sc.Rounds,
		RoundLength:     sc.RoundLength,
		InterRoundDelay: sc.InterRoundDelay,
		StartDelay:      sc.StartDelay,
		TickInterval:    sc.TickInterval,
		ImageTimeout:    sc.ImageTimeout,
		IDLength:        game.DefaultIDLength,
		ExportEnabled:   false,
		ExportFile:      "./wttp-results.txt",
		LogLevel:        "info",
	}
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// RegisterFlags adds one flag per setting to fs, writing into cfg. Defaults
// are taken from cfg as passed in.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: WTTP_PORT)")
	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: WTTP_BIND)")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "rounds per game (env: WTTP_ROUNDS)")
	fs.DurationVar(&cfg.RoundLength, "round-length", cfg.RoundLength, "time players have to answer (env: WTTP_ROUND_LENGTH)")
	fs.DurationVar(&cfg.InterRoundDelay, "inter-round-delay", cfg.InterRoundDelay, "pause between rounds (env: WTTP_INTER_ROUND_DELAY)")
	fs.DurationVar(&cfg.StartDelay, "start-delay", cfg.StartDelay, "pause before the first round (env: WTTP_START_DELAY)")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "game loop tick interval (env: WTTP_TICK_INTERVAL)")
	fs.DurationVar(&cfg.ImageTimeout, "image-timeout", cfg.ImageTimeout, "how long to wait for a player's photo (env: WTTP_IMAGE_TIMEOUT)")
	fs.IntVar(&cfg.IDLength, "id-length", cfg.IDLength, "length of session codes (env: WTTP_ID_LENGTH)")
	fs.BoolVar(&cfg.ExportEnabled, "export-enabled", cfg.ExportEnabled, "append finished games to the export file (env: WTTP_EXPORT_ENABLED)")
	fs.StringVar(&cfg.ExportFile, "export-file", cfg.ExportFile, "path of the results export (env: WTTP_EXPORT_FILE)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error (env: WTTP_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON instead of console output (env: WTTP_LOG_JSON)")
}

// BindEnv fills every flag that was not set on the command line from its
// environment variable.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := bindKey(v, f.Name, f); err != nil {
			errs = append(errs, err)
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// bindKey ties key to both its flag and its environment variable.
func bindKey(v *viper.Viper, key string, f *pflag.Flag) error {
	if err := v.BindPFlag(key, f); err != nil {
		return fmt.Errorf("bind flag %s: %w", key, err)
	}
	if err := v.BindEnv(key); err != nil {
		return fmt.Errorf("bind env %s: %w", key, err)
	}
	return nil
}

// Load returns the defaults overridden by the environment. Used where there is
// no command line, such as tests and embedding.
func Load() (Config, error) {
	cfg := Default()
	fs := pflag.NewFlagSet("wttp", pflag.ContinueOnError)
	RegisterFlags(fs, &cfg)
	if err := BindEnv(fs); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1: %d", c.Rounds)
	}
	if c.RoundLength <= 0 {
		return fmt.Errorf("round length must be positive: %s", c.RoundLength)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive: %s", c.TickInterval)
	}
	if c.ImageTimeout <= 0 {
		return fmt.Errorf("image timeout must be positive: %s", c.ImageTimeout)
	}
	if c.InterRoundDelay < 0 || c.StartDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.IDLength < 3 || c.IDLength > 12 {
		return fmt.Errorf("id length must be between 3 and 12: %d", c.IDLength)
	}
	if c.ExportEnabled && c.ExportFile == "" {
		return errors.New("--export-file is required when export is enabled")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Session derives the per-game settings handed to the RoomManager.
func (c *Config) Session() game.SessionConfig {
	sc := game.DefaultSessionConfig()
	sc.Rounds = c.Rounds
	sc.RoundLength = c.RoundLength
	sc.InterRoundDelay = c.InterRoundDelay
	sc.StartDelay = c.StartDelay
	sc.TickInterval = c.TickInterval
	sc.ImageTimeout = c.ImageTimeout
	return sc
}
