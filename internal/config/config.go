package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "HAMEVO"

	// EnvConfigFile names an optional YAML configuration file.
	EnvConfigFile = "HAMEVO_CONFIG"

	keyListenAddr  = "listen_addr"
	keyDBPath      = "db_path"
	keyLogLevel    = "log_level"
	keyShots       = "shots"
	keySeed        = "seed"
	keyMaxQubits   = "max_qubits"
	keyRunTimeoutS = "run_timeout_s"
	keySubmitRate  = "submit_rate"
	keySubmitBurst = "submit_burst"
	keyMaxInstr    = "max_instructions"

	defaultListenAddr  = ":8080"
	defaultDBPath      = "hamevo.db"
	defaultLogLevel    = "info"
	defaultShots       = 1024
	defaultMaxQubits   = 20
	defaultRunTimeoutS = 30
	defaultSubmitRate  = 10.0
	defaultSubmitBurst = 20
	defaultMaxInstr    = 1_000_000
)

// Config holds application configuration.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Shots is the default sample count of the qasm backend.
	Shots int
	// Seed seeds the qasm backend. Zero picks a random seed.
	Seed uint64
	// MaxQubits bounds the width of simulated circuits.
	MaxQubits int
	// MaxInstructions bounds the length of the evolution fragment a run may
	// build.
	MaxInstructions int

	RunTimeoutS int
	SubmitRate  float64
	SubmitBurst int
}

// Load reads configuration from defaults, an optional YAML file and HAMEVO_*
// environment variables, in increasing order of precedence. An empty path
// falls back to $HAMEVO_CONFIG; when neither is set no file is read.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyShots, defaultShots)
	v.SetDefault(keySeed, 0)
	v.SetDefault(keyMaxQubits, defaultMaxQubits)
	v.SetDefault(keyRunTimeoutS, defaultRunTimeoutS)
	v.SetDefault(keySubmitRate, defaultSubmitRate)
	v.SetDefault(keySubmitBurst, defaultSubmitBurst)
	v.SetDefault(keyMaxInstr, defaultMaxInstr)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString(keyListenAddr),
		DBPath:          v.GetString(keyDBPath),
		LogLevel:        parseLogLevel(v.GetString(keyLogLevel)),
		Shots:           v.GetInt(keyShots),
		Seed:            v.GetUint64(keySeed),
		MaxQubits:       v.GetInt(keyMaxQubits),
		MaxInstructions: v.GetInt(keyMaxInstr),
		RunTimeoutS:     v.GetInt(keyRunTimeoutS),
		SubmitRate:      v.GetFloat64(keySubmitRate),
		SubmitBurst:     v.GetInt(keySubmitBurst),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Shots <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", keyShots, c.Shots)
	case c.MaxQubits <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", keyMaxQubits, c.MaxQubits)
	case c.MaxInstructions <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", keyMaxInstr, c.MaxInstructions)
	case c.RunTimeoutS <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", keyRunTimeoutS, c.RunTimeoutS)
	case c.SubmitBurst < 0:
		return fmt.Errorf("config: %s must not be negative, got %d", keySubmitBurst, c.SubmitBurst)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
