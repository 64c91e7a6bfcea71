package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mithrel/ingestd/internal/ipc"
	"github.com/mithrel/ingestd/internal/logger"
)

// Config is the resolved daemon configuration.
type Config struct {
	SocketPath     string
	SocketMode     os.FileMode
	MaxPayload     int64
	IdleTimeout    time.Duration
	HTTPAddr       string
	DataDir        string
	JournalEnabled bool
	JournalPath    string
	Log            logger.Options
}

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env.
// The provided Viper instance is mutated with defaults, file contents, and env.
func Load(ctx context.Context, v *viper.Viper) error {
	// If SetConfigFile was provided upstream it takes precedence; these
	// paths are fallbacks.
	explicit := v.ConfigFileUsed() != ""
	if !explicit {
		v.SetConfigName("config")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "ingestd"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ingestd"))
		}
	}

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: INGESTD_* (highest among these sources)
	v.SetEnvPrefix("ingestd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Normalize dependent values post-merge
	if strings.TrimSpace(v.GetString("data_dir")) == "" {
		v.Set("data_dir", defaultDataDir())
	}
	if strings.TrimSpace(v.GetString("journal.path")) == "" {
		v.Set("journal.path", filepath.Join(expandHome(v.GetString("data_dir")), "journal.db"))
	}
	if strings.TrimSpace(v.GetString("socket_path")) == "" {
		p, err := ipc.SocketPath()
		if err != nil {
			return fmt.Errorf("resolve socket path: %w", err)
		}
		v.Set("socket_path", p)
	}
	return nil
}

// Validate reports every problem in v at once.
func Validate(v *viper.Viper) error {
	var errs []error
	if strings.TrimSpace(v.GetString("socket_path")) == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}
	if _, err := parseMode(v.GetString("socket_mode")); err != nil {
		errs = append(errs, fmt.Errorf("socket_mode %q must be an octal permission like 0600", v.GetString("socket_mode")))
	}
	if v.GetInt64("max_payload") < 0 {
		errs = append(errs, errors.New("max_payload must not be negative"))
	}
	if d, err := parseDuration(v.GetString("idle_timeout")); err != nil {
		errs = append(errs, fmt.Errorf("idle_timeout: %w", err))
	} else if d < 0 {
		errs = append(errs, errors.New("idle_timeout must not be negative"))
	}
	if v.GetBool("journal.enabled") && strings.TrimSpace(v.GetString("journal.path")) == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if _, err := logger.ParseLevel(v.GetString("log.level")); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(v.GetString("log.format")) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", v.GetString("log.format")))
	}
	return errors.Join(errs...)
}

// FromViper validates v and returns the resolved Config.
func FromViper(v *viper.Viper) (Config, error) {
	if err := Validate(v); err != nil {
		return Config{}, err
	}
	mode, _ := parseMode(v.GetString("socket_mode"))
	idle, _ := parseDuration(v.GetString("idle_timeout"))
	return Config{
		SocketPath:     expandHome(v.GetString("socket_path")),
		SocketMode:     mode,
		MaxPayload:     v.GetInt64("max_payload"),
		IdleTimeout:    idle,
		HTTPAddr:       strings.TrimSpace(v.GetString("http_addr")),
		DataDir:        expandHome(v.GetString("data_dir")),
		JournalEnabled: v.GetBool("journal.enabled"),
		JournalPath:    expandHome(v.GetString("journal.path")),
		Log: logger.Options{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   expandHome(v.GetString("log.file")),
		},
	}, nil
}

func parseMode(s string) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0o600, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil || n > 0o777 {
		return 0, fmt.Errorf("bad mode %q", s)
	}
	return os.FileMode(n), nil
}

// parseDuration accepts Go durations; empty and "0" mean no timeout.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// defaultDataDir resolves $XDG_DATA_HOME/ingestd or ~/.local/share/ingestd.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ingestd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ingestd")
}

// DefaultConfigPath resolves the standard config.toml location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "ingestd", "config.toml")
}

// expandHome expands a leading ~ for convenience.
func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
// This is the single source of truth for defaults and for `config generate`.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "socket_path", Default: "", Comment: "Unix socket to accept messages on; empty means $XDG_RUNTIME_DIR/ingestd.sock"},
		{Key: "socket_mode", Default: "0600", Comment: "Permissions applied to the socket file after bind"},
		{Key: "max_payload", Default: 16 << 20, Comment: "Largest payload accepted per connection in bytes; 0 disables the cap"},
		{Key: "idle_timeout", Default: "0s", Comment: "Drop a connection that sends nothing for this long; 0s waits forever"},
		{Key: "http_addr", Default: "", Comment: "Address for /healthz and /metrics; empty disables HTTP"},
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state"},

		{Key: "journal.enabled", Default: true, Comment: "Record every outcome in a SQLite journal"},
		{Key: "journal.path", Default: "", Comment: "Journal database; empty means data_dir/journal.db"},

		{Key: "log.level", Default: "info", Comment: "debug, info, warn or error"},
		{Key: "log.format", Default: "text", Comment: "text or json"},
		{Key: "log.file", Default: "", Comment: "Append logs to this file instead of stderr"},
	}
}
