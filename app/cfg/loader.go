package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/catalog.db" description:"SQLite database file for users and overlays"`

	// Application configuration
	SourcesDir         string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing catalog source files"`
	Port               string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount        int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SweepInterval      int    `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"60" description:"Idle session sweep interval in seconds"`
	SessionIdleTimeout int    `long:"session-idle-timeout" env:"SESSION_IDLE_TIMEOUT" default:"1800" description:"Seconds before an unused browsing session is dropped"`

	// Authentication
	TokenKey  string  `long:"token-key" env:"TOKEN_KEY" description:"Hex encoded 32 byte PASETO key (random per process when empty)"`
	TokenTTL  int     `long:"token-ttl" env:"TOKEN_TTL" default:"86400" description:"Access token lifetime in seconds"`
	ResetTTL  int     `long:"reset-ttl" env:"RESET_TTL" default:"900" description:"Password reset token lifetime in seconds"`
	AuthRate  float64 `long:"auth-rate" env:"AUTH_RATE" default:"1" description:"Auth requests per second allowed per client"`
	AuthBurst int     `long:"auth-burst" env:"AUTH_BURST" default:"5" description:"Auth request burst per client"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Catalog Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Sao_Paulo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SweepInterval:      raw.SweepInterval,
		SessionIdleTimeout: raw.SessionIdleTimeout,
		TokenKey:           raw.TokenKey,
		TokenTTL:           raw.TokenTTL,
		ResetTTL:           raw.ResetTTL,
		AuthRate:           raw.AuthRate,
		AuthBurst:          raw.AuthBurst,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	positive := map[string]int{
		"worker count":         c.WorkerCount,
		"sweep interval":       c.SweepInterval,
		"session idle timeout": c.SessionIdleTimeout,
		"token ttl":            c.TokenTTL,
		"reset ttl":            c.ResetTTL,
		"auth burst":           c.AuthBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.AuthRate <= 0 {
		return fmt.Errorf("auth rate must be positive")
	}
	return nil
}

func (c *Cfg) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTL) * time.Second
}

func (c *Cfg) GetResetTTL() time.Duration {
	return time.Duration(c.ResetTTL) * time.Second
}

func (c *Cfg) GetSweepInterval() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func (c *Cfg) GetSessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeout) * time.Second
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
