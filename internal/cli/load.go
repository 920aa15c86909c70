package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/database"
	"github.com/jroosing/nettest/internal/logging"
)

// KeyFlag binds a command line flag to a config key. The flag's text value
// is handed to config.Set when the flag was given.
type KeyFlag struct {
	Flag string
	Key  string
}

// GlobalFlagSet returns the flags shared by every command, bound to
// gs.Flags.
func GlobalFlagSet(gs *GlobalState) *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&gs.Flags.DBPath, "db", "", "SQLite profile database (or set NETTEST_DB)")
	fs.StringArrayVar(&gs.Flags.Sets, "set", nil, "set a config key, as key=value (repeatable)")
	fs.StringVar(&gs.Flags.LogLevel, "log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	fs.BoolVar(&gs.Flags.JSONLogs, "json-logs", false, "log as JSON")
	fs.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	return fs
}

// LoadConfig builds gs.Config from defaults, the profile database, the
// environment, and finally the flags in fs, then configures logging.
//
// With strictProfile false a profile that does not load is only logged, so
// that the config commands can still repair it.
func (gs *GlobalState) LoadConfig(fs *pflag.FlagSet, keyFlags []KeyFlag, strictProfile bool) error {
	cfg := config.Default()
	var profileErr error

	if path := gs.DBPath(); path != "" {
		cfg.Database.Path = path
		db, err := database.Open(path)
		if err != nil {
			return fmt.Errorf("profile %s: %w", path, err)
		}
		profileErr = db.LoadInto(cfg)
		_ = db.Close()
		if profileErr != nil {
			if strictProfile {
				return profileErr
			}
			cfg = config.Default()
			cfg.Database.Path = path
		}
	}

	if err := cfg.ApplyEnv(gs.LookupEnv); err != nil {
		return err
	}

	for _, kf := range keyFlags {
		f := fs.Lookup(kf.Flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Set(kf.Key, f.Value.String()); err != nil {
			return &UsageError{Err: fmt.Errorf("--%s: %w", kf.Flag, err)}
		}
	}
	for _, kv := range gs.Flags.Sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return &UsageError{Err: fmt.Errorf("--set %q: want key=value", kv)}
		}
		if err := cfg.Set(strings.TrimSpace(key), value); err != nil {
			return &UsageError{Err: fmt.Errorf("--set: %w", err)}
		}
	}
	if gs.Flags.LogLevel != "" {
		cfg.Logging.Level = gs.Flags.LogLevel
	}
	if gs.Flags.JSONLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lc := logging.FromConfig(cfg.Logging)
	lc.Output = gs.Stderr
	gs.Logger = logging.Configure(lc)
	gs.Config = cfg

	if profileErr != nil {
		gs.Logger.Warn("stored profile not applied", "err", profileErr)
	}
	return nil
}
