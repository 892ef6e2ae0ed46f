// Package config provides the environment-driven configuration of the
// parley daemon, loaded with go-simpler.org/env and defaulting its
// directories from the XDG base directory spec. A .env file in the config
// directory overrides process environment defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"parley.dev/pkg/utils/apputil"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/log"
	"parley.dev/pkg/utils/lol"
)

// C holds the daemon's settings.
type C struct {
	AppName       string        `env:"PARLEY_APP_NAME" default:"parley"`
	Config        string        `env:"PARLEY_CONFIG_DIR" usage:"location of the .env configuration file"`
	DataDir       string        `env:"PARLEY_DATA_DIR" usage:"storage location for the event store"`
	LogLevel      string        `env:"PARLEY_LOG_LEVEL" default:"info" usage:"log level: off fatal error warn info debug trace"`
	DbLogLevel    string        `env:"PARLEY_DB_LOG_LEVEL" default:"warn" usage:"event store log level"`
	Relays        []string      `env:"PARLEY_RELAYS" usage:"read/write relays to mirror against (comma separated)"`
	ReadRelays    []string      `env:"PARLEY_READ_RELAYS" usage:"read-only relays (comma separated)"`
	WriteRelays   []string      `env:"PARLEY_WRITE_RELAYS" usage:"write-only relays (comma separated)"`
	Discovery     []string      `env:"PARLEY_DISCOVERY_RELAYS" usage:"discovery relays for relay list lookups (comma separated)"`
	Authors       []string      `env:"PARLEY_AUTHORS" usage:"hex pubkeys whose events are mirrored (comma separated)"`
	Kinds         []int         `env:"PARLEY_KINDS" usage:"kinds to mirror; empty means all (comma separated)"`
	SecretKey     string        `env:"PARLEY_SECRET_KEY" usage:"hex secret key used to answer NIP-42 auth challenges"`
	SyncDirection string        `env:"PARLEY_SYNC_DIRECTION" default:"down" usage:"negentropy transfer direction: up, down or both"`
	SyncFrequency time.Duration `env:"PARLEY_SYNC_FREQUENCY" default:"1h" usage:"how often to reconcile, 0h0m0s notation"`
	MaxRelays     uint32        `env:"PARLEY_MAX_RELAYS" usage:"relay pool size cap, 0 for unlimited"`
	NotifyBuffer  int           `env:"PARLEY_NOTIFICATION_BUFFER" default:"4096" usage:"notification channel size"`
}

// New loads the configuration from the environment and the optional .env
// file, and applies the log level.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.T(err) {
		return
	}
	if cfg.Config == "" || strings.Contains(cfg.Config, "~") {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.DataDir == "" || strings.Contains(cfg.DataDir, "~") {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Config, ".env")
	if apputil.FileExists(envPath) {
		var e envSource
		if e, err = readEnvFile(envPath); chk.T(err) {
			return
		}
		if err = env.Load(
			cfg, &env.Options{SliceSep: ",", Source: e},
		); chk.E(err) {
			return
		}
		log.I.F("loaded configuration from %s", envPath)
	}
	cfg.trimEmpties()
	lol.SetLogLevel(cfg.LogLevel)
	return
}

// trimEmpties removes the empty strings a trailing comma or unset slice
// variable produces.
func (cfg *C) trimEmpties() {
	clean := func(in []string) (out []string) {
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return
	}
	cfg.Relays = clean(cfg.Relays)
	cfg.ReadRelays = clean(cfg.ReadRelays)
	cfg.WriteRelays = clean(cfg.WriteRelays)
	cfg.Discovery = clean(cfg.Discovery)
	cfg.Authors = clean(cfg.Authors)
}

// envSource is the key/value map of one .env file, used as an env.Source.
type envSource map[string]string

// LookupEnv implements env.Source.
func (e envSource) LookupEnv(key string) (v string, ok bool) {
	v, ok = e[key]
	return
}

// readEnvFile parses a KEY=value per line .env file; # comments and blank
// lines are skipped.
func readEnvFile(path string) (e envSource, err error) {
	var b []byte
	if b, err = os.ReadFile(path); err != nil {
		return
	}
	e = make(envSource)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		e[strings.TrimSpace(k)] = strings.Trim(
			strings.TrimSpace(v), `"`,
		)
	}
	return
}
