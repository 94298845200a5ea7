// Package config loads the depot server configuration from a TOML file,
// with environment variable overrides (DEPOT_* keys) and built-in defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentic-research/depot/internal/checksum"
)

// Error is the class for configuration failures.
var Error = errs.Class("config")

// DefaultFile is the config file picked up from the working directory when
// no explicit path is given.
const DefaultFile = "depot.toml"

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// HTTPConfig configures the listen address of the server.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config is the complete server configuration.
type Config struct {
	// Site is the externally visible base URL of this instance.
	Site string `mapstructure:"site"`

	// TusdEndpoint is the upload endpoint clients talk tus to.
	TusdEndpoint string `mapstructure:"tusd_endpoint"`
	// TusdDataDir is where tusd stores finished uploads; post-finish hooks
	// import files from here.
	TusdDataDir string `mapstructure:"tusd_datadir"`

	// IncompleteExpireAfter is the staging lifetime in hours.
	IncompleteExpireAfter int `mapstructure:"incomplete_expire_after"`

	// ProfileDir holds *.profile.json and *.schema.json files.
	ProfileDir string `mapstructure:"profile_dir"`
	// DataDir holds the staging and complete dataset trees.
	DataDir string `mapstructure:"data_dir"`

	// Checksum is the algorithm stamped onto new datasets.
	Checksum string `mapstructure:"checksum"`

	// CompletionHook is an optional http(s) URL or command notified after
	// each successful completion.
	CompletionHook string `mapstructure:"completion_hook"`

	Log  LogConfig  `mapstructure:"log"`
	HTTP HTTPConfig `mapstructure:"http"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site", "http://localhost:8000")
	v.SetDefault("tusd_endpoint", "http://localhost:1080/files/")
	v.SetDefault("tusd_datadir", "data")
	v.SetDefault("incomplete_expire_after", 48)
	v.SetDefault("profile_dir", "profiles")
	v.SetDefault("data_dir", "depot_data")
	v.SetDefault("checksum", string(checksum.SHA256))
	v.SetDefault("completion_hook", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
}

// Load reads the configuration. An explicit path must exist; with an empty
// path, DefaultFile is used when present, otherwise defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)
	v.SetEnvPrefix("DEPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, Error.New("cannot read config file %q: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, Error.New("invalid configuration: %v", err)
	}
	if _, err := checksum.ParseAlg(cfg.Checksum); err != nil {
		return nil, Error.Wrap(err)
	}
	return &cfg, nil
}

// TTL is the staging lifetime as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.IncompleteExpireAfter) * time.Hour
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, Error.New("invalid log level %q: %v", c.Log.Level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.Log.File != "" {
		zc.OutputPaths = []string{c.Log.File}
	}
	log, err := zc.Build()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return log, nil
}

// DefaultTOML is a commented skeleton configuration for `depot
// default-config`.
const DefaultTOML = `# depot server configuration

# Externally visible base URL of this instance.
site = "http://localhost:8000"

# tus upload server (tusd) endpoint and its data directory.
tusd_endpoint = "http://localhost:1080/files/"
tusd_datadir = "data"

# Hours before an incomplete staging dataset expires.
incomplete_expire_after = 48

# Directory with *.profile.json and *.schema.json files.
profile_dir = "profiles"

# Directory for the staging and complete dataset trees.
data_dir = "depot_data"

# Checksum algorithm for new datasets: sha256 or sha512.
checksum = "sha256"

# Optional: http(s) URL or command notified after each completion.
#completion_hook = "http://localhost:9000/new-dataset"

[log]
level = "info"
#file = "depot.log"

[http]
host = "0.0.0.0"
port = 8000
`
