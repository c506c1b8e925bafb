package configuration

import (
	"fmt"

	"github.com/desertwitch/filebox/internal/canonical"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes all configuration keys, both in configuration files and
// in the environment.
const EnvPrefix = "FILEBOX"

const (
	keyRoot              = EnvPrefix + "_ROOT"
	keyMaxPathLen        = EnvPrefix + "_MAX_PATH_LEN"
	keyMaxSymlinks       = EnvPrefix + "_MAX_SYMLINKS"
	keyRevealContainment = EnvPrefix + "_REVEAL_CONTAINMENT"
	keyHardened          = EnvPrefix + "_HARDENED"
	keyListen            = EnvPrefix + "_LISTEN"
)

// DefaultListen is the address the HTTP surface listens on by default.
const DefaultListen = "127.0.0.1:8080"

// Config is the configuration of a file box.
type Config struct {
	Root              string `envconfig:"ROOT"               json:"root"              yaml:"root"`
	MaxPathLen        int    `envconfig:"MAX_PATH_LEN"       json:"maxPathLen"        yaml:"maxPathLen"`
	MaxSymlinks       int    `envconfig:"MAX_SYMLINKS"       json:"maxSymlinks"       yaml:"maxSymlinks"`
	RevealContainment bool   `envconfig:"REVEAL_CONTAINMENT" json:"revealContainment" yaml:"revealContainment"`
	Hardened          bool   `envconfig:"HARDENED"           json:"hardened"          yaml:"hardened"`
	Listen            string `envconfig:"LISTEN"             json:"listen"            yaml:"listen"`
}

// Defaults returns a pointer to a new [Config] holding the default values.
func Defaults() *Config {
	return &Config{
		MaxPathLen:  canonical.DefaultMaxPathLen,
		MaxSymlinks: canonical.DefaultMaxSymlinks,
		Listen:      DefaultListen,
	}
}

// Load returns the configuration built from the defaults, overlaid with the
// given configuration files (in order) and then with the environment. Without
// files, only the defaults and the environment are used.
func (c *Handler) Load(filenames ...string) (*Config, error) {
	cfg := Defaults()

	if len(filenames) > 0 {
		envMap, err := c.ReadGeneric(filenames...)
		if err != nil {
			return nil, fmt.Errorf("(config-load) failed to read: %w", err)
		}

		c.apply(cfg, envMap)
	}

	// Fields without a variable in the environment keep their value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("(config-load) failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Handler) apply(cfg *Config, envMap map[string]string) {
	if root := c.MapKeyToString(envMap, keyRoot); root != "" {
		cfg.Root = root
	}

	if _, ok := envMap[keyMaxPathLen]; ok {
		cfg.MaxPathLen = c.MapKeyToInt(envMap, keyMaxPathLen)
	}

	if _, ok := envMap[keyMaxSymlinks]; ok {
		cfg.MaxSymlinks = c.MapKeyToInt(envMap, keyMaxSymlinks)
	}

	if _, ok := envMap[keyRevealContainment]; ok {
		cfg.RevealContainment = c.MapKeyToBool(envMap, keyRevealContainment)
	}

	if _, ok := envMap[keyHardened]; ok {
		cfg.Hardened = c.MapKeyToBool(envMap, keyHardened)
	}

	if listen := c.MapKeyToString(envMap, keyListen); listen != "" {
		cfg.Listen = listen
	}
}

// Validate checks that the limits of a [Config] are usable. The root is
// checked when the containment guard is established.
func (cfg *Config) Validate() error {
	if cfg.MaxPathLen <= 0 {
		return fmt.Errorf("(config-validate) %w: %s must be positive", ErrInvalidValue, keyMaxPathLen)
	}

	if cfg.MaxSymlinks <= 0 {
		return fmt.Errorf("(config-validate) %w: %s must be positive", ErrInvalidValue, keyMaxSymlinks)
	}

	return nil
}

// Limits returns the resolution limits of a [Config].
func (cfg *Config) Limits() canonical.Limits {
	return canonical.Limits{
		MaxPathLen:  cfg.MaxPathLen,
		MaxSymlinks: cfg.MaxSymlinks,
	}
}
