// Package config loads named timing profiles for the coalesce primitives.
//
// A profile names the delay or interval a call site uses and the queue it
// runs on, so that timings can be tuned without touching code:
//
//	log_level: info
//	pool:
//	  workers: 4
//	  queue_size: 16
//	profiles:
//	  search:
//	    delay: 250ms
//	    queue: ui
//	  progress:
//	    interval: 1s
//
// Durations accept Go duration strings. Missing delays and intervals default
// to 300ms; a missing queue defaults to queue.MainLabel.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	cerrors "github.com/vnykmshr/coalesce/pkg/common/errors"
	"github.com/vnykmshr/coalesce/pkg/common/validation"
	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/timing/debounce"
	"github.com/vnykmshr/coalesce/pkg/timing/throttle"
)

// Format selects the parser used for raw configuration bytes.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Profile is the timing of one call site.
type Profile struct {
	// Delay is the quiet period of debouncers using this profile.
	Delay time.Duration `koanf:"delay"`

	// Interval is the minimum spacing of throttlers using this profile.
	Interval time.Duration `koanf:"interval"`

	// Queue is the label of the queue tasks run on.
	Queue string `koanf:"queue"`
}

// PoolConfig sizes the shared worker pool queues may target.
// Zero workers means queues drain on their own goroutines.
type PoolConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// Config is a loaded set of timing profiles.
type Config struct {
	LogLevel string             `koanf:"log_level"`
	Pool     PoolConfig         `koanf:"pool"`
	Profiles map[string]Profile `koanf:"profiles"`
}

// Load reads a YAML or JSON file, chosen by extension, and validates it.
func Load(path string) (*Config, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, cerrors.NewValidationError("config", "path", path, "unsupported file extension").
			WithHint("use a .yaml, .yml or .json file")
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, cerrors.NewOperationError("config", "Load", err).WithContext("path=" + path)
	}
	return build(k)
}

// LoadBytes parses raw configuration in the given format and validates it.
func LoadBytes(b []byte, format Format) (*Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, cerrors.NewValidationError("config", "format", format, "unsupported format").
			WithHint("use config.FormatYAML or config.FormatJSON")
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(b), parser); err != nil {
		return nil, cerrors.NewOperationError("config", "LoadBytes", err)
	}
	return build(k)
}

func build(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return nil, cerrors.NewOperationError("config", "Unmarshal", err)
	}

	for name, p := range cfg.Profiles {
		if !k.Exists("profiles." + name + ".delay") {
			p.Delay = debounce.DefaultDelay
		}
		if !k.Exists("profiles." + name + ".interval") {
			p.Interval = throttle.DefaultInterval
		}
		if p.Queue == "" {
			p.Queue = queue.MainLabel
		}
		cfg.Profiles[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Pool.Workers < 0 {
		return cerrors.NewValidationError("config", "pool.workers", c.Pool.Workers, "cannot be negative").
			WithHint("use 0 to let queues drain on their own goroutines")
	}
	if c.Pool.QueueSize < 0 {
		return cerrors.NewValidationError("config", "pool.queue_size", c.Pool.QueueSize, "cannot be negative")
	}

	for _, name := range c.Names() {
		p := c.Profiles[name]
		prefix := "profiles." + name + "."
		if err := validation.ValidateNonNegativeDuration("config", prefix+"delay", p.Delay); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeDuration("config", prefix+"interval", p.Interval); err != nil {
			return err
		}
		if err := validation.ValidateNotEmpty("config", prefix+"queue", p.Queue); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the profile names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, cerrors.NewOperationError("config", "Profile", cerrors.ErrProfileNotFound).
			WithContext(fmt.Sprintf("name=%q", name))
	}
	return p, nil
}

// Level parses LogLevel. An empty level means zerolog.InfoLevel.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, cerrors.NewValidationError("config", "log_level", c.LogLevel, "unknown level").
			WithHint("use trace, debug, info, warn, error or disabled")
	}
	return lvl, nil
}
