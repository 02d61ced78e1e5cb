// Package httpgate assembles the gateway into a server: configuration,
// logging, tracing and the TCP accept loop.
package httpgate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/httpgate/internal/apps"
	"github.com/stealthrocket/httpgate/internal/gateway"
	"github.com/stealthrocket/httpgate/internal/human"
)

const defaultConfigPath = "~/.httpgate/config.yaml"

// ConfigPath is the path to the httpgate configuration.
var ConfigPath human.Path = defaultConfigPath

var errInvalidConfig = errors.New("invalid configuration")

// LoadConfig opens and reads the configuration file.
func LoadConfig() (*Config, error) {
	r, _, err := OpenConfig()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadConfig(r)
}

// OpenConfig opens the configuration file. When the file does not exist, the
// returned reader produces the default configuration.
func OpenConfig() (io.ReadCloser, string, error) {
	path, err := ConfigPath.Resolve()
	if err != nil {
		return nil, path, err
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, err
		}
		b, _ := yaml.Marshal(DefaultConfig())
		return io.NopCloser(bytes.NewReader(b)), path, nil
	}
	return f, path, nil
}

// ReadConfig reads, parses and validates configuration. Fields missing from
// the input keep their default values.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && err != io.EOF {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultConfig is the default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:           ":8080",
		UndeclaredLength: "close",
		Policy:           "random",
		ReadTimeout:      human.Duration(30 * time.Second),
		WriteTimeout:     human.Duration(30 * time.Second),
		MaxHeaderBytes:   human.Bytes(gateway.DefaultMaxHeaderBytes),
	}
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// Config is httpgate configuration.
type Config struct {
	Listen           string         `json:"listen"           yaml:"listen"`
	ReusePort        bool           `json:"reusePort"        yaml:"reusePort"`
	UndeclaredLength string         `json:"undeclaredLength" yaml:"undeclaredLength"`
	Policy           string         `json:"policy"           yaml:"policy"`
	ReadTimeout      human.Duration `json:"readTimeout"      yaml:"readTimeout"`
	WriteTimeout     human.Duration `json:"writeTimeout"     yaml:"writeTimeout"`
	MaxHeaderBytes   human.Bytes    `json:"maxHeaderBytes"   yaml:"maxHeaderBytes"`
	// Connections accepted per second, zero means unlimited.
	AcceptRate  float64 `json:"acceptRate,omitempty"  yaml:"acceptRate,omitempty"`
	AcceptBurst int     `json:"acceptBurst,omitempty" yaml:"acceptBurst,omitempty"`

	Log     LogConfig `json:"log"     yaml:"log"`
	Tracing struct {
		Enabled bool `json:"enabled" yaml:"enabled"`
	} `json:"tracing" yaml:"tracing"`

	Apps []apps.Config `json:"apps,omitempty" yaml:"apps,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level"  yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Validate checks the values of enumerated and numeric fields.
func (c *Config) Validate() error {
	if _, err := c.Undeclared(); err != nil {
		return err
	}
	if _, err := c.NewPolicy(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level: %w", errInvalidConfig, err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format must be one of json, console: %q", errInvalidConfig, c.Log.Format)
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return fmt.Errorf("%w: acceptRate and acceptBurst must not be negative", errInvalidConfig)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", errInvalidConfig)
	}
	return nil
}

// Undeclared returns the framing of bodies without a declared length.
func (c *Config) Undeclared() (gateway.FramingMode, error) {
	switch c.UndeclaredLength {
	case "close", "":
		return gateway.CloseDelimited, nil
	case "chunked":
		return gateway.Chunked, nil
	default:
		return 0, fmt.Errorf("%w: undeclaredLength must be one of close, chunked: %q", errInvalidConfig, c.UndeclaredLength)
	}
}

// NewPolicy constructs the handler selection policy.
func (c *Config) NewPolicy() (gateway.Policy, error) {
	switch c.Policy {
	case "random", "":
		return gateway.Random(), nil
	case "round-robin":
		return gateway.RoundRobin(), nil
	case "first":
		return gateway.Fixed(0), nil
	default:
		return nil, fmt.Errorf("%w: policy must be one of random, round-robin, first: %q", errInvalidConfig, c.Policy)
	}
}

// NewLimiter constructs the limiter applied to accepted connections, or nil
// if connections are not rate limited.
func (c *Config) NewLimiter() *rate.Limiter {
	if c.AcceptRate <= 0 {
		return nil
	}
	burst := c.AcceptBurst
	if burst == 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.AcceptRate), burst)
}

// NewGateway constructs a gateway serving the applications declared in the
// configuration, or the demo applications if none are declared.
func (c *Config) NewGateway(logger *zap.Logger, tracing *Tracing) (*gateway.Gateway, error) {
	handlers, err := apps.Load(c.Apps)
	if err != nil {
		return nil, err
	}
	policy, err := c.NewPolicy()
	if err != nil {
		return nil, err
	}
	undeclared, err := c.Undeclared()
	if err != nil {
		return nil, err
	}
	dispatcher, err := gateway.NewDispatcher(policy, handlers...)
	if err != nil {
		return nil, err
	}
	return &gateway.Gateway{
		Dispatcher:     dispatcher,
		Undeclared:     undeclared,
		MaxHeaderBytes: c.MaxHeaderBytes.Int(),
		ReadTimeout:    time.Duration(c.ReadTimeout),
		WriteTimeout:   time.Duration(c.WriteTimeout),
		Logger:         logger,
		Tracer:         tracing.Tracer(),
	}, nil
}
