package mjpeg

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file form of an extractor configuration.
type Config struct {
	Endpoint     Endpoint      `yaml:"endpoint"`
	Framing      Framing       `yaml:"framing"`
	BufferSize   int           `yaml:"buffer_size"`
	ReadSize     int           `yaml:"read_size"`
	MaxFrameSize int           `yaml:"max_frame_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration and validates its endpoint.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options converts the configuration into extractor options.
// Zero values are left to the option defaults.
func (c *Config) Options() []Option {
	return []Option{
		FramingOption(c.Framing),
		BufferSizeOption(c.BufferSize),
		ReadSizeOption(c.ReadSize),
		MaxFrameSizeOption(c.MaxFrameSize),
		DialTimeoutOption(c.DialTimeout),
	}
}
