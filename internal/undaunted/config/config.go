package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/delivery"
	"github.com/aqez/undaunted/internal/undaunted/socket"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	NodeID            uuid.UUID     `yaml:"nodeId"`
	BindAddress       string        `yaml:"bindAddress"`
	RetransmitTimeout time.Duration `yaml:"retransmitTimeout"`
	SendInterval      time.Duration `yaml:"sendInterval"`
	ReceiveYield      time.Duration `yaml:"receiveYield"`
	ReceiveBufferSize int           `yaml:"receiveBufferSize"`
	MaxPending        int           `yaml:"maxPending"`
	MaxInbound        int           `yaml:"maxInbound"`
	MetricsAddress    string        `yaml:"metricsAddress"`
}

// DefaultConfig returns the configuration used when no file exists, with a
// fresh node id.
func DefaultConfig() Config {
	options := delivery.NewDefaultOptions()
	return Config{
		NodeID:            uuid.New(),
		BindAddress:       "0.0.0.0:1337",
		RetransmitTimeout: options.RetransmitTimeout,
		SendInterval:      options.SendInterval,
		ReceiveYield:      options.ReceiveYield,
		ReceiveBufferSize: options.ReceiveBufferSize,
		MaxPending:        options.MaxPending,
		MaxInbound:        options.MaxInbound,
	}
}

// LoadConfig reads the config file at filePath. Keys missing from the file
// keep their default; a missing file yields the defaults.
func LoadConfig(filePath string) (Config, error) {
	config := DefaultConfig()

	fileContent, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(fileContent, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", filePath, err)
	}
	if config.NodeID == uuid.Nil {
		config.NodeID = uuid.New()
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return config, nil
}

// SaveConfig writes config to filePath, readable only by the owner.
func SaveConfig(filePath string, config Config) error {
	fileContent, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	if err := os.WriteFile(filePath, fileContent, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", filePath, err)
	}
	return nil
}

func (c Config) Validate() error {
	var err error
	if _, parseErr := netip.ParseAddrPort(c.BindAddress); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("bindAddress: %w", parseErr))
	}
	if c.RetransmitTimeout <= 0 {
		err = multierr.Append(err, errors.New("retransmitTimeout must be positive"))
	}
	if c.SendInterval <= 0 {
		err = multierr.Append(err, errors.New("sendInterval must be positive"))
	}
	if c.ReceiveYield < 0 {
		err = multierr.Append(err, errors.New("receiveYield must not be negative"))
	}
	if c.ReceiveBufferSize <= 0 || c.ReceiveBufferSize > socket.MaxDatagramSize {
		err = multierr.Append(err, fmt.Errorf("receiveBufferSize must be between 1 and %d", socket.MaxDatagramSize))
	}
	if c.MaxPending < 0 {
		err = multierr.Append(err, errors.New("maxPending must not be negative"))
	}
	if c.MaxInbound < 0 {
		err = multierr.Append(err, errors.New("maxInbound must not be negative"))
	}
	return err
}

// DeliveryOptions returns the engine options described by the config.
func (c Config) DeliveryOptions() delivery.Options {
	options := delivery.NewDefaultOptions()
	options.RetransmitTimeout = c.RetransmitTimeout
	options.SendInterval = c.SendInterval
	options.ReceiveYield = c.ReceiveYield
	options.ReceiveBufferSize = c.ReceiveBufferSize
	options.MaxPending = c.MaxPending
	options.MaxInbound = c.MaxInbound
	return options
}
