// Package config loads the client configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/coinset"
	"github.com/yakuhito/streaming-sdk-go/core/poll"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/streamapi"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"gopkg.in/yaml.v3"
)

// Config top level struct representing the configuration of a client.
type Config struct {
	Network  string        `yaml:"Network" validate:"oneof=mainnet testnet11"`
	LogLevel string        `yaml:"LogLevel" validate:"oneof=debug info warn error"`
	Ledger   LedgerConfig  `yaml:"Ledger"`
	Wallet   WalletConfig  `yaml:"Wallet"`
	Claim    ClaimConfig   `yaml:"Claim"`
	Puzzles  PuzzlesConfig `yaml:"Puzzles"`
}

type LedgerConfig struct {
	Endpoint  string        `yaml:"Endpoint" validate:"required,url"`
	Timeout   time.Duration `yaml:"Timeout" validate:"gt=0"`
	RateLimit float64       `yaml:"RateLimit" validate:"gte=0"`
	Burst     int           `yaml:"Burst" validate:"gte=0"`
	CacheSize int           `yaml:"CacheSize" validate:"gte=0"`
	Retry     PollConfig    `yaml:"Retry"`
}

// WalletConfig points at the wallet bridge. An empty URL leaves the client
// read-only.
type WalletConfig struct {
	URL     string            `yaml:"URL" validate:"omitempty,url"`
	Headers map[string]string `yaml:"Headers"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"Interval" validate:"gt=0"`
	Attempts int           `yaml:"Attempts" validate:"gte=0"`
}

func (p PollConfig) Task() poll.Task {
	return poll.Task{Interval: p.Interval, Attempts: p.Attempts}
}

type ClaimConfig struct {
	TimeLag        time.Duration `yaml:"TimeLag" validate:"gte=0"`
	ClawbackOffset time.Duration `yaml:"ClawbackOffset" validate:"gte=0"`
	KeyPageSize    int           `yaml:"KeyPageSize" validate:"gt=0"`
	KeySearchLimit int           `yaml:"KeySearchLimit" validate:"gtefield=KeyPageSize"`
	Funding        PollConfig    `yaml:"Funding"`
	Inclusion      PollConfig    `yaml:"Inclusion"`
}

// PuzzlesConfig holds the serialized puzzle modules as hex.
type PuzzlesConfig struct {
	CAT      string `yaml:"CAT" validate:"required,hexadecimal"`
	Stream   string `yaml:"Stream" validate:"required,hexadecimal"`
	Standard string `yaml:"Standard" validate:"required,hexadecimal"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() Config {
	return Config{
		Network:  "mainnet",
		LogLevel: "info",
		Ledger: LedgerConfig{
			Endpoint:  coinset.MainnetEndpoint,
			Timeout:   coinset.DefaultTimeout,
			CacheSize: coinset.DefaultCacheSize,
			Retry:     PollConfig{Interval: streamapi.DefaultRetry.Interval, Attempts: streamapi.DefaultRetry.Attempts},
		},
		Claim: ClaimConfig{
			TimeLag:        streamapi.DefaultClaimTimeLag,
			ClawbackOffset: streamapi.DefaultClawbackOffset,
			KeyPageSize:    streamapi.DefaultKeyPageSize,
			KeySearchLimit: streamapi.DefaultKeySearchLimit,
			Funding:        PollConfig{Interval: streamapi.DefaultPollInterval, Attempts: streamapi.DefaultPollAttempts},
			Inclusion:      PollConfig{Interval: streamapi.DefaultPollInterval, Attempts: streamapi.DefaultPollAttempts},
		},
	}
}

// Load reads the config at path on top of Default. A testnet11 network
// without an explicit endpoint uses the testnet ledger.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config")
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	var raw struct {
		Ledger struct {
			Endpoint string `yaml:"Endpoint"`
		} `yaml:"Ledger"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrap(err, "problem unmarshaling config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "problem unmarshaling config")
	}
	if cfg.Network == "testnet11" && raw.Ledger.Endpoint == "" {
		cfg.Ledger.Endpoint = coinset.Testnet11Endpoint
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return errors.WithStack(validator.New().Struct(c))
}

// Prefix is the address prefix of the configured network.
func (c Config) Prefix() string {
	if c.Network == "testnet11" {
		return util.TestnetPrefix
	}
	return util.MainnetPrefix
}

// Library loads the configured puzzle modules.
func (c Config) Library() (*puzzles.Library, error) {
	return puzzles.LoadLibrary(c.Puzzles.CAT, c.Puzzles.Stream, c.Puzzles.Standard)
}
