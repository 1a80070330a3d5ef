package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		var v int64
		if err := value.Decode(&v); err != nil {
			return err
		}
		d.Duration = time.Duration(v) * time.Millisecond
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

type Config struct {
	Chain   string `yaml:"chain"`
	ChainID uint64 `yaml:"chain_id"`

	RPC struct {
		HTTP string `yaml:"http"`
		WS   string `yaml:"ws"`
		// RequestTimeout bounds every RPC round trip. Negative disables it.
		RequestTimeout Duration `yaml:"request_timeout"`
		DialRetries    int      `yaml:"dial_retries"`
		DialBackoff    Duration `yaml:"dial_backoff"`
	} `yaml:"rpc"`

	KeyStore struct {
		Dir           string `yaml:"dir"`
		PassphraseEnv string `yaml:"passphrase_env"`
	} `yaml:"keystore"`

	API struct {
		Listen    string `yaml:"listen"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"api"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

var knownChains = map[string]uint64{
	"ethereum": 1,
	"mainnet":  1,
	"sepolia":  11155111,
	"base":     8453,
	"optimism": 10,
	"arbitrum": 42161,
	"polygon":  137,
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chain == "" {
		c.Chain = "ethereum"
	}
	if c.ChainID == 0 {
		c.ChainID = knownChains[strings.ToLower(c.Chain)]
	}
	if c.RPC.RequestTimeout.Duration == 0 {
		c.RPC.RequestTimeout = Duration{Duration: 15 * time.Second}
	}
	if c.RPC.DialRetries == 0 {
		c.RPC.DialRetries = 3
	}
	if c.RPC.DialBackoff.Duration == 0 {
		c.RPC.DialBackoff = Duration{Duration: 500 * time.Millisecond}
	}
	if c.KeyStore.Dir == "" {
		c.KeyStore.Dir = "data/keystore"
	}
	if c.KeyStore.PassphraseEnv == "" {
		c.KeyStore.PassphraseEnv = "TRANSFER_KEYSTORE_PASSPHRASE"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required for chain %q", c.Chain)
	}
	if c.RPC.HTTP == "" {
		return fmt.Errorf("rpc.http is required")
	}
	if err := checkURL("rpc.http", c.RPC.HTTP, "http", "https"); err != nil {
		return err
	}
	if c.RPC.WS != "" {
		if err := checkURL("rpc.ws", c.RPC.WS, "ws", "wss"); err != nil {
			return err
		}
	}
	if c.RPC.DialRetries < 0 {
		return fmt.Errorf("rpc.dial_retries must be >= 0")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("%s must use %s", field, strings.Join(schemes, " or "))
}

func (c *Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// Passphrase reads the keystore passphrase from the configured variable.
func (c *Config) Passphrase() string {
	return os.Getenv(c.KeyStore.PassphraseEnv)
}
