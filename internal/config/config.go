// Package config loads and validates tasktrack configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	// NetworkMinato is the Soneium Minato testnet.
	NetworkMinato = "soneium-minato"
	// NetworkDevchain is the local development chain served by `tasktrack devchain`.
	NetworkDevchain = "devchain"

	// ConnectorInjected is the default wallet connector.
	ConnectorInjected = "injected"
	// ConnectorDev is the devchain's deterministic key connector.
	ConnectorDev = "dev"

	// DefaultDwellTime is how long a confirmed submission stays on screen.
	DefaultDwellTime = 3000 * time.Millisecond
)

// ErrInvalidAddress is returned when the contract address fails validation.
var ErrInvalidAddress = errors.New("invalid contract address")

// DevchainContract is the fixed address the devchain serves the task tracker at.
var DevchainContract = common.HexToAddress("0x7a5c0000000000000000000000000000000000a1")

// Network is a built-in chain profile.
type Network struct {
	ChainID  uint64
	RPCURL   string
	Contract string

	// Connector is the wallet connector the profile uses by default.
	Connector string
}

// Networks lists the built-in chain profiles.
var Networks = map[string]Network{
	NetworkMinato: {
		ChainID:   1946,
		RPCURL:    "https://rpc.minato.soneium.org",
		Contract:  "0x9ad09953380f5a87Ba85E8cCf12927bF9f22C15A",
		Connector: ConnectorInjected,
	},
	NetworkDevchain: {
		ChainID:   1337,
		RPCURL:    "http://127.0.0.1:8546",
		Contract:  DevchainContract.Hex(),
		Connector: ConnectorDev,
	},
}

// Config holds tasktrack configuration.
type Config struct {
	// Network selects a built-in profile; explicit fields below override it.
	Network string `yaml:"network"`
	// ChainID of the target network.
	ChainID uint64 `yaml:"chain_id"`
	// RPCURL is the JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`
	// ContractAddress is the deployed task tracker contract.
	ContractAddress string `yaml:"contract_address"`
	// Connector is the default wallet connector id.
	Connector string `yaml:"connector"`
	// KeystorePath is the encrypted key file used by the keystore connector.
	KeystorePath string `yaml:"keystore_path,omitempty"`
	// ConfirmSignatures asks before every transaction is signed.
	ConfirmSignatures bool `yaml:"confirm_signatures"`
	// DwellTime is how long the success indicator stays visible.
	DwellTime time.Duration `yaml:"dwell_time"`
	// ConfirmTimeout bounds a submission; zero waits until the receipt arrives.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// PollInterval is the receipt polling interval.
	PollInterval time.Duration `yaml:"poll_interval"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFile receives logs while the TUI owns the terminal.
	LogFile string `yaml:"log_file,omitempty"`
	// Devchain configures the local development chain.
	Devchain DevchainConfig `yaml:"devchain"`
}

// DevchainConfig configures `tasktrack devchain`.
type DevchainConfig struct {
	Listen    string        `yaml:"listen"`
	DBPath    string        `yaml:"db_path"`
	BlockTime time.Duration `yaml:"block_time"`
	// Instant seals a block as soon as a transaction arrives.
	Instant bool `yaml:"instant"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{
		Network:           NetworkMinato,
		ConfirmSignatures: true,
		DwellTime:         DefaultDwellTime,
		PollInterval:      time.Second,
		LogLevel:          "info",
		Devchain: DevchainConfig{
			Listen:    "127.0.0.1:8546",
			DBPath:    filepath.Join(homeDir(), "devchain.db"),
			BlockTime: 2 * time.Second,
			Instant:   true,
		},
	}
	cfg.ApplyNetwork()
	return cfg
}

// ApplyNetwork fills chain fields from the selected built-in profile.
// Fields that are already set are left alone.
func (c *Config) ApplyNetwork() {
	n, ok := Networks[c.Network]
	if !ok {
		return
	}
	if c.ChainID == 0 {
		c.ChainID = n.ChainID
	}
	if c.RPCURL == "" {
		c.RPCURL = n.RPCURL
	}
	if c.ContractAddress == "" {
		c.ContractAddress = n.Contract
	}
	if c.Connector == "" {
		c.Connector = n.Connector
	}
}

// UseNetwork switches to a built-in profile, replacing the chain fields.
func (c *Config) UseNetwork(name string) error {
	n, ok := Networks[name]
	if !ok {
		return fmt.Errorf("unknown network %q", name)
	}
	c.Network = name
	c.ChainID = n.ChainID
	c.RPCURL = n.RPCURL
	c.ContractAddress = n.Contract
	c.Connector = n.Connector
	return nil
}

// ApplyEnv overrides fields from TASKTRACK_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TASKTRACK_RPC_URL"); ok && v != "" {
		c.RPCURL = v
	}
	if v, ok := lookup("TASKTRACK_CONTRACT"); ok && v != "" {
		c.ContractAddress = v
	}
	if v, ok := lookup("TASKTRACK_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id must be set")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url must be set")
	}
	if _, err := ParseAddress(c.ContractAddress); err != nil {
		return err
	}
	if c.DwellTime < 0 {
		return fmt.Errorf("dwell_time must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q, must be: trace, debug, info, warn, or error", c.LogLevel)
	}
	return nil
}

// Contract returns the validated contract address.
func (c *Config) Contract() common.Address {
	addr, _ := ParseAddress(c.ContractAddress)
	return addr
}

// ParseAddress validates a hex address: 40 hex digits after the 0x prefix
// and, when the input is mixed case, a correct EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: %q is missing the 0x prefix", ErrInvalidAddress, s)
	}
	if len(s) != 2+2*common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: %q has %d hex digits, want %d", ErrInvalidAddress, s, len(s)-2, 2*common.AddressLength)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not hex", ErrInvalidAddress, s)
	}
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		mixed, err := common.NewMixedcaseAddressFromString(s)
		if err != nil {
			return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !mixed.ValidChecksum() {
			return common.Address{}, fmt.Errorf("%w: %q has a bad checksum", ErrInvalidAddress, s)
		}
	}
	return common.HexToAddress(s), nil
}

// LoadConfig loads configuration from a YAML file. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// A file that names another network must not inherit minato's chain fields.
	var head struct {
		Network string `yaml:"network"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if head.Network != "" && head.Network != cfg.Network {
		cfg.Network = head.Network
		cfg.ChainID, cfg.RPCURL, cfg.ContractAddress, cfg.Connector = 0, "", "", ""
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyNetwork()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// HomePath returns the default config path, ~/.tasktrack/config.yaml.
func HomePath() string {
	return filepath.Join(homeDir(), "config.yaml")
}

// LoadConfigFromHome loads configuration from ~/.tasktrack/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	return LoadConfig(HomePath())
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Dir returns ~/.tasktrack.
func Dir() string {
	return homeDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasktrack"
	}
	return filepath.Join(home, ".tasktrack")
}
