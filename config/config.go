package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	LogFile        string `toml:"LogFile"`
	Environment    string `toml:"Environment"`
	Owner          string `toml:"Owner"`

	Params    ParamsConfig    `toml:"params"`
	RPC       RPCConfig       `toml:"rpc"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Genesis   []SeedBalance   `toml:"genesis"`
}

// ParamsConfig carries the initial global parameters applied on first boot.
// Amounts are decimal strings in native value units.
type ParamsConfig struct {
	MinStakeRaw         string `toml:"MinStake"`
	MaxStakeRaw         string `toml:"MaxStake"`
	RewardMultiplierBps uint32 `toml:"RewardMultiplierBps"`
	SlashPenaltyBps     uint32 `toml:"SlashPenaltyBps"`
	LockDurationSeconds uint64 `toml:"LockDurationSeconds"`
}

// RPCConfig tunes the HTTP surface.
type RPCConfig struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// SeedBalance funds an account at first boot. Dev networks only.
type SeedBalance struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8551"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./linkstake-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if cfg.RPC.RateLimitPerSecond <= 0 {
		cfg.RPC.RateLimitPerSecond = 10
	}
	if cfg.RPC.RateLimitBurst <= 0 {
		cfg.RPC.RateLimitBurst = 20
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner address is required")
	}
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("config: Owner is not a valid hex address: %s", c.Owner)
	}
	switch c.StorageBackend {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported storage backend %q", c.StorageBackend)
	}
	if c.Params.RewardMultiplierBps > 10_000 {
		return fmt.Errorf("config: RewardMultiplierBps out of range")
	}
	if c.Params.SlashPenaltyBps > 10_000 {
		return fmt.Errorf("config: SlashPenaltyBps out of range")
	}
	min, err := c.Params.minStake()
	if err != nil {
		return err
	}
	max, err := c.Params.maxStake()
	if err != nil {
		return err
	}
	if min.Cmp(max) > 0 {
		return fmt.Errorf("config: MinStake exceeds MaxStake")
	}
	for _, seed := range c.Genesis {
		if !common.IsHexAddress(seed.Address) {
			return fmt.Errorf("config: genesis address %q is not a valid hex address", seed.Address)
		}
		if _, err := parseAmount(seed.Amount); err != nil {
			return fmt.Errorf("config: genesis amount for %s: %w", seed.Address, err)
		}
	}
	return nil
}

// OwnerAddress parses the configured owner principal.
func (c *Config) OwnerAddress() [20]byte {
	return common.HexToAddress(c.Owner)
}

// Parse decodes the seed entry into a principal and amount.
func (s *SeedBalance) Parse() ([20]byte, *big.Int, error) {
	if !common.IsHexAddress(s.Address) {
		return [20]byte{}, nil, fmt.Errorf("config: genesis address %q is not a valid hex address", s.Address)
	}
	amount, err := parseAmount(s.Amount)
	if err != nil {
		return [20]byte{}, nil, fmt.Errorf("config: genesis amount for %s: %w", s.Address, err)
	}
	return common.HexToAddress(s.Address), amount, nil
}

// MinStake returns the configured minimum stake amount.
func (p *ParamsConfig) MinStake() *big.Int {
	v, _ := p.minStake()
	return v
}

// MaxStake returns the configured maximum stake amount.
func (p *ParamsConfig) MaxStake() *big.Int {
	v, _ := p.maxStake()
	return v
}

func (p *ParamsConfig) minStake() (*big.Int, error) {
	if strings.TrimSpace(p.MinStakeRaw) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(p.MinStakeRaw)
}

func (p *ParamsConfig) maxStake() (*big.Int, error) {
	if strings.TrimSpace(p.MaxStakeRaw) == "" {
		// Effectively unbounded.
		return new(big.Int).Lsh(big.NewInt(1), 255), nil
	}
	return parseAmount(p.MaxStakeRaw)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

// createDefault creates and saves a default configuration file. The owner is
// left blank deliberately; the daemon refuses to start until one is set.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8551",
		DataDir:        "./linkstake-data",
		StorageBackend: "leveldb",
		Params: ParamsConfig{
			MinStakeRaw:         "10000000000000000",  // 0.01 in 18-decimal units
			MaxStakeRaw:         "500000000000000000", // 0.5
			RewardMultiplierBps: 1500,
			SlashPenaltyBps:     2000,
			LockDurationSeconds: 7 * 24 * 60 * 60,
		},
		RPC: RPCConfig{RateLimitPerSecond: 10, RateLimitBurst: 20},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, fmt.Errorf("config: wrote default config to %s; set Owner and restart", path)
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
