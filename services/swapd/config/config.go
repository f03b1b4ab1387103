package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	nativecommon "swaplace/native/common"
	"swaplace/native/swaplace"
	"swaplace/native/tokens"
	"swaplace/storage"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText parses human readable duration strings for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for swapd.
type Config struct {
	ListenAddress string          `yaml:"listen" toml:"listen"`
	Environment   string          `yaml:"environment" toml:"environment"`
	Storage       StorageConfig   `yaml:"storage" toml:"storage"`
	Engine        EngineConfig    `yaml:"engine" toml:"engine"`
	Tokens        []TokenConfig   `yaml:"tokens" toml:"tokens"`
	Genesis       GenesisConfig   `yaml:"genesis" toml:"genesis"`
	Auth          AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Log           LogConfig       `yaml:"log" toml:"log"`
}

// StorageConfig selects the key/value backend that persists committed state.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// EngineConfig tunes the swap engine.
type EngineConfig struct {
	Address string      `yaml:"address" toml:"address"`
	Paused  bool        `yaml:"paused" toml:"paused"`
	Quota   QuotaConfig `yaml:"quota" toml:"quota"`
}

// QuotaConfig caps swap creation per owner and epoch. MaxEscrowWei is a
// decimal or 0x wei amount. Zero or empty fields disable the cap.
type QuotaConfig struct {
	MaxSwapsPerEpoch uint32 `yaml:"max_swaps_per_epoch" toml:"max_swaps_per_epoch"`
	MaxEscrowWei     string `yaml:"max_escrow_wei" toml:"max_escrow_wei"`
	EpochSeconds     uint32 `yaml:"epoch_seconds" toml:"epoch_seconds"`
}

// Quota converts the configured caps into the engine quota.
func (q QuotaConfig) Quota() (nativecommon.Quota, error) {
	quota := nativecommon.Quota{MaxSwapsPerEpoch: q.MaxSwapsPerEpoch, EpochSeconds: q.EpochSeconds}
	if strings.TrimSpace(q.MaxEscrowWei) == "" {
		return quota, nil
	}
	limit, err := ParseAmount(q.MaxEscrowWei)
	if err != nil {
		return nativecommon.Quota{}, fmt.Errorf("engine.quota.max_escrow_wei: %w", err)
	}
	quota.MaxEscrowWei = limit
	return quota, nil
}

// TokenConfig registers a reference token contract. When Address is empty the
// contract address is derived from the standard and name.
type TokenConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Standard string `yaml:"standard" toml:"standard"`
	Address  string `yaml:"address" toml:"address"`
}

// ResolvedAddress returns the configured or derived contract address.
func (t TokenConfig) ResolvedAddress() common.Address {
	if strings.TrimSpace(t.Address) != "" {
		return common.HexToAddress(t.Address)
	}
	return tokens.ContractAddress(strings.ToLower(t.Standard), t.Name)
}

// GenesisConfig lists allocations applied once to an empty state.
type GenesisConfig struct {
	Native   []NativeAllocation  `yaml:"native" toml:"native"`
	Balances []BalanceAllocation `yaml:"balances" toml:"balances"`
	Items    []ItemAllocation    `yaml:"items" toml:"items"`
}

// NativeAllocation credits native wei to an account.
type NativeAllocation struct {
	Address string `yaml:"address" toml:"address"`
	Amount  string `yaml:"amount" toml:"amount"`
}

// BalanceAllocation mints an ERC20 amount, or an ERC1155 quantity of ID.
type BalanceAllocation struct {
	Token  string `yaml:"token" toml:"token"`
	Holder string `yaml:"holder" toml:"holder"`
	ID     string `yaml:"id" toml:"id"`
	Amount string `yaml:"amount" toml:"amount"`
}

// ItemAllocation mints ERC721 ids.
type ItemAllocation struct {
	Token  string   `yaml:"token" toml:"token"`
	Holder string   `yaml:"holder" toml:"holder"`
	IDs    []string `yaml:"ids" toml:"ids"`
}

// AuthConfig tunes request signature verification.
type AuthConfig struct {
	TimestampSkew  Duration `yaml:"timestamp_skew" toml:"timestamp_skew"`
	ReplayCapacity int      `yaml:"replay_capacity" toml:"replay_capacity"`
	ReplayPath     string   `yaml:"replay_path" toml:"replay_path"`
}

// RateLimitConfig bounds requests per caller. A zero rate disables limiting.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" toml:"rate_per_second"`
	Burst         int     `yaml:"burst" toml:"burst"`
	CreateCost    int     `yaml:"create_cost" toml:"create_cost"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Load reads configuration from path, choosing TOML for .toml files and YAML
// otherwise.
func Load(path string) (Config, error) {
	cfg := Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultEngineAddress is the escrow account used when none is configured.
var DefaultEngineAddress = common.HexToAddress("0x00000000000000000000000000000000005a5a5a")

func ApplyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7075"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendMemory
	}
	if cfg.Engine.Address == "" {
		cfg.Engine.Address = DefaultEngineAddress.Hex()
	}
	if cfg.Auth.TimestampSkew.Duration == 0 {
		cfg.Auth.TimestampSkew.Duration = 2 * time.Minute
	}
	if cfg.Auth.ReplayCapacity <= 0 {
		cfg.Auth.ReplayCapacity = 65536
	}
	if cfg.RateLimit.RatePerSecond > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RatePerSecond) + 1
	}
	if cfg.RateLimit.CreateCost <= 0 {
		cfg.RateLimit.CreateCost = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func Validate(cfg Config) error {
	switch strings.ToLower(cfg.Storage.Backend) {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendBolt:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path required for %s backend", cfg.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if !common.IsHexAddress(cfg.Engine.Address) || common.HexToAddress(cfg.Engine.Address) == (common.Address{}) {
		return fmt.Errorf("engine.address %q is not a valid non-zero address", cfg.Engine.Address)
	}
	if _, err := cfg.Engine.Quota.Quota(); err != nil {
		return err
	}
	if cfg.RateLimit.RatePerSecond < 0 {
		return fmt.Errorf("rate_limit.rate_per_second must not be negative")
	}

	byName := make(map[string]string, len(cfg.Tokens))
	seen := make(map[common.Address]string, len(cfg.Tokens))
	for i, token := range cfg.Tokens {
		name := strings.TrimSpace(token.Name)
		if name == "" {
			return fmt.Errorf("tokens[%d]: name required", i)
		}
		standard := strings.ToLower(strings.TrimSpace(token.Standard))
		switch standard {
		case tokens.StandardERC20, tokens.StandardERC721, tokens.StandardERC1155:
		default:
			return fmt.Errorf("tokens[%d]: unknown standard %q", i, token.Standard)
		}
		if token.Address != "" && !common.IsHexAddress(token.Address) {
			return fmt.Errorf("tokens[%d]: invalid address %q", i, token.Address)
		}
		if _, dup := byName[name]; dup {
			return fmt.Errorf("tokens[%d]: duplicate name %q", i, name)
		}
		addr := token.ResolvedAddress()
		if prev, dup := seen[addr]; dup {
			return fmt.Errorf("tokens[%d]: address %s already used by %q", i, addr.Hex(), prev)
		}
		byName[name] = standard
		seen[addr] = name
	}

	for i, alloc := range cfg.Genesis.Native {
		if err := checkAddress(alloc.Address); err != nil {
			return fmt.Errorf("genesis.native[%d]: %w", i, err)
		}
		if _, err := ParseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("genesis.native[%d]: %w", i, err)
		}
	}
	for i, alloc := range cfg.Genesis.Balances {
		standard, ok := byName[strings.TrimSpace(alloc.Token)]
		if !ok {
			return fmt.Errorf("genesis.balances[%d]: unknown token %q", i, alloc.Token)
		}
		if standard == tokens.StandardERC721 {
			return fmt.Errorf("genesis.balances[%d]: %s token %q takes item allocations", i, standard, alloc.Token)
		}
		if standard == tokens.StandardERC1155 {
			if _, err := ParseAmount(alloc.ID); err != nil {
				return fmt.Errorf("genesis.balances[%d]: id: %w", i, err)
			}
		}
		if err := checkAddress(alloc.Holder); err != nil {
			return fmt.Errorf("genesis.balances[%d]: %w", i, err)
		}
		if _, err := ParseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("genesis.balances[%d]: %w", i, err)
		}
	}
	for i, alloc := range cfg.Genesis.Items {
		standard, ok := byName[strings.TrimSpace(alloc.Token)]
		if !ok || standard != tokens.StandardERC721 {
			return fmt.Errorf("genesis.items[%d]: %q is not an erc721 token", i, alloc.Token)
		}
		if err := checkAddress(alloc.Holder); err != nil {
			return fmt.Errorf("genesis.items[%d]: %w", i, err)
		}
		for _, id := range alloc.IDs {
			if _, err := ParseAmount(id); err != nil {
				return fmt.Errorf("genesis.items[%d]: id: %w", i, err)
			}
		}
	}
	return nil
}

// ParseAmount parses a non-negative decimal or 0x-prefixed integer.
func ParseAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("amount required")
	}
	return swaplace.ParseAmount(raw)
}

func checkAddress(raw string) error {
	if !common.IsHexAddress(strings.TrimSpace(raw)) {
		return fmt.Errorf("invalid address %q", raw)
	}
	return nil
}
