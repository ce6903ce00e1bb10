package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's deployment-time wiring: where state lives, where
// RPC listens, and which identity administers the pool registry.
type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	DataDir               string `toml:"DataDir"`
	AuditDBPath           string `toml:"AuditDBPath"`
	NetworkName           string `toml:"NetworkName"`
	Environment           string `toml:"Environment"`
	AdminAddress          string `toml:"AdminAddress"`
	FoodBankMinCertAmount string `toml:"FoodBankMinCertAmount"`
}

// Load loads the configuration from the given path, creating a default file on
// first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.AuditDBPath) == "" {
		c.AuditDBPath = filepath.Join(c.DataDir, "audit.db")
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "amanah-local"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if strings.TrimSpace(c.FoodBankMinCertAmount) == "" {
		c.FoodBankMinCertAmount = "0"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Admin decodes the configured administrator address. An unset address is an
// error: the pool registry cannot be administered without one.
func (c *Config) Admin() ([20]byte, error) {
	return ParseAddress(c.AdminAddress)
}

// ParseAddress decodes a 20-byte hex address with optional 0x prefix.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return addr, fmt.Errorf("config: address must not be empty")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: decode address: %w", err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("config: address must be 20 bytes (got %d)", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
