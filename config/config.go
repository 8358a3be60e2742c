// Package config holds the ledger daemon configuration: storage paths,
// the RPC surface, and the genesis token grants applied on first boot.
package config

import (
	"encoding/json"
	"os"
)

// GenesisToken is a fungible token created when the ledger is first
// initialised, its full supply credited to Owner.
type GenesisToken struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply"` // base units
	Owner    string `json:"owner"`  // pubkey hex
}

// GenesisConfig describes the ledger's initial state.
type GenesisConfig struct {
	ChainID string         `json:"chain_id"`
	Tokens  []GenesisToken `json:"tokens"`
}

// TLSConfig holds PEM paths for serving the RPC endpoint over TLS.
// ClientCACert is optional; when set, clients must present a
// certificate signed by it.
type TLSConfig struct {
	Cert         string `json:"cert"`
	Key          string `json:"key"`
	ClientCACert string `json:"client_ca_cert,omitempty"`
}

// Config holds all daemon configuration. Secrets (keystore password,
// RPC bearer token) come from the environment, not from this file.
type Config struct {
	DataDir string        `json:"data_dir"`
	RPCPort int           `json:"rpc_port"`
	TLS     *TLSConfig    `json:"tls,omitempty"`
	Genesis GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		RPCPort: 8545,
		Genesis: GenesisConfig{
			ChainID: "tokenvibes-dev",
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
