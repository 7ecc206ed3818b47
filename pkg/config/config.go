/*
Package config holds the mintgate node configuration: the storage backend,
logging, served endpoints and the genesis state the node materializes on
first start.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/maexx393/mintgate/pkg/core/storage/dbconfig"
	"github.com/maexx393/mintgate/pkg/gate"
	"gopkg.in/yaml.v3"
)

// Version is the version of the node, set at the build time.
var Version string

// Config is the top-level node configuration.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	Genesis                  Genesis                  `yaml:"Genesis"`
}

// ApplicationConfiguration is the config specific to the node: storage,
// logging and the set of served endpoints.
type ApplicationConfiguration struct {
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	Pprof           BasicService             `yaml:"Pprof"`
	Prometheus      BasicService             `yaml:"Prometheus"`
	RPC             RPC                      `yaml:"RPC"`
}

// RPC is the JSON-RPC server configuration.
type RPC struct {
	BasicService         `yaml:",inline"`
	EnableCORSWorkaround bool `yaml:"EnableCORSWorkaround"`
}

// Genesis describes the state created on an empty database: the two
// contract accounts and the initially funded user accounts with their
// balances (decimal strings).
type Genesis struct {
	MarketAccount gate.AccountID            `yaml:"MarketAccount"`
	NFTAccount    gate.AccountID            `yaml:"NFTAccount"`
	Accounts      map[gate.AccountID]string `yaml:"Accounts"`
}

// LoadFile loads the config from the provided path and validates it.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.InMemoryDB,
			},
		},
	}

	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the genesis section for correctness: both contract
// accounts must be valid and distinct and every funded account must carry
// a decimal balance.
func (c Config) Validate() error {
	g := c.Genesis
	if err := g.MarketAccount.Validate(); err != nil {
		return fmt.Errorf("invalid MarketAccount: %w", err)
	}
	if err := g.NFTAccount.Validate(); err != nil {
		return fmt.Errorf("invalid NFTAccount: %w", err)
	}
	if g.MarketAccount == g.NFTAccount {
		return errors.New("MarketAccount and NFTAccount must differ")
	}
	for id, balance := range g.Accounts {
		if err := id.Validate(); err != nil {
			return fmt.Errorf("invalid genesis account: %w", err)
		}
		if _, err := gate.ParseU128(balance); err != nil {
			return fmt.Errorf("invalid balance of genesis account %s: %w", id, err)
		}
	}
	return nil
}

// Balances returns the parsed balances of the genesis accounts.
func (g Genesis) Balances() (map[gate.AccountID]gate.U128, error) {
	balances := make(map[gate.AccountID]gate.U128, len(g.Accounts))
	for id, s := range g.Accounts {
		amount, err := gate.ParseU128(s)
		if err != nil {
			return nil, fmt.Errorf("invalid balance of genesis account %s: %w", id, err)
		}
		balances[id] = amount
	}
	return balances, nil
}
