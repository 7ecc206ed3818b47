package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maexx393/mintgate/pkg/core/storage/dbconfig"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "mintgate.yml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
ApplicationConfiguration:
  DBConfiguration:
    Type: "leveldb"
    LevelDBOptions:
      DataDirectoryPath: "/var/lib/mintgate"
  LogLevel: "debug"
  RPC:
    Enabled: true
    Address: "localhost:20332"
    EnableCORSWorkaround: true
  Prometheus:
    Enabled: true
    Address: "localhost:2112"
Genesis:
  MarketAccount: "market.mintgate"
  NFTAccount: "nft.mintgate"
  Accounts:
    alice: "1000000"
    bob: "500"
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	app := cfg.ApplicationConfiguration
	require.Equal(t, dbconfig.LevelDB, app.DBConfiguration.Type)
	require.Equal(t, "/var/lib/mintgate", app.DBConfiguration.LevelDBOptions.DataDirectoryPath)
	require.Equal(t, "debug", app.LogLevel)
	require.True(t, app.RPC.Enabled)
	require.Equal(t, "localhost:20332", app.RPC.Address)
	require.True(t, app.RPC.EnableCORSWorkaround)
	require.True(t, app.Prometheus.Enabled)
	require.False(t, app.Pprof.Enabled)

	require.Equal(t, gate.AccountID("market.mintgate"), cfg.Genesis.MarketAccount)
	require.Equal(t, gate.AccountID("nft.mintgate"), cfg.Genesis.NFTAccount)

	balances, err := cfg.Genesis.Balances()
	require.NoError(t, err)
	require.Equal(t, map[gate.AccountID]gate.U128{
		"alice": gate.NewU128(1000000),
		"bob":   gate.NewU128(500),
	}, balances)
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, `
Genesis:
  MarketAccount: "market.mintgate"
  NFTAccount: "nft.mintgate"
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, dbconfig.InMemoryDB, cfg.ApplicationConfiguration.DBConfiguration.Type)
	require.False(t, cfg.ApplicationConfiguration.RPC.Enabled)
	require.Empty(t, cfg.Genesis.Accounts)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
		require.Error(t, err)
	})
	t.Run("unknown field", func(t *testing.T) {
		path := writeConfig(t, `
ApplicationConfiguration:
  NoSuchSetting: true
Genesis:
  MarketAccount: "market.mintgate"
  NFTAccount: "nft.mintgate"
`)
		_, err := LoadFile(path)
		require.Error(t, err)
	})
	t.Run("malformed YAML", func(t *testing.T) {
		path := writeConfig(t, "Genesis: [")
		_, err := LoadFile(path)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := Config{
		Genesis: Genesis{
			MarketAccount: "market.mintgate",
			NFTAccount:    "nft.mintgate",
			Accounts:      map[gate.AccountID]string{"alice": "100"},
		},
	}
	require.NoError(t, valid.Validate())

	t.Run("missing market account", func(t *testing.T) {
		cfg := valid
		cfg.Genesis.MarketAccount = ""
		require.ErrorContains(t, cfg.Validate(), "invalid MarketAccount")
	})
	t.Run("invalid NFT account", func(t *testing.T) {
		cfg := valid
		cfg.Genesis.NFTAccount = "NFT"
		require.ErrorContains(t, cfg.Validate(), "invalid NFTAccount")
	})
	t.Run("same accounts", func(t *testing.T) {
		cfg := valid
		cfg.Genesis.NFTAccount = cfg.Genesis.MarketAccount
		require.ErrorContains(t, cfg.Validate(), "must differ")
	})
	t.Run("bad balance", func(t *testing.T) {
		cfg := valid
		cfg.Genesis.Accounts = map[gate.AccountID]string{"alice": "12 coins"}
		require.ErrorContains(t, cfg.Validate(), "invalid balance")
	})
	t.Run("bad account id", func(t *testing.T) {
		cfg := valid
		cfg.Genesis.Accounts = map[gate.AccountID]string{"x": "100"}
		require.ErrorContains(t, cfg.Validate(), "invalid genesis account")
	})
}
