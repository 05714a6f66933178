package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "economy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Economy.LimitedSupply)
	assert.True(t, cfg.Economy.LimitedRange)
	assert.Equal(t, economy.DefaultTradeTimeout, cfg.Economy.TradeTimeout)
	assert.Equal(t, "EconomyData_default.json", cfg.Storage.SnapshotFile)
	assert.Equal(t, "Itemlist_default.txt", cfg.Storage.LegacyItems)
	assert.Equal(t, "BankConfig_default.xml", cfg.Storage.LegacyBank)

	policy := cfg.Policy()
	assert.True(t, policy.MerchantStartingBalance.Equal(decimal.NewFromInt(20000)))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
world: alpha
economy:
  limited_supply: false
  limited_range: false
  merchant_starting_balance: "1000.5"
  trade_timeout: 2m
  sweep_interval: 5s
storage:
  data_dir: /var/lib/economy
  snapshot_file: economy.json.zst
  save_interval: 30s
logging:
  level: debug
  format: text
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Economy.LimitedSupply)
	assert.Equal(t, 2*time.Minute, cfg.Economy.TradeTimeout)
	assert.Equal(t, 5*time.Second, cfg.Economy.SweepInterval)
	assert.Equal(t, "economy.json.zst", cfg.Storage.SnapshotFile)
	assert.Equal(t, "BankConfig_alpha.xml", cfg.Storage.LegacyBank)
	assert.Equal(t, filepath.Join("/var/lib/economy", "economy.json.zst"), cfg.Path(cfg.Storage.SnapshotFile))
	assert.Equal(t, "text", cfg.Logging.Format)

	policy := cfg.Policy()
	assert.False(t, policy.LimitedRange)
	assert.True(t, policy.MerchantStartingBalance.Equal(decimal.RequireFromString("1000.5")))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ECONOMY_DATA_DIR", "/tmp/economy-env")
	t.Setenv("ECONOMY_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "storage:\n  data_dir: ./ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/economy-env", cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad balance", "economy:\n  merchant_starting_balance: lots\n"},
		{"zero timeout", "economy:\n  trade_timeout: 0s\n"},
		{"zero sweep", "economy:\n  sweep_interval: 0s\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"negative price", "default_prices:\n  - type_id: MyObjectBuilder_Ore\n    subtype_name: Iron\n    buy_price: \"-1\"\n"},
		{"missing subtype", "default_prices:\n  - type_id: MyObjectBuilder_Ore\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuiltInPriceList(t *testing.T) {
	items, err := Defaults().PriceList()
	require.NoError(t, err)
	require.NotEmpty(t, items)

	byKey := make(map[economy.ItemID]*economy.MarketItem, len(items))
	for _, item := range items {
		byKey[item.ID()] = item
	}

	ammo := byKey[economy.ItemID{TypeID: "MyObjectBuilder_AmmoMagazine", SubtypeName: "NATO_5p56x45mm"}]
	require.NotNil(t, ammo)
	assert.True(t, ammo.Quantity.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ammo.SellPrice.Equal(decimal.RequireFromString("102.35")))
	assert.True(t, ammo.BuyPrice.Equal(decimal.RequireFromString("2.09")))
	assert.False(t, ammo.IsBlacklisted)

	organic := byKey[economy.ItemID{TypeID: "MyObjectBuilder_Ore", SubtypeName: "Organic"}]
	require.NotNil(t, organic)
	assert.True(t, organic.IsBlacklisted)
}

func TestConfiguredPriceListReplacesBuiltIn(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default_prices:
  - type_id: MyObjectBuilder_Ingot
    subtype_name: Iron
    sell_price: "0.2"
    buy_price: "0.18"
`))
	require.NoError(t, err)

	items, err := cfg.PriceList()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Iron", items[0].SubtypeName)
	assert.True(t, items[0].Quantity.IsZero())
	assert.True(t, items[0].BuyPrice.Equal(decimal.RequireFromString("0.18")))
}
