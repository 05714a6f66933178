package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_prices.yaml
var defaultPricesYAML []byte

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting of the economy daemon.
type Config struct {
	World string `yaml:"world"` // Suffix used in data file names

	Economy struct {
		LimitedSupply           bool          `yaml:"limited_supply"`
		LimitedRange            bool          `yaml:"limited_range"`
		MerchantStartingBalance string        `yaml:"merchant_starting_balance"`
		TradeTimeout            time.Duration `yaml:"trade_timeout"`
		SweepInterval           time.Duration `yaml:"sweep_interval"`
	} `yaml:"economy"`

	Storage struct {
		DataDir      string        `yaml:"data_dir"`
		SnapshotFile string        `yaml:"snapshot_file"` // ".zst" suffix enables compression
		LegacyItems  string        `yaml:"legacy_items_file"`
		LegacyBank   string        `yaml:"legacy_bank_file"`
		JournalFile  string        `yaml:"journal_file"` // Empty disables the trade journal
		SaveInterval time.Duration `yaml:"save_interval"`
	} `yaml:"storage"`

	Host struct {
		WorldFile string `yaml:"world_file"` // Item definitions and players for standalone mode
	} `yaml:"host"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or text
	} `yaml:"logging"`

	// DefaultPrices replaces the built-in price list when non-empty.
	DefaultPrices []PriceEntry `yaml:"default_prices"`
}

// PriceEntry is one default price list row. Numbers are decimal strings.
type PriceEntry struct {
	TypeID      string `yaml:"type_id"`
	SubtypeName string `yaml:"subtype_name"`
	Quantity    string `yaml:"quantity"`
	SellPrice   string `yaml:"sell_price"`
	BuyPrice    string `yaml:"buy_price"`
	Blacklisted bool   `yaml:"blacklisted"`
}

type priceFile struct {
	Items []PriceEntry `yaml:"items"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	cfg := &Config{World: "default"}
	cfg.Economy.LimitedSupply = true
	cfg.Economy.LimitedRange = true
	cfg.Economy.MerchantStartingBalance = "20000"
	cfg.Economy.TradeTimeout = economy.DefaultTradeTimeout
	cfg.Economy.SweepInterval = 10 * time.Second
	cfg.Storage.DataDir = "./data"
	cfg.Storage.SaveInterval = time.Minute
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}

// Load reads the YAML file at path on top of Defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	overrideWithEnv(cfg)
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("ECONOMY_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("ECONOMY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ECONOMY_WORLD_FILE"); v != "" {
		cfg.Host.WorldFile = v
	}
}

// fillPaths derives the data file names from the world name, matching the
// legacy naming (EconomyData_<world>, Itemlist_<world>.txt, BankConfig_<world>.xml).
func (cfg *Config) fillPaths() {
	world := strings.TrimSpace(cfg.World)
	if world == "" {
		world = "default"
	}
	if cfg.Storage.SnapshotFile == "" {
		cfg.Storage.SnapshotFile = fmt.Sprintf("EconomyData_%s.json", world)
	}
	if cfg.Storage.LegacyItems == "" {
		cfg.Storage.LegacyItems = fmt.Sprintf("Itemlist_%s.txt", world)
	}
	if cfg.Storage.LegacyBank == "" {
		cfg.Storage.LegacyBank = fmt.Sprintf("BankConfig_%s.xml", world)
	}
}

// Path resolves a storage file name against the data directory.
func (cfg *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.Storage.DataDir, name)
}

// Validate checks the configuration for values the engine cannot run with.
func (cfg *Config) Validate() error {
	if _, err := decimal.NewFromString(cfg.Economy.MerchantStartingBalance); err != nil {
		return fmt.Errorf("%w: economy.merchant_starting_balance: %v", ErrInvalidConfig, err)
	}
	if cfg.Economy.TradeTimeout <= 0 {
		return fmt.Errorf("%w: economy.trade_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Economy.SweepInterval <= 0 {
		return fmt.Errorf("%w: economy.sweep_interval must be positive", ErrInvalidConfig)
	}
	if cfg.Storage.SaveInterval <= 0 {
		return fmt.Errorf("%w: storage.save_interval must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return fmt.Errorf("%w: storage.data_dir is required", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: logging.format must be json or text", ErrInvalidConfig)
	}
	if _, err := cfg.PriceList(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Policy converts the economy section into engine rules.
func (cfg *Config) Policy() economy.Policy {
	balance, err := decimal.NewFromString(cfg.Economy.MerchantStartingBalance)
	if err != nil {
		balance = decimal.Zero
	}
	return economy.Policy{
		LimitedSupply:           cfg.Economy.LimitedSupply,
		LimitedRange:            cfg.Economy.LimitedRange,
		TradeTimeout:            cfg.Economy.TradeTimeout,
		MerchantStartingBalance: balance,
	}
}

// PriceList returns the configured default prices, or the built-in list.
func (cfg *Config) PriceList() ([]*economy.MarketItem, error) {
	entries := cfg.DefaultPrices
	if len(entries) == 0 {
		var f priceFile
		if err := yaml.Unmarshal(defaultPricesYAML, &f); err != nil {
			return nil, fmt.Errorf("built-in price list: %w", err)
		}
		entries = f.Items
	}

	items := make([]*economy.MarketItem, 0, len(entries))
	for _, entry := range entries {
		item, err := entry.marketItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (p PriceEntry) marketItem() (*economy.MarketItem, error) {
	if p.TypeID == "" || p.SubtypeName == "" {
		return nil, fmt.Errorf("default price: type_id and subtype_name are required")
	}
	parse := func(field, v string, fallback decimal.Decimal) (decimal.Decimal, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return fallback, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("default price %s/%s: %s: %w", p.TypeID, p.SubtypeName, field, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("default price %s/%s: %s must not be negative", p.TypeID, p.SubtypeName, field)
		}
		return d, nil
	}

	quantity, err := parse("quantity", p.Quantity, decimal.Zero)
	if err != nil {
		return nil, err
	}
	sell, err := parse("sell_price", p.SellPrice, decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	buy, err := parse("buy_price", p.BuyPrice, decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	return &economy.MarketItem{
		TypeID:        p.TypeID,
		SubtypeName:   p.SubtypeName,
		Quantity:      quantity,
		SellPrice:     sell,
		BuyPrice:      buy,
		IsBlacklisted: p.Blacklisted,
	}, nil
}
