package persistence

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/shopspring/decimal"
)

// LegacyMigrator imports economy data kept in the old single-purpose files.
// Import runs only when the unified snapshot does not exist yet. Cleanup runs
// after the imported snapshot was saved.
type LegacyMigrator interface {
	Pending() bool
	Import(snap *economy.Snapshot) (bool, error)
	Cleanup() error
}

type legacyMarketConfig struct {
	XMLName     xml.Name           `xml:"MarketConfig"`
	MarketItems []legacyMarketItem `xml:"MarketItems>MarketStruct"`
}

type legacyMarketItem struct {
	TypeID        string `xml:"TypeId"`
	SubtypeName   string `xml:"SubtypeName"`
	Quantity      string `xml:"Quantity"`
	SellPrice     string `xml:"SellPrice"`
	BuyPrice      string `xml:"BuyPrice"`
	IsBlacklisted string `xml:"IsBlacklisted"`
}

type legacyBankConfig struct {
	XMLName  xml.Name            `xml:"BankConfig"`
	Accounts []legacyBankAccount `xml:"Accounts>BankAccountStruct"`
}

type legacyBankAccount struct {
	SteamID     string `xml:"SteamId"`
	NickName    string `xml:"NickName"`
	BankBalance string `xml:"BankBalance"`
	Date        string `xml:"Date"`
	Language    string `xml:"Language"`
}

// XMLMigrator reads the item list and bank account XML documents.
type XMLMigrator struct {
	ItemsPath string
	BankPath  string

	imported []string
}

// NewXMLMigrator creates a migrator for the two legacy files. Either path may be empty.
func NewXMLMigrator(itemsPath, bankPath string) *XMLMigrator {
	return &XMLMigrator{ItemsPath: itemsPath, BankPath: bankPath}
}

func (m *XMLMigrator) Pending() bool {
	return fileExists(m.ItemsPath) || fileExists(m.BankPath)
}

// Import replaces the catalog and accounts of snap with whatever the legacy
// files hold and reports whether any file was consumed. A file that cannot be
// parsed is skipped and left on disk.
func (m *XMLMigrator) Import(snap *economy.Snapshot) (bool, error) {
	m.imported = m.imported[:0]
	var errs []error

	if fileExists(m.ItemsPath) {
		logger.Info("loading legacy market file", "path", m.ItemsPath)
		items, err := readLegacyItems(m.ItemsPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.ItemsPath, err))
		} else {
			snap.MarketItems = items
			m.imported = append(m.imported, m.ItemsPath)
		}
	}

	if fileExists(m.BankPath) {
		logger.Info("loading legacy bank file", "path", m.BankPath)
		accounts, err := readLegacyAccounts(m.BankPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.BankPath, err))
		} else {
			snap.Accounts = accounts
			m.imported = append(m.imported, m.BankPath)
		}
	}

	return len(m.imported) > 0, errors.Join(errs...)
}

// Cleanup deletes the files the last Import consumed.
func (m *XMLMigrator) Cleanup() error {
	var errs []error
	for _, path := range m.imported {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		logger.Info("legacy file removed", "path", path)
	}
	m.imported = m.imported[:0]
	return errors.Join(errs...)
}

func readLegacyItems(path string) ([]*economy.MarketItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return make([]*economy.MarketItem, 0), nil
	}

	var cfg legacyMarketConfig
	if err := decodeLegacyXML(raw, &cfg); err != nil {
		return nil, err
	}

	items := make([]*economy.MarketItem, 0, len(cfg.MarketItems))
	for _, row := range cfg.MarketItems {
		item := &economy.MarketItem{
			TypeID:      strings.TrimSpace(row.TypeID),
			SubtypeName: strings.TrimSpace(row.SubtypeName),
		}
		if item.TypeID == "" || item.SubtypeName == "" {
			continue
		}
		if item.Quantity, err = parseLegacyDecimal(row.Quantity, decimal.Zero); err != nil {
			return nil, fmt.Errorf("item %s quantity: %w", item.ID(), err)
		}
		if item.SellPrice, err = parseLegacyDecimal(row.SellPrice, decimal.NewFromInt(1)); err != nil {
			return nil, fmt.Errorf("item %s sell price: %w", item.ID(), err)
		}
		if item.BuyPrice, err = parseLegacyDecimal(row.BuyPrice, decimal.NewFromInt(1)); err != nil {
			return nil, fmt.Errorf("item %s buy price: %w", item.ID(), err)
		}
		item.IsBlacklisted = strings.EqualFold(strings.TrimSpace(row.IsBlacklisted), "true")
		items = append(items, item)
	}
	return items, nil
}

func readLegacyAccounts(path string) ([]*economy.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return make([]*economy.Account, 0), nil
	}

	var cfg legacyBankConfig
	if err := decodeLegacyXML(raw, &cfg); err != nil {
		return nil, err
	}

	accounts := make([]*economy.Account, 0, len(cfg.Accounts))
	for _, row := range cfg.Accounts {
		id, err := strconv.ParseUint(strings.TrimSpace(row.SteamID), 10, 64)
		if err != nil || id == 0 {
			logger.Warn("skipping legacy account", "steam_id", row.SteamID, "error", err)
			continue
		}
		balance, err := parseLegacyDecimal(row.BankBalance, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("account %d balance: %w", id, err)
		}
		accounts = append(accounts, &economy.Account{
			SteamID:     id,
			NickName:    strings.TrimSpace(row.NickName),
			Language:    strings.TrimSpace(row.Language),
			BankBalance: balance,
			Date:        parseLegacyDate(row.Date),
		})
	}
	return accounts, nil
}

// decodeLegacyXML accepts documents that declare utf-16 but were written as
// UTF-8 text, which is how the old files were produced.
func decodeLegacyXML(raw []byte, v any) error {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(label) {
		case "utf-16", "utf-8", "us-ascii":
			return input, nil
		}
		return nil, fmt.Errorf("unsupported legacy encoding %q", label)
	}
	return dec.Decode(v)
}

func parseLegacyDecimal(v string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback, nil
	}
	return decimal.NewFromString(v)
}

// XmlSerializer writes DateTime with up to seven fractional digits and an
// optional offset.
var legacyDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

func parseLegacyDate(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
