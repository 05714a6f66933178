package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	economy "github.com/0x5487/economy-engine"
)

// Metadata describes a stored snapshot document.
type Metadata struct {
	SchemaVersion int    `json:"schema_version"`
	EngineVersion string `json:"engine_version"`
	Timestamp     int64  `json:"timestamp"` // Unix Nano
	Checksum      uint32 `json:"checksum"`  // CRC32 of the raw data field
}

// Document is the on-disk layout: metadata plus the economy snapshot.
type Document struct {
	Metadata Metadata        `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

// Encode renders snap as a document stamped with now.
func Encode(snap *economy.Snapshot, now time.Time) ([]byte, error) {
	if snap == nil {
		snap = economy.NewSnapshot()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Metadata: Metadata{
			SchemaVersion: economy.SnapshotSchemaVersion,
			EngineVersion: economy.EngineVersion,
			Timestamp:     now.UnixNano(),
			Checksum:      crc32.ChecksumIEEE(data),
		},
		Data: data,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses and verifies a document.
func Decode(raw []byte) (*economy.Snapshot, *Metadata, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, ErrEmptyDocument
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Metadata.SchemaVersion != economy.SnapshotSchemaVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, doc.Metadata.SchemaVersion)
	}

	// MarshalIndent re-indents the embedded data, so compact it back before hashing.
	var compact bytes.Buffer
	if err := json.Compact(&compact, doc.Data); err != nil {
		return nil, nil, err
	}
	if crc32.ChecksumIEEE(compact.Bytes()) != doc.Metadata.Checksum {
		return nil, nil, ErrChecksumMismatch
	}

	snap := economy.NewSnapshot()
	if err := json.Unmarshal(compact.Bytes(), snap); err != nil {
		return nil, nil, err
	}
	normalize(snap)
	return snap, &doc.Metadata, nil
}

// normalize drops nil entries and replaces null collections with empty ones.
func normalize(snap *economy.Snapshot) {
	items := make([]*economy.MarketItem, 0, len(snap.MarketItems))
	for _, item := range snap.MarketItems {
		if item != nil {
			items = append(items, item)
		}
	}
	snap.MarketItems = items

	accounts := make([]*economy.Account, 0, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		if acc != nil {
			accounts = append(accounts, acc)
		}
	}
	snap.Accounts = accounts

	orders := make([]*economy.Order, 0, len(snap.OrderBook))
	for _, order := range snap.OrderBook {
		if order != nil {
			orders = append(orders, order)
		}
	}
	snap.OrderBook = orders
}
