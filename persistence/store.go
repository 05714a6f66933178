// Package persistence stores the economy snapshot as a single checksummed
// document and migrates the legacy per-concern files into it.
package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/klauspost/compress/zstd"
)

// Source tells where a loaded snapshot came from.
type Source string

const (
	SourceExisting  Source = "existing"  // Read from the snapshot document
	SourceFresh     Source = "fresh"     // No document and nothing to migrate
	SourceMigrated  Source = "migrated"  // Built from legacy files
	SourceRecovered Source = "recovered" // Document was unreadable, started over
)

// LoadResult is the outcome of Gateway.Load.
type LoadResult struct {
	Snapshot *economy.Snapshot
	Source   Source
	Metadata *Metadata // nil unless Source is SourceExisting
	Err      error     // Diagnostic, set when data may need operator attention

	// Quarantined is where an undecodable document was moved, empty if it was left in place.
	Quarantined string
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMigrator sets the legacy importer run when no snapshot exists.
func WithMigrator(m LegacyMigrator) GatewayOption {
	return func(g *Gateway) {
		g.migrator = m
	}
}

// WithClock replaces time.Now for document timestamps.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway loads and saves the economy snapshot document.
// Paths ending in ".zst" are zstd-compressed.
type Gateway struct {
	path     string
	migrator LegacyMigrator
	now      func() time.Time
}

// NewGateway creates a gateway for the document at path.
func NewGateway(path string, opts ...GatewayOption) (*Gateway, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoPath
	}
	g := &Gateway{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Path returns the document location.
func (g *Gateway) Path() string {
	return g.path
}

func (g *Gateway) compressed() bool {
	return strings.HasSuffix(g.path, ".zst")
}

// Load reads the snapshot. It never fails: a missing or empty document yields
// a fresh snapshot (seeded from legacy files when present), and an unreadable
// one yields a fresh snapshot with the cause in LoadResult.Err.
func (g *Gateway) Load() *LoadResult {
	raw, err := g.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("no snapshot document, creating new economy data", "path", g.path)
		return g.loadFresh()
	case err != nil:
		logger.Error("failed to read snapshot document, creating new economy data", "path", g.path, "error", err)
		return &LoadResult{Snapshot: economy.NewSnapshot(), Source: SourceRecovered, Err: err}
	case len(bytes.TrimSpace(raw)) == 0:
		logger.Info("snapshot document is empty, creating new economy data", "path", g.path)
		return g.loadFresh()
	}

	snap, meta, err := Decode(raw)
	if err != nil {
		logger.Error("failed to decode snapshot document, creating new economy data", "path", g.path, "error", err)
		return &LoadResult{Snapshot: economy.NewSnapshot(), Source: SourceRecovered, Err: err, Quarantined: g.quarantine()}
	}

	logger.Info("loading existing economy data",
		"path", g.path,
		"engine_version", meta.EngineVersion,
		"market_items", len(snap.MarketItems),
		"accounts", len(snap.Accounts),
		"orders", len(snap.OrderBook),
	)
	res := &LoadResult{Snapshot: snap, Source: SourceExisting, Metadata: meta}
	// Legacy files are never imported over an existing document.
	if g.migrator != nil && g.migrator.Pending() {
		logger.Warn("legacy files left on disk were not imported, manual import required", "path", g.path)
		res.Err = ErrLegacyPending
	}
	return res
}

// quarantine moves the document aside so the next save does not overwrite it.
func (g *Gateway) quarantine() string {
	dst := g.path + ".corrupt"
	if err := os.Rename(g.path, dst); err != nil {
		logger.Error("failed to move corrupt snapshot document aside", "path", g.path, "error", err)
		return ""
	}
	logger.Warn("corrupt snapshot document moved aside", "path", g.path, "quarantined", dst)
	return dst
}

func (g *Gateway) loadFresh() *LoadResult {
	snap := economy.NewSnapshot()
	if g.migrator == nil || !g.migrator.Pending() {
		return &LoadResult{Snapshot: snap, Source: SourceFresh}
	}

	imported, err := g.migrator.Import(snap)
	if err != nil {
		logger.Warn("legacy import incomplete, manual import required for the files left on disk", "error", err)
	}
	if !imported {
		return &LoadResult{Snapshot: snap, Source: SourceFresh, Err: err}
	}

	// The legacy files are only removed once their content is safely stored.
	if err := g.Save(snap); err != nil {
		logger.Error("failed to save migrated snapshot, keeping legacy files", "path", g.path, "error", err)
		return &LoadResult{Snapshot: snap, Source: SourceMigrated, Err: err}
	}
	if err := g.migrator.Cleanup(); err != nil {
		logger.Warn("failed to remove legacy files", "error", err)
	}
	return &LoadResult{Snapshot: snap, Source: SourceMigrated, Err: err}
}

// Save writes snap atomically: a temp file in the same directory is renamed over the document.
func (g *Gateway) Save(snap *economy.Snapshot) error {
	data, err := Encode(snap, g.now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(g.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := g.write(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, g.path); err != nil {
		return fmt.Errorf("replace snapshot document: %w", err)
	}

	logger.Debug("economy data saved", "path", g.path, "bytes", len(data))
	return nil
}

func (g *Gateway) write(w io.Writer, data []byte) error {
	if !g.compressed() {
		_, err := w.Write(data)
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (g *Gateway) read() ([]byte, error) {
	f, err := os.Open(g.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !g.compressed() {
		return io.ReadAll(f)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
