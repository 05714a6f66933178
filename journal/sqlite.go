// Package journal keeps a queryable history of committed trades in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	ErrClosed    = errors.New("journal is closed")
	ErrEmptyPath = errors.New("empty journal path")
)

type req struct {
	logs  []*economy.TradeLog
	flush chan struct{}
}

// SQLiteJournal implements economy.PublishLog. Publish hands logs to a writer
// goroutine so the engine loop never waits on disk.
type SQLiteJournal struct {
	db *sql.DB

	mu   sync.RWMutex // guards ch against send after close
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

// OpenSQLite opens or creates the journal database at path.
func OpenSQLite(path string) (*SQLiteJournal, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &SQLiteJournal{
		db: db,
		ch: make(chan req, 4096),
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trade_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			order_id TEXT NOT NULL,
			seller_id INTEGER NOT NULL,
			buyer_id INTEGER NOT NULL,
			type_id TEXT NOT NULL,
			subtype_name TEXT NOT NULL,
			quantity TEXT NOT NULL,
			amount TEXT NOT NULL,
			buyer_balance TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_logs_seller ON trade_logs(seller_id, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Publish queues logs for writing. Logs are dropped with a warning when the
// writer falls behind.
func (j *SQLiteJournal) Publish(logs ...*economy.TradeLog) {
	if j == nil || len(logs) == 0 {
		return
	}
	batch := make([]*economy.TradeLog, 0, len(logs))
	for _, log := range logs {
		if log == nil {
			continue
		}
		cpy := *log
		batch = append(batch, &cpy)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed.Load() {
		return
	}
	select {
	case j.ch <- req{logs: batch}:
	default:
		n := j.dropped.Add(uint64(len(batch)))
		logger.Warn("trade journal is behind, logs dropped", "count", len(batch), "total_dropped", n)
	}
}

// Flush waits until every log published before the call is written.
func (j *SQLiteJournal) Flush(ctx context.Context) error {
	done := make(chan struct{})
	j.mu.RLock()
	if j.closed.Load() {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.ch <- req{flush: done}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the queued logs and closes the database.
func (j *SQLiteJournal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed.Store(true)
		close(j.ch)
		j.mu.Unlock()
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

func (j *SQLiteJournal) loop() {
	for r := range j.ch {
		if len(r.logs) > 0 {
			if err := j.insert(r.logs); err != nil {
				logger.Error("failed to write trade logs", "error", err, "count", len(r.logs))
			}
		}
		if r.flush != nil {
			close(r.flush)
		}
	}
}

func (j *SQLiteJournal) insert(logs []*economy.TradeLog) error {
	tx, err := j.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO trade_logs(seq_id,type,order_id,seller_id,buyer_id,type_id,subtype_name,quantity,amount,buyer_balance,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, log := range logs {
		if _, err := stmt.Exec(
			int64(log.SequenceID),
			string(log.Type),
			log.OrderID,
			int64(log.SellerID),
			int64(log.BuyerID),
			log.TypeID,
			log.SubtypeName,
			log.Quantity.String(),
			log.Amount.String(),
			log.BuyerBalance.String(),
			log.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns up to limit logs, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]*economy.TradeLog, error) {
	return j.query(ctx, `SELECT seq_id,type,order_id,seller_id,buyer_id,type_id,subtype_name,quantity,amount,buyer_balance,created_at
		FROM trade_logs ORDER BY id DESC LIMIT ?`, limit)
}

// BySeller returns up to limit logs where steamID was the seller, newest first.
func (j *SQLiteJournal) BySeller(ctx context.Context, steamID uint64, limit int) ([]*economy.TradeLog, error) {
	return j.query(ctx, `SELECT seq_id,type,order_id,seller_id,buyer_id,type_id,subtype_name,quantity,amount,buyer_balance,created_at
		FROM trade_logs WHERE seller_id = ? ORDER BY id DESC LIMIT ?`, int64(steamID), limit)
}

func (j *SQLiteJournal) query(ctx context.Context, query string, args ...any) ([]*economy.TradeLog, error) {
	if limit, ok := args[len(args)-1].(int); ok && limit <= 0 {
		return []*economy.TradeLog{}, nil
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*economy.TradeLog, 0)
	for rows.Next() {
		var (
			seqID, sellerID, buyerID       int64
			logType, createdAt             string
			quantity, amount, buyerBalance string
			log                            economy.TradeLog
		)
		if err := rows.Scan(&seqID, &logType, &log.OrderID, &sellerID, &buyerID, &log.TypeID, &log.SubtypeName,
			&quantity, &amount, &buyerBalance, &createdAt); err != nil {
			return nil, err
		}
		log.SequenceID = uint64(seqID)
		log.Type = economy.LogType(logType)
		log.SellerID = uint64(sellerID)
		log.BuyerID = uint64(buyerID)
		if log.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("trade log %d quantity: %w", seqID, err)
		}
		if log.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("trade log %d amount: %w", seqID, err)
		}
		if log.BuyerBalance, err = decimal.NewFromString(buyerBalance); err != nil {
			return nil, fmt.Errorf("trade log %d buyer balance: %w", seqID, err)
		}
		if log.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("trade log %d created_at: %w", seqID, err)
		}
		out = append(out, &log)
	}
	return out, rows.Err()
}
