package economy

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

// Policy holds the server rules the trade engine enforces.
type Policy struct {
	// LimitedSupply rejects merchant sales the merchant cannot pay for.
	LimitedSupply bool
	// LimitedRange requires direct offer partners to be near each other.
	LimitedRange bool
	// TradeTimeout is how long a pending offer stays open.
	TradeTimeout time.Duration
	// MerchantStartingBalance funds the merchant account when it is first created.
	MerchantStartingBalance decimal.Decimal
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		LimitedSupply:           true,
		LimitedRange:            true,
		TradeTimeout:            DefaultTradeTimeout,
		MerchantStartingBalance: decimal.NewFromInt(20000),
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicy sets the trade rules.
func WithPolicy(policy Policy) EngineOption {
	return func(e *Engine) {
		if policy.TradeTimeout <= 0 {
			policy.TradeTimeout = DefaultTradeTimeout
		}
		e.policy = policy
	}
}

// WithClock replaces time.Now, useful for testing.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPublishLog sets where committed trades are published.
func WithPublishLog(publishLog PublishLog) EngineOption {
	return func(e *Engine) {
		if publishLog != nil {
			e.publishLog = publishLog
		}
	}
}

// WithSerializer sets the payload codec used by EnqueueCommand.
func WithSerializer(serializer protocol.Serializer) EngineOption {
	return func(e *Engine) {
		if serializer != nil {
			e.serializer = serializer
		}
	}
}

// InputEvent is the internal wrapper for all events entering the Engine actor.
type InputEvent struct {
	Type    protocol.CommandType
	Payload any
	Resp    chan any // Optional: nil for fire-and-forget commands
}

// ReconcileRequest carries the default price list merged before host definitions are synced.
type ReconcileRequest struct {
	Defaults []*MarketItem
}

// ReconcileReport tells how many catalog entries a reconciliation added.
type ReconcileReport struct {
	DefaultsAdded    int
	DefinitionsAdded int
}

// Engine owns the economy state: catalog, ledger and order book.
// A single goroutine (Start) applies every command, so trades and sweeps never interleave.
type Engine struct {
	isShutdown       atomic.Bool
	catalog          *Catalog
	ledger           *Ledger
	book             *OrderBook
	host             Host
	policy           Policy
	publishLog       PublishLog
	serializer       protocol.Serializer
	now              func() time.Time
	seqID            uint64 // owned by the engine goroutine
	cmdChan          chan InputEvent
	done             chan struct{}
	shutdownComplete chan struct{}
}

// NewEngine creates an engine with an empty economy and a funded merchant.
func NewEngine(host Host, opts ...EngineOption) (*Engine, error) {
	if err := host.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		catalog:          NewCatalog(),
		ledger:           NewLedger(),
		book:             NewOrderBook(),
		host:             host,
		policy:           DefaultPolicy(),
		publishLog:       NewDiscardPublishLog(),
		serializer:       &protocol.DefaultJSONSerializer{},
		now:              time.Now,
		cmdChan:          make(chan InputEvent, 1024),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger.EnsureMerchant(e.policy.MerchantStartingBalance, e.now())
	return e, nil
}

// Sell submits a sell request and waits for its outcome.
// A rejected trade is not an error: inspect TradeResult.Accepted and Reason.
func (e *Engine) Sell(ctx context.Context, cmd *protocol.SellCommand) (*TradeResult, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}
	res, err := e.submit(ctx, InputEvent{Type: protocol.CmdSell, Payload: cmd})
	if err != nil {
		return nil, err
	}
	result, _ := res.(*TradeResult)
	return result, nil
}

// RespondOffer submits an accept/deny/cancel/collect request for a pending offer.
func (e *Engine) RespondOffer(ctx context.Context, cmd *protocol.OfferResponseCommand) (*TradeResult, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}
	res, err := e.submit(ctx, InputEvent{Type: protocol.CmdRespondOffer, Payload: cmd})
	if err != nil {
		return nil, err
	}
	result, _ := res.(*TradeResult)
	return result, nil
}

// Sweep expires stale pending offers as of now and returns how many timed out.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := e.submit(ctx, InputEvent{Type: protocol.CmdSweep, Payload: now})
	if err != nil {
		return 0, err
	}
	count, _ := res.(int)
	return count, nil
}

// Snapshot returns a deep copy of the economy state.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	res, err := e.submit(ctx, InputEvent{Type: protocol.CmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := res.(*Snapshot)
	return snap, nil
}

// Restore replaces the economy state with snap. The merchant is recreated if the snapshot lacks it.
func (e *Engine) Restore(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}
	_, err := e.submit(ctx, InputEvent{Type: protocol.CmdRestore, Payload: snap})
	return err
}

// Reconcile merges the default price list and then syncs the catalog with the host's definitions.
func (e *Engine) Reconcile(ctx context.Context, defaults []*MarketItem) (*ReconcileReport, error) {
	res, err := e.submit(ctx, InputEvent{Type: protocol.CmdReconcile, Payload: &ReconcileRequest{Defaults: defaults}})
	if err != nil {
		return nil, err
	}
	report, _ := res.(*ReconcileReport)
	return report, nil
}

// EnqueueCommand decodes a command from a host transport and queues it without waiting.
// Outcomes reach players through the Notifier.
func (e *Engine) EnqueueCommand(cmd *protocol.Command) error {
	if e.isShutdown.Load() {
		return ErrShutdown
	}
	if cmd == nil {
		return ErrInvalidParam
	}

	var payload any
	switch cmd.Type {
	case protocol.CmdSell:
		sellCmd := &protocol.SellCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, sellCmd); err != nil {
			logger.Error("failed to unmarshal Sell command", "error", err, "seq_id", cmd.SeqID)
			return ErrInvalidParam
		}
		payload = sellCmd
	case protocol.CmdRespondOffer:
		respCmd := &protocol.OfferResponseCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, respCmd); err != nil {
			logger.Error("failed to unmarshal RespondOffer command", "error", err, "seq_id", cmd.SeqID)
			return ErrInvalidParam
		}
		payload = respCmd
	default:
		return ErrInvalidParam
	}

	select {
	case e.cmdChan <- InputEvent{Type: cmd.Type, Payload: payload}:
		return nil
	default:
		return ErrTimeout
	}
}

// RunSweeper calls Sweep every interval until ctx is done or the engine shuts down.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidParam
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.Sweep(ctx, e.now()); err != nil {
				if errors.Is(err, ErrShutdown) {
					return nil
				}
				logger.Warn("sweep failed", "error", err)
			}
		}
	}
}

// Start runs the engine loop. It returns nil after Shutdown once queued commands are drained.
func (e *Engine) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-e.done:
			return e.drain()
		case ev := <-e.cmdChan:
			e.process(ev)
		}
	}
}

// Shutdown stops accepting commands and waits until the queued ones are processed.
// Returns ctx.Err() if the context ends first.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.isShutdown.CompareAndSwap(false, true) {
		close(e.done)
	}

	select {
	case <-e.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
func (e *Engine) drain() error {
	defer close(e.shutdownComplete)

	for {
		select {
		case ev := <-e.cmdChan:
			e.process(ev)
		default:
			return nil
		}
	}
}

func (e *Engine) submit(ctx context.Context, ev InputEvent) (any, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}

	ev.Resp = make(chan any, 1)
	select {
	case e.cmdChan <- ev:
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-ev.Resp:
		return res, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	case <-e.shutdownComplete:
		// The command may have been handled by drain just before it finished.
		select {
		case res := <-ev.Resp:
			return res, nil
		default:
			return nil, ErrShutdown
		}
	}
}

func (e *Engine) process(ev InputEvent) {
	var result any
	switch ev.Type {
	case protocol.CmdSell:
		if cmd, ok := ev.Payload.(*protocol.SellCommand); ok {
			result = e.sell(cmd)
		}
	case protocol.CmdRespondOffer:
		if cmd, ok := ev.Payload.(*protocol.OfferResponseCommand); ok {
			result = e.respondOffer(cmd)
		}
	case protocol.CmdSweep:
		if now, ok := ev.Payload.(time.Time); ok {
			result = e.sweep(now)
		}
	case protocol.CmdSnapshot:
		result = e.snapshot()
	case protocol.CmdRestore:
		if snap, ok := ev.Payload.(*Snapshot); ok {
			e.restore(snap)
		}
	case protocol.CmdReconcile:
		if req, ok := ev.Payload.(*ReconcileRequest); ok {
			result = e.reconcile(req)
		}
	default:
		logger.Warn("unknown command", "type", ev.Type)
	}

	if ev.Resp != nil {
		ev.Resp <- result
	}
}

func (e *Engine) snapshot() *Snapshot {
	return &Snapshot{
		MarketItems: e.catalog.Items(),
		Accounts:    e.ledger.Accounts(),
		OrderBook:   e.book.Orders(),
		LastSeqID:   e.seqID,
	}
}

func (e *Engine) restore(snap *Snapshot) {
	e.catalog.Restore(snap.MarketItems)
	e.ledger.Restore(snap.Accounts)
	e.book.Restore(snap.OrderBook)
	e.ledger.EnsureMerchant(e.policy.MerchantStartingBalance, e.now())
	// sequence ids never move backwards, downstream consumers dedupe on them
	if snap.LastSeqID > e.seqID {
		e.seqID = snap.LastSeqID
	}

	logger.Info("economy restored",
		"market_items", e.catalog.Len(),
		"accounts", e.ledger.Len(),
		"orders", e.book.Len(),
		"last_seq_id", e.seqID,
	)
}

func (e *Engine) reconcile(req *ReconcileRequest) *ReconcileReport {
	report := &ReconcileReport{
		DefaultsAdded:    e.catalog.MergeDefaults(req.Defaults),
		DefinitionsAdded: e.catalog.Reconcile(e.host.Definitions.PublicItemDefinitions()),
	}
	e.ledger.EnsureMerchant(e.policy.MerchantStartingBalance, e.now())
	return report
}

func (e *Engine) nextSeqID() uint64 {
	e.seqID++
	return e.seqID
}

func (e *Engine) publish(logs ...*TradeLog) {
	e.publishLog.Publish(logs...)
}
