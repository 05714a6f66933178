package economy

import (
	"time"

	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

type TradeState = protocol.TradeState

const (
	StateSell             TradeState = protocol.TradeStateSell
	StateSellDirectPlayer TradeState = protocol.TradeStateSellDirectPlayer
	StateSellTimedout     TradeState = protocol.TradeStateSellTimedout
	StateCompleted        TradeState = protocol.TradeStateCompleted
)

// ItemID identifies a tradable item type. Both fields are case-sensitive.
type ItemID struct {
	TypeID      string `json:"type_id"`
	SubtypeName string `json:"subtype_name"`
}

func (id ItemID) String() string {
	return id.TypeID + "/" + id.SubtypeName
}

// key is the catalog index key. A NUL separator keeps "a/b"+"c" apart from "a"+"b/c".
func (id ItemID) key() string {
	return id.TypeID + "\x00" + id.SubtypeName
}

// Definition is an item definition supplied by the host environment.
type Definition struct {
	ID     ItemID
	Public bool
}

// MarketItem is a priced, tradable catalog entry.
// Entries are never deleted, only blacklisted.
type MarketItem struct {
	TypeID        string          `json:"type_id"`
	SubtypeName   string          `json:"subtype_name"`
	Quantity      decimal.Decimal `json:"quantity"`   // On hand at the merchant
	SellPrice     decimal.Decimal `json:"sell_price"` // Price the market sells at
	BuyPrice      decimal.Decimal `json:"buy_price"`  // Price the market pays the seller
	IsBlacklisted bool            `json:"is_blacklisted"`
}

// ID returns the identity of the entry.
func (m *MarketItem) ID() ItemID {
	return ItemID{TypeID: m.TypeID, SubtypeName: m.SubtypeName}
}

func (m *MarketItem) clone() *MarketItem {
	cpy := *m
	return &cpy
}

// Account is a bank account in the ledger.
type Account struct {
	SteamID     uint64          `json:"steam_id"`
	NickName    string          `json:"nick_name"`
	Language    string          `json:"language"`
	BankBalance decimal.Decimal `json:"balance"` // May go negative through admin flows
	Date        time.Time       `json:"last_modified"`
}

func (a *Account) clone() *Account {
	cpy := *a
	return &cpy
}

// Order is a recorded trade intent. Orders are never removed from the book.
type Order struct {
	ID          string          `json:"id"`
	Created     time.Time       `json:"created"`
	TraderID    uint64          `json:"trader_id"`
	TypeID      string          `json:"type_id"`
	SubtypeName string          `json:"subtype_name"`
	TradeState  TradeState      `json:"state"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`                 // Transaction total for direct offers
	TargetID    uint64          `json:"optional_id,omitempty"` // Direct offer counterpart, 0 if none
}

// ItemID returns the identity of the traded item.
func (o *Order) ItemID() ItemID {
	return ItemID{TypeID: o.TypeID, SubtypeName: o.SubtypeName}
}

func (o *Order) clone() *Order {
	cpy := *o
	return &cpy
}

// Snapshot is the full persisted economy state.
type Snapshot struct {
	MarketItems []*MarketItem `json:"market_items"`
	Accounts    []*Account    `json:"accounts"`
	OrderBook   []*Order      `json:"order_book"`
	LastSeqID   uint64        `json:"last_seq_id"` // Last TradeLog sequence id issued
}

// NewSnapshot returns an empty snapshot with non-nil collections.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		MarketItems: make([]*MarketItem, 0),
		Accounts:    make([]*Account, 0),
		OrderBook:   make([]*Order, 0),
	}
}

// TradeResult is the outcome of a trade request.
// Rejections are results, not errors: Accepted is false and Reason says why.
type TradeResult struct {
	Accepted  bool                  `json:"accepted"`
	Reason    protocol.RejectReason `json:"reason,omitempty"`
	Message   string                `json:"message"`
	Total     decimal.Decimal       `json:"total"`
	Shortfall decimal.Decimal       `json:"shortfall,omitempty"`
	OrderID   string                `json:"order_id,omitempty"`
}

// Kind maps the result onto the error taxonomy.
func (r *TradeResult) Kind() protocol.RejectKind {
	return r.Reason.Kind()
}
