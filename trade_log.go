package economy

import (
	"time"

	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

type LogType = protocol.LogType

const (
	LogTypeSellMerchant LogType = protocol.LogTypeSellMerchant
	LogTypeOfferDirect  LogType = protocol.LogTypeOfferDirect
	LogTypeOfferTimeout LogType = protocol.LogTypeOfferTimeout
)

// TradeLog represents a committed change to the economy state.
// SequenceID is increasing for every log the engine produces and is used for
// ordering and deduplication in downstream systems. Rejected requests produce no log.
type TradeLog struct {
	SequenceID   uint64          `json:"seq_id"`
	Type         LogType         `json:"type"`
	OrderID      string          `json:"order_id,omitempty"`
	SellerID     uint64          `json:"seller_id"`
	BuyerID      uint64          `json:"buyer_id,omitempty"`
	TypeID       string          `json:"type_id"`
	SubtypeName  string          `json:"subtype_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"` // Transaction total
	BuyerBalance decimal.Decimal `json:"buyer_balance,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newSellMerchantLog(seqID uint64, seller *Account, merchant *Account, item ItemID, quantity, amount decimal.Decimal, now time.Time) *TradeLog {
	return &TradeLog{
		SequenceID:   seqID,
		Type:         LogTypeSellMerchant,
		SellerID:     seller.SteamID,
		BuyerID:      merchant.SteamID,
		TypeID:       item.TypeID,
		SubtypeName:  item.SubtypeName,
		Quantity:     quantity,
		Amount:       amount,
		BuyerBalance: merchant.BankBalance,
		CreatedAt:    now,
	}
}

func newOfferLog(seqID uint64, logType LogType, order *Order, now time.Time) *TradeLog {
	return &TradeLog{
		SequenceID:  seqID,
		Type:        logType,
		OrderID:     order.ID,
		SellerID:    order.TraderID,
		BuyerID:     order.TargetID,
		TypeID:      order.TypeID,
		SubtypeName: order.SubtypeName,
		Quantity:    order.Quantity,
		Amount:      order.Price,
		CreatedAt:   now,
	}
}
