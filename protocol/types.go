package protocol

// TradeState represents the lifecycle state of an order in the order book.
type TradeState string

const (
	// TradeStateSell is an order posted to the market or merchant, awaiting processing.
	TradeStateSell TradeState = "sell"
	// TradeStateSellDirectPlayer is an offer posted to one counterpart, awaiting accept/deny.
	TradeStateSellDirectPlayer TradeState = "sell_direct_player"
	// TradeStateSellTimedout is a pending order that expired before it was answered.
	TradeStateSellTimedout TradeState = "sell_timedout"
	// TradeStateCompleted is reserved. Nothing in the engine transitions into it yet.
	TradeStateCompleted TradeState = "completed"
)

// IsPending reports whether the order is still waiting for a counterpart.
func (s TradeState) IsPending() bool {
	return s == TradeStateSell || s == TradeStateSellDirectPlayer
}

// TradeMode selects who the initiator is selling to.
type TradeMode uint8

const (
	TradeModeUnknown TradeMode = 0
	// TradeModeMerchant sells straight to the NPC merchant account.
	TradeModeMerchant TradeMode = 1
	// TradeModeMarket posts the goods to a zone market.
	TradeModeMarket TradeMode = 2
	// TradeModeDirect offers the goods to a named player.
	TradeModeDirect TradeMode = 3
)

func (m TradeMode) String() string {
	switch m {
	case TradeModeMerchant:
		return "merchant"
	case TradeModeMarket:
		return "market"
	case TradeModeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// OfferAction is the answer a player gives to a pending offer.
type OfferAction string

const (
	OfferActionAccept  OfferAction = "accept"
	OfferActionDeny    OfferAction = "deny"
	OfferActionCancel  OfferAction = "cancel"
	OfferActionCollect OfferAction = "collect"
)

// LogType represents the type of trade journal entry.
type LogType string

const (
	LogTypeSellMerchant LogType = "sell_merchant"
	LogTypeOfferDirect  LogType = "offer_direct"
	LogTypeOfferTimeout LogType = "offer_timeout"
)

// Category is the short tag shown in front of a notification.
type Category string

const (
	CategorySell Category = "SELL"
	CategoryBuy  Category = "BUY"
)

// RejectKind groups rejection reasons by how the caller should treat them.
type RejectKind string

const (
	RejectKindNone         RejectKind = ""
	RejectKindValidation   RejectKind = "validation"
	RejectKindInsufficient RejectKind = "insufficient"
	RejectKindNotSupported RejectKind = "not_supported"
)

// RejectReason represents the reason why a trade request was rejected.
type RejectReason string

const (
	RejectReasonNone             RejectReason = ""
	RejectReasonItemNotFound     RejectReason = "item_not_found"
	RejectReasonNotWholeNumber   RejectReason = "not_whole_number"
	RejectReasonInvalidQuantity  RejectReason = "invalid_quantity"
	RejectReasonInvalidPrice     RejectReason = "invalid_price"
	RejectReasonAccountNotFound  RejectReason = "account_not_found"
	RejectReasonNoMarketEntry    RejectReason = "no_market_entry"
	RejectReasonBlacklisted      RejectReason = "blacklisted"
	RejectReasonNoInventory      RejectReason = "no_inventory" // initiator has no active body
	RejectReasonOutOfRange       RejectReason = "out_of_range"
	RejectReasonInsufficientItem RejectReason = "insufficient_items"
	RejectReasonMerchantFunds    RejectReason = "merchant_funds"
	RejectReasonNotSupported     RejectReason = "not_supported"
	RejectReasonInvalidPayload   RejectReason = "invalid_payload"
)

// Kind maps the reason onto the error taxonomy.
func (r RejectReason) Kind() RejectKind {
	switch r {
	case RejectReasonNone:
		return RejectKindNone
	case RejectReasonInsufficientItem, RejectReasonMerchantFunds:
		return RejectKindInsufficient
	case RejectReasonNotSupported:
		return RejectKindNotSupported
	default:
		return RejectKindValidation
	}
}
