package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  Engine Management Commands (internal, scheduler and persistence driven)
// - 51+:   Trading Commands (external, player driven)
const (
	// Engine Management Commands (0-50, internal use)
	CmdUnknown   CommandType = 0
	CmdSweep     CommandType = 1
	CmdSnapshot  CommandType = 2
	CmdRestore   CommandType = 3
	CmdReconcile CommandType = 4

	// Trading Commands (51+, external use)
	CmdSell         CommandType = 51
	CmdRespondOffer CommandType = 52
)

// Command is the standard carrier for commands entering the economy engine from a host transport.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of SellCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SellCommand is the payload for selling goods to the merchant, the market or a player.
type SellCommand struct {
	SenderID        uint64    `json:"sender_id"`
	SenderName      string    `json:"sender_name"`
	SenderLanguage  string    `json:"sender_language"`
	Mode            TradeMode `json:"mode"`
	ToUserName      string    `json:"to_user_name,omitempty"` // Only for TradeModeDirect
	TypeID          string    `json:"type_id"`
	SubtypeName     string    `json:"subtype_name"`
	Quantity        string    `json:"quantity"` // Using string to prevent precision loss in JSON
	Price           string    `json:"price"`    // Unit price
	UseBankBuyPrice bool      `json:"use_bank_buy_price"`
}

// OfferResponseCommand is the payload for answering or withdrawing a pending offer.
type OfferResponseCommand struct {
	SenderID uint64      `json:"sender_id"`
	Action   OfferAction `json:"action"`
}
