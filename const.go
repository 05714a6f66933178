package economy

import "time"

const (
	// EngineVersion is the current version of the economy engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the current version of the snapshot schema
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1

	// MerchantID is the reserved account that buys goods in merchant mode.
	MerchantID uint64 = 1234

	// MerchantNickName is the display name of the merchant account.
	MerchantNickName = "NPC Merchant"

	// DefaultTradeTimeout is how long a pending offer stays open.
	DefaultTradeTimeout = 5 * time.Minute
)
