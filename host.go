package economy

import (
	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

// DefinitionRegistry exposes the host's item definitions.
type DefinitionRegistry interface {
	// PublicItemDefinitions lists every item definition the host currently knows.
	PublicItemDefinitions() []Definition
	// Exists reports whether the host defines the item.
	Exists(id ItemID) bool
	// DisplayName returns the localized name of the item, or "" if unknown.
	DisplayName(id ItemID) string
	// IsGranular reports whether items of this type may be traded in fractional amounts (ore, ingots).
	IsGranular(typeID string) bool
}

// Inventory is the active inventory of a player's body.
type Inventory interface {
	AmountOf(id ItemID) decimal.Decimal
	Remove(id ItemID, amount decimal.Decimal)
}

// InventoryAccess resolves a player's active inventory.
type InventoryAccess interface {
	// ActiveInventory returns false when the player has no body, e.g. while dead.
	ActiveInventory(playerID uint64) (Inventory, bool)
}

// PlayerDirectory answers session questions about players.
type PlayerDirectory interface {
	IsOnline(playerID uint64) bool
	IsAdmin(playerID uint64) bool
	WithinRange(a, b uint64) bool
}

// Notifier delivers text messages to players. Delivery is best-effort.
type Notifier interface {
	Send(recipientID uint64, category protocol.Category, message string)
}

// OfflineQueue is implemented by notifiers that can hold messages for disconnected players.
type OfflineQueue interface {
	Enqueue(recipientID uint64, category protocol.Category, message string)
}

// Host bundles the capabilities the engine consumes.
type Host struct {
	Definitions DefinitionRegistry
	Inventories InventoryAccess
	Players     PlayerDirectory
	Notifier    Notifier
}

func (h Host) validate() error {
	if h.Definitions == nil || h.Inventories == nil || h.Players == nil || h.Notifier == nil {
		return ErrInvalidParam
	}
	return nil
}
