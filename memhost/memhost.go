// Package memhost is an in-memory host environment for the economy engine.
// The standalone daemon and the tests use it in place of a game server.
package memhost

import (
	"sort"
	"strings"
	"sync"

	economy "github.com/0x5487/economy-engine"
	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

const (
	TypeOre       = "MyObjectBuilder_Ore"
	TypeIngot     = "MyObjectBuilder_Ingot"
	TypeComponent = "MyObjectBuilder_Component"
)

// ItemDefinition describes one item the host knows.
type ItemDefinition struct {
	TypeID      string `yaml:"type_id"`
	SubtypeName string `yaml:"subtype_name"`
	DisplayName string `yaml:"display_name"`
	Public      bool   `yaml:"public"`
}

// Registry is a DefinitionRegistry backed by a map.
type Registry struct {
	mu    sync.RWMutex
	defs  map[economy.ItemID]ItemDefinition
	order []economy.ItemID
}

// NewRegistry creates a registry holding defs.
func NewRegistry(defs ...ItemDefinition) *Registry {
	r := &Registry{defs: make(map[economy.ItemID]ItemDefinition)}
	for _, def := range defs {
		r.Add(def)
	}
	return r
}

// Add registers def, replacing a previous definition with the same identity.
func (r *Registry) Add(def ItemDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := economy.ItemID{TypeID: def.TypeID, SubtypeName: def.SubtypeName}
	if _, exists := r.defs[id]; !exists {
		r.order = append(r.order, id)
	}
	r.defs[id] = def
}

// PublicItemDefinitions lists every registered definition in registration order.
func (r *Registry) PublicItemDefinitions() []economy.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]economy.Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, economy.Definition{ID: id, Public: r.defs[id].Public})
	}
	return out
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id economy.ItemID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[id]
	return ok
}

// DisplayName returns the display name of id, or "" when unknown or unnamed.
func (r *Registry) DisplayName(id economy.ItemID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[id].DisplayName
}

// IsGranular is true for ore and ingots.
func (r *Registry) IsGranular(typeID string) bool {
	return typeID == TypeOre || typeID == TypeIngot
}

// Inventory is a player's item store.
type Inventory struct {
	mu    sync.Mutex
	items map[economy.ItemID]decimal.Decimal
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{items: make(map[economy.ItemID]decimal.Decimal)}
}

// Add puts amount of id into the inventory.
func (inv *Inventory) Add(id economy.ItemID, amount decimal.Decimal) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items[id] = inv.items[id].Add(amount)
}

// AmountOf returns how much of id the inventory holds.
func (inv *Inventory) AmountOf(id economy.ItemID) decimal.Decimal {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items[id]
}

// Remove takes up to amount of id out of the inventory.
func (inv *Inventory) Remove(id economy.ItemID, amount decimal.Decimal) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	left := inv.items[id].Sub(amount)
	if !left.IsPositive() {
		delete(inv.items, id)
		return
	}
	inv.items[id] = left
}

// Player is the session state of one connected or known player.
type Player struct {
	SteamID   uint64
	Name      string
	Online    bool
	Admin     bool
	Alive     bool
	Position  [3]float64
	Inventory *Inventory
}

// Message is a notification captured by the Notifier.
type Message struct {
	RecipientID uint64
	Category    protocol.Category
	Text        string
}

// Host implements every capability the engine consumes.
type Host struct {
	*Registry

	mu      sync.RWMutex
	players map[uint64]*Player
	rangeM  float64

	sent   []Message
	queued map[uint64][]Message
}

// NewHost creates a host with the given registry. rangeMeters is the
// proximity limit for direct offers.
func NewHost(registry *Registry, rangeMeters float64) *Host {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Host{
		Registry: registry,
		players:  make(map[uint64]*Player),
		rangeM:   rangeMeters,
		queued:   make(map[uint64][]Message),
	}
}

// Capabilities returns the host wired as an economy.Host.
func (h *Host) Capabilities() economy.Host {
	return economy.Host{
		Definitions: h,
		Inventories: h,
		Players:     h,
		Notifier:    h,
	}
}

// AddPlayer registers p. A nil inventory is replaced with an empty one.
func (h *Host) AddPlayer(p *Player) *Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.Inventory == nil {
		p.Inventory = NewInventory()
	}
	h.players[p.SteamID] = p
	return p
}

// Player returns the registered player.
func (h *Host) Player(id uint64) (*Player, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[id]
	return p, ok
}

// SetOnline changes the session state of a player. Going online flushes queued messages.
func (h *Host) SetOnline(id uint64, online bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	if !ok {
		return
	}
	p.Online = online
	if online {
		h.sent = append(h.sent, h.queued[id]...)
		delete(h.queued, id)
	}
}

// ActiveInventory returns the inventory of a known, living player.
func (h *Host) ActiveInventory(playerID uint64) (economy.Inventory, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[playerID]
	if !ok || !p.Alive {
		return nil, false
	}
	return p.Inventory, true
}

// IsOnline reports whether the player is registered and connected.
func (h *Host) IsOnline(playerID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[playerID]
	return ok && p.Online
}

// IsAdmin reports whether the player has admin rights.
func (h *Host) IsAdmin(playerID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[playerID]
	return ok && p.Admin
}

// WithinRange is false when either player is unknown, offline or dead.
func (h *Host) WithinRange(a, b uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pa, ok := h.players[a]
	if !ok || !pa.Online || !pa.Alive {
		return false
	}
	pb, ok := h.players[b]
	if !ok || !pb.Online || !pb.Alive {
		return false
	}
	var d2 float64
	for i := range pa.Position {
		d := pa.Position[i] - pb.Position[i]
		d2 += d * d
	}
	return d2 <= h.rangeM*h.rangeM
}

// Send records a delivered message.
func (h *Host) Send(recipientID uint64, category protocol.Category, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, Message{RecipientID: recipientID, Category: category, Text: message})
	logger.Debug("message sent", "recipient_id", recipientID, "category", string(category), "text", message)
}

// Enqueue holds a message until the recipient comes online.
func (h *Host) Enqueue(recipientID uint64, category protocol.Category, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queued[recipientID] = append(h.queued[recipientID], Message{RecipientID: recipientID, Category: category, Text: message})
}

// Sent returns the delivered messages, optionally filtered to one recipient.
func (h *Host) Sent(recipientID ...uint64) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, 0, len(h.sent))
	for _, m := range h.sent {
		if len(recipientID) == 0 || m.RecipientID == recipientID[0] {
			out = append(out, m)
		}
	}
	return out
}

// Queued returns the messages held for an offline player.
func (h *Host) Queued(recipientID uint64) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.queued[recipientID]))
	copy(out, h.queued[recipientID])
	return out
}

// Players lists the registered players by name.
func (h *Host) Players() []*Player {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
