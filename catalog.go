package economy

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// Catalog maps item identities to price, quantity and blacklist metadata.
// Entries are kept in key order so snapshots are deterministic.
type Catalog struct {
	list  *skiplist.SkipList
	index map[string]*skiplist.Element
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		list:  skiplist.New(skiplist.String),
		index: make(map[string]*skiplist.Element),
	}
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.index)
}

// Lookup returns the entry for id. Matching is exact and case-sensitive.
func (c *Catalog) Lookup(id ItemID) (*MarketItem, bool) {
	el, ok := c.index[id.key()]
	if !ok {
		return nil, false
	}
	item, _ := el.Value.(*MarketItem)
	return item, item != nil
}

// IsBlacklisted reports whether id has an entry flagged as blacklisted.
func (c *Catalog) IsBlacklisted(id ItemID) bool {
	item, ok := c.Lookup(id)
	return ok && item.IsBlacklisted
}

// add inserts item unless an entry with the same identity exists.
func (c *Catalog) add(item *MarketItem) bool {
	key := item.ID().key()
	if _, exists := c.index[key]; exists {
		return false
	}
	c.index[key] = c.list.Set(key, item)
	return true
}

// Reconcile inserts a neutral entry (buy=sell=1, quantity 0) for every public
// definition that has none. Existing entries are never overwritten, so it is
// safe to call on every load. Returns the number of entries added.
func (c *Catalog) Reconcile(defs []Definition) int {
	added := 0
	for _, def := range defs {
		if !def.Public {
			continue
		}
		item := &MarketItem{
			TypeID:      def.ID.TypeID,
			SubtypeName: def.ID.SubtypeName,
			Quantity:    decimal.Zero,
			SellPrice:   decimal.NewFromInt(1),
			BuyPrice:    decimal.NewFromInt(1),
		}
		if c.add(item) {
			added++
			logger.Info("market item added", "type_id", def.ID.TypeID, "subtype_name", def.ID.SubtypeName)
		}
	}
	return added
}

// MergeDefaults adds default price list entries missing from the catalog,
// keeping their quantity, prices and blacklist flag. Returns the number added.
func (c *Catalog) MergeDefaults(defaults []*MarketItem) int {
	added := 0
	for _, item := range defaults {
		if item == nil {
			continue
		}
		if c.add(item.clone()) {
			added++
			logger.Info("market item added from defaults", "type_id", item.TypeID, "subtype_name", item.SubtypeName)
		}
	}
	return added
}

// Items returns copies of all entries in key order.
func (c *Catalog) Items() []*MarketItem {
	items := make([]*MarketItem, 0, c.Len())
	for el := c.list.Front(); el != nil; el = el.Next() {
		item, _ := el.Value.(*MarketItem)
		if item != nil {
			items = append(items, item.clone())
		}
	}
	return items
}

// Restore replaces the catalog content. When items repeat an identity the first one wins.
func (c *Catalog) Restore(items []*MarketItem) {
	c.list = skiplist.New(skiplist.String)
	c.index = make(map[string]*skiplist.Element, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if !c.add(item.clone()) {
			logger.Warn("duplicate market item dropped", "type_id", item.TypeID, "subtype_name", item.SubtypeName)
		}
	}
}
