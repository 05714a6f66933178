package economy

import (
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// OrderBook is the append-only log of trade intents.
// Orders are addressed by index so state changes happen in place.
type OrderBook struct {
	orders []*Order
	index  map[string]int
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders: make([]*Order, 0),
		index:  make(map[string]int),
	}
}

// Len returns the number of orders, including expired ones.
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// Get returns the order with the given id.
func (b *OrderBook) Get(id string) (*Order, bool) {
	i, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return b.orders[i], true
}

// PostSell appends an order posted to the market or merchant.
func (b *OrderBook) PostSell(sellerID uint64, item ItemID, quantity, price decimal.Decimal, now time.Time) *Order {
	return b.append(&Order{
		Created:     now,
		TraderID:    sellerID,
		TypeID:      item.TypeID,
		SubtypeName: item.SubtypeName,
		TradeState:  StateSell,
		Quantity:    quantity,
		Price:       price,
	})
}

// PostDirect appends an offer to one specific player.
func (b *OrderBook) PostDirect(sellerID uint64, item ItemID, quantity, price decimal.Decimal, targetID uint64, now time.Time) *Order {
	return b.append(&Order{
		Created:     now,
		TraderID:    sellerID,
		TypeID:      item.TypeID,
		SubtypeName: item.SubtypeName,
		TradeState:  StateSellDirectPlayer,
		Quantity:    quantity,
		Price:       price,
		TargetID:    targetID,
	})
}

// Expired returns the pending orders older than window at now, in book order.
func (b *OrderBook) Expired(now time.Time, window time.Duration) []*Order {
	var out []*Order
	for _, order := range b.orders {
		if !order.TradeState.IsPending() {
			continue
		}
		if now.Sub(order.Created) > window {
			out = append(out, order)
		}
	}
	return out
}

// Orders returns copies of all orders in book order.
func (b *OrderBook) Orders() []*Order {
	out := make([]*Order, len(b.orders))
	for i, order := range b.orders {
		out[i] = order.clone()
	}
	return out
}

// Restore replaces the book content. Orders without an id get a fresh one.
func (b *OrderBook) Restore(orders []*Order) {
	b.orders = make([]*Order, 0, len(orders))
	b.index = make(map[string]int, len(orders))
	for _, order := range orders {
		if order == nil {
			continue
		}
		cpy := order.clone()
		if _, exists := b.index[cpy.ID]; exists {
			logger.Warn("duplicate order id reassigned", "order_id", cpy.ID)
			cpy.ID = ""
		}
		b.append(cpy)
	}
}

func (b *OrderBook) append(order *Order) *Order {
	if order.ID == "" {
		order.ID = xid.New().String()
	}
	b.index[order.ID] = len(b.orders)
	b.orders = append(b.orders, order)
	return order
}
