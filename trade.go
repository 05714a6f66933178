package economy

import (
	"fmt"
	"strings"

	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
)

// sell validates and executes a sell request. Every check runs before the
// first mutation, so a rejected request leaves the ledger, catalog, order book
// and inventory untouched.
func (e *Engine) sell(cmd *protocol.SellCommand) *TradeResult {
	senderID := cmd.SenderID
	item := ItemID{TypeID: cmd.TypeID, SubtypeName: cmd.SubtypeName}

	if !e.host.Definitions.Exists(item) {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonItemNotFound,
			"Sorry, the item you specified doesn't exist!")
	}
	displayName := e.displayName(item)

	quantity, err := decimal.NewFromString(strings.TrimSpace(cmd.Quantity))
	if err != nil {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonInvalidQuantity,
			"Invalid quantity, or you dont have any to trade!")
	}

	// Tools and components cannot be split; only ore and ingots may be fractional.
	if !e.host.Definitions.IsGranular(item.TypeID) && !quantity.IsInteger() {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonNotWholeNumber,
			"You must provide a whole number for the quantity of that item.")
	}

	if !quantity.IsPositive() {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonInvalidQuantity,
			"Invalid quantity, or you dont have any to trade!")
	}

	var counterparty *Account
	switch cmd.Mode {
	case protocol.TradeModeMerchant:
		counterparty, _ = e.ledger.Merchant()
	case protocol.TradeModeDirect, protocol.TradeModeMarket:
		counterparty, _ = e.ledger.FindByName(cmd.ToUserName)
	default:
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonInvalidPayload,
			"Sorry, that trade mode is unknown.")
	}
	if counterparty == nil {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonAccountNotFound,
			"Sorry, player does not exist or have an account!")
	}

	marketItem, ok := e.catalog.Lookup(item)
	if !ok {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonNoMarketEntry,
			"Sorry, the items you are trying to sell doesn't have a market entry!")
	}
	if marketItem.IsBlacklisted {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonBlacklisted,
			"Sorry, the item you tried to sell is blacklisted on this server.")
	}

	inventory, ok := e.host.Inventories.ActiveInventory(senderID)
	if !ok || inventory == nil {
		return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonNoInventory,
			"You are dead. You cannot trade while dead.")
	}

	stored := inventory.AmountOf(item)
	if quantity.GreaterThan(stored) {
		res := e.reject(senderID, protocol.CategorySell, protocol.RejectReasonInsufficientItem,
			fmt.Sprintf("You don't have %s of '%s' to sell. You have %s in your inventory.", quantity, displayName, stored))
		res.Shortfall = quantity.Sub(stored)
		return res
	}

	var price decimal.Decimal
	if cmd.UseBankBuyPrice {
		// The player is selling, so the market buys at its buy price.
		price = marketItem.BuyPrice
	} else {
		price, err = decimal.NewFromString(strings.TrimSpace(cmd.Price))
		if err != nil {
			return e.reject(senderID, protocol.CategorySell, protocol.RejectReasonInvalidPrice,
				"Sorry, that price is not a valid number.")
		}
	}

	total := price.Mul(quantity)
	// Admins may move negative totals; everyone else is forced positive.
	if !e.host.Players.IsAdmin(senderID) {
		total = total.Abs()
	}

	switch cmd.Mode {
	case protocol.TradeModeMerchant:
		return e.sellToMerchant(cmd, counterparty, marketItem, inventory, quantity, total, displayName)
	case protocol.TradeModeMarket:
		res := e.reject(senderID, protocol.CategorySell, protocol.RejectReasonNotSupported,
			"Sorry, posting offers to the market is not supported yet.")
		res.Total = total
		return res
	default:
		return e.offerToPlayer(cmd, counterparty, item, inventory, quantity, total, displayName)
	}
}

func (e *Engine) sellToMerchant(cmd *protocol.SellCommand, merchant *Account, marketItem *MarketItem, inventory Inventory, quantity, total decimal.Decimal, displayName string) *TradeResult {
	if e.policy.LimitedSupply && merchant.BankBalance.LessThan(total) {
		res := e.reject(cmd.SenderID, protocol.CategorySell, protocol.RejectReasonMerchantFunds,
			fmt.Sprintf("NPC can't afford %s worth of %s (%s units) NPC only has %s funds!", total, displayName, quantity, merchant.BankBalance))
		res.Total = total
		res.Shortfall = total.Sub(merchant.BankBalance)
		return res
	}

	now := e.now()
	item := marketItem.ID()
	seller := e.ledger.FindOrCreate(cmd.SenderID, cmd.SenderName, cmd.SenderLanguage, now)

	inventory.Remove(item, quantity)
	marketItem.Quantity = marketItem.Quantity.Add(quantity)
	merchant.BankBalance = merchant.BankBalance.Sub(total)
	merchant.Date = now
	seller.BankBalance = seller.BankBalance.Add(total)
	seller.Date = now

	msg := fmt.Sprintf("You just sold %s worth of %s (%s units)", total, displayName, quantity)
	e.host.Notifier.Send(cmd.SenderID, protocol.CategorySell, msg)
	e.publish(newSellMerchantLog(e.nextSeqID(), seller, merchant, item, quantity, total, now))

	logger.Info("sold to merchant",
		"seller_id", cmd.SenderID,
		"item", item.String(),
		"quantity", quantity.String(),
		"total", total.String(),
	)

	return &TradeResult{Accepted: true, Message: msg, Total: total}
}

func (e *Engine) offerToPlayer(cmd *protocol.SellCommand, target *Account, item ItemID, inventory Inventory, quantity, total decimal.Decimal, displayName string) *TradeResult {
	if e.policy.LimitedRange && !e.host.Players.WithinRange(cmd.SenderID, target.SteamID) {
		return e.reject(cmd.SenderID, protocol.CategoryBuy, protocol.RejectReasonOutOfRange,
			"Sorry, you are not in range of that player!")
	}

	now := e.now()
	seller := e.ledger.FindOrCreate(cmd.SenderID, cmd.SenderName, cmd.SenderLanguage, now)

	// Escrow: the goods leave the seller now and wait in the order.
	order := e.book.PostDirect(cmd.SenderID, item, quantity, total, target.SteamID, now)
	inventory.Remove(item, quantity)

	e.deliver(target.SteamID, protocol.CategorySell, fmt.Sprintf(
		"You have received an offer from %s to buy %s %s at price %s - type '/sell accept' to accept offer (or '/sell deny' to reject and return ore to seller)",
		seller.NickName, quantity, displayName, total))
	msg := "Your offer has been sent."
	e.host.Notifier.Send(cmd.SenderID, protocol.CategorySell, msg)
	e.publish(newOfferLog(e.nextSeqID(), LogTypeOfferDirect, order, now))

	logger.Info("direct offer posted",
		"order_id", order.ID,
		"seller_id", cmd.SenderID,
		"target_id", target.SteamID,
		"item", item.String(),
		"quantity", quantity.String(),
		"total", total.String(),
	)

	return &TradeResult{Accepted: true, Message: msg, Total: total, OrderID: order.ID}
}

// respondOffer answers accept/deny/cancel/collect requests. None of them settle
// an offer yet, so every valid action is reported as not supported.
func (e *Engine) respondOffer(cmd *protocol.OfferResponseCommand) *TradeResult {
	switch cmd.Action {
	case protocol.OfferActionAccept, protocol.OfferActionDeny, protocol.OfferActionCancel, protocol.OfferActionCollect:
		return e.reject(cmd.SenderID, protocol.CategorySell, protocol.RejectReasonNotSupported,
			fmt.Sprintf("Sorry, '/sell %s' is not supported yet.", cmd.Action))
	default:
		return e.reject(cmd.SenderID, protocol.CategorySell, protocol.RejectReasonInvalidPayload,
			"Sorry, that offer action is unknown.")
	}
}

func (e *Engine) reject(recipientID uint64, category protocol.Category, reason protocol.RejectReason, msg string) *TradeResult {
	e.host.Notifier.Send(recipientID, category, msg)
	logger.Debug("trade rejected", "sender_id", recipientID, "reason", string(reason))
	return &TradeResult{Reason: reason, Message: msg}
}

// deliver sends msg now when the recipient is online, otherwise hands it to the
// notifier's offline queue if it has one.
func (e *Engine) deliver(recipientID uint64, category protocol.Category, msg string) {
	if !e.host.Players.IsOnline(recipientID) {
		if q, ok := e.host.Notifier.(OfflineQueue); ok {
			q.Enqueue(recipientID, category, msg)
			return
		}
	}
	e.host.Notifier.Send(recipientID, category, msg)
}

func (e *Engine) displayName(item ItemID) string {
	if name := e.host.Definitions.DisplayName(item); name != "" {
		return name
	}
	return item.SubtypeName
}
