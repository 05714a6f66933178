package economy_test

import (
	"context"
	"testing"

	economy "github.com/0x5487/economy-engine"
	"github.com/0x5487/economy-engine/memhost"
	"github.com/0x5487/economy-engine/protocol"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SellTestSuite struct {
	suite.Suite
	f *fixture
}

func TestSellTestSuite(t *testing.T) {
	suite.Run(t, new(SellTestSuite))
}

func (s *SellTestSuite) SetupTest() {
	s.f = newFixture(s.T())
}

func (s *SellTestSuite) sell(cmd *protocol.SellCommand) *economy.TradeResult {
	if cmd.SenderName == "" {
		cmd.SenderName = "Alice"
	}
	return s.f.sell(s.T(), cmd)
}

func (s *SellTestSuite) lastMessage(id uint64) memhost.Message {
	msgs := s.f.host.Sent(id)
	s.Require().NotEmpty(msgs)
	return msgs[len(msgs)-1]
}

// assertRejected checks the reason and that nothing but the notification changed.
func (s *SellTestSuite) assertRejected(cmd *protocol.SellCommand, reason protocol.RejectReason) *economy.TradeResult {
	before := s.f.snapshotJSON(s.T())
	inventory := s.f.inventory(cmd.SenderID, economy.ItemID{TypeID: cmd.TypeID, SubtypeName: cmd.SubtypeName})

	res := s.sell(cmd)
	s.False(res.Accepted)
	s.Equal(reason, res.Reason)
	s.NotEmpty(res.Message)
	s.Equal(res.Message, s.lastMessage(cmd.SenderID).Text)

	s.JSONEq(before, s.f.snapshotJSON(s.T()))
	s.True(inventory.Equal(s.f.inventory(cmd.SenderID, economy.ItemID{TypeID: cmd.TypeID, SubtypeName: cmd.SubtypeName})))
	s.Zero(s.f.logs.Count())
	return res
}

func (s *SellTestSuite) TestSellToMerchantAtBankPrice() {
	res := s.sell(&protocol.SellCommand{
		SenderID:        aliceID,
		SenderLanguage:  "0",
		Mode:            protocol.TradeModeMerchant,
		TypeID:          ironIngot.TypeID,
		SubtypeName:     ironIngot.SubtypeName,
		Quantity:        "10",
		UseBankBuyPrice: true,
	})
	s.Require().True(res.Accepted)
	s.Equal(protocol.RejectKindNone, res.Kind())
	s.True(res.Total.Equal(decimal.RequireFromString("1.8")))
	s.Equal("You just sold 1.8 worth of Iron Ingot (10 units)", res.Message)
	s.Equal(memhost.Message{RecipientID: aliceID, Category: protocol.CategorySell, Text: res.Message}, s.lastMessage(aliceID))

	merchant := s.f.account(s.T(), economy.MerchantID)
	s.True(merchant.BankBalance.Equal(decimal.RequireFromString("998.2")))
	s.Equal(t0, merchant.Date)

	alice := s.f.account(s.T(), aliceID)
	s.Require().NotNil(alice)
	s.True(alice.BankBalance.Equal(decimal.RequireFromString("1.8")))
	s.Equal("Alice", alice.NickName)
	s.Equal("0", alice.Language)

	s.True(s.f.marketItem(s.T(), ironIngot).Quantity.Equal(decimal.NewFromInt(1010)))
	s.True(s.f.inventory(aliceID, ironIngot).Equal(decimal.NewFromInt(90)))

	s.Require().Equal(1, s.f.logs.Count())
	log := s.f.logs.Get(0)
	s.Equal(economy.LogTypeSellMerchant, log.Type)
	s.Equal(aliceID, log.SellerID)
	s.Equal(economy.MerchantID, log.BuyerID)
	s.True(log.Amount.Equal(decimal.RequireFromString("1.8")))
	s.True(log.BuyerBalance.Equal(decimal.RequireFromString("998.2")))
	s.Equal(uint64(1), log.SequenceID)

	// no order is recorded for a merchant sale
	s.Empty(s.f.snapshot(s.T()).OrderBook)
}

func (s *SellTestSuite) TestSellToMerchantFractionalOre() {
	res := s.sell(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "2.5", Price: "2",
	})
	s.Require().True(res.Accepted)
	s.True(res.Total.Equal(decimal.NewFromInt(5)))
	s.True(s.f.inventory(aliceID, ironIngot).Equal(decimal.RequireFromString("97.5")))
}

func (s *SellTestSuite) TestRepeatSaleKeepsBalance() {
	cmd := func() *protocol.SellCommand {
		return &protocol.SellCommand{
			SenderID: aliceID, Mode: protocol.TradeModeMerchant,
			TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
			Quantity: "10", UseBankBuyPrice: true,
		}
	}
	s.Require().True(s.sell(cmd()).Accepted)
	s.Require().True(s.sell(cmd()).Accepted)
	s.True(s.f.account(s.T(), aliceID).BankBalance.Equal(decimal.RequireFromString("3.6")))
	s.Equal(2, s.f.logs.Count())
}

func (s *SellTestSuite) TestNonWholeComponent() {
	res := s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: steelPlate.TypeID, SubtypeName: steelPlate.SubtypeName,
		Quantity: "5.5", UseBankBuyPrice: true,
	}, protocol.RejectReasonNotWholeNumber)
	s.Equal(protocol.RejectKindValidation, res.Kind())
	s.Equal("You must provide a whole number for the quantity of that item.", res.Message)
}

func (s *SellTestSuite) TestNonPositiveQuantity() {
	for _, qty := range []string{"0", "-3", "abc", ""} {
		s.Run(qty, func() {
			s.assertRejected(&protocol.SellCommand{
				SenderID: aliceID, Mode: protocol.TradeModeMerchant,
				TypeID: steelPlate.TypeID, SubtypeName: steelPlate.SubtypeName,
				Quantity: qty, UseBankBuyPrice: true,
			}, protocol.RejectReasonInvalidQuantity)
		})
	}
}

func (s *SellTestSuite) TestUnknownItem() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: "MyObjectBuilder_Ore", SubtypeName: "Unobtainium",
		Quantity: "1", UseBankBuyPrice: true,
	}, protocol.RejectReasonItemNotFound)
}

func (s *SellTestSuite) TestNoMarketEntry() {
	// Gold is defined by the host but the catalog has not been reconciled yet.
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: goldOre.TypeID, SubtypeName: goldOre.SubtypeName,
		Quantity: "1", UseBankBuyPrice: true,
	}, protocol.RejectReasonNoMarketEntry)
}

func (s *SellTestSuite) TestBlacklistedItem() {
	res := s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: organicOre.TypeID, SubtypeName: organicOre.SubtypeName,
		Quantity: "5", UseBankBuyPrice: true,
	}, protocol.RejectReasonBlacklisted)
	s.Equal("Sorry, the item you tried to sell is blacklisted on this server.", res.Message)
	s.True(s.f.inventory(aliceID, organicOre).Equal(decimal.NewFromInt(10)))
}

func (s *SellTestSuite) TestDeadSeller() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: eveID, SenderName: "Eve", Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", UseBankBuyPrice: true,
	}, protocol.RejectReasonNoInventory)
	s.Nil(s.f.account(s.T(), eveID))
}

func (s *SellTestSuite) TestInsufficientItems() {
	res := s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "500", UseBankBuyPrice: true,
	}, protocol.RejectReasonInsufficientItem)
	s.Equal(protocol.RejectKindInsufficient, res.Kind())
	s.True(res.Shortfall.Equal(decimal.NewFromInt(400)))
	s.Equal("You don't have 500 of 'Iron Ingot' to sell. You have 100 in your inventory.", res.Message)
}

func (s *SellTestSuite) TestInvalidPrice() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", Price: "cheap",
	}, protocol.RejectReasonInvalidPrice)
}

func (s *SellTestSuite) TestMerchantCannotAfford() {
	res := s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: steelPlate.TypeID, SubtypeName: steelPlate.SubtypeName,
		Quantity: "20", Price: "100",
	}, protocol.RejectReasonMerchantFunds)
	s.Equal(protocol.RejectKindInsufficient, res.Kind())
	s.True(res.Total.Equal(decimal.NewFromInt(2000)))
	s.True(res.Shortfall.Equal(decimal.NewFromInt(1000)))
	s.Equal("NPC can't afford 2000 worth of Steel Plate (20 units) NPC only has 1000 funds!", res.Message)
	s.Nil(s.f.account(s.T(), aliceID), "rejected sale creates no account")
}

func (s *SellTestSuite) TestUnknownMode() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeUnknown,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", UseBankBuyPrice: true,
	}, protocol.RejectReasonInvalidPayload)
}

func (s *SellTestSuite) TestMarketModeNotSupported() {
	res := s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMarket, ToUserName: "Bob",
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "10", Price: "1",
	}, protocol.RejectReasonNotSupported)
	s.Equal(protocol.RejectKindNotSupported, res.Kind())
	s.True(res.Total.Equal(decimal.NewFromInt(10)))
}

func (s *SellTestSuite) TestMarketModeResolvesCounterpartyFirst() {
	for _, name := range []string{"", "nobody"} {
		res := s.assertRejected(&protocol.SellCommand{
			SenderID: aliceID, Mode: protocol.TradeModeMarket, ToUserName: name,
			TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
			Quantity: "10", Price: "1",
		}, protocol.RejectReasonAccountNotFound)
		s.Equal("Sorry, player does not exist or have an account!", res.Message)
	}
}

func (s *SellTestSuite) TestNegativePriceIsForcedPositive() {
	res := s.sell(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "2", Price: "-1",
	})
	s.Require().True(res.Accepted)
	s.True(res.Total.Equal(decimal.NewFromInt(2)))
	s.True(s.f.account(s.T(), aliceID).BankBalance.Equal(decimal.NewFromInt(2)))
}

func (s *SellTestSuite) TestAdminKeepsNegativeTotal() {
	res := s.sell(&protocol.SellCommand{
		SenderID: daveID, SenderName: "Dave", Mode: protocol.TradeModeMerchant,
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "2", Price: "-1",
	})
	s.Require().True(res.Accepted)
	s.True(res.Total.Equal(decimal.NewFromInt(-2)))
	s.True(s.f.account(s.T(), daveID).BankBalance.Equal(decimal.NewFromInt(-2)))
	s.True(s.f.account(s.T(), economy.MerchantID).BankBalance.Equal(decimal.NewFromInt(1002)))
}

func (s *SellTestSuite) TestDirectOffer() {
	res := s.sell(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeDirect, ToUserName: "bob",
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "5", Price: "2",
	})
	s.Require().True(res.Accepted)
	s.NotEmpty(res.OrderID)
	s.True(res.Total.Equal(decimal.NewFromInt(10)))
	s.Equal("Your offer has been sent.", s.lastMessage(aliceID).Text)
	s.Equal(
		"You have received an offer from Alice to buy 5 Iron Ingot at price 10 - type '/sell accept' to accept offer (or '/sell deny' to reject and return ore to seller)",
		s.lastMessage(bobID).Text,
	)

	snap := s.f.snapshot(s.T())
	s.Require().Len(snap.OrderBook, 1)
	order := snap.OrderBook[0]
	s.Equal(res.OrderID, order.ID)
	s.Equal(economy.StateSellDirectPlayer, order.TradeState)
	s.Equal(aliceID, order.TraderID)
	s.Equal(bobID, order.TargetID)
	s.Equal(t0, order.Created)
	s.True(order.Quantity.Equal(decimal.NewFromInt(5)))
	s.True(order.Price.Equal(decimal.NewFromInt(10)))

	// goods are held in the offer, money has not moved
	s.True(s.f.inventory(aliceID, ironIngot).Equal(decimal.NewFromInt(95)))
	s.True(s.f.inventory(bobID, ironIngot).Equal(decimal.NewFromInt(100)))
	s.True(s.f.account(s.T(), aliceID).BankBalance.IsZero())
	s.True(s.f.account(s.T(), bobID).BankBalance.IsZero())

	s.Require().Equal(1, s.f.logs.Count())
	s.Equal(economy.LogTypeOfferDirect, s.f.logs.Get(0).Type)
	s.Equal(res.OrderID, s.f.logs.Get(0).OrderID)
}

func (s *SellTestSuite) TestDirectOfferUnknownPlayer() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeDirect, ToUserName: "Nobody",
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", Price: "1",
	}, protocol.RejectReasonAccountNotFound)
}

func (s *SellTestSuite) TestDirectOfferOutOfRange() {
	s.assertRejected(&protocol.SellCommand{
		SenderID: aliceID, Mode: protocol.TradeModeDirect, ToUserName: "Dave",
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", Price: "1",
	}, protocol.RejectReasonOutOfRange)
	s.Equal(protocol.CategoryBuy, s.lastMessage(aliceID).Category)
}

func TestDirectOfferToOfflinePlayerIsQueued(t *testing.T) {
	policy := economy.DefaultPolicy()
	policy.LimitedRange = false
	f := newFixture(t, economy.WithPolicy(policy))

	res := f.sell(t, &protocol.SellCommand{
		SenderID: aliceID, SenderName: "Alice", Mode: protocol.TradeModeDirect, ToUserName: "Carol",
		TypeID: ironIngot.TypeID, SubtypeName: ironIngot.SubtypeName,
		Quantity: "1", Price: "3",
	})
	require.True(t, res.Accepted)
	assert.Empty(t, f.host.Sent(carolID))
	require.Len(t, f.host.Queued(carolID), 1)

	f.host.SetOnline(carolID, true)
	assert.Empty(t, f.host.Queued(carolID))
	require.Len(t, f.host.Sent(carolID), 1)
	assert.Contains(t, f.host.Sent(carolID)[0].Text, "You have received an offer from Alice")
}

func TestMerchantUnlimitedSupply(t *testing.T) {
	policy := economy.DefaultPolicy()
	policy.LimitedSupply = false
	f := newFixture(t, economy.WithPolicy(policy))

	res := f.sell(t, &protocol.SellCommand{
		SenderID: aliceID, SenderName: "Alice", Mode: protocol.TradeModeMerchant,
		TypeID: steelPlate.TypeID, SubtypeName: steelPlate.SubtypeName,
		Quantity: "20", Price: "100",
	})
	require.True(t, res.Accepted)
	assert.True(t, f.account(t, economy.MerchantID).BankBalance.Equal(decimal.NewFromInt(-1000)))
	assert.True(t, f.account(t, aliceID).BankBalance.Equal(decimal.NewFromInt(2000)))
}

func TestRespondOfferNotSupported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []protocol.OfferAction{
		protocol.OfferActionAccept,
		protocol.OfferActionDeny,
		protocol.OfferActionCancel,
		protocol.OfferActionCollect,
	} {
		res, err := f.engine.RespondOffer(ctx, &protocol.OfferResponseCommand{SenderID: bobID, Action: action})
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, protocol.RejectReasonNotSupported, res.Reason)
		assert.Equal(t, protocol.RejectKindNotSupported, res.Kind())
		assert.Equal(t, "Sorry, '/sell "+string(action)+"' is not supported yet.", res.Message)
	}

	res, err := f.engine.RespondOffer(ctx, &protocol.OfferResponseCommand{SenderID: bobID, Action: "haggle"})
	require.NoError(t, err)
	assert.Equal(t, protocol.RejectReasonInvalidPayload, res.Reason)
	assert.Zero(t, f.logs.Count())
}
