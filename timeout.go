package economy

import (
	"fmt"
	"time"

	"github.com/0x5487/economy-engine/protocol"
)

// sweep expires every pending order older than the trade timeout.
// The state flips to timed out before any notification goes out, so a sweep
// that runs again over the same orders finds nothing to do.
func (e *Engine) sweep(now time.Time) int {
	if e.book == nil || e.book.Len() == 0 {
		return 0
	}

	expired := e.book.Expired(now, e.policy.TradeTimeout)
	if len(expired) == 0 {
		return 0
	}

	logger.Info("trade timeouts", "cancellations", len(expired))

	count := 0
	for _, order := range expired {
		state := order.TradeState
		if !state.IsPending() {
			continue
		}
		order.TradeState = StateSellTimedout
		count++

		e.deliver(order.TraderID, protocol.CategorySell,
			"Your offer has timed out. Type '/sell collect' to collect your goods.")

		if state == StateSellDirectPlayer && order.TargetID != 0 {
			nickName := ""
			if seller, ok := e.ledger.Get(order.TraderID); ok {
				nickName = seller.NickName
			}
			e.deliver(order.TargetID, protocol.CategorySell,
				fmt.Sprintf("The offer from %s has now expired.", nickName))
		}

		e.publish(newOfferLog(e.nextSeqID(), LogTypeOfferTimeout, order, now))
	}
	return count
}
