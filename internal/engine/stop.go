package engine

// Stop-order triggering is a data-model concern only; the price feed
// that decides when to call SetMarketPrice/TriggerStops lives outside
// the core (spec §1, §6). The Rust prototype this module is grounded on
// leaves the comparison semantics as dead, commented-out code (spec §9
// Open Questions: "the exact trigger comparison semantics (strict vs.
// non-strict, last-trade vs. best-opposing) are unspecified"). This
// implementation makes a concrete choice so the codepath is live and
// testable:
//
//   - comparison is against the book's own current market price
//     (set via SetMarketPrice), not the opposing best — a stop order is
//     a reaction to the last trade/reference price, not to standing
//     liquidity;
//   - the cross is non-strict: a buy stop at price p triggers once the
//     market price reaches or exceeds p; a sell stop triggers once the
//     market price reaches or falls below p. "At or through" is the
//     more common convention among the retrieved example engines and
//     matches a trader's expectation that a stop fires exactly at its
//     price.
//
// triggerStops re-submits every stop order whose trigger has crossed,
// draining a trigger price level's entire FIFO before moving to the
// next price, and returns every trade produced by the re-submissions.
func (b *OrderBook) triggerStops() []Trade {
	var trades []Trade
	trades = append(trades, b.triggerSide(b.stopBids, Buy)...)
	trades = append(trades, b.triggerSide(b.stopAsks, Sell)...)
	return trades
}

// triggerSide scans stops from the easiest trigger price to reach
// outward, breaking as soon as one fails to cross — correct only because
// stops is ordered by ease of triggering, not by the side's own book
// priority (a buy stop's easiest price is its lowest, the opposite of
// bids; see the stopBids/stopAsks construction in orderbook.go).
func (b *OrderBook) triggerSide(stops *SideIndex, side Side) []Trade {
	var trades []Trade
	for {
		price, level, ok := stops.PeekBest()
		if !ok {
			break
		}
		if !stopCrossed(side, b.marketPrice, price) {
			break
		}

		for level.Len() > 0 {
			meta, _ := level.PopFront()
			triggered := *b.pool.Get(meta.Handle)
			level.SetLevelQuantity(level.LevelQuantity() - triggered.Quantity)
			stops.SetSideQuantity(stops.SideQuantity() - triggered.Quantity)
			b.pool.Remove(meta.Handle)

			trades = append(trades, b.insert(releaseTriggeredOrder(triggered))...)
		}
		stops.RemoveLevel(price)
	}
	return trades
}

// stopCrossed reports whether the market price has crossed a stop
// order's trigger price: for a buy stop, at or above; for a sell stop,
// at or below.
func stopCrossed(side Side, marketPrice, triggerPrice Price) bool {
	if side == Buy {
		return marketPrice >= triggerPrice
	}
	return marketPrice <= triggerPrice
}

// releaseTriggeredOrder converts a parked stop order into the ordinary
// order type it becomes once triggered: StopMarket and TrailingStop
// become Market orders (no price); StopLimit becomes a Limit order at
// its already-recorded price.
func releaseTriggeredOrder(o Order) Order {
	switch o.Type {
	case StopMarket, TrailingStop:
		o.Type = Market
		o.Price = 0
	case StopLimit:
		o.Type = Limit
	}
	return o
}
