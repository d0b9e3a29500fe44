package engine

// OrderBook is the façade described in spec §2/§6: it owns the pool,
// the four SideIndex instances, the current market price, and exposes
// the public operations. It is single-threaded and synchronous — no
// operation here suspends or blocks (spec §5); callers needing
// concurrency shard by symbol or serialize upstream.
type OrderBook struct {
	pool *OrderPool

	bids *SideIndex // descending: best = highest bid
	asks *SideIndex // ascending: best = lowest ask

	stopBids *SideIndex // keyed by trigger price, ascending (lowest fires soonest)
	stopAsks *SideIndex // keyed by trigger price, descending (highest fires soonest)

	marketPrice Price
}

// New builds an empty OrderBook. capacityHint sizes the backing arena
// up front; it is the only backpressure knob the engine exposes
// (spec §5).
func New(capacityHint int) *OrderBook {
	return &OrderBook{
		pool: NewOrderPool(capacityHint),
		bids: newSideIndex(true),
		asks: newSideIndex(false),
		// Stop indexes are keyed by trigger price and walked by
		// triggerSide in ascending-distance-to-trigger order, which is
		// the opposite direction from the regular bids/asks: a buy
		// stop fires on marketPrice >= triggerPrice, so the easiest
		// (lowest) trigger price must come first; a sell stop fires on
		// marketPrice <= triggerPrice, so the highest trigger price
		// must come first. See stop.go.
		stopBids: newSideIndex(false),
		stopAsks: newSideIndex(true),
	}
}

// InsertOrder submits order (limit, market, or a trailing/stop variant
// already triggered by the caller) and returns every trade it produced,
// or nil if it produced none.
func (b *OrderBook) InsertOrder(order Order) []Trade {
	return b.insert(order)
}

// InsertStopOrder parks order in the stop index matching its side,
// keyed by its trigger price. It never matches until TriggerStops
// re-submits it as an ordinary Market or Limit order (spec §4.4.6).
func (b *OrderBook) InsertStopOrder(order Order) {
	handle := b.pool.Insert(order)
	stops := b.stopSideFor(order.Side)
	stops.AddOrder(order.Price, handle, order.ID, order.Quantity)
}

// CancelOrder removes the resting order named by sel and returns it.
func (b *OrderBook) CancelOrder(sel OrderSelector) (Order, error) {
	return b.cancel(sel)
}

// ReplaceOrder adjusts the quantity (and optionally the price) of the
// resting order named by sel. newPrice == 0 means "keep the existing
// price". The replacement loses time priority: it is resubmitted as a
// fresh arrival (spec §4.4.5).
func (b *OrderBook) ReplaceOrder(sel OrderSelector, qtyDelta int64, newPrice Price) ([]Trade, error) {
	return b.replace(sel, qtyDelta, newPrice)
}

// TriggerStops re-submits every resting stop order whose trigger price
// has been crossed by the current market price, as an ordinary Market
// or Limit order. See stop.go for the documented trigger semantics.
func (b *OrderBook) TriggerStops() []Trade {
	return b.triggerStops()
}

// SetMarketPrice records the latest traded/reference price. Set by the
// external price-feed collaborator before it calls TriggerStops.
func (b *OrderBook) SetMarketPrice(p Price) {
	b.marketPrice = p
}

// MarketPrice returns the last price recorded by SetMarketPrice.
func (b *OrderBook) MarketPrice() Price {
	return b.marketPrice
}

// Bids exposes the resting bid side for read-only presentation use.
func (b *OrderBook) Bids() *SideIndex { return b.bids }

// Asks exposes the resting ask side for read-only presentation use.
func (b *OrderBook) Asks() *SideIndex { return b.asks }

// StopBids exposes the parked buy-side stop orders.
func (b *OrderBook) StopBids() *SideIndex { return b.stopBids }

// StopAsks exposes the parked sell-side stop orders.
func (b *OrderBook) StopAsks() *SideIndex { return b.stopAsks }

// Validate recomputes every cached aggregate from first principles and
// reports the first inconsistency found. It is a test/diagnostic hook,
// not part of the hot path (spec §4.3, §8).
func (b *OrderBook) Validate() error {
	if err := b.bids.validate(b.pool); err != nil {
		return err
	}
	if err := b.asks.validate(b.pool); err != nil {
		return err
	}
	if err := b.stopBids.validate(b.pool); err != nil {
		return err
	}
	if err := b.stopAsks.validate(b.pool); err != nil {
		return err
	}
	return nil
}

// sidesFor returns (own, opposing) for an incoming order of side s:
// a Buy matches against asks and rests on bids; a Sell matches against
// bids and rests on asks.
func (b *OrderBook) sidesFor(s Side) (own, opposing *SideIndex) {
	if s == Buy {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// sideIndexFor returns the resting-side index for s, used by cancel and
// replace which address a side directly rather than an "incoming" order.
func (b *OrderBook) sideIndexFor(s Side) *SideIndex {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// stopSideFor returns the stop index matching s.
func (b *OrderBook) stopSideFor(s Side) *SideIndex {
	if s == Buy {
		return b.stopBids
	}
	return b.stopAsks
}
