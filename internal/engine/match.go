package engine

// marketable implements the marketability predicate of spec §4.4.1: a
// Buy limit order is marketable iff its limit price is at least the
// opposing best; a Sell iff its limit price is at most the opposing
// best.
func marketable(side Side, limitPrice, topPrice Price) bool {
	if side == Buy {
		return limitPrice >= topPrice
	}
	return limitPrice <= topPrice
}

// marketableAt returns a predicate over opposing-level prices suitable
// for WalkFillable and the crossing loop: unconditionally true for a
// Market order, otherwise the limit-price test above.
func marketableAt(side Side, orderType OrderType, limitPrice Price) func(Price) bool {
	if orderType == Market {
		return func(Price) bool { return true }
	}
	return func(topPrice Price) bool { return marketable(side, limitPrice, topPrice) }
}

// insert runs the full insert pseudocontract of spec §4.4.2: allocate,
// FOK feasibility check, crossing loop, then rest-or-release. It
// returns every trade produced by the crossing loop (nil if none).
func (b *OrderBook) insert(order Order) []Trade {
	handle := b.pool.Insert(order)
	own, opposing := b.sidesFor(order.Side)

	if order.TimeInForce == FOK {
		need := order.Quantity
		avail := opposing.WalkFillable(marketableAt(order.Side, order.Type, order.Price), need)
		if avail < need {
			b.pool.Remove(handle)
			return nil
		}
	}

	var trades []Trade
	isMarketable := marketableAt(order.Side, order.Type, order.Price)
	for {
		topPrice, ok := opposing.PeekBestPrice()
		if !ok {
			break
		}
		if !isMarketable(topPrice) {
			break
		}
		if b.levelFill(handle, opposing, topPrice, &trades) {
			break
		}
	}

	remaining := b.pool.Get(handle)
	switch {
	case order.Ephemeral():
		b.pool.Remove(handle)
	case remaining.Quantity == 0:
		b.pool.Remove(handle)
	default:
		own.AddOrder(remaining.Price, handle, remaining.ID, remaining.Quantity)
	}

	return trades
}

// levelFill executes one level-fill against the opposing best price p
// (spec §4.4.3). It reports whether the incoming order is now fully
// filled.
func (b *OrderBook) levelFill(incoming Handle, opposing *SideIndex, p Price, trades *[]Trade) bool {
	level, ok := opposing.GetLevel(p)
	if !ok {
		panic("engine: opposing level vanished mid-fill")
	}

	taker := b.pool.Get(incoming)
	consumed := min(level.LevelQuantity(), taker.Quantity)
	level.SetLevelQuantity(level.LevelQuantity() - consumed)

	for level.Len() > 0 && b.pool.Get(incoming).Quantity > 0 {
		meta, _ := level.Front()
		if !b.pool.Contains(meta.Handle) {
			panic(ErrPoolHandleMissing)
		}

		resting, takerOrder := b.pool.GetTwoMut(meta.Handle, incoming)
		fill := min(resting.Quantity, takerOrder.Quantity)
		resting.Quantity -= fill
		takerOrder.Quantity -= fill

		*trades = append(*trades, Trade{
			Side:     takerOrder.Side,
			Price:    p,
			Quantity: fill,
			TakerID:  takerOrder.ID,
			MakerID:  resting.ID,
		})

		if resting.Quantity == 0 {
			level.PopFront()
			b.pool.Remove(meta.Handle)
		}
		if takerOrder.Quantity == 0 {
			break
		}
	}

	if level.LevelQuantity() == 0 {
		opposing.RemoveLevel(p)
	}
	opposing.SetSideQuantity(opposing.SideQuantity() - consumed)

	return b.pool.Get(incoming).Quantity == 0
}

// cancel locates and removes the resting order named by sel (spec
// §4.4.4), returning it by value.
func (b *OrderBook) cancel(sel OrderSelector) (Order, error) {
	side := b.sideIndexFor(sel.Side)
	level, ok := side.GetLevel(sel.Price)
	if !ok {
		return Order{}, ErrLevelNotFound
	}

	idx, ok := level.find(sel.ID)
	if !ok {
		return Order{}, ErrOrderNotFound
	}

	meta := level.removeAt(idx)
	if !b.pool.Contains(meta.Handle) {
		panic(ErrPoolHandleMissing)
	}
	removed := *b.pool.Get(meta.Handle)
	b.pool.Remove(meta.Handle)

	level.SetLevelQuantity(level.LevelQuantity() - removed.Quantity)
	side.SetSideQuantity(side.SideQuantity() - removed.Quantity)

	if level.LevelQuantity() == 0 {
		side.RemoveLevel(sel.Price)
	}

	return removed, nil
}

// replace implements spec §4.4.5. Quantity is recomputed before
// anything is mutated, so a replace that would drive the quantity to
// zero leaves the book byte-identical to before the call.
func (b *OrderBook) replace(sel OrderSelector, qtyDelta int64, newPrice Price) ([]Trade, error) {
	side := b.sideIndexFor(sel.Side)
	level, ok := side.GetLevel(sel.Price)
	if !ok {
		return nil, ErrLevelNotFound
	}

	idx, ok := level.find(sel.ID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	current := *b.pool.Get(level.items[idx].Handle)
	newQuantity := applySaturatingDelta(current.Quantity, qtyDelta)
	if newQuantity == 0 {
		return nil, ErrOrderAlreadyFilled
	}

	if _, err := b.cancel(sel); err != nil {
		panic("engine: replace lost its order between lookup and cancel")
	}

	fresh := current
	fresh.Quantity = newQuantity
	if newPrice != 0 {
		fresh.Price = newPrice
	}

	return b.insert(fresh), nil
}

// applySaturatingDelta applies delta to q, saturating at 0 on the way
// down and at the Quantity range's maximum on the way up.
func applySaturatingDelta(q Quantity, delta int64) Quantity {
	if delta >= 0 {
		d := Quantity(delta)
		if q+d < q { // overflow
			return ^Quantity(0)
		}
		return q + d
	}
	d := Quantity(-delta)
	if d >= q {
		return 0
	}
	return q - d
}
