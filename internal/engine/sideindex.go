package engine

import (
	"fmt"

	"github.com/tidwall/btree"
)

// priceLevelEntry is the element stored in the backing btree: a price
// and the queue resident at it. The btree's less function, not any
// field on this struct, decides iteration order — that's how bids and
// asks share the same container type while iterating in opposite
// directions (spec §9 "Reversed-order adapter").
type priceLevelEntry struct {
	price Price
	queue *PriceLevelQueue
}

// SideIndex is a sorted price→PriceLevelQueue map plus a cached
// aggregate quantity for the whole side (spec §4.3). Bids and asks are
// both backed by the same generic btree, parameterized by a less
// function that puts the best price first: descending for bids,
// ascending for asks. Two further instances (constructed the same way)
// hold stop orders keyed by trigger price.
type SideIndex struct {
	levels       *btree.BTreeG[*priceLevelEntry]
	sideQuantity Quantity
}

// newSideIndex builds a SideIndex. descending=true yields a bid-style
// index (best = highest price first); descending=false yields an
// ask-style index (best = lowest price first).
func newSideIndex(descending bool) *SideIndex {
	less := func(a, b *priceLevelEntry) bool { return a.price < b.price }
	if descending {
		less = func(a, b *priceLevelEntry) bool { return a.price > b.price }
	}
	return &SideIndex{levels: btree.NewBTreeG(less)}
}

// AddOrder gets-or-creates the level at price, pushes a new OrderMeta
// onto its tail, and adds qty to both the level and side caches.
func (s *SideIndex) AddOrder(price Price, handle Handle, id OrderID, qty Quantity) {
	entry, ok := s.levels.Get(&priceLevelEntry{price: price})
	if !ok {
		entry = &priceLevelEntry{price: price, queue: &PriceLevelQueue{}}
		s.levels.Set(entry)
	}
	entry.queue.PushBack(OrderMeta{Handle: handle, ID: id})
	entry.queue.levelQuantity += qty
	s.sideQuantity += qty
}

// GetLevel looks up the queue resident at price.
func (s *SideIndex) GetLevel(price Price) (*PriceLevelQueue, bool) {
	entry, ok := s.levels.Get(&priceLevelEntry{price: price})
	if !ok {
		return nil, false
	}
	return entry.queue, true
}

// RemoveLevel deletes the level at price. Callers must have already
// drained its level quantity to 0.
func (s *SideIndex) RemoveLevel(price Price) (*PriceLevelQueue, bool) {
	entry, ok := s.levels.Delete(&priceLevelEntry{price: price})
	if !ok {
		return nil, false
	}
	return entry.queue, true
}

// PeekBest returns the best resting price on this side and its queue.
func (s *SideIndex) PeekBest() (Price, *PriceLevelQueue, bool) {
	entry, ok := s.levels.Min()
	if !ok {
		return 0, nil, false
	}
	return entry.price, entry.queue, true
}

// PeekBestPrice returns just the best resting price.
func (s *SideIndex) PeekBestPrice() (Price, bool) {
	entry, ok := s.levels.Min()
	if !ok {
		return 0, false
	}
	return entry.price, true
}

// Len reports the number of distinct price levels on this side.
func (s *SideIndex) Len() int {
	return s.levels.Len()
}

// SideQuantity returns the cached aggregate quantity for the side.
func (s *SideIndex) SideQuantity() Quantity {
	return s.sideQuantity
}

// SetSideQuantity overwrites the cached aggregate. The MatchingEngine,
// not SideIndex, owns transactional correctness of this value — a
// single crossing updates it once per level, not once per fill
// (spec §4.3 "Cache rule").
func (s *SideIndex) SetSideQuantity(q Quantity) {
	s.sideQuantity = q
}

// WalkFillable sums level_quantity across levels in book order while
// marketable(price) holds, stopping once the accumulated sum reaches
// need. It is used only for FOK feasibility checks (spec §4.3).
func (s *SideIndex) WalkFillable(marketable func(levelPrice Price) bool, need Quantity) Quantity {
	var acc Quantity
	s.levels.Scan(func(entry *priceLevelEntry) bool {
		if !marketable(entry.price) {
			return false
		}
		acc += entry.queue.LevelQuantity()
		return acc < need
	})
	return acc
}

// Items returns every resident level in book order, for diagnostics
// and tests.
func (s *SideIndex) Items() []*PriceLevelQueue {
	items := make([]*PriceLevelQueue, 0, s.levels.Len())
	s.levels.Scan(func(entry *priceLevelEntry) bool {
		items = append(items, entry.queue)
		return true
	})
	return items
}

// validate recomputes side_quantity and each level_quantity from queue
// contents and pool quantities, returning the first inconsistency found
// (spec §4.3 "validate").
func (s *SideIndex) validate(pool *OrderPool) error {
	var total Quantity
	var err error
	s.levels.Scan(func(entry *priceLevelEntry) bool {
		if entry.queue.Empty() {
			err = fmt.Errorf("engine: empty level resident at price %d", entry.price)
			return false
		}
		var levelTotal Quantity
		for _, m := range entry.queue.items {
			if !pool.Contains(m.Handle) {
				err = fmt.Errorf("%w: handle %d at price %d", ErrPoolHandleMissing, m.Handle, entry.price)
				return false
			}
			levelTotal += pool.Get(m.Handle).Quantity
		}
		if levelTotal != entry.queue.LevelQuantity() {
			err = fmt.Errorf("engine: level quantity mismatch at price %d: cached=%d actual=%d",
				entry.price, entry.queue.LevelQuantity(), levelTotal)
			return false
		}
		total += levelTotal
		return true
	})
	if err != nil {
		return err
	}
	if total != s.sideQuantity {
		return fmt.Errorf("engine: side quantity mismatch: cached=%d actual=%d", s.sideQuantity, total)
	}
	return nil
}
