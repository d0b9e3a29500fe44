package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideIndex_BidsIterateDescending(t *testing.T) {
	pool := NewOrderPool(4)
	bids := newSideIndex(true)

	for _, price := range []Price{99, 101, 100} {
		h := pool.Insert(LimitOrder(1, Buy, price, 10))
		bids.AddOrder(price, h, 1, 10)
	}

	var prices []Price
	for _, level := range bids.Items() {
		meta, _ := level.Front()
		prices = append(prices, pool.Get(meta.Handle).Price)
	}
	assert.Equal(t, []Price{101, 100, 99}, prices, "bids must iterate best (highest) first")
}

func TestSideIndex_AsksIterateAscending(t *testing.T) {
	pool := NewOrderPool(4)
	asks := newSideIndex(false)

	for _, price := range []Price{101, 99, 100} {
		h := pool.Insert(LimitOrder(2, Sell, price, 10))
		asks.AddOrder(price, h, 2, 10)
	}

	var prices []Price
	for _, level := range asks.Items() {
		meta, _ := level.Front()
		prices = append(prices, pool.Get(meta.Handle).Price)
	}
	assert.Equal(t, []Price{99, 100, 101}, prices, "asks must iterate best (lowest) first")
}

func TestSideIndex_RemoveLevelWhenDrained(t *testing.T) {
	pool := NewOrderPool(2)
	asks := newSideIndex(false)

	h := pool.Insert(LimitOrder(1, Sell, 100, 10))
	asks.AddOrder(100, h, 1, 10)

	level, ok := asks.GetLevel(100)
	require.True(t, ok)
	level.SetLevelQuantity(0)
	asks.SetSideQuantity(0)

	_, removed := asks.RemoveLevel(100)
	assert.True(t, removed)
	_, found := asks.GetLevel(100)
	assert.False(t, found)
}

func TestSideIndex_WalkFillableStopsAtNeed(t *testing.T) {
	pool := NewOrderPool(4)
	asks := newSideIndex(false)

	for i, price := range []Price{100, 101, 102} {
		h := pool.Insert(LimitOrder(OrderID(i), Sell, price, 10))
		asks.AddOrder(price, h, OrderID(i), 10)
	}

	// Buy limit at 101 can reach levels 100 and 101 (20 total), which
	// already satisfies a need of 15 before touching level 102.
	acc := asks.WalkFillable(marketableAt(Buy, Limit, 101), 15)
	assert.EqualValues(t, 20, acc)

	// A Market order is marketable against every level; need exceeds
	// total available liquidity (30), so the full sum is returned.
	acc = asks.WalkFillable(marketableAt(Buy, Market, 0), 1000)
	assert.EqualValues(t, 30, acc)
}

func TestSideIndex_Validate(t *testing.T) {
	pool := NewOrderPool(2)
	bids := newSideIndex(true)

	h := pool.Insert(LimitOrder(1, Buy, 100, 10))
	bids.AddOrder(100, h, 1, 10)
	assert.NoError(t, bids.validate(pool))

	// Corrupt the cache directly to prove validate catches drift.
	level, _ := bids.GetLevel(100)
	level.SetLevelQuantity(999)
	assert.Error(t, bids.validate(pool))
}
