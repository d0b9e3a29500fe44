package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceLevelQueue_FIFO(t *testing.T) {
	var q PriceLevelQueue
	q.PushBack(OrderMeta{Handle: 1, ID: 10})
	q.PushBack(OrderMeta{Handle: 2, ID: 20})
	q.PushBack(OrderMeta{Handle: 3, ID: 30})

	assert.Equal(t, 3, q.Len())

	front, ok := q.Front()
	assert.True(t, ok)
	assert.Equal(t, OrderID(10), front.ID)

	m, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, OrderID(10), m.ID)
	assert.Equal(t, 2, q.Len())

	m, ok = q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, OrderID(20), m.ID)
}

func TestPriceLevelQueue_EmptyPop(t *testing.T) {
	var q PriceLevelQueue
	_, ok := q.PopFront()
	assert.False(t, ok)
	assert.True(t, q.Empty())
}

func TestPriceLevelQueue_FindAndRemoveAtPreservesOrder(t *testing.T) {
	var q PriceLevelQueue
	q.PushBack(OrderMeta{Handle: 1, ID: 10})
	q.PushBack(OrderMeta{Handle: 2, ID: 20})
	q.PushBack(OrderMeta{Handle: 3, ID: 30})

	idx, ok := q.find(20)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	removed := q.removeAt(idx)
	assert.Equal(t, OrderID(20), removed.ID)

	ids := make([]OrderID, 0, q.Len())
	for _, m := range q.Items() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []OrderID{10, 30}, ids)
}
