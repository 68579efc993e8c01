package lob

import "container/list"

// orderQueue is the doubly-linked FIFO of live orders resting at a single
// price level, in arrival order. It wraps container/list so that a handle
// to a specific order (its *list.Element) supports O(1) unlink regardless
// of its position, while push_back/pop_front/front stay O(1).
type orderQueue struct {
	l *list.List
}

func newOrderQueue() *orderQueue {
	return &orderQueue{l: list.New()}
}

func (q *orderQueue) empty() bool {
	return q.l.Len() == 0
}

func (q *orderQueue) len() int {
	return q.l.Len()
}

// pushBack appends order and returns a handle for O(1) later removal.
func (q *orderQueue) pushBack(o *Order) *list.Element {
	return q.l.PushBack(o)
}

// front returns the earliest-arrived live order, or nil if empty.
func (q *orderQueue) front() *Order {
	if q.l.Len() == 0 {
		return nil
	}
	return q.l.Front().Value.(*Order)
}

// popFront removes and returns the earliest-arrived order.
func (q *orderQueue) popFront() *Order {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	return e.Value.(*Order)
}

// remove unlinks the order behind handle in O(1).
func (q *orderQueue) remove(handle *list.Element) {
	q.l.Remove(handle)
}

// compactFront drops zero-quantity orders from the head so that front(),
// once non-nil, always has positive remaining quantity.
func (q *orderQueue) compactFront() {
	for {
		e := q.l.Front()
		if e == nil {
			return
		}
		o := e.Value.(*Order)
		if o.Remaining > 0 {
			return
		}
		q.l.Remove(e)
	}
}
