package lob

import "container/list"

// Level is the set of resting orders at a single price on one side. It
// exclusively owns the FIFO of live orders; an Order's back-reference to
// its Level is a non-owning relation.
type Level struct {
	Side     Side
	Price    Price
	Quantity Qty
	queue    *orderQueue
}

func newLevel(side Side, price Price) *Level {
	return &Level{Side: side, Price: price, queue: newOrderQueue()}
}

func (l *Level) empty() bool {
	return l.queue.empty()
}

// insert appends order to the FIFO and stamps its back-reference. The
// queue's handle for it is stashed on the order for O(1) unlink later.
func (l *Level) insert(o *Order) {
	o.level = l
	o.elem = l.queue.pushBack(o)
	l.Quantity += o.Remaining
}

// front returns the earliest-arrived live order, or nil.
func (l *Level) front() *Order {
	return l.queue.front()
}

// popFront removes and returns the earliest-arrived order.
func (l *Level) popFront() *Order {
	o := l.queue.popFront()
	if o != nil {
		l.Quantity -= o.Remaining
	}
	return o
}

// shrink decrements an order's remaining quantity by qty (a cancel or
// fill), keeps Quantity in sync, and compacts exhausted orders from the
// FIFO head.
func (l *Level) shrink(o *Order, qty Qty) {
	o.Remaining -= qty
	l.Quantity -= qty
	if o.Remaining == 0 {
		l.queue.remove(o.elem)
	} else {
		l.queue.compactFront()
	}
}

// orderHandle is stashed on Order as its unexported list-element handle;
// defined here to keep the container/list dependency local to this file
// and queue.go.
type orderHandle = *list.Element
