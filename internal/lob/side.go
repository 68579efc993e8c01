package lob

import "math/rand"

// sideBook is one side (Bid or Ask) of the book: a treap ordering its
// Levels by price plus a price->Level hash map that must stay exactly in
// sync with the tree's population. Both structures co-index the same
// Level population; the tree is the structural owner, the map a
// pointer-carrying mirror kept consistent on every insert/remove.
type sideBook struct {
	side   Side
	tree   *treap
	byPx   map[Price]*Level
}

func newSideBook(side Side, rng *rand.Rand) *sideBook {
	return &sideBook{
		side: side,
		tree: newTreap(rng),
		byPx: make(map[Price]*Level),
	}
}

func (s *sideBook) empty() bool {
	return len(s.byPx) == 0
}

func (s *sideBook) levelAt(price Price) (*Level, bool) {
	l, ok := s.byPx[price]
	return l, ok
}

// getOrCreate returns the Level at price, creating and indexing it in both
// the tree and the price map if it does not yet exist.
func (s *sideBook) getOrCreate(price Price) *Level {
	if l, ok := s.byPx[price]; ok {
		return l
	}
	l := newLevel(s.side, price)
	s.byPx[price] = l
	s.tree.insert(l)
	return l
}

// dropIfEmpty removes level from both indices once it carries no
// quantity.
func (s *sideBook) dropIfEmpty(level *Level) {
	if !level.empty() {
		return
	}
	delete(s.byPx, level.Price)
	s.tree.remove(level.Price)
}

// best returns the best (extreme) Level for this side: the max for Bid,
// the min for Ask. The engine always reads it this way rather than
// caching a best pointer — the §4.2 O(1) cache is documented as an
// optional future optimization, not required for correctness.
func (s *sideBook) best() *Level {
	var node *treapNode
	if s.side == Bid {
		node = s.tree.max()
	} else {
		node = s.tree.min()
	}
	if node == nil {
		return nil
	}
	return node.level
}

// ascendingNode/descendingNode give the call-auction walk its two inward
// iterators: asks walk ascending from the min, bids walk descending from
// the max.
func (s *sideBook) ascendingNode() *treapNode { return s.tree.min() }
func (s *sideBook) descendingNode() *treapNode { return s.tree.max() }

func (s *sideBook) topkPrices(k int) []Price {
	out := make([]Price, 0, k)
	for _, n := range s.orderedNodes(k) {
		out = append(out, n.level.Price)
	}
	return out
}

func (s *sideBook) topkSizes(k int) []Qty {
	out := make([]Qty, 0, k)
	for _, n := range s.orderedNodes(k) {
		out = append(out, n.level.Quantity)
	}
	return out
}

// orderedNodes returns up to k best-to-worst nodes: descending for Bid,
// ascending for Ask.
func (s *sideBook) orderedNodes(k int) []*treapNode {
	if s.side == Bid {
		return s.tree.nlargest(k)
	}
	return s.tree.nsmallest(k)
}

// kthNode answers the 1-indexed best-to-worst rank queries: k=1 is the
// best level on this side.
func (s *sideBook) kthNode(k int) *treapNode {
	if s.side == Bid {
		return s.tree.kthLargest(k)
	}
	return s.tree.kthSmallest(k)
}

// cumulativeQuantity sums the resting quantity of the best n levels on
// this side (best-to-worst), answering in O(log n) via the treap's
// subtree-aggregated quantity rather than walking level by level or
// mutating the tree. This supplements spec.md's rank/select contract per
// original_source's Node<Limit> aggregates (see SPEC_FULL.md §4).
func (s *sideBook) cumulativeQuantity(n int) Qty {
	if n <= 0 {
		return 0
	}
	// Bids rank best-to-worst in descending price order; asks ascending.
	sum, _ := sumBestN(s.tree.root, n, s.side == Bid)
	return sum
}

// sumBestN walks node's subtree exploring the "better" child first
// (right for descending/Bid, left for ascending/Ask), returning the
// summed quantity and count of the first n levels visited in that order.
func sumBestN(node *treapNode, n int, descending bool) (sum Qty, consumed int) {
	if node == nil || n <= 0 {
		return 0, 0
	}
	first, second := node.left, node.right
	if descending {
		first, second = node.right, node.left
	}
	if first != nil && first.size >= n {
		return sumBestN(first, n, descending)
	}
	if first != nil {
		sum += first.sumQty
		consumed += first.size
	}
	sum += node.level.Quantity
	consumed++
	if consumed >= n {
		return sum, consumed
	}
	s2, c2 := sumBestN(second, n-consumed, descending)
	return sum + s2, consumed + c2
}

