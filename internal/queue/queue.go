// Package queue provides the value-based binary heaps used by the search
// paths. Items are stored by value for cache locality; a bounded max-heap
// doubles as a top-k selector.
package queue

// Item is an entry in the priority queue.
type Item struct {
	Label    int32   // Caller-chosen element identifier.
	Distance float32 // Priority. Lower is closer.
}

// PriorityQueue is a binary heap over Items. A max-heap keeps the worst
// candidate on top, which is what bounded top-k selection needs; a
// min-heap pops candidates nearest-first.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a min-heap with the given capacity.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: false, items: make([]Item, 0, capacity)}
}

// NewMax initializes a max-heap with the given capacity.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the root element without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the root element.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// PushBounded inserts an item into a max-heap capped at limit entries,
// evicting the current worst when full. Items worse than the current
// worst are dropped. Only meaningful on max-heaps.
func (pq *PriorityQueue) PushBounded(item Item, limit int) {
	if len(pq.items) < limit {
		pq.Push(item)
		return
	}
	if limit <= 0 || item.Distance >= pq.items[0].Distance {
		return
	}
	pq.items[0] = item
	pq.siftDown(0)
}

// Items exposes the backing slice in heap order. The slice is invalidated
// by the next mutation.
func (pq *PriorityQueue) Items() []Item { return pq.items }

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
