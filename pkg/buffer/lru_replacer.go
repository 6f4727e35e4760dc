package buffer

import "container/list"

// LRUReplacer maintains the set of frame ids eligible for eviction, in
// least-recently-unpinned order. Victim, Pin and Unpin are all O(1): a
// doubly linked list gives the ordering and a map gives membership lookup.
type LRUReplacer struct {
	order *list.List
	index map[int32]*list.Element
}

// NewLRUReplacer creates an empty replacer.
func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		order: list.New(),
		index: make(map[int32]*list.Element),
	}
}

// Victim removes and returns the least-recently-unpinned frame id. Returns
// false if no frame is currently evictable.
func (r *LRUReplacer) Victim() (int32, bool) {
	front := r.order.Front()
	if front == nil {
		return 0, false
	}
	id := front.Value.(int32)
	r.order.Remove(front)
	delete(r.index, id)
	return id, true
}

// Pin removes id from the evictable set. No-op if id is absent.
func (r *LRUReplacer) Pin(id int32) {
	if el, ok := r.index[id]; ok {
		r.order.Remove(el)
		delete(r.index, id)
	}
}

// Unpin marks id as the most-recently-unpinned frame, making it evictable.
// No-op if id is already present.
func (r *LRUReplacer) Unpin(id int32) {
	if _, ok := r.index[id]; ok {
		return
	}
	el := r.order.PushBack(id)
	r.index[id] = el
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUReplacer) Size() int {
	return r.order.Len()
}
