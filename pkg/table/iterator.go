package table

import (
	"fmt"

	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/types"
)

// Iterator walks a Heap's tuples in physical (page, slot) order, skipping
// free and tombstoned slots.
type Iterator struct {
	heap   *Heap
	pageID types.PageID
	slot   uint32
}

// Begin returns an iterator positioned at the heap's first live tuple.
func (h *Heap) Begin() (*Iterator, error) {
	it := &Iterator{heap: h, pageID: h.firstPageID, slot: 0}
	if err := it.advanceToValid(); err != nil {
		return nil, err
	}
	return it, nil
}

// End reports whether the iterator has run past the last tuple.
func (it *Iterator) End() bool { return !it.pageID.IsValid() }

// advanceToValid moves (pageID, slot) forward, including across page
// boundaries, until it names a live tuple or runs off the end of the chain.
func (it *Iterator) advanceToValid() error {
	for it.pageID.IsValid() {
		frame, err := it.heap.bp.FetchPage(it.pageID)
		if err != nil {
			return fmt.Errorf("table: iterator: %w", err)
		}
		frame.RLatch()
		tp := page.TablePage(frame.Data)
		count := tp.TupleCount()
		for it.slot < count {
			if !tp.IsFree(it.slot) && !tp.IsDeleted(it.slot) {
				frame.RUnlatch()
				it.heap.bp.UnpinPage(it.pageID, false)
				return nil
			}
			it.slot++
		}
		next := tp.NextPageID()
		frame.RUnlatch()
		it.heap.bp.UnpinPage(it.pageID, false)
		it.pageID = next
		it.slot = 0
	}
	return nil
}

// Current returns the RowID and tuple bytes at the iterator's position.
func (it *Iterator) Current() (types.RowID, []byte, error) {
	if it.End() {
		return types.InvalidRowID, nil, fmt.Errorf("table: iterator: read past end")
	}
	frame, err := it.heap.bp.FetchPage(it.pageID)
	if err != nil {
		return types.InvalidRowID, nil, fmt.Errorf("table: iterator: %w", err)
	}
	defer it.heap.bp.UnpinPage(it.pageID, false)

	frame.RLatch()
	defer frame.RUnlatch()
	data, ok := page.TablePage(frame.Data).GetTuple(it.slot)
	if !ok {
		return types.InvalidRowID, nil, fmt.Errorf("table: iterator: landed on a non-live slot")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return types.RowID{PageID: it.pageID, Slot: it.slot}, out, nil
}

// Next advances the iterator to the next live tuple.
func (it *Iterator) Next() error {
	it.slot++
	return it.advanceToValid()
}
