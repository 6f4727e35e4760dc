package index

import (
	"fmt"

	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/types"
)

// Iterator walks a BTree's leaves in key order.
type Iterator struct {
	tree   *BTree
	pageID types.PageID
	idx    int
}

// Begin returns an iterator positioned at the tree's smallest key.
func (t *BTree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, pageID: types.InvalidPageID}, nil
	}
	pid := t.rootPageID
	for {
		frame, err := t.bp.FetchPage(pid)
		if err != nil {
			return nil, fmt.Errorf("index: Begin: %w", err)
		}
		bpg := page.BTreePage(frame.Data)
		if bpg.IsLeaf() {
			t.bp.UnpinPage(pid, false)
			break
		}
		child := page.InternalPage{BTreePage: bpg}.ValueAt(0)
		t.bp.UnpinPage(pid, false)
		pid = child
	}
	return &Iterator{tree: t, pageID: pid, idx: 0}, nil
}

// BeginAt returns an iterator positioned at the first key >= key.
func (t *BTree) BeginAt(key []byte) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, pageID: types.InvalidPageID}, nil
	}
	pid, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	frame, err := t.bp.FetchPage(pid)
	if err != nil {
		return nil, fmt.Errorf("index: BeginAt: %w", err)
	}
	lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
	idx, _ := lp.Lookup(key, t.km.Compare)
	t.bp.UnpinPage(pid, false)

	it := &Iterator{tree: t, pageID: pid, idx: idx}
	it.skipToLeafWithEntries()
	return it, nil
}

// skipToLeafWithEntries advances across empty trailing leaves (possible
// transiently between operations) so idx always names a real entry or the
// iterator is at End().
func (it *Iterator) skipToLeafWithEntries() {
	for it.pageID.IsValid() {
		frame, err := it.tree.bp.FetchPage(it.pageID)
		if err != nil {
			it.pageID = types.InvalidPageID
			return
		}
		lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
		if uint32(it.idx) < lp.Size() {
			it.tree.bp.UnpinPage(it.pageID, false)
			return
		}
		next := lp.NextPageID()
		it.tree.bp.UnpinPage(it.pageID, false)
		it.pageID = next
		it.idx = 0
	}
}

// End reports whether the iterator has run past the last key.
func (it *Iterator) End() bool { return !it.pageID.IsValid() }

// Current returns the key and RowID at the iterator's position.
func (it *Iterator) Current() ([]byte, types.RowID, error) {
	if it.End() {
		return nil, types.InvalidRowID, fmt.Errorf("index: iterator: read past end")
	}
	frame, err := it.tree.bp.FetchPage(it.pageID)
	if err != nil {
		return nil, types.InvalidRowID, fmt.Errorf("index: iterator: %w", err)
	}
	defer it.tree.bp.UnpinPage(it.pageID, false)

	lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
	if uint32(it.idx) >= lp.Size() {
		return nil, types.InvalidRowID, fmt.Errorf("index: iterator: position out of range")
	}
	key := append([]byte(nil), lp.KeyAt(it.idx)...)
	return key, lp.ValueAt(it.idx), nil
}

// Next advances the iterator to the next key, crossing into the following
// leaf via its sibling link when the current one is exhausted.
func (it *Iterator) Next() error {
	if it.End() {
		return nil
	}
	it.idx++
	it.skipToLeafWithEntries()
	return nil
}
