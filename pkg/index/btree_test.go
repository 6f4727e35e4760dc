package index

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/relicdb/minisql/pkg/buffer"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/disk"
	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/types"
)

func newTestPool(t *testing.T, size int) *buffer.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := disk.Open(path, nil)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return buffer.NewPool(size, d, nil)
}

func intKey(n int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	return buf
}

func TestBTreeInsertAndGetValue(t *testing.T) {
	bp := newTestPool(t, 32)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	for i := int32(0); i < 10; i++ {
		rid := types.RowID{PageID: types.PageID(i + 1), Slot: uint32(i)}
		if err := bt.Insert(intKey(i), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := int32(0); i < 10; i++ {
		rid, found, err := bt.GetValue(intKey(i))
		if err != nil || !found {
			t.Fatalf("GetValue(%d) = (%v, %v, %v), want found", i, rid, found, err)
		}
		if rid.Slot != uint32(i) {
			t.Errorf("GetValue(%d).Slot = %d, want %d", i, rid.Slot, i)
		}
	}

	if _, found, err := bt.GetValue(intKey(999)); err != nil || found {
		t.Fatalf("GetValue(999) on a missing key = (found=%v, err=%v), want (false, nil)", found, err)
	}
}

func TestBTreeInsertDuplicateKeyFails(t *testing.T) {
	bp := newTestPool(t, 32)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	rid := types.RowID{PageID: 1, Slot: 0}
	if err := bt.Insert(intKey(1), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := bt.Insert(intKey(1), types.RowID{PageID: 2, Slot: 0})
	if !errors.Is(err, dberr.AlreadyExist) {
		t.Fatalf("Insert of a duplicate key = %v, want dberr.AlreadyExist", err)
	}
}

// TestBTreeSplitAndRangeScan: enough sequential inserts to force leaf
// splits at the page's natural capacity, followed by a full forward range
// scan that must return every key in ascending order. (Deep trees with
// internal-node splits are covered by TestBTreeDeepTreeInsertScanAndDelete,
// which caps the fanout.)
func TestBTreeSplitAndRangeScan(t *testing.T) {
	bp := newTestPool(t, 64)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	const n = 400
	for i := int32(0); i < n; i++ {
		rid := types.RowID{PageID: types.PageID(i + 1), Slot: 0}
		if err := bt.Insert(intKey(i), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it, err := bt.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var prev int32 = -1
	count := 0
	for !it.End() {
		key, _, err := it.Current()
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		got := int32(binary.LittleEndian.Uint32(key))
		if got <= prev {
			t.Fatalf("range scan out of order: got %d after %d", got, prev)
		}
		prev = got
		count++
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if count != n {
		t.Errorf("range scan visited %d keys, want %d", count, n)
	}
}

// TestBTreeRemoveToEmpty: deleting every key brings the tree back to
// IsEmpty(), freeing the root leaf.
func TestBTreeRemoveToEmpty(t *testing.T) {
	bp := newTestPool(t, 32)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	for i := int32(0); i < 5; i++ {
		if err := bt.Insert(intKey(i), types.RowID{PageID: types.PageID(i + 1)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int32(0); i < 5; i++ {
		if err := bt.Remove(intKey(i)); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
	}
	if !bt.IsEmpty() {
		t.Error("tree should be empty after removing every key")
	}
	if err := bt.Remove(intKey(0)); !errors.Is(err, dberr.KeyNotFound) {
		t.Errorf("Remove on an empty tree = %v, want dberr.KeyNotFound", err)
	}
}

// TestBTreeDeleteCausesCoalesce builds a multi-leaf tree and then deletes
// enough of one leaf's keys to force coalesceOrRedistribute to merge or
// rebalance, verifying the surviving keys are still all reachable.
func TestBTreeDeleteCausesCoalesce(t *testing.T) {
	bp := newTestPool(t, 64)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	const n = 400
	for i := int32(0); i < n; i++ {
		if err := bt.Insert(intKey(i), types.RowID{PageID: types.PageID(i + 1)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	// Delete the first 300 keys, well past any single leaf's underflow
	// threshold, forcing repeated coalesce/redistribute.
	for i := int32(0); i < 300; i++ {
		if err := bt.Remove(intKey(i)); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
	}

	for i := int32(0); i < 300; i++ {
		if _, found, _ := bt.GetValue(intKey(i)); found {
			t.Fatalf("GetValue(%d) should not be found after Remove", i)
		}
	}
	for i := int32(300); i < n; i++ {
		if _, found, err := bt.GetValue(intKey(i)); err != nil || !found {
			t.Fatalf("GetValue(%d) = (found=%v, err=%v), want (true, nil)", i, found, err)
		}
	}
}

func TestBTreeDropAllFreesPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := disk.Open(path, nil)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	defer d.Close()
	bp := buffer.NewPool(64, d, nil)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	const n = 400
	for i := int32(0); i < n; i++ {
		if err := bt.Insert(intKey(i), types.RowID{PageID: types.PageID(i + 1)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	root := bt.RootPageID()

	if err := bt.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if !bt.IsEmpty() {
		t.Error("tree should be empty after DropAll")
	}
	free, err := d.IsPageFree(root)
	if err != nil {
		t.Fatalf("IsPageFree: %v", err)
	}
	if !free {
		t.Error("the old root page should be deallocated after DropAll")
	}
}

// validateSubtree recursively checks occupancy bounds, parent back-links,
// in-leaf key ordering, and the separator invariant (each internal key
// equals the smallest key in its child's subtree), returning the subtree's
// key count and key range.
func validateSubtree(t *testing.T, bt *BTree, pid, wantParent types.PageID) (count int, min, max []byte) {
	t.Helper()
	frame, err := bt.bp.FetchPage(pid)
	if err != nil {
		t.Fatalf("validate: FetchPage(%s): %v", pid, err)
	}
	bpg := page.BTreePage(frame.Data)
	if bpg.ParentPageID() != wantParent {
		t.Fatalf("validate: page %s has parent %s, want %s", pid, bpg.ParentPageID(), wantParent)
	}
	size := int(bpg.Size())
	if wantParent.IsValid() && uint32(size) < bpg.MinSize() {
		t.Fatalf("validate: page %s underflows: size %d < min %d", pid, size, bpg.MinSize())
	}
	if uint32(size) > bpg.MaxSize() {
		t.Fatalf("validate: page %s overflows: size %d > max %d", pid, size, bpg.MaxSize())
	}

	if bpg.IsLeaf() {
		lp := page.LeafPage{BTreePage: bpg}
		keys := make([][]byte, size)
		for i := range keys {
			keys[i] = append([]byte(nil), lp.KeyAt(i)...)
		}
		bt.bp.UnpinPage(pid, false)
		if size == 0 {
			return 0, nil, nil
		}
		for i := 1; i < size; i++ {
			if bt.km.Compare(keys[i-1], keys[i]) >= 0 {
				t.Fatalf("validate: leaf %s keys out of order at slot %d", pid, i)
			}
		}
		return size, keys[0], keys[size-1]
	}

	ip := page.InternalPage{BTreePage: bpg}
	children := make([]types.PageID, size)
	seps := make([][]byte, size)
	for i := 0; i < size; i++ {
		children[i] = ip.ValueAt(i)
		seps[i] = append([]byte(nil), ip.KeyAt(i)...)
	}
	bt.bp.UnpinPage(pid, false)

	total := 0
	var lo, hi []byte
	for i, child := range children {
		n, cmin, cmax := validateSubtree(t, bt, child, pid)
		total += n
		if i == 0 {
			lo = cmin
		} else {
			if bt.km.Compare(seps[i], cmin) != 0 {
				t.Fatalf("validate: internal %s separator %d is not its child subtree's minimum", pid, i)
			}
			if bt.km.Compare(hi, cmin) >= 0 {
				t.Fatalf("validate: internal %s child key ranges overlap at entry %d", pid, i)
			}
		}
		hi = cmax
	}
	return total, lo, hi
}

// validateTree checks the whole tree's structural invariants and returns
// its key count.
func validateTree(t *testing.T, bt *BTree) int {
	t.Helper()
	if bt.IsEmpty() {
		return 0
	}
	count, _, _ := validateSubtree(t, bt, bt.rootPageID, types.InvalidPageID)
	return count
}

// treeDepth counts levels along the leftmost path.
func treeDepth(t *testing.T, bt *BTree) int {
	t.Helper()
	depth := 0
	pid := bt.rootPageID
	for pid.IsValid() {
		frame, err := bt.bp.FetchPage(pid)
		if err != nil {
			t.Fatalf("treeDepth: FetchPage(%s): %v", pid, err)
		}
		bpg := page.BTreePage(frame.Data)
		depth++
		next := types.InvalidPageID
		if !bpg.IsLeaf() {
			next = page.InternalPage{BTreePage: bpg}.ValueAt(0)
		}
		bt.bp.UnpinPage(pid, false)
		pid = next
	}
	return depth
}

// TestBTreeDeepTreeInsertScanAndDelete caps leaf and internal fanout at 32
// so a thousand keys build a tree several levels deep, driving internal
// splits on the way up and internal merges/redistributions plus root
// collapses on the way back down. Structural invariants are re-checked
// periodically throughout the teardown.
func TestBTreeDeepTreeInsertScanAndDelete(t *testing.T) {
	bp := newTestPool(t, 128)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)
	bt.SetMaxSizes(32, 32)

	const n = 1000
	for i := int32(1); i <= n; i++ {
		if err := bt.Insert(intKey(i), types.RowID{PageID: types.PageID(i), Slot: uint32(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if got := validateTree(t, bt); got != n {
		t.Fatalf("validated key count = %d, want %d", got, n)
	}
	if d := treeDepth(t, bt); d < 3 {
		t.Fatalf("treeDepth = %d, want >= 3 (internal splits must have happened)", d)
	}

	for i := int32(1); i <= n; i++ {
		rid, found, err := bt.GetValue(intKey(i))
		if err != nil || !found {
			t.Fatalf("GetValue(%d) = (found=%v, err=%v), want found", i, found, err)
		}
		if rid.PageID != types.PageID(i) {
			t.Fatalf("GetValue(%d).PageID = %s, want %d", i, rid.PageID, i)
		}
	}

	it, err := bt.BeginAt(intKey(500))
	if err != nil {
		t.Fatalf("BeginAt: %v", err)
	}
	key, _, err := it.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(key)); got != 500 {
		t.Fatalf("BeginAt(500) landed on %d, want 500", got)
	}

	it, err = bt.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var prev int32
	scanned := 0
	for !it.End() {
		key, _, err := it.Current()
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		got := int32(binary.LittleEndian.Uint32(key))
		if got <= prev {
			t.Fatalf("range scan out of order: got %d after %d", got, prev)
		}
		prev = got
		scanned++
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if scanned != n {
		t.Fatalf("range scan visited %d keys, want %d", scanned, n)
	}

	// Tear down: every other key forward, then the remainder in reverse.
	removed := 0
	for i := int32(1); i <= n; i += 2 {
		if err := bt.Remove(intKey(i)); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
		removed++
		if removed%50 == 0 {
			validateTree(t, bt)
		}
	}
	if got := validateTree(t, bt); got != n-removed {
		t.Fatalf("validated key count after odd removals = %d, want %d", got, n-removed)
	}
	for i := int32(n); i >= 2; i -= 2 {
		if err := bt.Remove(intKey(i)); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
		removed++
		if removed%50 == 0 {
			validateTree(t, bt)
		}
	}
	if !bt.IsEmpty() {
		t.Error("tree should be empty after removing every key")
	}
}

func TestBTreeIteratorBeginAt(t *testing.T) {
	bp := newTestPool(t, 64)
	km, _ := intKeyManager()
	bt := CreateBTree(bp, 1, km, nil)

	for _, i := range []int32{0, 2, 4, 6, 8, 10} {
		if err := bt.Insert(intKey(i), types.RowID{PageID: types.PageID(i + 1)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it, err := bt.BeginAt(intKey(5))
	if err != nil {
		t.Fatalf("BeginAt: %v", err)
	}
	key, _, err := it.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(key)); got != 6 {
		t.Fatalf("BeginAt(5) landed on %d, want 6 (first key >= 5)", got)
	}
}
