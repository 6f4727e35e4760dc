package table

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/relicdb/minisql/pkg/buffer"
	"github.com/relicdb/minisql/pkg/disk"
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

func tuple(s string) []byte { return []byte(s) }

func TestHeapInsertAndGet(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}

	rid1, err := h.InsertTuple(tuple("alice"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	rid2, err := h.InsertTuple(tuple("bob"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if rid1 == rid2 {
		t.Fatal("distinct inserts produced the same RowID")
	}

	got1, err := h.GetTuple(rid1)
	if err != nil || !bytes.Equal(got1, tuple("alice")) {
		t.Fatalf("GetTuple(rid1) = (%q, %v), want (\"alice\", nil)", got1, err)
	}
	got2, err := h.GetTuple(rid2)
	if err != nil || !bytes.Equal(got2, tuple("bob")) {
		t.Fatalf("GetTuple(rid2) = (%q, %v), want (\"bob\", nil)", got2, err)
	}
}

func TestHeapExtendsChainWhenPageFull(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	first := h.FirstPageID()

	big := bytes.Repeat([]byte("x"), 500)
	lastPage := first
	for i := 0; i < 20; i++ {
		rid, err := h.InsertTuple(big)
		if err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
		lastPage = rid.PageID
	}
	if lastPage == first {
		t.Fatal("heap never extended past its first page despite oversized tuples")
	}
	if h.lastPageID != lastPage {
		t.Errorf("Heap.lastPageID = %s, want %s (the page the final insert landed on)", h.lastPageID, lastPage)
	}
}

func TestHeapDeleteLifecycleRollback(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	rid, err := h.InsertTuple(tuple("row"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	if err := h.MarkDelete(rid); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if _, err := h.GetTuple(rid); err == nil {
		t.Fatal("GetTuple on a tombstoned tuple should fail")
	}
	if err := h.RollbackDelete(rid); err != nil {
		t.Fatalf("RollbackDelete: %v", err)
	}
	got, err := h.GetTuple(rid)
	if err != nil || !bytes.Equal(got, tuple("row")) {
		t.Fatalf("GetTuple after RollbackDelete = (%q, %v), want (\"row\", nil)", got, err)
	}
}

func TestHeapDeleteLifecycleApply(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	rid, err := h.InsertTuple(tuple("row"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	if err := h.MarkDelete(rid); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := h.ApplyDelete(rid); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}
	if _, err := h.GetTuple(rid); err == nil {
		t.Fatal("GetTuple after ApplyDelete should fail: slot is freed")
	}
}

func TestHeapUpdateTupleInPlace(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	// A filler tuple keeps the page too full for the grown tuple below, so
	// the grow-update has to relocate instead of reusing the freed bytes.
	if _, err := h.InsertTuple(bytes.Repeat([]byte("f"), 500)); err != nil {
		t.Fatalf("InsertTuple (filler): %v", err)
	}
	rid, err := h.InsertTuple(tuple("short"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	sameRid, err := h.UpdateTuple(rid, tuple("ssss"))
	if err != nil || sameRid != rid {
		t.Fatalf("UpdateTuple (shrink) = (%s, %v), want (%s, nil)", sameRid, err, rid)
	}
	got, _ := h.GetTuple(rid)
	if !bytes.Equal(got, tuple("ssss")) {
		t.Fatalf("GetTuple after UpdateTuple = %q, want \"ssss\"", got)
	}

	huge := bytes.Repeat([]byte("z"), 4000)
	newRid, err := h.UpdateTuple(rid, huge)
	if err != nil {
		t.Fatalf("UpdateTuple (grow): %v", err)
	}
	if newRid == rid {
		t.Fatal("UpdateTuple with a tuple too large for the slot should reinsert under a new RowID, not resize in place")
	}
	if _, err := h.GetTuple(rid); err == nil {
		t.Fatal("GetTuple on the old RowID after a grow-update should fail: slot was deleted")
	}
	newGot, err := h.GetTuple(newRid)
	if err != nil {
		t.Fatalf("GetTuple(newRid): %v", err)
	}
	if !bytes.Equal(newGot, huge) {
		t.Fatal("GetTuple(newRid) after grow-update didn't return the new tuple")
	}
}

func TestHeapReusesFreedSpaceInEarlierPages(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}

	big := bytes.Repeat([]byte("u"), 500)
	const n = 20
	rids := make([]types.RowID, n)
	for i := 0; i < n; i++ {
		rid, err := h.InsertTuple(big)
		if err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
		rids[i] = rid
	}
	if rids[0].PageID == rids[n-1].PageID {
		t.Fatal("test needs the heap to span multiple pages")
	}

	// Free a slot on the first page, then insert a same-sized tuple: the
	// chain walk must place it in the freed slot instead of growing the
	// tail.
	if err := h.MarkDelete(rids[0]); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := h.ApplyDelete(rids[0]); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}
	rid, err := h.InsertTuple(big)
	if err != nil {
		t.Fatalf("InsertTuple after delete: %v", err)
	}
	if rid != rids[0] {
		t.Errorf("insert after delete landed at %s, want the freed slot %s", rid, rids[0])
	}
}

func TestHeapOpenHeapFindsTail(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	big := bytes.Repeat([]byte("y"), 500)
	var lastRid types.PageID
	for i := 0; i < 20; i++ {
		rid, err := h.InsertTuple(big)
		if err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
		lastRid = rid.PageID
	}

	reopened, err := OpenHeap(bp, h.FirstPageID())
	if err != nil {
		t.Fatalf("OpenHeap: %v", err)
	}
	if reopened.lastPageID != lastRid {
		t.Errorf("OpenHeap found tail %s, want %s", reopened.lastPageID, lastRid)
	}

	rid, err := reopened.InsertTuple(tuple("after reopen"))
	if err != nil {
		t.Fatalf("InsertTuple after reopen: %v", err)
	}
	got, err := reopened.GetTuple(rid)
	if err != nil || !bytes.Equal(got, tuple("after reopen")) {
		t.Fatalf("GetTuple after reopen insert = (%q, %v)", got, err)
	}
}

func TestIteratorWalksAllLiveTuplesAcrossPages(t *testing.T) {
	bp := newTestPool(t, 8)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}

	big := bytes.Repeat([]byte("w"), 500)
	const n = 30
	rids := make([]types.RowID, n)
	for i := 0; i < n; i++ {
		rid, err := h.InsertTuple(big)
		if err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
		rids[i] = rid
	}
	// Delete a couple of tuples; the iterator must skip them.
	if err := h.MarkDelete(rids[3]); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := h.ApplyDelete(rids[3]); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}

	it, err := h.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	count := 0
	for !it.End() {
		rid, data, err := it.Current()
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if rid == rids[3] {
			t.Fatal("iterator visited a deleted tuple's RowID")
		}
		if !bytes.Equal(data, big) {
			t.Fatal("iterator returned unexpected tuple bytes")
		}
		count++
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if count != n-1 {
		t.Errorf("iterator visited %d tuples, want %d", count, n-1)
	}
}

func TestHeapDeleteTableFreesAllPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := disk.Open(path, nil)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	defer d.Close()
	bp := buffer.NewPool(8, d, nil)
	h, err := CreateHeap(bp)
	if err != nil {
		t.Fatalf("CreateHeap: %v", err)
	}
	big := bytes.Repeat([]byte("v"), 500)
	for i := 0; i < 20; i++ {
		if _, err := h.InsertTuple(big); err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
	}

	if err := h.DeleteTable(); err != nil {
		t.Fatalf("DeleteTable: %v", err)
	}

	free, err := d.IsPageFree(h.FirstPageID())
	if err != nil {
		t.Fatalf("IsPageFree: %v", err)
	}
	if !free {
		t.Error("the first page of a dropped heap should be deallocated")
	}
}
