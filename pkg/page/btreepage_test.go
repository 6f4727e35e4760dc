package page

import (
	"bytes"
	"testing"

	"github.com/relicdb/minisql/pkg/types"
)

func intCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func key(n byte) []byte { return []byte{0, 0, 0, n} }

func TestLeafPageInsertLookupRemove(t *testing.T) {
	lp := InitLeafPage(make([]byte, 4096), 1, types.InvalidPageID, 4)

	lp.InsertAt(0, key(5), types.RowID{PageID: 1, Slot: 0})
	lp.InsertAt(1, key(10), types.RowID{PageID: 1, Slot: 1})
	lp.InsertAt(1, key(7), types.RowID{PageID: 1, Slot: 2}) // insert in the middle

	if lp.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", lp.Size())
	}

	idx, found := lp.Lookup(key(7), intCompare)
	if !found || idx != 1 {
		t.Fatalf("Lookup(7) = (%d, %v), want (1, true)", idx, found)
	}

	gotKeys := [][]byte{lp.KeyAt(0), lp.KeyAt(1), lp.KeyAt(2)}
	want := [][]byte{key(5), key(7), key(10)}
	for i := range want {
		if !bytes.Equal(gotKeys[i], want[i]) {
			t.Fatalf("KeyAt(%d) = %v, want %v", i, gotKeys[i], want[i])
		}
	}

	lp.RemoveAt(1)
	if lp.Size() != 2 {
		t.Fatalf("Size() after RemoveAt = %d, want 2", lp.Size())
	}
	if !bytes.Equal(lp.KeyAt(1), key(10)) {
		t.Fatalf("KeyAt(1) after remove = %v, want %v", lp.KeyAt(1), key(10))
	}
}

func TestLeafPageNextPageIDAndOverflow(t *testing.T) {
	lp := InitLeafPage(make([]byte, 4096), 1, types.InvalidPageID, 4)
	if lp.NextPageID() != types.InvalidPageID {
		t.Error("fresh leaf should have no next page")
	}
	lp.SetNextPageID(9)
	if lp.NextPageID() != 9 {
		t.Errorf("NextPageID() = %s, want 9", lp.NextPageID())
	}

	max := MaxLeafEntries(4)
	for i := 0; i < max; i++ {
		lp.InsertAt(i, key(byte(i)), types.RowID{PageID: 1, Slot: uint32(i)})
	}
	if lp.IsOverflow() {
		t.Error("leaf at exactly max size should not be overflowing yet")
	}
	lp.InsertAt(max, key(byte(max)), types.RowID{PageID: 1, Slot: uint32(max)})
	if !lp.IsOverflow() {
		t.Error("leaf one past max size should be overflowing")
	}
}

func TestInternalPageInsertLookup(t *testing.T) {
	ip := InitInternalPage(make([]byte, 4096), 1, types.InvalidPageID, 4)

	ip.InsertAt(0, make([]byte, 4), 100) // sentinel entry
	ip.InsertAt(1, key(10), 101)
	ip.InsertAt(2, key(20), 102)

	cases := []struct {
		k    byte
		want int
	}{
		{5, 0},
		{10, 1},
		{15, 1},
		{20, 2},
		{99, 2},
	}
	for _, c := range cases {
		if got := ip.Lookup(key(c.k), intCompare); got != c.want {
			t.Errorf("Lookup(%d) = %d, want %d", c.k, got, c.want)
		}
	}

	if idx := ip.ValueIndex(101); idx != 1 {
		t.Errorf("ValueIndex(101) = %d, want 1", idx)
	}
	if idx := ip.ValueIndex(999); idx != -1 {
		t.Errorf("ValueIndex(999) = %d, want -1", idx)
	}
}

func TestInternalPageRemoveAt(t *testing.T) {
	ip := InitInternalPage(make([]byte, 4096), 1, types.InvalidPageID, 4)
	ip.InsertAt(0, make([]byte, 4), 100)
	ip.InsertAt(1, key(10), 101)
	ip.InsertAt(2, key(20), 102)

	ip.RemoveAt(1)
	if ip.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", ip.Size())
	}
	if ip.ValueAt(1) != 102 {
		t.Errorf("ValueAt(1) after remove = %d, want 102", ip.ValueAt(1))
	}
}

func TestBTreePageIsRootAndUnderflow(t *testing.T) {
	lp := InitLeafPage(make([]byte, 4096), 1, 2, 4)
	if lp.IsRoot() {
		t.Error("a leaf with a valid parent page id should not report IsRoot")
	}
	if !lp.IsUnderflow() {
		t.Error("a fresh, empty leaf should be underflowing")
	}
}
