package disk

import (
	"path/filepath"
	"testing"

	"github.com/relicdb/minisql/pkg/types"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// TestAllocationDeterminism: in a fresh file, AllocatePage returns 0, 1,
// 2, ...; after DeallocatePage(1), the next AllocatePage returns 1 again;
// after closing and reopening, IsPageFree(1) returns false.
func TestAllocationDeterminism(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for want := types.PageID(0); want < 3; want++ {
		got, err := m.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		if got != want {
			t.Fatalf("AllocatePage() = %s, want %s", got, want)
		}
	}

	if err := m.DeallocatePage(1); err != nil {
		t.Fatalf("DeallocatePage(1): %v", err)
	}

	got, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if got != 1 {
		t.Fatalf("AllocatePage() after dealloc = %s, want 1", got)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	free, err := reopened.IsPageFree(1)
	if err != nil {
		t.Fatalf("IsPageFree(1): %v", err)
	}
	if free {
		t.Error("IsPageFree(1) = true after reopen, want false")
	}
}

func TestDeallocateNeverAllocatedFails(t *testing.T) {
	m := openTestManager(t)
	if err := m.DeallocatePage(5); err == nil {
		t.Error("DeallocatePage of a never-allocated page should fail")
	}
	if m.AllocatedPageCount() != 0 {
		t.Errorf("AllocatedPageCount() = %d after failed dealloc, want 0", m.AllocatedPageCount())
	}
}

func TestDeallocateAlreadyFreeFails(t *testing.T) {
	m := openTestManager(t)
	pid, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := m.DeallocatePage(pid); err != nil {
		t.Fatalf("first DeallocatePage: %v", err)
	}
	if err := m.DeallocatePage(pid); err == nil {
		t.Error("second DeallocatePage of the same page should fail")
	}
}

// TestReadPastEOFIsZeroFilled checks that reads past end-of-file return
// zero-filled pages without error.
func TestReadPastEOFIsZeroFilled(t *testing.T) {
	m := openTestManager(t)
	pid, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf := make([]byte, PageSize)
	if err := m.ReadPage(pid, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (never-written page)", i, b)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := openTestManager(t)
	pid, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	want := make([]byte, PageSize)
	for i := range want {
		want[i] = byte(i % 251)
	}
	if err := m.WritePage(pid, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, PageSize)
	if err := m.ReadPage(pid, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// TestExtentRollover forces allocation past one extent's BitmapSize data
// pages, exercising the "create a new extent" path.
func TestExtentRollover(t *testing.T) {
	m := openTestManager(t)
	for i := 0; i < BitmapSize+5; i++ {
		pid, err := m.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage #%d: %v", i, err)
		}
		if pid != types.PageID(i) {
			t.Fatalf("AllocatePage #%d = %s, want %d", i, pid, i)
		}
	}
	if m.AllocatedPageCount() != uint64(BitmapSize+5) {
		t.Errorf("AllocatedPageCount() = %d, want %d", m.AllocatedPageCount(), BitmapSize+5)
	}
}

func TestIndexRootsPageIsAddressableDirectly(t *testing.T) {
	m := openTestManager(t)
	want := make([]byte, PageSize)
	want[0] = 0xAB
	if err := m.WritePage(types.IndexRootsPageID, want); err != nil {
		t.Fatalf("WritePage(IndexRootsPageID): %v", err)
	}
	got := make([]byte, PageSize)
	if err := m.ReadPage(types.IndexRootsPageID, got); err != nil {
		t.Fatalf("ReadPage(IndexRootsPageID): %v", err)
	}
	if got[0] != 0xAB {
		t.Errorf("ReadPage(IndexRootsPageID)[0] = %#x, want 0xab", got[0])
	}
}
