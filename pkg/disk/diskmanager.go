// Package disk implements the byte-aligned page allocator: a single file
// holding a meta page, an index-roots page, and a sequence of
// bitmap-tracked extents of fixed-size data pages.
package disk

import (
	"fmt"
	"os"
	"sync"

	"github.com/relicdb/minisql/internal/logger"
	"github.com/relicdb/minisql/internal/metrics"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/types"
)

// Manager is the disk manager: it owns the single database file, maps
// logical page ids to physical offsets, and tracks allocation state through
// a chain of bitmap-page-described extents.
type Manager struct {
	mu sync.Mutex

	path string
	file *os.File
	meta *diskMeta

	log *logger.Logger
	met *metrics.Metrics
}

// Open creates or opens the database file at path. A fresh file is
// initialized with an empty meta page; an existing file has its meta page
// read and validated.
func Open(path string, met *metrics.Metrics) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	m := &Manager{
		path: path,
		file: f,
		log:  logger.GetGlobalLogger().Component("disk"),
		met:  met,
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}

	if stat.Size() == 0 {
		m.meta = &diskMeta{magic: diskMetaMagic}
		if err := m.flushMetaLocked(); err != nil {
			_ = f.Close()
			return nil, err
		}
		return m, nil
	}

	buf := make([]byte, PageSize)
	if err := m.readPhysicalLocked(0, buf); err != nil {
		_ = f.Close()
		return nil, err
	}
	meta, ok := decodeDiskMeta(buf)
	if !ok {
		_ = f.Close()
		return nil, fmt.Errorf("disk: %s: corrupt meta page (bad magic)", path)
	}
	m.meta = meta
	if m.met != nil {
		m.met.SetExtentCount(int(meta.extentCount))
	}
	return m, nil
}

// Close closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// readPhysicalLocked reads one PageSize page at physical page number phys.
// Reads past end-of-file return a zero-filled page without error.
func (m *Manager) readPhysicalLocked(phys int64, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("disk: read buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	for i := range buf {
		buf[i] = 0
	}
	n, err := m.file.ReadAt(buf, phys*PageSize)
	if err != nil && n == 0 {
		// A read entirely past EOF (or of an empty file) surfaces as an
		// error from os.File.ReadAt; that's the documented zero-fill case.
		return nil
	}
	if err != nil && n < PageSize {
		// Partial read at EOF: the tail is already zero-filled above.
		return nil
	}
	return nil
}

func (m *Manager) writePhysicalLocked(phys int64, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("disk: write buffer must be %d bytes, got %d", PageSize, len(data))
	}
	if _, err := m.file.WriteAt(data, phys*PageSize); err != nil {
		return fmt.Errorf("disk: write physical page %d: %w", phys, err)
	}
	return nil
}

func (m *Manager) flushMetaLocked() error {
	return m.writePhysicalLocked(0, m.meta.encode())
}

// ReadPage reads the logical page id into buf, which must be PageSize
// bytes. id may be types.IndexRootsPageID, which addresses physical page 1
// directly rather than going through the extent/bitmap mapping.
func (m *Manager) ReadPage(id types.PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == types.IndexRootsPageID {
		return m.readPhysicalLocked(1, buf)
	}
	if !id.IsValid() {
		return fmt.Errorf("disk: ReadPage: invalid page id")
	}
	return m.readPhysicalLocked(dataPageOffset(int64(id)), buf)
}

// WritePage writes data (exactly PageSize bytes) to logical page id.
func (m *Manager) WritePage(id types.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == types.IndexRootsPageID {
		return m.writePhysicalLocked(1, data)
	}
	if !id.IsValid() {
		return fmt.Errorf("disk: WritePage: invalid page id")
	}
	return m.writePhysicalLocked(dataPageOffset(int64(id)), data)
}

// bitmapForLocked reads the bitmap page governing extent, creating (and
// registering) a fresh extent first if extent == m.meta.extentCount.
func (m *Manager) bitmapForLocked(extent int) (*bitmapPage, error) {
	if extent > int(m.meta.extentCount) {
		return nil, fmt.Errorf("disk: extent %d has no predecessor extent allocated", extent)
	}
	if extent == int(m.meta.extentCount) {
		if extent >= maxExtents {
			return nil, fmt.Errorf("disk: %w: extent capacity (%d) exhausted", dberr.Failed, maxExtents)
		}
		bp := newBitmapPage()
		if err := m.writePhysicalLocked(bitmapPageOffset(extent), bp.buf); err != nil {
			return nil, err
		}
		m.meta.extentCount++
		m.meta.extentUsed[extent] = 0
		if err := m.flushMetaLocked(); err != nil {
			return nil, err
		}
		if m.log != nil {
			m.log.LogExtentGrowth(extent)
		}
		if m.met != nil {
			m.met.SetExtentCount(int(m.meta.extentCount))
		}
		return bp, nil
	}

	buf := make([]byte, PageSize)
	if err := m.readPhysicalLocked(bitmapPageOffset(extent), buf); err != nil {
		return nil, err
	}
	return loadBitmapPage(buf), nil
}

// AllocatePage reserves the lowest available logical page id.
func (m *Manager) AllocatePage() (types.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	extent := 0
	for extent < int(m.meta.extentCount) && m.meta.extentUsed[extent] >= BitmapSize {
		extent++
	}

	bp, err := m.bitmapForLocked(extent)
	if err != nil {
		return types.InvalidPageID, err
	}

	bit := bp.firstFree()
	if bit < 0 {
		return types.InvalidPageID, fmt.Errorf("disk: %w: extent %d reports spare capacity but has none", dberr.Failed, extent)
	}
	bp.set(bit)
	bp.setUsedCount(bp.usedCount() + 1)
	if err := m.writePhysicalLocked(bitmapPageOffset(extent), bp.buf); err != nil {
		return types.InvalidPageID, err
	}

	m.meta.extentUsed[extent]++
	m.meta.pageCount++
	if err := m.flushMetaLocked(); err != nil {
		return types.InvalidPageID, err
	}

	if m.met != nil {
		m.met.RecordPageAllocated()
	}

	return types.PageID(int64(extent)*BitmapSize + int64(bit)), nil
}

// DeallocatePage returns id's bit to its extent's bitmap. Deallocating a
// never-allocated (or already-free) page is a no-op that returns an error.
func (m *Manager) DeallocatePage(id types.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !id.IsValid() {
		return fmt.Errorf("disk: %w: page %s was never allocated", dberr.Failed, id)
	}

	extent, bit := extentOf(int64(id))
	if extent >= int(m.meta.extentCount) {
		return fmt.Errorf("disk: %w: page %s was never allocated", dberr.Failed, id)
	}

	bp, err := m.bitmapForLocked(extent)
	if err != nil {
		return err
	}
	if !bp.isSet(bit) {
		return fmt.Errorf("disk: %w: page %s is already free", dberr.Failed, id)
	}

	bp.clear(bit)
	bp.setUsedCount(bp.usedCount() - 1)
	if err := m.writePhysicalLocked(bitmapPageOffset(extent), bp.buf); err != nil {
		return err
	}

	m.meta.extentUsed[extent]--
	m.meta.pageCount--
	if err := m.flushMetaLocked(); err != nil {
		return err
	}
	if m.met != nil {
		m.met.RecordPageDeallocated()
	}
	return nil
}

// IsPageFree reports whether id is currently unallocated.
func (m *Manager) IsPageFree(id types.PageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !id.IsValid() {
		return true, nil
	}
	extent, bit := extentOf(int64(id))
	if extent >= int(m.meta.extentCount) {
		return true, nil
	}
	bp, err := m.bitmapForLocked(extent)
	if err != nil {
		return false, err
	}
	return !bp.isSet(bit), nil
}

// AllocatedPageCount returns the disk manager's count of currently
// allocated logical pages. It always equals the total number of set bits
// across every extent's bitmap.
func (m *Manager) AllocatedPageCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta.pageCount
}
