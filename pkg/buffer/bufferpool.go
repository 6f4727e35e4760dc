// Package buffer implements the buffer pool manager: an array of frames
// backed by the disk manager, a free list, an LRU replacer, and pin/unpin
// accounting. Every other storage-engine package (table, index, catalog)
// reaches the disk exclusively through this package.
package buffer

import (
	"fmt"
	"sync"

	"github.com/relicdb/minisql/internal/logger"
	"github.com/relicdb/minisql/internal/metrics"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/disk"
	"github.com/relicdb/minisql/pkg/types"
)

// Frame is an in-memory page slot: its bytes, the page id currently
// resident in it, its pin count, its dirty flag, and a latch guarding the
// bytes while a holder of a pin reads or mutates them. Frames live in a
// fixed-size array inside the pool so pointers into it stay stable for the
// life of the pool.
type Frame struct {
	Data []byte

	latch    sync.RWMutex
	pageID   types.PageID
	pinCount int
	dirty    bool
}

// RLatch takes the frame's latch for reading.
func (f *Frame) RLatch() { f.latch.RLock() }

// RUnlatch releases a read latch.
func (f *Frame) RUnlatch() { f.latch.RUnlock() }

// WLatch takes the frame's latch for writing.
func (f *Frame) WLatch() { f.latch.Lock() }

// WUnlatch releases a write latch.
func (f *Frame) WUnlatch() { f.latch.Unlock() }

// PageID returns the logical page id currently held by the frame.
func (f *Frame) PageID() types.PageID { return f.pageID }

// PinCount returns the frame's current pin count.
func (f *Frame) PinCount() int { return f.pinCount }

// Dirty reports whether the frame has unflushed modifications.
func (f *Frame) Dirty() bool { return f.dirty }

// Pool is the buffer pool manager.
type Pool struct {
	mu sync.Mutex

	frames    []Frame
	pageTable map[types.PageID]int32
	freeList  []int32
	replacer  *LRUReplacer
	disk      *disk.Manager

	log *logger.Logger
	met *metrics.Metrics
}

// NewPool creates a buffer pool of size frames, backed by d.
func NewPool(size int, d *disk.Manager, met *metrics.Metrics) *Pool {
	p := &Pool{
		frames:    make([]Frame, size),
		pageTable: make(map[types.PageID]int32, size),
		freeList:  make([]int32, size),
		replacer:  NewLRUReplacer(),
		disk:      d,
		log:       logger.GetGlobalLogger().Component("buffer"),
		met:       met,
	}
	for i := range p.frames {
		p.frames[i].Data = make([]byte, disk.PageSize)
		p.frames[i].pageID = types.InvalidPageID
		p.freeList[i] = int32(size - 1 - i)
	}
	p.reportFrameCounts()
	return p
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int { return len(p.frames) }

func (p *Pool) reportFrameCounts() {
	if p.met == nil {
		return
	}
	pinned := 0
	for i := range p.frames {
		if p.frames[i].pinCount > 0 {
			pinned++
		}
	}
	p.met.SetFrameCounts(pinned, len(p.freeList))
}

// victimLocked selects a frame to (re)use, preferring the free list over
// evicting an unpinned frame. Returns false if none is available.
func (p *Pool) victimLocked() (int32, bool) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id, true
	}
	return p.replacer.Victim()
}

// evictLocked prepares frameID to hold a different page: if it currently
// holds a dirty page, that page is written back first, and its mapping is
// removed from the page table.
func (p *Pool) evictLocked(frameID int32) error {
	frame := &p.frames[frameID]
	if !frame.pageID.IsValid() {
		return nil
	}
	if frame.dirty {
		if err := p.disk.WritePage(frame.pageID, frame.Data); err != nil {
			return err
		}
	}
	delete(p.pageTable, frame.pageID)
	if p.met != nil {
		p.met.RecordEviction()
	}
	if p.log != nil {
		p.log.LogEviction(int32(frame.pageID), frame.dirty)
	}
	// Clear the frame's identity so an error path that returns it to the
	// free list can't later write these bytes back over a page someone else
	// has since re-fetched and modified.
	frame.pageID = types.InvalidPageID
	frame.dirty = false
	return nil
}

// FetchPage pins and returns the frame holding pid, reading it from disk
// first if it isn't already resident.
func (p *Pool) FetchPage(pid types.PageID) (*Frame, error) {
	if !pid.IsValid() {
		return nil, fmt.Errorf("buffer: FetchPage: %w: invalid page id", dberr.Failed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[pid]; ok {
		frame := &p.frames[frameID]
		frame.pinCount++
		p.replacer.Pin(frameID)
		if p.met != nil {
			p.met.RecordBufferFetch(true)
		}
		p.reportFrameCounts()
		return frame, nil
	}

	if p.met != nil {
		p.met.RecordBufferFetch(false)
	}

	frameID, ok := p.victimLocked()
	if !ok {
		return nil, fmt.Errorf("buffer: FetchPage(%s): %w: no free or unpinned frame", pid, dberr.Failed)
	}
	if err := p.evictLocked(frameID); err != nil {
		return nil, err
	}

	frame := &p.frames[frameID]
	if err := p.disk.ReadPage(pid, frame.Data); err != nil {
		p.freeList = append(p.freeList, frameID)
		return nil, err
	}
	frame.pageID = pid
	frame.pinCount = 1
	frame.dirty = false
	p.pageTable[pid] = frameID
	p.reportFrameCounts()
	return frame, nil
}

// NewPage allocates a fresh logical page from the disk manager, pins it in
// a frame zeroed to all-zero bytes, and returns both.
func (p *Pool) NewPage() (*Frame, types.PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.victimLocked()
	if !ok {
		return nil, types.InvalidPageID, fmt.Errorf("buffer: NewPage: %w: no free or unpinned frame", dberr.Failed)
	}
	if err := p.evictLocked(frameID); err != nil {
		return nil, types.InvalidPageID, err
	}

	pid, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, frameID)
		return nil, types.InvalidPageID, err
	}

	frame := &p.frames[frameID]
	for i := range frame.Data {
		frame.Data[i] = 0
	}
	frame.pageID = pid
	frame.pinCount = 1
	frame.dirty = false
	p.pageTable[pid] = frameID
	p.reportFrameCounts()
	return frame, pid, nil
}

// UnpinPage decrements pid's pin count and OR-assigns isDirty into its
// dirty flag. Returns false if pid isn't resident. Unpinning an
// already-unpinned page is treated as benign.
func (p *Pool) UnpinPage(pid types.PageID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pid]
	if !ok {
		return false
	}
	frame := &p.frames[frameID]
	frame.dirty = frame.dirty || isDirty
	if frame.pinCount == 0 {
		return true
	}
	frame.pinCount--
	if frame.pinCount == 0 {
		p.replacer.Unpin(frameID)
	}
	p.reportFrameCounts()
	return true
}

// FlushPage writes pid's current bytes to disk without changing its pin
// count. Returns false if pid isn't resident.
func (p *Pool) FlushPage(pid types.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pid]
	if !ok {
		return false, nil
	}
	frame := &p.frames[frameID]
	if err := p.disk.WritePage(pid, frame.Data); err != nil {
		return true, err
	}
	frame.dirty = false
	return true, nil
}

// FlushAll writes every resident dirty page back to disk, used on orderly
// shutdown.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pid, frameID := range p.pageTable {
		frame := &p.frames[frameID]
		if !frame.dirty {
			continue
		}
		if err := p.disk.WritePage(pid, frame.Data); err != nil {
			return err
		}
		frame.dirty = false
	}
	return nil
}

// DeletePage frees pid's frame and deallocates it on disk. Deleting an
// absent page succeeds trivially; deleting a pinned page fails.
func (p *Pool) DeletePage(pid types.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pid]
	if !ok {
		return true, nil
	}
	frame := &p.frames[frameID]
	if frame.pinCount > 0 {
		return false, nil
	}

	p.replacer.Pin(frameID) // make sure it isn't sitting in the evictable set
	delete(p.pageTable, pid)
	for i := range frame.Data {
		frame.Data[i] = 0
	}
	frame.pageID = types.InvalidPageID
	frame.dirty = false
	p.freeList = append(p.freeList, frameID)
	p.reportFrameCounts()

	if err := p.disk.DeallocatePage(pid); err != nil {
		return true, err
	}
	return true, nil
}

// CheckAllUnpinned is a diagnostic predicate asserting every frame has pin
// count 0, used by tests enforcing the pin discipline.
func (p *Pool) CheckAllUnpinned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.frames {
		if p.frames[i].pinCount != 0 {
			return false
		}
	}
	return true
}
