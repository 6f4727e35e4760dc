package page

import (
	"encoding/binary"

	"github.com/relicdb/minisql/pkg/types"
)

// TablePageHeaderSize is pageID(4) + prevPageID(4) + nextPageID(4) +
// freeSpacePointer(4) + tupleCount(4).
const TablePageHeaderSize = 20

// slotSize is one slot-directory entry: {offset uint32, length uint32}.
const slotSize = 8

// tombstoneBit marks a slot as soft-deleted (MarkDelete) without reclaiming
// its space, letting RollbackDelete restore it; ApplyDelete clears both
// slot fields instead, freeing the slot for reuse.
const tombstoneBit = uint32(1) << 31

// TablePage is a slotted page holding variable-length tuples: a fixed
// header, a slot directory that grows downward from the header, and tuple
// bytes that grow upward from the end of the page.
type TablePage []byte

// InitTablePage formats buf as a fresh, empty table page.
func InitTablePage(buf []byte, id, prev types.PageID) TablePage {
	p := TablePage(buf)
	p.SetPageID(id)
	p.SetPrevPageID(prev)
	p.SetNextPageID(types.InvalidPageID)
	p.SetFreeSpacePointer(uint32(len(buf)))
	p.SetTupleCount(0)
	return p
}

func (p TablePage) PageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p[0:4])))
}
func (p TablePage) SetPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p[0:4], uint32(int32(id)))
}

func (p TablePage) PrevPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p[4:8])))
}
func (p TablePage) SetPrevPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p[4:8], uint32(int32(id)))
}

func (p TablePage) NextPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p[8:12])))
}
func (p TablePage) SetNextPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p[8:12], uint32(int32(id)))
}

func (p TablePage) FreeSpacePointer() uint32     { return binary.LittleEndian.Uint32(p[12:16]) }
func (p TablePage) SetFreeSpacePointer(n uint32) { binary.LittleEndian.PutUint32(p[12:16], n) }

func (p TablePage) TupleCount() uint32     { return binary.LittleEndian.Uint32(p[16:20]) }
func (p TablePage) SetTupleCount(n uint32) { binary.LittleEndian.PutUint32(p[16:20], n) }

func (p TablePage) slotOffset(idx uint32) int { return TablePageHeaderSize + int(idx)*slotSize }

func (p TablePage) rawSlotLength(idx uint32) uint32 {
	off := p.slotOffset(idx)
	return binary.LittleEndian.Uint32(p[off+4 : off+8])
}

func (p TablePage) setRawSlotLength(idx uint32, v uint32) {
	off := p.slotOffset(idx)
	binary.LittleEndian.PutUint32(p[off+4:off+8], v)
}

// SlotOffset returns the byte offset of tuple idx's data within the page.
func (p TablePage) SlotOffset(idx uint32) uint32 {
	off := p.slotOffset(idx)
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func (p TablePage) setSlotOffset(idx uint32, v uint32) {
	off := p.slotOffset(idx)
	binary.LittleEndian.PutUint32(p[off:off+4], v)
}

// SlotLength returns the tuple's length, with the tombstone bit masked out.
func (p TablePage) SlotLength(idx uint32) uint32 { return p.rawSlotLength(idx) &^ tombstoneBit }

// IsDeleted reports whether the slot has been MarkDelete'd but not yet
// ApplyDelete'd.
func (p TablePage) IsDeleted(idx uint32) bool { return p.rawSlotLength(idx)&tombstoneBit != 0 }

// IsFree reports whether the slot holds no tuple at all (either never used
// or already hard-deleted) and is available for InsertTuple to reuse.
func (p TablePage) IsFree(idx uint32) bool { return p.rawSlotLength(idx) == 0 }

// usedHeaderBytes is the header plus the slot directory for every slot
// allocated so far (including free/tombstoned ones, since the directory
// never shrinks).
func (p TablePage) usedHeaderBytes() uint32 {
	return uint32(TablePageHeaderSize) + p.TupleCount()*slotSize
}

// FreeSpaceRemaining returns the number of bytes available between the end
// of the slot directory and the start of tuple data.
func (p TablePage) FreeSpaceRemaining() uint32 {
	used := p.usedHeaderBytes()
	fsp := p.FreeSpacePointer()
	if fsp < used {
		return 0
	}
	return fsp - used
}

// findFreeSlot returns the index of an existing free (never-used or
// hard-deleted) slot, or -1 if none exists and the directory must grow.
func (p TablePage) findFreeSlot() int {
	n := p.TupleCount()
	for i := uint32(0); i < n; i++ {
		if p.IsFree(i) {
			return int(i)
		}
	}
	return -1
}

// InsertTuple appends data to the page, reusing a free slot if one exists.
// Returns the slot index and false if there isn't enough contiguous free
// space for both the tuple and (if needed) a new directory entry.
func (p TablePage) InsertTuple(data []byte) (uint32, bool) {
	needsNewSlot := p.findFreeSlot() < 0
	need := uint32(len(data))
	if needsNewSlot {
		need += slotSize
	}
	if p.FreeSpaceRemaining() < need {
		return 0, false
	}

	newFSP := p.FreeSpacePointer() - uint32(len(data))
	copy(p[newFSP:newFSP+uint32(len(data))], data)
	p.SetFreeSpacePointer(newFSP)

	if idx := p.findFreeSlot(); idx >= 0 {
		p.setSlotOffset(uint32(idx), newFSP)
		p.setRawSlotLength(uint32(idx), uint32(len(data)))
		return uint32(idx), true
	}

	idx := p.TupleCount()
	p.setSlotOffset(idx, newFSP)
	p.setRawSlotLength(idx, uint32(len(data)))
	p.SetTupleCount(idx + 1)
	return idx, true
}

// GetTuple returns the bytes stored at slotIdx. Returns false for an
// out-of-range, free, or tombstoned slot.
func (p TablePage) GetTuple(slotIdx uint32) ([]byte, bool) {
	if slotIdx >= p.TupleCount() || p.IsFree(slotIdx) || p.IsDeleted(slotIdx) {
		return nil, false
	}
	off := p.SlotOffset(slotIdx)
	length := p.SlotLength(slotIdx)
	return p[off : off+length], true
}

// MarkDelete tombstones a slot without reclaiming its space, so
// RollbackDelete can undo it within the same operation.
func (p TablePage) MarkDelete(slotIdx uint32) bool {
	if slotIdx >= p.TupleCount() || p.IsFree(slotIdx) || p.IsDeleted(slotIdx) {
		return false
	}
	p.setRawSlotLength(slotIdx, p.rawSlotLength(slotIdx)|tombstoneBit)
	return true
}

// RollbackDelete undoes a MarkDelete, making the slot live again.
func (p TablePage) RollbackDelete(slotIdx uint32) bool {
	if slotIdx >= p.TupleCount() || !p.IsDeleted(slotIdx) {
		return false
	}
	p.setRawSlotLength(slotIdx, p.rawSlotLength(slotIdx)&^tombstoneBit)
	return true
}

// ApplyDelete commits a MarkDelete, freeing the slot for reuse and
// compacting the tuple area: every tuple stored below the deleted one
// shifts up by its length and the free-space pointer recedes, so the bytes
// become insertable again. Slot indices never move, only offsets, which
// keeps RowIDs stable for live tuples.
func (p TablePage) ApplyDelete(slotIdx uint32) bool {
	if slotIdx >= p.TupleCount() || !p.IsDeleted(slotIdx) {
		return false
	}
	off := p.SlotOffset(slotIdx)
	length := p.SlotLength(slotIdx)
	fsp := p.FreeSpacePointer()

	copy(p[fsp+length:off+length], p[fsp:off])
	n := p.TupleCount()
	for i := uint32(0); i < n; i++ {
		if i == slotIdx || p.IsFree(i) {
			continue
		}
		if o := p.SlotOffset(i); o < off {
			p.setSlotOffset(i, o+length)
		}
	}
	p.SetFreeSpacePointer(fsp + length)
	p.setSlotOffset(slotIdx, 0)
	p.setRawSlotLength(slotIdx, 0)
	return true
}

// UpdateTuple overwrites the tuple at slotIdx in place if newData is no
// larger than the existing tuple; otherwise the caller must delete and
// re-insert.
func (p TablePage) UpdateTuple(slotIdx uint32, newData []byte) bool {
	if slotIdx >= p.TupleCount() || p.IsFree(slotIdx) || p.IsDeleted(slotIdx) {
		return false
	}
	if uint32(len(newData)) > p.SlotLength(slotIdx) {
		return false
	}
	off := p.SlotOffset(slotIdx)
	copy(p[off:off+uint32(len(newData))], newData)
	p.setRawSlotLength(slotIdx, uint32(len(newData)))
	return true
}
