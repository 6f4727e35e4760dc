// Package page defines byte-slice views over the on-disk page layouts used
// by the table heap and B+-tree index. Each type here is a thin accessor
// over a *buffer.Frame's Data: a named byte-slice type computing field
// offsets directly with encoding/binary rather than marshaling into a
// separate struct.
package page

import (
	"encoding/binary"

	"github.com/relicdb/minisql/pkg/disk"
	"github.com/relicdb/minisql/pkg/types"
)

// B+-tree page type tags, stored in the first 4 bytes of every B+-tree page.
const (
	TypeInvalid  uint32 = 0
	TypeInternal uint32 = 1
	TypeLeaf     uint32 = 2
)

// HeaderSize is the 24-byte header shared by internal and leaf pages:
// page type, current entry count, max entry count, parent page id, this
// page's own id, and the fixed key size for the tree it belongs to.
const HeaderSize = 24

// BTreePage is a byte-slice view over the common B+-tree header fields.
// InternalPage and LeafPage both wrap it and lay out their entries after it.
type BTreePage []byte

func (p BTreePage) PageType() uint32     { return binary.LittleEndian.Uint32(p[0:4]) }
func (p BTreePage) SetPageType(t uint32) { binary.LittleEndian.PutUint32(p[0:4], t) }
func (p BTreePage) Size() uint32         { return binary.LittleEndian.Uint32(p[4:8]) }
func (p BTreePage) SetSize(n uint32)     { binary.LittleEndian.PutUint32(p[4:8], n) }
func (p BTreePage) MaxSize() uint32      { return binary.LittleEndian.Uint32(p[8:12]) }
func (p BTreePage) SetMaxSize(n uint32)  { binary.LittleEndian.PutUint32(p[8:12], n) }
func (p BTreePage) KeySize() uint32      { return binary.LittleEndian.Uint32(p[20:24]) }
func (p BTreePage) SetKeySize(n uint32)  { binary.LittleEndian.PutUint32(p[20:24], n) }

func (p BTreePage) ParentPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p[12:16])))
}

func (p BTreePage) SetParentPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p[12:16], uint32(int32(id)))
}

func (p BTreePage) PageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p[16:20])))
}

func (p BTreePage) SetPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p[16:20], uint32(int32(id)))
}

func (p BTreePage) IsLeaf() bool { return p.PageType() == TypeLeaf }
func (p BTreePage) IsRoot() bool { return p.ParentPageID() == types.InvalidPageID }

// MinSize returns the minimum occupancy a non-root page must maintain:
// ceil(F/2) for a fanout of F.
func (p BTreePage) MinSize() uint32 {
	return (p.MaxSize() + 1) / 2
}

// IsUnderflow reports whether the page holds fewer entries than its
// half-full minimum, the trigger for a merge or redistribution.
func (p BTreePage) IsUnderflow() bool {
	return p.Size() < p.MinSize()
}

// IsOverflow reports whether the page already holds more entries than its
// max capacity (the state an insert leaves behind), the trigger for a split.
func (p BTreePage) IsOverflow() bool { return p.Size() > p.MaxSize() }

// --- internal (non-leaf) pages ---

// internalEntrySize is the per-entry width: a fixed-size key plus a 4-byte
// child page id.
func internalEntrySize(keySize uint32) int { return int(keySize) + 4 }

// MaxInternalEntries returns the steady-state fanout F for an internal page
// of the given key size: one less than the physical byte capacity, so that
// the transient F+1'th entry InsertAt writes during insert-then-split still
// fits inside the page's fixed PageSize buffer before the overflow check
// triggers a split.
func MaxInternalEntries(keySize uint32) int {
	physical := (disk.PageSize - HeaderSize) / internalEntrySize(keySize)
	return physical - 1
}

// InternalPage is an internal B+-tree node: n entries where entry 0's key
// is a sentinel (ignored on lookup) and entries 1..n-1 hold real separator
// keys, each paired with the id of the child subtree whose keys are >= that
// separator (and < the next one).
type InternalPage struct{ BTreePage }

// InitInternalPage formats buf as a fresh, empty internal page.
func InitInternalPage(buf []byte, id, parent types.PageID, keySize uint32) InternalPage {
	p := InternalPage{BTreePage(buf)}
	p.SetPageType(TypeInternal)
	p.SetSize(0)
	p.SetKeySize(keySize)
	p.SetMaxSize(uint32(MaxInternalEntries(keySize)))
	p.SetParentPageID(parent)
	p.SetPageID(id)
	return p
}

func (p InternalPage) entryOffset(idx int) int {
	return HeaderSize + idx*internalEntrySize(p.KeySize())
}

func (p InternalPage) KeyAt(idx int) []byte {
	off := p.entryOffset(idx)
	ks := int(p.KeySize())
	return p.BTreePage[off : off+ks]
}

func (p InternalPage) SetKeyAt(idx int, key []byte) {
	off := p.entryOffset(idx)
	copy(p.BTreePage[off:off+int(p.KeySize())], key)
}

func (p InternalPage) ValueAt(idx int) types.PageID {
	off := p.entryOffset(idx) + int(p.KeySize())
	return types.PageID(int32(binary.LittleEndian.Uint32(p.BTreePage[off : off+4])))
}

func (p InternalPage) SetValueAt(idx int, id types.PageID) {
	off := p.entryOffset(idx) + int(p.KeySize())
	binary.LittleEndian.PutUint32(p.BTreePage[off:off+4], uint32(int32(id)))
}

func (p InternalPage) SetEntryAt(idx int, key []byte, id types.PageID) {
	p.SetKeyAt(idx, key)
	p.SetValueAt(idx, id)
}

func (p InternalPage) copyEntry(dst, src int) {
	dstOff, srcOff := p.entryOffset(dst), p.entryOffset(src)
	sz := internalEntrySize(p.KeySize())
	copy(p.BTreePage[dstOff:dstOff+sz], p.BTreePage[srcOff:srcOff+sz])
}

// InsertAt shifts entries [idx, Size) right by one slot and writes the new
// entry at idx.
func (p InternalPage) InsertAt(idx int, key []byte, id types.PageID) {
	n := int(p.Size())
	for i := n; i > idx; i-- {
		p.copyEntry(i, i-1)
	}
	p.SetEntryAt(idx, key, id)
	p.SetSize(uint32(n + 1))
}

// RemoveAt closes the gap left by removing the entry at idx.
func (p InternalPage) RemoveAt(idx int) {
	n := int(p.Size())
	for i := idx; i < n-1; i++ {
		p.copyEntry(i, i+1)
	}
	p.SetSize(uint32(n - 1))
}

// Lookup returns the index of the child entry to descend into for key,
// using a caller-supplied key comparator.
func (p InternalPage) Lookup(key []byte, cmp func(a, b []byte) int) int {
	n := int(p.Size())
	target := 0
	for i := 1; i < n; i++ {
		if cmp(p.KeyAt(i), key) <= 0 {
			target = i
		} else {
			break
		}
	}
	return target
}

// ValueIndex returns the entry index whose child page id is childID, or -1.
func (p InternalPage) ValueIndex(childID types.PageID) int {
	n := int(p.Size())
	for i := 0; i < n; i++ {
		if p.ValueAt(i) == childID {
			return i
		}
	}
	return -1
}

// --- leaf pages ---

// leafHeaderExtra is the NextPageID field appended after the common header,
// giving leaf pages sibling-chain traversal for range scans.
const leafHeaderExtra = 4

// LeafHeaderSize is the total header width of a leaf page.
const LeafHeaderSize = HeaderSize + leafHeaderExtra

func leafEntrySize(keySize uint32) int { return int(keySize) + 8 } // key + RowID(4+4)

// MaxLeafEntries returns the steady-state fanout F for a leaf page of the
// given key size: one less than the physical byte capacity, so that the
// transient F+1'th entry InsertAt writes during insert-then-split still
// fits inside the page's fixed PageSize buffer before the overflow check
// triggers a split.
func MaxLeafEntries(keySize uint32) int {
	physical := (disk.PageSize - LeafHeaderSize) / leafEntrySize(keySize)
	return physical - 1
}

// LeafPage is a leaf B+-tree node: n sorted (key, RowID) entries plus a
// forward link to the next leaf for ordered range scans.
type LeafPage struct{ BTreePage }

// InitLeafPage formats buf as a fresh, empty leaf page.
func InitLeafPage(buf []byte, id, parent types.PageID, keySize uint32) LeafPage {
	p := LeafPage{BTreePage(buf)}
	p.SetPageType(TypeLeaf)
	p.SetSize(0)
	p.SetKeySize(keySize)
	p.SetMaxSize(uint32(MaxLeafEntries(keySize)))
	p.SetParentPageID(parent)
	p.SetPageID(id)
	p.SetNextPageID(types.InvalidPageID)
	return p
}

func (p LeafPage) NextPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p.BTreePage[HeaderSize : HeaderSize+4])))
}

func (p LeafPage) SetNextPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(p.BTreePage[HeaderSize:HeaderSize+4], uint32(int32(id)))
}

func (p LeafPage) entryOffset(idx int) int {
	return LeafHeaderSize + idx*leafEntrySize(p.KeySize())
}

func (p LeafPage) KeyAt(idx int) []byte {
	off := p.entryOffset(idx)
	ks := int(p.KeySize())
	return p.BTreePage[off : off+ks]
}

func (p LeafPage) SetKeyAt(idx int, key []byte) {
	off := p.entryOffset(idx)
	copy(p.BTreePage[off:off+int(p.KeySize())], key)
}

func (p LeafPage) ValueAt(idx int) types.RowID {
	off := p.entryOffset(idx) + int(p.KeySize())
	pid := int32(binary.LittleEndian.Uint32(p.BTreePage[off : off+4]))
	slot := binary.LittleEndian.Uint32(p.BTreePage[off+4 : off+8])
	return types.RowID{PageID: types.PageID(pid), Slot: slot}
}

func (p LeafPage) SetValueAt(idx int, rid types.RowID) {
	off := p.entryOffset(idx) + int(p.KeySize())
	binary.LittleEndian.PutUint32(p.BTreePage[off:off+4], uint32(int32(rid.PageID)))
	binary.LittleEndian.PutUint32(p.BTreePage[off+4:off+8], rid.Slot)
}

func (p LeafPage) SetEntryAt(idx int, key []byte, rid types.RowID) {
	p.SetKeyAt(idx, key)
	p.SetValueAt(idx, rid)
}

func (p LeafPage) copyEntry(dst, src int) {
	dstOff, srcOff := p.entryOffset(dst), p.entryOffset(src)
	sz := leafEntrySize(p.KeySize())
	copy(p.BTreePage[dstOff:dstOff+sz], p.BTreePage[srcOff:srcOff+sz])
}

// InsertAt shifts entries [idx, Size) right by one slot and writes the new
// entry at idx. Callers are responsible for finding the sorted insertion
// point first; keys are kept in sorted order within a leaf.
func (p LeafPage) InsertAt(idx int, key []byte, rid types.RowID) {
	n := int(p.Size())
	for i := n; i > idx; i-- {
		p.copyEntry(i, i-1)
	}
	p.SetEntryAt(idx, key, rid)
	p.SetSize(uint32(n + 1))
}

// RemoveAt closes the gap left by removing the entry at idx.
func (p LeafPage) RemoveAt(idx int) {
	n := int(p.Size())
	for i := idx; i < n-1; i++ {
		p.copyEntry(i, i+1)
	}
	p.SetSize(uint32(n - 1))
}

// Lookup performs a linear scan for key and reports the exact-match index,
// or the insertion point and found=false.
func (p LeafPage) Lookup(key []byte, cmp func(a, b []byte) int) (idx int, found bool) {
	n := int(p.Size())
	for i := 0; i < n; i++ {
		c := cmp(p.KeyAt(i), key)
		if c == 0 {
			return i, true
		}
		if c > 0 {
			return i, false
		}
	}
	return n, false
}
