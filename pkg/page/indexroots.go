package page

import (
	"encoding/binary"

	"github.com/relicdb/minisql/pkg/disk"
	"github.com/relicdb/minisql/pkg/types"
)

// IndexRootsHeaderSize holds the number of entries currently in use.
const IndexRootsHeaderSize = 4

// indexRootEntrySize is indexID(4) + rootPageID(4).
const indexRootEntrySize = 8

// MaxIndexRoots is the fixed capacity of the index-roots page, which lives
// at physical page 1 and bypasses the normal bitmap-allocated extent
// layout.
func MaxIndexRoots() int { return (disk.PageSize - IndexRootsHeaderSize) / indexRootEntrySize }

// IndexRootsPage is a fixed-capacity array mapping index id to the page id
// of that index's current B+-tree root.
type IndexRootsPage []byte

// InitIndexRootsPage formats buf as a fresh, empty index-roots page.
func InitIndexRootsPage(buf []byte) IndexRootsPage {
	p := IndexRootsPage(buf)
	p.SetCount(0)
	return p
}

func (p IndexRootsPage) Count() uint32     { return binary.LittleEndian.Uint32(p[0:4]) }
func (p IndexRootsPage) SetCount(n uint32) { binary.LittleEndian.PutUint32(p[0:4], n) }

func (p IndexRootsPage) entryOffset(i int) int { return IndexRootsHeaderSize + i*indexRootEntrySize }

func (p IndexRootsPage) IndexIDAt(i int) uint32 {
	off := p.entryOffset(i)
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func (p IndexRootsPage) RootPageIDAt(i int) types.PageID {
	off := p.entryOffset(i)
	return types.PageID(int32(binary.LittleEndian.Uint32(p[off+4 : off+8])))
}

func (p IndexRootsPage) setEntryAt(i int, indexID uint32, root types.PageID) {
	off := p.entryOffset(i)
	binary.LittleEndian.PutUint32(p[off:off+4], indexID)
	binary.LittleEndian.PutUint32(p[off+4:off+8], uint32(int32(root)))
}

// Lookup returns the root page id registered for indexID.
func (p IndexRootsPage) Lookup(indexID uint32) (types.PageID, bool) {
	n := int(p.Count())
	for i := 0; i < n; i++ {
		if p.IndexIDAt(i) == indexID {
			return p.RootPageIDAt(i), true
		}
	}
	return types.InvalidPageID, false
}

// Upsert registers or updates indexID's root page id. Returns false if
// indexID is new and the page is already at MaxIndexRoots capacity.
func (p IndexRootsPage) Upsert(indexID uint32, root types.PageID) bool {
	n := int(p.Count())
	for i := 0; i < n; i++ {
		if p.IndexIDAt(i) == indexID {
			p.setEntryAt(i, indexID, root)
			return true
		}
	}
	if n >= MaxIndexRoots() {
		return false
	}
	p.setEntryAt(n, indexID, root)
	p.SetCount(uint32(n + 1))
	return true
}

// Remove deletes indexID's entry, compacting the array. Returns false if
// indexID wasn't present.
func (p IndexRootsPage) Remove(indexID uint32) bool {
	n := int(p.Count())
	for i := 0; i < n; i++ {
		if p.IndexIDAt(i) != indexID {
			continue
		}
		for j := i; j < n-1; j++ {
			p.setEntryAt(j, p.IndexIDAt(j+1), p.RootPageIDAt(j+1))
		}
		p.SetCount(uint32(n - 1))
		return true
	}
	return false
}
