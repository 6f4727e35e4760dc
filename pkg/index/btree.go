package index

import (
	"fmt"

	"github.com/relicdb/minisql/internal/logger"
	"github.com/relicdb/minisql/internal/metrics"
	"github.com/relicdb/minisql/pkg/buffer"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/types"
)

// BTree is a unique-key B+-tree index: internal pages route by separator
// key, leaf pages hold sorted (key, RowID) entries linked for range scans,
// and every non-root page carries its parent's page id.
type BTree struct {
	bp         *buffer.Pool
	IndexID    uint32
	rootPageID types.PageID
	km         *KeyManager

	// Optional fanout caps below the page's physical capacity; zero means
	// "as many entries as fit in a page". Tests use small values to build
	// deep trees from few keys. Pages persist their own max size, so the
	// caps only apply to pages this handle creates.
	leafMaxSize     uint32
	internalMaxSize uint32

	log *logger.Logger
	met *metrics.Metrics
}

// SetMaxSizes caps the fanout of leaf and internal pages created from now
// on. Values must be at least 3 and below the physical page capacity for
// the tree's key size; zero leaves the corresponding default untouched.
func (t *BTree) SetMaxSizes(leaf, internal uint32) {
	t.leafMaxSize = leaf
	t.internalMaxSize = internal
}

// CreateBTree returns a handle to a brand-new, empty tree. Its first Insert
// allocates the root leaf.
func CreateBTree(bp *buffer.Pool, indexID uint32, km *KeyManager, met *metrics.Metrics) *BTree {
	return &BTree{
		bp:         bp,
		IndexID:    indexID,
		rootPageID: types.InvalidPageID,
		km:         km,
		log:        logger.GetGlobalLogger().Component("btree"),
		met:        met,
	}
}

// OpenBTree returns a handle to an existing tree rooted at rootPageID (as
// recorded on the index-roots page).
func OpenBTree(bp *buffer.Pool, indexID uint32, rootPageID types.PageID, km *KeyManager, met *metrics.Metrics) *BTree {
	return &BTree{
		bp:         bp,
		IndexID:    indexID,
		rootPageID: rootPageID,
		km:         km,
		log:        logger.GetGlobalLogger().Component("btree"),
		met:        met,
	}
}

// RootPageID returns the tree's current root.
func (t *BTree) RootPageID() types.PageID { return t.rootPageID }

// IsEmpty reports whether the tree has no root yet.
func (t *BTree) IsEmpty() bool { return !t.rootPageID.IsValid() }

// updateRoot records pid as the tree's root and writes it through to the
// index-roots page, so the tree can be rediscovered after a restart. An
// invalid pid (the tree became empty) removes the entry instead.
func (t *BTree) updateRoot(pid types.PageID) error {
	t.rootPageID = pid
	frame, err := t.bp.FetchPage(types.IndexRootsPageID)
	if err != nil {
		return fmt.Errorf("index: updating roots page: %w", err)
	}
	rp := page.IndexRootsPage(frame.Data)
	if !pid.IsValid() {
		rp.Remove(t.IndexID)
		t.bp.UnpinPage(types.IndexRootsPageID, true)
		return nil
	}
	if !rp.Upsert(t.IndexID, pid) {
		t.bp.UnpinPage(types.IndexRootsPageID, false)
		return fmt.Errorf("index: updating roots page: %w: roots page is at capacity", dberr.Failed)
	}
	t.bp.UnpinPage(types.IndexRootsPageID, true)
	return nil
}

// findLeaf descends from the root to the leaf page that should contain key.
func (t *BTree) findLeaf(key []byte) (types.PageID, error) {
	pid := t.rootPageID
	for {
		frame, err := t.bp.FetchPage(pid)
		if err != nil {
			return types.InvalidPageID, fmt.Errorf("index: findLeaf: %w", err)
		}
		bpg := page.BTreePage(frame.Data)
		if bpg.IsLeaf() {
			t.bp.UnpinPage(pid, false)
			return pid, nil
		}
		ip := page.InternalPage{BTreePage: bpg}
		idx := ip.Lookup(key, t.km.Compare)
		child := ip.ValueAt(idx)
		t.bp.UnpinPage(pid, false)
		pid = child
	}
}

// GetValue looks up key, returning its RowID and found=true, or found=false
// if no such key exists.
func (t *BTree) GetValue(key []byte) (types.RowID, bool, error) {
	if t.IsEmpty() {
		return types.InvalidRowID, false, nil
	}
	leafPid, err := t.findLeaf(key)
	if err != nil {
		return types.InvalidRowID, false, err
	}
	frame, err := t.bp.FetchPage(leafPid)
	if err != nil {
		return types.InvalidRowID, false, fmt.Errorf("index: GetValue: %w", err)
	}
	defer t.bp.UnpinPage(leafPid, false)

	lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
	idx, found := lp.Lookup(key, t.km.Compare)
	if !found {
		return types.InvalidRowID, false, nil
	}
	return lp.ValueAt(idx), true, nil
}

func (t *BTree) setParent(childPid, parentPid types.PageID) error {
	frame, err := t.bp.FetchPage(childPid)
	if err != nil {
		return fmt.Errorf("index: setParent: %w", err)
	}
	page.BTreePage(frame.Data).SetParentPageID(parentPid)
	t.bp.UnpinPage(childPid, true)
	return nil
}

// Insert adds (key, rid). Returns dberr.AlreadyExist if key is already
// present, preserving the tree's unique-key invariant.
func (t *BTree) Insert(key []byte, rid types.RowID) error {
	if t.IsEmpty() {
		return t.startNewTree(key, rid)
	}

	leafPid, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	frame, err := t.bp.FetchPage(leafPid)
	if err != nil {
		return fmt.Errorf("index: Insert: %w", err)
	}
	lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
	idx, found := lp.Lookup(key, t.km.Compare)
	if found {
		t.bp.UnpinPage(leafPid, false)
		return fmt.Errorf("index: Insert: %w", dberr.AlreadyExist)
	}
	lp.InsertAt(idx, key, rid)

	if !lp.IsOverflow() {
		t.bp.UnpinPage(leafPid, true)
		return nil
	}
	return t.splitLeaf(leafPid, lp)
}

func (t *BTree) startNewTree(key []byte, rid types.RowID) error {
	frame, pid, err := t.bp.NewPage()
	if err != nil {
		return fmt.Errorf("index: startNewTree: %w", err)
	}
	lp := page.InitLeafPage(frame.Data, pid, types.InvalidPageID, t.km.KeySize())
	if t.leafMaxSize > 0 {
		lp.SetMaxSize(t.leafMaxSize)
	}
	lp.InsertAt(0, key, rid)
	t.bp.UnpinPage(pid, true)
	return t.updateRoot(pid)
}

func (t *BTree) splitLeaf(pid types.PageID, lp page.LeafPage) error {
	newFrame, newPid, err := t.bp.NewPage()
	if err != nil {
		t.bp.UnpinPage(pid, true)
		return fmt.Errorf("index: splitLeaf: %w", err)
	}
	nlp := page.InitLeafPage(newFrame.Data, newPid, lp.ParentPageID(), t.km.KeySize())
	nlp.SetMaxSize(lp.MaxSize())

	n := int(lp.Size())
	mid := n / 2
	for i := mid; i < n; i++ {
		nlp.InsertAt(i-mid, lp.KeyAt(i), lp.ValueAt(i))
	}
	lp.SetSize(uint32(mid))

	nlp.SetNextPageID(lp.NextPageID())
	lp.SetNextPageID(newPid)

	sepKey := append([]byte(nil), nlp.KeyAt(0)...)

	if t.met != nil {
		t.met.RecordSplit()
	}
	if t.log != nil {
		t.log.LogSplit(int32(pid), true)
	}

	t.bp.UnpinPage(pid, true)
	t.bp.UnpinPage(newPid, true)

	return t.insertIntoParent(pid, sepKey, newPid)
}

// insertIntoParent adds a (key, rightPid) separator above leftPid/rightPid,
// creating a new root if leftPid currently has none, and recursively
// splitting the parent if that overflows it.
func (t *BTree) insertIntoParent(leftPid types.PageID, key []byte, rightPid types.PageID) error {
	leftFrame, err := t.bp.FetchPage(leftPid)
	if err != nil {
		return fmt.Errorf("index: insertIntoParent: %w", err)
	}
	parentPid := page.BTreePage(leftFrame.Data).ParentPageID()
	t.bp.UnpinPage(leftPid, false)

	if !parentPid.IsValid() {
		frame, pid, err := t.bp.NewPage()
		if err != nil {
			return fmt.Errorf("index: insertIntoParent: new root: %w", err)
		}
		ip := page.InitInternalPage(frame.Data, pid, types.InvalidPageID, t.km.KeySize())
		if t.internalMaxSize > 0 {
			ip.SetMaxSize(t.internalMaxSize)
		}
		ip.InsertAt(0, make([]byte, t.km.KeySize()), leftPid) // entry 0's key is a sentinel, never read
		ip.InsertAt(1, key, rightPid)
		t.bp.UnpinPage(pid, true)

		if err := t.updateRoot(pid); err != nil {
			return err
		}
		if err := t.setParent(leftPid, pid); err != nil {
			return err
		}
		return t.setParent(rightPid, pid)
	}

	pframe, err := t.bp.FetchPage(parentPid)
	if err != nil {
		return fmt.Errorf("index: insertIntoParent: %w", err)
	}
	ip := page.InternalPage{BTreePage: page.BTreePage(pframe.Data)}
	idx := ip.ValueIndex(leftPid)
	ip.InsertAt(idx+1, key, rightPid)

	if err := t.setParent(rightPid, parentPid); err != nil {
		t.bp.UnpinPage(parentPid, true)
		return err
	}

	if !ip.IsOverflow() {
		t.bp.UnpinPage(parentPid, true)
		return nil
	}
	return t.splitInternal(parentPid, ip)
}

func (t *BTree) splitInternal(pid types.PageID, ip page.InternalPage) error {
	newFrame, newPid, err := t.bp.NewPage()
	if err != nil {
		t.bp.UnpinPage(pid, true)
		return fmt.Errorf("index: splitInternal: %w", err)
	}
	nip := page.InitInternalPage(newFrame.Data, newPid, ip.ParentPageID(), t.km.KeySize())
	nip.SetMaxSize(ip.MaxSize())

	n := int(ip.Size())
	mid := n / 2
	upKey := append([]byte(nil), ip.KeyAt(mid)...)

	for i := mid; i < n; i++ {
		nip.InsertAt(i-mid, ip.KeyAt(i), ip.ValueAt(i))
	}
	ip.SetSize(uint32(mid))

	if t.met != nil {
		t.met.RecordSplit()
	}
	if t.log != nil {
		t.log.LogSplit(int32(pid), false)
	}

	t.bp.UnpinPage(pid, true)
	t.bp.UnpinPage(newPid, true)

	for i := 0; i < int(nip.Size()); i++ {
		if err := t.setParent(nip.ValueAt(i), newPid); err != nil {
			return err
		}
	}

	return t.insertIntoParent(pid, upKey, newPid)
}

// Remove deletes key, rebalancing the tree (redistribute or merge with a
// sibling) if the owning page underflows.
func (t *BTree) Remove(key []byte) error {
	if t.IsEmpty() {
		return fmt.Errorf("index: Remove: %w", dberr.KeyNotFound)
	}
	leafPid, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	frame, err := t.bp.FetchPage(leafPid)
	if err != nil {
		return fmt.Errorf("index: Remove: %w", err)
	}
	lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
	idx, found := lp.Lookup(key, t.km.Compare)
	if !found {
		t.bp.UnpinPage(leafPid, false)
		return fmt.Errorf("index: Remove: %w", dberr.KeyNotFound)
	}
	lp.RemoveAt(idx)
	wasMin := idx == 0
	newSize := lp.Size()
	var newMin []byte
	if wasMin && newSize > 0 {
		newMin = append([]byte(nil), lp.KeyAt(0)...)
	}
	isRoot := lp.IsRoot()
	t.bp.UnpinPage(leafPid, true)

	if wasMin && newSize > 0 && !isRoot {
		if err := t.updateAncestorSeparator(leafPid, newMin); err != nil {
			return err
		}
	}

	return t.coalesceOrRedistribute(leafPid)
}

// updateAncestorSeparator handles a removed leaf minimum: the leaf's
// subtree no longer starts at the separator key its ancestors recorded.
// Walk up the parent chain through the leftmost-pointer links (the chain of
// ancestors for which childPid is entry 0) until reaching an ancestor where
// childPid is *not* the leftmost pointer, and rewrite that ancestor's
// separator to newMin.
func (t *BTree) updateAncestorSeparator(childPid types.PageID, newMin []byte) error {
	for {
		frame, err := t.bp.FetchPage(childPid)
		if err != nil {
			return fmt.Errorf("index: updateAncestorSeparator: %w", err)
		}
		parentPid := page.BTreePage(frame.Data).ParentPageID()
		t.bp.UnpinPage(childPid, false)

		if !parentPid.IsValid() {
			return nil
		}

		pframe, err := t.bp.FetchPage(parentPid)
		if err != nil {
			return fmt.Errorf("index: updateAncestorSeparator: %w", err)
		}
		ip := page.InternalPage{BTreePage: page.BTreePage(pframe.Data)}
		idx := ip.ValueIndex(childPid)
		if idx > 0 {
			ip.SetKeyAt(idx, newMin)
			t.bp.UnpinPage(parentPid, true)
			return nil
		}
		t.bp.UnpinPage(parentPid, false)
		childPid = parentPid
	}
}

// coalesceOrRedistribute checks pid for underflow and, if found, either
// merges it with a sibling or borrows one entry from a sibling.
func (t *BTree) coalesceOrRedistribute(pid types.PageID) error {
	frame, err := t.bp.FetchPage(pid)
	if err != nil {
		return fmt.Errorf("index: coalesceOrRedistribute: %w", err)
	}
	bpg := page.BTreePage(frame.Data)

	if bpg.IsRoot() {
		t.bp.UnpinPage(pid, false)
		return t.adjustRoot(pid)
	}
	if !bpg.IsUnderflow() {
		t.bp.UnpinPage(pid, false)
		return nil
	}
	parentPid := bpg.ParentPageID()
	t.bp.UnpinPage(pid, false)

	pframe, err := t.bp.FetchPage(parentPid)
	if err != nil {
		return fmt.Errorf("index: coalesceOrRedistribute: %w", err)
	}
	ip := page.InternalPage{BTreePage: page.BTreePage(pframe.Data)}
	idx := ip.ValueIndex(pid)

	hasLeft := idx > 0
	hasRight := idx+1 < int(ip.Size())
	var leftPid, rightPid types.PageID
	if hasLeft {
		leftPid = ip.ValueAt(idx - 1)
	}
	if hasRight {
		rightPid = ip.ValueAt(idx + 1)
	}
	t.bp.UnpinPage(parentPid, false)

	// Priority: redistribute from the left sibling first, then the right,
	// each only when the sibling has spare capacity above its own minimum.
	// Merge is the fallback.
	if hasLeft {
		frame, err := t.bp.FetchPage(leftPid)
		if err != nil {
			return fmt.Errorf("index: coalesceOrRedistribute: %w", err)
		}
		spare := page.BTreePage(frame.Data).Size() > page.BTreePage(frame.Data).MinSize()
		t.bp.UnpinPage(leftPid, false)
		if spare {
			if t.met != nil {
				t.met.RecordRedistribution()
			}
			if t.log != nil {
				t.log.LogMerge(int32(pid), true)
			}
			return t.redistribute(leftPid, pid, parentPid, idx, true)
		}
	}
	if hasRight {
		frame, err := t.bp.FetchPage(rightPid)
		if err != nil {
			return fmt.Errorf("index: coalesceOrRedistribute: %w", err)
		}
		spare := page.BTreePage(frame.Data).Size() > page.BTreePage(frame.Data).MinSize()
		t.bp.UnpinPage(rightPid, false)
		if spare {
			if t.met != nil {
				t.met.RecordRedistribution()
			}
			if t.log != nil {
				t.log.LogMerge(int32(pid), true)
			}
			return t.redistribute(rightPid, pid, parentPid, idx, false)
		}
	}

	if t.met != nil {
		t.met.RecordMerge()
	}
	if t.log != nil {
		t.log.LogMerge(int32(pid), false)
	}
	if hasLeft {
		return t.coalesce(leftPid, pid, parentPid, idx)
	}
	return t.coalesce(pid, rightPid, parentPid, idx+1)
}

// coalesce merges rightPid's entries into leftPid, frees rightPid, removes
// its separator (at rightIdx) from the parent, and recurses on the parent
// in case that removal underflowed it in turn.
func (t *BTree) coalesce(leftPid, rightPid, parentPid types.PageID, rightIdx int) error {
	pFrame, err := t.bp.FetchPage(parentPid)
	if err != nil {
		return fmt.Errorf("index: coalesce: %w", err)
	}
	sepKey := append([]byte(nil), page.InternalPage{BTreePage: page.BTreePage(pFrame.Data)}.KeyAt(rightIdx)...)
	t.bp.UnpinPage(parentPid, false)

	lFrame, err := t.bp.FetchPage(leftPid)
	if err != nil {
		return fmt.Errorf("index: coalesce: %w", err)
	}
	rFrame, err := t.bp.FetchPage(rightPid)
	if err != nil {
		t.bp.UnpinPage(leftPid, false)
		return fmt.Errorf("index: coalesce: %w", err)
	}

	if page.BTreePage(lFrame.Data).IsLeaf() {
		lp := page.LeafPage{BTreePage: page.BTreePage(lFrame.Data)}
		rp := page.LeafPage{BTreePage: page.BTreePage(rFrame.Data)}
		base := int(lp.Size())
		for i := 0; i < int(rp.Size()); i++ {
			lp.InsertAt(base+i, rp.KeyAt(i), rp.ValueAt(i))
		}
		lp.SetNextPageID(rp.NextPageID())
	} else {
		lip := page.InternalPage{BTreePage: page.BTreePage(lFrame.Data)}
		rip := page.InternalPage{BTreePage: page.BTreePage(rFrame.Data)}
		base := int(lip.Size())
		moved := make([]types.PageID, 0, rip.Size())
		for i := 0; i < int(rip.Size()); i++ {
			lip.InsertAt(base+i, rip.KeyAt(i), rip.ValueAt(i))
			moved = append(moved, rip.ValueAt(i))
		}
		// The right node's entry 0 carried the unused placeholder key; the
		// separator the two nodes shared in the parent descends into its
		// place at the merge boundary.
		lip.SetKeyAt(base, sepKey)
		for _, childPid := range moved {
			if err := t.setParent(childPid, leftPid); err != nil {
				t.bp.UnpinPage(leftPid, true)
				t.bp.UnpinPage(rightPid, false)
				return err
			}
		}
	}

	t.bp.UnpinPage(leftPid, true)
	t.bp.UnpinPage(rightPid, false)

	ok, err := t.bp.DeletePage(rightPid)
	if err != nil {
		return fmt.Errorf("index: coalesce: freeing %s: %w", rightPid, err)
	}
	if !ok {
		return fmt.Errorf("index: coalesce: %w: page %s still pinned", dberr.Failed, rightPid)
	}

	pFrame, err = t.bp.FetchPage(parentPid)
	if err != nil {
		return fmt.Errorf("index: coalesce: %w", err)
	}
	page.InternalPage{BTreePage: page.BTreePage(pFrame.Data)}.RemoveAt(rightIdx)
	t.bp.UnpinPage(parentPid, true)

	return t.coalesceOrRedistribute(parentPid)
}

// redistribute borrows a single entry from siblingPid into pid to resolve
// pid's underflow without a merge, updating the separator key the two share
// in the parent.
func (t *BTree) redistribute(siblingPid, pid, parentPid types.PageID, idx int, siblingIsPrev bool) error {
	sFrame, err := t.bp.FetchPage(siblingPid)
	if err != nil {
		return fmt.Errorf("index: redistribute: %w", err)
	}
	frame, err := t.bp.FetchPage(pid)
	if err != nil {
		t.bp.UnpinPage(siblingPid, false)
		return fmt.Errorf("index: redistribute: %w", err)
	}
	pFrame, err := t.bp.FetchPage(parentPid)
	if err != nil {
		t.bp.UnpinPage(siblingPid, false)
		t.bp.UnpinPage(pid, false)
		return fmt.Errorf("index: redistribute: %w", err)
	}
	ip := page.InternalPage{BTreePage: page.BTreePage(pFrame.Data)}

	if page.BTreePage(frame.Data).IsLeaf() {
		lp := page.LeafPage{BTreePage: page.BTreePage(frame.Data)}
		sp := page.LeafPage{BTreePage: page.BTreePage(sFrame.Data)}
		if siblingIsPrev {
			last := int(sp.Size()) - 1
			key := append([]byte(nil), sp.KeyAt(last)...)
			val := sp.ValueAt(last)
			sp.RemoveAt(last)
			lp.InsertAt(0, key, val)
			ip.SetKeyAt(idx, key)
		} else {
			key := append([]byte(nil), sp.KeyAt(0)...)
			val := sp.ValueAt(0)
			sp.RemoveAt(0)
			lp.InsertAt(int(lp.Size()), key, val)
			ip.SetKeyAt(idx+1, append([]byte(nil), sp.KeyAt(0)...))
		}
	} else {
		lip := page.InternalPage{BTreePage: page.BTreePage(frame.Data)}
		sip := page.InternalPage{BTreePage: page.BTreePage(sFrame.Data)}
		if siblingIsPrev {
			last := int(sip.Size()) - 1
			pulledKey := append([]byte(nil), sip.KeyAt(last)...)
			pulledChild := sip.ValueAt(last)
			downKey := append([]byte(nil), ip.KeyAt(idx)...)
			sip.RemoveAt(last)
			lip.InsertAt(0, downKey, pulledChild)
			// The old first entry shifted to position 1; its key slot was the
			// unused placeholder and must now carry the separator that
			// descended from the parent.
			lip.SetKeyAt(1, downKey)
			if err := t.setParent(pulledChild, lip.PageID()); err != nil {
				t.bp.UnpinPage(siblingPid, true)
				t.bp.UnpinPage(pid, true)
				t.bp.UnpinPage(parentPid, true)
				return err
			}
			ip.SetKeyAt(idx, pulledKey)
		} else {
			pulledChild := sip.ValueAt(0)
			downKey := append([]byte(nil), ip.KeyAt(idx+1)...)
			nextKey := append([]byte(nil), sip.KeyAt(1)...)
			sip.RemoveAt(0)
			lip.InsertAt(int(lip.Size()), downKey, pulledChild)
			if err := t.setParent(pulledChild, lip.PageID()); err != nil {
				t.bp.UnpinPage(siblingPid, true)
				t.bp.UnpinPage(pid, true)
				t.bp.UnpinPage(parentPid, true)
				return err
			}
			ip.SetKeyAt(idx+1, nextKey)
		}
	}

	t.bp.UnpinPage(siblingPid, true)
	t.bp.UnpinPage(pid, true)
	t.bp.UnpinPage(parentPid, true)
	return nil
}

// DropAll frees every page belonging to the tree, used when the index
// itself is dropped from the catalog.
func (t *BTree) DropAll() error {
	if t.IsEmpty() {
		return nil
	}
	if err := t.dropSubtree(t.rootPageID); err != nil {
		return err
	}
	return t.updateRoot(types.InvalidPageID)
}

func (t *BTree) dropSubtree(pid types.PageID) error {
	frame, err := t.bp.FetchPage(pid)
	if err != nil {
		return fmt.Errorf("index: DropAll: %w", err)
	}
	bpg := page.BTreePage(frame.Data)

	var children []types.PageID
	if !bpg.IsLeaf() {
		ip := page.InternalPage{BTreePage: bpg}
		for i := 0; i < int(ip.Size()); i++ {
			children = append(children, ip.ValueAt(i))
		}
	}
	t.bp.UnpinPage(pid, false)

	for _, c := range children {
		if err := t.dropSubtree(c); err != nil {
			return err
		}
	}

	ok, err := t.bp.DeletePage(pid)
	if err != nil {
		return fmt.Errorf("index: DropAll: freeing %s: %w", pid, err)
	}
	if !ok {
		return fmt.Errorf("index: DropAll: %w: page %s still pinned", dberr.Failed, pid)
	}
	return nil
}

// adjustRoot handles the two cases where the root itself needs fixing up
// after a deletion: an internal root left with a single child (that child
// becomes the new root), or a leaf root left empty (the tree becomes
// empty).
func (t *BTree) adjustRoot(pid types.PageID) error {
	frame, err := t.bp.FetchPage(pid)
	if err != nil {
		return fmt.Errorf("index: adjustRoot: %w", err)
	}
	bpg := page.BTreePage(frame.Data)

	if !bpg.IsLeaf() && bpg.Size() == 1 {
		ip := page.InternalPage{BTreePage: bpg}
		onlyChild := ip.ValueAt(0)
		t.bp.UnpinPage(pid, false)

		ok, err := t.bp.DeletePage(pid)
		if err != nil {
			return fmt.Errorf("index: adjustRoot: %w", err)
		}
		if !ok {
			return fmt.Errorf("index: adjustRoot: %w: page %s still pinned", dberr.Failed, pid)
		}
		if err := t.updateRoot(onlyChild); err != nil {
			return err
		}
		return t.setParent(onlyChild, types.InvalidPageID)
	}

	if bpg.IsLeaf() && bpg.Size() == 0 {
		t.bp.UnpinPage(pid, false)
		ok, err := t.bp.DeletePage(pid)
		if err != nil {
			return fmt.Errorf("index: adjustRoot: %w", err)
		}
		if !ok {
			return fmt.Errorf("index: adjustRoot: %w: page %s still pinned", dberr.Failed, pid)
		}
		return t.updateRoot(types.InvalidPageID)
	}

	t.bp.UnpinPage(pid, false)
	return nil
}
