// Package table implements the heap-organized table store: a singly-linked
// chain of slotted TablePages holding a table's tuples, reached exclusively
// through the buffer pool.
package table

import (
	"fmt"

	"github.com/relicdb/minisql/internal/logger"
	"github.com/relicdb/minisql/pkg/buffer"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/types"
)

// Heap is one table's page chain.
type Heap struct {
	bp          *buffer.Pool
	firstPageID types.PageID
	lastPageID  types.PageID // current tail, updated as the chain grows

	log *logger.Logger
}

// CreateHeap allocates a brand-new, empty heap (one page).
func CreateHeap(bp *buffer.Pool) (*Heap, error) {
	frame, pid, err := bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("table: CreateHeap: %w", err)
	}
	page.InitTablePage(frame.Data, pid, types.InvalidPageID)
	bp.UnpinPage(pid, true)

	return &Heap{
		bp:          bp,
		firstPageID: pid,
		lastPageID:  pid,
		log:         logger.GetGlobalLogger().Component("table"),
	}, nil
}

// OpenHeap reconstructs a Heap over an existing page chain starting at
// firstPageID (as recorded by the catalog), walking it once to find the
// current tail.
func OpenHeap(bp *buffer.Pool, firstPageID types.PageID) (*Heap, error) {
	h := &Heap{bp: bp, firstPageID: firstPageID, log: logger.GetGlobalLogger().Component("table")}

	pid := firstPageID
	for {
		frame, err := bp.FetchPage(pid)
		if err != nil {
			return nil, fmt.Errorf("table: OpenHeap: %w", err)
		}
		frame.RLatch()
		next := page.TablePage(frame.Data).NextPageID()
		frame.RUnlatch()
		bp.UnpinPage(pid, false)
		if !next.IsValid() {
			h.lastPageID = pid
			return h, nil
		}
		pid = next
	}
}

// FirstPageID returns the id of the heap's first page, the value the
// catalog persists to find this table again.
func (h *Heap) FirstPageID() types.PageID { return h.firstPageID }

// InsertTuple writes data into the heap and returns the tuple's RowID. It
// walks the page chain from the first page looking for one with enough free
// space, so slots freed by earlier deletes get reused; only when no
// existing page has room does it link a new page onto the tail.
func (h *Heap) InsertTuple(data []byte) (types.RowID, error) {
	pid := h.firstPageID
	for {
		frame, err := h.bp.FetchPage(pid)
		if err != nil {
			return types.InvalidRowID, fmt.Errorf("table: InsertTuple: %w", err)
		}
		frame.WLatch()
		tp := page.TablePage(frame.Data)
		if slot, ok := tp.InsertTuple(data); ok {
			frame.WUnlatch()
			h.bp.UnpinPage(pid, true)
			return types.RowID{PageID: pid, Slot: slot}, nil
		}
		next := tp.NextPageID()
		frame.WUnlatch()
		h.bp.UnpinPage(pid, false)
		if !next.IsValid() {
			break
		}
		pid = next
	}

	// pid is now the tail and no page in the chain had room.
	newFrame, newPid, err := h.bp.NewPage()
	if err != nil {
		return types.InvalidRowID, fmt.Errorf("table: InsertTuple: extending heap: %w", err)
	}
	page.InitTablePage(newFrame.Data, newPid, pid)

	tailFrame, err := h.bp.FetchPage(pid)
	if err != nil {
		return types.InvalidRowID, fmt.Errorf("table: InsertTuple: relinking tail: %w", err)
	}
	tailFrame.WLatch()
	page.TablePage(tailFrame.Data).SetNextPageID(newPid)
	tailFrame.WUnlatch()
	h.bp.UnpinPage(pid, true)
	h.lastPageID = newPid

	newFrame.WLatch()
	ntp := page.TablePage(newFrame.Data)
	slot, ok := ntp.InsertTuple(data)
	newFrame.WUnlatch()
	if !ok {
		h.bp.UnpinPage(newPid, true)
		return types.InvalidRowID, fmt.Errorf("table: InsertTuple: %w: tuple too large for an empty page", dberr.Failed)
	}
	h.bp.UnpinPage(newPid, true)
	return types.RowID{PageID: newPid, Slot: slot}, nil
}

// GetTuple returns a copy of the tuple bytes at rid.
func (h *Heap) GetTuple(rid types.RowID) ([]byte, error) {
	frame, err := h.bp.FetchPage(rid.PageID)
	if err != nil {
		return nil, fmt.Errorf("table: GetTuple(%s): %w", rid, err)
	}
	defer h.bp.UnpinPage(rid.PageID, false)

	frame.RLatch()
	defer frame.RUnlatch()
	data, ok := page.TablePage(frame.Data).GetTuple(rid.Slot)
	if !ok {
		return nil, fmt.Errorf("table: GetTuple(%s): %w", rid, dberr.KeyNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// MarkDelete tombstones rid without reclaiming space.
func (h *Heap) MarkDelete(rid types.RowID) error {
	frame, err := h.bp.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("table: MarkDelete(%s): %w", rid, err)
	}
	defer h.bp.UnpinPage(rid.PageID, true)

	frame.WLatch()
	defer frame.WUnlatch()
	if !page.TablePage(frame.Data).MarkDelete(rid.Slot) {
		return fmt.Errorf("table: MarkDelete(%s): %w", rid, dberr.KeyNotFound)
	}
	return nil
}

// RollbackDelete undoes a MarkDelete, making the tuple live again.
func (h *Heap) RollbackDelete(rid types.RowID) error {
	frame, err := h.bp.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("table: RollbackDelete(%s): %w", rid, err)
	}
	defer h.bp.UnpinPage(rid.PageID, true)

	frame.WLatch()
	defer frame.WUnlatch()
	if !page.TablePage(frame.Data).RollbackDelete(rid.Slot) {
		return fmt.Errorf("table: RollbackDelete(%s): %w", rid, dberr.Failed)
	}
	return nil
}

// ApplyDelete commits a MarkDelete, freeing the slot.
func (h *Heap) ApplyDelete(rid types.RowID) error {
	frame, err := h.bp.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("table: ApplyDelete(%s): %w", rid, err)
	}
	defer h.bp.UnpinPage(rid.PageID, true)

	frame.WLatch()
	defer frame.WUnlatch()
	if !page.TablePage(frame.Data).ApplyDelete(rid.Slot) {
		return fmt.Errorf("table: ApplyDelete(%s): %w", rid, dberr.Failed)
	}
	return nil
}

// UpdateTuple overwrites rid's tuple with newData. When newData fits in the
// existing slot it's replaced in place and rid itself is returned; when it
// grew past the slot's capacity, the old slot is mark-deleted and applied,
// and newData is reinserted as a fresh tuple whose RowID is returned
// instead.
func (h *Heap) UpdateTuple(rid types.RowID, newData []byte) (types.RowID, error) {
	frame, err := h.bp.FetchPage(rid.PageID)
	if err != nil {
		return types.InvalidRowID, fmt.Errorf("table: UpdateTuple(%s): %w", rid, err)
	}
	frame.WLatch()
	tp := page.TablePage(frame.Data)
	if tp.UpdateTuple(rid.Slot, newData) {
		frame.WUnlatch()
		h.bp.UnpinPage(rid.PageID, true)
		return rid, nil
	}

	if !tp.MarkDelete(rid.Slot) {
		frame.WUnlatch()
		h.bp.UnpinPage(rid.PageID, false)
		return types.InvalidRowID, fmt.Errorf("table: UpdateTuple(%s): %w", rid, dberr.KeyNotFound)
	}
	if !tp.ApplyDelete(rid.Slot) {
		frame.WUnlatch()
		h.bp.UnpinPage(rid.PageID, true)
		return types.InvalidRowID, fmt.Errorf("table: UpdateTuple(%s): %w", rid, dberr.Failed)
	}
	frame.WUnlatch()
	h.bp.UnpinPage(rid.PageID, true)

	newRid, err := h.InsertTuple(newData)
	if err != nil {
		return types.InvalidRowID, fmt.Errorf("table: UpdateTuple(%s): reinserting grown tuple: %w", rid, err)
	}
	return newRid, nil
}

// DeleteTable walks the heap's entire page chain and frees every page,
// reclaiming the table's disk space when it is dropped.
func (h *Heap) DeleteTable() error {
	pid := h.firstPageID
	for pid.IsValid() {
		frame, err := h.bp.FetchPage(pid)
		if err != nil {
			return fmt.Errorf("table: DeleteTable: %w", err)
		}
		frame.RLatch()
		next := page.TablePage(frame.Data).NextPageID()
		frame.RUnlatch()
		h.bp.UnpinPage(pid, false)

		ok, err := h.bp.DeletePage(pid)
		if err != nil {
			return fmt.Errorf("table: DeleteTable: freeing page %s: %w", pid, err)
		}
		if !ok {
			return fmt.Errorf("table: DeleteTable: %w: page %s is still pinned", dberr.Failed, pid)
		}
		pid = next
	}
	return nil
}
