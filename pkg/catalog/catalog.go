// Package catalog implements the catalog manager: the persisted registry
// of table and index metadata, rebuilt from the database file's logical
// page 0 on every open, that lets the storage engine rediscover a table's
// heap and an index's root after a restart.
package catalog

import (
	"fmt"

	"github.com/relicdb/minisql/internal/logger"
	"github.com/relicdb/minisql/internal/metrics"
	"github.com/relicdb/minisql/pkg/buffer"
	"github.com/relicdb/minisql/pkg/dberr"
	"github.com/relicdb/minisql/pkg/index"
	"github.com/relicdb/minisql/pkg/page"
	"github.com/relicdb/minisql/pkg/record"
	"github.com/relicdb/minisql/pkg/table"
	"github.com/relicdb/minisql/pkg/types"
)

// TableInfo is the catalog's materialized handle to one table: its schema
// and a Heap ready for inserts/scans.
type TableInfo struct {
	ID     uint32
	Name   string
	Schema record.Schema
	Heap   *table.Heap

	metaPageID types.PageID
}

// IndexInfo is the catalog's materialized handle to one index: the
// key-column subset it was built over and a BTree ready for lookups/range
// scans.
type IndexInfo struct {
	ID        uint32
	Name      string
	TableID   uint32
	TableName string
	// KeyOrdinals holds, in index-key order, the ordinal position of each
	// key column within the owning table's full schema.
	KeyOrdinals []int
	KeyManager  *index.KeyManager
	Tree        *index.BTree

	metaPageID types.PageID
}

// Manager is the catalog: it owns the meta page at logical page 0, the
// persisted (id -> meta page id) maps, and in-memory lookup caches plus
// materialized TableInfo/IndexInfo handles for every registered table and
// index.
type Manager struct {
	bp  *buffer.Pool
	log *logger.Logger
	met *metrics.Metrics

	nextTableID uint32
	nextIndexID uint32

	tables       map[uint32]*TableInfo
	tableByName  map[string]uint32
	indexes      map[uint32]*IndexInfo
	tableIndexes map[string]map[string]uint32 // table name -> index name -> index id
}

// Init opens the catalog over bp: a fresh database file gets a brand-new,
// empty meta page at logical page 0; an existing one has its meta page read
// back and every table/index it names reconstructed.
func Init(bp *buffer.Pool, isNew bool, met *metrics.Metrics) (*Manager, error) {
	m := &Manager{
		bp:           bp,
		log:          logger.GetGlobalLogger().Component("catalog"),
		met:          met,
		tables:       make(map[uint32]*TableInfo),
		tableByName:  make(map[string]uint32),
		indexes:      make(map[uint32]*IndexInfo),
		tableIndexes: make(map[string]map[string]uint32),
	}

	if isNew {
		if err := m.initFresh(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.loadExisting(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initFresh() error {
	frame, pid, err := m.bp.NewPage()
	if err != nil {
		return fmt.Errorf("catalog: Init: %w", err)
	}
	if pid != types.CatalogMetaPageID {
		m.bp.UnpinPage(pid, false)
		return fmt.Errorf("catalog: Init: %w: expected catalog meta page id %s on a fresh file, got %s",
			dberr.Failed, types.CatalogMetaPageID, pid)
	}
	copy(frame.Data, encodeCatalogMeta(0, 0, nil, nil))
	m.bp.UnpinPage(pid, true)
	return m.flushMeta()
}

func (m *Manager) loadExisting() error {
	frame, err := m.bp.FetchPage(types.CatalogMetaPageID)
	if err != nil {
		return fmt.Errorf("catalog: Init: %w", err)
	}
	dm, err := decodeCatalogMeta(frame.Data)
	m.bp.UnpinPage(types.CatalogMetaPageID, false)
	if err != nil {
		return fmt.Errorf("catalog: Init: %w: %v", dberr.Failed, err)
	}
	m.nextTableID = dm.nextTableID
	m.nextIndexID = dm.nextIndexID

	for _, e := range dm.tables {
		if err := m.loadTable(e.id, e.metaID); err != nil {
			return err
		}
	}
	for _, e := range dm.indexes {
		if err := m.loadIndex(e.id, e.metaID); err != nil {
			return err
		}
	}
	m.reportCounts()
	return nil
}

func (m *Manager) loadTable(tableID uint32, metaPageID types.PageID) error {
	frame, err := m.bp.FetchPage(metaPageID)
	if err != nil {
		return fmt.Errorf("catalog: loading table %d: %w", tableID, err)
	}
	dt, err := decodeTableMeta(frame.Data)
	m.bp.UnpinPage(metaPageID, false)
	if err != nil {
		return fmt.Errorf("catalog: loading table %d: %w: %v", tableID, dberr.Failed, err)
	}

	heap, err := table.OpenHeap(m.bp, dt.firstPageID)
	if err != nil {
		return fmt.Errorf("catalog: loading table %q: %w", dt.name, err)
	}

	info := &TableInfo{
		ID:         dt.tableID,
		Name:       dt.name,
		Schema:     dt.schema,
		Heap:       heap,
		metaPageID: metaPageID,
	}
	m.tables[info.ID] = info
	m.tableByName[info.Name] = info.ID
	m.tableIndexes[info.Name] = make(map[string]uint32)
	return nil
}

func (m *Manager) loadIndex(indexID uint32, metaPageID types.PageID) error {
	frame, err := m.bp.FetchPage(metaPageID)
	if err != nil {
		return fmt.Errorf("catalog: loading index %d: %w", indexID, err)
	}
	di, err := decodeIndexMeta(frame.Data)
	m.bp.UnpinPage(metaPageID, false)
	if err != nil {
		return fmt.Errorf("catalog: loading index %d: %w: %v", indexID, dberr.Failed, err)
	}

	tableInfo, ok := m.tables[di.tableID]
	if !ok {
		return fmt.Errorf("catalog: loading index %q: %w: owning table %d not found", di.name, dberr.Failed, di.tableID)
	}

	keyColumns := make([]record.Column, len(di.ordinals))
	for i, ord := range di.ordinals {
		col, err := tableInfo.Schema.GetColumn(ord)
		if err != nil {
			return fmt.Errorf("catalog: loading index %q: %w", di.name, err)
		}
		keyColumns[i] = col
	}
	km := index.NewKeyManager(keyColumns)

	rootPageID, err := m.lookupRoot(di.indexID)
	if err != nil {
		return err
	}
	bt := index.OpenBTree(m.bp, di.indexID, rootPageID, km, m.met)

	info := &IndexInfo{
		ID:          di.indexID,
		Name:        di.name,
		TableID:     di.tableID,
		TableName:   tableInfo.Name,
		KeyOrdinals: di.ordinals,
		KeyManager:  km,
		Tree:        bt,
		metaPageID:  metaPageID,
	}
	m.indexes[info.ID] = info
	m.tableIndexes[tableInfo.Name][info.Name] = info.ID
	return nil
}

func (m *Manager) lookupRoot(indexID uint32) (types.PageID, error) {
	frame, err := m.bp.FetchPage(types.IndexRootsPageID)
	if err != nil {
		return types.InvalidPageID, fmt.Errorf("catalog: reading index-roots page: %w", err)
	}
	defer m.bp.UnpinPage(types.IndexRootsPageID, false)
	root, _ := page.IndexRootsPage(frame.Data).Lookup(indexID)
	return root, nil
}

// flushMeta re-serializes the catalog's own meta page and writes it
// through immediately, called after every structural change.
func (m *Manager) flushMeta() error {
	tables := make([]idEntry, 0, len(m.tables))
	for id, info := range m.tables {
		tables = append(tables, idEntry{id: id, metaID: info.metaPageID})
	}
	indexes := make([]idEntry, 0, len(m.indexes))
	for id, info := range m.indexes {
		indexes = append(indexes, idEntry{id: id, metaID: info.metaPageID})
	}

	frame, err := m.bp.FetchPage(types.CatalogMetaPageID)
	if err != nil {
		return fmt.Errorf("catalog: FlushCatalogMetaPage: %w", err)
	}
	copy(frame.Data, encodeCatalogMeta(m.nextTableID, m.nextIndexID, tables, indexes))
	m.bp.UnpinPage(types.CatalogMetaPageID, true)
	if _, err := m.bp.FlushPage(types.CatalogMetaPageID); err != nil {
		return fmt.Errorf("catalog: FlushCatalogMetaPage: %w", err)
	}
	return nil
}

func (m *Manager) reportCounts() {
	if m.met != nil {
		m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	}
}

// CreateTable registers a new, empty table named name with the given
// schema.
func (m *Manager) CreateTable(name string, schema record.Schema) (*TableInfo, error) {
	if _, exists := m.tableByName[name]; exists {
		return nil, fmt.Errorf("catalog: CreateTable(%q): %w", name, dberr.TableAlreadyExist)
	}

	heap, err := table.CreateHeap(m.bp)
	if err != nil {
		return nil, fmt.Errorf("catalog: CreateTable(%q): %w", name, err)
	}

	tableID := m.nextTableID
	m.nextTableID++

	metaFrame, metaPid, err := m.bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("catalog: CreateTable(%q): %w", name, err)
	}
	copy(metaFrame.Data, encodeTableMeta(tableID, name, heap.FirstPageID(), schema))
	m.bp.UnpinPage(metaPid, true)

	info := &TableInfo{ID: tableID, Name: name, Schema: schema, Heap: heap, metaPageID: metaPid}
	m.tables[tableID] = info
	m.tableByName[name] = tableID
	m.tableIndexes[name] = make(map[string]uint32)

	if err := m.flushMeta(); err != nil {
		return nil, err
	}
	m.reportCounts()
	if m.log != nil {
		m.log.LogTableCreated(name, tableID)
	}
	return info, nil
}

// GetTable returns the table registered under name.
func (m *Manager) GetTable(name string) (*TableInfo, error) {
	id, ok := m.tableByName[name]
	if !ok {
		return nil, fmt.Errorf("catalog: GetTable(%q): %w", name, dberr.TableNotExist)
	}
	return m.tables[id], nil
}

// GetTableByID returns the table registered under the numeric id tableID.
func (m *Manager) GetTableByID(tableID uint32) (*TableInfo, error) {
	info, ok := m.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("catalog: GetTableByID(%d): %w", tableID, dberr.TableNotExist)
	}
	return info, nil
}

// GetAllTables returns every registered table, in no particular order.
func (m *Manager) GetAllTables() []*TableInfo {
	out := make([]*TableInfo, 0, len(m.tables))
	for _, info := range m.tables {
		out = append(out, info)
	}
	return out
}

// CreateIndex builds a new index named indexName over table tableName's
// columnNames (in the given order), backfills it from every existing row,
// and registers it in the catalog.
func (m *Manager) CreateIndex(tableName, indexName string, columnNames []string) (*IndexInfo, error) {
	tableInfo, err := m.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, exists := m.tableIndexes[tableName][indexName]; exists {
		return nil, fmt.Errorf("catalog: CreateIndex(%q, %q): %w", tableName, indexName, dberr.IndexAlreadyExist)
	}

	ordinals := make([]int, len(columnNames))
	keyColumns := make([]record.Column, len(columnNames))
	for i, colName := range columnNames {
		ord, err := tableInfo.Schema.GetColIndex(colName)
		if err != nil {
			return nil, fmt.Errorf("catalog: CreateIndex(%q, %q): %w: column %q", tableName, indexName, dberr.ColumnNameNotExist, colName)
		}
		ordinals[i] = ord
		keyColumns[i], _ = tableInfo.Schema.GetColumn(ord)
	}
	km := index.NewKeyManager(keyColumns)

	indexID := m.nextIndexID
	m.nextIndexID++

	metaFrame, metaPid, err := m.bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("catalog: CreateIndex(%q, %q): %w", tableName, indexName, err)
	}
	copy(metaFrame.Data, encodeIndexMeta(indexID, indexName, tableInfo.ID, ordinals))
	m.bp.UnpinPage(metaPid, true)

	bt := index.CreateBTree(m.bp, indexID, km, m.met)
	backfilled, err := m.backfill(bt, km, tableInfo)
	if err != nil {
		return nil, fmt.Errorf("catalog: CreateIndex(%q, %q): backfill: %w", tableName, indexName, err)
	}

	info := &IndexInfo{
		ID:          indexID,
		Name:        indexName,
		TableID:     tableInfo.ID,
		TableName:   tableName,
		KeyOrdinals: ordinals,
		KeyManager:  km,
		Tree:        bt,
		metaPageID:  metaPid,
	}
	m.indexes[indexID] = info
	m.tableIndexes[tableName][indexName] = indexID

	if err := m.flushMeta(); err != nil {
		return nil, err
	}
	m.reportCounts()
	if m.log != nil {
		m.log.LogIndexCreated(indexName, tableName, indexID, backfilled)
	}
	return info, nil
}

// backfill scans tableInfo's heap and inserts every existing row's key
// into bt.
func (m *Manager) backfill(bt *index.BTree, km *index.KeyManager, tableInfo *TableInfo) (int, error) {
	it, err := tableInfo.Heap.Begin()
	if err != nil {
		return 0, err
	}
	count := 0
	for !it.End() {
		rid, data, err := it.Current()
		if err != nil {
			return count, err
		}
		row, err := record.DeserializeRow(data, tableInfo.Schema)
		if err != nil {
			return count, err
		}
		key, err := km.BuildKey(row, tableInfo.Schema)
		if err != nil {
			return count, err
		}
		if err := bt.Insert(key, rid); err != nil {
			return count, err
		}
		count++
		if err := it.Next(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// GetIndex returns the index named indexName defined on table tableName.
func (m *Manager) GetIndex(tableName, indexName string) (*IndexInfo, error) {
	byName, ok := m.tableIndexes[tableName]
	if !ok {
		return nil, fmt.Errorf("catalog: GetIndex(%q, %q): %w", tableName, indexName, dberr.TableNotExist)
	}
	id, ok := byName[indexName]
	if !ok {
		return nil, fmt.Errorf("catalog: GetIndex(%q, %q): %w", tableName, indexName, dberr.IndexNotFound)
	}
	return m.indexes[id], nil
}

// GetIndexByID returns the index registered under the numeric id indexID.
func (m *Manager) GetIndexByID(indexID uint32) (*IndexInfo, error) {
	info, ok := m.indexes[indexID]
	if !ok {
		return nil, fmt.Errorf("catalog: GetIndexByID(%d): %w", indexID, dberr.IndexNotFound)
	}
	return info, nil
}

// GetTableIndexes returns every index defined on tableName.
func (m *Manager) GetTableIndexes(tableName string) ([]*IndexInfo, error) {
	byName, ok := m.tableIndexes[tableName]
	if !ok {
		return nil, fmt.Errorf("catalog: GetTableIndexes(%q): %w", tableName, dberr.TableNotExist)
	}
	out := make([]*IndexInfo, 0, len(byName))
	for _, id := range byName {
		out = append(out, m.indexes[id])
	}
	return out, nil
}

// DropIndex removes indexName from tableName, freeing its B+-tree pages
// and its meta page.
func (m *Manager) DropIndex(tableName, indexName string) error {
	info, err := m.GetIndex(tableName, indexName)
	if err != nil {
		return err
	}

	if err := info.Tree.DropAll(); err != nil {
		return fmt.Errorf("catalog: DropIndex(%q, %q): %w", tableName, indexName, err)
	}
	if ok, err := m.bp.DeletePage(info.metaPageID); err != nil {
		return fmt.Errorf("catalog: DropIndex(%q, %q): %w", tableName, indexName, err)
	} else if !ok {
		return fmt.Errorf("catalog: DropIndex(%q, %q): %w: meta page still pinned", tableName, indexName, dberr.Failed)
	}

	delete(m.indexes, info.ID)
	delete(m.tableIndexes[tableName], indexName)

	if err := m.flushMeta(); err != nil {
		return err
	}
	m.reportCounts()
	if m.log != nil {
		m.log.LogIndexDropped(indexName, tableName, info.ID)
	}
	return nil
}

// DropTable removes tableName from the catalog, cascading to drop every
// index defined on it first, then reclaiming the table's heap pages and its
// own meta page.
func (m *Manager) DropTable(tableName string) error {
	info, err := m.GetTable(tableName)
	if err != nil {
		return err
	}

	for indexName := range m.tableIndexes[tableName] {
		if err := m.DropIndex(tableName, indexName); err != nil {
			return fmt.Errorf("catalog: DropTable(%q): dropping index %q: %w", tableName, indexName, err)
		}
	}

	if err := info.Heap.DeleteTable(); err != nil {
		return fmt.Errorf("catalog: DropTable(%q): %w", tableName, err)
	}
	if ok, err := m.bp.DeletePage(info.metaPageID); err != nil {
		return fmt.Errorf("catalog: DropTable(%q): %w", tableName, err)
	} else if !ok {
		return fmt.Errorf("catalog: DropTable(%q): %w: meta page still pinned", tableName, dberr.Failed)
	}

	delete(m.tables, info.ID)
	delete(m.tableByName, tableName)
	delete(m.tableIndexes, tableName)

	if err := m.flushMeta(); err != nil {
		return err
	}
	m.reportCounts()
	if m.log != nil {
		m.log.LogTableDropped(tableName, info.ID)
	}
	return nil
}
