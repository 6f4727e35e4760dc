package catalog

import (
	"encoding/binary"
	"fmt"

	"github.com/relicdb/minisql/pkg/record"
	"github.com/relicdb/minisql/pkg/types"
)

// Magic numbers: distinct 32-bit little-endian constants for every on-disk
// structure the catalog owns, checked on every decode.
const (
	catalogMetaMagic uint32 = 0x43415430 // "CAT0"
	tableMetaMagic   uint32 = 0x544d4554 // "TMET"
	indexMetaMagic   uint32 = 0x494d4554 // "IMET"
)

// idEntry is a (numeric id -> meta page id) pair, the shape shared by both
// maps the catalog meta page persists.
type idEntry struct {
	id     uint32
	metaID types.PageID
}

// encodeCatalogMeta serializes the catalog's own meta page (logical page
// 0): magic, the two monotonic id counters, then the table and index
// (id -> meta page id) maps as length-prefixed arrays.
func encodeCatalogMeta(nextTableID, nextIndexID uint32, tables, indexes []idEntry) []byte {
	buf := make([]byte, 0, 16+8*(len(tables)+len(indexes))+8)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], catalogMetaMagic)
	buf = append(buf, hdr[:]...)
	buf = appendU32(buf, nextTableID)
	buf = appendU32(buf, nextIndexID)

	buf = appendU32(buf, uint32(len(tables)))
	for _, e := range tables {
		buf = appendU32(buf, e.id)
		buf = appendU32(buf, uint32(int32(e.metaID)))
	}
	buf = appendU32(buf, uint32(len(indexes)))
	for _, e := range indexes {
		buf = appendU32(buf, e.id)
		buf = appendU32(buf, uint32(int32(e.metaID)))
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readU32(buf []byte, pos *int) (uint32, error) {
	if len(buf) < *pos+4 {
		return 0, fmt.Errorf("catalog: short buffer at offset %d", *pos)
	}
	v := binary.LittleEndian.Uint32(buf[*pos : *pos+4])
	*pos += 4
	return v, nil
}

type decodedCatalogMeta struct {
	nextTableID uint32
	nextIndexID uint32
	tables      []idEntry
	indexes     []idEntry
}

func decodeCatalogMeta(buf []byte) (decodedCatalogMeta, error) {
	var d decodedCatalogMeta
	if len(buf) < 12 {
		return d, fmt.Errorf("catalog: short buffer decoding meta header")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != catalogMetaMagic {
		return d, fmt.Errorf("catalog: corrupt meta page: bad magic %#x", magic)
	}
	pos := 4
	var err error
	if d.nextTableID, err = readU32(buf, &pos); err != nil {
		return d, err
	}
	if d.nextIndexID, err = readU32(buf, &pos); err != nil {
		return d, err
	}

	tableCount, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	d.tables = make([]idEntry, 0, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		id, err := readU32(buf, &pos)
		if err != nil {
			return d, err
		}
		pid, err := readU32(buf, &pos)
		if err != nil {
			return d, err
		}
		d.tables = append(d.tables, idEntry{id: id, metaID: types.PageID(int32(pid))})
	}

	indexCount, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	d.indexes = make([]idEntry, 0, indexCount)
	for i := uint32(0); i < indexCount; i++ {
		id, err := readU32(buf, &pos)
		if err != nil {
			return d, err
		}
		pid, err := readU32(buf, &pos)
		if err != nil {
			return d, err
		}
		d.indexes = append(d.indexes, idEntry{id: id, metaID: types.PageID(int32(pid))})
	}
	return d, nil
}

// encodeTableMeta serializes one table's meta page: magic, table id, name,
// its heap's first page id, then the full schema.
func encodeTableMeta(tableID uint32, name string, firstPageID types.PageID, schema record.Schema) []byte {
	buf := make([]byte, 0, 64)
	buf = appendU32(buf, tableMetaMagic)
	buf = appendU32(buf, tableID)
	buf = appendU32(buf, uint32(len(name)))
	buf = append(buf, name...)
	buf = appendU32(buf, uint32(int32(firstPageID)))
	buf = schema.Encode(buf)
	return buf
}

type decodedTableMeta struct {
	tableID     uint32
	name        string
	firstPageID types.PageID
	schema      record.Schema
}

func decodeTableMeta(buf []byte) (decodedTableMeta, error) {
	var d decodedTableMeta
	if len(buf) < 4 {
		return d, fmt.Errorf("catalog: short buffer decoding table meta magic")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != tableMetaMagic {
		return d, fmt.Errorf("catalog: corrupt table meta: bad magic %#x", magic)
	}
	pos := 4
	var err error
	if d.tableID, err = readU32(buf, &pos); err != nil {
		return d, err
	}
	nameLen, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	if len(buf) < pos+int(nameLen) {
		return d, fmt.Errorf("catalog: short buffer decoding table name")
	}
	d.name = string(buf[pos : pos+int(nameLen)])
	pos += int(nameLen)

	fpid, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	d.firstPageID = types.PageID(int32(fpid))

	schema, _, err := record.DecodeSchema(buf[pos:])
	if err != nil {
		return d, fmt.Errorf("catalog: decoding table schema: %w", err)
	}
	d.schema = schema
	return d, nil
}

// encodeIndexMeta serializes one index's meta page: magic, index id, name,
// owning table id, then the ordinal positions (within the table's full
// schema) of the columns the index is keyed on, in index order.
func encodeIndexMeta(indexID uint32, name string, tableID uint32, ordinals []int) []byte {
	buf := make([]byte, 0, 32+4*len(ordinals))
	buf = appendU32(buf, indexMetaMagic)
	buf = appendU32(buf, indexID)
	buf = appendU32(buf, uint32(len(name)))
	buf = append(buf, name...)
	buf = appendU32(buf, tableID)
	buf = appendU32(buf, uint32(len(ordinals)))
	for _, o := range ordinals {
		buf = appendU32(buf, uint32(o))
	}
	return buf
}

type decodedIndexMeta struct {
	indexID  uint32
	name     string
	tableID  uint32
	ordinals []int
}

func decodeIndexMeta(buf []byte) (decodedIndexMeta, error) {
	var d decodedIndexMeta
	if len(buf) < 4 {
		return d, fmt.Errorf("catalog: short buffer decoding index meta magic")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != indexMetaMagic {
		return d, fmt.Errorf("catalog: corrupt index meta: bad magic %#x", magic)
	}
	pos := 4
	var err error
	if d.indexID, err = readU32(buf, &pos); err != nil {
		return d, err
	}
	nameLen, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	if len(buf) < pos+int(nameLen) {
		return d, fmt.Errorf("catalog: short buffer decoding index name")
	}
	d.name = string(buf[pos : pos+int(nameLen)])
	pos += int(nameLen)

	if d.tableID, err = readU32(buf, &pos); err != nil {
		return d, err
	}
	ordCount, err := readU32(buf, &pos)
	if err != nil {
		return d, err
	}
	d.ordinals = make([]int, 0, ordCount)
	for i := uint32(0); i < ordCount; i++ {
		o, err := readU32(buf, &pos)
		if err != nil {
			return d, err
		}
		d.ordinals = append(d.ordinals, int(o))
	}
	return d, nil
}
