package record

import (
	"encoding/binary"
	"fmt"
)

// schemaMagic tags an encoded Schema for on-disk validation.
const schemaMagic uint32 = 0x5343484d // "SCHM"

// Schema is an ordered list of columns describing a table's rows.
type Schema struct {
	Columns []Column
}

// NewSchema builds a schema, stamping each column's TableInd from its
// position.
func NewSchema(columns []Column) Schema {
	for i := range columns {
		columns[i].TableInd = uint32(i)
	}
	return Schema{Columns: columns}
}

// ColumnCount returns the number of columns in the schema.
func (s Schema) ColumnCount() int { return len(s.Columns) }

// GetColumn returns the column at ordinal index idx.
func (s Schema) GetColumn(idx int) (Column, error) {
	if idx < 0 || idx >= len(s.Columns) {
		return Column{}, fmt.Errorf("record: column index %d out of range", idx)
	}
	return s.Columns[idx], nil
}

// GetColIndex returns the ordinal index of the column named name.
func (s Schema) GetColIndex(name string) (int, error) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("record: column %q not found", name)
}

// Encode appends the schema's on-disk form to buf: magic, column count,
// then each column in order.
func (s Schema) Encode(buf []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], schemaMagic)
	buf = append(buf, hdr[:]...)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(s.Columns)))
	buf = append(buf, count[:]...)

	for _, c := range s.Columns {
		buf = c.Encode(buf)
	}
	return buf
}

// DecodeSchema reads a Schema from the start of buf, returning the schema
// and the number of bytes consumed.
func DecodeSchema(buf []byte) (Schema, int, error) {
	if len(buf) < 8 {
		return Schema{}, 0, fmt.Errorf("record: short buffer decoding schema header")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != schemaMagic {
		return Schema{}, 0, fmt.Errorf("record: corrupt schema: bad magic %#x", magic)
	}
	count := int(binary.LittleEndian.Uint32(buf[4:8]))
	pos := 8

	columns := make([]Column, 0, count)
	for i := 0; i < count; i++ {
		col, n, err := DecodeColumn(buf[pos:])
		if err != nil {
			return Schema{}, 0, fmt.Errorf("record: decoding column %d: %w", i, err)
		}
		columns = append(columns, col)
		pos += n
	}
	return Schema{Columns: columns}, pos, nil
}
