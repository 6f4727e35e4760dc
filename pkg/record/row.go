package record

import (
	"encoding/binary"
	"fmt"

	"github.com/relicdb/minisql/pkg/types"
)

// Row is one tuple: a value per schema column, with Nulls marking the
// fields that are SQL NULL, plus the RowID it was read from, when known.
type Row struct {
	Fields []Value
	Nulls  []bool
	RID    types.RowID
}

// NewRow builds a row with every field present.
func NewRow(fields []Value) Row {
	return Row{Fields: fields, Nulls: make([]bool, len(fields))}
}

// Serialize encodes the row per the schema's column order: a field count,
// a null bitmap, then the non-null fields back to back.
func (r Row) Serialize(schema Schema) ([]byte, error) {
	n := schema.ColumnCount()
	if len(r.Fields) != n {
		return nil, fmt.Errorf("record: row has %d fields, schema has %d columns", len(r.Fields), n)
	}

	out := make([]byte, 4, 64)
	binary.LittleEndian.PutUint32(out[0:4], uint32(n))

	bitmapLen := (n + 7) / 8
	bitmap := make([]byte, bitmapLen)
	for i := 0; i < n; i++ {
		if r.isNull(i) {
			if !schema.Columns[i].Nullable {
				return nil, fmt.Errorf("record: column %q is not nullable", schema.Columns[i].Name)
			}
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	out = append(out, bitmap...)

	for i := 0; i < n; i++ {
		if r.isNull(i) {
			continue
		}
		if r.Fields[i].Type != schema.Columns[i].Type {
			return nil, fmt.Errorf("record: column %q expects %s, got %s",
				schema.Columns[i].Name, schema.Columns[i].Type, r.Fields[i].Type)
		}
		out = r.Fields[i].Encode(out)
	}
	return out, nil
}

func (r Row) isNull(i int) bool {
	return i < len(r.Nulls) && r.Nulls[i]
}

// DeserializeRow decodes a row previously produced by Serialize, against the
// same schema.
func DeserializeRow(data []byte, schema Schema) (Row, error) {
	if len(data) < 4 {
		return Row{}, fmt.Errorf("record: short buffer decoding row field count")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if n != schema.ColumnCount() {
		return Row{}, fmt.Errorf("record: row has %d fields, schema has %d columns", n, schema.ColumnCount())
	}
	pos := 4

	bitmapLen := (n + 7) / 8
	if len(data) < pos+bitmapLen {
		return Row{}, fmt.Errorf("record: short buffer decoding row null bitmap")
	}
	bitmap := data[pos : pos+bitmapLen]
	pos += bitmapLen

	fields := make([]Value, n)
	nulls := make([]bool, n)
	for i := 0; i < n; i++ {
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			nulls[i] = true
			continue
		}
		v, consumed, err := DecodeValue(schema.Columns[i].Type, data[pos:])
		if err != nil {
			return Row{}, fmt.Errorf("record: decoding column %q: %w", schema.Columns[i].Name, err)
		}
		fields[i] = v
		pos += consumed
	}
	return Row{Fields: fields, Nulls: nulls}, nil
}
