// Package index implements the unique-key, parent-pointer B+-tree index:
// fixed-width keys mapping to heap RowIDs, bootstrapped through the
// index-roots page.
package index

import (
	"github.com/relicdb/minisql/pkg/record"
)

// KeyManager knows how to build a fixed-width index key from a full table
// row and how to order two encoded keys, given the ordered subset of
// columns the index is defined over.
type KeyManager struct {
	keySchema record.Schema
}

// NewKeyManager builds a KeyManager over the given key columns, in index
// order.
func NewKeyManager(keyColumns []record.Column) *KeyManager {
	return &KeyManager{keySchema: record.Schema{Columns: keyColumns}}
}

// KeySize returns the fixed on-disk width of one encoded key: VARCHAR
// columns contribute their declared capacity (padded/truncated), every
// other type its natural fixed width.
func (km *KeyManager) KeySize() uint32 {
	var sz uint32
	for _, c := range km.keySchema.Columns {
		if c.Type == record.TypeVarchar {
			sz += c.Length
		} else {
			sz += uint32(c.Type.FixedSize())
		}
	}
	return sz
}

// BuildKey extracts and encodes the index key from row, looking each key
// column up by name in the table's full schema.
func (km *KeyManager) BuildKey(row record.Row, fullSchema record.Schema) ([]byte, error) {
	buf := make([]byte, 0, km.KeySize())
	for _, kc := range km.keySchema.Columns {
		fullIdx, err := fullSchema.GetColIndex(kc.Name)
		if err != nil {
			return nil, err
		}
		v := row.Fields[fullIdx]
		if kc.Type == record.TypeVarchar {
			fixed := make([]byte, kc.Length)
			copy(fixed, v.Str)
			buf = append(buf, fixed...)
		} else {
			buf = v.Encode(buf)
		}
	}
	return buf, nil
}

// Compare orders two fixed-width encoded keys field by field.
func (km *KeyManager) Compare(a, b []byte) int {
	offset := 0
	for _, kc := range km.keySchema.Columns {
		width := int(kc.Length)
		if kc.Type != record.TypeVarchar {
			width = kc.Type.FixedSize()
		}
		c := compareField(kc.Type, a[offset:offset+width], b[offset:offset+width])
		if c != 0 {
			return c
		}
		offset += width
	}
	return 0
}

// compareField orders two fixed-width encoded fields. VARCHAR fields are
// zero-padded to a fixed width, so plain lexicographic byte comparison
// gives the right order for content without embedded NUL bytes; every
// other type is decoded and compared numerically, since their raw
// little-endian bytes don't order correctly by themselves.
func compareField(t record.TypeID, a, b []byte) int {
	if t == record.TypeVarchar {
		return compareBytesLex(a, b)
	}
	v, _, err := record.DecodeValue(t, a)
	if err != nil {
		panic(err)
	}
	w, _, err := record.DecodeValue(t, b)
	if err != nil {
		panic(err)
	}
	return record.Compare(v, w)
}

func compareBytesLex(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
