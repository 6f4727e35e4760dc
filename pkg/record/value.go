// Package record implements the column/schema/row types and their on-disk
// encodings: the vocabulary the table heap and B+-tree index exchange
// tuples and keys in.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TypeID identifies a column's value type.
type TypeID uint32

const (
	TypeInvalid TypeID = iota
	TypeInteger        // int32
	TypeBigInt         // int64
	TypeFloat          // float64
	TypeBoolean        // 1 byte
	TypeVarchar        // length-prefixed bytes
)

func (t TypeID) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeFloat:
		return "FLOAT"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeVarchar:
		return "VARCHAR"
	default:
		return "INVALID"
	}
}

// Value is a single typed field value, tagged the same way as a key value
// so the index's key comparator and the table heap's row codec share one
// representation.
type Value struct {
	Type TypeID
	I32  int32
	I64  int64
	F64  float64
	B    bool
	Str  []byte
}

func NewIntegerValue(v int32) Value  { return Value{Type: TypeInteger, I32: v} }
func NewBigIntValue(v int64) Value   { return Value{Type: TypeBigInt, I64: v} }
func NewFloatValue(v float64) Value  { return Value{Type: TypeFloat, F64: v} }
func NewBooleanValue(v bool) Value   { return Value{Type: TypeBoolean, B: v} }
func NewVarcharValue(v []byte) Value { return Value{Type: TypeVarchar, Str: v} }

// FixedSize returns the on-disk width of the value's type, or 0 for
// TypeVarchar (which is length-prefixed instead).
func (t TypeID) FixedSize() int {
	switch t {
	case TypeInteger:
		return 4
	case TypeBigInt:
		return 8
	case TypeFloat:
		return 8
	case TypeBoolean:
		return 1
	default:
		return 0
	}
}

// Encode appends v's raw bytes to buf. There is no type tag; the column's
// declared type supplies that context during decode.
func (v Value) Encode(buf []byte) []byte {
	switch v.Type {
	case TypeInteger:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.I32))
		return append(buf, b[:]...)
	case TypeBigInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I64))
		return append(buf, b[:]...)
	case TypeFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
		return append(buf, b[:]...)
	case TypeBoolean:
		if v.B {
			return append(buf, 1)
		}
		return append(buf, 0)
	case TypeVarchar:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(v.Str)))
		buf = append(buf, b[:]...)
		return append(buf, v.Str...)
	default:
		panic(fmt.Sprintf("record: encode: unknown type %d", v.Type))
	}
}

// DecodeValue reads one value of type t from the start of buf, returning the
// value and the number of bytes consumed.
func DecodeValue(t TypeID, buf []byte) (Value, int, error) {
	switch t {
	case TypeInteger:
		if len(buf) < 4 {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding INTEGER")
		}
		return NewIntegerValue(int32(binary.LittleEndian.Uint32(buf[:4]))), 4, nil
	case TypeBigInt:
		if len(buf) < 8 {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding BIGINT")
		}
		return NewBigIntValue(int64(binary.LittleEndian.Uint64(buf[:8]))), 8, nil
	case TypeFloat:
		if len(buf) < 8 {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding FLOAT")
		}
		return NewFloatValue(math.Float64frombits(binary.LittleEndian.Uint64(buf[:8]))), 8, nil
	case TypeBoolean:
		if len(buf) < 1 {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding BOOLEAN")
		}
		return NewBooleanValue(buf[0] != 0), 1, nil
	case TypeVarchar:
		if len(buf) < 4 {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding VARCHAR length")
		}
		n := binary.LittleEndian.Uint32(buf[:4])
		if uint32(len(buf)) < 4+n {
			return Value{}, 0, fmt.Errorf("record: short buffer decoding VARCHAR body")
		}
		s := make([]byte, n)
		copy(s, buf[4:4+n])
		return NewVarcharValue(s), 4 + int(n), nil
	default:
		return Value{}, 0, fmt.Errorf("record: decode: unknown type %d", t)
	}
}

// Compare orders two values of the same type, the comparator the B+-tree
// index uses for key ordering.
func Compare(a, b Value) int {
	switch a.Type {
	case TypeInteger:
		switch {
		case a.I32 < b.I32:
			return -1
		case a.I32 > b.I32:
			return 1
		default:
			return 0
		}
	case TypeBigInt:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case TypeFloat:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	case TypeBoolean:
		switch {
		case !a.B && b.B:
			return -1
		case a.B && !b.B:
			return 1
		default:
			return 0
		}
	case TypeVarchar:
		return compareBytes(a.Str, b.Str)
	default:
		panic(fmt.Sprintf("record: compare: unknown type %d", a.Type))
	}
}

func compareBytes(a, b []byte) int {
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
