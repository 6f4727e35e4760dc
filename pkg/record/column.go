package record

import (
	"encoding/binary"
	"fmt"
)

// columnMagic tags an encoded Column for on-disk validation.
const columnMagic uint32 = 0x434f4c31 // "COL1"

// Column describes one field of a table's schema.
type Column struct {
	Name     string
	Type     TypeID
	Length   uint32 // VARCHAR capacity; ignored for fixed-size types
	TableInd uint32 // this column's ordinal position in the schema
	Nullable bool
	Unique   bool
}

// Encode appends the column's on-disk form to buf: magic, name, type,
// length, table index, nullable flag, unique flag.
func (c Column) Encode(buf []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], columnMagic)
	buf = append(buf, hdr[:]...)

	var nameLen [4]byte
	binary.LittleEndian.PutUint32(nameLen[:], uint32(len(c.Name)))
	buf = append(buf, nameLen[:]...)
	buf = append(buf, c.Name...)

	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], uint32(c.Type))
	buf = append(buf, field[:]...)
	binary.LittleEndian.PutUint32(field[:], c.Length)
	buf = append(buf, field[:]...)
	binary.LittleEndian.PutUint32(field[:], c.TableInd)
	buf = append(buf, field[:]...)

	if c.Nullable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if c.Unique {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeColumn reads one Column from the start of buf, returning the column
// and the number of bytes consumed.
func DecodeColumn(buf []byte) (Column, int, error) {
	if len(buf) < 4 {
		return Column{}, 0, fmt.Errorf("record: short buffer decoding column magic")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != columnMagic {
		return Column{}, 0, fmt.Errorf("record: corrupt column: bad magic %#x", magic)
	}
	pos := 4

	if len(buf) < pos+4 {
		return Column{}, 0, fmt.Errorf("record: short buffer decoding column name length")
	}
	nameLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	pos += 4
	if len(buf) < pos+nameLen {
		return Column{}, 0, fmt.Errorf("record: short buffer decoding column name")
	}
	name := string(buf[pos : pos+nameLen])
	pos += nameLen

	if len(buf) < pos+12+2 {
		return Column{}, 0, fmt.Errorf("record: short buffer decoding column fields")
	}
	typ := TypeID(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	pos += 4
	length := binary.LittleEndian.Uint32(buf[pos : pos+4])
	pos += 4
	tableInd := binary.LittleEndian.Uint32(buf[pos : pos+4])
	pos += 4
	nullable := buf[pos] != 0
	pos++
	unique := buf[pos] != 0
	pos++

	return Column{
		Name:     name,
		Type:     typ,
		Length:   length,
		TableInd: tableInd,
		Nullable: nullable,
		Unique:   unique,
	}, pos, nil
}
