package record

import "testing"

func testSchema() Schema {
	return NewSchema([]Column{
		{Name: "id", Type: TypeInteger, Nullable: false, Unique: true},
		{Name: "name", Type: TypeVarchar, Length: 16, Nullable: true},
		{Name: "active", Type: TypeBoolean},
	})
}

func TestSchemaRoundTrip(t *testing.T) {
	s := testSchema()
	buf := s.Encode(nil)

	got, n, err := DecodeSchema(buf)
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	if n != len(buf) {
		t.Errorf("DecodeSchema consumed %d bytes, want %d", n, len(buf))
	}
	if got.ColumnCount() != s.ColumnCount() {
		t.Fatalf("ColumnCount() = %d, want %d", got.ColumnCount(), s.ColumnCount())
	}
	for i := range s.Columns {
		if got.Columns[i] != s.Columns[i] {
			t.Errorf("column %d mismatch: got %+v, want %+v", i, got.Columns[i], s.Columns[i])
		}
	}
}

func TestSchemaTableIndStamping(t *testing.T) {
	s := testSchema()
	for i, c := range s.Columns {
		if int(c.TableInd) != i {
			t.Errorf("column %q TableInd = %d, want %d", c.Name, c.TableInd, i)
		}
	}
}

func TestSchemaGetColIndex(t *testing.T) {
	s := testSchema()
	idx, err := s.GetColIndex("name")
	if err != nil || idx != 1 {
		t.Fatalf("GetColIndex(\"name\") = (%d, %v), want (1, nil)", idx, err)
	}
	if _, err := s.GetColIndex("missing"); err == nil {
		t.Error("GetColIndex for a missing column should fail")
	}
}

func TestSchemaGetColumnOutOfRange(t *testing.T) {
	s := testSchema()
	if _, err := s.GetColumn(-1); err == nil {
		t.Error("GetColumn(-1) should fail")
	}
	if _, err := s.GetColumn(s.ColumnCount()); err == nil {
		t.Error("GetColumn(count) should fail")
	}
}

func TestDecodeSchemaBadMagic(t *testing.T) {
	if _, _, err := DecodeSchema(make([]byte, 16)); err == nil {
		t.Error("DecodeSchema with bad magic should fail")
	}
}
