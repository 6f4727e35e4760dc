package record

import "testing"

func TestColumnRoundTrip(t *testing.T) {
	cases := []Column{
		{Name: "id", Type: TypeInteger, TableInd: 0, Nullable: false, Unique: true},
		{Name: "name", Type: TypeVarchar, Length: 32, TableInd: 1, Nullable: true, Unique: false},
		{Name: "score", Type: TypeFloat, TableInd: 2},
	}

	for _, c := range cases {
		buf := c.Encode(nil)
		got, n, err := DecodeColumn(buf)
		if err != nil {
			t.Fatalf("DecodeColumn(%q): %v", c.Name, err)
		}
		if n != len(buf) {
			t.Errorf("DecodeColumn(%q) consumed %d bytes, want %d", c.Name, n, len(buf))
		}
		if got != c {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, c)
		}
	}
}

func TestDecodeColumnBadMagic(t *testing.T) {
	buf := make([]byte, 16)
	if _, _, err := DecodeColumn(buf); err == nil {
		t.Error("DecodeColumn with zeroed (bad magic) buffer should fail")
	}
}

func TestDecodeColumnShortBuffer(t *testing.T) {
	c := Column{Name: "x", Type: TypeInteger}
	buf := c.Encode(nil)
	if _, _, err := DecodeColumn(buf[:len(buf)-1]); err == nil {
		t.Error("DecodeColumn with a truncated buffer should fail")
	}
}
