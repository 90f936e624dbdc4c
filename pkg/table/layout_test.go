package table

import (
	"testing"

	"github.com/xbasedb/xbase/pkg/dialect"
)

func TestParseFieldSpec(t *testing.T) {
	specs, err := ParseFieldSpec("name C(10); age N(3,0); birth D; notes M null")
	if err != nil {
		t.Fatalf("ParseFieldSpec: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("parsed %d specs, want 4", len(specs))
	}
	if specs[0].Name != "name" || specs[0].Type != dialect.Character || specs[0].Length != 10 {
		t.Errorf("spec 0 = %+v", specs[0])
	}
	if specs[1].Length != 3 || specs[1].Decimals != 0 {
		t.Errorf("spec 1 = %+v", specs[1])
	}
	if specs[2].Type != dialect.Date {
		t.Errorf("spec 2 = %+v", specs[2])
	}
	if specs[3].Type != dialect.Memo || !specs[3].Nullable {
		t.Errorf("spec 3 = %+v", specs[3])
	}
}

func TestParseFieldSpecErrors(t *testing.T) {
	bad := []string{
		"",
		"justaname",
		"x C(ten)",
		"x C(10; y D",
		"x C(10) frobnicate",
	}
	for _, spec := range bad {
		if _, err := ParseFieldSpec(spec); err == nil {
			t.Errorf("ParseFieldSpec(%q) should fail", spec)
		}
	}
}

func TestBuildLayoutValidation(t *testing.T) {
	cases := []struct {
		name  string
		d     *dialect.Dialect
		specs []FieldSpec
	}{
		{"empty", dialect.Db3, nil},
		{"name too long", dialect.Db3,
			[]FieldSpec{{Name: "waytoolongname", Type: dialect.Character, Length: 5}}},
		{"duplicate names", dialect.Db3, []FieldSpec{
			{Name: "x", Type: dialect.Character, Length: 5},
			{Name: "X", Type: dialect.Character, Length: 5},
		}},
		{"unsupported type", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Currency}}},
		{"character too wide", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Character, Length: 300}}},
		{"zero width character", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Character}}},
		{"numeric too wide", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Numeric, Length: 25}}},
		{"decimals exceed width", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Numeric, Length: 4, Decimals: 3}}},
		{"nullable unsupported", dialect.Db3,
			[]FieldSpec{{Name: "x", Type: dialect.Character, Length: 5, Nullable: true}}},
		{"explicit bitmap field", dialect.VisualFoxPro,
			[]FieldSpec{{Name: "x", Type: dialect.NullFlag, Length: 1}}},
	}
	for _, tc := range cases {
		if _, err := buildLayout(tc.d, tc.specs); err == nil {
			t.Errorf("%s: buildLayout should fail", tc.name)
		}
	}
}

func TestLayoutOffsetsAndBitmap(t *testing.T) {
	lay, err := buildLayout(dialect.VisualFoxPro, []FieldSpec{
		{Name: "a", Type: dialect.Character, Length: 10, Nullable: true},
		{Name: "b", Type: dialect.Integer},
		{Name: "c", Type: dialect.Character, Length: 3, Nullable: true},
	})
	if err != nil {
		t.Fatalf("buildLayout: %v", err)
	}
	// offsets start after the deletion flag
	if lay.fields[0].Offset != 1 || lay.fields[1].Offset != 11 || lay.fields[2].Offset != 15 {
		t.Errorf("offsets %d %d %d", lay.fields[0].Offset, lay.fields[1].Offset, lay.fields[2].Offset)
	}
	if lay.nullFlags == nil {
		t.Fatal("two nullable fields need a bitmap field")
	}
	if lay.nullFlags.Length != 1 {
		t.Errorf("bitmap width %d, want 1", lay.nullFlags.Length)
	}
	if lay.recordLength != 1+10+4+3+1 {
		t.Errorf("record length %d", lay.recordLength)
	}

	row := make([]byte, lay.recordLength)
	lay.setNullBit(row, 2, true)
	if lay.nullBit(row, 0) {
		t.Error("bit for field a should be clear")
	}
	if !lay.nullBit(row, 2) {
		t.Error("bit for field c should be set")
	}
	// non-nullable fields have no bit
	lay.setNullBit(row, 1, true)
	if lay.nullBit(row, 1) {
		t.Error("non-nullable field reports a null bit")
	}
}

func TestLayoutEncodeParseRoundTrip(t *testing.T) {
	lay, err := buildLayout(dialect.VisualFoxPro, []FieldSpec{
		{Name: "name", Type: dialect.Character, Length: 20},
		{Name: "score", Type: dialect.Numeric, Length: 8, Decimals: 2, Nullable: true},
		{Name: "notes", Type: dialect.Memo},
	})
	if err != nil {
		t.Fatalf("buildLayout: %v", err)
	}
	parsed, err := parseLayout(dialect.VisualFoxPro, lay.encode(dialect.VisualFoxPro))
	if err != nil {
		t.Fatalf("parseLayout: %v", err)
	}
	if len(parsed.fields) != len(lay.fields) {
		t.Fatalf("parsed %d fields, want %d", len(parsed.fields), len(lay.fields))
	}
	for i, fd := range parsed.fields {
		want := lay.fields[i]
		if fd.Name != want.Name || fd.Type != want.Type || fd.Offset != want.Offset ||
			fd.Length != want.Length || fd.Decimals != want.Decimals || fd.Flags != want.Flags {
			t.Errorf("field %d: got %+v, want %+v", i, fd, want)
		}
	}
	if parsed.recordLength != lay.recordLength {
		t.Errorf("record length %d, want %d", parsed.recordLength, lay.recordLength)
	}
	if parsed.nullFlags == nil {
		t.Error("bitmap descriptor lost in round trip")
	}
}
