package table

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
	"github.com/xbasedb/xbase/pkg/types"
)

func TestAddFieldCarriesRecords(t *testing.T) {
	tbl, _ := newDb3(t, "name C(10); age N(3,0)")
	if _, err := tbl.Append("Spanky", int64(7)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	before := tbl.SchemaFingerprint()
	err := tbl.AddField(FieldSpec{Name: "birth", Type: dialect.Date})
	if err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if tbl.SchemaFingerprint() == before {
		t.Error("fingerprint should change on a structural change")
	}
	if n := len(tbl.Fields()); n != 3 {
		t.Fatalf("fields %d, want 3", n)
	}

	rec, err := tbl.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	values, err := rec.Scatter()
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if values["NAME"] != "Spanky" || values["AGE"] != int64(7) {
		t.Errorf("existing values damaged: %v", values)
	}
	if !values["BIRTH"].(types.Date).IsZero() {
		t.Errorf("added field = %v, want blank", values["BIRTH"])
	}

	// the new field is writable
	if err := rec.Update(func(r *Record) error {
		return r.SetNamed("birth", types.NewDate(2001, time.March, 15))
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestAddThenDropRestoresImage(t *testing.T) {
	tbl, buf := newDb3(t, "name C(10); age N(3,0)")
	if _, err := tbl.Append("Spanky", int64(7)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := tbl.Append("Darla", int64(6)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	original := append([]byte(nil), buf.Bytes()...)

	if err := tbl.AddField(FieldSpec{Name: "extra", Type: dialect.Character, Length: 5}); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if bytes.Equal(buf.Bytes(), original) {
		t.Fatal("AddField should change the file image")
	}
	if err := tbl.DropField("extra"); err != nil {
		t.Fatalf("DropField: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), original) {
		t.Error("add-then-drop should reproduce the original image byte for byte")
	}
}

func TestDropFieldUnknownName(t *testing.T) {
	tbl, _ := newDb3(t, "name C(10)")
	if err := tbl.DropField("ghost"); err == nil {
		t.Error("dropping an unknown field should fail")
	}
}

func TestResizeFieldReencodes(t *testing.T) {
	tbl, _ := newDb3(t, "name C(10); amount N(6,2)")
	if _, err := tbl.Append("item", 3.5); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := tbl.ResizeField("amount", 9, 3); err != nil {
		t.Fatalf("ResizeField: %v", err)
	}
	fd := tbl.Fields()[1]
	if fd.Length != 9 || fd.Decimals != 3 {
		t.Fatalf("resized shape %d,%d, want 9,3", fd.Length, fd.Decimals)
	}
	rec, _ := tbl.Record(0)
	if v, _ := rec.ValueNamed("amount"); v != 3.5 {
		t.Errorf("amount after resize = %v, want 3.5", v)
	}
}

func TestResizeFieldAbortsOnOverflow(t *testing.T) {
	tbl, buf := newDb3(t, "name C(10)")
	if _, err := tbl.Append("short"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := tbl.Append("muchlonger"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before := append([]byte(nil), buf.Bytes()...)

	err := tbl.ResizeField("name", 6, 0)
	if !errors.Is(err, ErrStructuralChange) {
		t.Fatalf("ResizeField error = %v, want ErrStructuralChange", err)
	}
	if !bytes.Equal(buf.Bytes(), before) {
		t.Error("failed resize must leave the file untouched")
	}
	rec, _ := tbl.Record(1)
	if v, _ := rec.Value(0); v != "muchlonger" {
		t.Errorf("value after aborted resize = %v", v)
	}
}

func TestAddMemoFieldUpgradesVersion(t *testing.T) {
	buf := storage.NewBuffer()
	memoBuf := storage.NewBuffer()
	tbl, err := Create(buf, memoBuf, dialect.Db3, mustSpecs(t, "name C(5)"), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Append("pre"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if tbl.Version() != 0x03 {
		t.Fatalf("version 0x%02x before memo field", tbl.Version())
	}

	if err := tbl.AddField(FieldSpec{Name: "notes", Type: dialect.Memo}); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if tbl.Version() != 0x83 {
		t.Errorf("version 0x%02x after memo field, want 0x83", tbl.Version())
	}
	rec, _ := tbl.Record(0)
	if err := rec.Update(func(r *Record) error { return r.SetNamed("notes", "now with memos") }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, _ := rec.ValueNamed("notes"); v != "now with memos" {
		t.Errorf("notes = %v", v)
	}
}

func TestDropMemoFieldDowngradesVersion(t *testing.T) {
	buf := storage.NewBuffer()
	memoBuf := storage.NewBuffer()
	tbl, err := Create(buf, memoBuf, dialect.Db3, mustSpecs(t, "name C(5); notes M"), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Append("x", "bye"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tbl.DropField("notes"); err != nil {
		t.Fatalf("DropField: %v", err)
	}
	if tbl.Version() != 0x03 {
		t.Errorf("version 0x%02x after dropping the memo field, want 0x03", tbl.Version())
	}
	rec, _ := tbl.Record(0)
	if v, _ := rec.Value(0); v != "x" {
		t.Errorf("surviving field = %v", v)
	}
}

func TestStructuralCarriesMemosAndNulls(t *testing.T) {
	buf := storage.NewBuffer()
	memoBuf := storage.NewBuffer()
	tbl, err := Create(buf, memoBuf, dialect.VisualFoxPro,
		mustSpecs(t, "name C(10); notes M; age I null"), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Append("keeper", "memo survives rewrites", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := tbl.AddField(FieldSpec{Name: "score", Type: dialect.Double}); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	rec, _ := tbl.Record(0)
	values, err := rec.Scatter()
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if values["NOTES"] != "memo survives rewrites" {
		t.Errorf("NOTES = %v", values["NOTES"])
	}
	if values["AGE"] != nil {
		t.Errorf("AGE = %v, want carried null", values["AGE"])
	}
}
