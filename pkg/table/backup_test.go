package table

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	buf := storage.NewBuffer()
	memoBuf := storage.NewBuffer()
	tbl, err := Create(buf, memoBuf, dialect.Db3,
		mustSpecs(t, "name C(10); notes M"), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Append("first", "memo one"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := tbl.Append("second", "memo two"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var stream bytes.Buffer
	if err := tbl.Backup(&stream); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	restored, err := Restore(storage.NewBuffer(), storage.NewBuffer(),
		dialect.Db3, &stream, testOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.RecordCount() != 2 {
		t.Fatalf("restored count %d, want 2", restored.RecordCount())
	}
	rec, err := restored.Record(1)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	values, err := rec.Scatter()
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if values["NAME"] != "second" || values["NOTES"] != "memo two" {
		t.Errorf("restored values %v", values)
	}
}

func TestBackupWithoutMemo(t *testing.T) {
	tbl, _ := newDb3(t, "name C(5)")
	if _, err := tbl.Append("solo"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	var stream bytes.Buffer
	if err := tbl.Backup(&stream); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	restored, err := Restore(storage.NewBuffer(), nil, dialect.Db3, &stream, testOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	rec, _ := restored.Record(0)
	if v, _ := rec.Value(0); v != "solo" {
		t.Errorf("restored value = %v", v)
	}
}

func TestRestoreRejectsDamage(t *testing.T) {
	tbl, _ := newDb3(t, "name C(5)")
	if _, err := tbl.Append("data"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	var stream bytes.Buffer
	if err := tbl.Backup(&stream); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	good := stream.Bytes()

	// bad magic
	bad := append([]byte(nil), good...)
	bad[0] ^= 0xFF
	if _, err := Restore(storage.NewBuffer(), nil, dialect.Db3,
		bytes.NewReader(bad), testOptions()); !errors.Is(err, ErrInvalidBackup) {
		t.Errorf("bad magic: err = %v, want ErrInvalidBackup", err)
	}

	// flipped payload byte fails the checksum
	bad = append([]byte(nil), good...)
	bad[len(bad)-15] ^= 0xFF
	if _, err := Restore(storage.NewBuffer(), nil, dialect.Db3,
		bytes.NewReader(bad), testOptions()); !errors.Is(err, ErrInvalidBackup) {
		t.Errorf("damaged payload: err = %v, want ErrInvalidBackup", err)
	}

	// truncated stream
	if _, err := Restore(storage.NewBuffer(), nil, dialect.Db3,
		bytes.NewReader(good[:10]), testOptions()); !errors.Is(err, ErrInvalidBackup) {
		t.Errorf("truncated: err = %v, want ErrInvalidBackup", err)
	}
}
