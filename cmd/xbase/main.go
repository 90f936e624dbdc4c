// Command xbase inspects xBase table files: header summary, schema and
// record dumps, with the memo companion resolved when present.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xbasedb/xbase/pkg/common/log"
	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
	"github.com/xbasedb/xbase/pkg/table"
)

var (
	// Command line flags
	tablePath   = flag.String("file", "", "Path to the table file (required)")
	memoPath    = flag.String("memo", "", "Path to the memo companion file (default: derived from -file)")
	dumpRecords = flag.Bool("dump", false, "Dump record contents")
	skipDeleted = flag.Bool("skip-deleted", false, "Exclude deletion-flagged records from the dump")
	limit       = flag.Int("limit", 0, "Dump at most this many records (0 = all)")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if *tablePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: xbase -file TABLE.dbf [-dump] [-memo TABLE.dbt]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := log.NewStandardLogger(log.WithLevel(log.LevelWarn))
	if *verbose {
		logger.SetLevel(log.LevelDebug)
	}

	if err := run(logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	f, err := os.Open(*tablePath)
	if err != nil {
		return err
	}
	defer f.Close()
	handle := storage.NewFile(f)

	version := make([]byte, 1)
	if _, err := handle.ReadAt(version, 0); err != nil {
		return fmt.Errorf("unreadable file: %w", err)
	}
	d := dialect.ByVersion(version[0])
	if d == nil {
		return fmt.Errorf("unrecognized version byte 0x%02x", version[0])
	}

	memoHandle, cleanup, err := openMemo(d)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := table.Options{SkipDeleted: *skipDeleted, Logger: logger}
	t, err := table.Open(handle, memoHandle, d, opts)
	if err != nil {
		return err
	}
	defer t.Close()

	printSummary(t, d)
	if *dumpRecords {
		return dump(t)
	}
	return nil
}

// openMemo opens the companion file named by -memo, falling back to the
// table path with the dialect's memo extension. A missing companion is
// not an error here; Open decides whether one is required.
func openMemo(d *dialect.Dialect) (storage.Handle, func(), error) {
	path := *memoPath
	if path == "" {
		ext := filepath.Ext(*tablePath)
		path = strings.TrimSuffix(*tablePath, ext) + d.MemoExt
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && *memoPath == "" {
			return nil, func() {}, nil
		}
		return nil, nil, err
	}
	return storage.NewFile(f), func() { f.Close() }, nil
}

func printSummary(t *table.Table, d *dialect.Dialect) {
	year, month, day := t.LastUpdate()
	fmt.Printf("File:        %s\n", *tablePath)
	fmt.Printf("Dialect:     %s (version 0x%02x)\n", d.Name, t.Version())
	fmt.Printf("Records:     %d\n", t.RecordCount())
	fmt.Printf("Last update: %04d-%02d-%02d\n", year, month, day)
	fmt.Printf("Fields:\n")
	for _, fd := range t.Fields() {
		var flags []string
		if fd.Nullable() {
			flags = append(flags, "null")
		}
		if fd.Binary() {
			flags = append(flags, "binary")
		}
		fmt.Printf("  %-11s %s(%d,%d) %s\n",
			fd.Name, fd.Type, fd.Length, fd.Decimals, strings.Join(flags, ","))
	}
}

func dump(t *table.Table) error {
	fields := t.Fields()
	n := 0
	sc := t.Scan()
	for sc.Next() {
		rec := sc.Record()
		marker := " "
		if rec.Deleted() {
			marker = "*"
		}
		fmt.Printf("%s%d:", marker, rec.Recno())
		for i, fd := range fields {
			v, err := rec.Value(i)
			if err != nil {
				return err
			}
			if v == nil {
				v = "<null>"
			}
			fmt.Printf(" %s=%v", fd.Name, v)
		}
		fmt.Println()
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	return sc.Err()
}
