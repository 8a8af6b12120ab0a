// pgrecover - recover PostgreSQL row data directly from on-disk heap
// files and WAL, without a running server.
//
// Usage:
//
//	pgrecover -d /path/to/pg_data               # dump every database's tables
//	pgrecover -d /path/to/pg_data -t orders     # filter tables by name
//	pgrecover -f /path/to/16384/16401           # parse a single heap file
//	pgrecover -d /path/to/pg_data -wal          # summarize pg_wal contents
//	pgrecover -d /path/to/pg_data -restore-wal -rel 16401 -start 2026-01-01T00:00:00Z -end 2026-01-02T00:00:00Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dvrkps/pgrecover/pgdump"
)

func main() {
	var (
		dataDir     string
		singleFile  string
		tableFilter string
		listOnly    bool
		verbose     bool
		scanWAL     bool
		restoreWAL  bool
		relOID      uint
		startTime   string
		endTime     string
	)

	flag.StringVar(&dataDir, "d", "", "PostgreSQL data directory")
	flag.StringVar(&singleFile, "f", "", "Single heap file to parse")
	flag.StringVar(&tableFilter, "t", "", "Filter tables containing this string")
	flag.BoolVar(&listOnly, "list", false, "List databases/tables only, no row data")
	flag.BoolVar(&verbose, "v", false, "Verbose output")
	flag.BoolVar(&scanWAL, "wal", false, "Summarize pg_wal instead of dumping heap data")
	flag.BoolVar(&restoreWAL, "restore-wal", false, "Replay pg_wal and emit recovered rows for -rel")
	flag.UintVar(&relOID, "rel", 0, "Target relation OID for -restore-wal (0 = every relation)")
	flag.StringVar(&startTime, "start", "", "RFC3339 start of the recovery window (restore-wal)")
	flag.StringVar(&endTime, "end", "", "RFC3339 end of the recovery window (restore-wal)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `pgrecover - recover PostgreSQL row data from heap files and WAL

Usage:
  %s -d /path/to/pg_data                    dump every database's tables
  %s -d /path/to/pg_data -list              list databases and tables only
  %s -d /path/to/pg_data -t orders          dump tables matching a filter
  %s -f /path/to/16401                      parse a single heap file
  %s -d /path/to/pg_data -wal               summarize pg_wal
  %s -d /path/to/pg_data -restore-wal -rel 16401 -start ... -end ...

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch {
	case singleFile != "":
		parseSingleFile(singleFile)
	case dataDir != "" && restoreWAL:
		runRestoreWAL(dataDir, uint32(relOID), startTime, endTime)
	case dataDir != "" && scanWAL:
		runScanWAL(dataDir)
	case dataDir != "":
		runDumpDataDir(dataDir, tableFilter, listOnly)
	default:
		fmt.Fprintln(os.Stderr, "Error: -d (data directory) or -f (single file) required")
		flag.Usage()
		os.Exit(1)
	}
}

func runDumpDataDir(dataDir, tableFilter string, listOnly bool) {
	dbData, err := os.ReadFile(filepath.Join(dataDir, "global", "1262"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading pg_database: %v\n", err)
		os.Exit(1)
	}
	databases := pgdump.ParsePGDatabase(dbData)

	relMaps, err := pgdump.ReadAllRelMaps(dataDir)
	if err != nil {
		logrus.WithError(err).Debug("relmap read failed, falling back to catalog-declared filenodes")
	}

	type dbResult struct {
		OID    uint32             `json:"oid"`
		Name   string             `json:"name"`
		Tables []pgdump.TableDump `json:"tables,omitempty"`
	}
	var out []dbResult

	for _, db := range databases {
		base := filepath.Join(dataDir, "base", strconv.FormatUint(uint64(db.OID), 10))

		classData, err := os.ReadFile(filenodeOrDefault(base, relMaps, pgdump.PGClass))
		if err != nil {
			continue
		}
		attrData, err := os.ReadFile(filenodeOrDefault(base, relMaps, pgdump.PGAttribute))
		if err != nil {
			continue
		}

		dump, err := pgdump.DumpDatabaseFromFiles(classData, attrData, func(filenode uint32) ([]byte, error) {
			return os.ReadFile(filepath.Join(base, strconv.FormatUint(uint64(filenode), 10)))
		}, &pgdump.Options{TableFilter: tableFilter, ListOnly: listOnly, SkipSystemTables: true})
		if err != nil {
			logrus.WithField("database", db.Name).WithError(err).Warn("dump failed")
			continue
		}

		out = append(out, dbResult{OID: db.OID, Name: db.Name, Tables: dump.Tables})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

// filenodeOrDefault resolves a system catalog's filenode via relmap,
// falling back to its OID (the shared-catalog default before any
// pg_filenode.map remapping) when no relmap entry is available.
func filenodeOrDefault(base string, maps *pgdump.RelMapInfo, catalogOID uint32) string {
	if maps != nil {
		for _, m := range maps.Databases {
			if fn := m.GetFilenode(catalogOID); fn != 0 {
				return filepath.Join(base, strconv.FormatUint(uint64(fn), 10))
			}
		}
		if maps.Global != nil {
			if fn := maps.Global.GetFilenode(catalogOID); fn != 0 {
				return filepath.Join(base, strconv.FormatUint(uint64(fn), 10))
			}
		}
	}
	return filepath.Join(base, strconv.FormatUint(uint64(catalogOID), 10))
}

func runScanWAL(dataDir string) {
	summary, err := pgdump.ScanWALDirectory(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning pg_wal: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)
}

func runRestoreWAL(dataDir string, relOID uint32, startStr, endStr string) {
	sc := pgdump.NewScanContext()
	sc.DataDir = dataDir
	sc.Mode = pgdump.RecoveryByTime

	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -start: %v\n", err)
			os.Exit(1)
		}
		sc.StartTime = pgEpochMicros(t)
	}
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -end: %v\n", err)
			os.Exit(1)
		}
		sc.EndTime = pgEpochMicros(t)
	}

	var columns []pgdump.Column
	classData, err := os.ReadFile(filepath.Join(dataDir, "global", "1262"))
	if err == nil {
		for _, db := range pgdump.ParsePGDatabase(classData) {
			base := filepath.Join(dataDir, "base", strconv.FormatUint(uint64(db.OID), 10))
			cls, err := os.ReadFile(filepath.Join(base, strconv.FormatUint(uint64(pgdump.PGClass), 10)))
			if err != nil {
				continue
			}
			attrData, err := os.ReadFile(filepath.Join(base, strconv.FormatUint(uint64(pgdump.PGAttribute), 10)))
			if err != nil {
				continue
			}
			tables := pgdump.ParsePGClass(cls)
			attrs := pgdump.ParsePGAttribute(attrData, 0)
			for _, t := range tables {
				if t.OID == relOID {
					columns = pgdump.AttrsToColumns(attrs[t.OID])
				}
			}
		}
	}

	results, err := pgdump.RestoreWALDirectory(sc, &pgdump.RestoreOptions{
		RelationOID: relOID,
		Columns:     columns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error restoring from WAL: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
	fmt.Fprintf(os.Stderr, "[*] rows emitted: %d, rows failed: %d\n", sc.RowsEmitted, sc.RowsFailed)
}

// pgEpochMicros converts a wall-clock time into PostgreSQL's TimestampTz
// representation: microseconds since 2000-01-01 00:00:00 UTC.
func pgEpochMicros(t time.Time) int64 {
	pgEpoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Sub(pgEpoch).Microseconds()
}

func parseSingleFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	switch filepath.Base(path) {
	case "1262":
		fmt.Println("Detected: pg_database (global)")
		for _, db := range pgdump.ParsePGDatabase(data) {
			fmt.Printf("  Database: %s (OID: %d)\n", db.Name, db.OID)
		}

	case "1259":
		fmt.Println("Detected: pg_class")
		for _, t := range pgdump.ParsePGClass(data) {
			fmt.Printf("  Table: %s (OID: %d, filenode: %d, kind: %s)\n", t.Name, t.OID, t.Filenode, t.Kind)
		}

	case "1249":
		fmt.Println("Detected: pg_attribute")
		for relid, cols := range pgdump.ParsePGAttribute(data, 0) {
			fmt.Printf("  Relation %d:\n", relid)
			for _, c := range cols {
				fmt.Printf("    %d: %s (%s)\n", c.Num, c.Name, pgdump.TypeName(c.TypID))
			}
		}

	default:
		fmt.Println("Generic heap file - extracting tuples")
		tuples := pgdump.ParseFile(data)
		fmt.Printf("Found %d tuples\n", len(tuples))
		for i, t := range tuples {
			if i >= 10 {
				fmt.Printf("... and %d more\n", len(tuples)-10)
				break
			}
			fmt.Printf("Tuple %d: %d bytes\n", i, len(t.Tuple.Data))
		}
	}
}
