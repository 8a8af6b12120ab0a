// Package pgdump implements offline recovery of PostgreSQL data: reading
// heap files directly off disk using the fixed OIDs of the system
// catalogs, replaying WAL to reconstruct rows a checkpoint already
// discarded, and reassembling TOASTed values without a running server.
//
//   - 1262: pg_database (global/1262)
//   - 1259: pg_class (base/<db_oid>/1259)
//   - 1249: pg_attribute (base/<db_oid>/1249)
//
// # Basic usage
//
//	dbData, _ := os.ReadFile("/path/to/global/1262")
//	databases := pgdump.ParsePGDatabase(dbData)
//
//	classData, _ := os.ReadFile("/path/to/base/16384/1259")
//	tables := pgdump.ParsePGClass(classData)
//
//	attrData, _ := os.ReadFile("/path/to/base/16384/1249")
//	columns := pgdump.ParsePGAttribute(attrData, 0)
//	schema := pgdump.AttrsToColumns(columns[tables[<filenode>].OID])
//
//	tableData, _ := os.ReadFile("/path/to/base/16384/<filenode>")
//	sink := pgdump.NewCSVSink(os.Stdout, pgdump.OutputCSV)
//	for _, e := range pgdump.ReadTuples(tableData, true) {
//	    pgdump.DecodeRow(e.Tuple, schema, sink, nil)
//	}
package pgdump

import "strings"

// Options configures a dump pass over one database's catalog files.
type Options struct {
	// TableFilter restricts output to tables whose name contains this
	// substring (case-insensitive). Empty means all tables.
	TableFilter string
	// ListOnly returns schema only, no row data.
	ListOnly bool
	// SkipSystemTables skips pg_* relations.
	SkipSystemTables bool
	// PostgresVersion hints the PG version for pg_attribute schema
	// detection; 0 auto-detects.
	PostgresVersion int
}

// DatabaseDump contains the dump output for a single database.
type DatabaseDump struct {
	OID    uint32
	Name   string
	Tables []TableDump
}

// TableDump contains the dump output for a single table.
type TableDump struct {
	OID      uint32
	Name     string
	Filenode uint32
	Kind     string
	Columns  []ColumnInfo
	Rows     []map[string]interface{}
	RowCount int
}

// ColumnInfo describes a table column for schema-only output.
type ColumnInfo struct {
	Name  string
	Type  string
	TypID int
}

// DumpDatabaseFromFiles dumps a database given pre-read catalog bytes
// and a callback that fetches one relation file by filenode. This is
// the entry point a caller that has already located and opened a data
// directory's files should use; it does no directory walking itself.
func DumpDatabaseFromFiles(classData, attrData []byte, tableReader func(filenode uint32) ([]byte, error), opts *Options) (*DatabaseDump, error) {
	if opts == nil {
		opts = &Options{SkipSystemTables: true}
	}

	tables := ParsePGClass(classData)
	attributes := ParsePGAttribute(attrData, opts.PostgresVersion)

	result := &DatabaseDump{}
	for filenode, tableInfo := range tables {
		if tableInfo.Kind != "r" && tableInfo.Kind != "" {
			continue
		}
		if opts.SkipSystemTables && strings.HasPrefix(tableInfo.Name, "pg_") {
			continue
		}
		if opts.TableFilter != "" && !strings.Contains(strings.ToLower(tableInfo.Name), strings.ToLower(opts.TableFilter)) {
			continue
		}

		tableDump := dumpTableFromReader(filenode, tableInfo, attributes, tableReader, opts)
		if tableDump != nil {
			result.Tables = append(result.Tables, *tableDump)
		}
	}
	return result, nil
}

func dumpTableFromReader(filenode uint32, tableInfo TableInfo, attributes map[uint32][]AttrInfo, tableReader func(uint32) ([]byte, error), opts *Options) *TableDump {
	attrs := attributes[tableInfo.OID]

	result := &TableDump{
		OID:      tableInfo.OID,
		Name:     tableInfo.Name,
		Filenode: filenode,
		Kind:     tableInfo.Kind,
	}
	for _, attr := range attrs {
		result.Columns = append(result.Columns, ColumnInfo{Name: attr.Name, Type: TypeName(attr.TypID), TypID: attr.TypID})
	}
	if opts.ListOnly {
		return result
	}

	tableData, err := tableReader(filenode)
	if err != nil {
		return result
	}

	columns := AttrsToColumns(attrs)
	for _, e := range ReadTuples(tableData, true) {
		row := make(map[string]interface{}, len(columns))
		sink := &mapSink{row: row}
		if err := DecodeRow(e.Tuple, columns, sink, nil); err != nil {
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
	return result
}

// mapSink adapts RowSink to the JSON-friendly map[string]interface{}
// shape DatabaseDump/TableDump expose to callers outside this package.
type mapSink struct {
	row map[string]interface{}
}

func (s *mapSink) WriteField(name, text string, isNull bool) {
	if isNull {
		s.row[name] = nil
	} else {
		s.row[name] = text
	}
}

func (s *mapSink) FinishRow() error { return nil }

// ParseFile parses a single heap file and returns its raw tuple entries.
func ParseFile(data []byte) []TupleEntry {
	return ReadTuples(data, true)
}

// ParseFileWithSchema parses a heap file using a column schema, one map
// per row.
func ParseFileWithSchema(data []byte, columns []Column) []map[string]interface{} {
	var rows []map[string]interface{}
	for _, e := range ReadTuples(data, true) {
		row := make(map[string]interface{}, len(columns))
		sink := &mapSink{row: row}
		if err := DecodeRow(e.Tuple, columns, sink, nil); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
