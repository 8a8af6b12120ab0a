package pgdump

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ToCSV writes a single database's tables as CSV, one "# Database: ...,
// Table: ..." section per table.
func (d *DatabaseDump) ToCSV(w io.Writer) error {
	for _, table := range d.Tables {
		fmt.Fprintf(w, "# Database: %s, Table: %s\n", d.Name, table.Name)
		if err := table.ToCSV(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

// ToCSV writes a single table as CSV using the standard library's csv
// writer, matching dumpTableFromReader's map[string]interface{} rows
// (string or nil per field, since DecodeRow's mapSink already rendered
// every value to its text form).
func (t *TableDump) ToCSV(w io.Writer) error {
	if len(t.Columns) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			if val, ok := row[col.Name]; ok && val != nil {
				record[i] = fmt.Sprintf("%v", val)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// TableToCSV is a convenience wrapper for exporting a single table.
func TableToCSV(w io.Writer, table TableDump) error {
	return table.ToCSV(w)
}
