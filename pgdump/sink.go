package pgdump

import (
	"fmt"
	"io"
	"strings"
)

// RowSink receives one row's fields as DecodeRow produces them. It
// replaces the teacher's pattern of building a map[string]interface{}
// for an entire row before any output decision is made: a sink can
// start writing as soon as the first field is ready, and a dropped
// (attisdropped) column is simply never reported to it rather than
// decoded into a placeholder value.
type RowSink interface {
	WriteField(name, text string, isNull bool)
	FinishRow() error
}

// FieldValue is one column's decoded output, used by sinks that must
// buffer a whole row before emitting it (update-mode diffing, CSV
// column ordering).
type FieldValue struct {
	Name   string
	Text   string
	IsNull bool
}

// RowBuffer is a RowSink that only accumulates fields; WAL update-mode
// restore uses one to collect the pre-image and another for the
// post-image, then hands both to ComposeUpdate.
type RowBuffer struct {
	Fields []FieldValue
}

func (b *RowBuffer) WriteField(name, text string, isNull bool) {
	b.Fields = append(b.Fields, FieldValue{Name: name, Text: text, IsNull: isNull})
}

func (b *RowBuffer) FinishRow() error { return nil }

// csvSink writes one delimited line per row. Mode controls null
// spelling and escaping via quoteField; delim defaults to a tab to
// match PostgreSQL's own COPY text format, which is what the teacher's
// CSV output was already approximating by name only.
type csvSink struct {
	w      io.Writer
	mode   OutputMode
	delim  string
	fields []string
}

// NewCSVSink returns a RowSink that writes COPY-style delimited rows.
func NewCSVSink(w io.Writer, mode OutputMode) *csvSink {
	return &csvSink{w: w, mode: mode, delim: "\t"}
}

func (s *csvSink) WriteField(name, text string, isNull bool) {
	s.fields = append(s.fields, quoteField(s.mode, text, isNull))
}

func (s *csvSink) FinishRow() error {
	_, err := fmt.Fprintln(s.w, strings.Join(s.fields, s.delim))
	s.fields = s.fields[:0]
	return err
}

// insertSink emits one SQL INSERT statement per row against a fixed
// table name.
type insertSink struct {
	w     io.Writer
	table string
	names []string
	vals  []string
}

// NewInsertSink returns a RowSink that writes "INSERT INTO table (...)
// VALUES (...);" statements.
func NewInsertSink(w io.Writer, table string) *insertSink {
	return &insertSink{w: w, table: table}
}

func (s *insertSink) WriteField(name, text string, isNull bool) {
	s.names = append(s.names, name)
	s.vals = append(s.vals, quoteField(OutputSQL, text, isNull))
}

func (s *insertSink) FinishRow() error {
	_, err := fmt.Fprintf(s.w, "INSERT INTO %s (%s) VALUES (%s);\n",
		s.table, strings.Join(s.names, ", "), strings.Join(s.vals, ", "))
	s.names, s.vals = s.names[:0], s.vals[:0]
	return err
}

// ComposeUpdate builds an UPDATE statement from a before/after row pair
// recovered from a WAL HEAP_UPDATE record: SET lists only the columns
// whose text representation changed, WHERE pins every column from the
// pre-image so the statement only matches the exact row it was built
// from. A column absent from before (e.g. added mid-update by a
// concurrent DDL the WAL doesn't reflect) is skipped rather than
// guessed at.
func ComposeUpdate(table string, before, after *RowBuffer) (string, error) {
	if before == nil || after == nil {
		return "", newErr(FormatInvalid, "update composition requires both row images")
	}

	afterByName := make(map[string]FieldValue, len(after.Fields))
	for _, f := range after.Fields {
		afterByName[f.Name] = f
	}

	var setParts, whereParts []string
	for _, b := range before.Fields {
		a, ok := afterByName[b.Name]
		if !ok {
			continue
		}
		if a.IsNull != b.IsNull || a.Text != b.Text {
			setParts = append(setParts, fmt.Sprintf("%s = %s", b.Name, quoteField(OutputSQL, a.Text, a.IsNull)))
		}
		if b.IsNull {
			whereParts = append(whereParts, fmt.Sprintf("%s IS NULL", b.Name))
		} else {
			whereParts = append(whereParts, fmt.Sprintf("%s = %s", b.Name, quoteField(OutputSQL, b.Text, false)))
		}
	}

	if len(setParts) == 0 {
		return "", newErr(FormatInvalid, "update pre/post images have no textual difference")
	}
	if len(whereParts) == 0 {
		return "", newErr(FormatInvalid, "update pre-image has no columns to pin a WHERE clause on")
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s;\n",
		table, strings.Join(setParts, ", "), strings.Join(whereParts, " AND ")), nil
}
