package pgdump

import (
	"os"
	"path/filepath"
	"testing"
)

// Test data paths - set via environment or use local testdata
func testDataPath() string {
	if p := os.Getenv("PGDUMP_TESTDATA"); p != "" {
		return p
	}
	return "testdata"
}

func TestParsePGDatabase(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(testDataPath(), "global", "1262"))
	if err != nil {
		t.Skipf("Test data not available: %v", err)
	}

	dbs := ParsePGDatabase(data)
	if len(dbs) == 0 {
		t.Fatal("Expected at least one database")
	}

	found := false
	for _, db := range dbs {
		if db.Name == "testdb" {
			found = true
			if db.OID == 0 {
				t.Error("testdb OID should not be 0")
			}
		}
	}
	if !found {
		t.Error("Expected to find 'testdb' database")
	}
}

func TestParsePGClass(t *testing.T) {
	dbData, err := os.ReadFile(filepath.Join(testDataPath(), "global", "1262"))
	if err != nil {
		t.Skipf("Test data not available: %v", err)
	}

	var testdbOID uint32
	for _, db := range ParsePGDatabase(dbData) {
		if db.Name == "testdb" {
			testdbOID = db.OID
			break
		}
	}
	if testdbOID == 0 {
		t.Skip("testdb not found")
	}

	classPath := filepath.Join(testDataPath(), "base", uitoa(testdbOID), "1259")
	data, err := os.ReadFile(classPath)
	if err != nil {
		t.Skipf("pg_class not available: %v", err)
	}

	tables := ParsePGClass(data)
	if len(tables) == 0 {
		t.Fatal("Expected at least one table")
	}

	found := false
	for _, tbl := range tables {
		if tbl.Name == "users" || tbl.Name == "secrets" || tbl.Name == "orders" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected to find a user-created table")
	}
}

func TestParsePGAttribute(t *testing.T) {
	dbData, err := os.ReadFile(filepath.Join(testDataPath(), "global", "1262"))
	if err != nil {
		t.Skipf("Test data not available: %v", err)
	}

	var testdbOID uint32
	for _, db := range ParsePGDatabase(dbData) {
		if db.Name == "testdb" {
			testdbOID = db.OID
			break
		}
	}
	if testdbOID == 0 {
		t.Skip("testdb not found")
	}

	attrPath := filepath.Join(testDataPath(), "base", uitoa(testdbOID), "1249")
	data, err := os.ReadFile(attrPath)
	if err != nil {
		t.Skipf("pg_attribute not available: %v", err)
	}

	attrs := ParsePGAttribute(data, 0)
	if len(attrs) == 0 {
		t.Fatal("Expected attributes")
	}

	total := 0
	for _, cols := range attrs {
		total += len(cols)
	}
	if total == 0 {
		t.Error("Expected at least one column definition")
	}
}

func TestDumpDatabaseFromFiles(t *testing.T) {
	path := testDataPath()
	dbData, err := os.ReadFile(filepath.Join(path, "global", "1262"))
	if err != nil {
		t.Skipf("Test data not available: %v", err)
	}

	var testdbOID uint32
	for _, db := range ParsePGDatabase(dbData) {
		if db.Name == "testdb" {
			testdbOID = db.OID
		}
	}
	if testdbOID == 0 {
		t.Skip("testdb not found")
	}

	base := filepath.Join(path, "base", uitoa(testdbOID))
	classData, err := os.ReadFile(filepath.Join(base, "1259"))
	if err != nil {
		t.Skipf("pg_class not available: %v", err)
	}
	attrData, err := os.ReadFile(filepath.Join(base, "1249"))
	if err != nil {
		t.Skipf("pg_attribute not available: %v", err)
	}

	dump, err := DumpDatabaseFromFiles(classData, attrData, func(filenode uint32) ([]byte, error) {
		return os.ReadFile(filepath.Join(base, uitoa(filenode)))
	}, &Options{TableFilter: "secrets", SkipSystemTables: true})
	if err != nil {
		t.Fatalf("DumpDatabaseFromFiles failed: %v", err)
	}

	if len(dump.Tables) == 0 {
		t.Fatal("Expected at least one table")
	}

	for _, tbl := range dump.Tables {
		if tbl.Name == "secrets" && tbl.RowCount > 0 {
			for _, row := range tbl.Rows {
				if val, ok := row["value"]; ok && val != nil {
					return // JSONB field decoded to something
				}
			}
		}
	}
}

func TestDecodeAttributeScalars(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		typ  int
		want string
	}{
		{"bool true", []byte{1}, OidBool, "t"},
		{"bool false", []byte{0}, OidBool, "f"},
		{"int2", []byte{0x39, 0x05}, OidInt2, "1337"},
		{"int4", []byte{0xD2, 0x04, 0x00, 0x00}, OidInt4, "1234"},
		{"int8", []byte{0x15, 0xCD, 0x5B, 0x07, 0x00, 0x00, 0x00, 0x00}, OidInt8, "123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := Column{Name: tt.name, TypID: tt.typ, Len: len(tt.data)}
			c := newCursor(tt.data)
			got, err := decodeAttribute(c, col, nil)
			if err != nil {
				t.Fatalf("decodeAttribute: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeAttribute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func uitoa(u uint32) string {
	return string('0'+byte(u/10000%10)) +
		string('0'+byte(u/1000%10)) +
		string('0'+byte(u/100%10)) +
		string('0'+byte(u/10%10)) +
		string('0'+byte(u%10))
}
