package pgdump

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// DetectDataDir looks for a single PostgreSQL data directory: PGDATA
// first, then a platform-specific list of conventional install paths.
// Returns "" if nothing looks like a data directory.
func DetectDataDir() string {
	if pgdata := os.Getenv("PGDATA"); pgdata != "" && isValidDataDir(pgdata) {
		return pgdata
	}
	for _, path := range getDataDirCandidates() {
		if isValidDataDir(path) {
			return path
		}
	}
	return ""
}

// DetectAllDataDirs returns every candidate path (PGDATA plus the
// platform list) that looks like a valid data directory.
func DetectAllDataDirs() []string {
	seen := make(map[string]bool)
	var results []string

	if pgdata := os.Getenv("PGDATA"); pgdata != "" {
		if resolved := expandPath(pgdata); isValidDataDir(resolved) {
			results = append(results, resolved)
			seen[resolved] = true
		}
	}

	for _, path := range getDataDirCandidates() {
		resolved := expandPath(path)
		if seen[resolved] {
			continue
		}
		if isValidDataDir(resolved) {
			results = append(results, resolved)
			seen[resolved] = true
		}
	}
	return results
}

func getDataDirCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return darwinDataDirPaths()
	case "windows":
		return windowsDataDirPaths()
	default:
		return linuxDataDirPaths()
	}
}

func linuxDataDirPaths() []string {
	paths := []string{
		"/var/lib/postgresql/data",
		"/var/lib/pgsql/data",
	}
	for v := 17; v >= 10; v-- {
		paths = append(paths, "/var/lib/postgresql/"+strconv.Itoa(v)+"/main")
		paths = append(paths, "/var/lib/pgsql/"+strconv.Itoa(v)+"/data")
	}
	return append(paths, "/opt/postgresql/data", "/data/postgresql", "/pgdata")
}

func darwinDataDirPaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{
		"/usr/local/var/postgres",
		"/usr/local/var/postgresql",
		"/opt/homebrew/var/postgres",
		"/opt/homebrew/var/postgresql",
	}
	for v := 17; v >= 12; v-- {
		vs := strconv.Itoa(v)
		paths = append(paths,
			home+"/Library/Application Support/Postgres/var-"+vs,
			"/Library/PostgreSQL/"+vs+"/data",
			"/usr/local/var/postgresql@"+vs,
			"/opt/homebrew/var/postgresql@"+vs,
		)
	}
	return paths
}

func windowsDataDirPaths() []string {
	progFiles := os.Getenv("ProgramFiles")
	if progFiles == "" {
		progFiles = "C:\\Program Files"
	}
	progData := os.Getenv("ProgramData")
	if progData == "" {
		progData = "C:\\ProgramData"
	}

	var paths []string
	for v := 17; v >= 10; v-- {
		vs := strconv.Itoa(v)
		paths = append(paths,
			filepath.Join(progFiles, "PostgreSQL", vs, "data"),
			filepath.Join(progData, "PostgreSQL", vs, "data"),
		)
	}
	return append(paths,
		filepath.Join(progFiles, "edb", "as17", "data"),
		filepath.Join(progFiles, "edb", "as16", "data"),
	)
}

// isValidDataDir requires a non-empty global/1262 (pg_database), the
// one file every PostgreSQL cluster has regardless of version.
func isValidDataDir(path string) bool {
	info, err := os.Stat(filepath.Join(path, "global", "1262"))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
