package db

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the debug index on mux with a live tailsql
// console over this database and an on-demand gzip backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://absorbance.db", db.DB, &tailsql.DBOptions{
		Label: "Absorbance DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("db-stats", "Row counts and on-disk size", http.HandlerFunc(db.serveStats))
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

// TableStats is the row count of one table.
type TableStats struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// DatabaseStats summarises table sizes for the debug page.
type DatabaseStats struct {
	Tables    []TableStats `json:"tables"`
	SizeBytes int64        `json:"size_bytes"`
}

var statsTables = []string{"device_profiles", "calibration_curves", "analysis_reports"}

// Stats returns row counts for the domain tables and the database size.
func (db *DB) Stats(ctx context.Context) (DatabaseStats, error) {
	var st DatabaseStats
	for _, table := range statsTables {
		var n int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return st, fmt.Errorf("count %s: %w", table, err)
		}
		st.Tables = append(st.Tables, TableStats{Name: table, Rows: n})
	}
	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return st, fmt.Errorf("page_count: %w", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return st, fmt.Errorf("page_size: %w", err)
	}
	st.SizeBytes = pageCount * pageSize
	return st, nil
}

func (db *DB) serveStats(w http.ResponseWriter, r *http.Request) {
	st, err := db.Stats(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read stats: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logf("encode stats: %v", err)
	}
}

// serveBackup snapshots the database with VACUUM INTO and streams it gzipped.
func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("backup-%d.db", db.now().Unix())
	dir, err := os.MkdirTemp("", "absorbance-backup-")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup dir: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logf("failed to remove backup dir %s: %v", dir, err)
		}
	}()
	backupPath := filepath.Join(dir, name)

	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		logf("backup stream failed: %v", err)
	}
}
