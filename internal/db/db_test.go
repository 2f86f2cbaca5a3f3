package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/absorbance.report/internal/timeutil"
)

var testEpoch = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// newTestDB opens a migrated database in a temp dir with a mock clock.
func newTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(testEpoch)
	db.SetClock(clock)
	return db, clock
}

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	db, _ := newTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var synchronous int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&synchronous); err != nil {
		t.Fatalf("Failed to query synchronous: %v", err)
	}
	if synchronous != 1 { // 1 = NORMAL
		t.Errorf("Expected synchronous=1 (NORMAL), got %d", synchronous)
	}

	var tempStore int
	if err := db.QueryRow("PRAGMA temp_store").Scan(&tempStore); err != nil {
		t.Fatalf("Failed to query temp_store: %v", err)
	}
	if tempStore != 2 { // 2 = MEMORY
		t.Errorf("Expected temp_store=2 (MEMORY), got %d", tempStore)
	}
}

// TestOpenDB_ExistingDatabase verifies reopening keeps data and schema.
func TestOpenDB_ExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO device_profiles (slot, device_hash, schema_version, payload_json, updated_at)
		VALUES (1, 'dev', 2, '{}', 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	db, err = OpenDB(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM device_profiles`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 profile row after reopen, got %d", n)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		clock := timeutil.NewMockClock(testEpoch)
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if len(clock.Sleeps()) != 0 {
			t.Errorf("expected no sleeps, got %v", clock.Sleeps())
		}
	})

	t.Run("success after busy", func(t *testing.T) {
		clock := timeutil.NewMockClock(testEpoch)
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		sleeps := clock.Sleeps()
		if len(sleeps) != 2 || sleeps[0] != 20*time.Millisecond || sleeps[1] != 40*time.Millisecond {
			t.Errorf("unexpected backoff %v", sleeps)
		}
	})

	t.Run("non-busy error is not retried", func(t *testing.T) {
		clock := timeutil.NewMockClock(testEpoch)
		calls := 0
		sentinel := errors.New("constraint failed")
		err := retryOnBusy(clock, func() error {
			calls++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("expected sentinel, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		clock := timeutil.NewMockClock(testEpoch)
		calls := 0
		busy := errors.New("SQLITE_BUSY")
		err := retryOnBusy(clock, func() error {
			calls++
			return busy
		})
		if !errors.Is(err, busy) {
			t.Errorf("expected wrapped busy error, got %v", err)
		}
		if calls != busyRetries+1 {
			t.Errorf("expected %d calls, got %d", busyRetries+1, calls)
		}
		if len(clock.Sleeps()) != busyRetries {
			t.Errorf("expected %d sleeps, got %d", busyRetries, len(clock.Sleeps()))
		}
	})
}
