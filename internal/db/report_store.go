package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultReportListLimit caps ListReports when the caller passes limit <= 0.
const DefaultReportListLimit = 50

// ReportSummary is a lightweight listing row.
type ReportSummary struct {
	ID            string    `json:"id"`
	DeviceHash    string    `json:"device_hash,omitempty"`
	Source        string    `json:"source"`
	Concentration *float64  `json:"C,omitempty"`
	CurveID       string    `json:"curve_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReportStore persists completed analyses keyed by UUID.
type ReportStore struct {
	db *DB
}

// NewReportStore creates a ReportStore.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveAnalysisReport stores r and returns its ID. An empty ID is replaced
// with a UUID and a zero CreatedAt with the current time.
func (s *ReportStore) SaveAnalysisReport(ctx context.Context, r *spectro.AnalysisReport) (string, error) {
	if r == nil {
		return "", spectro.Errorf(spectro.ErrValidation, "save report", "report is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.db.now().UTC()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	var conc, curveID interface{}
	if c := r.Result.C; !math.IsNaN(c) && !math.IsInf(c, 0) {
		conc = c
	}
	if r.Curve != nil && r.Curve.ID != "" {
		curveID = r.Curve.ID
	}

	err = retryOnBusy(s.db.clock, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO analysis_reports (
				report_id, device_hash, source, concentration, curve_id,
				payload_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.DeviceHash, r.Source, conc, curveID,
			string(payload), r.CreatedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return r.ID, nil
}

// GetReport returns the full report with the given ID.
func (s *ReportStore) GetReport(ctx context.Context, id string) (*spectro.AnalysisReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM analysis_reports WHERE report_id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	var r spectro.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// ListReports returns summaries of the most recent reports, newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = DefaultReportListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, device_hash, source, concentration, curve_id, created_at
		FROM analysis_reports
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var (
			sum       ReportSummary
			conc      sql.NullFloat64
			curveID   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&sum.ID, &sum.DeviceHash, &sum.Source, &conc, &curveID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if conc.Valid {
			sum.Concentration = spectro.Float(conc.Float64)
		}
		sum.CurveID = curveID.String
		sum.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
