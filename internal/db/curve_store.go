package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// DefaultCurveListLimit caps LoadCurves when the caller passes limit <= 0.
const DefaultCurveListLimit = 100

// CurveStore persists calibration curves, newest first.
type CurveStore struct {
	db *DB
}

// NewCurveStore creates a CurveStore.
func NewCurveStore(db *DB) *CurveStore {
	return &CurveStore{db: db}
}

// AddCurve stores c and returns its ID. An empty ID is replaced with a UUID
// and a zero CreatedAt with the current time; both are written back to c.
func (s *CurveStore) AddCurve(ctx context.Context, c *spectro.CalibrationCurve) (string, error) {
	if !c.Valid() {
		return "", spectro.Errorf(spectro.ErrValidation, "add curve", "curve slope must be finite and non-zero")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = s.db.now().UnixNano()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode curve: %w", err)
	}

	var r2 interface{}
	if c.R2 != nil {
		r2 = *c.R2
	}
	err = retryOnBusy(s.db.clock, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO calibration_curves (
				curve_id, device_hash, lambda_nm, slope, intercept, r2,
				weights_used, payload_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DeviceHash, c.LambdaNm, c.M, c.B, r2,
			c.WeightsUsed, string(payload), c.CreatedAt,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert curve: %w", err)
	}
	return c.ID, nil
}

// LoadCurves returns up to limit curves ordered by creation time descending.
// An empty deviceHash returns curves for every device.
func (s *CurveStore) LoadCurves(ctx context.Context, deviceHash string, limit int) ([]*spectro.CalibrationCurve, error) {
	if limit <= 0 {
		limit = DefaultCurveListLimit
	}
	query := `SELECT payload_json FROM calibration_curves`
	args := []interface{}{}
	if deviceHash != "" {
		query += ` WHERE device_hash = ?`
		args = append(args, deviceHash)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query curves: %w", err)
	}
	defer rows.Close()

	var curves []*spectro.CalibrationCurve
	for rows.Next() {
		c, err := scanCurve(rows)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	return curves, rows.Err()
}

// GetCurve returns the curve with the given ID.
func (s *CurveStore) GetCurve(ctx context.Context, id string) (*spectro.CalibrationCurve, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM calibration_curves WHERE curve_id = ?`, id)
	c, err := scanCurve(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("curve %s: %w", id, ErrNotFound)
	}
	return c, err
}

// DeleteCurve removes a curve by ID.
func (s *CurveStore) DeleteCurve(ctx context.Context, id string) error {
	var n int64
	err := retryOnBusy(s.db.clock, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM calibration_curves WHERE curve_id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete curve: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("curve %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCurve(sc scanner) (*spectro.CalibrationCurve, error) {
	var payload string
	if err := sc.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan curve: %w", err)
	}
	var c spectro.CalibrationCurve
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("decode curve: %w", err)
	}
	return &c, nil
}
