package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockagent/internal/quote"
	"stockagent/internal/storage"
)

var (
	// ErrNotFound is returned when no alert has the requested id.
	ErrNotFound = errors.New("alert not found")
	// ErrInvalidInput marks a rejected create or update payload.
	ErrInvalidInput = errors.New("invalid alert input")
)

// Store persists alerts in the relational database.
type Store struct {
	db *storage.DB
}

func NewStore(db *storage.DB) *Store { return &Store{db: db} }

// Create validates, normalizes the symbol to its canonical uppercase
// form and inserts the alert.
func (s *Store) Create(ctx context.Context, in CreateInput) (Alert, error) {
	symbol, err := quote.Normalize(in.Symbol)
	if err != nil {
		return Alert{}, err
	}
	if strings.TrimSpace(in.AlertType) == "" || strings.TrimSpace(in.Condition) == "" {
		return Alert{}, fmt.Errorf("%w: alert_type and condition are required", ErrInvalidInput)
	}

	a := Alert{
		Symbol:         symbol,
		AlertType:      in.AlertType,
		Condition:      in.Condition,
		ThresholdValue: in.ThresholdValue,
		Message:        in.Message,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}

	const q = `INSERT INTO alerts
		(symbol, alert_type, condition, threshold_value, message, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if s.db.Driver == "postgres" {
		err = s.db.SQL.QueryRowContext(ctx, q+" RETURNING id",
			a.Symbol, a.AlertType, a.Condition, a.ThresholdValue, a.Message, a.IsActive, a.CreatedAt,
		).Scan(&a.ID)
		if err != nil {
			return Alert{}, fmt.Errorf("insert alert: %w", err)
		}
		return a, nil
	}

	res, err := s.db.SQL.ExecContext(ctx, q,
		a.Symbol, a.AlertType, a.Condition, a.ThresholdValue, a.Message, a.IsActive, a.CreatedAt)
	if err != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return a, nil
}

// List returns a page of alerts plus the unpaginated total.
func (s *Store) List(ctx context.Context, f Filter) ([]Alert, int, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if f.Symbol != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(f.Symbol)))
		where = append(where, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.SQL.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q := selectAlert + cond + fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]Alert, 0, limit)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

// ListActive returns every active alert, for keyword extraction.
func (s *Store) ListActive(ctx context.Context) ([]Alert, error) {
	active := true
	alerts, _, err := s.List(ctx, Filter{IsActive: &active, Limit: 10000})
	return alerts, err
}

func (s *Store) Get(ctx context.Context, id int64) (Alert, error) {
	row := s.db.SQL.QueryRowContext(ctx, selectAlert+" WHERE id = $1", id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	return a, err
}

// Update applies the non-nil fields of in and stamps updated_at.
func (s *Store) Update(ctx context.Context, id int64, in UpdateInput) (Alert, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Alert{}, err
	}

	if in.Symbol != nil {
		symbol, err := quote.Normalize(*in.Symbol)
		if err != nil {
			return Alert{}, err
		}
		a.Symbol = symbol
	}
	if in.AlertType != nil {
		a.AlertType = *in.AlertType
	}
	if in.Condition != nil {
		a.Condition = *in.Condition
	}
	if in.ThresholdValue != nil {
		a.ThresholdValue = in.ThresholdValue
	}
	if in.Message != nil {
		a.Message = *in.Message
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	now := time.Now().UTC()
	a.UpdatedAt = &now

	const q = `UPDATE alerts SET symbol = $1, alert_type = $2, condition = $3,
		threshold_value = $4, message = $5, is_active = $6, updated_at = $7
		WHERE id = $8`
	if _, err := s.db.SQL.ExecContext(ctx, q,
		a.Symbol, a.AlertType, a.Condition, a.ThresholdValue, a.Message, a.IsActive, a.UpdatedAt, id); err != nil {
		return Alert{}, fmt.Errorf("update alert: %w", err)
	}
	return a, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.SQL.ExecContext(ctx, "DELETE FROM alerts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectAlert = `SELECT id, symbol, alert_type, condition, threshold_value,
	message, is_active, created_at, updated_at FROM alerts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (Alert, error) {
	var a Alert
	var threshold sql.NullFloat64
	var message sql.NullString
	var updated sql.NullTime
	err := row.Scan(&a.ID, &a.Symbol, &a.AlertType, &a.Condition,
		&threshold, &message, &a.IsActive, &a.CreatedAt, &updated)
	if err != nil {
		return Alert{}, err
	}
	if threshold.Valid {
		a.ThresholdValue = &threshold.Float64
	}
	a.Message = message.String
	if updated.Valid {
		t := updated.Time.UTC()
		a.UpdatedAt = &t
	}
	return a, nil
}
