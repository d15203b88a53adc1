// Package audit records Bluetooth pairing authorization decisions.
//
// Every request the agent sees is written here, granted or denied, so an
// operator can answer "what paired with this box, and when" after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of a pairing authorization request.
type Decision string

const (
	// DecisionGranted means the request arrived while the pairing window
	// was open and the device was trusted.
	DecisionGranted Decision = "granted"

	// DecisionDenied means the request arrived outside a pairing window
	// and was rejected.
	DecisionDenied Decision = "denied"
)

// PairingRecord is a single authorization decision.
type PairingRecord struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	Service    string    `json:"service"`
	Decision   Decision  `json:"decision"`
	WindowOpen bool      `json:"window_open"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which pairing records to return.
type Filter struct {
	Decision Decision // optional: filter by decision
	Limit    int      // default 50, max 200
	Offset   int      // pagination offset
}

// Filter limits.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListResult contains paginated pairing records.
type ListResult struct {
	Records []PairingRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Repository defines the interface for pairing audit operations.
type Repository interface {
	Create(ctx context.Context, rec *PairingRecord) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores pairing records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new pairing audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new pairing record. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *PairingRecord) error {
	if rec.ID == "" {
		rec.ID = "aud-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pairing_audit (id, device, service, decision, window_open, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Device, rec.Service, string(rec.Decision),
		boolToInt(rec.WindowOpen),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting pairing record: %w", err)
	}
	return nil
}

// List returns pairing records, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	where := ""
	args := []any{}
	if filter.Decision != "" {
		where = "WHERE decision = ?"
		args = append(args, string(filter.Decision))
	}

	var total int
	countQuery := "SELECT count(*) FROM pairing_audit " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting pairing records: %w", err)
	}

	query := `SELECT id, device, service, decision, window_open, created_at
		 FROM pairing_audit ` + where + `
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pairing records: %w", err)
	}
	defer rows.Close()

	result := &ListResult{
		Records: []PairingRecord{},
		Total:   total,
		Limit:   limit,
		Offset:  filter.Offset,
	}
	for rows.Next() {
		var (
			rec        PairingRecord
			decision   string
			windowOpen int
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.Device, &rec.Service, &decision, &windowOpen, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pairing record: %w", err)
		}
		rec.Decision = Decision(decision)
		rec.WindowOpen = windowOpen != 0
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing pairing record timestamp: %w", err)
		}
		rec.CreatedAt = ts
		result.Records = append(result.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairing records: %w", err)
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
