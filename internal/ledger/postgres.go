package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore implements Store backed by PostgreSQL. The table is insert-only.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append adds a new entry.
func (s *PostgresStore) Append(e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO reputation_ledger (id, user_id, source_claim_id, source_annotation_id, delta, reason, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.SourceClaimID, e.SourceAnnotationID, e.Delta, e.Reason, e.AppliedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// SumBySourceClaim returns the signed sum of entries for a source claim.
func (s *PostgresStore) SumBySourceClaim(claimID string) (float64, error) {
	var sum float64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(delta), 0) FROM reputation_ledger WHERE source_claim_id = $1`,
		claimID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries for claim: %w", err)
	}
	return sum, nil
}

// SumByAnnotation returns total vote credit granted for an annotation.
func (s *PostgresStore) SumByAnnotation(annotationID string) (float64, error) {
	var sum float64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(delta), 0) FROM reputation_ledger WHERE source_annotation_id = $1`,
		annotationID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries for annotation: %w", err)
	}
	return sum, nil
}

// Balance returns the sum of all the user's entries.
func (s *PostgresStore) Balance(userID string) (float64, error) {
	var sum float64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(delta), 0) FROM reputation_ledger WHERE user_id = $1`,
		userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum user ledger entries: %w", err)
	}
	return sum, nil
}

// ListByUser returns the user's entries, newest first.
func (s *PostgresStore) ListByUser(userID string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, source_claim_id, source_annotation_id, delta, reason, applied_at
		FROM reputation_ledger WHERE user_id = $1
		ORDER BY applied_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SourceClaimID, &e.SourceAnnotationID,
			&e.Delta, &e.Reason, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
