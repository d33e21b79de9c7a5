package standing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRecordStore implements RecordStore backed by PostgreSQL. The table
// is insert-only.
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore creates a new Postgres-backed record store.
func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// AppendRecord stores a new record.
func (s *PostgresRecordStore) AppendRecord(r *Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.ComputedAt.IsZero() {
		r.ComputedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO standing_records
			(id, user_id, content_quality, engagement_consistency, originality,
			 community_feedback, tenure, overall_score, tier, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.UserID, r.ContentQuality, r.EngagementConsistency, r.Originality,
		r.CommunityFeedback, r.Tenure, r.OverallScore, string(r.Tier), r.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to append standing record: %w", err)
	}
	return nil
}

// ListRecent returns the user's most recent records, newest first.
func (s *PostgresRecordStore) ListRecent(userID string, limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, content_quality, engagement_consistency, originality,
		       community_feedback, tenure, overall_score, tier, computed_at
		FROM standing_records WHERE user_id = $1
		ORDER BY computed_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query standing records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Record
	for rows.Next() {
		var r Record
		var tier string
		if err := rows.Scan(&r.ID, &r.UserID, &r.ContentQuality, &r.EngagementConsistency,
			&r.Originality, &r.CommunityFeedback, &r.Tenure, &r.OverallScore,
			&tier, &r.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standing record: %w", err)
		}
		r.Tier = Tier(tier)
		result = append(result, r)
	}
	return result, rows.Err()
}
