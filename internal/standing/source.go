package standing

import (
	"database/sql"
	"fmt"
)

// PostgresDataSource derives user snapshots from the stored claims,
// annotations, and votes. The engine has no user directory of its own, so
// account age is read as the user's earliest recorded activity.
type PostgresDataSource struct {
	db *sql.DB
}

// NewPostgresDataSource creates a Postgres-backed snapshot source.
func NewPostgresDataSource(db *sql.DB) *PostgresDataSource {
	return &PostgresDataSource{db: db}
}

// UserSnapshot aggregates the user's activity into a snapshot for metric
// computation. Returns ErrUserNotFound when the user has no recorded
// activity at all.
func (s *PostgresDataSource) UserSnapshot(userID string) (*UserSnapshot, error) {
	snap := UserSnapshot{UserID: userID}

	var firstActivity sql.NullTime
	err := s.db.QueryRow(`
		SELECT MIN(created_at) FROM (
			SELECT created_at FROM claims WHERE author_id = $1
			UNION ALL
			SELECT created_at FROM annotations WHERE author_id = $1
		) activity`, userID).Scan(&firstActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to query first activity: %w", err)
	}
	if !firstActivity.Valid {
		return nil, ErrUserNotFound
	}
	snap.CreatedAt = firstActivity.Time

	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(credibility_score), 0),
		       COALESCE(AVG(originality_score), 0)
		FROM claims WHERE author_id = $1`, userID).
		Scan(&snap.ClaimsPosted, &snap.AvgClaimCredibility, &snap.AvgOriginality)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim stats: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(helpful_votes), 0),
		       COALESCE(SUM(not_helpful_votes), 0)
		FROM annotations WHERE author_id = $1`, userID).
		Scan(&snap.AnnotationsAdded, &snap.HelpfulVotesReceived, &snap.NotHelpfulVotesReceived)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation stats: %w", err)
	}

	return &snap, nil
}
