package claim

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresRepository implements Repository backed by PostgreSQL.
// Vote uniqueness per (voter, annotation) is enforced by the
// annotation_votes primary key; vote changes run in a transaction so the
// counters and the vote row move together.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed claim repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateClaim inserts a new claim row.
func (r *PostgresRepository) CreateClaim(c *Claim) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO claims (id, text, author_id, domain, confidence_level,
			credibility_score, truth_label, originality_score, novelty_level,
			originality_boosted, annotation_count, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Text, c.AuthorID, c.Domain, c.ConfidenceLevel,
		c.CredibilityScore, c.TruthLabel, c.OriginalityScore, c.NoveltyLevel,
		c.OriginalityBoosted, c.AnnotationCount, c.Version, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

// GetClaim retrieves a claim by ID.
func (r *PostgresRepository) GetClaim(id string) (*Claim, error) {
	row := r.db.QueryRow(`
		SELECT id, text, author_id, domain, confidence_level,
			credibility_score, truth_label, originality_score, novelty_level,
			originality_boosted, annotation_count, version, created_at
		FROM claims WHERE id = $1`, id)
	return scanClaim(row)
}

// ListClaimsByAuthor returns the author's claims, newest first.
func (r *PostgresRepository) ListClaimsByAuthor(authorID string, limit int) ([]Claim, error) {
	return r.queryClaims(`
		SELECT id, text, author_id, domain, confidence_level,
			credibility_score, truth_label, originality_score, novelty_level,
			originality_boosted, annotation_count, version, created_at
		FROM claims WHERE author_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, authorID, limit)
}

// ListRecentClaims returns the most recent claims, newest first.
func (r *PostgresRepository) ListRecentClaims(limit int) ([]Claim, error) {
	return r.queryClaims(`
		SELECT id, text, author_id, domain, confidence_level,
			credibility_score, truth_label, originality_score, novelty_level,
			originality_boosted, annotation_count, version, created_at
		FROM claims ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

// UpdateScores writes recomputed derived fields under an optimistic version check.
func (r *PostgresRepository) UpdateScores(claimID string, score float64, label string, annotationCount, expectedVersion int) error {
	res, err := r.db.Exec(`
		UPDATE claims
		SET credibility_score = $1, truth_label = $2, annotation_count = $3
		WHERE id = $4 AND version = $5`,
		score, label, annotationCount, claimID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update claim scores: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Distinguish missing claim from a concurrent version bump.
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, claimID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check claim existence: %w", err)
		}
		if !exists {
			return ErrClaimNotFound
		}
		return ErrStaleRecompute
	}
	return nil
}

// DeleteClaim removes a claim; annotations and votes cascade via foreign keys.
func (r *PostgresRepository) DeleteClaim(id string) error {
	res, err := r.db.Exec(`DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// CreateAnnotation inserts an annotation and bumps the claim version.
func (r *PostgresRepository) CreateAnnotation(a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.Exec(`UPDATE claims SET version = version + 1 WHERE id = $1`, a.ClaimID)
	if err != nil {
		return fmt.Errorf("failed to bump claim version: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrClaimNotFound
	}

	_, err = tx.Exec(`
		INSERT INTO annotations (id, claim_id, author_id, text, annotation_type,
			helpful_votes, not_helpful_votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ClaimID, a.AuthorID, a.Text, a.AnnotationType,
		a.HelpfulVotes, a.NotHelpfulVotes, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert annotation: %w", err)
	}

	return tx.Commit()
}

// GetAnnotation retrieves an annotation by ID.
func (r *PostgresRepository) GetAnnotation(id string) (*Annotation, error) {
	var a Annotation
	err := r.db.QueryRow(`
		SELECT id, claim_id, author_id, text, annotation_type,
			helpful_votes, not_helpful_votes, created_at
		FROM annotations WHERE id = $1`, id).
		Scan(&a.ID, &a.ClaimID, &a.AuthorID, &a.Text, &a.AnnotationType,
			&a.HelpfulVotes, &a.NotHelpfulVotes, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnnotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation: %w", err)
	}
	return &a, nil
}

// ListAnnotations returns all annotations for a claim, oldest first.
func (r *PostgresRepository) ListAnnotations(claimID string) ([]Annotation, error) {
	rows, err := r.db.Query(`
		SELECT id, claim_id, author_id, text, annotation_type,
			helpful_votes, not_helpful_votes, created_at
		FROM annotations WHERE claim_id = $1 ORDER BY created_at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Annotation
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(&a.ID, &a.ClaimID, &a.AuthorID, &a.Text, &a.AnnotationType,
			&a.HelpfulVotes, &a.NotHelpfulVotes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// CastVote records or changes a voter's vote transactionally.
func (r *PostgresRepository) CastVote(v *Vote) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var claimID string
	err = tx.QueryRow(`SELECT claim_id FROM annotations WHERE id = $1 FOR UPDATE`, v.AnnotationID).Scan(&claimID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAnnotationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock annotation: %w", err)
	}

	var existingHelpful bool
	err = tx.QueryRow(`
		SELECT helpful FROM annotation_votes
		WHERE annotation_id = $1 AND voter_id = $2`, v.AnnotationID, v.VoterID).Scan(&existingHelpful)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`
			INSERT INTO annotation_votes (annotation_id, voter_id, helpful, created_at)
			VALUES ($1, $2, $3, $4)`, v.AnnotationID, v.VoterID, v.Helpful, v.CreatedAt); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return ErrDuplicateVote
			}
			return fmt.Errorf("failed to insert vote: %w", err)
		}
		delta := `not_helpful_votes = not_helpful_votes + 1`
		if v.Helpful {
			delta = `helpful_votes = helpful_votes + 1`
		}
		if _, err := tx.Exec(`UPDATE annotations SET `+delta+` WHERE id = $1`, v.AnnotationID); err != nil {
			return fmt.Errorf("failed to update vote counts: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query existing vote: %w", err)
	case existingHelpful == v.Helpful:
		return ErrDuplicateVote
	default:
		// Vote change: swap the counts instead of double-counting.
		if _, err := tx.Exec(`
			UPDATE annotation_votes SET helpful = $1
			WHERE annotation_id = $2 AND voter_id = $3`, v.Helpful, v.AnnotationID, v.VoterID); err != nil {
			return fmt.Errorf("failed to change vote: %w", err)
		}
		swap := `helpful_votes = helpful_votes - 1, not_helpful_votes = not_helpful_votes + 1`
		if v.Helpful {
			swap = `helpful_votes = helpful_votes + 1, not_helpful_votes = not_helpful_votes - 1`
		}
		if _, err := tx.Exec(`UPDATE annotations SET `+swap+` WHERE id = $1`, v.AnnotationID); err != nil {
			return fmt.Errorf("failed to swap vote counts: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE claims SET version = version + 1 WHERE id = $1`, claimID); err != nil {
		return fmt.Errorf("failed to bump claim version: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresRepository) queryClaims(query string, args ...any) ([]Claim, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.Text, &c.AuthorID, &c.Domain, &c.ConfidenceLevel,
			&c.CredibilityScore, &c.TruthLabel, &c.OriginalityScore, &c.NoveltyLevel,
			&c.OriginalityBoosted, &c.AnnotationCount, &c.Version, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanClaim(row *sql.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.Text, &c.AuthorID, &c.Domain, &c.ConfidenceLevel,
		&c.CredibilityScore, &c.TruthLabel, &c.OriginalityScore, &c.NoveltyLevel,
		&c.OriginalityBoosted, &c.AnnotationCount, &c.Version, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}
	return &c, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		// Rollback after commit is a no-op; anything else is logged by callers.
		_ = err
	}
}
