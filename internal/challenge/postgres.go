package challenge

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed challenge repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateChallenge stores a new challenge.
func (r *PostgresRepository) CreateChallenge(c *Challenge) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = StatusActive
	}

	_, err := r.db.Exec(`
		INSERT INTO challenges
			(id, claim_id, creator_id, question, options, status, created_at, closes_at, resolve_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ClaimID, c.CreatorID, c.Question, pq.Array(c.Options),
		string(c.Status), c.CreatedAt, c.ClosesAt, c.ResolveAt)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (r *PostgresRepository) GetChallenge(id string) (*Challenge, error) {
	row := r.db.QueryRow(`
		SELECT id, COALESCE(claim_id, ''), creator_id, question, options, status,
		       created_at, closes_at, resolve_at,
		       COALESCE(actual_outcome, ''), COALESCE(resolution_explanation, ''),
		       COALESCE(resolved_at, 'epoch'::timestamptz)
		FROM challenges WHERE id = $1`, id)

	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// ListChallengesByStatus returns challenges in the given status.
func (r *PostgresRepository) ListChallengesByStatus(status Status) ([]Challenge, error) {
	rows, err := r.db.Query(`
		SELECT id, COALESCE(claim_id, ''), creator_id, question, options, status,
		       created_at, closes_at, resolve_at,
		       COALESCE(actual_outcome, ''), COALESCE(resolution_explanation, ''),
		       COALESCE(resolved_at, 'epoch'::timestamptz)
		FROM challenges WHERE status = $1
		ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// UpdateChallenge replaces a challenge's mutable resolution fields.
func (r *PostgresRepository) UpdateChallenge(c *Challenge) error {
	result, err := r.db.Exec(`
		UPDATE challenges
		SET status = $2, actual_outcome = NULLIF($3, ''),
		    resolution_explanation = NULLIF($4, ''),
		    resolved_at = CASE WHEN $5::timestamptz = 'epoch'::timestamptz THEN NULL ELSE $5 END
		WHERE id = $1`,
		c.ID, string(c.Status), c.ActualOutcome, c.ResolutionExplanation, resolvedAtOrEpoch(c.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// CreatePrediction stores a prediction. The unique index on
// (challenge_id, user_id) enforces one active prediction per user.
func (r *PostgresRepository) CreatePrediction(p *Prediction) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO challenge_predictions
			(id, challenge_id, user_id, prediction_value, confidence_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ChallengeID, p.UserID, p.Value, p.ConfidenceLevel, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicatePrediction
		}
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// ListPredictions returns all predictions for a challenge.
func (r *PostgresRepository) ListPredictions(challengeID string) ([]Prediction, error) {
	rows, err := r.db.Query(`
		SELECT id, challenge_id, user_id, prediction_value, confidence_level, points_earned, created_at
		FROM challenge_predictions WHERE challenge_id = $1
		ORDER BY created_at`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Prediction
	for rows.Next() {
		var p Prediction
		var points sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.Value,
			&p.ConfidenceLevel, &points, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if points.Valid {
			v := points.Float64
			p.PointsEarned = &v
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// SetPredictionPoints records a prediction's earned points.
func (r *PostgresRepository) SetPredictionPoints(predictionID string, points float64) error {
	result, err := r.db.Exec(`
		UPDATE challenge_predictions SET points_earned = $2 WHERE id = $1`,
		predictionID, points)
	if err != nil {
		return fmt.Errorf("failed to set prediction points: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrPredictionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*Challenge, error) {
	var c Challenge
	var status string
	var options pq.StringArray
	var resolvedAt time.Time
	if err := row.Scan(&c.ID, &c.ClaimID, &c.CreatorID, &c.Question, &options,
		&status, &c.CreatedAt, &c.ClosesAt, &c.ResolveAt,
		&c.ActualOutcome, &c.ResolutionExplanation, &resolvedAt); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	c.Options = []string(options)
	if resolvedAt.Unix() != 0 {
		c.ResolvedAt = resolvedAt
	}
	return &c, nil
}

func resolvedAtOrEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}
