package idempotency

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed idempotency key repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves an idempotency key by its key value.
func (r *PostgresRepository) Get(key string) (*Key, error) {
	var k Key
	err := r.db.QueryRow(`
		SELECT key, operation, result, created_at
		FROM idempotency_keys WHERE key = $1`, key).
		Scan(&k.Key, &k.Operation, &k.Result, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return &k, nil
}

// Store saves a new idempotency key. The primary key on the key column
// enforces exactly-once semantics under concurrent writers.
func (r *PostgresRepository) Store(record *Key) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO idempotency_keys (key, operation, result, created_at)
		VALUES ($1, $2, $3, $4)`,
		record.Key, record.Operation, record.Result, record.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan removes idempotency keys older than the specified duration.
func (r *PostgresRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM idempotency_keys WHERE created_at < $1`,
		time.Now().Add(-duration))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old idempotency keys: %w", err)
	}
	return result.RowsAffected()
}
