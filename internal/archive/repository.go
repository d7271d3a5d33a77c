// Package archive persists completed request summaries for offline
// analysis. Writes happen off the request path through a buffered
// worker; losing an archive record under pressure is acceptable,
// delaying a chat response is not.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/booomerangs/ai-orchestrator/internal/crypto"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

type Repository interface {
	Save(ctx context.Context, rec domain.ArchiveRecord) error
	Recent(ctx context.Context, limit int) ([]domain.ArchiveRecord, error)
}

// PostgresRepository stores records in the request_archive table.
// When an encryptor is supplied, message and response text are
// encrypted before hitting the database.
type PostgresRepository struct {
	db        *sql.DB
	encryptor *crypto.Encryptor
}

func NewPostgresRepository(db *sql.DB, encryptor *crypto.Encryptor) *PostgresRepository {
	return &PostgresRepository{db: db, encryptor: encryptor}
}

func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec domain.ArchiveRecord) error {
	message, response := rec.Message, rec.Response
	if r.encryptor != nil {
		var err error
		if message, err = r.encryptor.Encrypt(message); err != nil {
			return fmt.Errorf("encrypt message: %w", err)
		}
		if response, err = r.encryptor.Encrypt(response); err != nil {
			return fmt.Errorf("encrypt response: %w", err)
		}
	}

	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}

	query := `
		INSERT INTO request_archive
			(request_id, message, response, provider, model, level,
			 confidence, from_cache, emergency, latency_ms, attempts, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.RequestID,
		message,
		response,
		rec.Provider,
		rec.Model,
		int(rec.Level),
		rec.Confidence,
		rec.FromCache,
		rec.Emergency,
		rec.LatencyMs,
		attempts,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert archive record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]domain.ArchiveRecord, error) {
	query := `
		SELECT request_id, message, response, provider, model, level,
		       confidence, from_cache, emergency, latency_ms, attempts, completed_at
		FROM request_archive
		ORDER BY completed_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var records []domain.ArchiveRecord
	for rows.Next() {
		var rec domain.ArchiveRecord
		var level int
		var attempts []byte

		err := rows.Scan(
			&rec.RequestID,
			&rec.Message,
			&rec.Response,
			&rec.Provider,
			&rec.Model,
			&level,
			&rec.Confidence,
			&rec.FromCache,
			&rec.Emergency,
			&rec.LatencyMs,
			&attempts,
			&rec.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive record: %w", err)
		}

		rec.Level = domain.DegradationLevel(level)
		if len(attempts) > 0 {
			if err := json.Unmarshal(attempts, &rec.Attempts); err != nil {
				return nil, fmt.Errorf("unmarshal attempts: %w", err)
			}
		}

		if r.encryptor != nil {
			if rec.Message, err = r.encryptor.Decrypt(rec.Message); err != nil {
				return nil, fmt.Errorf("decrypt message: %w", err)
			}
			if rec.Response, err = r.encryptor.Decrypt(rec.Response); err != nil {
				return nil, fmt.Errorf("decrypt response: %w", err)
			}
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// InMemoryRepository holds the most recent records in a ring, for
// tests and database-less deployments.
type InMemoryRepository struct {
	mu      sync.Mutex
	records []domain.ArchiveRecord
	max     int
}

func NewInMemoryRepository(max int) *InMemoryRepository {
	if max <= 0 {
		max = 1000
	}
	return &InMemoryRepository{max: max}
}

func (r *InMemoryRepository) Save(ctx context.Context, rec domain.ArchiveRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	if len(r.records) > r.max {
		r.records = r.records[len(r.records)-r.max:]
	}
	return nil
}

func (r *InMemoryRepository) Recent(ctx context.Context, limit int) ([]domain.ArchiveRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}

	out := make([]domain.ArchiveRecord, 0, limit)
	for i := len(r.records) - 1; i >= len(r.records)-limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
