package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/specificity-ai/specmux/internal/metrics"
)

// ErrNotFound is returned when no spec matches the given ID.
var ErrNotFound = fmt.Errorf("spec not found")

const schema = `
CREATE TABLE IF NOT EXISTS specs (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'draft',
	metadata    TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_specs_status ON specs (status);
`

// PostgresStore implements spec persistence backed by PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	recorder *metrics.Recorder
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// DefaultPostgresConfig returns sensible connection-pool defaults.
func DefaultPostgresConfig(dsn string) *PostgresConfig {
	return &PostgresConfig{
		DSN:          dsn,
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		ConnLifetime: 5 * time.Minute,
	}
}

// NewPostgresStore opens the database, verifies connectivity, and ensures
// the schema exists. A nil recorder disables per-query metrics.
func NewPostgresStore(cfg *PostgresConfig, recorder *metrics.Recorder) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if recorder == nil {
		recorder = metrics.NewRecorder(metrics.RecorderConfig{})
	}
	return &PostgresStore{db: db, recorder: recorder}, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Insert stores a new spec. A missing ID gets a generated UUID; timestamps
// are set to now.
func (s *PostgresStore) Insert(ctx context.Context, spec *Spec) error {
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if spec.Status == "" {
		spec.Status = StatusDraft
	}
	now := time.Now().UTC()
	spec.CreatedAt = now
	spec.UpdatedAt = now

	metadataJSON, err := json.Marshal(spec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	return s.recorder.Track(ctx, "specs.insert", func(ctx context.Context) (int, error) {
		query := `
			INSERT INTO specs (id, title, content, status, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		res, err := s.db.ExecContext(ctx, query,
			spec.ID, spec.Title, spec.Content, spec.Status,
			string(metadataJSON), spec.CreatedAt, spec.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert spec: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	})
}

// Get retrieves a spec by ID. Returns ErrNotFound when no row exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Spec, error) {
	var spec Spec
	err := s.recorder.Track(ctx, "specs.get", func(ctx context.Context) (int, error) {
		query := `
			SELECT id, title, content, status, metadata, created_at, updated_at
			FROM specs
			WHERE id = $1`

		var metadataJSON sql.NullString
		err := s.db.QueryRowContext(ctx, query, id).Scan(
			&spec.ID, &spec.Title, &spec.Content, &spec.Status,
			&metadataJSON, &spec.CreatedAt, &spec.UpdatedAt,
		)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("query spec: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &spec.Metadata); err != nil {
				return 0, fmt.Errorf("parse metadata: %w", err)
			}
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// Update rewrites a spec's title, content, status, and metadata. Returns
// ErrNotFound when the ID does not exist.
func (s *PostgresStore) Update(ctx context.Context, spec *Spec) error {
	metadataJSON, err := json.Marshal(spec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	spec.UpdatedAt = time.Now().UTC()

	return s.recorder.Track(ctx, "specs.update", func(ctx context.Context) (int, error) {
		query := `
			UPDATE specs
			SET title = $1, content = $2, status = $3, metadata = $4, updated_at = $5
			WHERE id = $6`
		res, err := s.db.ExecContext(ctx, query,
			spec.Title, spec.Content, spec.Status,
			string(metadataJSON), spec.UpdatedAt, spec.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("update spec: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return 0, ErrNotFound
		}
		return int(n), nil
	})
}

// Delete removes a spec by ID. Returns ErrNotFound when the ID does not
// exist.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.recorder.Track(ctx, "specs.delete", func(ctx context.Context) (int, error) {
		res, err := s.db.ExecContext(ctx, `DELETE FROM specs WHERE id = $1`, id)
		if err != nil {
			return 0, fmt.Errorf("delete spec: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return 0, ErrNotFound
		}
		return int(n), nil
	})
}

// List returns specs ordered by creation time, newest first. An empty
// status matches all statuses.
func (s *PostgresStore) List(ctx context.Context, status string, limit, offset int) ([]*Spec, error) {
	if limit <= 0 {
		limit = 50
	}

	var specs []*Spec
	err := s.recorder.Track(ctx, "specs.list", func(ctx context.Context) (int, error) {
		query := `
			SELECT id, title, content, status, metadata, created_at, updated_at
			FROM specs
			WHERE ($1 = '' OR status = $1)
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`

		rows, err := s.db.QueryContext(ctx, query, status, limit, offset)
		if err != nil {
			return 0, fmt.Errorf("query specs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var spec Spec
			var metadataJSON sql.NullString
			if err := rows.Scan(
				&spec.ID, &spec.Title, &spec.Content, &spec.Status,
				&metadataJSON, &spec.CreatedAt, &spec.UpdatedAt,
			); err != nil {
				return 0, fmt.Errorf("scan spec: %w", err)
			}
			if metadataJSON.Valid && metadataJSON.String != "" {
				if err := json.Unmarshal([]byte(metadataJSON.String), &spec.Metadata); err != nil {
					return 0, fmt.Errorf("parse metadata: %w", err)
				}
			}
			specs = append(specs, &spec)
		}
		return len(specs), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}
