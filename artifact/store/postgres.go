package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/launchforge/launchforge/artifact"
	"github.com/launchforge/launchforge/errs"
)

// PostgresStore implements artifact.Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "launchforge",
		SSLMode:  "disable",
	}
}

// NewPostgresStore connects to PostgreSQL and ensures the artifacts table.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS artifacts (
		project_id VARCHAR(255) NOT NULL,
		kind VARCHAR(64) NOT NULL,
		data TEXT NOT NULL,
		version INTEGER NOT NULL,
		previous_data TEXT,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (project_id, kind)
	);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get implements artifact.Store.
func (s *PostgresStore) Get(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	rec := &artifact.Record{ProjectID: projectID, Kind: kind}
	var previous sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, previous_data, updated_at FROM artifacts WHERE project_id = $1 AND kind = $2`,
		projectID, kind,
	).Scan(&rec.Data, &rec.Version, &previous, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("artifact %s/%s", projectID, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	rec.PreviousData = previous.String
	return rec, nil
}

// Put implements artifact.Store. The upsert shifts the current data into the
// undo slot in one statement, so concurrent writers cannot lose a version.
func (s *PostgresStore) Put(ctx context.Context, projectID, kind, data string) (*artifact.Record, error) {
	rec := &artifact.Record{ProjectID: projectID, Kind: kind, Data: data}
	var previous sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO artifacts (project_id, kind, data, version, previous_data, updated_at)
		VALUES ($1, $2, $3, 1, NULL, NOW())
		ON CONFLICT (project_id, kind) DO UPDATE
		SET previous_data = artifacts.data,
		    data = EXCLUDED.data,
		    version = artifacts.version + 1,
		    updated_at = NOW()
		RETURNING version, previous_data, updated_at`,
		projectID, kind, data,
	).Scan(&rec.Version, &previous, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	rec.PreviousData = previous.String
	return rec, nil
}

// Undo implements artifact.Store.
func (s *PostgresStore) Undo(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	rec := &artifact.Record{ProjectID: projectID, Kind: kind}
	err := s.db.QueryRowContext(ctx, `
		UPDATE artifacts
		SET data = previous_data,
		    previous_data = NULL,
		    version = version + 1,
		    updated_at = NOW()
		WHERE project_id = $1 AND kind = $2 AND previous_data IS NOT NULL AND previous_data <> ''
		RETURNING data, version, updated_at`,
		projectID, kind,
	).Scan(&rec.Data, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("artifact %s/%s has no previous version", projectID, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to undo artifact: %w", err)
	}
	return rec, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, used by health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Purge removes an artifact entirely. Used when a project is deleted.
func (s *PostgresStore) Purge(ctx context.Context, projectID, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE project_id = $1 AND kind = $2`, projectID, kind)
	if err != nil {
		return fmt.Errorf("failed to purge artifact: %w", err)
	}
	return nil
}
