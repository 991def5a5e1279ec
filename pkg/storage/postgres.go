package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresBackend implements Backend using PostgreSQL
type PostgresBackend struct {
	db       *sql.DB
	dsn      string
	indexKey string
}

// NewPostgresBackend opens the database, checks connectivity and runs migrations
func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	backend := &PostgresBackend{
		db:       db,
		dsn:      dsn,
		indexKey: GlobalIndexKey,
	}

	if err := backend.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return backend, nil
}

// migrate runs database migrations
func (p *PostgresBackend) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := p.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// PutRecord inserts or fully overwrites a settings record
func (p *PostgresBackend) PutRecord(ctx context.Context, settings *models.OptimizationSettings) error {
	prefs, err := json.Marshal(settings.Preferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO optimization_settings (namespace, deployment, preferences, score, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, deployment) DO UPDATE SET
			preferences = EXCLUDED.preferences,
			score = EXCLUDED.score,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		settings.Identity.Namespace, settings.Identity.Deployment,
		string(prefs), settings.Score, settings.Enabled, settings.UpdatedAt,
	)
	return err
}

// GetRecord retrieves a settings record
func (p *PostgresBackend) GetRecord(ctx context.Context, id models.WorkloadIdentity) (*models.OptimizationSettings, error) {
	query := `
		SELECT preferences, score, enabled, updated_at
		FROM optimization_settings
		WHERE namespace = $1 AND deployment = $2
	`

	settings := models.OptimizationSettings{Identity: id}
	var prefs []byte

	err := p.db.QueryRowContext(ctx, query, id.Namespace, id.Deployment).Scan(
		&prefs, &settings.Score, &settings.Enabled, &settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(prefs, &settings.Preferences); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}

	return &settings, nil
}

// DeleteRecord removes a settings record
func (p *PostgresBackend) DeleteRecord(ctx context.Context, id models.WorkloadIdentity) (bool, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM optimization_settings WHERE namespace = $1 AND deployment = $2`,
		id.Namespace, id.Deployment,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ScanRecords returns every settings record
func (p *PostgresBackend) ScanRecords(ctx context.Context) ([]*models.OptimizationSettings, error) {
	query := `
		SELECT namespace, deployment, preferences, score, enabled, updated_at
		FROM optimization_settings
		ORDER BY namespace, deployment
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.OptimizationSettings
	for rows.Next() {
		var settings models.OptimizationSettings
		var prefs []byte

		err := rows.Scan(
			&settings.Identity.Namespace, &settings.Identity.Deployment,
			&prefs, &settings.Score, &settings.Enabled, &settings.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(prefs, &settings.Preferences); err != nil {
			return nil, fmt.Errorf("failed to decode preferences for %s: %w", settings.Identity, err)
		}

		records = append(records, &settings)
	}

	return records, rows.Err()
}

// AddToIndex adds an identity to the enabled index; adding twice is a no-op
func (p *PostgresBackend) AddToIndex(ctx context.Context, id models.WorkloadIdentity) error {
	query := `
		INSERT INTO optimization_index (index_key, namespace, deployment)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_key, namespace, deployment) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query, p.indexKey, id.Namespace, id.Deployment)
	return err
}

// RemoveFromIndex removes an identity from the enabled index
func (p *PostgresBackend) RemoveFromIndex(ctx context.Context, id models.WorkloadIdentity) (bool, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM optimization_index WHERE index_key = $1 AND namespace = $2 AND deployment = $3`,
		p.indexKey, id.Namespace, id.Deployment,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// IndexMembers lists the enabled index
func (p *PostgresBackend) IndexMembers(ctx context.Context) ([]models.WorkloadIdentity, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT namespace, deployment FROM optimization_index WHERE index_key = $1`,
		p.indexKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.WorkloadIdentity
	for rows.Next() {
		var id models.WorkloadIdentity
		if err := rows.Scan(&id.Namespace, &id.Deployment); err != nil {
			return nil, err
		}
		members = append(members, id)
	}

	return members, rows.Err()
}

// SaveRecommendation saves a recommendation
func (p *PostgresBackend) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO recommendations (
			id, pass_id, type, strategy, namespace, deployment,
			current_replicas, recommended_replicas, score, utilization,
			reason, savings_hourly, risk, command, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID, rec.PassID, rec.Type, rec.Strategy,
		rec.Workload.Namespace, rec.Workload.Deployment,
		rec.CurrentReplicas, rec.RecommendedReplicas, rec.Score, rec.Utilization,
		rec.Reason, rec.SavingsHourly, rec.Risk, rec.Command, rec.CreatedAt,
	)

	return err
}

// ListRecommendations retrieves recommendations for a namespace, newest first.
// An empty namespace matches every namespace.
func (p *PostgresBackend) ListRecommendations(ctx context.Context, namespace string, limit int) ([]*models.Recommendation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, pass_id, type, strategy, namespace, deployment,
			current_replicas, recommended_replicas, score, utilization,
			reason, savings_hourly, risk, command, created_at
		FROM recommendations
		WHERE ($1 = '' OR namespace = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recommendations []*models.Recommendation
	for rows.Next() {
		var rec models.Recommendation

		err := rows.Scan(
			&rec.ID, &rec.PassID, &rec.Type, &rec.Strategy,
			&rec.Workload.Namespace, &rec.Workload.Deployment,
			&rec.CurrentReplicas, &rec.RecommendedReplicas, &rec.Score, &rec.Utilization,
			&rec.Reason, &rec.SavingsHourly, &rec.Risk, &rec.Command, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		recommendations = append(recommendations, &rec)
	}

	return recommendations, rows.Err()
}

// Flush clears settings, the index and recommendations
func (p *PostgresBackend) Flush(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE optimization_settings, optimization_index, recommendations`)
	return err
}

// Ping checks database connectivity
func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}
