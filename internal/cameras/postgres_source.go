package cameras

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/routing"
)

const schema = `
CREATE TABLE IF NOT EXISTS camera_conditions (
	camera_id     TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	status        TEXT NOT NULL,
	condition     TEXT NOT NULL DEFAULT '',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	safety_level  TEXT NOT NULL DEFAULT 'unknown',
	observed_at   TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSource reads camera conditions from the camera_conditions table
type PostgresSource struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresSource creates a new PostgresSource
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool, now: time.Now}
}

func (p *PostgresSource) Name() string {
	return "postgres:camera_conditions"
}

// EnsureSchema creates the camera_conditions table when missing
func (p *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// Load reads every row. Rows that are not successful count as failed; rows
// without coordinates are skipped.
func (p *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT camera_id, display_name, latitude, longitude, status,
		       condition, confidence, safety_level, observed_at, updated_at
		FROM camera_conditions
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query camera conditions: %w", err)
	}
	defer rows.Close()

	var (
		observations []routing.CameraObservation
		failures     []FailedCamera
		newest       time.Time
	)
	for rows.Next() {
		var (
			id, name, status, condition, level string
			lat, lon                           *float64
			confidence                         float64
			observedAt                         *time.Time
			updatedAt                          time.Time
		)
		if err := rows.Scan(&id, &name, &lat, &lon, &status, &condition, &confidence, &level, &observedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan camera row: %w", err)
		}
		if updatedAt.After(newest) {
			newest = updatedAt
		}
		var location *geo.Coordinate
		if lat != nil && lon != nil {
			if c := (geo.Coordinate{Longitude: *lon, Latitude: *lat}); c.Valid() {
				location = &c
			}
		}
		if status != StatusSuccess {
			failures = append(failures, FailedCamera{
				CameraID:    id,
				DisplayName: name,
				Location:    location,
				Status:      status,
			})
			continue
		}
		if location == nil {
			continue
		}
		obs := routing.CameraObservation{
			CameraID:    id,
			Location:    *location,
			DisplayName: name,
			Condition:   condition,
			Confidence:  confidence,
			SafetyLevel: routing.ParseSafetyLevel(level),
		}
		if observedAt != nil {
			obs.ObservedAt = observedAt.UTC()
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read camera rows: %w", err)
	}

	return NewSnapshot(observations, 0, newest.UTC(), p.now().UTC()).withFailures(failures), nil
}

// Import upserts a results document into the table
func (p *PostgresSource) Import(ctx context.Context, results Results) (int, error) {
	batch := &pgx.Batch{}
	for id, rec := range results {
		var condition, level string
		var confidence float64
		var observedAt *time.Time
		if c := rec.Classification; c != nil {
			condition, confidence, level = c.Condition, c.Confidence, c.SafetyLevel
			if t, err := ParseTimestamp(c.Timestamp); err == nil {
				observedAt = &t
			}
		}
		if level == "" {
			level = string(routing.Unknown)
		}
		batch.Queue(`
			INSERT INTO camera_conditions (
				camera_id, display_name, latitude, longitude, status,
				condition, confidence, safety_level, observed_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (camera_id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				status = EXCLUDED.status,
				condition = EXCLUDED.condition,
				confidence = EXCLUDED.confidence,
				safety_level = EXCLUDED.safety_level,
				observed_at = EXCLUDED.observed_at,
				updated_at = now()
		`, id, rec.Camera.DisplayName, rec.Camera.Latitude, rec.Camera.Longitude, rec.Status,
			condition, confidence, level, observedAt)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("postgres: failed to import camera conditions: %w", err)
	}
	return len(results), nil
}
