// Package history records every accepted settings generation in the
// config_generations table so operators can see what changed and when.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// Sources of a settings generation.
const (
	SourceStartup = "startup"
	SourceAPI     = "api"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// ErrNotFound is returned by Get when no generation has the requested ID.
var ErrNotFound = errors.New("generation not found")

// Generation is one accepted settings replacement.
// Secrets are always stored redacted.
type Generation struct {
	ID        string          `json:"id"`
	Token     uint64          `json:"token"`
	Settings  config.Settings `json:"settings"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter controls which generations List returns.
type Filter struct {
	Source string // optional: startup, api
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains one page of generations, most recent first.
type ListResult struct {
	Generations []Generation `json:"generations"`
	Total       int          `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
}

// Repository defines the interface for settings history operations.
type Repository interface {
	Record(ctx context.Context, gen *Generation) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Get(ctx context.Context, id string) (*Generation, error)
}

// SQLiteRepository stores generations in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a generation. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, gen *Generation) error {
	if gen.ID == "" {
		gen.ID = "gen-" + uuid.NewString()[:8]
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}
	if gen.Source == "" {
		gen.Source = SourceAPI
	}
	gen.Settings = gen.Settings.Redacted()

	data, err := yaml.Marshal(gen.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO config_generations (id, token, settings, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		gen.ID, int64(gen.Token), string(data), gen.Source, //nolint:gosec // tokens never approach MaxInt64
		gen.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}
	return nil
}

// List returns generations matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM config_generations %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting generations: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, token, settings, source, created_at FROM config_generations %s ORDER BY token DESC, created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying generations: %w", err)
	}
	defer rows.Close()

	gens := []Generation{}
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, *gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating generations: %w", err)
	}

	return &ListResult{
		Generations: gens,
		Total:       total,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}, nil
}

// Get returns the generation with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Generation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, token, settings, source, created_at FROM config_generations WHERE id = ?", id)

	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return gen, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s scanner) (*Generation, error) {
	var gen Generation
	var token int64
	var settingsYAML, createdAt string

	if err := s.Scan(&gen.ID, &token, &settingsYAML, &gen.Source, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning generation: %w", err)
	}
	gen.Token = uint64(token) //nolint:gosec // stored from a uint64

	gen.Settings = config.DefaultSettings()
	if err := yaml.Unmarshal([]byte(settingsYAML), &gen.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings for %s: %w", gen.ID, err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing generation timestamp %q: %w", createdAt, err)
	}
	gen.CreatedAt = t

	return &gen, nil
}
