package draftstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"storyreel/internal/config"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
)

// Draft is a saved timeline.
type Draft struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timeline  *timeline.Timeline `json:"timeline"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Summary is the listing view of a draft.
type Summary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SceneCount      int       `json:"sceneCount"`
	DurationSeconds float64   `json:"durationSeconds"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store manages draft persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the draft database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DraftDBPath())
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces a draft. A draft without an ID gets a new one.
func (s *Store) Save(ctx context.Context, draft *Draft) error {
	if draft == nil || draft.Timeline == nil {
		return services.Wrap(services.ErrValidation, "draftstore", "save", "draft timeline required", nil)
	}
	if err := draft.Timeline.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "draftstore", "save", "invalid timeline", err)
	}
	payload, err := json.Marshal(draft.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	now := time.Now().UTC()
	if strings.TrimSpace(draft.ID) == "" {
		draft.ID = uuid.NewString()
	}
	if strings.TrimSpace(draft.Name) == "" {
		draft.Name = "Untitled draft"
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO drafts (id, name, timeline_json, scene_count, duration_seconds, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             timeline_json = excluded.timeline_json,
             scene_count = excluded.scene_count,
             duration_seconds = excluded.duration_seconds,
             updated_at = excluded.updated_at`,
		draft.ID,
		draft.Name,
		string(payload),
		len(draft.Timeline.Scenes),
		draft.Timeline.TotalDuration(),
		draft.CreatedAt.Format(time.RFC3339Nano),
		draft.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Get fetches a draft by identifier. It returns nil, nil when none exists.
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, timeline_json, created_at, updated_at FROM drafts WHERE id = ?`, id)
	var (
		draft      Draft
		payload    string
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&draft.ID, &draft.Name, &payload, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	tl, err := timeline.Decode(strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	draft.Timeline = tl
	draft.CreatedAt = parseTime(createdRaw)
	draft.UpdatedAt = parseTime(updatedRaw)
	return &draft, nil
}

// List returns draft summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, scene_count, duration_seconds, updated_at FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			summary    Summary
			updatedRaw string
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.SceneCount, &summary.DurationSeconds, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		summary.UpdatedAt = parseTime(updatedRaw)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Delete removes a draft and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
