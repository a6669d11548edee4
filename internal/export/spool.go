// Package export hands finished timelines to the external encoder by writing
// job manifests into a spool directory. Encoding itself happens elsewhere; the
// encoder picks up *.json manifests and removes them when done.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"storyreel/internal/fileutil"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
)

const (
	lockName      = ".spool.lock"
	lockRetry     = 50 * time.Millisecond
	manifestExt   = ".json"
	manifestPerms = 0o644
)

// NarrationRef points the encoder at one synthesized clip and where it starts.
type NarrationRef struct {
	SceneID         string  `json:"sceneId"`
	PartIndex       int     `json:"partIndex"`
	StartSeconds    float64 `json:"startSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	URL             string  `json:"url,omitempty"`
}

// Manifest is one export job.
type Manifest struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	DraftID     string           `json:"draftId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Timeline    timeline.Payload `json:"timeline"`
	Narration   []NarrationRef   `json:"narration,omitempty"`
	BGMTemplate string           `json:"bgmTemplate,omitempty"`
}

// Spool is a directory of pending export manifests guarded by a file lock so
// several storyreel processes can submit concurrently.
type Spool struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewSpool prepares a spool rooted at dir.
func NewSpool(dir string, logger *slog.Logger) (*Spool, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "export", "open spool", "paths.spool_dir not set", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Spool{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockName)),
		logger: logging.NewComponentLogger(logger, "export"),
	}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Submit writes m as a new manifest. ID and CreatedAt are assigned when unset.
func (s *Spool) Submit(ctx context.Context, m Manifest) (Manifest, error) {
	if len(m.Timeline.Scenes) == 0 {
		return m, services.Wrap(services.ErrValidation, "export", "submit", "timeline has no scenes", nil)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("marshal manifest: %w", err)
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return m, err
	}
	defer unlock()

	path := s.manifestPath(m.ID)
	if _, err := os.Stat(path); err == nil {
		return m, services.Wrap(services.ErrValidation, "export", "submit", "manifest "+m.ID+" already queued", nil)
	}
	if err := fileutil.WriteFileAtomic(path, data, manifestPerms); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	s.logger.Info("export queued",
		logging.String("export_id", m.ID),
		logging.String("name", m.Name),
		logging.Int("scenes", len(m.Timeline.Scenes)),
	)
	return m, nil
}

// Pending lists queued manifests, oldest first. Unreadable files are skipped
// with a warning.
func (s *Spool) Pending(ctx context.Context) ([]Manifest, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}
	var out []Manifest
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != manifestExt {
			continue
		}
		m, err := readManifest(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable manifest",
				logging.String("file", entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "export_manifest_invalid"),
			)
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns a queued manifest.
func (s *Spool) Get(id string) (Manifest, error) {
	m, err := readManifest(s.manifestPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return m, services.Wrap(services.ErrNotFound, "export", "get", "manifest "+id, nil)
	}
	return m, err
}

// Remove drops a manifest and reports whether it existed.
func (s *Spool) Remove(ctx context.Context, id string) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	err = os.Remove(s.manifestPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove manifest: %w", err)
	}
	return true, nil
}

func (s *Spool) acquire(ctx context.Context) (func(), error) {
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("acquire spool lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "export", "lock", "spool is busy", nil)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release spool lock", logging.Error(err))
		}
	}, nil
}

func (s *Spool) manifestPath(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+manifestExt)
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
