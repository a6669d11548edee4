package preview

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
)

type managed struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager owns the live preview sessions of a daemon.
type Manager struct {
	opts   Options
	shared Collaborators
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*managed
}

// NewManager builds a manager. shared supplies the collaborators every session
// uses (speech, upload, fonts); per-session outputs are passed to Create.
func NewManager(opts Options, shared Collaborators) *Manager {
	return &Manager{
		opts:     opts,
		shared:   shared,
		logger:   logging.NewComponentLogger(opts.Logger, "preview-manager"),
		sessions: make(map[string]*managed),
	}
}

// Create starts a session whose frame loop runs until ctx is cancelled or the
// session is removed.
func (m *Manager) Create(ctx context.Context, tl *timeline.Timeline, outputs Collaborators) (*Session, error) {
	collab := outputs
	if collab.Synthesizer == nil {
		collab.Synthesizer = m.shared.Synthesizer
	}
	if collab.Uploader == nil {
		collab.Uploader = m.shared.Uploader
	}
	if collab.Fonts == nil {
		collab.Fonts = m.shared.Fonts
	}

	runCtx, cancel := context.WithCancel(ctx)
	session, err := NewSession(runCtx, tl, collab, m.opts)
	if err != nil {
		cancel()
		return nil, err
	}
	entry := &managed{session: session, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(entry.done)
		session.Run(runCtx)
	}()

	m.mu.Lock()
	m.sessions[session.ID] = entry
	count := len(m.sessions)
	m.mu.Unlock()
	m.logger.Info("session started", logging.String(logging.FieldSessionID, session.ID), logging.Int("sessions", count))
	return session, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "preview", "get session", "session "+id, nil)
	}
	return entry.session, nil
}

// List returns live session IDs in sorted order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Remove stops a session's frame loop and closes it.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	<-entry.done
	entry.session.Close()
	m.logger.Info("session closed", logging.String(logging.FieldSessionID, id))
	return true
}

// CloseAll removes every session.
func (m *Manager) CloseAll() {
	for _, id := range m.List() {
		m.Remove(id)
	}
}
