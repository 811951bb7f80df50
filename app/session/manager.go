package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/catalog-comb/app/auth"
)

// Manager keeps the live browsing sessions and routes auth transitions to them.
type Manager struct {
	sources     SourceProvider
	fetcher     Fetcher
	merger      Enricher
	overlays    OverlayWriter
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewManager(sources SourceProvider, fetcher Fetcher, merger Enricher, overlays OverlayWriter, signal *auth.Signal, idleTimeout time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		sources:     sources,
		fetcher:     fetcher,
		merger:      merger,
		overlays:    overlays,
		idleTimeout: idleTimeout,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*Controller),
	}

	if signal != nil {
		signal.Subscribe(m.handleAuthEvent)
	}

	return m
}

// Create opens a session on an enabled source and starts its first load in
// the background. The returned channel closes when that load settles.
func (m *Manager) Create(sourceName string, identity *auth.Identity) (*Controller, <-chan struct{}, error) {
	source, err := m.sources.GetEnabledSource(sourceName)
	if err != nil {
		return nil, nil, err
	}

	controller := NewController(uuid.NewString(), source, m.fetcher, m.merger, m.overlays, identity)

	m.mu.Lock()
	m.sessions[controller.ID()] = controller
	m.mu.Unlock()

	slog.Debug("Session created", "session", controller.ID(), "source", source.Name, "signed_in", identity != nil)

	return controller, controller.Start(m.ctx), nil
}

func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	controller, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return controller, nil
}

// Reload restarts the load of a session under the manager's lifetime. The
// session adopts identity, so the reload merges that user's overlays.
func (m *Manager) Reload(id string, identity *auth.Identity) (<-chan struct{}, error) {
	controller, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return controller.Retry(m.ctx, identity), nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	controller, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	controller.Close()
	slog.Debug("Session deleted", "session", id)
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions unused since before now minus the idle timeout.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []*Controller
	for id, controller := range m.sessions {
		if controller.idleSince().Before(cutoff) {
			expired = append(expired, controller)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, controller := range expired {
		controller.Close()
	}

	return len(expired)
}

// Close cancels every in-flight load and drops all sessions.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, controller := range sessions {
		controller.Close()
	}
}

func (m *Manager) handleAuthEvent(event auth.Event) {
	m.mu.RLock()
	var affected []*Controller
	for _, controller := range m.sessions {
		identity := controller.Identity()
		if identity != nil && identity.UserID == event.UserID {
			affected = append(affected, controller)
		}
	}
	m.mu.RUnlock()

	for _, controller := range affected {
		controller.SetIdentity(event.Identity)
	}

	if len(affected) > 0 {
		slog.Debug("Auth transition applied to sessions", "user_id", event.UserID, "signed_out", event.SignedOut(), "sessions", len(affected))
	}
}
