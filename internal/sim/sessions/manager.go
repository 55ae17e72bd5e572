// Package sessions keeps one simulation instance per browser session.
package sessions

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
)

var ErrSessionLimit = errors.New("session limit reached")

type Options struct {
	Catalog     *catalogs.MapCatalog
	Game        game.Config
	MaxSessions int
	IdleTTL     time.Duration

	// Recorder receives every command from every session (optional).
	Recorder game.CommandRecorder

	// SnapshotDir enables snapshots under <dir>/<session>/snapshots.
	SnapshotDir   string
	SnapshotEvery int
	OnSnapshot    func(path string, snap snapshot.SnapshotV1)

	Logger *log.Logger
}

type entry struct {
	inst   *game.Instance
	cancel func()
	done   chan struct{}
}

type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1024
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Manager{opts: opts, sessions: map[string]*entry{}}
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*game.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.inst, true
}

// Open returns the session for id, creating a fresh instance (with a new id)
// when id is unknown or malformed.
func (m *Manager) Open(id string) (*game.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("session manager closed")
	}
	if e, ok := m.sessions[id]; ok {
		return e.inst, nil
	}
	if len(m.sessions) >= m.opts.MaxSessions {
		m.sweepLocked(time.Now())
		if len(m.sessions) >= m.opts.MaxSessions {
			return nil, ErrSessionLimit
		}
	}

	newID := uuid.NewString()
	inst := game.New(newID, m.opts.Catalog, m.opts.Game)
	if m.opts.Recorder != nil {
		inst.SetRecorder(m.opts.Recorder)
	}
	e := &entry{inst: inst, done: make(chan struct{})}
	ch, cancel := inst.Subscribe()
	e.cancel = cancel
	m.sessions[newID] = e
	go m.watch(e, ch)
	return inst, nil
}

// watch writes periodic snapshots until the session is dropped.
func (m *Manager) watch(e *entry, ch <-chan uint64) {
	defer close(e.done)
	var last uint64
	for seq := range ch {
		if m.opts.SnapshotDir == "" || m.opts.SnapshotEvery <= 0 {
			continue
		}
		if seq-last >= uint64(m.opts.SnapshotEvery) {
			if _, err := m.writeSnapshot(e.inst); err != nil {
				m.opts.Logger.Printf("session %s: snapshot: %v", e.inst.ID(), err)
				continue
			}
			last = seq
		}
	}
}

// Snapshot writes the session's current state and returns the file path.
func (m *Manager) Snapshot(id string) (string, error) {
	inst, ok := m.Get(id)
	if !ok {
		return "", errors.New("unknown session")
	}
	if m.opts.SnapshotDir == "" {
		return "", errors.New("snapshots disabled")
	}
	return m.writeSnapshot(inst)
}

func (m *Manager) writeSnapshot(inst *game.Instance) (string, error) {
	snap := inst.ExportSnapshot()
	dir := filepath.Join(m.opts.SnapshotDir, inst.ID(), "snapshots")
	path := snapshot.PathFor(dir, snap.Header.Seq)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if m.opts.OnSnapshot != nil {
		m.opts.OnSnapshot(path, snap)
	}
	return path, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs lists session ids, most recently used first.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	type idAt struct {
		id string
		at time.Time
	}
	list := make([]idAt, 0, len(m.sessions))
	for id, e := range m.sessions {
		list = append(list, idAt{id: id, at: e.inst.LastTouched()})
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].at.Equal(list[j].at) {
			return list[i].at.After(list[j].at)
		}
		return list[i].id < list[j].id
	})
	out := make([]string, len(list))
	for i, x := range list {
		out[i] = x.id
	}
	return out
}

// Sweep drops sessions idle for longer than IdleTTL and returns how many.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *Manager) sweepLocked(now time.Time) int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	n := 0
	for id, e := range m.sessions {
		if now.Sub(e.inst.LastTouched()) > m.opts.IdleTTL {
			m.dropLocked(id, e)
			n++
		}
	}
	return n
}

func (m *Manager) dropLocked(id string, e *entry) {
	delete(m.sessions, id)
	e.cancel()
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Sweep(now); n > 0 {
				m.opts.Logger.Printf("swept %d idle sessions", n)
			}
		}
	}
}

// Close drops every session and waits for their snapshot watchers.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		m.dropLocked(id, e)
		entries = append(entries, e)
	}
	m.mu.Unlock()
	for _, e := range entries {
		<-e.done
	}
}
