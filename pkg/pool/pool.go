// Package pool multiplexes panel connections: it owns at most one
// protocol session per panel id, reuses authorized sessions across
// commands, and runs a background sweep that evicts idle sessions and
// keep-alives the rest so the cloud relay keeps the path open.
package pool

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
)

// ErrClosed is returned by Acquire after Shutdown.
var ErrClosed = errors.New("pool is shut down")

// Config carries the pool tunables. Zero fields take defaults.
type Config struct {
	// IdleTimeout evicts sessions that have not been acquired for this
	// long. Keep-alive traffic does not count as activity.
	IdleTimeout time.Duration

	// SweepInterval is the cadence of the eviction and keep-alive pass.
	SweepInterval time.Duration

	// SessionConfig is the template for sessions the pool builds.
	SessionConfig session.Config

	Logger log.Logger

	// Now is the clock used for idle accounting, for tests.
	Now func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   5 * time.Minute,
		SweepInterval: time.Minute,
		SessionConfig: session.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.SessionConfig.Logger == nil {
		c.SessionConfig.Logger = c.Logger
	}
	return c
}

type entry struct {
	sess *session.Session

	// lastAcquired is the last time a caller asked for this session.
	// Guarded by the pool mutex.
	lastAcquired time.Time
}

// buildLock serializes handshakes for a single panel.
type buildLock struct {
	mu   sync.Mutex
	refs int
}

// Pool maps panel ids to live sessions.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	entries map[int64]*entry
	builds  map[int64]*buildLock
	closed  bool

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New creates a pool and starts its sweep goroutine. Call Shutdown to
// stop it.
func New(cfg Config) *Pool {
	p := &Pool{
		cfg:     cfg.withDefaults(),
		entries: make(map[int64]*entry),
		builds:  make(map[int64]*buildLock),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go p.sweep()
	return p
}

// Acquire returns an authorized session for the panel. An existing
// session is reused when it is still authorized, matches the
// descriptor, and force is false; otherwise it is torn down and a new
// one handshakes. Acquires for the same panel are serialized so only
// one handshake runs; different panels proceed in parallel. The pool
// mutex is never held across I/O.
func (p *Pool) Acquire(ctx context.Context, panelID int64, info model.ConnectionInfo, password string, force bool) (*session.Session, error) {
	bl, err := p.buildLockFor(panelID)
	if err != nil {
		return nil, err
	}
	bl.mu.Lock()
	defer p.releaseBuildLock(panelID, bl)

	p.mu.Lock()
	e := p.entries[panelID]
	if e != nil && !force && e.sess.Stage() == session.StageAuthorized && e.sess.Matches(info) {
		e.lastAcquired = p.cfg.Now()
		p.mu.Unlock()
		return e.sess, nil
	}
	delete(p.entries, panelID)
	size := len(p.entries)
	p.mu.Unlock()

	if e != nil {
		_ = e.sess.Disconnect(ctx)
		p.logChange(e.sess.ID(), panelID, "session replaced", size)
	}

	s := session.New(p.cfg.SessionConfig, info, password)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = s.Disconnect(ctx)
		return nil, ErrClosed
	}
	p.entries[panelID] = &entry{sess: s, lastAcquired: p.cfg.Now()}
	size = len(p.entries)
	p.mu.Unlock()

	p.logChange(s.ID(), panelID, "session added", size)
	return s, nil
}

// Invalidate drops the panel's session, if any. Callers use it after
// observing an I/O error on a session they acquired.
func (p *Pool) Invalidate(panelID int64) {
	p.mu.Lock()
	e := p.entries[panelID]
	delete(p.entries, panelID)
	size := len(p.entries)
	p.mu.Unlock()

	if e == nil {
		return
	}
	_ = e.sess.Disconnect(context.Background())
	p.logChange(e.sess.ID(), panelID, "invalidated", size)
}

// Shutdown stops the sweep and disconnects every session, sending a
// best-effort DISCONNECT on the authorized ones. Safe to call more
// than once.
func (p *Pool) Shutdown(ctx context.Context) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		snapshot := make(map[int64]*entry, len(p.entries))
		for id, e := range p.entries {
			snapshot[id] = e
		}
		p.entries = make(map[int64]*entry)
		p.mu.Unlock()

		close(p.stopCh)
		<-p.doneCh

		for id, e := range snapshot {
			_ = e.sess.Disconnect(ctx)
			p.logChange(e.sess.ID(), id, "shutdown", 0)
		}
	})
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Sessions int              `json:"sessions"`
	Stages   map[int64]string `json:"stages"`
}

// Stats reports the live session count and each panel's stage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{
		Sessions: len(p.entries),
		Stages:   make(map[int64]string, len(p.entries)),
	}
	for id, e := range p.entries {
		st.Stages[id] = e.sess.Stage().String()
	}
	return st
}

func (p *Pool) buildLockFor(panelID int64) (*buildLock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	bl := p.builds[panelID]
	if bl == nil {
		bl = &buildLock{}
		p.builds[panelID] = bl
	}
	bl.refs++
	return bl, nil
}

func (p *Pool) releaseBuildLock(panelID int64, bl *buildLock) {
	bl.mu.Unlock()
	p.mu.Lock()
	bl.refs--
	if bl.refs == 0 {
		delete(p.builds, panelID)
	}
	p.mu.Unlock()
}

func (p *Pool) sweep() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepOnce(context.Background())
		}
	}
}

// sweepOnce evicts idle or dead sessions and keep-alives the rest.
func (p *Pool) sweepOnce(ctx context.Context) {
	type candidate struct {
		id   int64
		sess *session.Session
	}
	now := p.cfg.Now()
	var evicted, alive []candidate

	p.mu.Lock()
	for id, e := range p.entries {
		if now.Sub(e.lastAcquired) > p.cfg.IdleTimeout || e.sess.Stage() != session.StageAuthorized {
			delete(p.entries, id)
			evicted = append(evicted, candidate{id, e.sess})
			continue
		}
		alive = append(alive, candidate{id, e.sess})
	}
	size := len(p.entries)
	p.mu.Unlock()

	for _, c := range evicted {
		_ = c.sess.Disconnect(ctx)
		p.logChange(c.sess.ID(), c.id, "idle eviction", size)
	}
	for _, c := range alive {
		if err := c.sess.KeepAlive(ctx); err != nil {
			p.remove(c.id, c.sess)
			p.logChange(c.sess.ID(), c.id, "keep-alive failed", size-1)
		}
	}
}

// remove deletes the entry only if it still holds the same session.
func (p *Pool) remove(panelID int64, s *session.Session) {
	p.mu.Lock()
	if e, ok := p.entries[panelID]; ok && e.sess == s {
		delete(p.entries, panelID)
	}
	p.mu.Unlock()
}

func (p *Pool) logChange(connectionID string, panelID int64, reason string, sessions int) {
	p.cfg.Logger.Log(log.Event{
		Timestamp:    p.cfg.Now(),
		ConnectionID: connectionID,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		PanelID:      strconv.FormatInt(panelID, 10),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityPool,
			NewState: strconv.Itoa(sessions),
			Reason:   reason,
		},
	})
}
