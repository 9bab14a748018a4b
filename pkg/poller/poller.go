package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/events"
	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
)

// TokenSource resolves an app session to a vendor-cloud access token.
// Implemented by guardian.Auth.
type TokenSource interface {
	ValidToken(ctx context.Context, sessionID string) (string, error)
}

// EventSource serves the account's event feed, newest first.
// Implemented by guardian.Client.
type EventSource interface {
	Events(ctx context.Context, token string, offset, limit int) ([]guardian.PanelEvent, error)
}

// Config carries the poller's collaborators and tunables. Cloud,
// Tokens, and Broadcaster are required; zero fields take defaults.
type Config struct {
	// Cloud serves the event feed.
	Cloud EventSource

	// Tokens resolves session ids to access tokens.
	Tokens TokenSource

	// Broadcaster receives the fan-out and names the sessions to poll.
	Broadcaster *events.Broadcaster

	// Interval is the poll cadence. Defaults to 5s.
	Interval time.Duration

	// Limit is how many feed rows each poll fetches. Defaults to 10.
	Limit int

	// Logger is the optional logger for debug output. If nil, logging
	// is disabled.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
	return c
}

// Poller drives the poll loop. Start and Stop are idempotent so they
// can hang off the broadcaster's subscribe hooks directly.
type Poller struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastIDs holds, per session, the newest feed row already seen.
	// Presence marks the session as primed. Cursors survive Stop so a
	// restart does not replay rows already broadcast.
	lastIDs map[string]int64
}

// New validates the configuration and builds the poller.
func New(cfg Config) (*Poller, error) {
	cfg = cfg.withDefaults()
	switch {
	case cfg.Cloud == nil:
		return nil, errors.New("poller: Cloud is required")
	case cfg.Tokens == nil:
		return nil, errors.New("poller: Tokens is required")
	case cfg.Broadcaster == nil:
		return nil, errors.New("poller: Broadcaster is required")
	}
	return &Poller{cfg: cfg, lastIDs: make(map[string]int64)}, nil
}

// Bind wires the poller to the broadcaster's lifecycle: the loop runs
// exactly while the broadcaster has subscribers.
func (p *Poller) Bind() {
	p.cfg.Broadcaster.OnSubscribe(p.Start)
	p.cfg.Broadcaster.OnEmpty(p.Stop)
}

// Start launches the poll loop. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("event polling started", "interval", p.cfg.Interval)
	}
}

// Stop halts the loop and waits for it to exit. Stopping a stopped
// poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("event polling stopped")
	}
}

// Running reports whether the poll loop is live.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// TrackedSessions returns how many session cursors are held.
func (p *Poller) TrackedSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lastIDs)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll fetches the feed once per distinct subscriber session. One
// session's failure does not block the others.
func (p *Poller) pollAll(ctx context.Context) {
	for _, sessionID := range p.cfg.Broadcaster.SessionIDs() {
		if err := p.pollSession(ctx, sessionID); err != nil {
			if p.cfg.Logger != nil {
				p.cfg.Logger.Warn("event poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) pollSession(ctx context.Context, sessionID string) error {
	token, err := p.cfg.Tokens.ValidToken(ctx, sessionID)
	if err != nil {
		return err
	}
	rows, err := p.cfg.Cloud.Events(ctx, token, 0, p.cfg.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	maxID := rows[0].ID
	for _, row := range rows[1:] {
		if row.ID > maxID {
			maxID = row.ID
		}
	}

	p.mu.Lock()
	last, primed := p.lastIDs[sessionID]
	if !primed {
		// First sight of this session: record the high-water mark
		// without broadcasting, so consumers only receive what happens
		// after they connected.
		p.lastIDs[sessionID] = maxID
		p.mu.Unlock()
		if p.cfg.Logger != nil {
			p.cfg.Logger.Debug("session primed", "lastEventID", maxID)
		}
		return nil
	}
	if maxID > last {
		p.lastIDs[sessionID] = maxID
	}
	p.mu.Unlock()

	// The feed arrives newest first; deliver new rows oldest first.
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ID > last {
			p.cfg.Broadcaster.Broadcast(events.TypeAlarmEvent, NewAlarmEvent(rows[i]))
		}
	}
	return nil
}
