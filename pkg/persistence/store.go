package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// Token is one upstream credential set, keyed by app session id.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Username     string    `json:"username,omitempty"`
}

// Expired reports whether the token is past its expiry at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now)
}

// StoredStatus is a last-known panel status plus its capture time,
// served when the panel cannot be reached.
type StoredStatus struct {
	model.AlarmStatus
	UpdatedAt time.Time `json:"_last_updated"`
}

// Config carries the store tunables. Zero fields take defaults.
type Config struct {
	// Path is the snapshot file. Empty keeps the store memory-only.
	Path string

	// ConnInfoTTL bounds how long a resolved connection descriptor is
	// served before the vendor cloud is asked again.
	ConnInfoTTL time.Duration

	// Now is the clock used for expiry checks, for tests.
	Now func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{ConnInfoTTL: 5 * time.Minute}
}

func (c Config) withDefaults() Config {
	if c.ConnInfoTTL <= 0 {
		c.ConnInfoTTL = 5 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// snapshot is the on-disk layout. Panel ids and zone indexes are
// string keys so the file stays readable and diffable.
type snapshot struct {
	Tokens            map[string]Token             `json:"tokens"`
	DevicePasswords   map[string]map[string]string `json:"device_passwords"`
	ZoneFriendlyNames map[string]map[string]string `json:"zone_friendly_names"`
	LastKnownStatus   map[string]StoredStatus      `json:"last_known_status"`
}

// Store holds all gateway caches behind one lock.
type Store struct {
	cfg Config

	mu        sync.RWMutex
	tokens    map[string]Token
	passwords map[string]map[int64]string
	zoneNames map[int64]map[int]string
	lastKnown map[int64]StoredStatus
	enabled   map[int64]model.Tristate

	// connInfo is self-locking and self-expiring, so it lives outside mu.
	connInfo *expirable.LRU[int64, model.ConnectionInfo]
}

// New creates a store and loads the snapshot at cfg.Path. A missing
// file yields an empty store; a file that cannot be parsed is an error.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	s := &Store{
		cfg:       cfg,
		tokens:    make(map[string]Token),
		passwords: make(map[string]map[int64]string),
		zoneNames: make(map[int64]map[int]string),
		lastKnown: make(map[int64]StoredStatus),
		enabled:   make(map[int64]model.Tristate),
		connInfo:  expirable.NewLRU[int64, model.ConnectionInfo](0, nil, cfg.ConnInfoTTL),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the session's token. Expired tokens are still
// returned until the cleanup tick removes them, because a refresh
// token may revive the session.
func (s *Store) Token(sessionID string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[sessionID]
	return tok, ok
}

func (s *Store) SetToken(sessionID string, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[sessionID] = tok
	return s.save()
}

func (s *Store) DeleteToken(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[sessionID]; !ok {
		return nil
	}
	delete(s.tokens, sessionID)
	return s.save()
}

// StartCleanup launches the expiry sweep, one pass per minute, until
// ctx is canceled.
func (s *Store) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *Store) cleanupExpired() {
	now := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, tok := range s.tokens {
		if tok.Expired(now) {
			delete(s.tokens, id)
			removed++
		}
	}
	if removed > 0 {
		_ = s.save()
	}
}

// DevicePassword returns the panel password stored for the session.
func (s *Store) DevicePassword(sessionID string, panelID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pwd, ok := s.passwords[sessionID][panelID]
	return pwd, ok
}

func (s *Store) SetDevicePassword(sessionID string, panelID int64, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwords[sessionID] == nil {
		s.passwords[sessionID] = make(map[int64]string)
	}
	s.passwords[sessionID][panelID] = password
	return s.save()
}

func (s *Store) DeleteDevicePassword(sessionID string, panelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	panels, ok := s.passwords[sessionID]
	if !ok {
		return nil
	}
	if _, ok := panels[panelID]; !ok {
		return nil
	}
	delete(panels, panelID)
	if len(panels) == 0 {
		delete(s.passwords, sessionID)
	}
	return s.save()
}

// DeleteSessionPasswords drops every password the session stored.
// Called on logout.
func (s *Store) DeleteSessionPasswords(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passwords[sessionID]; !ok {
		return nil
	}
	delete(s.passwords, sessionID)
	return s.save()
}

// ConnectionInfo returns the cached descriptor for the panel, if it is
// still fresh.
func (s *Store) ConnectionInfo(panelID int64) (model.ConnectionInfo, bool) {
	return s.connInfo.Get(panelID)
}

func (s *Store) SetConnectionInfo(panelID int64, info model.ConnectionInfo) {
	s.connInfo.Add(panelID, info)
}

func (s *Store) DeleteConnectionInfo(panelID int64) {
	s.connInfo.Remove(panelID)
}

// PartitionsEnabled returns what the last status read said about the
// panel's partition configuration.
func (s *Store) PartitionsEnabled(panelID int64) model.Tristate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[panelID]
}

func (s *Store) SetPartitionsEnabled(panelID int64, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[panelID] = model.FromBool(enabled)
}

func (s *Store) DeletePartitionsEnabled(panelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enabled, panelID)
}

// ZoneFriendlyName returns the user-assigned name for a zone index.
func (s *Store) ZoneFriendlyName(panelID int64, zoneIndex int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.zoneNames[panelID][zoneIndex]
	return name, ok
}

// ZoneFriendlyNames returns a copy of the panel's full name table.
func (s *Store) ZoneFriendlyNames(panelID int64) map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, len(s.zoneNames[panelID]))
	for idx, name := range s.zoneNames[panelID] {
		out[idx] = name
	}
	return out
}

func (s *Store) SetZoneFriendlyName(panelID int64, zoneIndex int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zoneNames[panelID] == nil {
		s.zoneNames[panelID] = make(map[int]string)
	}
	s.zoneNames[panelID][zoneIndex] = name
	return s.save()
}

func (s *Store) DeleteZoneFriendlyName(panelID int64, zoneIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zones, ok := s.zoneNames[panelID]
	if !ok {
		return nil
	}
	if _, ok := zones[zoneIndex]; !ok {
		return nil
	}
	delete(zones, zoneIndex)
	if len(zones) == 0 {
		delete(s.zoneNames, panelID)
	}
	return s.save()
}

// LastKnownStatus returns the newest status successfully read from the
// panel, with its capture time.
func (s *Store) LastKnownStatus(panelID int64) (StoredStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.lastKnown[panelID]
	return st, ok
}

func (s *Store) SetLastKnownStatus(panelID int64, st model.AlarmStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnown[panelID] = StoredStatus{AlarmStatus: st, UpdatedAt: s.cfg.Now()}
	return s.save()
}

func (s *Store) DeleteLastKnownStatus(panelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastKnown[panelID]; !ok {
		return nil
	}
	delete(s.lastKnown, panelID)
	return s.save()
}

// Stats reports entry counts per cache.
type Stats struct {
	Tokens          int `json:"active_sessions"`
	Passwords       int `json:"saved_passwords"`
	ConnectionInfos int `json:"cached_connections"`
	ZoneNameTables  int `json:"zone_name_tables"`
	LastKnown       int `json:"last_known_statuses"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Tokens:          len(s.tokens),
		ConnectionInfos: s.connInfo.Len(),
		ZoneNameTables:  len(s.zoneNames),
		LastKnown:       len(s.lastKnown),
	}
	for _, panels := range s.passwords {
		st.Passwords += len(panels)
	}
	return st
}

// save writes the snapshot. Callers hold the write lock.
func (s *Store) save() error {
	if s.cfg.Path == "" {
		return nil
	}

	snap := snapshot{
		Tokens:            s.tokens,
		DevicePasswords:   make(map[string]map[string]string, len(s.passwords)),
		ZoneFriendlyNames: make(map[string]map[string]string, len(s.zoneNames)),
		LastKnownStatus:   make(map[string]StoredStatus, len(s.lastKnown)),
	}
	for sid, panels := range s.passwords {
		m := make(map[string]string, len(panels))
		for id, pwd := range panels {
			m[strconv.FormatInt(id, 10)] = pwd
		}
		snap.DevicePasswords[sid] = m
	}
	for id, zones := range s.zoneNames {
		m := make(map[string]string, len(zones))
		for idx, name := range zones {
			m[strconv.Itoa(idx)] = name
		}
		snap.ZoneFriendlyNames[strconv.FormatInt(id, 10)] = m
	}
	for id, st := range s.lastKnown {
		snap.LastKnownStatus[strconv.FormatInt(id, 10)] = st
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return err
	}

	tmp := s.cfg.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.cfg.Path)
}

// load reads the snapshot. A missing file is an empty store. Entries
// whose keys do not parse as panel ids are dropped rather than failing
// the whole load.
func (s *Store) load() error {
	if s.cfg.Path == "" {
		return nil
	}
	data, err := os.ReadFile(s.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse %s: %w", s.cfg.Path, err)
	}

	if snap.Tokens != nil {
		s.tokens = snap.Tokens
	}
	for sid, panels := range snap.DevicePasswords {
		m := make(map[int64]string, len(panels))
		for key, pwd := range panels {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			m[id] = pwd
		}
		if len(m) > 0 {
			s.passwords[sid] = m
		}
	}
	for key, zones := range snap.ZoneFriendlyNames {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		m := make(map[int]string, len(zones))
		for idxKey, name := range zones {
			idx, err := strconv.Atoi(idxKey)
			if err != nil {
				continue
			}
			m[idx] = name
		}
		if len(m) > 0 {
			s.zoneNames[id] = m
		}
	}
	for key, st := range snap.LastKnownStatus {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		s.lastKnown[id] = st
	}
	return nil
}
