package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/events"
	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
	"github.com/isecnet-bridge/isecnet-go/pkg/isecnet"
	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/persistence"
	"github.com/isecnet-bridge/isecnet-go/pkg/pool"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
)

// TokenSource resolves an app session to a vendor-cloud access token,
// refreshing it when near expiry. Implemented by guardian.Auth.
type TokenSource interface {
	ValidToken(ctx context.Context, sessionID string) (string, error)
}

// VendorCloud lists panel connection descriptors for an account.
// Implemented by guardian.Client; an unknown panel is reported with an
// error wrapping guardian.ErrPanelNotFound.
type VendorCloud interface {
	PanelConnection(ctx context.Context, token string, panelID int64) (model.ConnectionInfo, error)
}

// Config carries the facade's collaborators and tunables. Pool, Store,
// Tokens, and Cloud are required; zero durations take defaults.
type Config struct {
	// Pool owns the panel sessions.
	Pool *pool.Pool

	// Store holds passwords, descriptors, zone friendly names, and
	// last-known snapshots.
	Store *persistence.Store

	// Broadcaster receives state_changed events after successful
	// commands. Optional.
	Broadcaster *events.Broadcaster

	// Tokens validates app sessions.
	Tokens TokenSource

	// Cloud resolves panel descriptors on cache misses.
	Cloud VendorCloud

	// VerifySleep is the pause between an unverified arm and the
	// confirming status read. Defaults to 500ms.
	VerifySleep time.Duration

	// StatusTimeout bounds each facade-initiated status read.
	// Defaults to 10s.
	StatusTimeout time.Duration

	// Logger receives protocol events. Defaults to log.NoopLogger.
	Logger log.Logger

	// Now is the clock for snapshot timestamps, for tests.
	Now func() time.Time
}

// DefaultConfig returns the production tunables. Collaborators must
// still be filled in.
func DefaultConfig() Config {
	return Config{
		VerifySleep:   500 * time.Millisecond,
		StatusTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.VerifySleep <= 0 {
		c.VerifySleep = 500 * time.Millisecond
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// StatusResult is a status snapshot plus its provenance.
type StatusResult struct {
	model.AlarmStatus

	// ConnectionUnavailable reports the snapshot served from the
	// last-known cache because the panel could not be reached.
	ConnectionUnavailable bool `json:"connection_unavailable"`

	// UpdatedAt is when the snapshot was read from the panel.
	UpdatedAt time.Time `json:"last_updated"`
}

// AlarmService is the command facade over the session pool.
type AlarmService struct {
	cfg Config
}

// New validates the configuration and builds the facade.
func New(cfg Config) (*AlarmService, error) {
	cfg = cfg.withDefaults()
	switch {
	case cfg.Pool == nil:
		return nil, errors.New("service: Pool is required")
	case cfg.Store == nil:
		return nil, errors.New("service: Store is required")
	case cfg.Tokens == nil:
		return nil, errors.New("service: Tokens is required")
	case cfg.Cloud == nil:
		return nil, errors.New("service: Cloud is required")
	}
	return &AlarmService{cfg: cfg}, nil
}

// resolved is the outcome of the per-operation preamble.
type resolved struct {
	token    string
	password string
	info     model.ConnectionInfo
}

// resolve gathers what every panel command needs: a valid cloud token,
// the saved panel password, and the connection descriptor.
func (s *AlarmService) resolve(ctx context.Context, sessionID string, panelID int64) (resolved, error) {
	token, err := s.cfg.Tokens.ValidToken(ctx, sessionID)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	password, ok := s.cfg.Store.DevicePassword(sessionID, panelID)
	if !ok {
		return resolved{}, ErrPasswordMissing
	}

	info, err := s.descriptor(ctx, token, panelID)
	if err != nil {
		return resolved{}, err
	}
	return resolved{token: token, password: password, info: info}, nil
}

// descriptor returns the panel's connection descriptor, from the cache
// when fresh, else from the vendor cloud. Cloud answers are cached
// under the store's descriptor TTL.
func (s *AlarmService) descriptor(ctx context.Context, token string, panelID int64) (model.ConnectionInfo, error) {
	if info, ok := s.cfg.Store.ConnectionInfo(panelID); ok {
		return info, nil
	}

	info, err := s.cfg.Cloud.PanelConnection(ctx, token, panelID)
	switch {
	case errors.Is(err, guardian.ErrPanelNotFound):
		return model.ConnectionInfo{}, fmt.Errorf("panel %d: %w", panelID, ErrPanelNotFound)
	case errors.Is(err, guardian.ErrUnauthorized):
		return model.ConnectionInfo{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	case err != nil:
		return model.ConnectionInfo{}, fmt.Errorf("vendor cloud: %w", err)
	}
	s.cfg.Store.SetConnectionInfo(panelID, info)
	return info, nil
}

// connect runs the preamble and acquires a pooled session.
func (s *AlarmService) connect(ctx context.Context, sessionID string, panelID int64) (*session.Session, resolved, error) {
	r, err := s.resolve(ctx, sessionID, panelID)
	if err != nil {
		return nil, resolved{}, err
	}
	sess, err := s.cfg.Pool.Acquire(ctx, panelID, r.info, r.password, false)
	if err != nil {
		return nil, resolved{}, s.lift(panelID, err)
	}
	return sess, r, nil
}

// GetStatus reads the panel's current status: the partial dump on a
// receiver, the full status frame on cloud. On success the
// partitions-enabled flag and the last-known snapshot are refreshed.
// When the panel is unreachable a cached snapshot is served instead,
// flagged ConnectionUnavailable, with a nil error.
func (s *AlarmService) GetStatus(ctx context.Context, sessionID string, panelID int64) (StatusResult, error) {
	return s.readStatus(ctx, sessionID, panelID, false)
}

// GetCompleteStatus reads the extended status carrying wireless zone
// attributes, with the same caching and fallback as GetStatus.
func (s *AlarmService) GetCompleteStatus(ctx context.Context, sessionID string, panelID int64) (StatusResult, error) {
	return s.readStatus(ctx, sessionID, panelID, true)
}

func (s *AlarmService) readStatus(ctx context.Context, sessionID string, panelID int64, complete bool) (StatusResult, error) {
	r, err := s.resolve(ctx, sessionID, panelID)
	if err != nil {
		return StatusResult{}, err
	}

	sess, err := s.cfg.Pool.Acquire(ctx, panelID, r.info, r.password, false)
	if err != nil {
		return s.fallback(s.lift(panelID, err))
	}

	st, err := s.statusInSession(ctx, sess, complete)
	if err != nil {
		return s.fallback(s.lift(panelID, err))
	}

	st.MAC = r.info.MAC
	// Only V1 partial status carries the partitions-enabled flag; a
	// cloud status read says nothing about it.
	if r.info.Mode == model.TransportIPReceiver {
		s.cfg.Store.SetPartitionsEnabled(panelID, st.PartitionsEnabled)
	}
	if err := s.cfg.Store.SetLastKnownStatus(panelID, st); err != nil {
		s.logError(panelID, "snapshot", err)
	}
	return StatusResult{AlarmStatus: st, UpdatedAt: s.cfg.Now().UTC()}, nil
}

func (s *AlarmService) statusInSession(ctx context.Context, sess *session.Session, complete bool) (model.AlarmStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
	defer cancel()
	if complete {
		return sess.CompleteStatus(ctx)
	}
	return sess.Status(ctx)
}

// fallback serves the last-known snapshot a lifted connection error
// carries. Errors without one are returned unchanged.
func (s *AlarmService) fallback(err error) (StatusResult, error) {
	var connErr *ConnectionError
	if errors.As(err, &connErr) && connErr.LastKnown != nil {
		return *connErr.LastKnown, nil
	}
	return StatusResult{}, err
}

// Arm arms the panel, or one partition of it. Only ModeArmedAway and
// ModeArmedStay are valid targets. The returned mode is the state the
// panel confirmed or accepted.
func (s *AlarmService) Arm(ctx context.Context, sessionID string, panelID int64, mode model.ArmMode, partitionID *int64) (model.ArmMode, error) {
	var stay bool
	switch mode {
	case model.ModeArmedAway:
	case model.ModeArmedStay:
		stay = true
	default:
		return 0, fmt.Errorf("cannot arm to %q", mode)
	}

	sess, r, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return 0, err
	}
	partition, err := s.partitionIndex(r.info, panelID, partitionID)
	if err != nil {
		return 0, err
	}

	err = sess.Arm(ctx, partition, stay)
	if partition != nil && refusedNoPartitions(err) {
		// The panel runs unpartitioned after all. Remember that and
		// retry bare.
		s.cfg.Store.SetPartitionsEnabled(panelID, false)
		partition = nil
		err = sess.Arm(ctx, partition, stay)
	}

	switch {
	case err == nil:
	case errors.Is(err, session.ErrUnverified):
		if err := s.verifyArm(ctx, sess, panelID); err != nil {
			return 0, err
		}
	case refusedNoPartitions(err):
		return 0, ErrNoPartitions
	case refusedOpenZones(sess.Mode(), err):
		return 0, s.openZonesFromStatus(ctx, sess, panelID)
	default:
		return 0, s.lift(panelID, err)
	}

	s.afterStateChange(panelID, partitionID, mode)
	return mode, nil
}

// Disarm disarms the panel, or one partition of it. Disarm replies are
// reliable, so there is no verification read.
func (s *AlarmService) Disarm(ctx context.Context, sessionID string, panelID int64, partitionID *int64) (model.ArmMode, error) {
	sess, r, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return 0, err
	}
	partition, err := s.partitionIndex(r.info, panelID, partitionID)
	if err != nil {
		return 0, err
	}

	err = sess.Disarm(ctx, partition)
	if partition != nil && refusedNoPartitions(err) {
		s.cfg.Store.SetPartitionsEnabled(panelID, false)
		partition = nil
		err = sess.Disarm(ctx, partition)
	}
	switch {
	case err == nil:
	case refusedNoPartitions(err):
		return 0, ErrNoPartitions
	default:
		return 0, s.lift(panelID, err)
	}

	s.afterStateChange(panelID, partitionID, model.ModeDisarmed)
	return model.ModeDisarmed, nil
}

// BypassZones sets or clears bypass on the named 0-based zone indices.
// No event is emitted.
func (s *AlarmService) BypassZones(ctx context.Context, sessionID string, panelID int64, zones []int, bypass bool) error {
	sess, _, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return err
	}
	if err := sess.Bypass(ctx, zones, bypass); err != nil {
		return s.lift(panelID, err)
	}
	return nil
}

// SirenOff silences the siren without changing the arm state. The
// emitted state_changed event repeats the panel's current mode so
// consumers can clear a triggered state.
func (s *AlarmService) SirenOff(ctx context.Context, sessionID string, panelID int64) (model.ArmMode, error) {
	sess, _, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return 0, err
	}
	if err := sess.SirenOff(ctx); err != nil {
		return 0, s.lift(panelID, err)
	}

	mode := model.ModeDisarmed
	if last, ok := s.cfg.Store.LastKnownStatus(panelID); ok {
		mode = last.Mode
	}
	s.broadcastState(panelID, nil, mode)
	return mode, nil
}

// FenceShock switches an electrified fence's shock section. Panels
// that are not fence energizers refuse the command.
func (s *AlarmService) FenceShock(ctx context.Context, sessionID string, panelID int64, on bool) error {
	return s.fenceCommand(ctx, sessionID, panelID, func(sess *session.Session) error {
		return sess.FenceShock(ctx, on)
	})
}

// FenceAlarm arms or disarms an electrified fence's alarm section,
// independent of the shock.
func (s *AlarmService) FenceAlarm(ctx context.Context, sessionID string, panelID int64, on bool) error {
	return s.fenceCommand(ctx, sessionID, panelID, func(sess *session.Session) error {
		return sess.FenceAlarm(ctx, on)
	})
}

func (s *AlarmService) fenceCommand(ctx context.Context, sessionID string, panelID int64, cmd func(*session.Session) error) error {
	sess, _, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return err
	}
	if err := cmd(sess); err != nil {
		return s.lift(panelID, err)
	}
	s.invalidateSnapshot(panelID)
	return nil
}

// PGM drives a programmable output on or off.
func (s *AlarmService) PGM(ctx context.Context, sessionID string, panelID int64, index int, on bool) error {
	sess, _, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return err
	}
	if err := sess.PGM(ctx, index, on); err != nil {
		return s.lift(panelID, err)
	}
	return nil
}

// PanelMAC reads the panel's MAC over the session, a diagnostic for
// descriptor mismatches.
func (s *AlarmService) PanelMAC(ctx context.Context, sessionID string, panelID int64) (string, error) {
	sess, _, err := s.connect(ctx, sessionID, panelID)
	if err != nil {
		return "", err
	}
	mac, err := sess.MAC(ctx)
	if err != nil {
		return "", s.lift(panelID, err)
	}
	return mac, nil
}

// partitionIndex translates the vendor's partition id to a 0-based
// wire index. A nil id targets all partitions. Panels with at most one
// partition always yield nil so the partition byte is omitted, and so
// do receiver panels recorded as unpartitioned; the cloud path always
// carries the given index, since the flag is learned from V1 traffic
// only.
func (s *AlarmService) partitionIndex(info model.ConnectionInfo, panelID int64, partitionID *int64) (*int, error) {
	if partitionID == nil {
		return nil, nil
	}
	idx, ok := info.PartitionIndex(*partitionID)
	if !ok {
		return nil, fmt.Errorf("panel has no partition with id %d", *partitionID)
	}
	if info.Mode == model.TransportIPReceiver &&
		s.cfg.Store.PartitionsEnabled(panelID) == model.TristateDisabled {
		return nil, nil
	}
	return idx, nil
}

// verifyArm settles a silently acknowledged arm. The panel gets
// VerifySleep to process, then a status read on the same session
// decides: armed is success; still disarmed with open sensors is an
// OpenZonesError; an unreadable status counts as sent, matching the
// mobile app.
func (s *AlarmService) verifyArm(ctx context.Context, sess *session.Session, panelID int64) error {
	if err := sleepCtx(ctx, s.cfg.VerifySleep); err != nil {
		return err
	}

	st, err := s.statusInSession(ctx, sess, false)
	if err != nil {
		s.logError(panelID, "arm verify", err)
		return nil
	}
	if st.Armed || st.Mode == model.ModeArmedAway || st.Mode == model.ModeArmedStay {
		return nil
	}
	if open := st.OpenZones(); len(open) > 0 {
		return s.openZonesError(panelID, open)
	}
	return errors.New("arm command not accepted by panel")
}

// openZonesFromStatus answers an open-zones refusal with the refusing
// zones, enumerated from a fresh status read.
func (s *AlarmService) openZonesFromStatus(ctx context.Context, sess *session.Session, panelID int64) error {
	st, err := s.statusInSession(ctx, sess, false)
	if err != nil {
		s.logError(panelID, "open zones", err)
		return &OpenZonesError{}
	}
	return s.openZonesError(panelID, st.OpenZones())
}

func (s *AlarmService) openZonesError(panelID int64, open []model.Zone) error {
	names := s.cfg.Store.ZoneFriendlyNames(panelID)
	zones := make([]OpenZone, len(open))
	for i, z := range open {
		zones[i] = OpenZone{
			Index:        z.Index,
			Name:         model.ZoneName(z.Index),
			FriendlyName: names[z.Index],
		}
	}
	return &OpenZonesError{Zones: zones}
}

// afterStateChange refreshes caches and notifies subscribers once the
// panel accepted a state-changing command.
func (s *AlarmService) afterStateChange(panelID int64, partitionID *int64, mode model.ArmMode) {
	s.invalidateSnapshot(panelID)
	s.broadcastState(panelID, partitionID, mode)
}

// invalidateSnapshot drops the last-known snapshot so the next status
// read is answered by the panel, not the cache.
func (s *AlarmService) invalidateSnapshot(panelID int64) {
	if err := s.cfg.Store.DeleteLastKnownStatus(panelID); err != nil {
		s.logError(panelID, "snapshot", err)
	}
}

// broadcastState emits the state_changed payload consumers feed
// straight into their alarm entity.
func (s *AlarmService) broadcastState(panelID int64, partitionID *int64, mode model.ArmMode) {
	if s.cfg.Broadcaster == nil {
		return
	}
	s.cfg.Broadcaster.Broadcast(events.TypeAlarmEvent, events.StateChange{
		EventType:   events.EventStateChanged,
		DeviceID:    panelID,
		PartitionID: partitionID,
		NewStatus:   mode.String(),
		Source:      "command",
	})
}

// lift converts reachability failures into *ConnectionError carrying
// the last-known snapshot. Refusals and protocol errors pass through
// unchanged.
func (s *AlarmService) lift(panelID int64, err error) error {
	if err == nil {
		return nil
	}
	if !connectionPattern.MatchString(err.Error()) {
		return err
	}
	connErr := &ConnectionError{Message: err.Error(), err: err}
	if last, ok := s.cfg.Store.LastKnownStatus(panelID); ok {
		connErr.LastKnown = &StatusResult{
			AlarmStatus:           last.AlarmStatus,
			ConnectionUnavailable: true,
			UpdatedAt:             last.UpdatedAt,
		}
	}
	return connErr
}

// refusedNoPartitions reports the panel rejecting a partition byte it
// cannot address.
func refusedNoPartitions(err error) bool {
	var cmdErr *session.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == byte(isecnet.V1CodeNoPartitions)
}

// refusedOpenZones reports an arm rejected over open sensors: reply
// 0xE4 on a receiver, the zone-open NACK on cloud.
func refusedOpenZones(mode model.TransportMode, err error) bool {
	var cmdErr *session.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	if mode == model.TransportCloud {
		return cmdErr.Code == isecnet.NackZoneOpen
	}
	return cmdErr.Code == byte(isecnet.V1CodeOpenZones)
}

func (s *AlarmService) logError(panelID int64, context string, err error) {
	s.cfg.Logger.Log(log.Event{
		Timestamp: s.cfg.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		PanelID:   strconv.FormatInt(panelID, 10),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: context,
		},
	})
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
