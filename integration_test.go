package isecnet_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/backoff"
	"github.com/isecnet-bridge/isecnet-go/pkg/events"
	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
	"github.com/isecnet-bridge/isecnet-go/pkg/isecnet"
	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/persistence"
	"github.com/isecnet-bridge/isecnet-go/pkg/poller"
	"github.com/isecnet-bridge/isecnet-go/pkg/pool"
	"github.com/isecnet-bridge/isecnet-go/pkg/service"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
)

const (
	e2eMAC      = "AABBCCDDEEFF"
	e2ePassword = "1234"
	e2eXorKey   = 0x3C
	e2eToken    = "e2e-access-token"

	e2ePanelID int64 = 4321
)

var e2eSrc = [2]byte{0x8F, 0x04}

// TestE2E_CloudStatusAndArm drives the full stack once: vendor login,
// descriptor lookup, pooled cloud handshake, a status read, and an arm
// that fans out a state_changed event.
func TestE2E_CloudStatusAndArm(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	vendor := newFakeVendor(t, cloudCentralJSON())

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	steps := append(cloudHandshake(),
		scriptStep{want: isecnet.EncodeV2(isecnet.CmdPanelStatus, nil, e2eSrc), reply: v2StatusReply()},
		scriptStep{want: isecnet.EncodeV2(isecnet.CmdArmDisarm, []byte{0x01, 0x01}, e2eSrc), reply: e2eAck()},
		scriptStep{want: isecnet.EncodeV2(isecnet.CmdDisconnect, nil, e2eSrc)},
	)
	done := runScript(t, server, steps)

	env := newE2EEnv(t, vendor, singleUseDialer(t, client))
	sub := env.casts.Subscribe(env.session)
	defer env.casts.Unsubscribe(sub.ID)

	ctx := context.Background()
	res, err := env.facade.GetStatus(ctx, env.session, e2ePanelID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if res.ModelName != "AMT_8000" {
		t.Errorf("model = %q, want AMT_8000", res.ModelName)
	}
	if res.Mode != model.ModeArmedStay || !res.Armed {
		t.Errorf("mode = %v armed = %v, want armed stay", res.Mode, res.Armed)
	}
	if len(res.Partitions) != 4 {
		t.Fatalf("partitions = %d, want 4", len(res.Partitions))
	}
	if res.MAC != e2eMAC {
		t.Errorf("MAC = %q, want %q from the descriptor", res.MAC, e2eMAC)
	}
	if res.ConnectionUnavailable {
		t.Error("ConnectionUnavailable = true for a live read")
	}
	if res.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
	if _, ok := env.store.LastKnownStatus(e2ePanelID); !ok {
		t.Error("status read did not cache a snapshot")
	}
	if got := env.store.PartitionsEnabled(e2ePanelID); got != model.TristateUnknown {
		t.Errorf("partitions enabled = %v after a cloud status read, want %v", got, model.TristateUnknown)
	}

	partitionID := int64(31)
	mode, err := env.facade.Arm(ctx, env.session, e2ePanelID, model.ModeArmedAway, &partitionID)
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if mode != model.ModeArmedAway {
		t.Errorf("Arm() = %v, want %v", mode, model.ModeArmedAway)
	}

	ev := waitEvent(t, sub)
	if ev.Type != events.TypeAlarmEvent {
		t.Errorf("event type = %q, want %q", ev.Type, events.TypeAlarmEvent)
	}
	change, ok := ev.Data.(events.StateChange)
	if !ok {
		t.Fatalf("event payload = %T, want events.StateChange", ev.Data)
	}
	if change.EventType != events.EventStateChanged || change.DeviceID != e2ePanelID {
		t.Errorf("state change = %+v", change)
	}
	if change.NewStatus != "armed_away" || change.Source != "command" {
		t.Errorf("state change = %+v, want armed_away from command", change)
	}
	if change.PartitionID == nil || *change.PartitionID != partitionID {
		t.Errorf("partition id = %v, want %d", change.PartitionID, partitionID)
	}
	if _, ok := env.store.LastKnownStatus(e2ePanelID); ok {
		t.Error("arm did not invalidate the cached snapshot")
	}

	env.pool.Shutdown(ctx)
	waitScript(t, done)

	if got := vendor.loginCount(); got != 1 {
		t.Errorf("password grants = %d, want 1", got)
	}
}

// TestE2E_ReceiverStatus reads status over the V1 dialect after the
// vendor cloud reports the panel reachable only through its IP
// receiver.
func TestE2E_ReceiverStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	vendor := newFakeVendor(t, receiverCentralJSON())

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	steps := append(receiverHandshake(), scriptStep{
		want:  isecnet.EncodeV1([]byte{0x5A}, e2ePassword),
		reply: v1Frame(v1StatusData()),
	})
	done := runScript(t, server, steps)

	env := newE2EEnv(t, vendor, singleUseDialer(t, client))

	res, err := env.facade.GetStatus(context.Background(), env.session, e2ePanelID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	waitScript(t, done)

	if res.ModelCode != 52 {
		t.Errorf("model code = %d, want 52", res.ModelCode)
	}
	if !res.PartitionsEnabled {
		t.Error("partitions enabled = false, want true")
	}
	if len(res.Partitions) != 2 {
		t.Fatalf("partitions = %d, want 2", len(res.Partitions))
	}
	if res.Partitions[0].State != model.ModeArmedAway {
		t.Errorf("partition 0 = %v, want %v", res.Partitions[0].State, model.ModeArmedAway)
	}
	if res.Partitions[1].State != model.ModeArmedStay {
		t.Errorf("partition 1 = %v, want %v", res.Partitions[1].State, model.ModeArmedStay)
	}
	if got := env.store.PartitionsEnabled(e2ePanelID); got != model.TristateEnabled {
		t.Errorf("stored partitions flag = %v, want %v", got, model.TristateEnabled)
	}
}

// TestE2E_StatusFallbackWhenPanelUnreachable exercises the degraded
// path: with the panel unreachable the facade surfaces a connection
// error, and once a snapshot is cached it serves that instead.
func TestE2E_StatusFallbackWhenPanelUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	vendor := newFakeVendor(t, cloudCentralJSON())
	env := newE2EEnv(t, vendor, func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("relay connect timeout")
	})
	ctx := context.Background()

	_, err := env.facade.GetStatus(ctx, env.session, e2ePanelID)
	var connErr *service.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("GetStatus() error = %v, want ConnectionError", err)
	}

	cached := model.AlarmStatus{ModelName: "AMT_8000", Armed: true, Mode: model.ModeArmedAway}
	if err := env.store.SetLastKnownStatus(e2ePanelID, cached); err != nil {
		t.Fatalf("SetLastKnownStatus() error = %v", err)
	}

	res, err := env.facade.GetStatus(ctx, env.session, e2ePanelID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v, want cached fallback", err)
	}
	if !res.ConnectionUnavailable {
		t.Error("ConnectionUnavailable = false for a cached snapshot")
	}
	if res.ModelName != "AMT_8000" || res.Mode != model.ModeArmedAway {
		t.Errorf("fallback status = %+v, want cached snapshot", res.AlarmStatus)
	}
}

// TestE2E_TokenRefreshAndLogout verifies a near-expiry grant is
// exchanged exactly once, survives a store reload, and that logout
// drops both tokens and saved panel passwords.
func TestE2E_TokenRefreshAndLogout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	vendor := newFakeVendor(t, cloudCentralJSON())
	vendor.setExpiresIn(60)

	env := newE2EEnv(t, vendor, func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("not dialed in this test")
	})
	ctx := context.Background()

	got, err := env.auth.ValidToken(ctx, env.session)
	if err != nil {
		t.Fatalf("ValidToken() error = %v", err)
	}
	if got != e2eToken+"-refreshed" {
		t.Errorf("ValidToken() = %q, want the refreshed token", got)
	}
	if n := vendor.refreshCount(); n != 1 {
		t.Fatalf("refresh grants = %d, want 1", n)
	}

	// The refreshed grant is long-lived; a second call serves it without
	// another exchange.
	if _, err := env.auth.ValidToken(ctx, env.session); err != nil {
		t.Fatalf("ValidToken() second call error = %v", err)
	}
	if n := vendor.refreshCount(); n != 1 {
		t.Errorf("refresh grants after second call = %d, want 1", n)
	}

	reopened, err := persistence.New(persistence.Config{Path: env.statePath})
	if err != nil {
		t.Fatalf("persistence.New() reload error = %v", err)
	}
	tok, ok := reopened.Token(env.session)
	if !ok {
		t.Fatal("refreshed token missing after store reload")
	}
	if tok.AccessToken != e2eToken+"-refreshed" || tok.RefreshToken != "refresh-2" {
		t.Errorf("reloaded token = %+v, want refreshed grant", tok)
	}

	if err := env.auth.Logout(env.session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := env.store.Token(env.session); ok {
		t.Error("token survives logout")
	}
	if _, ok := env.store.DevicePassword(env.session, e2ePanelID); ok {
		t.Error("panel password survives logout")
	}
	if _, err := env.auth.ValidToken(ctx, env.session); !errors.Is(err, guardian.ErrSessionExpired) {
		t.Errorf("ValidToken() after logout error = %v, want %v", err, guardian.ErrSessionExpired)
	}
}

// TestE2E_EventStreamDeliversCloudEvents runs the poller against the
// fake feed and reads the result through the SSE writer: subscribing
// starts the loop, the priming poll is silent, new feed rows arrive as
// alarm_event frames, and unsubscribing stops the loop.
func TestE2E_EventStreamDeliversCloudEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	vendor := newFakeVendor(t, cloudCentralJSON())
	vendor.pushFeedRow(feedRowJSON(1, 4001, "Ativacao remota"))

	env := newE2EEnv(t, vendor, func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("not dialed in this test")
	})

	p, err := poller.New(poller.Config{
		Cloud:       env.cloud,
		Tokens:      env.auth,
		Broadcaster: env.casts,
		Interval:    20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("poller.New() error = %v", err)
	}
	p.Bind()

	sub := env.casts.Subscribe(env.session)
	if !p.Running() {
		t.Fatal("poller not started by the first subscriber")
	}

	var out syncBuffer
	sseCtx, sseCancel := context.WithCancel(context.Background())
	defer sseCancel()
	sseDone := make(chan error, 1)
	go func() {
		w := &events.SSEWriter{PingInterval: time.Hour}
		sseDone <- w.Serve(sseCtx, &out, sub)
	}()

	// The first poll only primes the cursor. Push the alarm row after
	// that so it is the first thing broadcast.
	waitFor(t, "poller primed", func() bool { return p.TrackedSessions() == 1 })
	vendor.pushFeedRow(feedRowJSON(2, 1300, "Disparo de zona"))

	waitFor(t, "alarm event on the stream", func() bool {
		s := out.String()
		return strings.Contains(s, "event: "+events.TypeAlarmEvent) && strings.Contains(s, "Disparo de zona")
	})

	var got poller.AlarmEvent
	if err := json.Unmarshal([]byte(dataLine(t, out.String(), events.TypeAlarmEvent)), &got); err != nil {
		t.Fatalf("decoding stream payload: %v", err)
	}
	if got.ID != 2 || got.EventCode != 1300 {
		t.Errorf("event = %+v, want feed row 2", got)
	}
	if got.Severity != poller.SeverityCritical || !got.IsAlarm {
		t.Errorf("severity = %q isAlarm = %v, want critical alarm", got.Severity, got.IsAlarm)
	}
	if got.Zone == nil || got.Zone.FriendlyName != "Cozinha" {
		t.Errorf("zone = %+v, want friendly name from the feed", got.Zone)
	}
	if got.DeviceID != e2ePanelID || got.DeviceName != "Casa" {
		t.Errorf("device = %d %q, want the feed central", got.DeviceID, got.DeviceName)
	}

	env.casts.Unsubscribe(sub.ID)
	if err := <-sseDone; err != nil {
		t.Fatalf("Serve() error = %v after unsubscribe", err)
	}
	if p.Running() {
		t.Error("poller still running with no subscribers")
	}
}

// TestE2E_CaptureFileRoundTrip records a scripted session to a capture
// file and reads it back, plain and filtered, the way the analyzer
// does.
func TestE2E_CaptureFileRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	path := filepath.Join(t.TempDir(), "panel.ilog")
	capture, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	steps := append(cloudHandshake(),
		scriptStep{want: isecnet.EncodeV2(isecnet.CmdPanelStatus, nil, e2eSrc), reply: v2StatusReply()},
		scriptStep{want: isecnet.EncodeV2(isecnet.CmdDisconnect, nil, e2eSrc)},
	)
	done := runScript(t, server, steps)

	sess := session.New(session.Config{
		ConnectTimeout: time.Second,
		ReadTimeout:    500 * time.Millisecond,
		Dialer: func(context.Context, string, string) (net.Conn, error) {
			return client, nil
		},
		Logger: capture,
	}, model.ConnectionInfo{MAC: e2eMAC, Mode: model.TransportCloud}, e2ePassword)

	ctx := context.Background()
	if err := sess.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := sess.Status(ctx); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if err := sess.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	waitScript(t, done)
	if err := capture.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	frames := 0
	authorized := false
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if ev.PanelID != e2eMAC {
			t.Errorf("event panel id = %q, want %q", ev.PanelID, e2eMAC)
		}
		if ev.Frame != nil {
			frames++
			if ev.Frame.Dialect != log.DialectV2 {
				t.Errorf("frame dialect = %v, want %v", ev.Frame.Dialect, log.DialectV2)
			}
		}
		if ev.StateChange != nil && ev.StateChange.NewState == session.StageAuthorized.String() {
			authorized = true
		}
	}
	// Six handshake frames, the status round trip, and the disconnect.
	if frames != 9 {
		t.Errorf("frame events = %d, want 9", frames)
	}
	if !authorized {
		t.Error("no state change to AUTHORIZED recorded")
	}

	out := log.DirectionOut
	filtered, err := log.NewFilteredReader(path, log.Filter{Direction: &out})
	if err != nil {
		t.Fatalf("NewFilteredReader() error = %v", err)
	}
	defer filtered.Close()

	outFrames := 0
	for {
		ev, err := filtered.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("filtered Next() error = %v", err)
		}
		if ev.Direction != log.DirectionOut {
			t.Errorf("filtered direction = %v, want %v", ev.Direction, log.DirectionOut)
		}
		if ev.Frame != nil {
			outFrames++
		}
	}
	if outFrames != 5 {
		t.Errorf("outbound frame events = %d, want 5", outFrames)
	}
}

// e2eEnv is the assembled gateway stack: one logged-in app session
// against a fake vendor cloud, with panel I/O routed to the test's
// dialer.
type e2eEnv struct {
	store     *persistence.Store
	statePath string
	auth      *guardian.Auth
	cloud     *guardian.Client
	pool      *pool.Pool
	facade    *service.AlarmService
	casts     *events.Broadcaster
	session   string
}

func newE2EEnv(t *testing.T, vendor *fakeVendor, dialer func(context.Context, string, string) (net.Conn, error)) *e2eEnv {
	t.Helper()

	statePath := filepath.Join(t.TempDir(), "state.json")
	store, err := persistence.New(persistence.Config{Path: statePath})
	if err != nil {
		t.Fatalf("persistence.New() error = %v", err)
	}

	auth, err := guardian.NewAuth(guardian.AuthConfig{
		TokenURL:   vendor.srv.URL + "/auth/token",
		BaseURL:    vendor.srv.URL,
		HTTPClient: vendor.srv.Client(),
		Store:      store,
		MobileName: "e2e",
	})
	if err != nil {
		t.Fatalf("guardian.NewAuth() error = %v", err)
	}

	cloud := guardian.NewClient(guardian.Config{
		BaseURL:    vendor.srv.URL,
		HTTPClient: vendor.srv.Client(),
		Retry:      backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
	})

	sessions := pool.New(pool.Config{
		IdleTimeout:   time.Minute,
		SweepInterval: time.Minute,
		SessionConfig: session.Config{
			ConnectTimeout: time.Second,
			ReadTimeout:    500 * time.Millisecond,
			ArmReadTimeout: 60 * time.Millisecond,
			Dialer:         dialer,
		},
	})
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	casts := events.NewBroadcaster()
	facade, err := service.New(service.Config{
		Pool:        sessions,
		Store:       store,
		Broadcaster: casts,
		Tokens:      auth,
		Cloud:       cloud,
		VerifySleep: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}

	sess, err := auth.Login(context.Background(), "ana@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := store.SetDevicePassword(sess.ID, e2ePanelID, e2ePassword); err != nil {
		t.Fatalf("SetDevicePassword() error = %v", err)
	}

	return &e2eEnv{
		store:     store,
		statePath: statePath,
		auth:      auth,
		cloud:     cloud,
		pool:      sessions,
		facade:    facade,
		casts:     casts,
		session:   sess.ID,
	}
}

// fakeVendor stubs the identity server and the Guardian API for one
// account with one panel.
type fakeVendor struct {
	srv *httptest.Server

	mu        sync.Mutex
	central   string
	feed      []string
	expiresIn int
	logins    int
	refreshes int
}

func newFakeVendor(t *testing.T, central string) *fakeVendor {
	t.Helper()
	v := &fakeVendor{central: central, expiresIn: 3600}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", v.handleToken)
	mux.HandleFunc("/api/v2/auth/mobile/login/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v2/alarm-centrals/", v.handleCentral)
	mux.HandleFunc("/api/v2/events", v.handleEvents)

	v.srv = httptest.NewServer(mux)
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) setExpiresIn(seconds int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expiresIn = seconds
}

// pushFeedRow prepends a row; the real feed serves newest first.
func (v *fakeVendor) pushFeedRow(row string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feed = append([]string{row}, v.feed...)
}

func (v *fakeVendor) loginCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.logins
}

func (v *fakeVendor) refreshCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshes
}

func (v *fakeVendor) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch r.PostForm.Get("grant_type") {
	case "password":
		v.logins++
		fmt.Fprintf(w, `{"access_token": %q, "refresh_token": "refresh-1", "expires_in": %d}`,
			e2eToken, v.expiresIn)
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			http.Error(w, "unknown refresh token", http.StatusBadRequest)
			return
		}
		v.refreshes++
		fmt.Fprintf(w, `{"access_token": %q, "refresh_token": "refresh-2", "expires_in": 3600}`,
			e2eToken+"-refreshed")
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
	}
}

func (v *fakeVendor) handleCentral(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	io.WriteString(w, v.central)
}

func (v *fakeVendor) handleEvents(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	io.WriteString(w, "["+strings.Join(v.feed, ",")+"]")
}

func cloudCentralJSON() string {
	return fmt.Sprintf(`{
		"id": %d,
		"description": "Casa",
		"alarm_model": "AMT 8000",
		"central_mac": "aa:bb:cc:dd:ee:ff",
		"connections": {"is_cloud_enabled": true},
		"partitions": [
			{"id": 31, "index": 0, "name": "Casa"},
			{"id": 32, "index": 1, "name": "Garagem"}
		]
	}`, e2ePanelID)
}

func receiverCentralJSON() string {
	return fmt.Sprintf(`{
		"id": %d,
		"description": "Loja",
		"mac": "AABBCCDDEEFF",
		"connections": {"is_ip_receiver_server_enabled": true},
		"ip_receiver_server_addr": "10.0.0.8",
		"ip_receiver_server_port": 9009,
		"ip_receiver_server_account": "0042"
	}`, e2ePanelID)
}

func feedRowJSON(id, code int64, name string) string {
	return fmt.Sprintf(`{
		"id": %d,
		"created": "2026-02-11T08:30:00Z",
		"event": {"id": %d, "name": %q},
		"zone": {"id": 9, "name": "Zona 03", "friendly_name": "Cozinha"},
		"alarm_central_id": %d,
		"alarm_central": {"id": %d, "description": "Casa"}
	}`, id, code, name, e2ePanelID, e2ePanelID)
}

// scriptStep is one exchange the fake panel expects: it reads a frame,
// compares it against want (nil skips the check), and answers with
// reply (nil stays silent).
type scriptStep struct {
	want  []byte
	reply []byte
}

func runScript(t *testing.T, conn net.Conn, steps []scriptStep) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for i, step := range steps {
			n, err := conn.Read(buf)
			if err != nil {
				done <- fmt.Errorf("step %d: read: %w", i, err)
				return
			}
			got := buf[:n]
			if step.want != nil && !bytes.Equal(got, step.want) {
				done <- fmt.Errorf("step %d: frame % X, want % X", i, got, step.want)
				return
			}
			if step.reply != nil {
				if _, err := conn.Write(step.reply); err != nil {
					done <- fmt.Errorf("step %d: write: %w", i, err)
					return
				}
			}
		}
		done <- nil
	}()
	return done
}

func waitScript(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("panel script: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panel script did not finish")
	}
}

// singleUseDialer hands the pipe's client end to the first dial and
// refuses the rest, mirroring a panel's single connection slot.
func singleUseDialer(t *testing.T, conn net.Conn) func(context.Context, string, string) (net.Conn, error) {
	t.Helper()
	var mu sync.Mutex
	dialed := false
	return func(context.Context, string, string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if dialed {
			return nil, errors.New("panel connection slot busy")
		}
		dialed = true
		return conn, nil
	}
}

func cloudHandshake() []scriptStep {
	connectReq := isecnet.EncodeV2(isecnet.CmdConnect, isecnet.ConnectPayload(), [2]byte{})
	connectReply := isecnet.EncodeV2(isecnet.CmdConnect, []byte{e2eXorKey}, [2]byte{})

	appReq := isecnet.Obfuscate(
		isecnet.EncodeV2(isecnet.CmdAppConnect, isecnet.AppConnectPayload(e2eMAC), [2]byte{}),
		e2eXorKey,
	)
	appReply := isecnet.EncodeV2(isecnet.CmdAppConnect, []byte{0x00, e2eSrc[0], e2eSrc[1]}, [2]byte{})

	authReq := isecnet.EncodeV2(isecnet.CmdAuthorize, isecnet.AuthorizePayload(e2ePassword), e2eSrc)
	authReply := isecnet.EncodeV2(isecnet.CmdAuthorize, []byte{0x00}, e2eSrc)

	return []scriptStep{
		{want: connectReq, reply: connectReply},
		{want: appReq, reply: appReply},
		{want: authReq, reply: authReply},
	}
}

func receiverHandshake() []scriptStep {
	return []scriptStep{
		{want: isecnet.EncodeGetByte(), reply: v1Reply(0xE0)},
		{want: isecnet.EncodeReceiverConnect("0042"), reply: v1Reply(0xE4)},
	}
}

func v1Reply(cmd byte) []byte {
	buf := []byte{0x02, cmd, 0x01}
	return append(buf, isecnet.Checksum(buf))
}

func v1Frame(data []byte) []byte {
	buf := append([]byte{byte(len(data))}, data...)
	return append(buf, isecnet.Checksum(buf))
}

func v1StatusData() []byte {
	data := make([]byte, 44)
	data[0] = 0xE9
	data[19] = 52   // AMT_2018_E_SMART
	data[20] = 0x10 // firmware
	data[21] = 0x01 // partitions enabled
	data[22] = 0x07 // partition 0 away, partition 1 stay
	data[31] = 0x64 // battery
	return data
}

func v2StatusReply() []byte {
	payload := make([]byte, 135)
	payload[0] = 0x01 // AMT_8000
	payload[2] = 2    // partition 0 armed_stay
	payload[3] = 1    // partition 1 armed_away
	return isecnet.EncodeV2(isecnet.CmdPanelStatus, payload, e2eSrc)
}

func e2eAck() []byte {
	return isecnet.EncodeV2(isecnet.CmdAck, nil, e2eSrc)
}

func waitEvent(t *testing.T, sub *events.Subscriber) events.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event broadcast")
		return events.Event{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// dataLine returns the data payload of the first frame with the given
// event type.
func dataLine(t *testing.T, stream, eventType string) string {
	t.Helper()
	lines := strings.Split(stream, "\n")
	for i, line := range lines {
		if line == "event: "+eventType && i+1 < len(lines) {
			return strings.TrimPrefix(lines[i+1], "data: ")
		}
	}
	t.Fatalf("no %s frame in stream %q", eventType, stream)
	return ""
}

// syncBuffer is a goroutine-safe sink for the SSE writer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
