package guardian

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/backoff"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// fastRetry keeps test retries in the millisecond range.
var fastRetry = backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Retry:      fastRetry,
	})
}

func TestClientHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`[]`))
	}))

	if _, err := c.AlarmCentrals(context.Background(), "tok-123"); err != nil {
		t.Fatalf("AlarmCentrals() error = %v", err)
	}

	// The cloud authenticates on the bare token; a Bearer prefix is
	// rejected upstream.
	if auth := got.Get("Authorization"); auth != "tok-123" {
		t.Errorf("Authorization = %q, want raw token", auth)
	}
	if ua := got.Get("User-Agent"); ua != "IntelbrasGuardian/1.0 Android" {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept := got.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestAlarmCentralsShapes(t *testing.T) {
	const row = `{"id": 42, "description": "Casa", "central_mac": "aa:bb:cc:dd:ee:ff"}`

	tests := []struct {
		name string
		body string
	}{
		{"BareList", `[` + row + `]`},
		{"ResultsPage", `{"count": 1, "results": [` + row + `]}`},
		{"DataPage", `{"data": [` + row + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v2/alarm-centrals" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))

			centrals, err := c.AlarmCentrals(context.Background(), "tok")
			if err != nil {
				t.Fatalf("AlarmCentrals() error = %v", err)
			}
			if len(centrals) != 1 || centrals[0].ID != 42 || centrals[0].Description != "Casa" {
				t.Errorf("AlarmCentrals() = %+v", centrals)
			}
		})
	}
}

func TestPanelConnection(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	serve := func(t *testing.T, body string) *Client {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v2/alarm-centrals/42" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return NewClient(Config{
			BaseURL:    srv.URL,
			HTTPClient: srv.Client(),
			Retry:      fastRetry,
			Now:        func() time.Time { return now },
		})
	}

	t.Run("CloudPreferred", func(t *testing.T) {
		c := serve(t, `{
			"id": 42,
			"central_mac": "aa:bb:cc:dd:ee:ff",
			"connections": {"is_cloud_enabled": true, "is_ip_receiver_server_enabled": true},
			"ip_receiver_server_addr": "10.0.0.5",
			"ip_receiver_server_port": 9009,
			"partitions": [{"id": 7, "name": "Casa"}, {"id": 8, "index": 1}]
		}`)

		info, err := c.PanelConnection(context.Background(), "tok", 42)
		if err != nil {
			t.Fatalf("PanelConnection() error = %v", err)
		}
		if info.Mode != model.TransportCloud {
			t.Errorf("Mode = %v, want cloud", info.Mode)
		}
		if info.MAC != "AABBCCDDEEFF" {
			t.Errorf("MAC = %q, want normalized", info.MAC)
		}
		if info.ReceiverHost != "" {
			t.Errorf("ReceiverHost = %q, want empty on cloud", info.ReceiverHost)
		}
		if !info.FetchedAt.Equal(now) {
			t.Errorf("FetchedAt = %v, want %v", info.FetchedAt, now)
		}
		if len(info.Partitions) != 2 || info.Partitions[0].ID != 7 || info.Partitions[0].Name != "Casa" {
			t.Fatalf("Partitions = %+v", info.Partitions)
		}
		if info.Partitions[1].Name != "Partição 2" {
			t.Errorf("Partitions[1].Name = %q, want positional fallback", info.Partitions[1].Name)
		}
	})

	t.Run("ReceiverOnly", func(t *testing.T) {
		c := serve(t, `{
			"id": 42,
			"mac": "AABBCCDDEEFF",
			"connections": {"is_ip_receiver_server_enabled": true},
			"ip_receiver_server_addr": "10.0.0.5",
			"ip_receiver_server_port": 9010,
			"ip_receiver_server_account": "0042"
		}`)

		info, err := c.PanelConnection(context.Background(), "tok", 42)
		if err != nil {
			t.Fatalf("PanelConnection() error = %v", err)
		}
		if info.Mode != model.TransportIPReceiver {
			t.Errorf("Mode = %v, want receiver", info.Mode)
		}
		if info.ReceiverHost != "10.0.0.5" || info.ReceiverPort != 9010 || info.ReceiverAccount != "0042" {
			t.Errorf("receiver endpoint = %q:%d account %q", info.ReceiverHost, info.ReceiverPort, info.ReceiverAccount)
		}
	})

	t.Run("NeitherFallsBackToCloud", func(t *testing.T) {
		c := serve(t, `{"id": 42, "central_mac": "AABBCCDDEEFF", "connections": {}}`)

		info, err := c.PanelConnection(context.Background(), "tok", 42)
		if err != nil {
			t.Fatalf("PanelConnection() error = %v", err)
		}
		if info.Mode != model.TransportCloud {
			t.Errorf("Mode = %v, want cloud fallback", info.Mode)
		}
	})

	t.Run("NoMAC", func(t *testing.T) {
		c := serve(t, `{"id": 42, "description": "Casa"}`)

		_, err := c.PanelConnection(context.Background(), "tok", 42)
		if !errors.Is(err, ErrPanelNotFound) {
			t.Errorf("PanelConnection() error = %v, want ErrPanelNotFound", err)
		}
	})
}

func TestClientRetry(t *testing.T) {
	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "upstream busy", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`[]`))
		}))

		if _, err := c.AlarmCentrals(context.Background(), "tok"); err != nil {
			t.Fatalf("AlarmCentrals() error = %v", err)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("server saw %d calls, want 3", got)
		}
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		_, err := c.AlarmCentrals(context.Background(), "tok")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
			t.Fatalf("AlarmCentrals() error = %v, want APIError 500", err)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("server saw %d calls, want 3", got)
		}
	})

	t.Run("ClientErrorsAreFinal", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
		}))

		_, err := c.AlarmCentrals(context.Background(), "tok")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
			t.Fatalf("AlarmCentrals() error = %v, want APIError 400", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("server saw %d calls, want 1", got)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "expired", http.StatusUnauthorized)
		}))

		_, err := c.AlarmCentrals(context.Background(), "tok")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("AlarmCentrals() error = %v, want ErrUnauthorized", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("server saw %d calls, want 1", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))

		_, err := c.AlarmCentral(context.Background(), "tok", 99)
		if !errors.Is(err, ErrPanelNotFound) {
			t.Errorf("AlarmCentral() error = %v, want ErrPanelNotFound", err)
		}
	})
}

func TestEvents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("offset") != "0" || q.Get("limit") != "10" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"results": [
			{"id": 101, "created": "2025-06-01T12:00:00Z",
			 "event": {"id": 1300, "name": "Disparo de zona"},
			 "zone": {"id": 9, "name": "Zona 01", "friendly_name": "Porta"},
			 "alarm_partition": 1, "alarm_central_id": 42,
			 "alarm_central": {"id": 42, "description": "Casa"}},
			{"id": 100, "created": "2025-06-01T11:59:00Z",
			 "event": {"id": 3441, "name": "Ativacao remota"},
			 "alarm_central_id": 42}
		]}`))
	}))

	evs, err := c.Events(context.Background(), "tok", 0, 10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("Events() returned %d rows, want 2", len(evs))
	}

	first := evs[0]
	if first.ID != 101 || first.Event.Name != "Disparo de zona" || first.CentralID != 42 {
		t.Errorf("first event = %+v", first)
	}
	if first.Zone == nil || first.Zone.FriendlyName != "Porta" {
		t.Errorf("first event zone = %+v", first.Zone)
	}
	if first.PartitionID == nil || *first.PartitionID != 1 {
		t.Errorf("first event partition = %v", first.PartitionID)
	}
	if evs[1].Zone != nil || evs[1].PartitionID != nil {
		t.Errorf("second event carries blocks it should not: %+v", evs[1])
	}
}

func TestZones(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/alarm-centrals/42/zones" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"id": 9, "index": 0, "name": "Zona 01", "stay_enabled": true}]`))
	}))

	zones, err := c.Zones(context.Background(), "tok", 42)
	if err != nil {
		t.Fatalf("Zones() error = %v", err)
	}
	if len(zones) != 1 || zones[0].Name != "Zona 01" || !zones[0].StayEnabled {
		t.Errorf("Zones() = %+v", zones)
	}
}
