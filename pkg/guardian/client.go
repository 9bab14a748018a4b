package guardian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/backoff"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// Production endpoints, lifted from the vendor's Android app.
const (
	// DefaultBaseURL is the Guardian REST API origin.
	DefaultBaseURL = "https://guardiao.intelbras.com.br"

	// DefaultTokenURL is the identity server's OAuth token endpoint.
	DefaultTokenURL = "https://api.conta.intelbras.com/auth/token"

	// DefaultClientID is the OAuth client id the identity server
	// issued to the vendor's mobile app.
	DefaultClientID = "xHCEFEMoQnBcIHcw8ACqbU9aZaYa"
)

// userAgent is sent on every request; the cloud serves mobile clients
// only.
const userAgent = "IntelbrasGuardian/1.0 Android"

// maxAttempts bounds the retry loop over network errors and 5xx
// responses.
const maxAttempts = 3

// maxBodySize caps how much of a reply is read into memory.
const maxBodySize = 1 << 20

// errorBodyLimit caps how much of an error reply lands in messages.
const errorBodyLimit = 200

// Config carries the REST client tunables. Zero fields take defaults.
type Config struct {
	// BaseURL is the API origin, without a trailing slash.
	BaseURL string

	// HTTPClient issues the requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Retry shapes the delay between attempts. Defaults to 2s doubling
	// up to 8s, matching the mobile app.
	Retry backoff.Config

	// Now stamps resolved connection descriptors, for tests.
	Now func() time.Time
}

// DefaultConfig returns the production endpoints and retry policy.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Retry: backoff.Config{
			Initial:    2 * time.Second,
			Max:        8 * time.Second,
			Multiplier: 2,
		},
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Retry.Initial <= 0 {
		c.Retry.Initial = 2 * time.Second
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = 8 * time.Second
	}
	if c.Retry.Multiplier <= 1 {
		c.Retry.Multiplier = 2
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Client calls the Guardian REST API. Methods take the access token
// explicitly, so one client serves every gateway session.
type Client struct {
	cfg Config
}

// NewClient builds a client over cfg.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// Connections is the reachability block of a panel registration.
type Connections struct {
	CloudEnabled    bool `json:"is_cloud_enabled"`
	ReceiverEnabled bool `json:"is_ip_receiver_server_enabled"`
}

// PartitionInfo is one partition as the cloud lists it.
type PartitionInfo struct {
	ID           int64  `json:"id"`
	Index        int    `json:"index"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	InAlarm      bool   `json:"is_in_alarm"`
}

// Label returns the partition's display name, falling back to its
// panel-order position.
func (p PartitionInfo) Label() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.FriendlyName != "":
		return p.FriendlyName
	}
	return fmt.Sprintf("Partição %d", p.Index+1)
}

// ZoneInfo is one zone (sector) as the cloud lists it.
type ZoneInfo struct {
	ID           int64  `json:"id"`
	Index        int    `json:"index"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	StayEnabled  bool   `json:"stay_enabled"`
	Bypassed     bool   `json:"bypassed"`
}

// AlarmCentral is one panel registration as the cloud reports it.
type AlarmCentral struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Model       string `json:"alarm_model"`
	Firmware    string `json:"firmware_version"`

	// The cloud has served the MAC under both keys.
	CentralMAC string `json:"central_mac"`
	LegacyMAC  string `json:"mac"`

	Connections Connections `json:"connections"`

	// IP-receiver endpoint, meaningful when the receiver path is
	// enabled.
	ReceiverAddr    string `json:"ip_receiver_server_addr"`
	ReceiverPort    int    `json:"ip_receiver_server_port"`
	ReceiverAccount string `json:"ip_receiver_server_account"`

	Partitions []PartitionInfo `json:"partitions"`
}

// MAC returns the panel MAC under whichever key the cloud used.
func (c AlarmCentral) MAC() string {
	if c.CentralMAC != "" {
		return c.CentralMAC
	}
	return c.LegacyMAC
}

// Online reports whether the cloud believes any path to the panel is
// up.
func (c AlarmCentral) Online() bool {
	return c.Connections.CloudEnabled || c.Connections.ReceiverEnabled
}

// ConnectionInfo maps the registration to a transport descriptor. The
// cloud relay wins when both paths are enabled; a panel with neither
// still gets a cloud descriptor, matching the mobile app's fallback.
// A registration without a MAC cannot be connected to and is an error.
func (c AlarmCentral) ConnectionInfo(now time.Time) (model.ConnectionInfo, error) {
	mac := model.NormalizeMAC(c.MAC())
	if mac == "" {
		return model.ConnectionInfo{}, fmt.Errorf("panel %d has no MAC registered", c.ID)
	}

	info := model.ConnectionInfo{
		MAC:       mac,
		Mode:      model.TransportCloud,
		FetchedAt: now,
	}
	if !c.Connections.CloudEnabled && c.Connections.ReceiverEnabled {
		info.Mode = model.TransportIPReceiver
		info.ReceiverHost = c.ReceiverAddr
		info.ReceiverPort = c.ReceiverPort
		info.ReceiverAccount = c.ReceiverAccount
	}
	for _, p := range c.Partitions {
		info.Partitions = append(info.Partitions, model.PartitionRef{ID: p.ID, Name: p.Label()})
	}
	return info, nil
}

// EventRef names an entry of the vendor's event code table.
type EventRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EventZone is the zone block attached to zone-scoped events.
type EventZone struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
}

// CentralRef is the panel block attached to events.
type CentralRef struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

// PanelEvent is one row of the account's event feed, newest first.
type PanelEvent struct {
	ID          int64       `json:"id"`
	Created     string      `json:"created"`
	Event       EventRef    `json:"event"`
	Zone        *EventZone  `json:"zone"`
	PartitionID *int64      `json:"alarm_partition"`
	CentralID   int64       `json:"alarm_central_id"`
	Central     *CentralRef `json:"alarm_central"`
	UserID      *int64      `json:"alarm_user"`
}

// AlarmCentrals lists the account's registered panels.
func (c *Client) AlarmCentrals(ctx context.Context, token string) ([]AlarmCentral, error) {
	body, err := c.get(ctx, token, "/api/v2/alarm-centrals", nil)
	if err != nil {
		return nil, err
	}
	var out []AlarmCentral
	if err := decodeList(body, &out); err != nil {
		return nil, fmt.Errorf("alarm-centrals: %w", err)
	}
	return out, nil
}

// AlarmCentral fetches one panel registration.
func (c *Client) AlarmCentral(ctx context.Context, token string, panelID int64) (AlarmCentral, error) {
	body, err := c.get(ctx, token, "/api/v2/alarm-centrals/"+strconv.FormatInt(panelID, 10), nil)
	if err != nil {
		return AlarmCentral{}, err
	}
	var out AlarmCentral
	if err := json.Unmarshal(body, &out); err != nil {
		return AlarmCentral{}, fmt.Errorf("alarm-central %d: %w", panelID, err)
	}
	return out, nil
}

// Zones lists a panel's zones.
func (c *Client) Zones(ctx context.Context, token string, panelID int64) ([]ZoneInfo, error) {
	body, err := c.get(ctx, token, "/api/v2/alarm-centrals/"+strconv.FormatInt(panelID, 10)+"/zones", nil)
	if err != nil {
		return nil, err
	}
	var out []ZoneInfo
	if err := decodeList(body, &out); err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}
	return out, nil
}

// Events pages through the account's event feed.
func (c *Client) Events(ctx context.Context, token string, offset, limit int) ([]PanelEvent, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	body, err := c.get(ctx, token, "/api/v2/events", q)
	if err != nil {
		return nil, err
	}
	var out []PanelEvent
	if err := decodeList(body, &out); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return out, nil
}

// PanelConnection resolves a panel id to its transport descriptor.
// Unknown panels and registrations without a MAC report
// ErrPanelNotFound.
func (c *Client) PanelConnection(ctx context.Context, token string, panelID int64) (model.ConnectionInfo, error) {
	central, err := c.AlarmCentral(ctx, token, panelID)
	if err != nil {
		return model.ConnectionInfo{}, err
	}
	info, err := central.ConnectionInfo(c.cfg.Now())
	if err != nil {
		return model.ConnectionInfo{}, fmt.Errorf("%w: %v", ErrPanelNotFound, err)
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, token)
}

// do issues one request, retrying network errors and 5xx responses
// with exponential backoff. 4xx responses are final on first answer.
func (c *Client) do(ctx context.Context, method, u, token string) ([]byte, error) {
	bo := backoff.NewWithConfig(c.cfg.Retry)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, bo.Next()); err != nil {
				return nil, err
			}
		}
		body, retryable, err := c.once(ctx, method, u, token)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, u, token string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, false, err
	}
	// The cloud wants the raw token, not an OAuth Bearer scheme.
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%s %s: %w", method, req.URL.Path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%s %s: %w", method, req.URL.Path, ErrPanelNotFound)
	case resp.StatusCode >= 500:
		return nil, true, &APIError{Status: resp.StatusCode, Body: clip(body)}
	case resp.StatusCode >= 400:
		return nil, false, &APIError{Status: resp.StatusCode, Body: clip(body)}
	}
	return body, false, nil
}

// decodeList accepts both layouts the cloud has served: a bare JSON
// array, or an object wrapping the array under "results" or "data".
func decodeList(data []byte, v any) error {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, v)
	}
	var page struct {
		Results json.RawMessage `json:"results"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	switch {
	case page.Results != nil:
		return json.Unmarshal(page.Results, v)
	case page.Data != nil:
		return json.Unmarshal(page.Data, v)
	}
	return fmt.Errorf("reply is neither a list nor a page")
}

func clip(body []byte) string {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return string(bytes.TrimSpace(body))
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
