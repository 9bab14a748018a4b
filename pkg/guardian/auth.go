package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isecnet-bridge/isecnet-go/pkg/persistence"
)

// defaultTokenLifetime is assumed when a grant omits expires_in.
const defaultTokenLifetime = time.Hour

// AuthConfig carries the login flow tunables. Store is required; zero
// fields take defaults.
type AuthConfig struct {
	// TokenURL is the identity server's OAuth token endpoint.
	TokenURL string

	// BaseURL is the Guardian API origin, used for the mobile
	// registration call after login.
	BaseURL string

	// ClientID identifies the OAuth client.
	ClientID string

	// RefreshBuffer is how long before expiry a token is refreshed.
	// Defaults to 5 minutes.
	RefreshBuffer time.Duration

	// HTTPClient issues the requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Store persists tokens across restarts.
	Store *persistence.Store

	// MobileName is the device name reported during registration.
	// Defaults to the hostname.
	MobileName string

	// Logger is the optional logger for debug output. If nil, logging
	// is disabled.
	Logger *slog.Logger

	// Now is the clock, for tests.
	Now func() time.Time
}

// DefaultAuthConfig returns the production endpoints and refresh
// policy. Store must still be filled in.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		TokenURL:      DefaultTokenURL,
		BaseURL:       DefaultBaseURL,
		ClientID:      DefaultClientID,
		RefreshBuffer: 5 * time.Minute,
	}
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.RefreshBuffer <= 0 {
		c.RefreshBuffer = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.MobileName == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.MobileName = host
		} else {
			c.MobileName = "isecgw"
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Auth runs the vendor login flow and keeps stored tokens fresh. It
// implements the facade's TokenSource.
type Auth struct {
	cfg AuthConfig

	// mobileID is this gateway instance's device id for registration.
	mobileID string

	// mu serializes refreshes so concurrent callers do not burn the
	// same refresh token twice.
	mu sync.Mutex
}

// NewAuth validates the configuration and builds the auth flow.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	cfg = cfg.withDefaults()
	if cfg.Store == nil {
		return nil, errors.New("guardian: Store is required")
	}
	return &Auth{cfg: cfg, mobileID: uuid.NewString()}, nil
}

// Session identifies a logged-in account within the gateway. The id
// is the key consumers present on every call.
type Session struct {
	ID        string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo describes a stored session for the status surface.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"is_valid"`
}

// Login authenticates with the identity server's password grant,
// registers the gateway as a mobile client, and stores the issued
// tokens under a fresh session id. Registration failures are
// non-fatal: the account may already be registered.
func (a *Auth) Login(ctx context.Context, username, password string) (Session, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"client_id":  {a.cfg.ClientID},
		"scope":      {"openid"},
	}
	tok, err := a.tokenRequest(ctx, form)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return Session{}, fmt.Errorf("%w: status %d", ErrLoginRejected, apiErr.Status)
	case err != nil:
		return Session{}, err
	}

	if err := a.registerMobile(ctx, tok.AccessToken); err != nil && a.cfg.Logger != nil {
		a.cfg.Logger.Warn("mobile registration failed, continuing", "error", err)
	}

	now := a.cfg.Now()
	sess := Session{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(tok.lifetime()),
		CreatedAt: now,
	}
	err = a.cfg.Store.SetToken(sess.ID, persistence.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		Username:     username,
	})
	if err != nil {
		return Session{}, err
	}
	if a.cfg.Logger != nil {
		a.cfg.Logger.Info("login successful", "username", username, "expiresAt", sess.ExpiresAt)
	}
	return sess, nil
}

// ValidToken returns a usable access token for the session, refreshing
// it when within RefreshBuffer of expiry. A failed refresh on a token
// that is still valid serves the current token; once the token is past
// expiry the session is reported expired.
func (a *Auth) ValidToken(ctx context.Context, sessionID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, ok := a.cfg.Store.Token(sessionID)
	if !ok {
		return "", ErrSessionExpired
	}

	now := a.cfg.Now()
	if tok.ExpiresAt.IsZero() || tok.ExpiresAt.After(now.Add(a.cfg.RefreshBuffer)) {
		return tok.AccessToken, nil
	}

	refreshed, err := a.refresh(ctx, sessionID, tok)
	if err != nil {
		if tok.Expired(now) {
			return "", fmt.Errorf("%w: refresh failed: %v", ErrSessionExpired, err)
		}
		if a.cfg.Logger != nil {
			a.cfg.Logger.Warn("token refresh failed, serving current token", "error", err)
		}
		return tok.AccessToken, nil
	}
	return refreshed.AccessToken, nil
}

// Logout drops the session's tokens and its saved panel passwords.
func (a *Auth) Logout(sessionID string) error {
	if err := a.cfg.Store.DeleteSessionPasswords(sessionID); err != nil {
		return err
	}
	return a.cfg.Store.DeleteToken(sessionID)
}

// SessionInfo reports the stored session, if any.
func (a *Auth) SessionInfo(sessionID string) (SessionInfo, bool) {
	tok, ok := a.cfg.Store.Token(sessionID)
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		SessionID: sessionID,
		Username:  tok.Username,
		ExpiresAt: tok.ExpiresAt,
		Valid:     !tok.Expired(a.cfg.Now()),
	}, true
}

// refresh exchanges the refresh token for a new grant and persists it.
// A grant that omits a new refresh token keeps the old one.
func (a *Auth) refresh(ctx context.Context, sessionID string, tok persistence.Token) (persistence.Token, error) {
	if tok.RefreshToken == "" {
		return persistence.Token{}, errors.New("no refresh token stored")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
		"client_id":     {a.cfg.ClientID},
	}
	reply, err := a.tokenRequest(ctx, form)
	if err != nil {
		return persistence.Token{}, err
	}

	next := persistence.Token{
		AccessToken:  reply.AccessToken,
		RefreshToken: reply.RefreshToken,
		ExpiresAt:    a.cfg.Now().Add(reply.lifetime()),
		Username:     tok.Username,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if err := a.cfg.Store.SetToken(sessionID, next); err != nil {
		return persistence.Token{}, err
	}
	if a.cfg.Logger != nil {
		a.cfg.Logger.Debug("token refreshed", "expiresAt", next.ExpiresAt)
	}
	return next, nil
}

// tokenResponse is the identity server's grant reply. expires_in has
// arrived as both a number and a string.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	TokenType    string      `json:"token_type"`
}

func (t tokenResponse) lifetime() time.Duration {
	secs, err := t.ExpiresIn.Int64()
	if err != nil || secs <= 0 {
		return defaultTokenLifetime
	}
	return time.Duration(secs) * time.Second
}

// tokenRequest posts an OAuth grant and decodes the reply. Non-200
// responses come back as *APIError.
func (a *Auth) tokenRequest(ctx context.Context, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("identity server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("identity server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, &APIError{Status: resp.StatusCode, Body: clip(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return tokenResponse{}, fmt.Errorf("identity server: %w", err)
	}
	if tok.AccessToken == "" {
		return tokenResponse{}, errors.New("identity server: no access token in grant")
	}
	return tok, nil
}

// registerMobile announces the gateway as a mobile client of the
// account. The cloud expects one registration before serving panel
// data.
func (a *Auth) registerMobile(ctx context.Context, token string) error {
	payload, err := json.Marshal(map[string]string{
		"firebase_id":  "",
		"mobile_id":    a.mobileID,
		"mobile_model": "isecnet-go",
		"mobile_name":  a.cfg.MobileName,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v2/auth/mobile/login/", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}
