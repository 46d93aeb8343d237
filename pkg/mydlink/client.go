// Package mydlink implements the mydlink cloud REST API: OAuth2 login,
// device listing, and device detail retrieval. The REST API yields the DCD
// relay endpoint and device token that the Signal Agent session needs.
package mydlink

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// Public client credentials of the official mydlink mobile app.
	clientID    = "521ea1890143662c7597864ffb6fc816"
	oauthSecret = "82aac78b6d02239942afd8fe9b3c6d22"

	defaultAPIURL = "https://api.auto.mydlink.com"
	redirectURI   = "https://mydlink.com"

	ucID   = "mydlink-hub"
	ucName = "mydlink-hub-integration"

	apiTimeout = 30 * time.Second

	// Default token lifetime when the server omits expires_in.
	defaultTokenTTL = 172800 * time.Second

	// Setting type for the plug relay inside change_cache entries.
	settingTypePlug = 16
)

var (
	// ErrNotAuthenticated indicates the client holds no valid access token.
	ErrNotAuthenticated = errors.New("not authenticated with mydlink")

	// ErrLoginFailed indicates the OAuth exchange was rejected.
	ErrLoginFailed = errors.New("mydlink login failed")
)

// Device is a registry entry from the device list.
type Device struct {
	MydlinkID string `json:"mydlink_id"`
	MAC       string `json:"mac"`
	Name      string `json:"device_name"`
	Model     string `json:"device_model"`
	Online    bool   `json:"online"`
}

// DeviceInfo is the detailed record for a single device, including the
// relay coordinates required for a Signal Agent session.
type DeviceInfo struct {
	MydlinkID       string
	MAC             string
	Name            string
	Model           string
	Online          bool
	DCDURL          string
	DeviceToken     string
	PinCode         string
	PrivateIP       string
	PrivatePort     string
	FirmwareVersion string

	// SwitchState is the cached relay state, nil when the cloud cache
	// carried no plug setting.
	SwitchState *bool
}

// UserInfo is the account profile record.
type UserInfo struct {
	Email    string `json:"email"`
	UserUUID string `json:"user_uuid"`
	Country  string `json:"country"`
	Language string `json:"language"`
}

// Client talks to the mydlink cloud REST API on behalf of one account.
// Safe for concurrent use: the account poll loop re-runs Login while
// session reconnect timers read the token from their own goroutines.
type Client struct {
	httpClient *http.Client
	apiURL     string

	mu           sync.Mutex
	email        string
	accessToken  string
	apiSite      string
	tokenExpires time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.apiURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates an unauthenticated mydlink API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: apiTimeout,
			// The OAuth endpoint delivers the token via a redirect; the
			// Location header must be inspected, not followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		apiURL: defaultAPIURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func md5Hex(input string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(input)))
}

// Login authenticates with email and password. The password is hashed
// locally; only its MD5 digest travels to the cloud.
func (c *Client) Login(ctx context.Context, email, password string) error {
	log.Debug().Str("email", email).Msg("Logging in to mydlink")

	c.mu.Lock()
	c.email = email
	c.mu.Unlock()

	params := strings.Join([]string{
		"client_id=" + clientID,
		"redirect_uri=" + url.QueryEscape(redirectURI),
		"user_name=" + url.QueryEscape(email),
		"password=" + md5Hex(password),
		"response_type=token",
		"timestamp=" + strconv.FormatInt(time.Now().Unix(), 10),
		"uc_id=" + ucID,
		"uc_name=" + ucName,
	}, "&")

	loginPath := "/oauth/authorize2?" + params
	signature := md5Hex(loginPath + oauthSecret)
	fullURL := c.apiURL + loginPath + "&sig=" + signature

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if strings.Contains(location, "access_token=") {
			return c.parseTokenFromRedirect(location)
		}
		return fmt.Errorf("%w: redirect without token", ErrLoginFailed)
	}

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read login response: %w", err)
		}
		return c.parseTokenFromJSON(body)
	}

	return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
}

// parseTokenFromRedirect extracts the token from the redirect URL. The
// parameters may sit in the fragment or the query string.
func (c *Client) parseTokenFromRedirect(location string) error {
	var raw string
	switch {
	case strings.Contains(location, "#"):
		raw = location[strings.Index(location, "#")+1:]
	case strings.Contains(location, "?"):
		raw = location[strings.Index(location, "?")+1:]
	default:
		return fmt.Errorf("%w: unparseable redirect", ErrLoginFailed)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("%w: parse redirect: %v", ErrLoginFailed, err)
	}

	token := values.Get("access_token")
	if token == "" {
		return fmt.Errorf("%w: redirect missing access_token", ErrLoginFailed)
	}

	ttl := defaultTokenTTL
	if v := values.Get("expires_in"); v != "" {
		if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
			ttl = time.Duration(seconds) * time.Second
		}
	}

	apiSite := values.Get("api_site")

	c.mu.Lock()
	c.accessToken = token
	c.apiSite = apiSite
	c.tokenExpires = time.Now().Add(ttl)
	c.mu.Unlock()

	log.Info().Str("api_site", apiSite).Msg("Logged in to mydlink")

	return nil
}

func (c *Client) parseTokenFromJSON(body []byte) error {
	var payload struct {
		AccessToken string `json:"access_token"`
		APISite     string `json:"api_site"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrLoginFailed, err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("%w: response missing access_token", ErrLoginFailed)
	}

	ttl := defaultTokenTTL
	if payload.ExpiresIn > 0 {
		ttl = time.Duration(payload.ExpiresIn) * time.Second
	}

	c.mu.Lock()
	c.accessToken = payload.AccessToken
	c.apiSite = payload.APISite
	c.tokenExpires = time.Now().Add(ttl)
	c.mu.Unlock()

	log.Info().Str("api_site", payload.APISite).Msg("Logged in to mydlink")

	return nil
}

// baseURL returns the per-account API endpoint the login assigned, falling
// back to the global one.
func (c *Client) baseURL() string {
	c.mu.Lock()
	apiSite := c.apiSite
	c.mu.Unlock()

	base := c.apiURL
	if apiSite != "" {
		base = apiSite
		if !strings.HasPrefix(base, "http") {
			base = "https://" + base
		}
	}
	return base
}

// IsTokenValid reports whether the client holds an unexpired access token.
func (c *Client) IsTokenValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != "" && time.Now().Before(c.tokenExpires)
}

// AccessToken returns the current access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Email returns the account email used at login.
func (c *Client) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// Devices returns all devices registered to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	if !c.IsTokenValid() {
		return nil, ErrNotAuthenticated
	}

	reqURL := c.baseURL() + "/me/device/list?access_token=" + url.QueryEscape(c.AccessToken())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build device list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device list request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device list: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []Device `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}

	log.Debug().Int("count", len(payload.Data)).Msg("Fetched mydlink device list")

	return payload.Data, nil
}

// deviceInfoEntry mirrors one /me/device/info result record.
type deviceInfoEntry struct {
	MydlinkID   string `json:"mydlink_id"`
	Name        string `json:"device_name"`
	Model       string `json:"device_model"`
	Online      bool   `json:"online"`
	DCD         string `json:"DCD"`
	DeviceToken string `json:"device_token"`
	PinCode     string `json:"pin_code"`
	PrivateIP   string `json:"private_ip"`
	PrivatePort string `json:"private_port"`
	FirmwareVer string `json:"fw_ver"`
	ChangeCache *struct {
		SettingChange []struct {
			Metadata *struct {
				Type  int `json:"type"`
				Value int `json:"value"`
			} `json:"metadata"`
		} `json:"setting_change"`
	} `json:"change_cache"`
}

// DeviceInfo fetches the detailed record for one device, including the DCD
// relay URL, device token and cached switch state.
func (c *Client) DeviceInfo(ctx context.Context, mydlinkID, mac string) (*DeviceInfo, error) {
	if !c.IsTokenValid() {
		return nil, ErrNotAuthenticated
	}

	reqURL := c.baseURL() + "/me/device/info?access_token=" + url.QueryEscape(c.AccessToken())

	body, err := json.Marshal(map[string]any{
		"data": []map[string]string{
			{"mac": mac, "mydlink_id": mydlinkID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode device info request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build device info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device info: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []deviceInfoEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode device info: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("device info: device %s not found", mydlinkID)
	}

	entry := payload.Data[0]
	info := &DeviceInfo{
		MydlinkID:       entry.MydlinkID,
		MAC:             mac,
		Name:            entry.Name,
		Model:           entry.Model,
		Online:          entry.Online,
		DCDURL:          entry.DCD,
		DeviceToken:     entry.DeviceToken,
		PinCode:         entry.PinCode,
		PrivateIP:       entry.PrivateIP,
		PrivatePort:     entry.PrivatePort,
		FirmwareVersion: entry.FirmwareVer,
	}

	// The cloud caches the last reported plug setting; surface it so a
	// fresh session starts with a known switch state.
	if entry.ChangeCache != nil {
		for _, setting := range entry.ChangeCache.SettingChange {
			if setting.Metadata != nil && setting.Metadata.Type == settingTypePlug {
				on := setting.Metadata.Value == 1
				info.SwitchState = &on
			}
		}
	}

	return info, nil
}

// UserInfo fetches the account profile.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	if !c.IsTokenValid() {
		return nil, ErrNotAuthenticated
	}

	reqURL := c.baseURL() + "/me/user/info?access_token=" + url.QueryEscape(c.AccessToken())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info: status %d", resp.StatusCode)
	}

	var payload struct {
		Data *UserInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("user info: empty response")
	}

	return payload.Data, nil
}

// Close drops the session state. The client can log in again afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.apiSite = ""
	c.tokenExpires = time.Time{}
}
