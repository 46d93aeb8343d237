package mydlink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMD5Hex(t *testing.T) {
	// Known MD5 digest
	if got := md5Hex("password"); got != "5f4dcc3b5aa765d61d8327deb882cf99" {
		t.Errorf("unexpected digest: %s", got)
	}
}

func TestLogin_TokenFromRedirectFragment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/oauth/authorize2") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("client_id") == "" {
			t.Error("expected client_id parameter")
		}
		if query.Get("sig") == "" {
			t.Error("expected signature parameter")
		}
		if query.Get("password") == "secret" {
			t.Error("plaintext password must never reach the server")
		}

		w.Header().Set("Location", "https://mydlink.com/#access_token=tok-123&api_site=&expires_in=7200")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if err := client.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if client.AccessToken() != "tok-123" {
		t.Errorf("expected token tok-123, got %q", client.AccessToken())
	}
	if !client.IsTokenValid() {
		t.Error("expected token valid after login")
	}
	if client.Email() != "user@example.com" {
		t.Errorf("expected email retained, got %q", client.Email())
	}
}

func TestLogin_TokenFromJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-json",
			"api_site":     "api.eu.mydlink.com",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if err := client.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if client.AccessToken() != "tok-json" {
		t.Errorf("expected token tok-json, got %q", client.AccessToken())
	}
}

func TestLogin_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	err := client.Login(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrLoginFailed) {
		t.Errorf("expected ErrLoginFailed, got %v", err)
	}
	if client.IsTokenValid() {
		t.Error("failed login must not leave a valid token")
	}
}

func TestDevices_RequiresToken(t *testing.T) {
	client := NewClient()

	_, err := client.Devices(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

// loggedInClient returns a client authenticated against the given server.
func loggedInClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client := NewClient(WithBaseURL(serverURL))
	client.accessToken = "tok-test"
	client.tokenExpires = time.Now().Add(time.Hour)
	return client
}

func TestDevices_ParsesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/device/list" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok-test" {
			t.Error("expected access_token parameter")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"mydlink_id":   "12345678",
					"mac":          "AA:BB:CC:DD:EE:FF",
					"device_name":  "Office plug",
					"device_model": "DSP-W115",
					"online":       true,
				},
			},
		})
	}))
	defer server.Close()

	client := loggedInClient(t, server.URL)

	devices, err := client.Devices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].MydlinkID != "12345678" || devices[0].Model != "DSP-W115" {
		t.Errorf("unexpected device: %+v", devices[0])
	}
	if !devices[0].Online {
		t.Error("expected online device")
	}
}

func TestDeviceInfo_ParsesRelayCoordinatesAndCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/device/info" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req struct {
			Data []map[string]string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Data) != 1 || req.Data[0]["mydlink_id"] != "12345678" {
			t.Errorf("unexpected request payload: %+v", req.Data)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"mydlink_id":   "12345678",
					"device_name":  "Office plug",
					"device_model": "DSP-W115",
					"online":       true,
					"DCD":          "wss://dcd12.mydlink.com/SwitchCamera",
					"device_token": "device-tok",
					"pin_code":     "123456",
					"fw_ver":       "1.0.4",
					"change_cache": map[string]any{
						"setting_change": []map[string]any{
							{"metadata": map[string]any{"type": 16, "value": 1}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := loggedInClient(t, server.URL)

	info, err := client.DeviceInfo(context.Background(), "12345678", "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatal(err)
	}

	if info.DCDURL != "wss://dcd12.mydlink.com/SwitchCamera" {
		t.Errorf("unexpected DCD url: %s", info.DCDURL)
	}
	if info.DeviceToken != "device-tok" {
		t.Errorf("unexpected device token: %s", info.DeviceToken)
	}
	if info.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("expected MAC retained from request, got %s", info.MAC)
	}
	if info.SwitchState == nil || !*info.SwitchState {
		t.Errorf("expected cached switch state on, got %v", info.SwitchState)
	}
}

func TestDeviceInfo_NoCachedSwitchState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"mydlink_id":   "12345678",
					"device_token": "device-tok",
					"DCD":          "wss://dcd12.mydlink.com/SwitchCamera",
				},
			},
		})
	}))
	defer server.Close()

	client := loggedInClient(t, server.URL)

	info, err := client.DeviceInfo(context.Background(), "12345678", "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatal(err)
	}
	if info.SwitchState != nil {
		t.Errorf("expected nil switch state without change_cache, got %v", info.SwitchState)
	}
}

func TestDeviceInfo_DeviceNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	client := loggedInClient(t, server.URL)

	if _, err := client.DeviceInfo(context.Background(), "missing", "00:00:00:00:00:00"); err == nil {
		t.Error("expected error for missing device")
	}
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/user/info" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"email":     "user@example.com",
				"user_uuid": "uuid-1",
				"country":   "DE",
				"language":  "de",
			},
		})
	}))
	defer server.Close()

	client := loggedInClient(t, server.URL)

	info, err := client.UserInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Email != "user@example.com" || info.UserUUID != "uuid-1" {
		t.Errorf("unexpected user info: %+v", info)
	}
}

func TestClient_ConcurrentLoginAndReads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth/authorize2") {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-refreshed",
				"api_site":     "api.eu.mydlink.com",
				"expires_in":   3600,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if err := client.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	// The poll loop re-logs-in while session reconnect timers read the
	// token from their own goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = client.AccessToken()
				_ = client.IsTokenValid()
				_ = client.Email()
				_, _ = client.Devices(context.Background())
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := client.Login(context.Background(), "user@example.com", "secret"); err != nil {
					t.Errorf("login failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if client.AccessToken() != "tok-refreshed" {
		t.Errorf("expected refreshed token, got %q", client.AccessToken())
	}
}

func TestClose_DropsToken(t *testing.T) {
	client := NewClient()
	client.accessToken = "tok"
	client.tokenExpires = time.Now().Add(time.Hour)

	client.Close()

	if client.IsTokenValid() {
		t.Error("expected token invalid after close")
	}
}
