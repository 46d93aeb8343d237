package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestMigrateAndBootstrap(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	version, err := database.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	needs, err := database.NeedsBootstrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Error("fresh database should need bootstrap")
	}

	if err := database.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	cfg, err := database.ActiveConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profile.Name != "default" {
		t.Errorf("expected default profile, got %q", cfg.Profile.Name)
	}
	if cfg.APIAddress() != "0.0.0.0:8080" {
		t.Errorf("unexpected API address: %s", cfg.APIAddress())
	}

	// Bootstrap is idempotent.
	if err := database.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestAccountStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	profile := &Profile{Name: "home", IsActive: true}
	if err := database.Profiles().Create(ctx, profile); err != nil {
		t.Fatal(err)
	}

	account := &Account{
		ProfileID: profile.ID,
		Email:     "user@example.com",
		Password:  "secret",
	}
	if err := database.Accounts().Create(ctx, account); err != nil {
		t.Fatal(err)
	}
	if account.PollingInterval != 60 {
		t.Errorf("expected default polling interval 60, got %d", account.PollingInterval)
	}

	got, err := database.Accounts().Get(ctx, profile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "user@example.com" || got.Password != "secret" {
		t.Errorf("unexpected account: %+v", got)
	}

	got.PollingInterval = 120
	if err := database.Accounts().Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, err = database.Accounts().Get(ctx, profile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PollingInterval != 120 {
		t.Errorf("expected updated interval, got %d", got.PollingInterval)
	}

	if err := database.Accounts().Delete(ctx, profile.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := database.Accounts().Get(ctx, profile.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAPIServerStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	profile := &Profile{Name: "home", IsActive: true}
	if err := database.Profiles().Create(ctx, profile); err != nil {
		t.Fatal(err)
	}

	// Host and port fall back to the bootstrap defaults when unset.
	server := &APIServer{ProfileID: profile.ID}
	if err := database.APIServers().Create(ctx, server); err != nil {
		t.Fatal(err)
	}
	if server.Address() != "0.0.0.0:8080" {
		t.Errorf("expected default listen address, got %s", server.Address())
	}

	got, err := database.APIServers().Get(ctx, profile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address() != "0.0.0.0:8080" {
		t.Errorf("unexpected address: %s", got.Address())
	}

	got.Host = "127.0.0.1"
	got.Port = 9090
	if err := database.APIServers().Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, err = database.APIServers().Get(ctx, profile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address() != "127.0.0.1:9090" {
		t.Errorf("expected updated address, got %s", got.Address())
	}

	if err := database.APIServers().Delete(ctx, profile.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := database.APIServers().Get(ctx, profile.ID); !errors.Is(err, ErrAPIServerNotFound) {
		t.Errorf("expected ErrAPIServerNotFound, got %v", err)
	}
}

func TestDeviceNameStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	profile := &Profile{Name: "home", IsActive: true}
	if err := database.Profiles().Create(ctx, profile); err != nil {
		t.Fatal(err)
	}

	names := database.DeviceNames(profile.ID)

	if _, ok := names.DeviceName("plug-1"); ok {
		t.Error("expected no name before assignment")
	}

	if err := names.SetDeviceName("plug-1", "Desk lamp"); err != nil {
		t.Fatal(err)
	}
	name, ok := names.DeviceName("plug-1")
	if !ok || name != "Desk lamp" {
		t.Errorf("expected Desk lamp, got %q (%v)", name, ok)
	}

	// Reassignment replaces the name.
	if err := names.SetDeviceName("plug-1", "Heater"); err != nil {
		t.Fatal(err)
	}
	name, _ = names.DeviceName("plug-1")
	if name != "Heater" {
		t.Errorf("expected Heater, got %q", name)
	}

	// Names are per profile.
	other := &Profile{Name: "office"}
	if err := database.Profiles().Create(ctx, other); err != nil {
		t.Fatal(err)
	}
	if _, ok := database.DeviceNames(other.ID).DeviceName("plug-1"); ok {
		t.Error("name must not leak across profiles")
	}

	if err := names.DeleteDeviceName("plug-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := names.DeviceName("plug-1"); ok {
		t.Error("expected name gone after delete")
	}
}
