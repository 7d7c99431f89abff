package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/boxsync/internal/catalog"
	"github.com/nerrad567/boxsync/internal/infrastructure/config"
	"github.com/nerrad567/boxsync/internal/infrastructure/logging"
	"github.com/nerrad567/boxsync/internal/provider"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("BOXSYNC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("BOXSYNC_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("BOXSYNC_CONFIG", "/etc/boxsync/config.yaml")
	if got := getConfigPath(); got != "/etc/boxsync/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/boxsync/config.yaml", got)
	}
}

func TestHealthCheck_NilComponents(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck() = %v, want nil", err)
	}
}

func TestExtraChannels(t *testing.T) {
	got := extraChannels([]config.ExtraChannelConfig{
		{ServiceID: "NL_000999_APP", Title: "Netflix", ChannelNumber: "999"},
	})
	want := catalog.ChannelInfo{ServiceID: "NL_000999_APP", Title: "Netflix", ChannelNumber: "999"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("extraChannels() = %+v, want [%+v]", got, want)
	}
	if got := extraChannels(nil); len(got) != 0 {
		t.Errorf("extraChannels(nil) = %+v, want empty", got)
	}
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		d, max, want time.Duration
	}{
		{0, time.Minute, time.Second},
		{time.Second, time.Minute, 2 * time.Second},
		{40 * time.Second, time.Minute, time.Minute},
		{time.Minute, time.Minute, time.Minute},
		{time.Minute, 0, 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := nextDelay(tt.d, tt.max); got != tt.want {
			t.Errorf("nextDelay(%v, %v) = %v, want %v", tt.d, tt.max, got, tt.want)
		}
	}
}

// fakeConnector fails the first n Connect calls, with err when set.
type fakeConnector struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	done     chan struct{}
}

func (f *fakeConnector) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return f.err
		}
		return errors.New("connection refused")
	}
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return nil
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSuperviseConnection_ReconnectsAfterLoss(t *testing.T) {
	conn := &fakeConnector{failures: 1, done: make(chan struct{})}
	lost := make(chan struct{}, 1)
	cfg := config.MQTTReconnectConfig{Enabled: true, InitialDelay: 0, MaxDelay: 1}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- superviseConnection(ctx, conn, lost, cfg, testLogger()) }()

	lost <- struct{}{}

	select {
	case <-conn.done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not reconnect")
	}
	if got := conn.callCount(); got != 2 {
		t.Errorf("Connect calls = %d, want 2", got)
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("superviseConnection() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}
}

func TestSuperviseConnection_StopsOnRejectedCredentials(t *testing.T) {
	conn := &fakeConnector{
		failures: 100,
		err:      fmt.Errorf("re-authenticating: acquiring session: %w", provider.ErrAuthentication),
	}
	lost := make(chan struct{}, 1)
	lost <- struct{}{}
	cfg := config.MQTTReconnectConfig{Enabled: true, InitialDelay: 0, MaxDelay: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := superviseConnection(ctx, conn, lost, cfg, testLogger())
	if !errors.Is(err, provider.ErrAuthentication) {
		t.Fatalf("superviseConnection() = %v, want ErrAuthentication", err)
	}
	if got := conn.callCount(); got != 1 {
		t.Errorf("Connect calls = %d, want 1", got)
	}
}

func TestIsFatalConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rejected credentials", fmt.Errorf("re-authenticating: %w", provider.ErrAuthentication), true},
		{"transport failure", fmt.Errorf("re-authenticating: %w", provider.ErrConnection), false},
		{"broker refusal", errors.New("connection failed: not authorized"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFatalConnectError(tt.err); got != tt.want {
				t.Errorf("isFatalConnectError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuperviseConnection_Disabled(t *testing.T) {
	conn := &fakeConnector{}
	lost := make(chan struct{}, 1)
	lost <- struct{}{}

	err := superviseConnection(context.Background(), conn, lost, config.MQTTReconnectConfig{Enabled: false}, testLogger())
	if err == nil {
		t.Fatal("superviseConnection() = nil, want error")
	}
	if conn.callCount() != 0 {
		t.Errorf("Connect calls = %d, want 0", conn.callCount())
	}
}

func TestSuperviseConnection_CancelWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := superviseConnection(ctx, &fakeConnector{}, make(chan struct{}), config.MQTTReconnectConfig{Enabled: true}, testLogger())
	if err != nil {
		t.Errorf("superviseConnection() = %v, want nil", err)
	}
}

type fakeLister struct {
	boxes []provider.SettopBox
	err   error
}

func (f fakeLister) FetchSettopBoxes(context.Context) ([]provider.SettopBox, error) {
	return f.boxes, f.err
}

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) FetchChannels(context.Context) ([]catalog.ChannelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []catalog.ChannelInfo{{ServiceID: "NL_000001_019401", Title: "NPO 1 HD"}}, nil
}

func TestDiscover(t *testing.T) {
	box := provider.SettopBox{DeviceID: "3C36E4-EOSSTB-003656579806", Name: "Living room"}

	t.Run("loads catalog and boxes", func(t *testing.T) {
		cache := catalog.New(fakeFetcher{})
		boxes, err := discover(context.Background(), cache, fakeLister{boxes: []provider.SettopBox{box}}, testLogger())
		if err != nil {
			t.Fatalf("discover() error = %v", err)
		}
		if len(boxes) != 1 || boxes[0] != box {
			t.Errorf("boxes = %+v", boxes)
		}
		if cache.Len() != 1 {
			t.Errorf("catalog len = %d, want 1", cache.Len())
		}
	})

	t.Run("catalog failure tolerated", func(t *testing.T) {
		cache := catalog.New(fakeFetcher{err: errors.New("503")})
		boxes, err := discover(context.Background(), cache, fakeLister{boxes: []provider.SettopBox{box}}, testLogger())
		if err != nil {
			t.Fatalf("discover() error = %v", err)
		}
		if len(boxes) != 1 {
			t.Errorf("boxes = %+v", boxes)
		}
	})

	t.Run("box listing failure", func(t *testing.T) {
		cache := catalog.New(fakeFetcher{})
		_, err := discover(context.Background(), cache, fakeLister{err: provider.ErrNotAuthenticated}, testLogger())
		if !errors.Is(err, provider.ErrNotAuthenticated) {
			t.Errorf("discover() error = %v, want ErrNotAuthenticated", err)
		}
	})
}
