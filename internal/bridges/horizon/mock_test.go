package horizon

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/boxsync/internal/catalog"
	"github.com/nerrad567/boxsync/internal/device"
	"github.com/nerrad567/boxsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/boxsync/internal/provider"
	"github.com/nerrad567/boxsync/internal/session"
)

const (
	testHousehold = "Household_1234"
	testClientID  = "abcdefghijklmnopqrstuvwxyz0123"
	testBox       = "3C36E4-EOSSTB-003656579806"
	testBox2      = "3C36E4-EOSSTB-003656579807"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	connected     bool
	connectErrs   []error
	connectCalls  []mockConnect
	published     []mockPublish
	subscriptions []string
	unsubscribed  []string
	publishErr    error
	subscribeHold chan struct{} // Subscribe blocks until closed, when set
	events        chan mqtt.Event
}

type mockConnect struct {
	Username string
	Password string
}

type mockPublish struct {
	Topic   string
	Payload []byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{events: make(chan mqtt.Event, 16)}
}

func (m *MockMQTTClient) ClientID() string { return testClientID }

// Connect pops the next queued error; an empty queue means success.
func (m *MockMQTTClient) Connect(_ context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls = append(m.connectCalls, mockConnect{Username: username, Password: password})

	var err error
	if len(m.connectErrs) > 0 {
		err = m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
	}
	m.connected = err == nil
	return err
}

func (m *MockMQTTClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Events() <-chan mqtt.Event { return m.events }

func (m *MockMQTTClient) Subscribe(topic string) error {
	m.mu.Lock()
	hold := m.subscribeHold
	m.mu.Unlock()
	if hold != nil {
		<-hold
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	m.subscriptions = append(m.subscriptions, topic)
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload})
	return nil
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscriptions...)
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockMQTTClient) GetConnectCalls() []mockConnect {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockConnect(nil), m.connectCalls...)
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// HoldSubscribes makes Subscribe block until the returned func is called.
func (m *MockMQTTClient) HoldSubscribes() (release func()) {
	hold := make(chan struct{})
	m.mu.Lock()
	m.subscribeHold = hold
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.subscribeHold = nil
			m.mu.Unlock()
			close(hold)
		})
	}
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// SimulateMessage queues an inbound message for the receive loop.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.events <- mqtt.Event{Kind: mqtt.EventMessage, Topic: topic, Payload: payload}
}

// SimulateConnectionLost queues a connection loss for the receive loop.
func (m *MockMQTTClient) SimulateConnectionLost(err error) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.events <- mqtt.Event{Kind: mqtt.EventConnectionLost, Err: err}
}

// publishedTypes returns the "type" field of every published payload.
func (m *MockMQTTClient) publishedTypes() []string {
	var types []string
	for _, p := range m.GetPublished() {
		var v struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(p.Payload, &v)
		types = append(types, v.Type)
	}
	return types
}

// stubSessions implements SessionSource for testing.
type stubSessions struct {
	mu        sync.Mutex
	current   session.Credentials
	renewed   session.Credentials
	renewErr  error
	reauthCnt int
}

func (s *stubSessions) Current() session.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stubSessions) Reauthenticate(context.Context) (session.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reauthCnt++
	if s.renewErr != nil {
		return session.Credentials{}, s.renewErr
	}
	s.current = s.renewed
	return s.renewed, nil
}

func (s *stubSessions) reauthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reauthCnt
}

func testCredentials(token string) session.Credentials {
	return session.Credentials{
		Session: provider.Session{HouseholdID: testHousehold, AccessToken: "oesp-" + token},
		Token:   token,
	}
}

// stubLookup implements MetadataLookup for testing.
type stubLookup struct {
	titles   map[string]string
	images   map[string]string
	programs map[string]string // key: channelID + "/" + eventID
	err      error
	block    bool
	panics   bool
}

func (l *stubLookup) wait(ctx context.Context) error {
	if l.panics {
		panic("lookup exploded")
	}
	if l.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return l.err
}

func (l *stubLookup) RecordingTitle(ctx context.Context, id string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.titles[id], nil
}

func (l *stubLookup) RecordingImage(ctx context.Context, id string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.images[id], nil
}

func (l *stubLookup) ProgramTitle(ctx context.Context, channelID, eventID string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.programs[channelID+"/"+eventID], nil
}

// recordingMetrics implements Metrics for testing.
type recordingMetrics struct {
	mu          sync.Mutex
	messages    map[string]int
	transitions []string
	commands    []string
	connections []string
	playing     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{messages: make(map[string]int)}
}

func (r *recordingMetrics) RecordMessage(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[kind]++
}

func (r *recordingMetrics) RecordStateChange(id string, from, to device.ConnectivityState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+">"+string(to))
}

func (r *recordingMetrics) RecordPlaying(string, device.PlayingInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing++
}

func (r *recordingMetrics) RecordCommand(_, command string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		command += ":error"
	}
	r.commands = append(r.commands, command)
}

func (r *recordingMetrics) RecordConnection(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, state)
}

var testChannels = []catalog.ChannelInfo{
	{ServiceID: "NL_000001_019401", Title: "NPO 1 HD", StreamImageURL: "https://img/npo1-stream.jpg", LogoImageURL: "https://img/npo1-logo.png", ChannelNumber: "1"},
	{ServiceID: "NL_000002_019402", Title: "NPO 2 HD", StreamImageURL: "https://img/npo2-stream.jpg", ChannelNumber: "2"},
	{ServiceID: "NL_000004_019504", Title: "RTL 4 HD", StreamImageURL: "https://img/rtl4-stream.jpg", ChannelNumber: "4"},
}

type testEnv struct {
	bridge   *Bridge
	mqtt     *MockMQTTClient
	sessions *stubSessions
	registry *device.Registry
	lookup   *stubLookup
	metrics  *recordingMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cat := catalog.New(nil)
	cat.Replace(testChannels)

	env := &testEnv{
		mqtt:     NewMockMQTTClient(),
		sessions: &stubSessions{current: testCredentials("jwt-1"), renewed: testCredentials("jwt-2")},
		registry: device.NewRegistry(),
		lookup: &stubLookup{
			titles:   map[string]string{"crid:~~2F~~2Fevent1": "Journaal", "rec-42": "Het Klokhuis"},
			images:   map[string]string{"crid:~~2F~~2Fevent1": "https://img/journaal.jpg", "rec-42": "https://img/klokhuis.jpg"},
			programs: map[string]string{"NL_000001_019401/crid:~~2F~~2Fevent1": "NOS Journaal"},
		},
		metrics: newRecordingMetrics(),
	}

	b, err := NewBridge(BridgeOptions{
		MQTT:          env.mqtt,
		Sessions:      env.sessions,
		Registry:      env.registry,
		Catalog:       cat,
		Lookup:        env.lookup,
		Metrics:       env.metrics,
		LookupTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	env.bridge = b
	t.Cleanup(b.Stop)
	return env
}

// newConnectedEnv returns an environment whose bridge is connected with
// an empty publish log.
func newConnectedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	require.NoError(t, env.bridge.Connect(context.Background()))
	env.mqtt.ClearPublished()
	return env
}

// runningBox registers testBox and marks it running without going through
// the broker.
func (e *testEnv) runningBox(t *testing.T, playing device.PlayingInfo) {
	t.Helper()
	_, err := e.registry.Register(testBox, "Living room")
	require.NoError(t, err)
	_, err = e.registry.ApplyPresence(testBox, device.StateOnlineRunning)
	require.NoError(t, err)
	if !playing.IsZero() {
		_, err = e.registry.ApplyPlaying(testBox, playing)
		require.NoError(t, err)
	}
}

func presenceMsg(source, state string) []byte {
	return []byte(`{"source":"` + source + `","state":"` + state + `","deviceType":"STB","mac":"","ipAddress":""}`)
}

func statusMsg(source, status string) []byte {
	return []byte(`{"source":"` + source + `","id":"x1","type":"CPE.uiStatus","status":` + status + `}`)
}

func mustDevice(t *testing.T, r *device.Registry, id string) device.Device {
	t.Helper()
	d, ok := r.Get(id)
	require.True(t, ok, "device %s not registered", id)
	return d
}
