package horizon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/boxsync/internal/catalog"
	"github.com/nerrad567/boxsync/internal/device"
	"github.com/nerrad567/boxsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/boxsync/internal/session"
)

// Bridge operation constants.
const (
	// defaultLookupTimeout bounds a single title or image lookup.
	defaultLookupTimeout = 5 * time.Second

	// defaultFriendlyName is how the bridge introduces itself in pushToTV commands.
	defaultFriendlyName = "boxsync"
)

// ConnState is the state of the broker connection as seen by the bridge.
type ConnState int32

const (
	// StateDisconnected means there is no broker connection.
	StateDisconnected ConnState = iota

	// StateConnecting means a connect attempt is in progress.
	StateConnecting

	// StateConnected means the bridge is announced and subscribed.
	StateConnected

	// StateUnauthorized means the broker refused the credentials and the
	// bridge is re-authenticating.
	StateUnauthorized
)

// String returns the state name for logs and the API.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// MQTTClient is the broker transport used by the bridge.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	ClientID() string
	Connect(ctx context.Context, username, password string) error
	Disconnect()
	IsConnected() bool
	Events() <-chan mqtt.Event
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
}

// SessionSource provides broker credentials. *session.Manager satisfies it.
type SessionSource interface {
	Current() session.Credentials
	Reauthenticate(ctx context.Context) (session.Credentials, error)
}

// Catalog resolves channels. *catalog.Cache satisfies it.
type Catalog interface {
	Lookup(serviceID string) (catalog.ChannelInfo, bool)
	FindByTitle(title string) (catalog.ChannelInfo, bool)
}

// MetadataLookup resolves programme titles and images.
// *provider.Client satisfies it.
type MetadataLookup interface {
	RecordingTitle(ctx context.Context, id string) (string, error)
	RecordingImage(ctx context.Context, id string) (string, error)
	ProgramTitle(ctx context.Context, channelID, eventID string) (string, error)
}

// Metrics receives bridge telemetry. Implementations must not block.
type Metrics interface {
	RecordMessage(kind string)
	RecordStateChange(deviceID string, from, to device.ConnectivityState)
	RecordPlaying(deviceID string, info device.PlayingInfo)
	RecordCommand(deviceID, command string, err error)
	RecordConnection(state string)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions contains the dependencies for creating a Bridge.
type BridgeOptions struct {
	// MQTT is the broker transport (required).
	MQTT MQTTClient

	// Sessions provides broker credentials (required).
	Sessions SessionSource

	// Registry receives reconciled device state (required).
	Registry *device.Registry

	// Catalog resolves channel IDs and titles (required).
	Catalog Catalog

	// Lookup resolves programme titles and images. If nil, lookups
	// resolve to empty strings.
	Lookup MetadataLookup

	// Metrics is optional telemetry.
	Metrics Metrics

	// Logger is optional structured logger.
	Logger Logger

	// LookupTimeout bounds each metadata lookup. Zero means 5 seconds.
	LookupTimeout time.Duration

	// FriendlyName is sent with pushToTV commands. Empty means "boxsync".
	FriendlyName string
}

// Bridge synchronises set-top box state over the operator's MQTT broker.
// It handles:
//   - Connecting with session credentials and re-authenticating once on refusal
//   - Reconciling inbound presence and status messages into the registry
//   - Dispatching remote-control commands
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	sessions SessionSource
	registry *device.Registry
	catalog  Catalog
	lookup   MetadataLookup
	metrics  Metrics

	clientID      string
	friendlyName  string
	lookupTimeout time.Duration

	// household is the household of the current connection; empty when
	// the bridge has never connected.
	household   string
	householdMu sync.RWMutex

	state     atomic.Int32
	connectMu sync.Mutex

	onDisconnect   func(error)
	onDisconnectMu sync.RWMutex

	// Per-device command serialisation
	cmdLocks   map[string]*sync.Mutex
	cmdLocksMu sync.Mutex

	// Shutdown coordination
	started   atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
	subWG     sync.WaitGroup // background device subscriptions
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new horizon bridge.
//
// Parameters:
//   - opts: Bridge dependencies
//
// Returns:
//   - *Bridge: Configured bridge (call Start, then Connect)
//   - error: If a required dependency is missing
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session source is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("channel catalog is required")
	}
	if opts.MQTT.ClientID() == "" {
		return nil, fmt.Errorf("mqtt client id is required")
	}

	lookupTimeout := opts.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	friendlyName := opts.FriendlyName
	if friendlyName == "" {
		friendlyName = defaultFriendlyName
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:          opts.MQTT,
		sessions:      opts.Sessions,
		registry:      opts.Registry,
		catalog:       opts.Catalog,
		lookup:        opts.Lookup,
		metrics:       opts.Metrics,
		clientID:      opts.MQTT.ClientID(),
		friendlyName:  friendlyName,
		lookupTimeout: lookupTimeout,
		cmdLocks:      make(map[string]*sync.Mutex),
		done:          make(chan struct{}),
		ctx:           ctx,
		ctxCancel:     cancel,
		logger:        opts.Logger,
	}, nil
}

// ClientID returns the bridge's MQTT client ID.
func (b *Bridge) ClientID() string {
	return b.clientID
}

// ConnState returns the current connection state.
func (b *Bridge) ConnState() ConnState {
	return ConnState(b.state.Load())
}

// IsConnected reports whether the bridge is connected and subscribed.
func (b *Bridge) IsConnected() bool {
	return b.ConnState() == StateConnected && b.mqtt.IsConnected()
}

// SetOnDisconnect registers a callback invoked from the receive loop when
// the broker connection is lost. The callback must not block.
func (b *Bridge) SetOnDisconnect(fn func(error)) {
	b.onDisconnectMu.Lock()
	b.onDisconnect = fn
	b.onDisconnectMu.Unlock()
}

// Start launches the receive loop. Connect may be called before or after.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call
func (b *Bridge) Start() error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	b.wg.Add(1)
	go b.receiveLoop()
	b.logInfo("horizon bridge started", "client_id", b.clientID)
	return nil
}

// Stop halts the receive loop and disconnects from the broker.
// Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.subWG.Wait()
		b.Disconnect()
		b.logInfo("horizon bridge stopped")
	})
}

// Connect establishes the broker connection with the current session.
//
// On success the bridge announces itself, subscribes to the household and
// device topics, and requests state from every registered device.
//
// If the broker refuses the credentials, the session is re-authenticated
// once and exactly one more connect attempt is made. Connect never retries
// beyond that; reconnecting after other failures is the caller's job.
//
// Parameters:
//   - ctx: Bounds the connect attempts and re-authentication
//
// Returns:
//   - error: ErrNoSession, a session error from re-authentication, or
//     ErrConnectionFailed wrapping the transport error
func (b *Bridge) Connect(ctx context.Context) error {
	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	creds := b.sessions.Current()
	if !creds.Valid() {
		return ErrNoSession
	}

	b.setState(StateConnecting)
	err := b.mqtt.Connect(ctx, creds.Session.HouseholdID, creds.Token)

	if errors.Is(err, mqtt.ErrNotAuthorized) {
		b.setState(StateUnauthorized)
		b.logInfo("broker refused credentials, re-authenticating")

		creds, err = b.sessions.Reauthenticate(ctx)
		if err != nil {
			b.setState(StateDisconnected)
			return fmt.Errorf("re-authenticating: %w", err)
		}

		b.setState(StateConnecting)
		err = b.mqtt.Connect(ctx, creds.Session.HouseholdID, creds.Token)
	}

	if err != nil {
		b.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	b.householdMu.Lock()
	b.household = creds.Session.HouseholdID
	b.householdMu.Unlock()

	b.setState(StateConnected)
	b.logInfo("connected to broker", "household_id", creds.Session.HouseholdID)
	b.onConnected(creds.Session.HouseholdID)
	return nil
}

// onConnected announces the bridge and subscribes. Failures are logged;
// the connection stays up.
func (b *Bridge) onConnected(household string) {
	presence, err := encodePresence(b.clientID)
	if err == nil {
		err = b.mqtt.Publish(deviceStatusTopic(household, b.clientID), presence)
	}
	if err != nil {
		b.logError("publishing presence failed", err)
	}

	for _, topic := range householdSubscriptions(household, b.clientID) {
		b.subscribe(topic)
	}

	ids := b.registry.IDs()
	for _, id := range ids {
		b.subscribeDevice(household, id)
	}
	for _, id := range ids {
		if err := b.requestState(id); err != nil {
			b.logError("requesting device state failed", err)
		}
	}
}

// Disconnect closes the broker connection. Subscriptions are removed
// cleanly. Safe to call without a connection.
func (b *Bridge) Disconnect() {
	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	b.mqtt.Disconnect()
	if b.ConnState() != StateDisconnected {
		b.setState(StateDisconnected)
		b.logInfo("disconnected from broker")
	}
}

// RegisterDevice adds a box to the registry. If the bridge is connected its
// topics are subscribed and its state is requested.
//
// Returns:
//   - bool: true if the device was newly added
//   - error: device.ErrInvalidDevice for an empty ID
func (b *Bridge) RegisterDevice(id, name string) (bool, error) {
	created, err := b.registry.Register(id, name)
	if err != nil {
		return false, err
	}

	if household := b.currentHousehold(); household != "" && b.ConnState() == StateConnected {
		b.subscribeDevice(household, id)
		if err := b.requestState(id); err != nil {
			b.logError("requesting device state failed", err)
		}
	}
	return created, nil
}

// RemoveDevice unsubscribes a box's topics and drops it from the registry.
//
// Returns:
//   - error: device.ErrDeviceNotFound if the device is not registered
func (b *Bridge) RemoveDevice(id string) error {
	if household := b.currentHousehold(); household != "" {
		for _, topic := range deviceSubscriptions(household, id) {
			if err := b.mqtt.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				b.logError("unsubscribe failed", err)
			}
		}
	}

	b.cmdLocksMu.Lock()
	delete(b.cmdLocks, id)
	b.cmdLocksMu.Unlock()

	return b.registry.Remove(id)
}

// receiveLoop drains transport events until Stop.
func (b *Bridge) receiveLoop() {
	defer b.wg.Done()

	events := b.mqtt.Events()
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handleEvent(ev)
		}
	}
}

// handleEvent processes one transport event.
func (b *Bridge) handleEvent(ev mqtt.Event) {
	switch ev.Kind {
	case mqtt.EventMessage:
		b.handleMessage(ev.Topic, ev.Payload)

	case mqtt.EventConnectionLost:
		b.setState(StateDisconnected)
		b.logError("broker connection lost", ev.Err)

		b.onDisconnectMu.RLock()
		fn := b.onDisconnect
		b.onDisconnectMu.RUnlock()
		if fn != nil {
			fn(ev.Err)
		}
	}
}

// subscribe subscribes to a topic, logging failures.
func (b *Bridge) subscribe(topic string) {
	if err := b.mqtt.Subscribe(topic); err != nil {
		b.logError("subscribe failed", fmt.Errorf("%s: %w", topic, err))
		return
	}
	b.logDebug("subscribed", "topic", topic)
}

// subscribeDevice subscribes to all topics of one box.
func (b *Bridge) subscribeDevice(household, id string) {
	for _, topic := range deviceSubscriptions(household, id) {
		b.subscribe(topic)
	}
}

// subscribeDeviceAsync subscribes to a box's topics off the receive loop.
//
// A subscribe waits for its SUBACK, which paho's router cannot deliver while
// the receive loop is blocked. Messages for the box already arrive through
// the household wildcard subscription in the meantime.
func (b *Bridge) subscribeDeviceAsync(household, id string) {
	b.subWG.Add(1)
	go func() {
		defer b.subWG.Done()
		b.subscribeDevice(household, id)
	}()
}

// requestState asks a box to publish its UI status.
func (b *Bridge) requestState(id string) error {
	payload, err := encodeStateRequest(b.clientID)
	if err != nil {
		return err
	}
	b.logDebug("requesting device state", "device_id", id)
	return b.publishToDevice(id, payload)
}

// publishToDevice publishes a command on a box's topic.
func (b *Bridge) publishToDevice(id string, payload []byte) error {
	household := b.currentHousehold()
	if household == "" {
		return mqtt.ErrNotConnected
	}
	return b.mqtt.Publish(deviceTopic(household, id), payload)
}

// currentHousehold returns the household of the latest connection.
func (b *Bridge) currentHousehold() string {
	b.householdMu.RLock()
	defer b.householdMu.RUnlock()
	return b.household
}

// setState records a connection state change.
func (b *Bridge) setState(s ConnState) {
	if ConnState(b.state.Swap(int32(s))) == s {
		return
	}
	if b.metrics != nil {
		b.metrics.RecordConnection(s.String())
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
