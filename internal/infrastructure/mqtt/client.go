package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/boxsync/internal/infrastructure/config"
)

// eventBufferSize is the capacity of the event channel.
const eventBufferSize = 256

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventMessage is an inbound message on a subscribed topic.
	EventMessage EventKind = iota

	// EventConnectionLost reports that the broker connection dropped.
	// No further messages arrive until Connect succeeds again.
	EventConnectionLost
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event is a single item delivered on the channel returned by Events.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client wraps paho.mqtt.golang as a single-consumer event source.
//
// Unlike a callback-per-topic client, every inbound message and every
// connection loss is delivered in arrival order on one channel, so a single
// receive loop can process them serially.
//
// A Client can be connected, disconnected and connected again; the event
// channel lives for the lifetime of the Client.
//
// While the channel is full, paho's router goroutine blocks and no
// acknowledgements are processed. The goroutine draining Events must not call
// Subscribe, Unsubscribe, or Publish at QoS 1 or 2; such a call stalls until
// the operation timeout.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg      config.MQTTConfig
	clientID string

	// newClient builds the paho client; replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	events chan Event

	mu     sync.RWMutex
	client pahomqtt.Client
	// stop is closed when the current connection is torn down so blocked
	// deliveries from that connection are abandoned.
	stop chan struct{}

	// subscriptions tracks active topic filters for clean unsubscribe.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	logger Logger
}

// New creates a disconnected Client.
//
// Parameters:
//   - cfg: MQTT configuration (broker URL, QoS, connect timeout)
//   - clientID: Client identifier presented to the broker
//
// Returns:
//   - *Client: Client ready for Connect
func New(cfg config.MQTTConfig, clientID string) *Client {
	return &Client{
		cfg:           cfg,
		clientID:      clientID,
		newClient:     pahomqtt.NewClient,
		events:        make(chan Event, eventBufferSize),
		subscriptions: make(map[string]struct{}),
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger used for delivery diagnostics.
// It must be called before Connect.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// ClientID returns the identifier this client presents to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Events returns the channel carrying inbound messages and connection loss.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect establishes a connection to the broker with the given credentials.
//
// Any existing connection is closed first. The client never reconnects on
// its own.
//
// Parameters:
//   - ctx: Context for cancellation while waiting for CONNACK
//   - username: Broker username (the household ID)
//   - password: Broker password (the session token)
//
// Returns:
//   - error: ErrNotAuthorized if the broker refused the credentials,
//     ErrConnectionFailed for any other failure
func (c *Client) Connect(ctx context.Context, username, password string) error {
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}

	c.Disconnect()

	stop := make(chan struct{})
	opts := buildClientOptions(c.cfg, c.clientID, username, password)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.deliver(stop, Event{Kind: EventConnectionLost, Err: err})
	})
	opts.SetDefaultPublishHandler(c.messageHandler(stop))

	client := c.newClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return classifyConnectError(token, err)
	}

	c.mu.Lock()
	c.client = client
	c.stop = stop
	c.mu.Unlock()

	return nil
}

// messageHandler returns the paho handler that forwards messages for one connection.
func (c *Client) messageHandler(stop chan struct{}) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.deliver(stop, Event{
			Kind:    EventMessage,
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
		})
	}
}

// deliver pushes ev onto the event channel unless the connection that
// produced it has been torn down.
func (c *Client) deliver(stop chan struct{}, ev Event) {
	select {
	case c.events <- ev:
	case <-stop:
		c.logger.Debug("dropping event from closed connection", "kind", ev.Kind.String(), "topic", ev.Topic)
	}
}

// current returns the live paho client, or nil.
func (c *Client) current() pahomqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	client := c.current()
	return client != nil && client.IsConnected()
}

// Disconnect unsubscribes every tracked topic and closes the connection.
//
// It is safe to call when no connection exists and safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	client, stop := c.client, c.stop
	c.client, c.stop = nil, nil
	c.mu.Unlock()

	if client == nil {
		return
	}
	close(stop)

	topics := c.trackedTopics()
	c.subMu.Lock()
	c.subscriptions = make(map[string]struct{})
	c.subMu.Unlock()

	if client.IsConnected() && len(topics) > 0 {
		token := client.Unsubscribe(topics...)
		if !token.WaitTimeout(defaultOperationTimeout) {
			c.logger.Warn("unsubscribe on disconnect timed out", "topics", len(topics))
		} else if err := token.Error(); err != nil {
			c.logger.Warn("unsubscribe on disconnect failed", "error", err)
		}
	}

	client.Disconnect(defaultDisconnectQuiesce)
}

// Close disconnects the client. It is equivalent to Disconnect and exists
// so Client satisfies io.Closer for shutdown chains.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}
