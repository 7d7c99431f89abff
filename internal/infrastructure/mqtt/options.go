package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/boxsync/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config leaves connect_timeout unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish, subscribe and unsubscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 500 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Return codes from the CONNACK packet that mean the credentials were refused.
const (
	connackBadCredentials = 4
	connackNotAuthorized  = 5
)

// buildClientOptions creates paho MQTT options for one connection attempt.
//
// This configures:
//   - Broker URL (tcp://, ssl://, ws:// or wss://)
//   - Client ID and the session credentials
//   - TLS 1.2+ for ssl:// and wss:// brokers
//   - Clean session, no automatic reconnection
//
// Reconnection is owned by the caller, which has to re-authenticate first,
// so paho must never retry on its own with stale credentials.
func buildClientOptions(cfg config.MQTTConfig, clientID, username, password string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(cfg.Broker.URL)
	opts.SetClientID(clientID)

	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Handlers run in paho's router goroutine one at a time.
	opts.SetOrderMatters(true)

	opts.SetConnectTimeout(connectTimeout(cfg))
	opts.SetKeepAlive(defaultKeepAlive)

	if isSecureScheme(cfg.Broker.URL) {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// connectTimeout returns the configured connect timeout or the default.
func connectTimeout(cfg config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return time.Duration(cfg.ConnectTimeout) * time.Second
}

// isSecureScheme reports whether the broker URL requires TLS.
func isSecureScheme(brokerURL string) bool {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}

// classifyConnectError maps a failed connect token onto the package errors.
//
// A refusal with return code 4 or 5 becomes ErrNotAuthorized; everything
// else (network error, timeout, other refusal) becomes ErrConnectionFailed.
func classifyConnectError(token pahomqtt.Token, err error) error {
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		switch ct.ReturnCode() {
		case connackBadCredentials, connackNotAuthorized:
			return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
		}
	}
	if errors.Is(err, packets.ErrorRefusedNotAuthorised) || errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
		return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	}
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}
