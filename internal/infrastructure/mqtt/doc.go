// Package mqtt provides the broker transport for boxsync.
//
// This package manages:
//   - Connection to the operator broker (usually wss://) with session credentials
//   - Classification of refused connections (ErrNotAuthorized vs ErrConnectionFailed)
//   - Topic subscriptions with wildcard support and tracking for clean teardown
//   - Message publishing with validation
//
// # Event Delivery
//
// Inbound messages and connection loss are not delivered through per-topic
// callbacks. They are queued, in arrival order, on the channel returned by
// Client.Events so one goroutine can consume them serially:
//
//	for ev := range client.Events() {
//	    switch ev.Kind {
//	    case mqtt.EventMessage:
//	        handle(ev.Topic, ev.Payload)
//	    case mqtt.EventConnectionLost:
//	        // reconnect with fresh credentials
//	    }
//	}
//
// # Reconnection
//
// Automatic reconnection is disabled. The broker password is a short-lived
// session token, so the owner of the Client re-authenticates and calls
// Connect again.
//
// # Security Considerations
//
//   - ssl:// and wss:// brokers are dialled with TLS 1.2 or newer
//   - Credentials are held only by paho for the lifetime of one connection
package mqtt
