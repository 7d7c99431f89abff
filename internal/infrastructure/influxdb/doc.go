// Package influxdb records boxsync engine telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes, and health monitoring. *Client implements the
// horizon bridge's Metrics interface.
//
// # Measurements
//
//   - bridge_messages: inbound messages by kind (presence, status, malformed, ignored)
//   - device_state: connectivity transitions per box
//   - device_playing: reconciled playback per box
//   - device_commands: dispatched commands and their outcome
//   - broker_connection: connection state changes
//   - registry: periodic registry statistics
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes never block; errors arrive through the SetOnError callback.
package influxdb
