package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/boxsync/internal/device"
)

// Measurement names.
const (
	measurementMessages   = "bridge_messages"
	measurementState      = "device_state"
	measurementPlaying    = "device_playing"
	measurementCommands   = "device_commands"
	measurementConnection = "broker_connection"
	measurementRegistry   = "registry"
)

// RecordMessage counts one inbound broker message by kind.
func (c *Client) RecordMessage(kind string) {
	c.WritePoint(measurementMessages,
		map[string]string{"kind": kind},
		map[string]interface{}{"count": 1})
}

// RecordStateChange records a connectivity transition of a set-top box.
func (c *Client) RecordStateChange(deviceID string, from, to device.ConnectivityState) {
	c.WritePoint(measurementState,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{
			"from":    string(from),
			"to":      string(to),
			"running": to == device.StateOnlineRunning,
		})
}

// RecordPlaying records what a set-top box is showing.
//
// The source type is a tag; channel and title are fields to keep series
// cardinality bounded.
func (c *Client) RecordPlaying(deviceID string, info device.PlayingInfo) {
	c.WritePoint(measurementPlaying,
		map[string]string{
			"device_id":   deviceID,
			"source_type": string(info.SourceType),
		},
		map[string]interface{}{
			"channel_id": info.ChannelID,
			"title":      info.Title,
			"paused":     info.Paused,
		})
}

// RecordCommand records a dispatched remote-control command.
func (c *Client) RecordCommand(deviceID, command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.WritePoint(measurementCommands,
		map[string]string{
			"device_id": deviceID,
			"command":   command,
			"result":    result,
		},
		map[string]interface{}{"count": 1})
}

// RecordConnection records a broker connection state change.
func (c *Client) RecordConnection(state string) {
	c.WritePoint(measurementConnection,
		map[string]string{"state": state},
		map[string]interface{}{"count": 1})
}

// WriteRegistryStats records a snapshot of the device registry.
func (c *Client) WriteRegistryStats(stats device.Stats) {
	fields := map[string]interface{}{
		"total":     stats.TotalDevices,
		"available": stats.Available,
	}
	for state, n := range stats.ByState {
		fields["state_"+string(state)] = n
	}
	c.WritePoint(measurementRegistry, nil, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, c.now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
