package device

import "time"

// ConnectivityState is a set-top box's presence as reported on the broker.
type ConnectivityState string

// Connectivity states.
const (
	StateUnknown       ConnectivityState = "UNKNOWN"
	StateOnlineRunning ConnectivityState = "ONLINE_RUNNING"
	StateOnlineStandby ConnectivityState = "ONLINE_STANDBY"
)

// ParseConnectivityState maps a wire state onto a ConnectivityState.
// Anything unrecognised is StateUnknown.
func ParseConnectivityState(s string) ConnectivityState {
	switch ConnectivityState(s) {
	case StateOnlineRunning:
		return StateOnlineRunning
	case StateOnlineStandby:
		return StateOnlineStandby
	default:
		return StateUnknown
	}
}

// SourceType is what the box is currently showing.
type SourceType string

// Source types. The empty value means nothing is known to be playing.
const (
	SourceNone            SourceType = ""
	SourceChannel         SourceType = "CHANNEL"
	SourceReplay          SourceType = "REPLAY"
	SourceRecording       SourceType = "RECORDING"
	SourceTimeshiftBuffer SourceType = "TIMESHIFT_BUFFER"
	SourceApp             SourceType = "APP"
	SourceUnknown         SourceType = "UNKNOWN"
)

// PlayingInfo describes current playback. Fields that are not known are empty.
type PlayingInfo struct {
	SourceType   SourceType `json:"source_type,omitempty"`
	ChannelID    string     `json:"channel_id,omitempty"`
	ChannelTitle string     `json:"channel_title,omitempty"`
	Title        string     `json:"title,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Paused       bool       `json:"paused"`
}

// IsZero reports whether nothing is known about playback.
func (p PlayingInfo) IsZero() bool {
	return p == PlayingInfo{}
}

// Device is one set-top box. Values returned by the Registry are snapshots;
// changing them does not affect the registry.
type Device struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	State     ConnectivityState `json:"state"`
	Playing   PlayingInfo       `json:"playing"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsAvailable reports whether the box is online, running or in standby.
func (d Device) IsAvailable() bool {
	return d.State == StateOnlineRunning || d.State == StateOnlineStandby
}

// IsRunning reports whether the box is switched on.
func (d Device) IsRunning() bool {
	return d.State == StateOnlineRunning
}
