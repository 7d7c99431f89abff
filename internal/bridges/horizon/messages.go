package horizon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/boxsync/internal/device"
)

// Wire values used by the boxes and companion clients.
const (
	deviceTypeSTB = "STB"
	deviceTypeHGO = "HGO"

	uiStatusMainUI = "mainUI"
	uiStatusApps   = "apps"

	sourceLinear       = "linear"
	sourceReplay       = "replay"
	sourceNDVR         = "nDVR"
	sourceReviewBuffer = "reviewbuffer"

	typeKeyEvent    = "CPE.KeyEvent"
	typePushToTV    = "CPE.pushToTV"
	typeGetUIStatus = "CPE.getUiStatus"

	eventTypeKeyDownUp = "keyDownUp"
)

// Remote control keys understood by the boxes (W3C key names).
const (
	KeyPower       = "Power"
	KeyEnter       = "Enter"
	KeyEscape      = "Escape"
	KeyHelp        = "Help"
	KeyInfo        = "Info"
	KeyGuide       = "Guide"
	KeyContextMenu = "ContextMenu"
	KeyChannelUp   = "ChannelUp"
	KeyChannelDown = "ChannelDown"
	KeyRecord      = "MediaRecord"
	KeyPlayPause   = "MediaPlayPause"
	KeyStop        = "MediaStop"
	KeyRewind      = "MediaRewind"
	KeyFastForward = "MediaFastForward"
)

// Title prefixes for non-linear playback.
const (
	replayTitlePrefix    = "ReplayTV: "
	recordingTitlePrefix = "Recording: "
	bufferTitlePrefix    = "Delayed: "
	unknownSourceTitle   = "Playing something..."
)

// envelope is the part of every inbound payload the bridge dispatches on.
// Source is raw because command echoes carry an object there.
type envelope struct {
	Source     json.RawMessage `json:"source"`
	DeviceType string          `json:"deviceType"`
	State      string          `json:"state"`
	Status     json.RawMessage `json:"status"`
}

// inboundMessage is a classified inbound payload.
type inboundMessage struct {
	// Source is the sender's device or client ID; empty when the envelope
	// source was absent or not a string.
	Source string

	// Presence is set for set-top box presence announcements.
	Presence bool
	State    device.ConnectivityState

	// Status is set when the payload carries a UI status report.
	Status *statusPayload
}

// statusPayload is the "status" object of a box status report.
type statusPayload struct {
	UIStatus    string       `json:"uiStatus"`
	PlayerState *playerState `json:"playerState"`
	AppsState   *appsState   `json:"appsState"`
}

type playerState struct {
	SourceType string        `json:"sourceType"`
	Speed      *float64      `json:"speed"`
	Source     *playerSource `json:"source"`
}

type playerSource struct {
	ChannelID   string `json:"channelId"`
	EventID     string `json:"eventId"`
	RecordingID string `json:"recordingId"`
}

type appsState struct {
	AppName  string `json:"appName"`
	LogoPath string `json:"logoPath"`
}

// decodeMessage classifies an inbound payload.
//
// A payload that is not a JSON object is ErrMalformedMessage. A "status"
// field that is an object without uiStatus (such as a key event echo) is
// not a status report and leaves Status nil.
func decodeMessage(payload []byte) (inboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return inboundMessage{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var msg inboundMessage
	if len(env.Source) > 0 && env.Source[0] == '"' {
		if err := json.Unmarshal(env.Source, &msg.Source); err != nil {
			return inboundMessage{}, fmt.Errorf("%w: source: %w", ErrMalformedMessage, err)
		}
	}

	if env.DeviceType == deviceTypeSTB {
		msg.Presence = true
		msg.State = device.ParseConnectivityState(env.State)
	}

	if len(env.Status) > 0 && bytes.HasPrefix(bytes.TrimSpace(env.Status), []byte("{")) {
		var st statusPayload
		if err := json.Unmarshal(env.Status, &st); err != nil {
			return inboundMessage{}, fmt.Errorf("%w: status: %w", ErrMalformedMessage, err)
		}
		if st.UIStatus != "" {
			msg.Status = &st
		}
	}

	return msg, nil
}

// presencePayload announces the bridge as an online companion client.
type presencePayload struct {
	Source     string `json:"source"`
	State      string `json:"state"`
	DeviceType string `json:"deviceType"`
}

func encodePresence(clientID string) ([]byte, error) {
	return json.Marshal(presencePayload{
		Source:     clientID,
		State:      string(device.StateOnlineRunning),
		DeviceType: deviceTypeHGO,
	})
}

type keyEventPayload struct {
	Type   string         `json:"type"`
	Status keyEventStatus `json:"status"`
}

type keyEventStatus struct {
	W3CKey    string `json:"w3cKey"`
	EventType string `json:"eventType"`
}

// encodeKeyEvent builds a key press command.
func encodeKeyEvent(key string) ([]byte, error) {
	return json.Marshal(keyEventPayload{
		Type:   typeKeyEvent,
		Status: keyEventStatus{W3CKey: key, EventType: eventTypeKeyDownUp},
	})
}

type pushToTVPayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source pushToTVSource `json:"source"`
	Status pushToTVStatus `json:"status"`
}

type pushToTVSource struct {
	ClientID           string `json:"clientId"`
	FriendlyDeviceName string `json:"friendlyDeviceName"`
}

type pushToTVStatus struct {
	SourceType       string          `json:"sourceType"`
	Source           pushToTVChannel `json:"source"`
	RelativePosition int             `json:"relativePosition"`
	Speed            int             `json:"speed"`
}

type pushToTVChannel struct {
	ChannelID string `json:"channelId"`
}

// encodePushToTV builds a command that tunes a box to a linear channel.
func encodePushToTV(clientID, friendlyName, serviceID string) ([]byte, error) {
	return json.Marshal(pushToTVPayload{
		ID:   newMessageID(),
		Type: typePushToTV,
		Source: pushToTVSource{
			ClientID:           clientID,
			FriendlyDeviceName: friendlyName,
		},
		Status: pushToTVStatus{
			SourceType: sourceLinear,
			Source:     pushToTVChannel{ChannelID: serviceID},
			Speed:      1,
		},
	})
}

type stateRequestPayload struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// encodeStateRequest builds a request for the box to publish its UI status.
func encodeStateRequest(clientID string) ([]byte, error) {
	return json.Marshal(stateRequestPayload{
		ID:     newMessageID(),
		Type:   typeGetUIStatus,
		Source: clientID,
	})
}
