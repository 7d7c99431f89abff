package horizon

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/boxsync/internal/device"
)

// Message kinds reported to Metrics.
const (
	messageKindPresence  = "presence"
	messageKindStatus    = "status"
	messageKindMalformed = "malformed"
	messageKindIgnored   = "ignored"
)

// handleMessage decodes and dispatches one inbound message.
// A panic in a handler is logged and swallowed so the receive loop survives.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.logError("message handler panicked", fmt.Errorf("topic %s: %v", topic, r))
		}
	}()

	msg, err := decodeMessage(payload)
	if err != nil {
		b.logDebug("ignoring malformed message", "topic", topic, "error", err)
		b.recordMessage(messageKindMalformed)
		return
	}

	if msg.Source == "" || msg.Source == b.clientID {
		b.recordMessage(messageKindIgnored)
		return
	}

	if msg.Presence {
		b.recordMessage(messageKindPresence)
		b.onPresenceMessage(msg.Source, msg.State)
	}
	if msg.Status != nil {
		b.recordMessage(messageKindStatus)
		b.onStatusMessage(msg.Source, msg.Status)
	}
}

// onPresenceMessage applies a presence announcement.
//
// A device seen for the first time (new, or still UNKNOWN) is subscribed
// and asked for its state. A running device is asked for its state. At most
// one state request is sent per message.
func (b *Bridge) onPresenceMessage(id string, state device.ConnectivityState) {
	created := b.registry.Ensure(id)
	if created {
		b.logInfo("discovered device", "device_id", id)
	}

	prev, err := b.registry.ApplyPresence(id, state)
	if err != nil {
		// Removed concurrently.
		b.logDebug("presence for removed device", "device_id", id)
		return
	}

	firstSeen := created || prev == device.StateUnknown
	if firstSeen {
		if household := b.currentHousehold(); household != "" {
			b.subscribeDeviceAsync(household, id)
		}
	}

	if prev != state {
		b.logInfo("device state changed", "device_id", id, "from", prev, "to", state)
		if b.metrics != nil {
			b.metrics.RecordStateChange(id, prev, state)
		}
	}

	if firstSeen || state == device.StateOnlineRunning {
		if err := b.requestState(id); err != nil {
			b.logError("requesting device state failed", err)
		}
	}
}

// onStatusMessage resolves a status report and stores the playback info.
// Malformed reports leave the previous info in place. A device first seen
// through a status report is asked for its state.
func (b *Bridge) onStatusMessage(id string, status *statusPayload) {
	if b.registry.Ensure(id) {
		b.logInfo("discovered device", "device_id", id)
		if household := b.currentHousehold(); household != "" {
			b.subscribeDeviceAsync(household, id)
		}
		if err := b.requestState(id); err != nil {
			b.logError("requesting device state failed", err)
		}
	}

	info, ok, err := b.resolvePlaying(status)
	if err != nil {
		b.logWarn("ignoring status message", "device_id", id, "error", err)
		b.recordMessage(messageKindMalformed)
		return
	}
	if !ok {
		b.logDebug("ignoring ui status", "device_id", id, "ui_status", status.UIStatus)
		return
	}

	applied, err := b.registry.ApplyPlaying(id, info)
	if err != nil {
		b.logDebug("status for removed device", "device_id", id)
		return
	}
	if !applied {
		b.logDebug("dropping status for device in standby", "device_id", id)
		return
	}

	b.logDebug("device playing", "device_id", id, "source_type", info.SourceType, "channel_id", info.ChannelID, "title", info.Title)
	if b.metrics != nil {
		b.metrics.RecordPlaying(id, info)
	}
}

// resolvePlaying builds PlayingInfo from a status report.
//
// Returns:
//   - device.PlayingInfo: The resolved info
//   - bool: false if the UI status is not one the bridge tracks
//   - error: ErrMalformedMessage if a required field is missing
func (b *Bridge) resolvePlaying(status *statusPayload) (device.PlayingInfo, bool, error) {
	switch status.UIStatus {
	case uiStatusMainUI:
		info, err := b.resolvePlayer(status.PlayerState)
		return info, err == nil, err

	case uiStatusApps:
		if status.AppsState == nil {
			return device.PlayingInfo{}, false, fmt.Errorf("%w: apps status without appsState", ErrMalformedMessage)
		}
		return device.PlayingInfo{
			SourceType:   device.SourceApp,
			ChannelTitle: status.AppsState.AppName,
			Title:        status.AppsState.AppName,
			ImageURL:     absoluteURL(status.AppsState.LogoPath),
		}, true, nil

	default:
		return device.PlayingInfo{}, false, nil
	}
}

// resolvePlayer resolves a mainUI player state.
func (b *Bridge) resolvePlayer(ps *playerState) (device.PlayingInfo, error) {
	if ps == nil {
		return device.PlayingInfo{}, fmt.Errorf("%w: mainUI status without playerState", ErrMalformedMessage)
	}
	if ps.Source == nil {
		return device.PlayingInfo{}, fmt.Errorf("%w: playerState without source", ErrMalformedMessage)
	}
	if ps.Speed == nil {
		return device.PlayingInfo{}, fmt.Errorf("%w: playerState without speed", ErrMalformedMessage)
	}

	src := ps.Source
	paused := *ps.Speed == 0

	switch ps.SourceType {
	case sourceReplay:
		if src.EventID == "" {
			return device.PlayingInfo{}, fmt.Errorf("%w: replay without eventId", ErrMalformedMessage)
		}
		return device.PlayingInfo{
			SourceType: device.SourceReplay,
			Title:      prefixed(replayTitlePrefix, b.recordingTitle(src.EventID)),
			ImageURL:   b.recordingImage(src.EventID),
			Paused:     paused,
		}, nil

	case sourceNDVR:
		if src.RecordingID == "" {
			return device.PlayingInfo{}, fmt.Errorf("%w: nDVR without recordingId", ErrMalformedMessage)
		}
		return device.PlayingInfo{
			SourceType: device.SourceRecording,
			Title:      prefixed(recordingTitlePrefix, b.recordingTitle(src.RecordingID)),
			ImageURL:   b.recordingImage(src.RecordingID),
			Paused:     paused,
		}, nil

	case sourceReviewBuffer:
		if src.ChannelID == "" || src.EventID == "" {
			return device.PlayingInfo{}, fmt.Errorf("%w: reviewbuffer without channelId or eventId", ErrMalformedMessage)
		}
		info := device.PlayingInfo{
			SourceType: device.SourceTimeshiftBuffer,
			Title:      prefixed(bufferTitlePrefix, b.recordingTitle(src.EventID)),
			Paused:     paused,
		}
		return b.withChannel(info, src.ChannelID), nil

	case sourceLinear:
		if src.ChannelID == "" || src.EventID == "" {
			return device.PlayingInfo{}, fmt.Errorf("%w: linear without channelId or eventId", ErrMalformedMessage)
		}
		info := device.PlayingInfo{
			SourceType: device.SourceChannel,
			Title:      b.programTitle(src.ChannelID, src.EventID),
		}
		return b.withChannel(info, src.ChannelID), nil

	default:
		return device.PlayingInfo{
			SourceType: device.SourceUnknown,
			Title:      unknownSourceTitle,
			Paused:     paused,
		}, nil
	}
}

// recordingTitle looks up a recording title; failures resolve to "".
func (b *Bridge) recordingTitle(id string) string {
	if b.lookup == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.lookupTimeout)
	defer cancel()

	title, err := b.lookup.RecordingTitle(ctx, id)
	if err != nil {
		b.logWarn("recording title lookup failed", "id", id, "error", err)
		return ""
	}
	return title
}

// recordingImage looks up a recording image; failures resolve to "".
func (b *Bridge) recordingImage(id string) string {
	if b.lookup == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.lookupTimeout)
	defer cancel()

	image, err := b.lookup.RecordingImage(ctx, id)
	if err != nil {
		b.logWarn("recording image lookup failed", "id", id, "error", err)
		return ""
	}
	return image
}

// programTitle looks up the title airing on a channel; failures resolve to "".
func (b *Bridge) programTitle(channelID, eventID string) string {
	if b.lookup == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.lookupTimeout)
	defer cancel()

	title, err := b.lookup.ProgramTitle(ctx, channelID, eventID)
	if err != nil {
		b.logWarn("programme title lookup failed", "channel_id", channelID, "event_id", eventID, "error", err)
		return ""
	}
	return title
}

// withChannel fills the channel fields of info from the catalog. On a miss
// ChannelID, ChannelTitle and ImageURL stay empty.
func (b *Bridge) withChannel(info device.PlayingInfo, channelID string) device.PlayingInfo {
	channel, ok := b.catalog.Lookup(channelID)
	if !ok {
		b.logDebug("channel not in catalog", "channel_id", channelID)
		return info
	}
	info.ChannelID = channel.ServiceID
	info.ChannelTitle = channel.Title
	info.ImageURL = channel.StreamImageURL
	return info
}

// prefixed returns prefix+title, or "" when title is empty.
func prefixed(prefix, title string) string {
	if title == "" {
		return ""
	}
	return prefix + title
}

// absoluteURL gives scheme-relative URLs an https scheme.
func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// recordMessage reports an inbound message kind to Metrics.
func (b *Bridge) recordMessage(kind string) {
	if b.metrics != nil {
		b.metrics.RecordMessage(kind)
	}
}
