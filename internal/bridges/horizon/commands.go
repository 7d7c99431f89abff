package horizon

import (
	"fmt"
	"sync"

	"github.com/nerrad567/boxsync/internal/device"
)

// Command names reported to Metrics and logs.
const (
	commandTurnOn       = "turn_on"
	commandTurnOff      = "turn_off"
	commandPause        = "pause"
	commandPlay         = "play"
	commandNextChannel  = "next_channel"
	commandPrevChannel  = "previous_channel"
	commandPressKey     = "press_key"
	commandSelectSource = "select_source"
)

// gate decides whether a command applies to the device's current state.
type gate func(device.Device) bool

func isStandby(d device.Device) bool { return d.State == device.StateOnlineStandby }
func isRunning(d device.Device) bool { return d.IsRunning() }
func isPlaying(d device.Device) bool { return d.IsRunning() && !d.Playing.Paused }
func isPaused(d device.Device) bool  { return d.IsRunning() && d.Playing.Paused }

// TurnOn presses Power on a box in standby. No-op otherwise.
func (b *Bridge) TurnOn(id string) error {
	return b.sendKey(id, commandTurnOn, KeyPower, isStandby)
}

// TurnOff presses Power on a running box. No-op otherwise.
func (b *Bridge) TurnOff(id string) error {
	return b.sendKey(id, commandTurnOff, KeyPower, isRunning)
}

// Pause toggles play/pause on a running box that is playing. No-op otherwise.
func (b *Bridge) Pause(id string) error {
	return b.sendKey(id, commandPause, KeyPlayPause, isPlaying)
}

// Play toggles play/pause on a running box that is paused. No-op otherwise.
func (b *Bridge) Play(id string) error {
	return b.sendKey(id, commandPlay, KeyPlayPause, isPaused)
}

// NextChannel presses ChannelUp on a running box. No-op otherwise.
func (b *Bridge) NextChannel(id string) error {
	return b.sendKey(id, commandNextChannel, KeyChannelUp, isRunning)
}

// PreviousChannel presses ChannelDown on a running box. No-op otherwise.
func (b *Bridge) PreviousChannel(id string) error {
	return b.sendKey(id, commandPrevChannel, KeyChannelDown, isRunning)
}

// PressKey sends any remote key to a running box. No-op otherwise.
//
// Returns:
//   - error: ErrInvalidKey for an empty key, device.ErrDeviceNotFound, or
//     the publish error
func (b *Bridge) PressKey(id, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return b.sendKey(id, commandPressKey, key, isRunning)
}

// SelectSource tunes a box to the catalog channel with the given title.
//
// Returns:
//   - error: device.ErrDeviceNotFound, ErrSourceNotFound when no channel
//     has the title, or the publish error
func (b *Bridge) SelectSource(id, title string) error {
	return b.dispatch(id, commandSelectSource, nil, func() ([]byte, error) {
		channel, ok := b.catalog.FindByTitle(title)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, title)
		}
		b.logDebug("selecting source", "device_id", id, "service_id", channel.ServiceID)
		return encodePushToTV(b.clientID, b.friendlyName, channel.ServiceID)
	})
}

// sendKey dispatches a key press guarded by allow.
func (b *Bridge) sendKey(id, command, key string, allow gate) error {
	return b.dispatch(id, command, allow, func() ([]byte, error) {
		return encodeKeyEvent(key)
	})
}

// dispatch runs one command under the device's command lock.
//
// The command is skipped without error when allow rejects the device. A
// published command is always followed by a state request; the registry is
// only updated by the resulting status message.
func (b *Bridge) dispatch(id, command string, allow gate, build func() ([]byte, error)) error {
	unlock := b.lockDevice(id)
	defer unlock()

	d, ok := b.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	if allow != nil && !allow(d) {
		b.logDebug("command not applicable", "device_id", id, "command", command, "state", d.State, "paused", d.Playing.Paused)
		return nil
	}

	err := b.publishCommand(id, build)
	if b.metrics != nil {
		b.metrics.RecordCommand(id, command, err)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", command, id, err)
	}

	b.logInfo("command sent", "device_id", id, "command", command)
	return nil
}

// publishCommand builds and publishes a command, then requests state.
func (b *Bridge) publishCommand(id string, build func() ([]byte, error)) error {
	payload, err := build()
	if err != nil {
		return err
	}
	if err := b.publishToDevice(id, payload); err != nil {
		return err
	}
	return b.requestState(id)
}

// lockDevice acquires the command lock of one device.
func (b *Bridge) lockDevice(id string) func() {
	b.cmdLocksMu.Lock()
	mu, ok := b.cmdLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		b.cmdLocks[id] = mu
	}
	b.cmdLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
