// Package device provides the Device Registry for boxsync.
//
// The registry is the in-memory view of every set-top box in the household:
// its connectivity state and what it is playing. It is fed by the broker
// bridge and read by the control API.
//
// # Key Types
//
//   - Device: A set-top box snapshot (id, name, state, playing info)
//   - ConnectivityState: UNKNOWN, ONLINE_RUNNING or ONLINE_STANDBY
//   - PlayingInfo: Source type, channel, title, image and pause flag
//
// # Invariants
//
//   - PlayingInfo is empty whenever State is not ONLINE_RUNNING
//   - State and PlayingInfo of a device are replaced together
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	registry.Register("3C36E4-EOSSTB-003656579806", "Living room")
//	registry.ApplyPresence("3C36E4-EOSSTB-003656579806", device.StateOnlineRunning)
//
//	dev, ok := registry.Get("3C36E4-EOSSTB-003656579806")
//
// Nothing is persisted; the registry starts empty on every run.
package device
