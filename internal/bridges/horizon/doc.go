// Package horizon implements the set-top box bridge for boxsync.
//
// The bridge keeps the device registry in step with the boxes of one
// household. Boxes and companion clients talk through the operator's MQTT
// broker; the bridge joins that conversation as a companion client of its
// own.
//
// # Architecture
//
//	┌─────────────────┐   events   ┌─────────────────┐   MQTT    ┌─────────────┐
//	│ device.Registry │◄───────────│  Horizon Bridge │◄─────────►│ Set-top box │
//	└─────────────────┘            │   (this pkg)    │           └─────────────┘
//	                               └────────┬────────┘
//	                                        │ HTTP
//	                               ┌────────▼────────┐
//	                               │ catalog/listings│
//	                               └─────────────────┘
//
// # Key Responsibilities
//
//   - Connect with the session credentials, re-authenticating once when the
//     broker refuses them
//   - Announce the bridge as an online companion client and subscribe to
//     the household and per-device topics
//   - Reconcile presence and status messages into device.PlayingInfo
//   - Dispatch remote-control commands, each followed by a state request
//
// # Topics
//
// Everything lives under the household ID:
//
//	{household}                 household broadcast
//	{household}/$SYS            broker notices
//	{household}/{device}        commands to a box
//	{household}/{device}/status presence and status from a box
//
// # Reconnection
//
// Connect never retries on its own beyond the single re-authentication
// attempt. When the connection drops the bridge reports it through the
// callback set with SetOnDisconnect and the owner decides when to call
// Connect again.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Inbound messages are
// processed one at a time by a single goroutine; commands for the same
// device are serialised.
package horizon
