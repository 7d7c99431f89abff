package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Registry holds the known set-top boxes and their last reconciled state.
//
// Each device is stored as an immutable snapshot. Every update builds a new
// snapshot and swaps it in under the write lock, so a reader never sees a
// State from one message paired with Playing from another.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Register adds a device with a display name.
//
// Registering an existing id is a no-op; the device keeps its name and state.
//
// Returns:
//   - bool: true if the device was created
//   - error: ErrInvalidDevice if id is empty
func (r *Registry) Register(id, name string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: empty id", ErrInvalidDevice)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; ok {
		return false, nil
	}
	r.devices[id] = &Device{
		ID:        id,
		Name:      name,
		State:     StateUnknown,
		UpdatedAt: r.now().UTC(),
	}
	r.logger.Info("device registered", "device_id", id, "name", name)
	return true, nil
}

// Ensure creates an unnamed device in StateUnknown if id is not known.
//
// Returns:
//   - bool: true if the device was created
func (r *Registry) Ensure(id string) bool {
	created, err := r.Register(id, "")
	return err == nil && created
}

// Get returns a snapshot of the device.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// List returns snapshots of all devices ordered by id.
func (r *Registry) List() []Device {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d)
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// IDs returns the known device ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Remove deletes a device.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	r.logger.Info("device removed", "device_id", id)
	return nil
}

// ApplyPresence records a connectivity state.
//
// Any state other than StateOnlineRunning clears the playback info. The new
// State and Playing are published together.
//
// Returns:
//   - ConnectivityState: The state before the update
//   - error: ErrDeviceNotFound if id is not registered
func (r *Registry) ApplyPresence(id string, state ConnectivityState) (ConnectivityState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.devices[id]
	if !ok {
		return "", ErrDeviceNotFound
	}

	next := *cur
	if state != StateOnlineRunning {
		next.Playing = PlayingInfo{}
	}
	next.State = state
	next.UpdatedAt = r.now().UTC()
	r.devices[id] = &next

	if cur.State != state {
		r.logger.Debug("device state changed", "device_id", id, "from", cur.State, "to", state)
	}
	return cur.State, nil
}

// ApplyPlaying replaces the playback info of a device.
//
// The update is dropped while the device is in StateOnlineStandby, so a
// status message processed after a transition to standby cannot revive
// playback info that the transition cleared. Devices in StateUnknown accept
// it.
//
// Returns:
//   - bool: true if the info was stored
//   - error: ErrDeviceNotFound if id is not registered
func (r *Registry) ApplyPlaying(id string, info PlayingInfo) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.devices[id]
	if !ok {
		return false, ErrDeviceNotFound
	}
	if cur.State == StateOnlineStandby {
		return false, nil
	}

	next := *cur
	next.Playing = info
	next.UpdatedAt = r.now().UTC()
	r.devices[id] = &next
	return true, nil
}

// Clear removes every device.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*Device)
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int                       `json:"total_devices"`
	Available    int                       `json:"available"`
	ByState      map[ConnectivityState]int `json:"by_state"`
	BySource     map[SourceType]int        `json:"by_source"`
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByState:      make(map[ConnectivityState]int),
		BySource:     make(map[SourceType]int),
	}

	for _, d := range r.devices {
		stats.ByState[d.State]++
		if d.Playing.SourceType != SourceNone {
			stats.BySource[d.Playing.SourceType]++
		}
		if d.IsAvailable() {
			stats.Available++
		}
	}

	return stats
}
