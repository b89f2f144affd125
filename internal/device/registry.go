package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	writeMu sync.Mutex         // Serialises read-modify-write updates
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// GetDeviceByIdentity retrieves a device by its discovery identity.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDeviceByIdentity(ctx context.Context, identity string) (*Device, error) {
	r.cacheMu.RLock()
	for _, d := range r.cache {
		if d.Identity == identity {
			cpy := d.DeepCopy()
			r.cacheMu.RUnlock()
			return cpy, nil
		}
	}
	r.cacheMu.RUnlock()

	device, err := r.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices ordered by identity.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) == 0 {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Identity < devices[j].Identity })
	return devices, nil
}

// CreateDevice creates a new device.
// It assigns an ID if none is set, fills unknown link health defaults,
// validates the device and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if device.SignalLevel == 0 {
		device.SignalLevel = SignalUnknown
	}
	if device.BatteryLevel == 0 {
		device.BatteryLevel = BatteryUnknown
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created",
		"id", device.ID,
		"identity", device.Identity,
		"name", device.Name,
		"category", device.Category,
	)
	return nil
}

// UpdateDevice applies a partial update to an existing device and returns
// the updated record.
//
// Parameters:
//   - ctx: Context for the repository call
//   - id: Device ID
//   - update: Fields to change; nil fields are kept
//
// Returns:
//   - *Device: Deep copy of the stored device after the update
//   - error: ErrDeviceNotFound, a validation error, or a repository error
func (r *Registry) UpdateDevice(ctx context.Context, id string, update DeviceUpdate) (*Device, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	device, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return device, nil
	}

	update.Apply(device, r.now())
	if err := ValidateDevice(device); err != nil {
		return nil, err
	}
	if err := r.repo.Update(ctx, device); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("device updated",
		"id", device.ID,
		"identity", device.Identity,
		"suppress_triggers", update.SuppressTriggers,
	)
	return device, nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByCategory:   make(map[string]int),
	}
	for _, d := range r.cache {
		stats.ByCategory[d.Category]++
		if d.TimedOut {
			stats.TimedOut++
		}
	}
	return stats
}
