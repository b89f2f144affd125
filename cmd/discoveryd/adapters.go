package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-discovery/internal/device"
	"github.com/nerrad567/gray-logic-discovery/internal/discovery"
)

// registryAdapter adapts the device registry to the orchestrator's
// Registry interface. Categories cross the boundary as their string form.
type registryAdapter struct {
	registry *device.Registry
}

// CreateDevice implements discovery.Registry.
func (a *registryAdapter) CreateDevice(ctx context.Context, spec discovery.DeviceSpec) (string, error) {
	name := spec.Name
	if name == "" {
		name = spec.Identity
	}

	d := &device.Device{
		Identity:    spec.Identity,
		Name:        name,
		Component:   spec.Component,
		Category:    spec.Classification.Category.String(),
		TypeCode:    spec.Classification.TypeCode,
		SubtypeCode: spec.Classification.SubtypeCode,
		SwitchType:  spec.Classification.SwitchType,
		Config:      json.RawMessage(spec.Config),
		Used:        spec.Active,
	}
	err := a.registry.CreateDevice(ctx, d)
	if errors.Is(err, device.ErrDeviceExists) {
		// The identity is already stored, typically after a create whose
		// reply was lost. Adopt the existing record.
		existing, lookupErr := a.registry.GetDeviceByIdentity(ctx, spec.Identity)
		if lookupErr != nil {
			return "", fmt.Errorf("%w (lookup: %v)", err, lookupErr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// UpdateDevice implements discovery.Registry.
func (a *registryAdapter) UpdateDevice(ctx context.Context, handle string, u discovery.HostUpdate) error {
	_, err := a.registry.UpdateDevice(ctx, handle, toDeviceUpdate(u))
	return err
}

// ListDevices implements discovery.Registry.
func (a *registryAdapter) ListDevices(ctx context.Context) ([]discovery.StoredDevice, error) {
	devices, err := a.registry.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]discovery.StoredDevice, 0, len(devices))
	for _, d := range devices {
		category, err := discovery.ParseCategory(d.Category)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.ID, err)
		}
		stored = append(stored, discovery.StoredDevice{
			Handle:    d.ID,
			Identity:  d.Identity,
			Component: d.Component,
			Classification: discovery.Classification{
				Category:    category,
				TypeCode:    d.TypeCode,
				SubtypeCode: d.SubtypeCode,
				SwitchType:  d.SwitchType,
			},
			Config: []byte(d.Config),
			NValue: d.NValue,
			SValue: d.SValue,
			Color:  d.Color,
		})
	}
	return stored, nil
}

func toDeviceUpdate(u discovery.HostUpdate) device.DeviceUpdate {
	du := device.DeviceUpdate{
		Name:             u.Name,
		NValue:           u.NValue,
		SValue:           u.SValue,
		Color:            u.Color,
		SignalLevel:      u.Signal,
		BatteryLevel:     u.Battery,
		TimedOut:         u.TimedOut,
		Description:      u.Description,
		SuppressTriggers: u.SuppressTriggers,
	}
	if u.Config != nil {
		du.Config = json.RawMessage(u.Config)
	}
	if c := u.Classification; c != nil {
		category := c.Category.String()
		du.Category = &category
		du.TypeCode = &c.TypeCode
		du.SubtypeCode = &c.SubtypeCode
		du.SwitchType = &c.SwitchType
	}
	return du
}

// metricWriter is the part of the InfluxDB client the listener needs.
type metricWriter interface {
	WriteDeviceMetric(identity, category, metric string, value float64)
	WriteLinkHealth(identity string, signal, battery *int)
}

// metricsListener records numeric readings and link health of every
// state change as time-series points.
type metricsListener struct {
	writer metricWriter
}

// DeviceDiscovered implements discovery.Listener.
func (l *metricsListener) DeviceDiscovered(discovery.Entry) {}

// StateChanged implements discovery.Listener.
func (l *metricsListener) StateChanged(e discovery.Entry, delta discovery.StateUpdate) {
	category := e.Classification.Category.String()

	if delta.Temperature != nil {
		l.writer.WriteDeviceMetric(e.Identity, category, "temperature", *delta.Temperature)
	}
	if delta.Humidity != nil {
		l.writer.WriteDeviceMetric(e.Identity, category, "humidity", *delta.Humidity)
	}
	if delta.Level != nil {
		l.writer.WriteDeviceMetric(e.Identity, category, "level", float64(*delta.Level))
	}
	if delta.Position != nil {
		l.writer.WriteDeviceMetric(e.Identity, category, "position", float64(*delta.Position))
	}
	if delta.On != nil {
		var v float64
		if *delta.On {
			v = 1
		}
		l.writer.WriteDeviceMetric(e.Identity, category, "on", v)
	}
	if delta.Signal != nil || delta.Battery != nil {
		l.writer.WriteLinkHealth(e.Identity, delta.Signal, delta.Battery)
	}
}
