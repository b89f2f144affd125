// Package device provides the host Device Registry for the discovery adapter.
//
// The registry holds one record per discovered device identity: its display
// name, category and legacy type codes, the canonical discovery config it was
// created from, and the host-visible value and link health fields that the
// discovery orchestrator keeps current.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                                 │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │    Repository    │    │    Validation    │   │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │ (validation.go)  │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • CRUD ops       │    │ • SQLite queries │    │ • Device checks  │   │
//	│  │ • Partial update │    │ • Identity index │    │ • Identity rules │   │
//	│  │ • In-memory cache│    │                  │    │ • Category names │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                       │                                      │
//	└───────────│───────────────────────│──────────────────────────────────────┘
//	            │                       │
//	            ▼                       ▼
//	┌────────────────────────┐ ┌──────────────────────┐
//	│ Discovery orchestrator │ │   SQLite Database    │
//	│ • create on discovery  │ │   (devices table)    │
//	│ • value/link updates   │ └──────────────────────┘
//	│ REST API (read-only)   │
//	└────────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev := &device.Device{
//	    Identity:    "dev1/light_1",
//	    Name:        "Kitchen",
//	    Component:   "light",
//	    Category:    "dimmer",
//	    TypeCode:    244,
//	    SubtypeCode: 73,
//	    SwitchType:  7,
//	    Config:      cfgJSON,
//	    Used:        true,
//	}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
//	level := "40"
//	registry.UpdateDevice(ctx, dev.ID, device.DeviceUpdate{SValue: &level})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Reads are served from the cache
// under a read-write mutex; writes are serialised so a partial update is
// applied to the latest stored record.
package device
