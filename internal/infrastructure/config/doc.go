// Package config loads and validates the discovery adapter configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// The discovery section is the static snapshot the discovery core runs on:
// the topic prefix announcements arrive under, the ignored-topic list, and
// whether newly created devices start out active.
//
// Security Considerations:
//   - Broker credentials and the JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Discovery.Prefix)
package config
