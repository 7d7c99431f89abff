// Package config handles loading and validating boxsync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Filling operator endpoints from the selected country
//   - Validation of required fields
//
// Security Considerations:
//   - Operator credentials should be set via BOXSYNC_PROVIDER_USERNAME and
//     BOXSYNC_PROVIDER_PASSWORD rather than written to the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.URL)
package config
