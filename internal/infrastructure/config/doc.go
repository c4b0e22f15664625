// Package config handles loading and validating smarthome bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files (TOML when the file ends in .toml)
//   - Overriding with SMARTHOME_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.BaseURL())
package config
