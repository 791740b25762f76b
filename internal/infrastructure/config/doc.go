// Package config handles loading and validating Quantum Task Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with QTASK_* environment variables
//   - Validation of required fields (all problems are reported together)
//   - Default value handling
//
// Security Considerations:
//   - Database credentials come from the secrets provider, never from this file
//   - The JWT secret should be set via QTASK_JWT_SECRET
//   - "header" auth mode trusts X-Owner and is meant for local runs behind a gateway
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Service.Name)
package config
