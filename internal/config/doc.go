// Package config provides configuration management for the stackd control plane.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use; the
// default storage backend is in-memory so the binary runs standalone.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
