// Package config handles the agent's two configuration layers.
//
// This package manages:
//   - The bootstrap configuration (logging, dashboard, file locations),
//     loaded once from YAML at startup and overridden by environment variables
//   - The runtime Settings (sinks, sampling interval, serial device), which
//     are hot-reloadable and persisted to their own YAML file
//   - The versioned Store that hands Settings generations to the
//     long-running ingestion and publisher loops
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens live in the settings file; it is
//     written with 0600 permissions
//   - Credentials can also be supplied through EDGEAGENT_* environment variables
//
// Usage:
//
//	cfg, err := config.Load("configs/agent.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	file := config.NewSettingsFile(cfg.Settings.Path)
//	initial, _ := file.Load()
//	store := config.NewStore(initial, file)
//
//	settings, token := store.Snapshot()
//	// ... later, at a decision point:
//	if store.Token() != token {
//	    // tear down and restart with store.Read()
//	}
package config
