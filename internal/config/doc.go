// Package config loads server settings from the environment.
//
// Defaults target a single local process: memory storage and events, no LLM
// key and no file root. Validate rejects unknown backends and out-of-range
// sizes before any component starts.
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	log.Printf("listening on %s", cfg.GetHTTPAddr())
package config
