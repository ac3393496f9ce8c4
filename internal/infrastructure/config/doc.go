// Package config loads config.yaml for the dewhome binary.
//
// Load starts from the built-in defaults (simulated GPIO, the four seed
// devices, API on port 5000), overlays the YAML file, then applies
// DEWHOME_* environment variables and validates the result. Secrets such
// as DEWHOME_JWT_SECRET, DEWHOME_AUTH_PASSWORD_HASH and
// DEWHOME_INFLUXDB_TOKEN are expected to come from the environment.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	tz, _ := time.LoadLocation(cfg.Scheduler.Timezone)
package config
