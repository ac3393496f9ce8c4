// Package device manages DEWHOME's output devices: what is wired to which
// BCM pin, and whether that pin is currently high or low.
//
// # Components
//
//   - Registry: cached CRUD over a Repository, enforcing one device per pin
//   - SQLiteRepository: persistence in the devices table
//   - Controller: applies high/low/toggle commands to the GPIO driver,
//     persists the result and notifies observers (MQTT, WebSocket, InfluxDB)
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo, gpio.NewCatalog(nil))
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	ctrl := device.NewController(registry, driver)
//	d, err := ctrl.Apply(ctx, 1, device.CommandToggle, device.SourceAPI)
package device
