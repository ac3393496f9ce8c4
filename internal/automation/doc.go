// Package automation provides scheduled multi-device actions for DEWHOME Core.
//
// An action is a named, ordered list of device steps (high, low or toggle,
// each with a delay) attached to one of three triggers:
//
//   - timer: a five-field cron expression such as "30 7 * * 1-5"
//   - countdown: fires once, n minutes, hours or days from now ("30m", "2h", "1d")
//   - interval: fires every n seconds, minutes or hours ("5s", "10m", "1h")
//
// Architecture:
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│  Scheduler   │──▶│    Engine    │──▶│  Actuator    │
//	│ (cron+timers)│   │ (steps, log) │   │ (device pkg) │
//	└──────┬───────┘   └──────┬───────┘   └──────────────┘
//	       │                  │
//	       ▼                  ▼
//	┌──────────────┐   ┌──────────────┐
//	│   Registry   │──▶│  Repository  │
//	│   (cache)    │   │   (SQLite)   │
//	└──────────────┘   └──────────────┘
//
// # Thread Safety
//
// Registry, Engine and Scheduler are safe for concurrent use. The scheduler
// never runs an action while a previous run of the same action is still in
// progress.
//
// # Usage
//
//	registry := automation.NewRegistry(automation.NewSQLiteRepository(db), devices)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	engine := automation.NewEngine(registry, controller, repo)
//	sched := automation.NewScheduler(engine, registry, time.Local)
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop(shutdownCtx)
package automation
