// Package audit records operator changes made through the API: devices
// created, deleted or switched, actions created, deleted, toggled or run by
// hand, and login attempts.
//
// Entries are append-only. Recording failures are reported to the caller but
// never undo the change being recorded.
package audit
