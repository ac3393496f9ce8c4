// Package gpio drives the Raspberry Pi output lines that DEWHOME devices are
// wired to, and describes which BCM pins may be used for them.
//
// Two drivers implement Driver:
//   - SysfsDriver talks to real hardware through github.com/ecc1/gpio
//   - SimDriver keeps levels in memory for development hosts and tests
//
// Pin numbers are BCM numbers throughout, never physical header positions.
package gpio
