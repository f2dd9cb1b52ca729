// Package config owns the authoritative QR output directory.
//
// The Provider tracks the current directory, which precedence layer set it
// (roots > environment > command line > default), the whitelist consulted by
// an attached security validator, and a list of change observers. A rejected
// update leaves the prior state untouched; each accepted update is a single
// in-memory assignment, so no rollback is ever needed.
//
// Observer delivery is decoupled from the updater: events are dispatched on
// a separate goroutine in registration order, and one observer's failure
// cannot block or corrupt delivery to the rest.
package config
