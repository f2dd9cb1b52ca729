// Package roots processes inbound roots notifications and answers
// introspection queries about the active output directory.
//
// Each notification moves through a fixed sequence: structural validation
// (before the rate limiter, so malformed payloads cost nothing), the
// manager's own rate gate, a single in-flight guard that rejects rather
// than queues, ordered first-success candidate iteration, and finally the
// configuration update. Operations that consume untrusted input never
// return errors; only the operator-facing configuration calls may.
package roots
