// Package security validates untrusted candidate output directories.
//
// The validator runs a short-circuiting pipeline over the raw input: rate
// gate, dangerous-character scan, traversal scan (before normalization),
// normalization, critical-directory denylist, then policy-dependent
// whitelist enforcement. Every call is recorded in a bounded in-memory
// audit ring for forensic review.
//
// Validate never panics outward and is safe to call with arbitrary,
// maliciously crafted input: all scans are single linear passes over the
// string.
package security
