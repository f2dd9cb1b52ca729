// Package main is the entry point for the QR directory service.
//
// The server guards the directory QR codes are written to: it validates
// untrusted candidate paths, applies roots notifications with a fixed
// precedence order, and streams configuration changes to connected clients.
//
// The server provides:
//   - REST API for roots notifications and directory operations
//   - WebSocket streaming of configuration change events
//   - Service provider registry exposing the qrdir tool surface
//   - Security audit log with bounded retention
//   - Rate limiting at the HTTP and validation layers
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Optional TOML file for the whitelist, reloaded on change
//
// Usage:
//
//	./server -port 8600 -qr-dir /srv/qr_codes -config /etc/qrdir.toml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
