// Package server assembles the directory subsystem behind its HTTP and
// WebSocket surface: configuration provider, security validator, roots
// manager, provider registry, middleware stack, and the optional config
// file watcher.
package server
