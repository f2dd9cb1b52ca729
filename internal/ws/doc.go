// Package ws streams configuration change events over WebSocket.
//
// The handler keeps a registry of live connections and fans each
// ChangeEvent out to all of them. It is wired to the configuration
// provider as a regular observer, so delivery shares the observer
// contract: asynchronous, best-effort, isolated per consumer.
package ws
