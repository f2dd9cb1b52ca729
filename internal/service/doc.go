// Package service provides the provider registry for the tool surface.
//
// The registry maintains a catalog of service providers and dispatches tool
// execution by tool ID prefix. Registration is thread-safe; listing supports
// category filtering.
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(qrdirProvider)
//	result, err := registry.Execute(ctx, "qrdir.info", params, nil)
package service
