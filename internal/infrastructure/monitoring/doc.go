/*
Package monitoring provides metrics collection for the QR directory service.

# Overview

This package implements Prometheus-based metrics collection, tracking HTTP
requests, directory validation attempts, roots notifications, configuration
updates, observer delivery, and WebSocket activity.

Each Metrics instance owns its own registry so independent instances can
coexist in tests without duplicate-registration panics.

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to the Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record validation outcomes
	metrics.RecordValidation("blocked", "critical", elapsed)

# Metrics Endpoint

Expose metrics via the registry-scoped Prometheus handler:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
