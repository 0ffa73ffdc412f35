// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

// ServiceInfo describes this store to clients of GET /service.
type ServiceInfo struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	APIVersion     string `json:"api_version"`
	ServiceVersion string `json:"service_version"`
}

// HealthStatus is the liveness report: the process is up and has been for
// UptimeSeconds. Dependency health lives on the readiness endpoint.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessStatus reports whether the store can serve traffic, with one
// check per dependency.
type ReadinessStatus struct {
	Ready  bool             `json:"ready"`
	Checks []ReadinessCheck `json:"checks"`
}

// ReadinessCheck is a single dependency probe result.
type ReadinessCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
