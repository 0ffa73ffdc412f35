// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
Package supervisor runs tamstore's long-lived services under suture v4.

The tree has two child supervisors for failure isolation:

	root ("tamstore")
	├── worker-layer
	│   └── flow-delete worker
	└── api-layer
	    └── HTTP server

A crash in the delete worker restarts only the worker layer; the API
keeps serving requests, and vice versa. Restart storms are damped by
suture's failure counter: each failure increments it, it decays over
FailureDecay seconds, and once it crosses FailureThreshold the layer
backs off for FailureBackoff before retrying.

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning nil marks a clean stop (no restart); returning an error
triggers a restart. On shutdown the tree cancels every service context
and waits up to ShutdownTimeout per service; UnstoppedServiceReport
names anything that failed to stop in time.

Supervisor events are logged through the sutureslog adapter, which
routes into the process-wide zerolog output via logging.NewSlogLogger.

DuckDB is not supervised. It is an embedded library whose connections
the database package owns; a fault there needs a process restart, not
a service restart.
*/
package supervisor
