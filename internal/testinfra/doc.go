// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
Package testinfra provides Docker-backed test infrastructure built on
testcontainers-go.

The package is gated behind the integration build tag so the default
test run never touches Docker:

	go test -tags integration ./internal/testinfra/...

The main inhabitant is the MinIO container, which backs end-to-end
object-store tests: unit tests cover presigning offline, and these
tests cover the real PUT/GET/DELETE round trips against a live
S3-compatible endpoint.

	minio, err := testinfra.NewMinIOContainer(ctx)
	if err != nil {
	    t.Fatal(err)
	}
	defer testinfra.CleanupContainer(t, ctx, minio.Container)

	store, err := objectstore.New(minio.StoreConfig("test-bucket"))

Tests that need Docker should start with SkipIfNoDocker(t) so they
degrade to a skip on machines without a daemon.
*/
package testinfra
