// Package integration contains end-to-end tests of the admin API against a
// real PostgreSQL admin database holding a small ODS dataset.
//
// The suite needs Docker and is skipped by `go test -short`.
package integration
