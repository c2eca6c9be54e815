// Package buildinfo provides build information for replicacheck.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/replicacheck/internal/infra/buildinfo.Version=v1.0.0"
//
// GoVersion falls back to the running toolchain when not injected.
package buildinfo
