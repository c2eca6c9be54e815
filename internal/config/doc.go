// Package config defines the replicacheck configuration structure.
//
// Configuration is assembled by confloader from defaults, a YAML file,
// REPLICACHECK_ environment variables and command-line flags, then
// validated with Verify before any store is touched.
package config
