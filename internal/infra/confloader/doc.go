// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader that merges several
// sources using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags that were set explicitly)
//  2. Environment variables (REPLICACHECK_ prefix, "__" between sections)
//  3. Configuration file (YAML)
//  4. Default values (pre-filled target struct)
package confloader
