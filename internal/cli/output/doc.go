// Package output provides output formatting for the replicacheck CLI.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned text tables built from tables, slices or structs
//   - json.go / yaml.go: machine-readable output
//   - progress.go: item progress for long-running commands
//
// Struct fields pick their column name from the table tag, then the json
// tag, then the field name. table:"-" hides a field from tables only.
package output
