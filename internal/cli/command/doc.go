// Package command provides the replicacheck CLI commands.
//
// This package defines the commands using urfave/cli/v2:
//
//   - root.go: application, global flags, configuration loading
//   - verify.go: collect every replica, compare, emit the report
//   - dump.go: print the dataset of one replica
//   - seed.go: build replica stores through an in-process raft cluster
//
// Every command loads its configuration the same way: defaults, then the
// --config file, then REPLICACHECK_ environment variables, then the flags
// the user set. Outcomes are returned as cli.ExitCoder values carrying the
// process exit status.
package command
