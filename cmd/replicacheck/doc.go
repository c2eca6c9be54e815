// Package main provides the entry point for replicacheck.
//
// replicacheck reads the state-machine store of every replica of a
// replicated key-value system and reports whether they hold identical
// data:
//
//   - verify: compare every replica with a baseline
//   - dump: print the dataset of one replica
//   - seed: build replica stores through an in-process raft cluster
//
// Usage:
//
//	replicacheck verify --base-dir /var/lib/kv --replica 8775,8776,8777
//	replicacheck -o json verify -c replicacheck.yaml --report-file report.json
//	replicacheck seed --base-dir /tmp/fixture -r A,B,C --tamper B:key-000002=x
//
// Exit status: 0 identical, 1 divergence, 2 infrastructure failure,
// 3 inconclusive, 64 usage or configuration error.
package main
