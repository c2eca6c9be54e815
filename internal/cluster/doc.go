// Package cluster runs an in-process raft cluster whose replicas persist
// their state machine into badger stores.
//
// It builds realistic fixtures for verification: every replica applies the
// same committed log into <baseDir>/<id>/stateMachine, with raft's own log
// and stable stores in <baseDir>/<id>/raft. Replicas talk over raft's
// in-memory transport, so no ports are opened.
//
//   - fsm.go: StateMachine, the raft.FSM over a badger store
//   - node.go: one raft replica and its stores
//   - seed.go: Seed, which runs a cluster, replicates a generated dataset
//     and optionally tampers with replicas after shutdown
package cluster
