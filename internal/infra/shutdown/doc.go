// Package shutdown turns process termination signals into context
// cancellation.
//
// Usage:
//
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//	// pass ctx to the run; SIGINT or SIGTERM cancels it
//
// The cancellation cause wraps ErrInterrupted and names the signal, so a
// caller can tell an interrupted run from one that failed on its own.
package shutdown
