// Package report renders verification reports and maps them to process
// exit codes.
//
// Exit codes:
//
//	0  pass
//	1  divergence between replicas
//	2  at least one replica could not be opened or scanned
//	3  inconclusive, a single replica was collected
//	64 usage or configuration error
package report
