package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/yndnr/replicacheck/internal/cluster"
	"github.com/yndnr/replicacheck/internal/storage"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/verify"
)

// RecordCounts defines the dataset sizes for benchmarking.
var RecordCounts = []int{1000, 10000, 50000}

// valueSize is the length of every generated value.
const valueSize = 64

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// quietContext carries a logger that drops the per-record lines.
func quietContext(b *testing.B) context.Context {
	b.Helper()

	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	if err != nil {
		b.Fatal(err)
	}
	return logger.WithLogger(context.Background(), log)
}

// writeReplicas writes count generated records into one badger store per
// replica under dir.
func writeReplicas(b *testing.B, dir string, count int, ids ...string) []verify.Replica {
	b.Helper()

	replicas := make([]verify.Replica, len(ids))
	for i, id := range ids {
		path := filepath.Join(dir, id, cluster.DefaultStoreDir)
		engine, err := storage.NewBadgerEngine(path, storage.DefaultBadgerConfig(), quiet)
		if err != nil {
			b.Fatalf("NewBadgerEngine() error = %v", err)
		}
		err = engine.Replace(func(put func(key, value []byte) error) error {
			for n := 0; n < count; n++ {
				if err := put([]byte(cluster.GenerateKey("key-", n)), cluster.GenerateValue(n, valueSize)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatalf("fill %s: %v", id, err)
		}
		if err := engine.Close(); err != nil {
			b.Fatal(err)
		}
		replicas[i] = verify.Replica{ID: verify.ReplicaID(id), Path: path}
	}
	return replicas
}

// generatedRecords returns count records in key order.
func generatedRecords(count int) []storage.Record {
	records := make([]storage.Record, count)
	for n := range records {
		records[n] = storage.Record{
			Key:   []byte(cluster.GenerateKey("key-", n)),
			Value: cluster.GenerateValue(n, valueSize),
		}
	}
	return records
}

func countName(n int) string {
	return fmt.Sprintf("records_%d", n)
}

// reportMemory reports heap usage after a GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, prefix+"_heap_MB")
}
