package benchmark

import (
	"testing"

	"github.com/yndnr/replicacheck/internal/storage"
	"github.com/yndnr/replicacheck/internal/verify"
)

// BenchmarkCollect benchmarks reading three replicas in parallel.
func BenchmarkCollect(b *testing.B) {
	for _, count := range RecordCounts {
		b.Run(countName(count), func(b *testing.B) {
			replicas := writeReplicas(b, b.TempDir(), count, "A", "B", "C")
			ctx := quietContext(b)

			opts := storage.DefaultOptions()
			opts.Logger = quiet
			collector := verify.NewCollector(verify.CollectorConfig{Store: opts})

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				agg := collector.Collect(ctx, replicas)
				if len(agg.Failed()) != 0 {
					b.Fatalf("collection failed: %v", agg.Failed()[0].Err)
				}
			}

			b.StopTimer()
			b.ReportMetric(float64(count*len(replicas)*b.N)/b.Elapsed().Seconds(), "records/s")
			reportMemory(b, "mem")
		})
	}
}

// BenchmarkVerify benchmarks a full run over three identical replicas.
func BenchmarkVerify(b *testing.B) {
	for _, count := range RecordCounts {
		b.Run(countName(count), func(b *testing.B) {
			replicas := writeReplicas(b, b.TempDir(), count, "A", "B", "C")
			ctx := quietContext(b)

			opts := storage.DefaultOptions()
			opts.Logger = quiet
			verifier := verify.NewVerifier(
				verify.NewCollector(verify.CollectorConfig{Store: opts}),
				verify.NewComparator("A", nil),
			)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if rep := verifier.Run(ctx, replicas); !rep.Passed {
					b.Fatalf("verdict = %s", rep.Verdict)
				}
			}
		})
	}
}

// BenchmarkDataset benchmarks building a dataset and its fingerprint.
func BenchmarkDataset(b *testing.B) {
	for _, count := range RecordCounts {
		b.Run(countName(count), func(b *testing.B) {
			records := generatedRecords(count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				ds, err := verify.NewDataset(records)
				if err != nil {
					b.Fatal(err)
				}
				_ = ds.Fingerprint()
			}
		})
	}
}
