// Package benchmarks provides performance benchmarks for dispatch throughput.
package benchmarks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/comalice/adlayers"
)

// BenchmarkParallelSessions dispatches from several goroutines, each with
// its own Session, since a Session is not safe for concurrent use.
func BenchmarkParallelSessions(b *testing.B) {
	const workers = 8
	perWorker := b.N / workers
	if perWorker == 0 {
		perWorker = 1
	}
	sessions := make([]*adlayers.Session, workers)
	for i := range sessions {
		s, err := adlayers.New()
		if err != nil {
			b.Fatal(err)
		}
		sessions[i] = s
	}

	var calls, failed int64
	var wg sync.WaitGroup
	b.ReportAllocs()
	b.ResetTimer()
	for _, s := range sessions {
		wg.Add(1)
		go func(s *adlayers.Session) {
			defer wg.Done()
			x := adlayers.ArrayOf(Vector(16))
			err := Within(context.Background(), s, 2, func(ctx context.Context) error {
				for i := 0; i < perWorker; i++ {
					if _, err := s.Call(ctx, "add", x, x); err != nil {
						return err
					}
					atomic.AddInt64(&calls, 1)
				}
				return nil
			})
			if err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}(s)
	}
	wg.Wait()
	b.StopTimer()
	if failed > 0 {
		b.Fatalf("%d workers failed", failed)
	}
	b.ReportMetric(float64(calls), "calls")
}
