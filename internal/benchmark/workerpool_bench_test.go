package benchmark

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/vnykmshr/coalesce/pkg/dispatch/workerpool"
)

// BenchmarkWorkerPoolSubmit measures task submission performance.
func BenchmarkWorkerPoolSubmit(b *testing.B) {
	workerCounts := []int{2, 4, 8}

	for _, workers := range workerCounts {
		b.Run(workerLabel(workers), func(b *testing.B) {
			pool, err := workerpool.NewSafe(workers, 1000)
			if err != nil {
				b.Fatalf("failed to create pool: %v", err)
			}
			defer func() { <-pool.Shutdown() }()

			task := workerpool.TaskFunc(func(_ context.Context) error {
				return nil
			})

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(task)
			}
		})
	}
}

// BenchmarkWorkerPoolTrySubmit measures the handoff path used by pooled queues.
func BenchmarkWorkerPoolTrySubmit(b *testing.B) {
	pool, err := workerpool.NewSafe(4, 0)
	if err != nil {
		b.Fatalf("failed to create pool: %v", err)
	}
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(_ context.Context) error {
		return nil
	})

	accepted := 0
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if pool.TrySubmit(task) {
			accepted++
		}
	}
	b.ReportMetric(float64(accepted)/float64(b.N), "accepted/op")
}

// BenchmarkWorkerPoolThroughput measures end-to-end task execution.
func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool, err := workerpool.NewSafe(4, 100)
	if err != nil {
		b.Fatalf("failed to create pool: %v", err)
	}
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(_ context.Context) error {
		return nil
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Submit(task)
	}

	// Wait for all tasks to complete
	for pool.TotalCompleted() < int64(b.N) {
		time.Sleep(time.Microsecond)
	}
}

// BenchmarkWorkerPoolContention measures performance under contention.
func BenchmarkWorkerPoolContention(b *testing.B) {
	pool, err := workerpool.NewSafe(8, 500)
	if err != nil {
		b.Fatalf("failed to create pool: %v", err)
	}
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(_ context.Context) error {
		return nil
	})

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Submit(task)
		}
	})
}

// BenchmarkWorkerPoolShutdown measures graceful shutdown performance.
func BenchmarkWorkerPoolShutdown(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		pool, err := workerpool.NewSafe(4, 100)
		if err != nil {
			b.Fatalf("failed to create pool: %v", err)
		}

		task := workerpool.TaskFunc(func(_ context.Context) error {
			return nil
		})
		for j := 0; j < 10; j++ {
			_ = pool.Submit(task)
		}

		<-pool.Shutdown()
	}
}

// workerLabel returns a readable label for worker counts.
func workerLabel(workers int) string {
	return strconv.Itoa(workers) + "workers"
}
