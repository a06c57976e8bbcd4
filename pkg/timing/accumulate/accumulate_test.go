package accumulate

import (
	"context"
	"runtime"
	"slices"
	"testing"
	"time"
	"weak"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"

	tu "github.com/vnykmshr/coalesce/internal/testutil"
	cerrors "github.com/vnykmshr/coalesce/pkg/common/errors"
	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

func appendInt(n int) func(*[]int) {
	return func(s *[]int) { *s = append(*s, n) }
}

func barrier(t *testing.T, q queue.Queue) {
	t.Helper()
	ctx, cancel := tu.WithTimeout(t)
	defer cancel()
	require.NoError(t, q.Sync(ctx, func(context.Context) {}))
}

func TestDebounce_FoldsBurstAndResets(t *testing.T) {
	const delay = 50 * time.Millisecond
	d := New([]int{0})
	rec := tu.NewRecorder[[]int]()

	start := time.Now()
	require.NoError(t, d.Debounce(delay, appendInt(1), rec.Record))
	require.NoError(t, d.Debounce(delay, appendInt(2), rec.Record))

	calls := rec.WaitFor(t, 1, time.Second)
	assert.GreaterOrEqual(t, calls[0].At.Sub(start), delay)
	assert.Equal(t, []int{0, 1, 2}, calls[0].Value)

	buf, err := d.Buffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, buf, "buffer is reset after the flush")

	require.NoError(t, d.Debounce(delay, appendInt(3), rec.Record))
	calls = rec.WaitFor(t, 2, time.Second)
	assert.Equal(t, []int{0, 3}, calls[1].Value)

	time.Sleep(2 * delay)
	assert.Equal(t, 2, rec.Count())
}

func TestDebounce_LastTaskReceivesBuffer(t *testing.T) {
	q := queue.New(t.Name())
	d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q})
	rec := tu.NewRecorder[string]()

	add := func(n int) func(*int) { return func(v *int) { *v += n } }
	for i, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, d.Debounce(20*time.Millisecond, add(i+1), func(sum int) {
			rec.Record(name)
			assert.Equal(t, 10, sum)
		}))
	}
	rec.WaitFor(t, 1, time.Second)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []string{"d"}, rec.Values())
}

func TestDebounce_CloneGivesEachCycleAFreshBuffer(t *testing.T) {
	q := queue.New(t.Name())
	d := NewWithConfig(map[string]int{"seed": 1}, Config[map[string]int]{
		AccumulationQueue: q,
		TaskQueue:         q,
		Clone: func(m map[string]int) map[string]int {
			out := make(map[string]int, len(m))
			for k, v := range m {
				out[k] = v
			}
			return out
		},
	})
	rec := tu.NewRecorder[map[string]int]()
	count := func(key string) func(*map[string]int) {
		return func(m *map[string]int) { (*m)[key]++ }
	}

	require.NoError(t, d.Debounce(0, count("a"), rec.Record))
	rec.WaitFor(t, 1, time.Second)
	require.NoError(t, d.Debounce(0, count("b"), rec.Record))
	got := rec.WaitFor(t, 2, time.Second)

	assert.Equal(t, map[string]int{"seed": 1, "a": 1}, got[0].Value)
	assert.Equal(t, map[string]int{"seed": 1, "b": 1}, got[1].Value)
	assert.Equal(t, map[string]int{"seed": 1}, d.initial)
}

func TestDebounce_CloneKeepsDeliveredSliceIntact(t *testing.T) {
	q := queue.New(t.Name())
	initial := make([]int, 1, 8)
	d := NewWithConfig(initial, Config[[]int]{
		AccumulationQueue: q,
		TaskQueue:         q,
		Clone:             slices.Clone[[]int],
	})
	rec := tu.NewRecorder[[]int]()

	require.NoError(t, d.Debounce(0, appendInt(1), rec.Record))
	rec.WaitFor(t, 1, time.Second)
	require.NoError(t, d.Debounce(0, appendInt(2), rec.Record))
	got := rec.WaitFor(t, 2, time.Second)

	assert.Equal(t, []int{0, 1}, got[0].Value, "next cycle must not write into a delivered buffer")
	assert.Equal(t, []int{0, 2}, got[1].Value)
	assert.Equal(t, []int{0}, initial)
}

func TestDebounce_FlushRunsOnTaskQueue(t *testing.T) {
	accQ := queue.New(t.Name() + ".acc")
	taskQ := queue.New(t.Name() + ".task")
	d := NewWithConfig([]int{0}, Config[[]int]{
		AccumulationQueue: accQ,
		TaskQueue:         taskQ,
		Clone:             slices.Clone[[]int],
	})
	rec := tu.NewRecorder[[]int]()

	block := make(chan struct{})
	require.NoError(t, taskQ.Async(func(context.Context) { <-block }))

	require.NoError(t, d.Debounce(0, appendInt(1), rec.Record))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.Count(), "flush waits for the task queue")

	// The buffer stays reachable while the task queue is busy.
	buf, err := d.Buffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, buf)

	close(block)
	got := rec.WaitFor(t, 1, time.Second)
	assert.Equal(t, []int{0, 1}, got[0].Value)
}

func TestDebounceContext_InlineOnAccumulationQueue(t *testing.T) {
	q := queue.New(t.Name())
	d := NewWithConfig([]int{0}, Config[[]int]{AccumulationQueue: q, TaskQueue: q})
	rec := tu.NewRecorder[[]int]()

	require.NoError(t, q.Sync(context.Background(), func(ctx context.Context) {
		require.NoError(t, d.DebounceContext(ctx, 0, appendInt(7), rec.Record))
	}))
	got := rec.WaitFor(t, 1, time.Second)
	assert.Equal(t, []int{0, 7}, got[0].Value)
}

func TestAbort_KeepsBuffer(t *testing.T) {
	clock := clockz.NewFakeClock()
	q := queue.NewWithConfig(queue.Config{Label: t.Name(), Clock: clock})
	d := NewWithConfig([]int{0}, Config[[]int]{AccumulationQueue: q, TaskQueue: q, Clone: slices.Clone[[]int]})
	rec := tu.NewRecorder[[]int]()

	require.NoError(t, d.Debounce(time.Second, appendInt(1), rec.Record))
	d.Abort()
	assert.False(t, d.Pending())

	clock.Advance(2 * time.Second)
	clock.BlockUntilReady()
	barrier(t, q)
	assert.Zero(t, rec.Count())

	buf, err := d.Buffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, buf)

	require.NoError(t, d.Debounce(time.Second, appendInt(2), rec.Record))
	clock.Advance(time.Second)
	clock.BlockUntilReady()
	got := rec.WaitFor(t, 1, time.Second)
	assert.Equal(t, []int{0, 1, 2}, got[0].Value)
}

func TestDebounce_NilArguments(t *testing.T) {
	clock := clockz.NewFakeClock()
	q := queue.NewWithConfig(queue.Config{Label: t.Name(), Clock: clock})
	d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q})
	rec := tu.NewRecorder[int]()

	// A nil accumulate only reschedules.
	require.NoError(t, d.Debounce(time.Second, func(v *int) { *v = 5 }, rec.Record))
	require.NoError(t, d.Debounce(time.Second, nil, rec.Record))
	assert.True(t, d.Pending())

	// A nil task folds and cancels the pending flush.
	require.NoError(t, d.Debounce(time.Second, func(v *int) { *v++ }, nil))
	assert.False(t, d.Pending())

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	barrier(t, q)
	assert.Zero(t, rec.Count())

	v, err := d.Buffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, v)
}

func TestDebounce_ConcurrentCallersLoseNothing(t *testing.T) {
	accQ := queue.New(t.Name() + ".acc")
	taskQ := queue.New(t.Name() + ".task")
	d := NewWithConfig(0, Config[int]{AccumulationQueue: accQ, TaskQueue: taskQ})
	rec := tu.NewRecorder[int]()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				if err := d.Debounce(time.Millisecond, func(v *int) { *v++ }, rec.Record); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	tu.Eventually(t, func() bool {
		if d.Pending() {
			return false
		}
		sum := 0
		for _, v := range rec.Values() {
			sum += v
		}
		return sum == 1000
	}, 2*time.Second, 5*time.Millisecond)

	v, err := d.Buffer(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestDebounceContext_Errors(t *testing.T) {
	t.Run("canceled before access", func(t *testing.T) {
		q := queue.New(t.Name())
		d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q})

		block := make(chan struct{})
		require.NoError(t, q.Async(func(context.Context) { <-block }))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := d.DebounceContext(ctx, 0, func(v *int) { *v++ }, func(int) {})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, d.Pending())

		close(block)
		v, err := d.Buffer(context.Background())
		require.NoError(t, err)
		assert.Zero(t, v)
	})

	t.Run("closed accumulation queue", func(t *testing.T) {
		q := queue.New(t.Name())
		d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q})
		<-q.Shutdown()

		err := d.Debounce(0, func(v *int) { *v++ }, func(int) {})
		assert.ErrorIs(t, err, cerrors.ErrClosed)
		assert.False(t, d.Pending())
	})
}

func scheduleAndDrop(q queue.Queue, task func(int)) weak.Pointer[Debouncer[int]] {
	d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q})
	_ = d.Debounce(time.Second, func(v *int) { *v++ }, task)
	return weak.Make(d)
}

func TestDebounce_CollectedBeforeFlush(t *testing.T) {
	clock := clockz.NewFakeClock()
	q := queue.NewWithConfig(queue.Config{Label: t.Name(), Clock: clock})
	rec := tu.NewRecorder[int]()

	ref := scheduleAndDrop(q, rec.Record)
	tu.Eventually(t, func() bool {
		runtime.GC()
		return ref.Value() == nil
	}, time.Second, 10*time.Millisecond)

	clock.Advance(2 * time.Second)
	clock.BlockUntilReady()
	barrier(t, q)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.Count())
}

func TestMetrics(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	q := queue.New(t.Name())
	d := NewWithConfig(0, Config[int]{AccumulationQueue: q, TaskQueue: q, Name: "batch", Metrics: reg})
	rec := tu.NewRecorder[int]()

	inc := func(v *int) { *v++ }
	require.NoError(t, d.Debounce(time.Hour, inc, rec.Record))
	d.Abort()
	require.NoError(t, d.Debounce(time.Hour, inc, rec.Record))
	require.NoError(t, d.Debounce(0, inc, rec.Record))
	rec.WaitFor(t, 1, time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.AccumulateFolded.WithLabelValues("batch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.AccumulateAborted.WithLabelValues("batch")))
	tu.Eventually(t, func() bool {
		return testutil.ToFloat64(reg.AccumulateFlushed.WithLabelValues("batch")) == 1
	}, time.Second, time.Millisecond)
}
