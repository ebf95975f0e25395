package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
)

func newLoadedPlugin(t *testing.T, workers, queueSize int) *Plugin {
	t.Helper()
	cfg := config.Default()
	cfg.Service.Name = "scheduler-test"
	cfg.Scheduler.WorkerCount = workers
	cfg.Scheduler.QueueSize = queueSize
	app, err := factory.New(cfg, factory.NewSlogLogger(nil))
	require.NoError(t, err)

	plugin := New()
	require.NoError(t, plugin.OnLoad(app))
	return plugin
}

func TestSchedulerSubmit(t *testing.T) {
	t.Run("should_execute_submitted_jobs", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 2, 10)
		require.NoError(t, plugin.OnStartup(context.Background()))
		defer func() { _ = plugin.OnShutdown(context.Background()) }()

		done := make(chan struct{})
		id, err := plugin.Submit("index-books", func(context.Context) error {
			close(done)
			return nil
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was never executed")
		}
	})

	t.Run("should_reject_submit_before_startup", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 1, 10)
		_, err := plugin.Submit("too-early", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("should_reject_invalid_jobs", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 1, 10)
		_, err := plugin.Submit("", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrJobNameEmpty)
		_, err = plugin.Submit("nil-func", nil)
		assert.ErrorIs(t, err, ErrJobFuncNil)
	})

	t.Run("should_report_full_queue", func(t *testing.T) {
		// No workers, so nothing drains the one-slot queue.
		plugin := newLoadedPlugin(t, 0, 1)
		require.NoError(t, plugin.OnStartup(context.Background()))

		blocked := func(context.Context) error { return nil }
		_, err := plugin.Submit("first", blocked)
		require.NoError(t, err)
		_, err = plugin.Submit("second", blocked)
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("should_generate_distinct_job_ids", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 1, 10)
		require.NoError(t, plugin.OnStartup(context.Background()))
		defer func() { _ = plugin.OnShutdown(context.Background()) }()

		noop := func(context.Context) error { return nil }
		a, err := plugin.Submit("a", noop)
		require.NoError(t, err)
		b, err := plugin.Submit("b", noop)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestSchedulerSchedule(t *testing.T) {
	t.Run("should_reject_invalid_cron_spec", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 1, 10)
		_, err := plugin.Schedule("not a cron spec", "broken", func(context.Context) error { return nil })
		assert.Error(t, err)
	})

	t.Run("should_fire_scheduled_jobs", func(t *testing.T) {
		plugin := newLoadedPlugin(t, 1, 10)

		var runs atomic.Int32
		_, err := plugin.Schedule("@every 100ms", "refresh-keys", func(context.Context) error {
			runs.Add(1)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, plugin.OnStartup(context.Background()))
		defer func() { _ = plugin.OnShutdown(context.Background()) }()

		require.Eventually(t, func() bool {
			return runs.Load() >= 2
		}, 3*time.Second, 25*time.Millisecond)
	})
}

func TestSchedulerShutdownDrainsQueue(t *testing.T) {
	plugin := newLoadedPlugin(t, 1, 10)
	require.NoError(t, plugin.OnStartup(context.Background()))

	var runs atomic.Int32
	for i := 0; i < 5; i++ {
		_, err := plugin.Submit("drain-me", func(context.Context) error {
			runs.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, plugin.OnShutdown(context.Background()))
	assert.Equal(t, int32(5), runs.Load())

	// Double shutdown is a no-op.
	assert.NoError(t, plugin.OnShutdown(context.Background()))

	_, err := plugin.Submit("after-shutdown", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSchedulerSubmitDuringShutdown(t *testing.T) {
	// Submitters racing a shutdown must either enqueue or get ErrNotStarted;
	// the queue close must never catch a submitter mid-send.
	for i := 0; i < 50; i++ {
		plugin := newLoadedPlugin(t, 2, 64)
		require.NoError(t, plugin.OnStartup(context.Background()))

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					_, err := plugin.Submit("race", func(context.Context) error { return nil })
					if err != nil {
						assert.True(t,
							errors.Is(err, ErrNotStarted) || errors.Is(err, ErrQueueFull),
							"unexpected submit error: %v", err)
					}
				}
			}()
		}
		require.NoError(t, plugin.OnShutdown(context.Background()))
		wg.Wait()
	}
}
