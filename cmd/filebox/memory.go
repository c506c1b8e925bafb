package main

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	usageSampleInterval = 100 * time.Millisecond
	fdDir               = "/proc/self/fd"
)

// usageObserver samples the resource usage of a command while it runs and
// remembers the peaks. Open file descriptors are sampled as well, since every
// handle the file box opens holds one.
type usageObserver struct {
	heap       atomic.Uint64
	goroutines atomic.Int64
	fds        atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newUsageObserver starts sampling until the context is done or
// [usageObserver.Stop] is called.
func newUsageObserver(ctx context.Context) *usageObserver {
	ctx, cancel := context.WithCancel(ctx)

	obs := &usageObserver{cancel: cancel}
	obs.sample()

	obs.wg.Add(1)
	go func() {
		defer obs.wg.Done()

		ticker := time.NewTicker(usageSampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				obs.sample()
			}
		}
	}()

	return obs
}

// Stop ends the sampling and logs the peaks at debug level.
func (o *usageObserver) Stop() {
	o.cancel()
	o.wg.Wait()
	o.sample()

	slog.Debug("Resource usage peaked",
		"heap", humanize.Bytes(o.heap.Load()),
		"goroutines", o.goroutines.Load(),
		"fds", o.fds.Load(),
	)
}

func (o *usageObserver) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	raise(&o.goroutines, int64(runtime.NumGoroutine()))

	for {
		cur := o.heap.Load()
		if m.HeapInuse <= cur || o.heap.CompareAndSwap(cur, m.HeapInuse) {
			break
		}
	}

	// Not every platform has a descriptor directory; the peak then stays 0.
	if entries, err := os.ReadDir(fdDir); err == nil {
		raise(&o.fds, int64(len(entries)))
	}
}

func raise(peak *atomic.Int64, v int64) {
	for {
		cur := peak.Load()
		if v <= cur || peak.CompareAndSwap(cur, v) {
			return
		}
	}
}
