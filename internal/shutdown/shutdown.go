// SPDX-License-Identifier: Apache-2.0

// Package shutdown binds an interrupt-derived context to the transport's
// graceful close: when the context fires, the registered cleanup runs exactly
// once. Stop detaches the watcher without running the cleanup.
package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	CleanupErr = errors.New("unable to clean up")
)

const (
	stateWatching = iota
	stateStopped
)

type CleanupFunc func() error

type Watcher struct {
	cleanup  CleanupFunc
	stop     chan struct{}
	result   chan error
	state    atomic.Uint32
	stopErr  error
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func Watch(ctx context.Context, cleanup CleanupFunc) *Watcher {
	w := &Watcher{
		cleanup: cleanup,
		stop:    make(chan struct{}),
		result:  make(chan error, 1),
	}
	w.wg.Add(1)
	go w.watch(ctx)
	return w
}

// Stop detaches the watcher. If the context already fired, Stop returns the
// cleanup's error; otherwise the cleanup never runs.
func (w *Watcher) Stop() error {
	if w.state.CompareAndSwap(stateWatching, stateStopped) {
		w.stopOnce.Do(func() {
			close(w.stop)
		})
		w.wg.Wait()
		w.stopErr = <-w.result
	}
	return w.stopErr
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()
	select {
	case <-ctx.Done():
		err := w.cleanup()
		if err != nil {
			w.result <- errors.Join(CleanupErr, err)
			return
		}
		w.result <- nil
	case <-w.stop:
		close(w.result)
	}
}
