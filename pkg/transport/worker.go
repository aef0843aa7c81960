// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync"
	"sync/atomic"

	logging "github.com/loopholelabs/logging/types"
)

// worker is a restartable background loop. The tick function is responsible
// for bounding its own blocking (queue pops time out, idle polls sleep) so a
// cleared running flag is observed within one tick.
type worker struct {
	name    string
	tick    func()
	running atomic.Bool
	mu      sync.Mutex
	done    chan struct{}
	logger  logging.Logger
}

func newWorker(name string, tick func(), logger logging.Logger) *worker {
	return &worker{
		name:   name,
		tick:   tick,
		logger: logger.SubLogger(name),
	}
}

func (w *worker) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running.Load() {
		return
	}
	w.running.Store(true)
	w.done = make(chan struct{})
	go w.loop(w.done)
}

func (w *worker) loop(done chan struct{}) {
	w.logger.Info().Msg("worker started")
	for w.running.Load() {
		w.tick()
	}
	w.logger.Info().Msg("worker stopped")
	close(done)
}

// stop requests termination and blocks until the loop goroutine has exited.
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running.Load() {
		return
	}
	w.running.Store(false)
	<-w.done
	w.done = nil
}

// restart force-resets the worker: terminate and join the current loop if one
// is running, discard its handle, and spin up a fresh loop in the same role.
func (w *worker) restart() {
	w.stop()
	w.logger.Info().Msg("restarting worker")
	w.start()
}
