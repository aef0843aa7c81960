// SPDX-License-Identifier: Apache-2.0

// Package transport implements the worker-process side of the inference
// bridge: a single-peer connection loop feeding an inbound job queue, plus
// two restartable workers draining the inbound and outbound queues.
package transport

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/loopholelabs/logging/types"

	"github.com/tessellate/bridge/internal/listener"
	"github.com/tessellate/bridge/internal/queue"
	"github.com/tessellate/bridge/internal/router"
	"github.com/tessellate/bridge/pkg/message"
)

var (
	OptionsErr     = errors.New("invalid options")
	StartErr       = errors.New("unable to start transport")
	AlreadyRunErr  = errors.New("transport already running")
	ClosedErr      = errors.New("transport closed")
	NotStartedErr  = errors.New("transport not started")
	UnknownRoleErr = errors.New("unknown worker role")
	EnqueueErr     = errors.New("unable to enqueue response")
)

const (
	defaultAcceptTimeout = time.Second
	defaultReadTimeout   = time.Second

	// popTimeout bounds the response worker's wait on the outbound queue;
	// pollInterval is the request worker's idle sleep.
	popTimeout   = time.Second
	pollInterval = 10 * time.Millisecond
)

// WorkerRole selects a worker for Restart.
type WorkerRole uint32

const (
	RoleRequest WorkerRole = iota
	RoleResponse
)

// Controller owns the lifecycle of the connection loop and both workers: the
// queues between them, the running and processing flags, and the single
// graceful-shutdown entry point.
type Controller struct {
	opts *Options

	inbound  *queue.Queue[any]
	outbound *queue.Queue[any]

	lis  *listener.Listener
	loop *connLoop

	requestWorker  *worker
	responseWorker *worker
	router         *router.Router

	running    atomic.Bool
	processing atomic.Bool
	started    atomic.Bool
	closed     atomic.Bool

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	logger logging.Logger
}

func New(options *Options) (*Controller, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	c := &Controller{
		opts:     options,
		inbound:  queue.New[any](options.Config.QueueSize),
		outbound: queue.New[any](options.Config.QueueSize),
		logger:   options.Logger.SubLogger("transport"),
	}
	c.router = router.New(c.sendEnvelope, options.Logger)
	c.requestWorker = newWorker("request-worker", c.requestTick, options.Logger)
	c.responseWorker = newWorker("response-worker", c.responseTick, options.Logger)
	return c, nil
}

// Start binds the endpoint and launches the connection loop and both workers.
func (c *Controller) Start() error {
	if c.closed.Load() {
		return ClosedErr
	}
	if !c.running.CompareAndSwap(false, true) {
		return AlreadyRunErr
	}
	lis, err := listener.New(&listener.Options{
		Addr:   c.opts.Config.Addr(),
		Logger: c.opts.Logger,
	})
	if err != nil {
		c.running.Store(false)
		return errors.Join(StartErr, err)
	}
	c.lis = lis
	c.loop = newConnLoop(c.opts, lis, c.inbound, &c.running)
	c.started.Store(true)
	c.processing.Store(true)

	c.requestWorker.start()
	c.responseWorker.start()

	c.wg.Add(1)
	go func() {
		c.loop.run()
		c.wg.Done()
		// A terminated loop (timeout or peer loss with keep-alive disabled)
		// escalates to the full shutdown sequence.
		if c.running.Load() {
			_ = c.Close()
		}
	}()

	c.logger.Info().Str("addr", lis.Addr().String()).Bool("keep_alive", c.opts.Config.KeepAlive).Msg("transport started")
	return nil
}

// Addr reports the bound endpoint address.
func (c *Controller) Addr() (net.Addr, error) {
	if !c.started.Load() {
		return nil, NotStartedErr
	}
	return c.lis.Addr(), nil
}

// Close is the graceful-shutdown entry point, also reached via the interrupt
// signal: it clears the running flag, closes the peer and listening handles
// to unblock pending reads, and joins the connection loop and both workers.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.running.Store(false)
		c.processing.Store(false)
		if c.loop != nil {
			c.loop.closePeer()
		}
		if c.lis != nil {
			c.closeErr = c.lis.Close()
		}
		c.wg.Wait()
		c.requestWorker.stop()
		c.responseWorker.stop()
		c.logger.Info().Msg("transport closed")
	})
	return c.closeErr
}

// Cancel aborts the in-flight job via the external processor's callback and
// drains the inbound queue so no stale queued jobs run afterwards.
func (c *Controller) Cancel() {
	if c.opts.OnCancel != nil {
		c.opts.OnCancel()
	}
	dropped := c.inbound.Drain()
	c.logger.Info().Int("dropped", dropped).Msg("cancel requested, inbound queue drained")
}

// Pause stops the request worker from submitting queued jobs; entries keep
// accumulating until Resume.
func (c *Controller) Pause() {
	c.processing.Store(false)
}

func (c *Controller) Resume() {
	c.processing.Store(true)
}

// Restart force-resets one worker: terminate and join it if running, then
// spin up a fresh loop in the same role.
func (c *Controller) Restart(role WorkerRole) error {
	switch role {
	case RoleRequest:
		c.requestWorker.restart()
	case RoleResponse:
		c.responseWorker.restart()
	default:
		return UnknownRoleErr
	}
	return nil
}

// EnqueueResponse is the entry point for the external job processor: status,
// progress, error, and result envelopes are queued here at the processor's
// own pace and drained by the response worker.
func (c *Controller) EnqueueResponse(entry any) error {
	err := c.outbound.Push(entry)
	if err != nil {
		c.logger.Warn().Msg("outbound queue is full, response dropped")
		return errors.Join(EnqueueErr, err)
	}
	return nil
}

func (c *Controller) requestTick() {
	if c.processing.Load() {
		entry, ok := c.inbound.TryPop()
		if ok {
			if s, isString := entry.(string); isString && s == QuitSentinel {
				// Observed but has no effect; kept faithful to the protocol.
				c.logger.Debug().Msg("quit sentinel observed")
				return
			}
			c.opts.Submit(entry)
			return
		}
	}
	time.Sleep(pollInterval)
}

func (c *Controller) responseTick() {
	entry, ok := c.outbound.Pop(popTimeout)
	if !ok || entry == nil {
		return
	}
	c.router.Dispatch(entry)
}

func (c *Controller) sendEnvelope(env *message.Envelope) error {
	if c.loop == nil {
		return NotStartedErr
	}
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	return c.loop.send(payload)
}
