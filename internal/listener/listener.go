// SPDX-License-Identifier: Apache-2.0

// Package listener wraps a TCP listening endpoint for the single-peer
// transport. Accepts are deadline-bounded so the connection loop can observe
// shutdown and apply the keep-alive policy between attempts; the transport
// serves at most one peer at a time, so no accept backlog is maintained.
package listener

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	logging "github.com/loopholelabs/logging/types"
)

var (
	OptionsErr = errors.New("invalid options")
	ListenErr  = errors.New("unable to listen")
	TimeoutErr = errors.New("accept timed out")
	ClosedErr  = errors.New("listener closed")
	CloseErr   = errors.New("unable to close listener")
)

const (
	network = "tcp"
)

const (
	stateListening = iota
	stateClosed
)

type Options struct {
	Addr   string
	Logger logging.Logger
}

func validOptions(options *Options) bool {
	return options != nil && options.Addr != "" && options.Logger != nil
}

type Listener struct {
	listener *net.TCPListener
	state    atomic.Uint32
	logger   logging.Logger
}

func New(options *Options) (*Listener, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}

	addr, err := net.ResolveTCPAddr(network, options.Addr)
	if err != nil {
		return nil, errors.Join(ListenErr, err)
	}
	tcpListener, err := net.ListenTCP(network, addr)
	if err != nil {
		return nil, errors.Join(ListenErr, err)
	}

	lis := &Listener{
		listener: tcpListener,
		logger:   options.Logger.SubLogger("listener"),
	}
	lis.state.Store(stateListening)
	lis.logger.Info().Str("addr", tcpListener.Addr().String()).Msg("listening")
	return lis, nil
}

// Accept waits up to timeout for one peer connection. A timeout returns
// TimeoutErr so the caller can apply its keep-alive policy; a closed listener
// returns ClosedErr.
func (lis *Listener) Accept(timeout time.Duration) (net.Conn, error) {
	if lis.state.Load() != stateListening {
		return nil, ClosedErr
	}
	err := lis.listener.SetDeadline(time.Now().Add(timeout))
	if err != nil {
		return nil, errors.Join(ClosedErr, err)
	}
	conn, err := lis.listener.AcceptTCP()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, TimeoutErr
		}
		if lis.state.Load() == stateClosed {
			return nil, ClosedErr
		}
		return nil, errors.Join(ClosedErr, err)
	}
	return conn, nil
}

// Addr reports the bound address, useful when listening on an ephemeral port.
func (lis *Listener) Addr() net.Addr {
	return lis.listener.Addr()
}

func (lis *Listener) Close() error {
	if lis.state.CompareAndSwap(stateListening, stateClosed) {
		err := lis.listener.Close()
		if err != nil {
			return errors.Join(CloseErr, err)
		}
	}
	return nil
}
