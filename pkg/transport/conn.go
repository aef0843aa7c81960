// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	logging "github.com/loopholelabs/logging/types"
	"github.com/loopholelabs/polyglot/v2"

	"github.com/tessellate/bridge/internal/frame"
	"github.com/tessellate/bridge/internal/listener"
	"github.com/tessellate/bridge/internal/queue"
)

var (
	NoPeerErr = errors.New("no connected peer")
	SendErr   = errors.New("unable to send message")
)

// QuitSentinel is the bare JSON string a peer may send to signal quit. The
// request worker observes it without acting on it, mirroring the peer
// protocol, which defines the sentinel but attaches no behavior to it.
const QuitSentinel = "quit"

type serveResult int

const (
	servePeerClosed serveResult = iota
	serveReadTimeout
	serveShutdown
)

// connLoop owns the listening endpoint and the active peer connection. It is
// the sole reader of the peer socket; the response worker is the sole writer,
// through send.
type connLoop struct {
	packetSize    int
	keepAlive     bool
	acceptTimeout time.Duration
	readTimeout   time.Duration

	lis     *listener.Listener
	inbound *queue.Queue[any]
	running *atomic.Bool

	peerMu sync.Mutex
	peer   net.Conn

	logger logging.Logger
}

func newConnLoop(options *Options, lis *listener.Listener, inbound *queue.Queue[any], running *atomic.Bool) *connLoop {
	acceptTimeout := options.AcceptTimeout
	if acceptTimeout == 0 {
		acceptTimeout = defaultAcceptTimeout
	}
	readTimeout := options.ReadTimeout
	if readTimeout == 0 {
		readTimeout = defaultReadTimeout
	}
	return &connLoop{
		packetSize:    options.Config.PacketSize,
		keepAlive:     options.Config.KeepAlive,
		acceptTimeout: acceptTimeout,
		readTimeout:   readTimeout,
		lis:           lis,
		inbound:       inbound,
		running:       running,
		logger:        options.Logger.SubLogger("conn"),
	}
}

// run accepts and serves one peer at a time until shutdown, or until a
// timeout with keep-alive disabled terminates the loop.
func (l *connLoop) run() {
	for l.running.Load() {
		conn, err := l.lis.Accept(l.acceptTimeout)
		if err != nil {
			if errors.Is(err, listener.TimeoutErr) {
				if l.keepAlive {
					continue
				}
				l.logger.Info().Msg("accept timed out with keep-alive disabled, terminating")
				return
			}
			if !errors.Is(err, listener.ClosedErr) {
				l.logger.Error().Err(err).Msg("unable to accept connection")
			}
			return
		}
		result := l.serve(conn)
		switch result {
		case serveShutdown:
			return
		case servePeerClosed, serveReadTimeout:
			if !l.keepAlive {
				l.logger.Info().Msg("peer lost with keep-alive disabled, terminating")
				return
			}
		}
	}
}

// serve reads framed bytes from one peer until it disconnects. A read
// timeout keeps the session alive when keep-alive is on; only the session id
// distinguishes messages from consecutive peers in the logs.
func (l *connLoop) serve(conn net.Conn) serveResult {
	session := uuid.New().String()
	l.logger.Info().Str("session", session).Str("peer", conn.RemoteAddr().String()).Msg("peer connected")

	l.setPeer(conn)
	defer func() {
		l.setPeer(nil)
		_ = conn.Close()
		l.logger.Info().Str("session", session).Msg("session ended")
	}()

	decoder, err := frame.NewDecoder(l.packetSize)
	if err != nil {
		l.logger.Error().Err(err).Msg("unable to create decoder")
		return serveShutdown
	}

	buf := make([]byte, l.packetSize)
	for l.running.Load() {
		err = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		if err != nil {
			return servePeerClosed
		}
		n, err := conn.Read(buf)
		if n > 0 {
			for _, payload := range decoder.Feed(buf[:n]) {
				l.dispatch(session, payload)
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if l.keepAlive {
					continue
				}
				return serveReadTimeout
			}
			if !l.running.Load() {
				return serveShutdown
			}
			if !errors.Is(err, io.EOF) {
				l.logger.Warn().Err(err).Str("session", session).Msg("read failed")
			}
			return servePeerClosed
		}
	}
	return serveShutdown
}

// dispatch parses one reassembled payload and queues it for the request
// worker. Malformed JSON is logged and discarded; the codec has already reset
// so later messages are unaffected.
func (l *connLoop) dispatch(session string, payload []byte) {
	var decoded any
	err := json.Unmarshal(payload, &decoded)
	if err != nil {
		l.logger.Error().Err(err).Str("session", session).Msg("discarding malformed message")
		return
	}
	err = l.inbound.Push(decoded)
	if err != nil {
		l.logger.Warn().Str("session", session).Msg("inbound queue is full, message dropped")
	}
}

// send frames payload and writes every packet, terminator included,
// sequentially to the peer. Single-writer: only the response worker calls it.
func (l *connLoop) send(payload []byte) error {
	l.peerMu.Lock()
	defer l.peerMu.Unlock()
	if l.peer == nil {
		return NoPeerErr
	}
	buf := polyglot.GetBuffer()
	defer polyglot.PutBuffer(buf)
	err := frame.Append(buf, payload, l.packetSize)
	if err != nil {
		return errors.Join(SendErr, err)
	}
	stream := buf.Bytes()
	for off := 0; off < len(stream); off += l.packetSize {
		_, err = l.peer.Write(stream[off : off+l.packetSize])
		if err != nil {
			return errors.Join(SendErr, err)
		}
	}
	return nil
}

func (l *connLoop) hasPeer() bool {
	l.peerMu.Lock()
	defer l.peerMu.Unlock()
	return l.peer != nil
}

func (l *connLoop) setPeer(conn net.Conn) {
	l.peerMu.Lock()
	l.peer = conn
	l.peerMu.Unlock()
}

// closePeer unblocks a pending read during shutdown.
func (l *connLoop) closePeer() {
	l.peerMu.Lock()
	defer l.peerMu.Unlock()
	if l.peer != nil {
		_ = l.peer.Close()
	}
}
