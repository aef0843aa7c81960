// SPDX-License-Identifier: Apache-2.0

// Package client implements the peer side of the bridge: the lightweight GUI
// process dials the worker, sends framed job requests, and receives
// status/progress/result envelopes through a callback. Lost connections are
// redialed with bounded exponential backoff.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	logging "github.com/loopholelabs/logging/types"
	"github.com/loopholelabs/polyglot/v2"

	"github.com/tessellate/bridge/internal/frame"
	"github.com/tessellate/bridge/pkg/message"
)

type DialFunc func() (net.Conn, error)

type MessageFunc func(*message.Envelope)

const (
	minBackoff = time.Millisecond * 5
	maxBackoff = time.Second
)

var (
	OptionsErr      = errors.New("invalid options")
	EncodeErr       = errors.New("unable to encode job")
	NotConnectedErr = errors.New("not connected")
	WriteErr        = errors.New("unable to write job")
)

type Options struct {
	Dial       DialFunc
	OnMessage  MessageFunc
	PacketSize int
	Logger     logging.Logger
}

func validOptions(options *Options) bool {
	return options != nil &&
		options.Dial != nil &&
		options.OnMessage != nil &&
		options.PacketSize > 0 &&
		options.Logger != nil
}

type Client struct {
	opts *Options

	connMu sync.Mutex
	conn   net.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logging.Logger
}

func New(options *Options) (*Client, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	c := &Client{
		opts:   options,
		logger: options.Logger.SubLogger("client"),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.loop()
	return c, nil
}

func (c *Client) Close() error {
	c.cancel()
	c.closeConn()
	c.wg.Wait()
	return nil
}

// Connected reports whether a live connection to the worker exists right now.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Send frames job as UTF-8 JSON and writes every packet to the worker. The
// response, if any, arrives later via OnMessage.
func (c *Client) Send(job any) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return errors.Join(EncodeErr, err)
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return NotConnectedErr
	}
	buf := polyglot.GetBuffer()
	defer polyglot.PutBuffer(buf)
	err = frame.Append(buf, payload, c.opts.PacketSize)
	if err != nil {
		return errors.Join(WriteErr, err)
	}
	stream := buf.Bytes()
	for off := 0; off < len(stream); off += c.opts.PacketSize {
		_, err = c.conn.Write(stream[off : off+c.opts.PacketSize])
		if err != nil {
			return errors.Join(WriteErr, err)
		}
	}
	return nil
}

func (c *Client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		conn := c.connect()
		if conn == nil {
			return
		}
		c.logger.Info().Str("worker", conn.RemoteAddr().String()).Msg("connected")
		c.setConn(conn)
		c.read(conn)
		c.setConn(nil)
		_ = conn.Close()
	}
}

// connect redials until it succeeds or the client is closed, doubling the
// backoff up to maxBackoff between attempts.
func (c *Client) connect() net.Conn {
	var backoff time.Duration
	for {
		select {
		case <-c.ctx.Done():
			return nil
		default:
		}
		conn, err := c.opts.Dial()
		if err == nil {
			return conn
		}
		c.logger.Error().Err(err).Msg("unable to connect")
		if backoff == 0 {
			backoff = minBackoff
		} else if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

func (c *Client) read(conn net.Conn) {
	decoder, err := frame.NewDecoder(c.opts.PacketSize)
	if err != nil {
		c.logger.Error().Err(err).Msg("unable to create decoder")
		return
	}
	buf := make([]byte, c.opts.PacketSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, payload := range decoder.Feed(buf[:n]) {
				c.deliver(payload)
			}
		}
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Warn().Err(err).Msg("connection lost")
			}
			return
		}
	}
}

func (c *Client) deliver(payload []byte) {
	var env message.Envelope
	err := env.Decode(payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("discarding malformed envelope")
		return
	}
	c.opts.OnMessage(&env)
}

func (c *Client) setConn(conn net.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
