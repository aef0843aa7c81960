// SPDX-License-Identifier: Apache-2.0

// Package router maps outbound message codes to handlers. Status and error
// codes are logged locally; progress and result codes are forwarded to the
// connection for transmission. Routing never propagates a failure to the
// caller: one bad message must not kill the response worker.
package router

import (
	"fmt"

	logging "github.com/loopholelabs/logging/types"

	"github.com/tessellate/bridge/pkg/message"
)

// SendFunc transmits an envelope to the connected peer.
type SendFunc func(*message.Envelope) error

type Handler func(*message.Envelope)

type Router struct {
	handlers map[message.Code]Handler
	fallback Handler
	send     SendFunc
	logger   logging.Logger
}

// New builds the static routing table over the full code set.
func New(send SendFunc, logger logging.Logger) *Router {
	r := &Router{
		send:   send,
		logger: logger.SubLogger("router"),
	}
	r.fallback = func(env *message.Envelope) {
		r.logger.Warn().Str("code", string(env.Code)).Msg("unrecognized message code")
	}
	r.handlers = map[message.Code]Handler{
		message.CodeStatus: func(env *message.Envelope) {
			r.logger.Info().Str("status", stringify(env.Message)).Msg("status update")
		},
		message.CodeError: func(env *message.Envelope) {
			r.logger.Error().Str("error", stringify(env.Message)).Msg("job error")
		},
		message.CodeEmbeddingLoadFailed: func(env *message.Envelope) {
			r.logger.Error().Str("embedding", stringify(env.Message)).Msg("embedding load failed")
		},
		message.CodeProgress: func(env *message.Envelope) {
			r.transmit(env)
		},
		message.CodeImageGenerated: func(env *message.Envelope) {
			r.transmit(env)
		},
	}
	return r
}

// Dispatch routes one raw outbound queue entry. Entries that cannot be
// destructured into an envelope are dropped; handler panics are contained.
func (r *Router) Dispatch(value any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error().Str("panic", fmt.Sprintf("%v", recovered)).Msg("handler panicked, message dropped")
		}
	}()
	env, err := message.Coerce(value)
	if err != nil {
		r.logger.Debug().Err(err).Msg("dropping malformed outbound message")
		return
	}
	handler, ok := r.handlers[env.Code]
	if !ok {
		handler = r.fallback
	}
	handler(env)
}

func (r *Router) transmit(env *message.Envelope) {
	err := r.send(env)
	if err != nil {
		r.logger.Error().Err(err).Str("code", string(env.Code)).Msg("unable to transmit message")
	}
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
