// SPDX-License-Identifier: Apache-2.0

package router

import (
	"errors"
	"testing"

	"github.com/loopholelabs/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate/bridge/pkg/message"
)

func collectingSend(sent *[]*message.Envelope) SendFunc {
	return func(env *message.Envelope) error {
		*sent = append(*sent, env)
		return nil
	}
}

func TestTotalCoverage(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	var sent []*message.Envelope
	r := New(collectingSend(&sent), logger)

	for _, code := range message.Codes() {
		assert.NotPanics(t, func() {
			r.Dispatch(&message.Envelope{Code: code, Message: "payload"})
		}, "code %s", code)
	}

	// Only PROGRESS and IMAGE_GENERATED reach the wire.
	require.Len(t, sent, 2)
	assert.Equal(t, message.CodeProgress, sent[0].Code)
	assert.Equal(t, message.CodeImageGenerated, sent[1].Code)
}

func TestUnknownCodeUsesFallback(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	var sent []*message.Envelope
	r := New(collectingSend(&sent), logger)

	assert.NotPanics(t, func() {
		r.Dispatch(&message.Envelope{Code: "NOT_A_CODE", Message: "x"})
	})
	assert.Empty(t, sent)
}

func TestMalformedEntryDropped(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	var sent []*message.Envelope
	r := New(collectingSend(&sent), logger)

	for _, entry := range []any{
		nil,
		"bare string",
		42,
		map[string]any{"message": "missing code"},
		(*message.Envelope)(nil),
	} {
		assert.NotPanics(t, func() {
			r.Dispatch(entry)
		})
	}
	assert.Empty(t, sent)
}

func TestRawObjectEntry(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	var sent []*message.Envelope
	r := New(collectingSend(&sent), logger)

	r.Dispatch(map[string]any{"code": "PROGRESS", "message": "50%"})
	require.Len(t, sent, 1)
	assert.Equal(t, message.CodeProgress, sent[0].Code)
	assert.Equal(t, "50%", sent[0].Message)
}

func TestSendFailureContained(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	r := New(func(*message.Envelope) error {
		return errors.New("peer gone")
	}, logger)

	assert.NotPanics(t, func() {
		r.Dispatch(&message.Envelope{Code: message.CodeProgress, Message: "50%"})
	})
}

func TestHandlerPanicContained(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())
	r := New(func(*message.Envelope) error {
		panic("send exploded")
	}, logger)

	assert.NotPanics(t, func() {
		r.Dispatch(&message.Envelope{Code: message.CodeResult, Message: "x"})
	})
}
