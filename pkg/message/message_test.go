// SPDX-License-Identifier: Apache-2.0

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	encoded, err := (&Envelope{
		Code:    CodeProgress,
		Message: "50%",
	}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"PROGRESS","message":"50%"}`, string(encoded))

	var decoded Envelope
	require.NoError(t, decoded.Decode(encoded))
	assert.Equal(t, CodeProgress, decoded.Code)
	assert.Equal(t, "50%", decoded.Message)
}

func TestDecodeRejectsMissingCode(t *testing.T) {
	var decoded Envelope
	err := decoded.Decode([]byte(`{"message":"no code"}`))
	assert.ErrorIs(t, err, DecodeErr)

	err = decoded.Decode([]byte(`not json`))
	assert.ErrorIs(t, err, DecodeErr)
}

func TestCoerce(t *testing.T) {
	t.Run("Pointer", func(t *testing.T) {
		env, err := Coerce(&Envelope{Code: CodeStatus, Message: "ready"})
		require.NoError(t, err)
		assert.Equal(t, CodeStatus, env.Code)
	})

	t.Run("Value", func(t *testing.T) {
		env, err := Coerce(Envelope{Code: CodeResult, Message: map[string]any{"image": "base64data"}})
		require.NoError(t, err)
		assert.Equal(t, CodeImageGenerated, env.Code)
	})

	t.Run("RawObject", func(t *testing.T) {
		env, err := Coerce(map[string]any{"code": "ERROR", "message": "boom"})
		require.NoError(t, err)
		assert.Equal(t, CodeError, env.Code)
		assert.Equal(t, "boom", env.Message)
	})

	t.Run("WrongShape", func(t *testing.T) {
		_, err := Coerce(map[string]any{"status": "no code key"})
		assert.ErrorIs(t, err, EnvelopeErr)

		_, err = Coerce("just a string")
		assert.ErrorIs(t, err, EnvelopeErr)

		_, err = Coerce(nil)
		assert.ErrorIs(t, err, EnvelopeErr)

		_, err = Coerce((*Envelope)(nil))
		assert.ErrorIs(t, err, EnvelopeErr)
	})
}
