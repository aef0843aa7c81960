// SPDX-License-Identifier: Apache-2.0

// Package message defines the outbound envelope exchanged with the peer and
// the fixed set of message codes used to route it.
package message

import (
	"encoding/json"
	"errors"
)

var (
	DecodeErr   = errors.New("unable to decode envelope")
	EncodeErr   = errors.New("unable to encode envelope")
	EnvelopeErr = errors.New("value is not an envelope")
)

// Code tags an outbound envelope. Codes are carried on the wire as JSON
// strings; both ends must agree on the set out of band.
type Code string

const (
	CodeStatus              Code = "STATUS"
	CodeError               Code = "ERROR"
	CodeProgress            Code = "PROGRESS"
	CodeImageGenerated      Code = "IMAGE_GENERATED"
	CodeEmbeddingLoadFailed Code = "EMBEDDING_LOAD_FAILED"
)

// CodeResult is the generic alias for CodeImageGenerated: both tag a final
// job result and route identically.
const CodeResult = CodeImageGenerated

// Codes lists every defined code, in no particular order.
func Codes() []Code {
	return []Code{
		CodeStatus,
		CodeError,
		CodeProgress,
		CodeImageGenerated,
		CodeEmbeddingLoadFailed,
	}
}

// Envelope is the outbound unit of communication: a routing code plus an
// arbitrary payload (a bare string for status/progress lines, a structured
// object for job results).
type Envelope struct {
	Code    Code `json:"code"`
	Message any  `json:"message"`
}

func (e *Envelope) Encode() ([]byte, error) {
	encoded, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Join(EncodeErr, err)
	}
	return encoded, nil
}

func (e *Envelope) Decode(payload []byte) error {
	err := json.Unmarshal(payload, e)
	if err != nil {
		return errors.Join(DecodeErr, err)
	}
	if e.Code == "" {
		return errors.Join(DecodeErr, EnvelopeErr)
	}
	return nil
}

// Coerce destructures an arbitrary queue entry into an Envelope. The outbound
// queue accepts raw values from the job processor, so entries may arrive as
// typed envelopes or as plain decoded JSON objects.
func Coerce(value any) (*Envelope, error) {
	switch v := value.(type) {
	case *Envelope:
		if v == nil || v.Code == "" {
			return nil, EnvelopeErr
		}
		return v, nil
	case Envelope:
		if v.Code == "" {
			return nil, EnvelopeErr
		}
		return &v, nil
	case map[string]any:
		code, ok := v["code"].(string)
		if !ok || code == "" {
			return nil, EnvelopeErr
		}
		return &Envelope{
			Code:    Code(code),
			Message: v["message"],
		}, nil
	default:
		return nil, EnvelopeErr
	}
}
