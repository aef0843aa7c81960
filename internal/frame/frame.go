// SPDX-License-Identifier: Apache-2.0

// Package frame implements the packet framing used on the wire: a message is
// split into fixed-size data packets right-padded with 0x20, followed by a
// single all-0x00 terminator packet. Padding with 0x20 guarantees that no data
// packet can ever be bit-identical to the terminator.
package frame

import (
	"errors"

	"github.com/loopholelabs/polyglot/v2"
)

var (
	PacketSizeErr = errors.New("invalid packet size")
)

const (
	// PadByte fills the tail of a partial data packet.
	PadByte = 0x20

	// TerminatorByte fills the terminator packet.
	TerminatorByte = 0x00
)

// Append writes the framed form of payload into buf: every data packet padded
// to packetSize with PadByte, then one terminator packet. The resulting buffer
// length is always a multiple of packetSize.
func Append(buf *polyglot.Buffer, payload []byte, packetSize int) error {
	if packetSize < 1 {
		return PacketSizeErr
	}
	padding := make([]byte, packetSize)
	for i := range padding {
		padding[i] = PadByte
	}
	if len(payload) == 0 {
		// An empty payload still produces one (fully padded) data packet.
		buf.Write(padding)
	}
	for off := 0; off < len(payload); off += packetSize {
		end := off + packetSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[off:end]
		buf.Write(chunk)
		if len(chunk) < packetSize {
			buf.Write(padding[:packetSize-len(chunk)])
		}
	}
	buf.Write(make([]byte, packetSize))
	return nil
}

// Encode frames payload into an ordered packet list. The returned slices
// share one backing array holding the whole framed stream.
func Encode(payload []byte, packetSize int) ([][]byte, error) {
	buf := polyglot.GetBuffer()
	defer polyglot.PutBuffer(buf)
	err := Append(buf, payload, packetSize)
	if err != nil {
		return nil, err
	}
	stream := make([]byte, buf.Len())
	copy(stream, buf.Bytes())
	packets := make([][]byte, 0, len(stream)/packetSize)
	for off := 0; off < len(stream); off += packetSize {
		packets = append(packets, stream[off:off+packetSize])
	}
	return packets, nil
}

// Decoder reassembles messages from a fragmented byte stream. Bytes are
// buffered until a full packetSize window is available; an all-zero window is
// the terminator and completes the pending message. The decoder carries no
// connection state beyond the two buffers and resets itself after every
// completed message.
type Decoder struct {
	packetSize int
	pending    []byte
	message    []byte
}

func NewDecoder(packetSize int) (*Decoder, error) {
	if packetSize < 1 {
		return nil, PacketSizeErr
	}
	return &Decoder{
		packetSize: packetSize,
	}, nil
}

// Feed consumes a chunk of raw bytes (any size, including partial packets)
// and returns the payloads of all messages completed by this chunk, with
// trailing padding stripped.
func (d *Decoder) Feed(chunk []byte) [][]byte {
	d.pending = append(d.pending, chunk...)
	var complete [][]byte
	for len(d.pending) >= d.packetSize {
		window := d.pending[:d.packetSize]
		if isTerminator(window) {
			complete = append(complete, trimPadding(d.message))
			d.message = nil
		} else {
			d.message = append(d.message, window...)
		}
		d.pending = d.pending[d.packetSize:]
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return complete
}

// Reset discards any partially accumulated message and buffered bytes.
func (d *Decoder) Reset() {
	d.pending = nil
	d.message = nil
}

func isTerminator(window []byte) bool {
	for _, b := range window {
		if b != TerminatorByte {
			return false
		}
	}
	return true
}

func trimPadding(message []byte) []byte {
	end := len(message)
	for end > 0 && message[end-1] == PadByte {
		end--
	}
	payload := make([]byte, end)
	copy(payload, message[:end])
	return payload
}
