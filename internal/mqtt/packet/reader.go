// Copyright 2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package packet

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrPacketTooLarge indicates that the packet is larger than the maximum
// packet size allowed by the Reader.
var ErrPacketTooLarge = errors.New("max packet size exceeded")

// Reader is responsible for read packets.
type Reader struct {
	bufReader     *bufio.Reader
	maxPacketSize int
	version       MQTTVersion
}

// ReaderOptions contains the options for the Reader.
type ReaderOptions struct {
	// BufferSize represents the buffer size.
	BufferSize int

	// MaxPacketSize represents the maximum packet size, in bytes, allowed.
	MaxPacketSize int

	// Version represents the MQTT version negotiated in the CONNECT Packet.
	Version MQTTVersion
}

// NewReader creates a buffered Reader based on the io.Reader and ReaderOptions.
func NewReader(r io.Reader, o ReaderOptions) Reader {
	return Reader{
		bufReader:     bufio.NewReaderSize(r, o.BufferSize),
		maxPacketSize: o.MaxPacketSize,
		version:       o.Version,
	}
}

// ReadPacket reads and unpack the packet from the buffer.
// It returns an error if it fails to read or unpack the packet.
func (r *Reader) ReadPacket() (Packet, error) {
	ctrlByte, err := r.bufReader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read control byte: %w", err)
	}

	var remainLen int
	n, err := readVarInteger(r.bufReader, &remainLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read remain length: %w", err)
	}

	if 1+n+remainLen > r.maxPacketSize {
		return nil, ErrPacketTooLarge
	}

	fh := fixedHeader{
		packetType:      Type(ctrlByte >> packetTypeBit),
		controlFlags:    ctrlByte & controlByteMask,
		remainingLength: remainLen,
		size:            1 + n,
		version:         r.version,
	}

	pkt, err := newPacket(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to read packet: %w", err)
	}

	data := make([]byte, remainLen)
	if _, err = io.ReadFull(r.bufReader, data); err != nil {
		return nil, fmt.Errorf("failed to read packet %v: %w",
			pkt.Type().String(), err)
	}

	err = pkt.Unpack(bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read packet %v: %w",
			pkt.Type().String(), err)
	}

	return pkt, nil
}
