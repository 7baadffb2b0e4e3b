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
)

// ConnAck represents the CONNACK Packet from MQTT specifications.
type ConnAck struct {
	// Version represents the MQTT version.
	Version MQTTVersion

	// ReasonCode represents the reason code based on the MQTT specifications.
	ReasonCode ReasonCode

	// SessionPresent indicates if there is already a session associated with
	// the Client ID.
	SessionPresent bool

	size int
}

func newPacketConnAck(fh fixedHeader) (Packet, error) {
	if fh.controlFlags != 0 {
		return nil, errors.New("invalid Control Flags (CONNACK)")
	}

	return &ConnAck{
		Version: fh.version,
		size:    fh.size + fh.remainingLength,
	}, nil
}

// Pack encodes the packet into bytes and writes it into the io.Writer.
// It is not supported by the CONNACK Packet in this client.
func (pkt *ConnAck) Pack(_ *bufio.Writer) error {
	return errors.New("unsupported (CONNACK)")
}

// Unpack reads the packet bytes from bytes.Buffer and decodes them into the
// packet.
func (pkt *ConnAck) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return newErrMalformedPacket("no enough bytes (CONNACK)")
	}

	flags, _ := buf.ReadByte()
	if flags&0xFE != 0 {
		return newErrMalformedPacket("invalid Acknowledge Flags (CONNACK)")
	}
	pkt.SessionPresent = flags&0x01 > 0

	code, _ := buf.ReadByte()
	pkt.ReasonCode = ReasonCode(code)

	if pkt.Version == MQTT50 {
		var propsLen int
		if _, err := decodeVarInteger(buf, &propsLen); err != nil {
			return newErrMalformedPacket("invalid properties length (CONNACK)")
		}
		if propsLen > buf.Len() {
			return newErrMalformedPacket("missing properties (CONNACK)")
		}

		// Properties are not used by this client.
		buf.Next(propsLen)
	}

	if buf.Len() > 0 {
		return newErrMalformedPacket("unexpected bytes (CONNACK)")
	}

	return nil
}

// Type returns the packet type.
func (pkt *ConnAck) Type() Type {
	return CONNACK
}

// Size returns the packet size in bytes.
func (pkt *ConnAck) Size() int {
	return pkt.size
}
