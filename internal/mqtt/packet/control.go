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

// PingReq represents the PINGREQ Packet from MQTT specifications.
type PingReq struct{}

// Pack encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PingReq) Pack(w *bufio.Writer) error {
	return writeFixedHeaderAndBody(w, PINGREQ, 0, &bytes.Buffer{})
}

// Unpack reads the packet bytes from bytes.Buffer and decodes them into the
// packet.
// It is not supported by the PINGREQ Packet in this client.
func (pkt *PingReq) Unpack(_ *bytes.Buffer) error {
	return errors.New("unsupported (PINGREQ)")
}

// Type returns the packet type.
func (pkt *PingReq) Type() Type {
	return PINGREQ
}

// Size returns the packet size in bytes.
func (pkt *PingReq) Size() int {
	return 2
}

// PingResp represents the PINGRESP Packet from MQTT specifications.
type PingResp struct{}

func newPacketPingResp(fh fixedHeader) (Packet, error) {
	if fh.controlFlags != 0 {
		return nil, errors.New("invalid Control Flags (PINGRESP)")
	}

	if fh.remainingLength != 0 {
		return nil, errors.New("invalid Remain Length (PINGRESP)")
	}

	return &PingResp{}, nil
}

// Pack encodes the packet into bytes and writes it into the io.Writer.
// It is not supported by the PINGRESP Packet in this client.
func (pkt *PingResp) Pack(_ *bufio.Writer) error {
	return errors.New("unsupported (PINGRESP)")
}

// Unpack reads the packet bytes from bytes.Buffer and decodes them into the
// packet.
func (pkt *PingResp) Unpack(_ *bytes.Buffer) error {
	return nil
}

// Type returns the packet type.
func (pkt *PingResp) Type() Type {
	return PINGRESP
}

// Size returns the packet size in bytes.
func (pkt *PingResp) Size() int {
	return 2
}

// Disconnect represents the DISCONNECT Packet from MQTT specifications.
// It always carries a normal disconnection.
type Disconnect struct{}

// Pack encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Disconnect) Pack(w *bufio.Writer) error {
	return writeFixedHeaderAndBody(w, DISCONNECT, 0, &bytes.Buffer{})
}

// Unpack reads the packet bytes from bytes.Buffer and decodes them into the
// packet.
// It is not supported by the DISCONNECT Packet in this client.
func (pkt *Disconnect) Unpack(_ *bytes.Buffer) error {
	return errors.New("unsupported (DISCONNECT)")
}

// Type returns the packet type.
func (pkt *Disconnect) Type() Type {
	return DISCONNECT
}

// Size returns the packet size in bytes.
func (pkt *Disconnect) Size() int {
	return 2
}
