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

const (
	connectFlagCleanSession = 0x02
	connectFlagPassword     = 0x40
	connectFlagUserName     = 0x80
)

var protocolNames = map[MQTTVersion][]byte{
	MQTT31:  {'M', 'Q', 'I', 's', 'd', 'p'},
	MQTT311: {'M', 'Q', 'T', 'T'},
	MQTT50:  {'M', 'Q', 'T', 'T'},
}

// Connect represents the CONNECT Packet from MQTT specifications.
type Connect struct {
	// ClientID identifies the client to the broker.
	ClientID []byte

	// UserName represents the UserName which the broker must use for
	// authentication and authorization. Nil means no user name.
	UserName []byte

	// Password represents the Password which the broker must use for
	// authentication and authorization. Nil means no password.
	Password []byte

	// KeepAlive is a time interval, measured in seconds, that is permitted to
	// elapse between the point at which the Client finishes transmitting one
	// Control Packet and the point it starts sending the next.
	KeepAlive uint16

	// Version represents the MQTT version.
	Version MQTTVersion

	// CleanSession indicates if the session is temporary or not.
	CleanSession bool

	size int
}

// Pack encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Connect) Pack(w *bufio.Writer) error {
	name, ok := protocolNames[pkt.Version]
	if !ok {
		return errors.New("unsupported version (CONNECT)")
	}
	if len(pkt.ClientID) > 65535 || len(pkt.UserName) > 65535 ||
		len(pkt.Password) > 65535 {
		return errors.New("field too long (CONNECT)")
	}
	if pkt.Password != nil && pkt.UserName == nil && pkt.Version != MQTT50 {
		return errors.New("password without user name (CONNECT)")
	}

	body := &bytes.Buffer{}
	encodeBinary(body, name)
	body.WriteByte(byte(pkt.Version))
	body.WriteByte(pkt.flags())
	encodeUint16(body, pkt.KeepAlive)

	if pkt.Version == MQTT50 {
		// No CONNECT properties.
		encodeVarInteger(body, 0)
	}

	encodeBinary(body, pkt.ClientID)
	if pkt.UserName != nil {
		encodeBinary(body, pkt.UserName)
	}
	if pkt.Password != nil {
		encodeBinary(body, pkt.Password)
	}

	pkt.size = 1 + varIntegerSize(body.Len()) + body.Len()
	return writeFixedHeaderAndBody(w, CONNECT, 0, body)
}

// Unpack reads the packet bytes from bytes.Buffer and decodes them into the
// packet.
// It is not supported by the CONNECT Packet in this client.
func (pkt *Connect) Unpack(_ *bytes.Buffer) error {
	return errors.New("unsupported (CONNECT)")
}

// Type returns the packet type.
func (pkt *Connect) Type() Type {
	return CONNECT
}

// Size returns the packet size in bytes. It's known only after Pack.
func (pkt *Connect) Size() int {
	return pkt.size
}

func (pkt *Connect) flags() byte {
	var flags byte

	if pkt.CleanSession {
		flags |= connectFlagCleanSession
	}
	if pkt.UserName != nil {
		flags |= connectFlagUserName
	}
	if pkt.Password != nil {
		flags |= connectFlagPassword
	}

	return flags
}

func varIntegerSize(val int) int {
	n := 1
	for val >= 128 {
		val /= 128
		n++
	}
	return n
}
