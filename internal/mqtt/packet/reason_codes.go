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

import "fmt"

// ReasonCode is a one byte unsigned value that indicates the result of an
// operation, based on the MQTT specifications.
type ReasonCode byte

const (
	// ReasonCodeV3ConnectionAccepted indicates that connection was accepted.
	ReasonCodeV3ConnectionAccepted ReasonCode = 0x00

	// ReasonCodeV3UnacceptableProtocolVersion indicates that the broker does
	// not support the level of the MQTT protocol.
	ReasonCodeV3UnacceptableProtocolVersion ReasonCode = 0x01

	// ReasonCodeV3IdentifierRejected indicates that the client identifier is
	// correct UTF-8 but not allowed.
	ReasonCodeV3IdentifierRejected ReasonCode = 0x02

	// ReasonCodeV3ServerUnavailable indicates that the MQTT service is
	// unavailable.
	ReasonCodeV3ServerUnavailable ReasonCode = 0x03

	// ReasonCodeV3BadUsernamePassword indicates that the data in the UserName
	// or Password is malformed.
	ReasonCodeV3BadUsernamePassword ReasonCode = 0x04

	// ReasonCodeV3NotAuthorized indicates that the client is not authorized to
	// connect.
	ReasonCodeV3NotAuthorized ReasonCode = 0x05
)

const (
	// ReasonCodeV5Success indicates success.
	ReasonCodeV5Success ReasonCode = 0x00

	// ReasonCodeV5UnspecifiedError indicates that the broker does not wish to
	// reveal the reason for the failure, or none of the other codes apply.
	ReasonCodeV5UnspecifiedError ReasonCode = 0x80

	// ReasonCodeV5MalformedPacket indicates that data within the packet could
	// not be correctly parsed.
	ReasonCodeV5MalformedPacket ReasonCode = 0x81

	// ReasonCodeV5ProtocolError indicates that data in the packet does not
	// conform with the V5.x specification.
	ReasonCodeV5ProtocolError ReasonCode = 0x82

	// ReasonCodeV5ImplementationError indicates that the packet is valid but
	// is not accepted by the broker.
	ReasonCodeV5ImplementationError ReasonCode = 0x83

	// ReasonCodeV5UnsupportedProtocolVersion indicates that the broker does not
	// support the version of the MQTT protocol requested by the client.
	ReasonCodeV5UnsupportedProtocolVersion ReasonCode = 0x84

	// ReasonCodeV5InvalidClientID indicates that the Client ID is a valid
	// string but is not allowed by the broker.
	ReasonCodeV5InvalidClientID ReasonCode = 0x85

	// ReasonCodeV5BadUsernameOrPassword indicates that the broker does not
	// accept the UserName or Password specified by the client.
	ReasonCodeV5BadUsernameOrPassword ReasonCode = 0x86

	// ReasonCodeV5NotAuthorized indicates the client is not authorized.
	ReasonCodeV5NotAuthorized ReasonCode = 0x87

	// ReasonCodeV5ServerUnavailable indicates that the MQTT broker is not
	// available.
	ReasonCodeV5ServerUnavailable ReasonCode = 0x88

	// ReasonCodeV5ServerBusy indicates that the broker is busy. Try again
	// later.
	ReasonCodeV5ServerBusy ReasonCode = 0x89

	// ReasonCodeV5Banned indicates that the client has been banned by
	// administrative action.
	ReasonCodeV5Banned ReasonCode = 0x8A

	// ReasonCodeV5BadAuthMethod indicates that the authentication method is not
	// supported or does not match the authentication method currently in use.
	ReasonCodeV5BadAuthMethod ReasonCode = 0x8C

	// ReasonCodeV5PacketTooLarge indicates that the packet exceeded the maximum
	// permissible size.
	ReasonCodeV5PacketTooLarge ReasonCode = 0x95

	// ReasonCodeV5QuotaExceeded indicates that an implementation or
	// administrative imposed limit has been exceeded.
	ReasonCodeV5QuotaExceeded ReasonCode = 0x97

	// ReasonCodeV5UseAnotherServer indicates that the client should temporarily
	// use another server.
	ReasonCodeV5UseAnotherServer ReasonCode = 0x9C

	// ReasonCodeV5ServerMoved indicates that the client should permanently use
	// another server.
	ReasonCodeV5ServerMoved ReasonCode = 0x9D

	// ReasonCodeV5ConnectionRateExceeded indicates that the connection rate
	// limit has been exceeded.
	ReasonCodeV5ConnectionRateExceeded ReasonCode = 0x9F
)

var v3ReasonToString = map[ReasonCode]string{
	ReasonCodeV3ConnectionAccepted:          "connection accepted",
	ReasonCodeV3UnacceptableProtocolVersion: "unacceptable protocol version",
	ReasonCodeV3IdentifierRejected:          "identifier rejected",
	ReasonCodeV3ServerUnavailable:           "server unavailable",
	ReasonCodeV3BadUsernamePassword:         "bad user name or password",
	ReasonCodeV3NotAuthorized:               "not authorized",
}

var v5ReasonToString = map[ReasonCode]string{
	ReasonCodeV5Success:                    "success",
	ReasonCodeV5UnspecifiedError:           "unspecified error",
	ReasonCodeV5MalformedPacket:            "malformed packet",
	ReasonCodeV5ProtocolError:              "protocol error",
	ReasonCodeV5ImplementationError:        "implementation specific error",
	ReasonCodeV5UnsupportedProtocolVersion: "unsupported protocol version",
	ReasonCodeV5InvalidClientID:            "client identifier not valid",
	ReasonCodeV5BadUsernameOrPassword:      "bad user name or password",
	ReasonCodeV5NotAuthorized:              "not authorized",
	ReasonCodeV5ServerUnavailable:          "server unavailable",
	ReasonCodeV5ServerBusy:                 "server busy",
	ReasonCodeV5Banned:                     "banned",
	ReasonCodeV5BadAuthMethod:              "bad authentication method",
	ReasonCodeV5PacketTooLarge:             "packet too large",
	ReasonCodeV5QuotaExceeded:              "quota exceeded",
	ReasonCodeV5UseAnotherServer:           "use another server",
	ReasonCodeV5ServerMoved:                "server moved",
	ReasonCodeV5ConnectionRateExceeded:     "connection rate exceeded",
}

// Describe returns a human-friendly description of the reason code for the
// given MQTT version.
func (c ReasonCode) Describe(v MQTTVersion) string {
	m := v3ReasonToString
	if v == MQTT50 {
		m = v5ReasonToString
	}

	if s, ok := m[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown reason code 0x%02X", byte(c))
}

// IsSuccess returns whether the reason code indicates that the connection
// was accepted.
func (c ReasonCode) IsSuccess() bool {
	return c == ReasonCodeV3ConnectionAccepted
}
