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
	"errors"
	"fmt"
)

// ErrMalformedPacket indicates that the data within a packet could not be
// correctly parsed.
var ErrMalformedPacket = errors.New("malformed packet")

// Error represents the errors related to the MQTT protocol.
type Error struct {
	// Code represents the error codes based on the MQTT specifications.
	Code ReasonCode

	// Reason is string with a human-friendly message about the error.
	Reason string
}

// NewError creates an Error for the reason code of the given MQTT version.
func NewError(v MQTTVersion, code ReasonCode) *Error {
	return &Error{Code: code, Reason: code.Describe(v)}
}

// Error returns a string with the error code and the reason of the error.
func (err *Error) Error() string {
	return fmt.Sprintf("%d (%s)", err.Code, err.Reason)
}

func newErrMalformedPacket(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, msg)
}
