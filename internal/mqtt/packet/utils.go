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
	"encoding/binary"
	"errors"
)

func readVarInteger(r *bufio.Reader, val *int) (n int, err error) {
	multiplier := 1
	for {
		var b byte

		b, err = r.ReadByte()
		if err != nil {
			return 0, errors.New("invalid variable integer")
		}

		n++
		*val += int(b&127) * multiplier
		multiplier *= 128

		if b&128 == 0 {
			break
		}

		if multiplier > (128 * 128 * 128) {
			return 0, errors.New("invalid variable integer")
		}
	}

	return n, nil
}

func decodeVarInteger(buf *bytes.Buffer, val *int) (n int, err error) {
	multiplier := 1
	for {
		var b byte

		b, err = buf.ReadByte()
		if err != nil {
			return 0, errors.New("invalid variable integer")
		}

		n++
		*val += int(b&127) * multiplier
		multiplier *= 128

		if b&128 == 0 {
			break
		}

		if multiplier > (128 * 128 * 128) {
			return 0, errors.New("invalid variable integer")
		}
	}

	return n, nil
}

func writeVarInteger(w *bufio.Writer, val int) error {
	var data byte
	var err error

	for {
		data = byte(val % 128)

		val /= 128
		if val > 0 {
			data |= 128
		}

		err = w.WriteByte(data)
		if err != nil || val == 0 {
			return err
		}
	}
}

func encodeVarInteger(buf *bytes.Buffer, val int) {
	for {
		data := byte(val % 128)

		val /= 128
		if val > 0 {
			data |= 128
		}

		buf.WriteByte(data)
		if val == 0 {
			return
		}
	}
}

func encodeUint16(buf *bytes.Buffer, val uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], val)
	buf.Write(b[:])
}

func encodeBinary(buf *bytes.Buffer, val []byte) {
	encodeUint16(buf, uint16(len(val)))
	buf.Write(val)
}

// writeFixedHeaderAndBody writes the fixed header of the given type followed
// by the already encoded remaining bytes.
func writeFixedHeaderAndBody(w *bufio.Writer, t Type, flags byte,
	body *bytes.Buffer) error {

	err := w.WriteByte(byte(t)<<packetTypeBit | flags&controlByteMask)
	if err != nil {
		return err
	}

	err = writeVarInteger(w, body.Len())
	if err != nil {
		return err
	}

	_, err = body.WriteTo(w)
	return err
}
