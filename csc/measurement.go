// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a measurement frame is shorter
// than its flags require.
var ErrMalformedFrame = errors.New("malformed csc measurement frame")

// Measurement flags.
const (
	WheelRevolutionDataPresent = 1 << 0
	CrankRevolutionDataPresent = 1 << 1
)

// Field sizes.
const (
	flagsSize = 1
	wheelSize = 6 // uint32 revolutions, uint16 event time
	crankSize = 4 // uint16 revolutions, uint16 event time

	maxMeasurementSize = flagsSize + wheelSize + crankSize
)

// Measurement is a CSC measurement notification.
//
// Event times are in units of 1/1024 s on the sensor's clock.
type Measurement struct {
	WheelPresent     bool
	WheelRevolutions uint32
	WheelEventTime   uint16

	CrankPresent     bool
	CrankRevolutions uint16
	CrankEventTime   uint16
}

// UnmarshalBinary decodes a CSC measurement frame. If the frame is
// malformed, the returned error wraps ErrMalformedFrame and m is not
// altered.
func (m *Measurement) UnmarshalBinary(data []byte) error {
	// https://www.bluetooth.com/specifications/specs/cycling-speed-and-cadence-service-1-0/

	// 3.1.1.1 Flags Field
	// | 0x2 | 0x1 |
	// | crk | whl |
	if len(data) < flagsSize {
		return fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}
	wheel := data[0]&WheelRevolutionDataPresent != 0
	crank := data[0]&CrankRevolutionDataPresent != 0
	need := flagsSize
	if wheel {
		need += wheelSize
	}
	if crank {
		need += crankSize
	}
	if len(data) < need {
		return fmt.Errorf("%w: flags %#x need %d bytes, have %d", ErrMalformedFrame, data[0], need, len(data))
	}

	v := Measurement{WheelPresent: wheel, CrankPresent: crank}
	offset := flagsSize
	if wheel {
		v.WheelRevolutions = binary.LittleEndian.Uint32(data[offset:])
		v.WheelEventTime = binary.LittleEndian.Uint16(data[offset+4:])
		offset += wheelSize
	}
	if crank {
		v.CrankRevolutions = binary.LittleEndian.Uint16(data[offset:])
		v.CrankEventTime = binary.LittleEndian.Uint16(data[offset+2:])
	}
	*m = v
	return nil
}

// MarshalBinary encodes m as a CSC measurement frame.
func (m Measurement) MarshalBinary() ([]byte, error) {
	buf := make([]byte, flagsSize, maxMeasurementSize)
	if m.WheelPresent {
		buf[0] |= WheelRevolutionDataPresent
		buf = binary.LittleEndian.AppendUint32(buf, m.WheelRevolutions)
		buf = binary.LittleEndian.AppendUint16(buf, m.WheelEventTime)
	}
	if m.CrankPresent {
		buf[0] |= CrankRevolutionDataPresent
		buf = binary.LittleEndian.AppendUint16(buf, m.CrankRevolutions)
		buf = binary.LittleEndian.AppendUint16(buf, m.CrankEventTime)
	}
	return buf, nil
}
