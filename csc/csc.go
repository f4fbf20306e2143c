// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package csc implements handling of the standard 1816 Bluetooth
// cycling speed and cadence service.
//
// Measurement notifications carry cumulative wheel and crank revolution
// counts with the sensor time of the last revolution event. A Decoder
// tracks these per sensor and derives speed and cadence from successive
// notifications, accounting for counter rollover and stalled sensors.
package csc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/cycling/internal/forkbeard"
)

const (
	ServiceID        = "1816"
	MeasurementID    = "2a5b"
	FeatureID        = "2a5c"
	SensorLocationID = "2a5d"
)

var (
	cscService        = must(bluetooth.ParseUUID(ServiceID))
	cscMeasurement    = must(bluetooth.ParseUUID(MeasurementID))
	cscFeature        = must(bluetooth.ParseUUID(FeatureID))
	cscSensorLocation = must(bluetooth.ParseUUID(SensorLocationID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Feature is the set of features supported by a CSC sensor.
type Feature uint16

const (
	WheelRevolutionDataSupported Feature = 1 << 0
	CrankRevolutionDataSupported Feature = 1 << 1
	MultipleLocationsSupported   Feature = 1 << 2
)

func (f Feature) String() string {
	var s strings.Builder
	for _, n := range []struct {
		bit  Feature
		name string
	}{
		{WheelRevolutionDataSupported, "wheel"},
		{CrankRevolutionDataSupported, "crank"},
		{MultipleLocationsSupported, "multiple_locations"},
	} {
		if f&n.bit == 0 {
			continue
		}
		if s.Len() != 0 {
			s.WriteByte('|')
		}
		s.WriteString(n.name)
	}
	if rem := f &^ (WheelRevolutionDataSupported | CrankRevolutionDataSupported | MultipleLocationsSupported); rem != 0 {
		if s.Len() != 0 {
			s.WriteByte('|')
		}
		fmt.Fprintf(&s, "%#x", uint16(rem))
	}
	if s.Len() == 0 {
		return "none"
	}
	return s.String()
}

func (f *Feature) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}
	*f = Feature(binary.LittleEndian.Uint16(data))
	return nil
}

// ReadFeature returns the features supported by the CSC sensor on the
// provided Bluetooth device.
func ReadFeature(dev *bluetooth.Device) (Feature, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, cscService, cscFeature)
	if err != nil {
		return 0, fmt.Errorf("failed to get csc feature characteristic: %w", err)
	}
	resp, err := forkbeard.ReadCharacteristic(char)
	if err != nil {
		return 0, fmt.Errorf("failed read csc feature characteristic: %w", err)
	}
	var f Feature
	err = f.UnmarshalBinary(resp)
	if err != nil {
		return 0, fmt.Errorf("invalid csc feature: %#x: %w", resp, err)
	}
	return f, nil
}

// Location is the mounting location of a sensor.
type Location uint8

//go:generate go tool golang.org/x/tools/cmd/stringer -type Location -trimprefix Location
const (
	LocationOther       Location = 0
	LocationTopOfShoe   Location = 1
	LocationInShoe      Location = 2
	LocationHip         Location = 3
	LocationFrontWheel  Location = 4
	LocationLeftCrank   Location = 5
	LocationRightCrank  Location = 6
	LocationLeftPedal   Location = 7
	LocationRightPedal  Location = 8
	LocationFrontHub    Location = 9
	LocationRearDropout Location = 10
	LocationChainstay   Location = 11
	LocationRearWheel   Location = 12
	LocationRearHub     Location = 13
	LocationChest       Location = 14
	LocationSpider      Location = 15
	LocationChainRing   Location = 16
)

func (l *Location) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return io.ErrUnexpectedEOF
	}
	*l = Location(data[0])
	return nil
}

// ReadLocation returns the mounting location reported by the CSC sensor
// on the provided Bluetooth device.
func ReadLocation(dev *bluetooth.Device) (Location, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, cscService, cscSensorLocation)
	if err != nil {
		return 0, fmt.Errorf("failed to get sensor location characteristic: %w", err)
	}
	resp, err := forkbeard.ReadCharacteristic(char)
	if err != nil {
		return 0, fmt.Errorf("failed read sensor location characteristic: %w", err)
	}
	var l Location
	err = l.UnmarshalBinary(resp)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor location: %#x: %w", resp, err)
	}
	return l, nil
}
