// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devinfo implements reading of the standard 180a Bluetooth
// device information service.
package devinfo

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/cycling/internal/forkbeard"
)

const (
	ServiceID          = "180a"
	ModelNumberID      = "2a24"
	FirmwareRevisionID = "2a26"
	ManufacturerNameID = "2a29"
)

var (
	infoService      = must(bluetooth.ParseUUID(ServiceID))
	modelNumber      = must(bluetooth.ParseUUID(ModelNumberID))
	firmwareRevision = must(bluetooth.ParseUUID(FirmwareRevisionID))
	manufacturerName = must(bluetooth.ParseUUID(ManufacturerNameID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Info is the identifying information reported by a device.
// Fields for characteristics the device does not provide are empty.
type Info struct {
	Manufacturer string
	Model        string
	Firmware     string
}

// Read returns the device information for the provided Bluetooth device.
func Read(dev *bluetooth.Device) (Info, error) {
	var (
		info Info
		err  error
	)
	for _, f := range []struct {
		dst  *string
		char bluetooth.UUID
	}{
		{&info.Manufacturer, manufacturerName},
		{&info.Model, modelNumber},
		{&info.Firmware, firmwareRevision},
	} {
		*f.dst, err = readString(dev, f.char)
		if err != nil && !errors.Is(err, forkbeard.ErrNotFound) {
			return info, err
		}
	}
	return info, nil
}

// ModelNumber returns the model number string for the provided
// Bluetooth device.
func ModelNumber(dev *bluetooth.Device) (string, error) {
	return readString(dev, modelNumber)
}

func readString(dev *bluetooth.Device, id bluetooth.UUID) (string, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, infoService, id)
	if err != nil {
		return "", fmt.Errorf("failed to get device information characteristic: %w", err)
	}
	s, err := forkbeard.ReadString(char)
	if err != nil {
		return "", fmt.Errorf("failed read device information characteristic %s: %w", id, err)
	}
	return s, nil
}
