// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkbeard provides helper functions for interacting with
// Bluetooth GATT services.
package forkbeard

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned when a device does not provide a requested
// service characteristic.
var ErrNotFound = errors.New("device characteristic not found")

// DeviceCharacteristic returns the characteristic charID of the srvID
// service on dev.
func DeviceCharacteristic(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srvs, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, srv := range srvs {
		chars, err := srv.DiscoverCharacteristics([]bluetooth.UUID{charID})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristic %s: %w", charID, err)
		}
		if len(chars) != 0 {
			return chars[0], nil
		}
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: %s/%s", ErrNotFound, srvID, charID)
}

// ReadCharacteristic reads the value of a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}

// ReadString reads a UTF-8 string characteristic. Trailing NUL padding
// sent by some sensors is removed.
func ReadString(char bluetooth.DeviceCharacteristic) (string, error) {
	b, err := ReadCharacteristic(char)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

// Notify enables notifications on char, calling fn with each payload.
// A nil fn disables notifications. The payload passed to fn is only
// valid for the duration of the call.
func Notify(char bluetooth.DeviceCharacteristic, fn func([]byte)) error {
	err := char.EnableNotifications(fn)
	if err != nil {
		if fn == nil {
			return fmt.Errorf("failed to disable notifications: %w", err)
		}
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	return nil
}
