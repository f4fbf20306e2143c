// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csc

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/cycling/internal/forkbeard"
)

// Listener implements handling of CSC measurement notifications.
type Listener struct {
	id   string
	dec  *Decoder
	char bluetooth.DeviceCharacteristic
}

// NewListener returns a new Listener for the provided Bluetooth device.
// Notifications are decoded by dec under the sensor identifier id and
// the h function is called with each resulting reading or decoding error.
// The h function is called on the Bluetooth stack's notification path
// and should not block.
func NewListener(dev *bluetooth.Device, id string, dec *Decoder, h func(Reading, error)) (*Listener, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, cscService, cscMeasurement)
	if err != nil {
		return nil, fmt.Errorf("failed to get csc measurement device characteristic: %w", err)
	}
	err = forkbeard.Notify(char, func(buf []byte) {
		h(dec.Update(id, buf))
	})
	if err != nil {
		return nil, err
	}
	return &Listener{id: id, dec: dec, char: char}, nil
}

// Close disables CSC measurement notifications from the connected sensor
// and discards the decoder state held for it.
func (l *Listener) Close() error {
	err := forkbeard.Notify(l.char, nil)
	l.dec.Forget(l.id)
	return err
}
