// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/cycling/cmd/internal/mqtt"
	"github.com/kortschak/cycling/csc"
)

type monitor struct {
	csc    *csc.Listener
	cancel context.CancelFunc
}

type sample struct {
	csc.Reading
	err error
}

// newMonitor starts decoding CSC notifications from dev. Readings are
// logged, rendered and sent on update if it is not nil, and published
// with pub if it is not nil.
func newMonitor(ctx context.Context, dev *bluetooth.Device, id string, dec *csc.Decoder, update chan<- image.Image, pub *mqtt.Client) (*monitor, error) {
	card := image.NewGray(image.Rectangle{Max: image.Point{X: 296, Y: 128}})
	blank(card)

	speed := newReadout(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 0, Y: 0},
		Max: image.Point{X: 148, Y: 64},
	}), "km/h", 1)
	cadence := newReadout(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 148, Y: 0},
		Max: image.Point{X: 296, Y: 64},
	}), "rpm", 0)
	speedHistory := newHistory(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 0, Y: 64},
		Max: image.Point{X: 296, Y: 128},
	}))

	samples := make(chan sample, 1)
	l, err := csc.NewListener(dev, id, dec, func(r csc.Reading, err error) {
		select {
		case samples <- sample{Reading: r, err: err}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start streaming csc: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-samples:
				if s.err != nil {
					if errors.Is(s.err, csc.ErrMalformedFrame) {
						slog.Warn("dropped csc measurement", "sensor", id, "error", s.err)
					} else {
						slog.Error("failed to get csc measurement", "sensor", id, "error", s.err)
					}
					continue
				}
				logReading(id, s.Reading)
				if pub != nil {
					err := pub.PublishReading(id, s.Reading)
					if err != nil {
						slog.Warn("failed to publish reading", "sensor", id, "error", err)
					}
				}
				if update == nil {
					continue
				}
				if s.Cadence.Valid {
					cadence.set(s.Cadence)
				}
				if s.Speed.Valid {
					speed.set(s.Speed)
				}
				speedHistory.add(s.Speed)
				select {
				case update <- card:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return &monitor{csc: l, cancel: cancel}, nil
}

func logReading(id string, r csc.Reading) {
	attrs := []any{"sensor", id}
	if r.Speed.Valid {
		attrs = append(attrs, "speed_kmh", r.Speed.Rate)
	}
	if r.Cadence.Valid {
		attrs = append(attrs, "cadence_rpm", r.Cadence.Rate)
	}
	if r.HasDistance {
		attrs = append(attrs, "distance_m", r.Distance)
	}
	switch {
	case r.Speed.Stopped || r.Cadence.Stopped:
		slog.Info("sensor stopped", attrs...)
	case r.Speed.Valid || r.Cadence.Valid:
		slog.Info("reading", attrs...)
	default:
		slog.Debug("no reading yet", attrs...)
	}
}

func (m *monitor) Close() error {
	m.cancel()
	return m.csc.Close()
}
