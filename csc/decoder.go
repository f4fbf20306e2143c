// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csc

import (
	"slices"
	"sync"
)

// Decoder defaults.
const (
	DefaultWheelCircumference = 2105.0 // mm, 700x25c
	DefaultStallThreshold     = 3

	DefaultWheelRevolutionModulus = 1 << 32
	DefaultCrankRevolutionModulus = 1 << 16
	DefaultEventTimeModulus       = 1 << 16
)

// eventTimeUnit is the number of event time ticks per second.
const eventTimeUnit = 1024.0

// Config is the Decoder configuration. Zero fields take their
// default values.
type Config struct {
	// WheelCircumference is the wheel circumference in mm.
	WheelCircumference float64

	// StallThreshold is the number of consecutive updates without
	// an advance in event time that are tolerated before a channel
	// is reported as stopped.
	StallThreshold int

	// Rollover moduli for the sensor counters.
	WheelRevolutionModulus uint64
	CrankRevolutionModulus uint64
	EventTimeModulus       uint64
}

func (c Config) withDefaults() Config {
	if c.WheelCircumference <= 0 {
		c.WheelCircumference = DefaultWheelCircumference
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = DefaultStallThreshold
	}
	if c.WheelRevolutionModulus == 0 {
		c.WheelRevolutionModulus = DefaultWheelRevolutionModulus
	}
	if c.CrankRevolutionModulus == 0 {
		c.CrankRevolutionModulus = DefaultCrankRevolutionModulus
	}
	if c.EventTimeModulus == 0 {
		c.EventTimeModulus = DefaultEventTimeModulus
	}
	return c
}

// Reading is the result of decoding a single measurement frame.
type Reading struct {
	Speed   Value // km/h
	Cadence Value // rpm

	// Distance is the distance travelled in metres since the
	// first wheel revolution data was seen from the sensor.
	Distance    float64
	HasDistance bool
}

// Value is a derived rate. The zero Value indicates that no reading
// is available yet.
type Value struct {
	Rate  float64
	Valid bool

	// Stopped is set when the sensor has not registered a
	// revolution for more than the stall threshold number of
	// updates. Rate is zero when Stopped is set.
	Stopped bool
}

// Decoder converts successive CSC measurement frames from one or more
// sensors into speed and cadence readings. It is safe for concurrent
// use; calls for the same sensor are serialised and calls for different
// sensors proceed independently.
type Decoder struct {
	cfg Config

	mu      sync.Mutex
	sensors map[string]*sensorState
}

// NewDecoder returns a new Decoder using the provided configuration.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		cfg:     cfg.withDefaults(),
		sensors: make(map[string]*sensorState),
	}
}

// Config returns the effective configuration of the decoder.
func (d *Decoder) Config() Config { return d.cfg }

type sensorState struct {
	mu sync.Mutex

	wheel, crank channel

	// wheelRevolutions is the number of wheel revolutions
	// accumulated since the first wheel sample.
	wheelRevolutions uint64
}

// channel is the rollover and stall tracking state for one of the
// wheel or crank revolution streams.
type channel struct {
	ok     bool // revs and time hold a previous sample
	revs   uint64
	time   uint64
	stalls int
}

// advance records the current sample and returns the revolution and
// event time deltas since the previous sample. The returned ok is false
// for the first sample on the channel.
func (c *channel) advance(revs, time, revMod, timeMod uint64) (dRevs, dTime uint64, ok bool) {
	if c.ok {
		dRevs = rolloverDelta(c.revs, revs, revMod)
		dTime = rolloverDelta(c.time, time, timeMod)
		if dTime == 0 {
			c.stalls++
		} else {
			c.stalls = 0
		}
	}
	ok = c.ok
	c.ok = true
	c.revs = revs
	c.time = time
	return dRevs, dTime, ok
}

// rate returns the value for a channel given the deltas from advance
// and the per-revolution-per-second scale.
func (c *channel) rate(dRevs, dTime uint64, scale float64, threshold int) Value {
	if dTime == 0 {
		if c.stalls > threshold {
			return Value{Valid: true, Stopped: true}
		}
		return Value{}
	}
	return Value{
		Rate:  float64(dRevs) / (float64(dTime) / eventTimeUnit) * scale,
		Valid: true,
	}
}

// rolloverDelta returns the difference curr-prev for counters that
// wrap at mod.
func rolloverDelta(prev, curr, mod uint64) uint64 {
	if curr >= prev {
		return curr - prev
	}
	return curr + mod - prev
}

// Update decodes a measurement frame from the sensor identified by id
// and returns the derived readings. Sensors not previously seen are
// added to the decoder. If frame is malformed the returned error wraps
// ErrMalformedFrame and the sensor's state is not changed.
func (d *Decoder) Update(id string, frame []byte) (Reading, error) {
	var m Measurement
	err := m.UnmarshalBinary(frame)
	if err != nil {
		return Reading{}, err
	}
	return d.UpdateMeasurement(id, m), nil
}

// UpdateMeasurement is equivalent to Update for an already decoded
// measurement.
func (d *Decoder) UpdateMeasurement(id string, m Measurement) Reading {
	s := d.sensor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	var r Reading
	if m.WheelPresent {
		dRevs, dTime, ok := s.wheel.advance(
			uint64(m.WheelRevolutions), uint64(m.WheelEventTime),
			d.cfg.WheelRevolutionModulus, d.cfg.EventTimeModulus,
		)
		if ok {
			s.wheelRevolutions += dRevs
			// rev/s × mm/rev × s/h × km/mm
			r.Speed = s.wheel.rate(dRevs, dTime, d.cfg.WheelCircumference*3600/1e6, d.cfg.StallThreshold)
		}
		r.Distance = float64(s.wheelRevolutions) * d.cfg.WheelCircumference / 1e3
		r.HasDistance = true
	}
	if m.CrankPresent {
		dRevs, dTime, ok := s.crank.advance(
			uint64(m.CrankRevolutions), uint64(m.CrankEventTime),
			d.cfg.CrankRevolutionModulus, d.cfg.EventTimeModulus,
		)
		if ok {
			r.Cadence = s.crank.rate(dRevs, dTime, 60, d.cfg.StallThreshold)
		}
	}
	return r
}

func (d *Decoder) sensor(id string) *sensorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sensors[id]
	if !ok {
		s = &sensorState{}
		d.sensors[id] = s
	}
	return s
}

// Forget removes all state held for the sensor identified by id.
// A subsequent Update for id treats the sensor as new.
func (d *Decoder) Forget(id string) {
	d.mu.Lock()
	delete(d.sensors, id)
	d.mu.Unlock()
}

// Sensors returns the sorted identifiers of sensors with held state.
func (d *Decoder) Sensors() []string {
	d.mu.Lock()
	ids := make([]string, 0, len(d.sensors))
	for id := range d.sensors {
		ids = append(ids, id)
	}
	d.mu.Unlock()
	slices.Sort(ids)
	return ids
}
