package csc

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
)

func crank(revs, time uint16) []byte {
	b, _ := Measurement{CrankPresent: true, CrankRevolutions: revs, CrankEventTime: time}.MarshalBinary()
	return b
}

func wheel(revs uint32, time uint16) []byte {
	b, _ := Measurement{WheelPresent: true, WheelRevolutions: revs, WheelEventTime: time}.MarshalBinary()
	return b
}

func both(wRevs uint32, wTime, cRevs, cTime uint16) []byte {
	b, _ := Measurement{
		WheelPresent: true, WheelRevolutions: wRevs, WheelEventTime: wTime,
		CrankPresent: true, CrankRevolutions: cRevs, CrankEventTime: cTime,
	}.MarshalBinary()
	return b
}

type step struct {
	frame   []byte
	want    Reading
	wantErr error
}

// km/h for one wheel revolution per second with the default circumference.
const kmhPerRevPerSec = DefaultWheelCircumference * 3600 / 1e6

var decoderTests = []struct {
	name  string
	cfg   Config
	steps []step
}{
	{
		name: "crank_bootstrap",
		steps: []step{
			{frame: crank(10, 0), want: Reading{}},
		},
	},
	{
		name: "crank_60rpm",
		steps: []step{
			{frame: crank(10, 0)},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "crank_time_rollover",
		steps: []step{
			{frame: crank(10, 65500)},
			{frame: crank(11, 100), want: Reading{Cadence: Value{Rate: 60 * 1024.0 / 136, Valid: true}}},
		},
	},
	{
		name: "crank_revolution_rollover",
		steps: []step{
			{frame: crank(65535, 0)},
			{frame: crank(1, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "crank_stall",
		steps: []step{
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024), want: Reading{Cadence: Value{Valid: true, Stopped: true}}},
			{frame: crank(10, 1024), want: Reading{Cadence: Value{Valid: true, Stopped: true}}},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 120, Valid: true}}},
			{frame: crank(12, 2048)},
		},
	},
	{
		name: "crank_stall_custom_threshold",
		cfg:  Config{StallThreshold: 1},
		steps: []step{
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024)},
			{frame: crank(10, 1024), want: Reading{Cadence: Value{Valid: true, Stopped: true}}},
		},
	},
	{
		name: "stall_updates_previous",
		steps: []step{
			{frame: crank(10, 1024)},
			// Revolutions changed without the event time advancing;
			// the new count is retained for the next rate.
			{frame: crank(11, 1024)},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "replayed_frame",
		steps: []step{
			{frame: crank(10, 0)},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
			{frame: crank(12, 2048)},
			{frame: crank(12, 2048)},
		},
	},
	{
		name: "malformed_does_not_onboard",
		steps: []step{
			{frame: []byte{0x02}, wantErr: ErrMalformedFrame},
			{frame: crank(10, 0)},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "malformed_does_not_mutate",
		steps: []step{
			{frame: crank(10, 0)},
			{frame: []byte{0x03, 0x01, 0x00}, wantErr: ErrMalformedFrame},
			{frame: []byte{}, wantErr: ErrMalformedFrame},
			{frame: crank(12, 2048), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "wheel_speed",
		steps: []step{
			{frame: wheel(100, 0), want: Reading{HasDistance: true}},
			{frame: wheel(102, 1024), want: Reading{
				Speed:       Value{Rate: 2 * kmhPerRevPerSec, Valid: true},
				Distance:    2 * DefaultWheelCircumference / 1e3,
				HasDistance: true,
			}},
		},
	},
	{
		name: "wheel_custom_circumference",
		cfg:  Config{WheelCircumference: 2000},
		steps: []step{
			{frame: wheel(0, 0), want: Reading{HasDistance: true}},
			{frame: wheel(5, 2048), want: Reading{
				Speed:       Value{Rate: 2.5 * 2000 * 3600 / 1e6, Valid: true},
				Distance:    10,
				HasDistance: true,
			}},
		},
	},
	{
		name: "wheel_revolution_rollover",
		steps: []step{
			{frame: wheel(math.MaxUint32, 0), want: Reading{HasDistance: true}},
			{frame: wheel(1, 1024), want: Reading{
				Speed:       Value{Rate: 2 * kmhPerRevPerSec, Valid: true},
				Distance:    2 * DefaultWheelCircumference / 1e3,
				HasDistance: true,
			}},
		},
	},
	{
		name: "wheel_stall",
		steps: []step{
			{frame: wheel(1, 512), want: Reading{HasDistance: true}},
			{frame: wheel(1, 512), want: Reading{HasDistance: true}},
			{frame: wheel(1, 512), want: Reading{HasDistance: true}},
			{frame: wheel(1, 512), want: Reading{HasDistance: true}},
			{frame: wheel(1, 512), want: Reading{Speed: Value{Valid: true, Stopped: true}, HasDistance: true}},
		},
	},
	{
		name: "wheel_and_crank",
		steps: []step{
			{frame: both(0, 0, 0, 0), want: Reading{HasDistance: true}},
			{frame: both(4, 2048, 3, 2048), want: Reading{
				Speed:       Value{Rate: 2 * kmhPerRevPerSec, Valid: true},
				Cadence:     Value{Rate: 90, Valid: true},
				Distance:    4 * DefaultWheelCircumference / 1e3,
				HasDistance: true,
			}},
		},
	},
	{
		name: "unset_channel_untouched",
		steps: []step{
			{frame: crank(10, 0)},
			{frame: wheel(0, 0), want: Reading{HasDistance: true}},
			{frame: wheel(0, 0), want: Reading{HasDistance: true}},
			{frame: crank(11, 1024), want: Reading{Cadence: Value{Rate: 60, Valid: true}}},
		},
	},
	{
		name: "channels_independent",
		steps: []step{
			{frame: both(0, 0, 0, 0), want: Reading{HasDistance: true}},
			{frame: both(0, 0, 1, 1024), want: Reading{
				Cadence:     Value{Rate: 60, Valid: true},
				HasDistance: true,
			}},
		},
	},
}

func TestDecoder(t *testing.T) {
	for _, test := range decoderTests {
		t.Run(test.name, func(t *testing.T) {
			d := NewDecoder(test.cfg)
			for i, s := range test.steps {
				got, err := d.Update("sensor", s.frame)
				if !errors.Is(err, s.wantErr) {
					t.Fatalf("unexpected error for step %d: got:%v want:%v", i, err, s.wantErr)
				}
				if !sameReading(got, s.want) {
					t.Errorf("unexpected reading for step %d:\ngot: %+v\nwant:%+v", i, got, s.want)
				}
			}
		})
	}
}

func sameReading(a, b Reading) bool {
	return sameValue(a.Speed, b.Speed) &&
		sameValue(a.Cadence, b.Cadence) &&
		a.HasDistance == b.HasDistance &&
		closeTo(a.Distance, b.Distance)
}

func sameValue(a, b Value) bool {
	return a.Valid == b.Valid && a.Stopped == b.Stopped && closeTo(a.Rate, b.Rate)
}

func closeTo(a, b float64) bool {
	const tol = 1e-9
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestRolloverDelta(t *testing.T) {
	for _, test := range []struct {
		prev, curr, mod uint64
		want            uint64
	}{
		{prev: 0, curr: 2048, mod: 1 << 16, want: 2048},
		{prev: 65500, curr: 100, mod: 1 << 16, want: 136},
		{prev: 65535, curr: 0, mod: 1 << 16, want: 1},
		{prev: 7, curr: 7, mod: 1 << 16, want: 0},
		{prev: math.MaxUint32, curr: 1, mod: 1 << 32, want: 2},
	} {
		got := rolloverDelta(test.prev, test.curr, test.mod)
		if got != test.want {
			t.Errorf("unexpected delta for %d→%d mod %d: got:%d want:%d", test.prev, test.curr, test.mod, got, test.want)
		}
	}
}

func TestDecoderConfigDefaults(t *testing.T) {
	got := NewDecoder(Config{}).Config()
	want := Config{
		WheelCircumference:     DefaultWheelCircumference,
		StallThreshold:         DefaultStallThreshold,
		WheelRevolutionModulus: 1 << 32,
		CrankRevolutionModulus: 1 << 16,
		EventTimeModulus:       1 << 16,
	}
	if got != want {
		t.Errorf("unexpected config:\ngot: %+v\nwant:%+v", got, want)
	}
}

func TestDecoderForget(t *testing.T) {
	d := NewDecoder(Config{})
	for _, id := range []string{"b", "a"} {
		_, err := d.Update(id, crank(10, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got, want := d.Sensors(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected sensors: got:%q want:%q", got, want)
	}

	d.Forget("a")
	if got, want := d.Sensors(), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected sensors after forget: got:%q want:%q", got, want)
	}

	// A forgotten sensor is bootstrapped again.
	got, err := d.Update("a", crank(12, 2048))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cadence.Valid {
		t.Errorf("unexpected cadence after forget: %+v", got.Cadence)
	}
	// The remaining sensor is unaffected.
	got, err = d.Update("b", crank(12, 2048))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameValue(got.Cadence, Value{Rate: 60, Valid: true}) {
		t.Errorf("unexpected cadence for retained sensor: %+v", got.Cadence)
	}
}

func TestDecoderConcurrentSensors(t *testing.T) {
	const (
		sensors = 8
		updates = 100
	)
	d := NewDecoder(Config{})
	var wg sync.WaitGroup
	errs := make(chan error, sensors)
	for i := range sensors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprint("sensor-", i)
			rpm := 60 * float64(i+1)
			for n := range updates {
				// i+1 revolutions every second.
				r, err := d.Update(id, crank(uint16(n*(i+1)), uint16(n*1024)))
				if err != nil {
					errs <- err
					return
				}
				if n == 0 {
					continue
				}
				if !sameValue(r.Cadence, Value{Rate: rpm, Valid: true}) {
					errs <- fmt.Errorf("%s update %d: unexpected cadence: %+v", id, n, r.Cadence)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := len(d.Sensors()); got != sensors {
		t.Errorf("unexpected number of sensors: got:%d want:%d", got, sensors)
	}
}
