// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The cscmon command is a demonstration of the csc package for
// cycling speed and cadence sensors.
//
// Decoder and publishing options are read from the environment:
//
//	APP_ENV              dev or prod (default dev)
//	LOG_LEVEL            debug, info, warn or error (default info)
//	WHEEL_CIRCUMFERENCE  wheel circumference in mm (default 2105)
//	STALL_THRESHOLD      updates without a revolution before reporting stopped (default 3)
//	MQTT_BROKER          MQTT broker host; publishing is disabled if empty
//	MQTT_PORT            MQTT broker port (default 1883)
//	MQTT_CLIENT_ID       MQTT client ID (default cscmon)
//	MQTT_TOPIC_PREFIX    MQTT topic prefix (default cycling)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/widget"
	"gioui.org/x/explorer"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/cycling/battery"
	"github.com/kortschak/cycling/cmd/internal/config"
	"github.com/kortschak/cycling/cmd/internal/logging"
	"github.com/kortschak/cycling/cmd/internal/mqtt"
	"github.com/kortschak/cycling/csc"
	"github.com/kortschak/cycling/devinfo"
)

var version = "dev"

const appName = "cscmon"

func main() {
	addr := flag.String("addr", "", "sensor bluetooth address")
	window := flag.Bool("window", false, "show readings in a window")
	flag.Parse()
	if *addr == "" {
		flag.Usage()
		os.Exit(2)
	}
	var macAddr bluetooth.Address
	err := macAddr.UnmarshalText([]byte(*addr))
	if err != nil {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg, version, appName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var update chan image.Image
	if *window {
		update = make(chan image.Image)
		go func() {
			err := run(ctx, cfg, macAddr, update)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("run failed", "error", err)
				os.Exit(1)
			}
			os.Exit(0)
		}()
		go func() {
			w := new(app.Window)
			w.Option(app.Title("Speed and Cadence"), app.Size(296, 128))
			if err := loop(w, update); err != nil {
				slog.Error("window failed", "error", err)
			}
			stop()
		}()
		app.Main()
		return
	}

	err = run(ctx, cfg, macAddr, nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, addr bluetooth.Address, update chan<- image.Image) error {
	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	dev, err := connect(ctx, adapter, addr)
	if err != nil {
		return err
	}
	defer dev.Disconnect()
	id := addr.String()

	describe(&dev, id)

	var pub *mqtt.Client
	if cfg.MQTTBroker != "" {
		pub = mqtt.NewClient(cfg, slog.Default())
		go func() {
			err := pub.Connect(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("mqtt connect failed", "error", err)
			}
		}()
		defer pub.Disconnect()
	}

	dec := csc.NewDecoder(cfg.Decoder)
	slog.Info("starting",
		"version", version,
		"sensor", id,
		"wheel_circumference_mm", dec.Config().WheelCircumference,
		"stall_threshold", dec.Config().StallThreshold,
	)
	m, err := newMonitor(ctx, &dev, id, dec, update, pub)
	if err != nil {
		return err
	}
	defer m.Close()

	<-ctx.Done()
	slog.Info("shutting down")
	return ctx.Err()
}

func connect(ctx context.Context, adapter *bluetooth.Adapter, addr bluetooth.Address) (bluetooth.Device, error) {
	cscService := must(bluetooth.ParseUUID(csc.ServiceID))

	go func() {
		<-ctx.Done()
		adapter.StopScan()
	}()

	slog.Info("scanning", "sensor", addr.String())
	var (
		dev        bluetooth.Device
		connectErr error
	)
	err := adapter.Scan(func(adapter *bluetooth.Adapter, found bluetooth.ScanResult) {
		if found.Address != addr {
			return
		}
		slog.Info("found device",
			"mac", found.Address.String(),
			"rssi", found.RSSI,
			"name", found.LocalName(),
			"advertises_csc", found.HasServiceUUID(cscService),
			"manufacturer_data", manData(found.ManufacturerData()),
		)
		dev, connectErr = adapter.Connect(found.Address, bluetooth.ConnectionParams{})
		adapter.StopScan()
	})
	if ctx.Err() != nil {
		return dev, ctx.Err()
	}
	if err != nil {
		return dev, fmt.Errorf("failed to scan: %w", err)
	}
	if connectErr != nil {
		return dev, fmt.Errorf("failed to connect: %w", connectErr)
	}
	return dev, nil
}

// describe logs the identity and capabilities of the connected sensor.
// Failures are not fatal since many sensors omit optional services.
func describe(dev *bluetooth.Device, id string) {
	info, err := devinfo.Read(dev)
	if err != nil {
		slog.Warn("failed to read device information", "sensor", id, "error", err)
	} else {
		slog.Info("device information",
			"sensor", id,
			"manufacturer", info.Manufacturer,
			"model", info.Model,
			"firmware", info.Firmware,
		)
	}

	level, err := battery.Level(dev)
	if err != nil {
		slog.Warn("failed to read battery level", "sensor", id, "error", err)
	} else {
		slog.Info("battery level", "sensor", id, "percent", level)
	}

	feat, err := csc.ReadFeature(dev)
	if err != nil {
		slog.Warn("failed to read csc features", "sensor", id, "error", err)
	} else {
		slog.Info("csc features", "sensor", id, "features", feat.String())
		if feat&csc.MultipleLocationsSupported == 0 {
			return
		}
	}
	loc, err := csc.ReadLocation(dev)
	if err != nil {
		slog.Debug("failed to read sensor location", "sensor", id, "error", err)
		return
	}
	slog.Info("sensor location", "sensor", id, "location", loc.String())
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func manData(m []bluetooth.ManufacturerDataElement) []string {
	s := make([]string, len(m))
	for i, d := range m {
		s[i] = fmt.Sprintf("%#x", d.Data)
	}
	return s
}

func loop(w *app.Window, update <-chan image.Image) error {
	expl := explorer.NewExplorer(w)

	events := make(chan event.Event)
	ack := make(chan struct{})

	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()
	var img image.Image
	var ops op.Ops
	for {
		select {
		case img = <-update:
			w.Invalidate()
		case e := <-events:
			expl.ListenEvents(e)
			switch e := e.(type) {
			case app.DestroyEvent:
				ack <- struct{}{}
				return e.Err
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						if img == nil {
							return layout.Dimensions{}
						}
						return widget.Image{
							Src: paint.NewImageOp(img),
							Fit: widget.Contain,
						}.Layout(gtx)
					}),
				)
				e.Frame(gtx.Ops)
			}
			ack <- struct{}{}
		}
	}
}
