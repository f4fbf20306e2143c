// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mqtt publishes derived cycling readings to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kortschak/cycling/cmd/internal/config"
	"github.com/kortschak/cycling/csc"
)

var errStopped = errors.New("client stopped")

type Client struct {
	client mqtt.Client
	prefix string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Telemetry is the published form of a csc.Reading. Absent values are
// omitted.
type Telemetry struct {
	SensorID   string    `json:"sensor_id"`
	Timestamp  time.Time `json:"timestamp"`
	SpeedKMH   *float64  `json:"speed_kmh,omitempty"`
	CadenceRPM *float64  `json:"cadence_rpm,omitempty"`
	DistanceM  *float64  `json:"distance_m,omitempty"`
	Stopped    bool      `json:"stopped,omitempty"`
}

// NewTelemetry returns the telemetry for a reading. It returns false
// if the reading holds nothing to publish.
func NewTelemetry(sensorID string, ts time.Time, r csc.Reading) (Telemetry, bool) {
	t := Telemetry{SensorID: sensorID, Timestamp: ts}
	if r.Speed.Valid {
		v := r.Speed.Rate
		t.SpeedKMH = &v
		t.Stopped = r.Speed.Stopped
	}
	if r.Cadence.Valid {
		v := r.Cadence.Rate
		t.CadenceRPM = &v
		t.Stopped = t.Stopped || r.Cadence.Stopped
	}
	if r.HasDistance && t.SpeedKMH != nil {
		v := r.Distance
		t.DistanceM = &v
	}
	return t, t.SpeedKMH != nil || t.CadenceRPM != nil
}

// Topic returns the telemetry topic for a sensor.
func Topic(prefix, sensorID string) string {
	if prefix == "" {
		return fmt.Sprintf("sensors/%s/telemetry", sensorID)
	}
	return fmt.Sprintf("%s/sensors/%s/telemetry", prefix, sensorID)
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		prefix: cfg.MQTTTopicPrefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes the connection to the MQTT broker, waiting for
// the initial connection until ctx is done or Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return errStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return errStopped
		default:
		}
	}
}

// PublishReading publishes the telemetry for a reading. Readings with
// no values are not published.
func (c *Client) PublishReading(sensorID string, r csc.Reading) error {
	t, ok := NewTelemetry(sensorID, time.Now(), r)
	if !ok {
		return nil
	}
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	topic := Topic(c.prefix, sensorID)
	token := c.client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	c.logger.Debug("published telemetry", "topic", topic)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the connection. It is safe
// to call more than once.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.client.Disconnect(250)
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
