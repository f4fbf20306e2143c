// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides environment configuration for the commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kortschak/cycling/csc"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// Decoder is the CSC decoder configuration.
	Decoder csc.Config

	// MQTTBroker is the broker host. Publishing is
	// disabled when it is empty.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	circStr := env("WHEEL_CIRCUMFERENCE", strconv.FormatFloat(csc.DefaultWheelCircumference, 'f', -1, 64))
	circ, err := strconv.ParseFloat(circStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WHEEL_CIRCUMFERENCE %q: %w", circStr, err)
	}
	if circ <= 0 {
		return Config{}, fmt.Errorf("WHEEL_CIRCUMFERENCE must be positive, got %v", circ)
	}

	stallStr := env("STALL_THRESHOLD", strconv.Itoa(csc.DefaultStallThreshold))
	stall, err := strconv.Atoi(stallStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid STALL_THRESHOLD %q: %w", stallStr, err)
	}
	if stall < 1 {
		return Config{}, fmt.Errorf("STALL_THRESHOLD must be at least 1, got %d", stall)
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,
		Decoder: csc.Config{
			WheelCircumference: circ,
			StallThreshold:     stall,
		},
		MQTTBroker:      env("MQTT_BROKER", ""),
		MQTTPort:        mqttPort,
		MQTTClientID:    env("MQTT_CLIENT_ID", "cscmon"),
		MQTTTopicPrefix: strings.Trim(env("MQTT_TOPIC_PREFIX", "cycling"), "/"),
	}, nil
}

// env returns the trimmed value of the named environment variable,
// or def if it is empty.
func env(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
