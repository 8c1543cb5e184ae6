package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		nodeID:              1,
		serialDev:           "/dev/null",
		baud:                115200,
		serialReadTimeout:   10 * time.Millisecond,
		pollInterval:        5 * time.Millisecond,
		monitorListenAddr:   ":20000",
		monitorHubBuffer:    8,
		monitorHubPolicy:    "drop",
		monitorMaxClients:   0,
		monitorHandshakeTO:  time.Second,
		monitorClientReadTO: time.Second,
		logFormat:           "text",
		logLevel:            "info",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"emptySerial", func(c *appConfig) { c.serialDev = "" }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badPollInterval", func(c *appConfig) { c.pollInterval = 0 }},
		{"badPolicy", func(c *appConfig) { c.monitorHubPolicy = "x" }},
		{"badHubBuffer", func(c *appConfig) { c.monitorHubBuffer = 0 }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
	}
	for _, tc := range tests {
		c := validConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
