package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := validConfig()
	base.baud = 115200
	base.mdnsEnable = false
	base.logMetricsEvery = 0

	os.Setenv("LINKD_BAUD", "230400")
	os.Setenv("LINKD_MDNS_ENABLE", "true")
	os.Setenv("LINKD_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("LINKD_LOG_METRICS_INTERVAL", "5s")
	t.Cleanup(func() {
		os.Unsetenv("LINKD_BAUD")
		os.Unsetenv("LINKD_MDNS_ENABLE")
		os.Unsetenv("LINKD_SERIAL_READ_TIMEOUT")
		os.Unsetenv("LINKD_LOG_METRICS_INTERVAL")
	})

	if err := applyEnvOverrides(base, map[string]bool{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatal("expected mdnsEnable true")
	}
	if base.serialReadTimeout != 100*time.Millisecond {
		t.Fatalf("expected serialReadTimeout 100ms, got %v", base.serialReadTimeout)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s, got %v", base.logMetricsEvery)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := validConfig()
	base.baud = 115200
	os.Setenv("LINKD_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("LINKD_BAUD") })

	if err := applyEnvOverrides(base, map[string]bool{"baud": true}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged at 115200, got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := validConfig()
	os.Setenv("LINKD_MONITOR_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("LINKD_MONITOR_BUFFER") })

	if err := applyEnvOverrides(base, map[string]bool{}); err == nil {
		t.Fatal("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_BadNodeID(t *testing.T) {
	base := validConfig()
	os.Setenv("LINKD_ID", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("LINKD_ID") })

	if err := applyEnvOverrides(base, map[string]bool{}); err == nil {
		t.Fatal("expected error for bad node id")
	}
}
