package relay

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	c := &Config{}
	if got := c.idleTimeout(); got != 10*time.Second {
		t.Errorf("idleTimeout default = %v, want 10s", got)
	}
	if got := c.keepAlive(); got != 4*time.Second {
		t.Errorf("keepAlive default = %v, want 4s", got)
	}
}

func TestConfigOverrides(t *testing.T) {
	c := &Config{IdleTimeout: 30 * time.Second, KeepAlive: time.Second}
	if got := c.idleTimeout(); got != 30*time.Second {
		t.Errorf("idleTimeout = %v, want 30s", got)
	}
	if got := c.keepAlive(); got != time.Second {
		t.Errorf("keepAlive = %v, want 1s", got)
	}
}
