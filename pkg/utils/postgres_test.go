package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 10 || got.MaxIdleConns != 10 {
		t.Fatalf("unexpected conn defaults: %+v", got)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %s", got.PingTimeout)
	}
}

func TestPostgresPoolConfig_ExplicitValuesKept(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}
	got := in.withDefaults()
	if got.MaxOpenConns != 3 || got.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", got)
	}
}
