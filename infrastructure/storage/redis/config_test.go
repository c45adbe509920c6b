package redis

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.KeyPrefix != "toolchanger:" {
		t.Errorf("KeyPrefix = %s, want toolchanger:", cfg.KeyPrefix)
	}
}

func TestConfigFromDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dsn      string
		address  string
		password string
		db       int
		wantErr  bool
	}{
		{name: "empty", dsn: "", address: "localhost:6379"},
		{name: "host port", dsn: "redis.local:6380", address: "redis.local:6380"},
		{name: "url", dsn: "redis://:secret@redis.local:6379/2", address: "redis.local:6379", password: "secret", db: 2},
		{name: "bad scheme", dsn: "http://redis.local", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := ConfigFromDSN(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConfigFromDSN(%q) error = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Address != tt.address || cfg.Password != tt.password || cfg.DB != tt.db {
				t.Errorf("ConfigFromDSN(%q) = %s/%s/%d", tt.dsn, cfg.Address, cfg.Password, cfg.DB)
			}
			if cfg.KeyPrefix != "toolchanger:" {
				t.Errorf("KeyPrefix = %s", cfg.KeyPrefix)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithAddress("10.0.0.5:6379"),
		WithPassword("p@ss"),
		WithDB(4),
		WithKeyPrefix("shop:"),
		WithTimeouts(time.Second, 2*time.Second, 3*time.Second),
	} {
		opt(&cfg)
	}

	o := cfg.options()
	if o.Addr != "10.0.0.5:6379" || o.Password != "p@ss" || o.DB != 4 {
		t.Errorf("options() = %+v", o)
	}
	if o.DialTimeout != time.Second || o.ReadTimeout != 2*time.Second || o.WriteTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v/%v", o.DialTimeout, o.ReadTimeout, o.WriteTimeout)
	}
	if cfg.KeyPrefix != "shop:" {
		t.Errorf("KeyPrefix = %s", cfg.KeyPrefix)
	}
}
