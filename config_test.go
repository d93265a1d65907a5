package goThrottle

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RateLimit.DefaultMaxRequests != 10 || cfg.RateLimit.DefaultWindow != 60*time.Second {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Login.FailuresPerBlock != 3 || len(cfg.Login.BlockSchedule) != 12 {
		t.Fatalf("unexpected login defaults: %+v", cfg.Login)
	}
	if cfg.Login.BlockSchedule[0] != 10*time.Second || cfg.Login.BlockSchedule[11] != 240*time.Hour {
		t.Fatalf("unexpected schedule bounds: %v", cfg.Login.BlockSchedule)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "empty key prefix",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "zero default cap",
			mutate: func(c *Config) {
				c.RateLimit.DefaultMaxRequests = 0
			},
			wantValid: false,
		},
		{
			name: "sub-second default window",
			mutate: func(c *Config) {
				c.RateLimit.DefaultWindow = 999 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "one second window",
			mutate: func(c *Config) {
				c.RateLimit.DefaultWindow = time.Second
			},
			wantValid: true,
		},
		{
			name: "zero failures per block",
			mutate: func(c *Config) {
				c.Login.FailuresPerBlock = 0
			},
			wantValid: false,
		},
		{
			name: "empty schedule",
			mutate: func(c *Config) {
				c.Login.BlockSchedule = nil
			},
			wantValid: false,
		},
		{
			name: "decreasing schedule",
			mutate: func(c *Config) {
				c.Login.BlockSchedule = []time.Duration{time.Minute, 10 * time.Second}
			},
			wantValid: false,
		},
		{
			name: "sub-second schedule entry",
			mutate: func(c *Config) {
				c.Login.BlockSchedule = []time.Duration{100 * time.Millisecond}
			},
			wantValid: false,
		},
		{
			name: "flat schedule",
			mutate: func(c *Config) {
				c.Login.BlockSchedule = []time.Duration{time.Minute, time.Minute}
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "disabled audit ignores buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
			}
		})
	}
}

func TestDefaultBlockScheduleIsFresh(t *testing.T) {
	a := DefaultBlockSchedule()
	a[0] = time.Hour
	if DefaultBlockSchedule()[0] != 10*time.Second {
		t.Fatal("DefaultBlockSchedule returned shared storage")
	}
}
