package ratelimit

import "testing"

func TestNewModule_ConfigFallbacks(t *testing.T) {
	def := DefaultConfig()

	tests := []struct {
		name   string
		config Config
		want   Config
	}{
		{"zero values", Config{}, def},
		{"negative burst", Config{Burst: -3, RefillPerSec: 2}, Config{Burst: def.Burst, RefillPerSec: 2}},
		{"zero refill", Config{Burst: 5, RefillPerSec: 0}, Config{Burst: 5, RefillPerSec: def.RefillPerSec}},
		{"negative refill", Config{Burst: 5, RefillPerSec: -1}, Config{Burst: 5, RefillPerSec: def.RefillPerSec}},
		{"valid preserved", Config{Burst: 5, RefillPerSec: 2.5}, Config{Burst: 5, RefillPerSec: 2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule("localhost:6379", tt.config)
			if m.config != tt.want {
				t.Errorf("config = %+v, want %+v", m.config, tt.want)
			}
		})
	}
}
