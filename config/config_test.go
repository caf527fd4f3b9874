package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddress != ":8080" {
		t.Fatalf("expect default server address, got %s", cfg.ServerAddress)
	}
	if cfg.Registry != "memory" {
		t.Fatalf("expect default registry memory, got %s", cfg.Registry)
	}
	if cfg.BreakerSampleSize != 20 {
		t.Fatalf("expect default breaker sample size 20, got %d", cfg.BreakerSampleSize)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("MICRO_REGISTRY", "consul")
	t.Setenv("GATEWAY_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Registry != "consul" {
		t.Fatalf("expect env override to consul, got %s", cfg.Registry)
	}
	if cfg.GatewayPort != 9090 {
		t.Fatalf("expect env override to 9090, got %d", cfg.GatewayPort)
	}
}
