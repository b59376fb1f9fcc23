package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testOwner = "0x1111111111111111111111111111111111111111"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `Owner = "`+testOwner+`"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8551" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.StorageBackend != "leveldb" {
		t.Fatalf("unexpected backend %q", cfg.StorageBackend)
	}
	if cfg.RPC.RateLimitPerSecond != 10 || cfg.RPC.RateLimitBurst != 20 {
		t.Fatalf("unexpected rate limits %+v", cfg.RPC)
	}
	if cfg.OwnerAddress() == ([20]byte{}) {
		t.Fatal("owner address must parse to a non-zero principal")
	}
	if cfg.Params.MinStake().Sign() != 0 {
		t.Fatalf("empty min stake must default to zero, got %s", cfg.Params.MinStake())
	}
	if cfg.Params.MaxStake().Sign() <= 0 {
		t.Fatal("empty max stake must default to effectively unbounded")
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing owner", `RPCAddress = ":8551"`},
		{"bad owner", `Owner = "not-an-address"`},
		{"bad backend", `Owner = "` + testOwner + `"` + "\n" + `StorageBackend = "redis"`},
		{"reward bps", `Owner = "` + testOwner + `"` + "\n[params]\nRewardMultiplierBps = 10001"},
		{"inverted bounds", `Owner = "` + testOwner + `"` + "\n[params]\nMinStake = \"100\"\nMaxStake = \"10\""},
		{"bad genesis address", `Owner = "` + testOwner + `"` + "\n[[genesis]]\nAddress = \"nope\"\nAmount = \"10\""},
		{"bad genesis amount", `Owner = "` + testOwner + `"` + "\n[[genesis]]\nAddress = \"" + testOwner + "\"\nAmount = \"-5\""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected load to fail")
			}
		})
	}
}

func TestLoadParsesFullConfig(t *testing.T) {
	body := `
RPCAddress = ":9000"
DataDir = "/tmp/linkstake"
StorageBackend = "memory"
Environment = "test"
Owner = "` + testOwner + `"

[params]
MinStake = "100"
MaxStake = "1000"
RewardMultiplierBps = 1500
SlashPenaltyBps = 2000
LockDurationSeconds = 3600

[rpc]
RateLimitPerSecond = 50.0
RateLimitBurst = 100

[telemetry]
Enabled = true
Endpoint = "collector:4318"
Insecure = true
Metrics = true
Traces = true

[[genesis]]
Address = "0x2222222222222222222222222222222222222222"
Amount = "1000000"
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.StorageBackend != "memory" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Params.MinStake().Int64() != 100 || cfg.Params.MaxStake().Int64() != 1000 {
		t.Fatalf("unexpected stake bounds %s..%s", cfg.Params.MinStake(), cfg.Params.MaxStake())
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if len(cfg.Genesis) != 1 {
		t.Fatalf("expected one genesis entry, got %d", len(cfg.Genesis))
	}
	addr, amount, err := cfg.Genesis[0].Parse()
	if err != nil {
		t.Fatalf("parse genesis: %v", err)
	}
	if addr == ([20]byte{}) || amount.Int64() != 1_000_000 {
		t.Fatalf("unexpected genesis entry addr=%x amount=%s", addr, amount)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error instructing operator to set Owner")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
}
