package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != BackendMock || c.Interval != 5*time.Second || c.PerPage != 10 || c.RateWindow != 12 || c.TopN != 5 {
		t.Fatalf("defaults = %+v", c)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Fatal("expected error for a required file")
	}
}

func TestParseFile(t *testing.T) {
	doc := `
backend: prometheus
entity: interfaces
interval: 2s
perPage: 25
log:
  level: debug
prometheus:
  address: http://prom:9090
  timeout: 3s
  queries:
    rxBytes: node_network_receive_bytes_total
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != BackendPrometheus || c.Entity != "interfaces" || c.Interval != 2*time.Second || c.PerPage != 25 {
		t.Fatalf("config = %+v", c)
	}
	if c.Prometheus.Timeout != 3*time.Second || c.Prometheus.Queries["rxBytes"] == "" {
		t.Fatalf("prometheus = %+v", c.Prometheus)
	}
	if c.Log.Level != "debug" || c.TopN != 5 {
		t.Fatalf("config = %+v", c)
	}
}

func TestSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown backend": "backend: carrier-pigeon\n",
		"bad interval":    "interval: soon\n",
		"per page":        "perPage: 0\n",
		"unknown key":     "colour: blue\n",
		"log level":       "log:\n  level: loud\n",
	}
	for name, doc := range cases {
		if _, err := Parse(name, []byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidateCrossField(t *testing.T) {
	_, err := Parse("mgmt", []byte("backend: management\n"))
	if err == nil || !strings.Contains(err.Error(), "management.endpoint") {
		t.Fatalf("err = %v", err)
	}
	if _, err := Parse("fast", []byte("interval: 10ms\n")); err == nil {
		t.Fatal("expected error for a tiny interval")
	}
}
