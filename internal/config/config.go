// Package config loads the kmon YAML configuration. Files are checked
// against an embedded CUE schema before they are decoded.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/HaPhanBaoMinh/kmon/help"
)

//go:embed schema.cue
var schema string

const (
	BackendMock       = "mock"
	BackendManagement = "management"
	BackendKubernetes = "kubernetes"
	BackendPrometheus = "prometheus"
)

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Kubernetes struct {
	Kubeconfig string  `yaml:"kubeconfig"`
	Context    string  `yaml:"context"`
	Namespace  string  `yaml:"namespace"`
	Selector   string  `yaml:"selector"`
	QPS        float32 `yaml:"qps"`
	Burst      int     `yaml:"burst"`
}

type Management struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Prometheus struct {
	Address         string            `yaml:"address"`
	BearerTokenFile string            `yaml:"bearerTokenFile"`
	Timeout         time.Duration     `yaml:"timeout"`
	Queries         map[string]string `yaml:"queries"`
}

type Serve struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Backend    string        `yaml:"backend"`
	Entity     string        `yaml:"entity"`
	Interval   time.Duration `yaml:"interval"`
	PerPage    int           `yaml:"perPage"`
	RateWindow int           `yaml:"rateWindow"`
	TopN       int           `yaml:"topN"`

	Log        Log        `yaml:"log"`
	Kubernetes Kubernetes `yaml:"kubernetes"`
	Management Management `yaml:"management"`
	Prometheus Prometheus `yaml:"prometheus"`
	Serve      Serve      `yaml:"serve"`
}

// DefaultPath is ~/.config/kmon/config.yaml.
func DefaultPath() string {
	return filepath.Join(help.HomeDir(), ".config", "kmon", "config.yaml")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path, validates it and fills in defaults. A missing file yields
// the defaults unless required is set.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes a YAML document. name is used in error messages.
func Parse(name string, data []byte) (*Config, error) {
	if err := ValidateWithCue(name, data); err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateWithCue checks a YAML document against the embedded #Config schema.
func ValidateWithCue(name string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	cfgVal := ctx.BuildFile(file)
	if err := cfgVal.Err(); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	final := schemaVal.LookupPath(cue.ParsePath("#Config")).Unify(cfgVal)
	if err := final.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMock
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.PerPage <= 0 {
		c.PerPage = 10
	}
	if c.RateWindow <= 0 {
		c.RateWindow = 12
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Kubernetes.Kubeconfig == "" {
		c.Kubernetes.Kubeconfig = filepath.Join(help.HomeDir(), ".kube", "config")
	}
	if c.Kubernetes.Namespace == "" {
		c.Kubernetes.Namespace = "all"
	}
	if c.Management.Timeout <= 0 {
		c.Management.Timeout = 10 * time.Second
	}
	if c.Prometheus.Timeout <= 0 {
		c.Prometheus.Timeout = 15 * time.Second
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
}

// Validate checks the cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMock, BackendKubernetes:
	case BackendManagement:
		if c.Management.Endpoint == "" {
			return errors.New("management.endpoint is required for the management backend")
		}
	case BackendPrometheus:
		if c.Prometheus.Address == "" {
			return errors.New("prometheus.address is required for the prometheus backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Interval < 100*time.Millisecond {
		return fmt.Errorf("interval %s is too short", c.Interval)
	}
	return nil
}
