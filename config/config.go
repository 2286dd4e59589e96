package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"schedcal/core/metrics"
	"schedcal/infra/gcal"
	"schedcal/infra/monday"
)

type Config struct {
	Calendar CalendarConfig `json:"calendar"`
	Rules    RulesConfig    `json:"rules"`
	Solver   SolverConfig   `json:"solver"`
	Metrics  metrics.Config `json:"metrics"`
	API      APIConfig      `json:"api"`
	Monday   monday.Config  `json:"monday"`
	GCal     gcal.Config    `json:"gcal"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SCHED_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sched_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Rules.SetDefaults()
	cfg.Solver.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Monday.SetDefaults()
	cfg.GCal.SetDefaults()
	if err := cfg.Calendar.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Monday.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.GCal.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIConfig defines settings for the HTTP API server.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
