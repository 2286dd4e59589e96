package config

import (
	"time"

	"schedcal/core/model"
)

// RulesConfig exposes the scheduling constraints in minutes.
type RulesConfig struct {
	MinGapMinutes           int `json:"min_gap_minutes"`
	CrossTypeGapMinutes     int `json:"cross_type_gap_minutes"`
	MaxStreetsPerDayMinutes int `json:"max_streets_per_day_minutes"`
	MaxStreetGapMinutes     int `json:"max_street_gap_minutes"`
	MinBlockSize            int `json:"min_block_size"`
}

// SetDefaults fills unset fields from the production rule set.
func (c *RulesConfig) SetDefaults() {
	def := model.DefaultRules()
	if c.MinGapMinutes <= 0 {
		c.MinGapMinutes = int(def.MinGap / time.Minute)
	}
	if c.CrossTypeGapMinutes <= 0 {
		c.CrossTypeGapMinutes = int(def.CrossTypeGap / time.Minute)
	}
	if c.MaxStreetsPerDayMinutes <= 0 {
		c.MaxStreetsPerDayMinutes = int(def.MaxStreetsPerDay / time.Minute)
	}
	if c.MaxStreetGapMinutes <= 0 {
		c.MaxStreetGapMinutes = int(def.MaxStreetGap / time.Minute)
	}
	if c.MinBlockSize <= 0 {
		c.MinBlockSize = def.MinBlockSize
	}
}

// Build converts the config into scheduling rules.
func (c RulesConfig) Build() model.SchedulingRules {
	return model.SchedulingRules{
		MinGap:           time.Duration(c.MinGapMinutes) * time.Minute,
		CrossTypeGap:     time.Duration(c.CrossTypeGapMinutes) * time.Minute,
		MaxStreetsPerDay: time.Duration(c.MaxStreetsPerDayMinutes) * time.Minute,
		MaxStreetGap:     time.Duration(c.MaxStreetGapMinutes) * time.Minute,
		MinBlockSize:     c.MinBlockSize,
	}
}

// Validate checks the rule set for internal consistency.
func (c RulesConfig) Validate() error {
	return c.Build().Validate()
}

// SolverConfig bounds the search effort of one run.
type SolverConfig struct {
	BudgetSeconds int   `json:"budget_seconds"`
	NodeLimit     int64 `json:"node_limit"`
	SlotMinutes   int   `json:"slot_minutes"`
}

// SetDefaults applies sane defaults.
func (c *SolverConfig) SetDefaults() {
	if c.BudgetSeconds <= 0 {
		c.BudgetSeconds = 30
	}
	if c.NodeLimit <= 0 {
		c.NodeLimit = 5_000_000
	}
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = 5
	}
}

// Budget returns the wall-clock search budget.
func (c SolverConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// Slot returns the candidate discretization step.
func (c SolverConfig) Slot() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}
