// Package config provides configuration loading for the trigger engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Engine holds the engine tunables. Zero values are replaced by Defaults.
type Engine struct {
	PollInterval            time.Duration `yaml:"poll_interval"             validate:"gt=0"`
	BackstopInterval        time.Duration `yaml:"backstop_interval"         validate:"gt=0"`
	PruneInterval           time.Duration `yaml:"prune_interval"            validate:"gt=0"`
	DedupRetention          time.Duration `yaml:"dedup_retention"           validate:"gt=0"`
	RateLimitInterval       time.Duration `yaml:"rate_limit_interval"       validate:"gt=0"`
	EmailPageSize           int           `yaml:"email_page_size"           validate:"gte=1,lte=100"`
	MaxConcurrentExecutions int64         `yaml:"max_concurrent_executions" validate:"gte=1"`
	DefaultScheduleInterval time.Duration `yaml:"default_schedule_interval" validate:"gt=0"`
	ChatPollingEnabled      bool          `yaml:"chat_polling_enabled"`
	AIProbeTimeout          time.Duration `yaml:"ai_probe_timeout"          validate:"gt=0"`
	DedupWriteRetries       uint64        `yaml:"dedup_write_retries"       validate:"lte=10"`
	SummaryMaxWords         int           `yaml:"summary_max_words"         validate:"gte=1"`
}

// Defaults returns the reference configuration.
func Defaults() Engine {
	return Engine{
		PollInterval:            30 * time.Second,
		BackstopInterval:        15 * time.Minute,
		PruneInterval:           time.Hour,
		DedupRetention:          7 * 24 * time.Hour,
		RateLimitInterval:       60 * time.Second,
		EmailPageSize:           5,
		MaxConcurrentExecutions: 16,
		DefaultScheduleInterval: time.Hour,
		AIProbeTimeout:          3 * time.Second,
		DedupWriteRetries:       3,
		SummaryMaxWords:         60,
	}
}

// EffectiveDedupRetention never lets pruning remove a record younger than the
// shortest interval at which the same event could be seen again.
func (e Engine) EffectiveDedupRetention() time.Duration {
	return max(e.DedupRetention, 2*e.PollInterval, e.RateLimitInterval)
}

// Validate checks field bounds.
func (e Engine) Validate() error {
	return validator.New().Struct(e)
}

// withDefaults fills unset fields from Defaults.
func (e Engine) withDefaults() Engine {
	d := Defaults()

	if e.PollInterval == 0 {
		e.PollInterval = d.PollInterval
	}

	if e.BackstopInterval == 0 {
		e.BackstopInterval = d.BackstopInterval
	}

	if e.PruneInterval == 0 {
		e.PruneInterval = d.PruneInterval
	}

	if e.DedupRetention == 0 {
		e.DedupRetention = d.DedupRetention
	}

	if e.RateLimitInterval == 0 {
		e.RateLimitInterval = d.RateLimitInterval
	}

	if e.EmailPageSize == 0 {
		e.EmailPageSize = d.EmailPageSize
	}

	if e.MaxConcurrentExecutions == 0 {
		e.MaxConcurrentExecutions = d.MaxConcurrentExecutions
	}

	if e.DefaultScheduleInterval == 0 {
		e.DefaultScheduleInterval = d.DefaultScheduleInterval
	}

	if e.AIProbeTimeout == 0 {
		e.AIProbeTimeout = d.AIProbeTimeout
	}

	if e.SummaryMaxWords == 0 {
		e.SummaryMaxWords = d.SummaryMaxWords
	}

	return e
}

// LoadEngine reads a YAML engine configuration file; unset fields take defaults.
func LoadEngine(filepath string) (Engine, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return Engine{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var engine Engine
	if err := yaml.Unmarshal(data, &engine); err != nil {
		return Engine{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	engine = engine.withDefaults()

	if err := engine.Validate(); err != nil {
		return Engine{}, fmt.Errorf("invalid engine config: %w", err)
	}

	return engine, nil
}

// LoadEngineOrDefault loads the file when it exists, falling back to defaults
// when the path is empty or missing. Parse and validation errors are returned.
func LoadEngineOrDefault(filepath string) (Engine, error) {
	if filepath == "" {
		return Defaults(), nil
	}

	if _, err := os.Stat(filepath); errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}

	return LoadEngine(filepath)
}
