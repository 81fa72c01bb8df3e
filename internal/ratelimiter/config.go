package ratelimiter

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config is the immutable configuration shared by both rate limiter
// implementations (C4 atomic, C5 semaphore). Build one with NewConfigBuilder;
// the zero value is not guaranteed to satisfy the invariants below.
type Config struct {
	// TimeoutDuration is how long a caller waits for a permit.
	TimeoutDuration time.Duration `default:"5s" validate:"gte=0"`
	// LimitRefreshPeriod is the cycle length.
	LimitRefreshPeriod time.Duration `default:"500ns" validate:"gt=0"`
	// LimitForPeriod is the number of permits issued per cycle.
	LimitForPeriod int `default:"50" validate:"gte=1"`
}

var validate = validator.New()

// ConfigBuilder builds a validated, immutable Config. Construct one with
// NewConfigBuilder, which starts all fields at their defaults for the
// With* setters to override; a zero-value ConfigBuilder starts with zeroed
// fields, which Build rejects.
type ConfigBuilder struct {
	cfg Config
	set map[string]bool
}

// NewConfigBuilder returns a builder pre-populated with the struct-tag
// defaults (5s timeout, 500ns refresh period, 50 permits per period).
func NewConfigBuilder() *ConfigBuilder {
	cfg := Config{}
	_ = defaults.Set(&cfg)
	return &ConfigBuilder{cfg: cfg, set: map[string]bool{}}
}

// WithTimeoutDuration overrides TimeoutDuration.
func (b *ConfigBuilder) WithTimeoutDuration(d time.Duration) *ConfigBuilder {
	b.cfg.TimeoutDuration = d
	return b
}

// WithLimitRefreshPeriod overrides LimitRefreshPeriod.
func (b *ConfigBuilder) WithLimitRefreshPeriod(d time.Duration) *ConfigBuilder {
	b.cfg.LimitRefreshPeriod = d
	return b
}

// WithLimitForPeriod overrides LimitForPeriod.
func (b *ConfigBuilder) WithLimitForPeriod(n int) *ConfigBuilder {
	b.cfg.LimitForPeriod = n
	return b
}

// Build validates the accumulated configuration and returns it, or a
// ConfigurationError naming the first offending field.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := validate.Struct(b.cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return Config{}, &ConfigurationError{
				Field:  verrs[0].Field(),
				Reason: fmt.Sprintf("failed %q constraint (value: %v)", verrs[0].Tag(), verrs[0].Value()),
			}
		}
		return Config{}, &ConfigurationError{Field: "Config", Reason: err.Error()}
	}
	return b.cfg, nil
}

// ConfigurationError is returned by ConfigBuilder.Build when a field fails
// validation. It names the offending field, per spec.md §4.7.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ratelimiter: invalid configuration field %q: %s", e.Field, e.Reason)
}

// NullNameError is the panic value when a rate limiter constructor is
// called with an empty name.
type NullNameError struct{}

func (NullNameError) Error() string { return "ratelimiter: name must not be empty" }

// NullConfigError is the panic value when a rate limiter constructor is
// called with a zero-value Config that was never passed through
// ConfigBuilder.Build.
type NullConfigError struct{}

func (NullConfigError) Error() string {
	return "ratelimiter: config must be built via ConfigBuilder, not a zero value"
}

// DefaultConfig returns a Config populated entirely with defaults. Equivalent
// to NewConfigBuilder().Build() but panics on validation failure, which
// should be unreachable since the defaults themselves always validate.
func DefaultConfig() Config {
	cfg, err := NewConfigBuilder().Build()
	if err != nil {
		panic("ratelimiter: default configuration failed to validate: " + err.Error())
	}
	return cfg
}
