package breaker

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// RecordFailurePredicate classifies a cause as recordable (true) or ignored
// (false). The default predicate records every cause, nil included.
type RecordFailurePredicate func(cause error) bool

func defaultRecordFailurePredicate(error) bool { return true }

// Config is the circuit breaker's immutable configuration, built once and
// shared per spec.md §3. Construct with NewConfigBuilder; do not build a
// Config literal directly (RecordFailurePredicate needs a default and
// validator tags can't cover function fields).
type Config struct {
	FailureRateThreshold         float64 `default:"50" validate:"gt=0,lte=100"`
	RingBufferSizeInClosedState  int     `default:"100" validate:"gte=1"`
	RingBufferSizeInHalfOpenState int    `default:"10" validate:"gte=1"`
	WaitDurationInOpenState      time.Duration `default:"60s" validate:"gte=0"`

	RecordFailurePredicate RecordFailurePredicate `validate:"-"`
}

var validate = validator.New()

// ConfigBuilder builds a validated Config.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder returns a builder pre-populated with spec defaults:
// 50% threshold, 100-call closed buffer, 10-call half-open buffer, 60s wait.
func NewConfigBuilder() *ConfigBuilder {
	cfg := Config{}
	_ = defaults.Set(&cfg)
	cfg.RecordFailurePredicate = defaultRecordFailurePredicate
	return &ConfigBuilder{cfg: cfg}
}

// WithFailureRateThreshold overrides the failure-rate percentage, must be
// in (0, 100].
func (b *ConfigBuilder) WithFailureRateThreshold(pct float64) *ConfigBuilder {
	b.cfg.FailureRateThreshold = pct
	return b
}

// WithRingBufferSizeInClosedState overrides the closed-state buffer size.
func (b *ConfigBuilder) WithRingBufferSizeInClosedState(n int) *ConfigBuilder {
	b.cfg.RingBufferSizeInClosedState = n
	return b
}

// WithRingBufferSizeInHalfOpenState overrides the half-open buffer size.
func (b *ConfigBuilder) WithRingBufferSizeInHalfOpenState(n int) *ConfigBuilder {
	b.cfg.RingBufferSizeInHalfOpenState = n
	return b
}

// WithWaitDurationInOpenState overrides the open-state wait duration.
func (b *ConfigBuilder) WithWaitDurationInOpenState(d time.Duration) *ConfigBuilder {
	b.cfg.WaitDurationInOpenState = d
	return b
}

// WithRecordFailurePredicate overrides which causes count toward the
// failure rate. nil is rejected at Build() time.
func (b *ConfigBuilder) WithRecordFailurePredicate(p RecordFailurePredicate) *ConfigBuilder {
	b.cfg.RecordFailurePredicate = p
	return b
}

// Build validates the accumulated configuration and returns it, or a
// ConfigurationError naming the first offending field.
func (b *ConfigBuilder) Build() (Config, error) {
	if b.cfg.RecordFailurePredicate == nil {
		return Config{}, &ConfigurationError{Field: "RecordFailurePredicate", Reason: "must not be nil"}
	}
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
// validation, per spec.md §4.7.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("breaker: invalid configuration field %q: %s", e.Field, e.Reason)
}

// DefaultConfig returns a Config populated entirely with defaults. Panics if
// validation somehow fails, which should be unreachable for the defaults
// themselves.
func DefaultConfig() Config {
	cfg, err := NewConfigBuilder().Build()
	if err != nil {
		panic("breaker: default configuration failed to validate: " + err.Error())
	}
	return cfg
}
