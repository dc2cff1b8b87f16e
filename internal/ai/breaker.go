package ai

import (
	"sync"
	"time"
)

// BreakerConfig tunes the per-model health gate in front of LLM calls.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive transient failures shut a
	// model down.
	FailureThreshold int
	// Cooldown is the base shut duration. Each consecutive shut period adds
	// another Cooldown, up to CooldownCap.
	Cooldown    time.Duration
	CooldownCap time.Duration
	// ProbeBudget is how many trial requests may go through once a cooldown
	// expires. A single success reopens the model fully.
	ProbeBudget int
}

// DefaultBreakerConfig returns the standard gate settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 4,
		Cooldown:         20 * time.Second,
		CooldownCap:      2 * time.Minute,
		ProbeBudget:      2,
	}
}

// Breaker shields the provider from hammering while a model is unhealthy.
// Health is tracked per model id, the same keying the rate limiter uses, so
// one misbehaving model never blocks the others. There is no explicit state
// enum: a model is shut while its deadline lies in the future, probing while
// it has probe budget left, and healthy otherwise.
type Breaker struct {
	mu     sync.Mutex
	config BreakerConfig
	models map[string]*modelHealth
}

type modelHealth struct {
	failures   int
	shutUntil  time.Time
	shutSpans  int // consecutive shut periods; scales the next cooldown
	probesLeft int
}

// NewBreaker creates a gate with no recorded failures.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.CooldownCap < cfg.Cooldown {
		cfg.CooldownCap = cfg.Cooldown
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 1
	}
	return &Breaker{config: cfg, models: make(map[string]*modelHealth)}
}

// Allow reports whether a request for model may proceed now.
func (b *Breaker) Allow(model string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.models[model]
	if !ok {
		return true
	}
	if h.shutUntil.IsZero() {
		return true
	}
	if time.Now().Before(h.shutUntil) {
		return false
	}
	// Cooldown expired: spend probe budget until a verdict arrives.
	if h.probesLeft > 0 {
		h.probesLeft--
		return true
	}
	return false
}

// RecordSuccess marks model healthy again and clears all penalties.
func (b *Breaker) RecordSuccess(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.models, model)
}

// RecordFailure counts a transient provider failure. Crossing the threshold
// shuts the model; failing during a probe window shuts it again for longer.
// The cooldown grows linearly with consecutive shut periods so a flapping
// provider backs off steadily without the first bad minute exploding into
// multi-minute waits.
func (b *Breaker) RecordFailure(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.models[model]
	if !ok {
		h = &modelHealth{}
		b.models[model] = h
	}

	now := time.Now()
	switch {
	case h.shutUntil.IsZero():
		// Healthy so far: count toward the threshold.
		h.failures++
		if h.failures >= b.config.FailureThreshold {
			h.shutSpans++
			h.shut(now, b.config)
		}
	case !now.Before(h.shutUntil):
		// A failed probe starts the next, longer shut period.
		h.shutSpans++
		h.shut(now, b.config)
	default:
		// Still inside the cooldown; nothing new to learn.
	}
}

func (h *modelHealth) shut(now time.Time, cfg BreakerConfig) {
	d := time.Duration(h.shutSpans) * cfg.Cooldown
	if d > cfg.CooldownCap {
		d = cfg.CooldownCap
	}
	h.failures = 0
	h.shutUntil = now.Add(d)
	h.probesLeft = cfg.ProbeBudget
}
