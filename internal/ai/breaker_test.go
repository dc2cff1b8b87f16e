package ai

import (
	"testing"
	"time"
)

func TestBreaker_ShutsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour, CooldownCap: time.Hour, ProbeBudget: 1})

	if !b.Allow("m") {
		t.Fatal("fresh breaker must allow")
	}
	b.RecordFailure("m")
	b.RecordFailure("m")
	if !b.Allow("m") {
		t.Fatal("shut before threshold")
	}
	b.RecordFailure("m")
	if b.Allow("m") {
		t.Fatal("threshold reached but requests still allowed")
	}
}

func TestBreaker_PerModelIsolation(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour, CooldownCap: time.Hour, ProbeBudget: 1})

	b.RecordFailure("bad-model")
	if b.Allow("bad-model") {
		t.Fatal("failed model still allowed")
	}
	if !b.Allow("other-model") {
		t.Fatal("healthy model blocked by another model's failures")
	}
}

func TestBreaker_ProbeBudgetAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Nanosecond, CooldownCap: time.Nanosecond, ProbeBudget: 2})

	b.RecordFailure("m")
	time.Sleep(time.Millisecond)

	// Cooldown elapsed: exactly ProbeBudget trial requests pass.
	if !b.Allow("m") || !b.Allow("m") {
		t.Fatal("probe budget not honored")
	}
	if b.Allow("m") {
		t.Fatal("requests allowed beyond the probe budget")
	}

	b.RecordSuccess("m")
	if !b.Allow("m") {
		t.Fatal("successful probe did not reopen the model")
	}
}

func TestBreaker_FailedProbeGrowsCooldownLinearly(t *testing.T) {
	cfg := BreakerConfig{FailureThreshold: 1, Cooldown: time.Second, CooldownCap: time.Minute, ProbeBudget: 1}
	b := NewBreaker(cfg)

	b.RecordFailure("m")
	h := b.models["m"]
	first := time.Until(h.shutUntil)

	// Pretend the cooldown elapsed, then fail the probe.
	b.mu.Lock()
	h.shutUntil = time.Now().Add(-time.Millisecond)
	b.mu.Unlock()
	b.RecordFailure("m")

	second := time.Until(h.shutUntil)
	if second <= first {
		t.Errorf("failed probe did not lengthen the cooldown: %v <= %v", second, first)
	}
	if second > cfg.CooldownCap+time.Second {
		t.Errorf("cooldown exceeded the cap: %v", second)
	}
}

func TestBreaker_SuccessClearsCounters(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour, CooldownCap: time.Hour, ProbeBudget: 1})

	b.RecordFailure("m")
	b.RecordSuccess("m")
	b.RecordFailure("m")
	// The earlier failure was wiped; one more is still under the threshold.
	if !b.Allow("m") {
		t.Fatal("success did not clear the failure count")
	}
}
