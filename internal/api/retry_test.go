package api

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func asError[T error](err error, target *T) bool {
	return errors.As(err, target)
}

func TestCircuitBreakerThreshold(t *testing.T) {
	cb := &circuitBreaker{threshold: 2}

	if cb.recordFailure() {
		t.Error("first failure should not open the circuit")
	}
	if cb.isOpen() {
		t.Error("circuit should be closed after 1 failure")
	}
	if !cb.recordFailure() {
		t.Error("second failure should open the circuit")
	}
	if !cb.isOpen() {
		t.Error("circuit should be open after 2 failures")
	}
	cb.recordSuccess()
	if cb.isOpen() {
		t.Error("success closes the circuit")
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb := &circuitBreaker{threshold: 1, resetTime: 10 * time.Millisecond}
	cb.recordFailure()
	if !cb.isOpen() {
		t.Fatal("circuit should be open")
	}

	time.Sleep(15 * time.Millisecond)
	if cb.isOpen() {
		t.Fatal("circuit should be half-open after reset time")
	}
	if !cb.recordFailure() {
		t.Fatal("probe failure should re-open the circuit")
	}
	if !cb.isOpen() {
		t.Fatal("circuit should be open again")
	}

	cb.reset()
	if cb.isOpen() || cb.failures != 0 {
		t.Fatal("reset should close the circuit")
	}
}

func TestDefaultRetryConfigFromEnv(t *testing.T) {
	t.Setenv("TICKETSYNC_MAX_5XX_RETRIES", "4")
	t.Setenv("TICKETSYNC_RATE_LIMIT_DELAY", "250ms")
	t.Setenv("TICKETSYNC_CIRCUIT_BREAKER_THRESHOLD", "not-a-number")

	cfg := DefaultRetryConfig()
	if cfg.Max5xxRetries != 4 {
		t.Errorf("Max5xxRetries = %d", cfg.Max5xxRetries)
	}
	if cfg.RateLimitBaseDelay != 250*time.Millisecond {
		t.Errorf("RateLimitBaseDelay = %s", cfg.RateLimitBaseDelay)
	}
	if cfg.CircuitBreakerThreshold != DefaultCircuitBreakerThreshold {
		t.Errorf("CircuitBreakerThreshold = %d", cfg.CircuitBreakerThreshold)
	}
	if cfg.MaxRateLimitRetries != DefaultMaxRateLimitRetries {
		t.Errorf("MaxRateLimitRetries = %d", cfg.MaxRateLimitRetries)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	h := http.Header{}
	if _, ok := retryAfterDuration(h); ok {
		t.Error("missing header should not parse")
	}
	h.Set("Retry-After", "5")
	if d, ok := retryAfterDuration(h); !ok || d != 5*time.Second {
		t.Errorf("seconds = %s %v", d, ok)
	}
	h.Set("Retry-After", "-3")
	if d, ok := retryAfterDuration(h); !ok || d != 0 {
		t.Errorf("negative = %s %v", d, ok)
	}
	h.Set("Retry-After", time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
	if d, ok := retryAfterDuration(h); !ok || d != 0 {
		t.Errorf("past date = %s %v", d, ok)
	}
	h.Set("Retry-After", "soon")
	if _, ok := retryAfterDuration(h); ok {
		t.Error("garbage should not parse")
	}
}

func TestParseRateLimitReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, ok := parseRateLimitReset("60", now); !ok || !got.Equal(now.Add(time.Minute)) {
		t.Errorf("relative = %v %v", got, ok)
	}
	if got, ok := parseRateLimitReset("1700000000", now); !ok || got.Unix() != 1700000000 {
		t.Errorf("unix = %v %v", got, ok)
	}
	if _, ok := parseRateLimitReset("", now); ok {
		t.Error("empty should not parse")
	}
}
