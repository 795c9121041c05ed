package quote

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
)

// CircuitBreaker stops aggregator calls after consecutive failures and lets
// them through again once the cooldown has passed
type CircuitBreaker struct {
	config      config.CircuitBreakerConfig
	errorCount  atomic.Uint64
	mu          sync.RWMutex
	openUntil   time.Time
	now         func() time.Time
	trips       prometheus.Counter
	logger      *zap.Logger
}

func NewCircuitBreaker(cfg config.CircuitBreakerConfig, trips prometheus.Counter, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		config: cfg,
		now:    time.Now,
		trips:  trips,
		logger: logger,
	}
}

// Allow reports whether a call may go to the aggregator
func (cb *CircuitBreaker) Allow() bool {
	if !cb.config.Enabled {
		return true
	}
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return !cb.now().Before(cb.openUntil)
}

// RecordSuccess resets the consecutive failure count
func (cb *CircuitBreaker) RecordSuccess() {
	cb.errorCount.Store(0)
}

// RecordError counts a failure and reports whether it tripped the breaker
func (cb *CircuitBreaker) RecordError(err error) bool {
	if !cb.config.Enabled {
		return false
	}

	newCount := cb.errorCount.Add(1)
	if int(newCount) < cb.config.ErrorThreshold {
		return false
	}

	cb.tripCircuit(err)
	return true
}

func (cb *CircuitBreaker) tripCircuit(err error) {
	cb.mu.Lock()
	now := cb.now()
	cb.openUntil = now.Add(cb.config.CooldownPeriod)
	cb.mu.Unlock()

	cb.errorCount.Store(0)
	cb.trips.Inc()
	cb.logger.Warn("Circuit breaker tripped",
		zap.Error(err),
		zap.Int("threshold", cb.config.ErrorThreshold),
		zap.Duration("cooldown", cb.config.CooldownPeriod))
}
