package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	SystemHealthKey = "system:health"
)

// Pinger reports whether one dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	Required     bool   `json:"required"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

type dependency struct {
	name     string
	pinger   Pinger
	required bool
}

// Checker pings the answering service and the optional storage backends.
// The system is unhealthy when a required dependency fails and degraded when
// only optional ones do.
type Checker struct {
	deps    []dependency
	cache   *redis.Client
	timeout time.Duration
	started time.Time
	logger  *logrus.Logger

	mu   sync.RWMutex
	last *OverallHealth
}

// NewChecker returns a checker with service as its one required dependency.
func NewChecker(service Pinger, logger *logrus.Logger) *Checker {
	return &Checker{
		deps:    []dependency{{name: "felicity", pinger: service, required: true}},
		timeout: 5 * time.Second,
		started: time.Now(),
		logger:  logger,
	}
}

// WithOptional adds a dependency whose failure only degrades the system.
func (h *Checker) WithOptional(name string, pinger Pinger) *Checker {
	h.deps = append(h.deps, dependency{name: name, pinger: pinger})
	return h
}

// WithCache shares periodic results through Redis so replicas can serve
// them without pinging.
func (h *Checker) WithCache(client *redis.Client) *Checker {
	h.cache = client
	return h
}

func (h *Checker) check(ctx context.Context, dep dependency) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := dep.pinger.Ping(ctx)
	result := ServiceHealth{
		Name:         dep.name,
		Status:       StatusHealthy,
		Required:     dep.required,
		ResponseTime: time.Since(start).Milliseconds(),
		LastChecked:  time.Now().Format(time.RFC3339),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		h.logger.WithError(err).WithField("service", dep.name).Warn("Health check failed")
	}
	return result
}

// CheckAll pings every dependency concurrently.
func (h *Checker) CheckAll(ctx context.Context) OverallHealth {
	services := make([]ServiceHealth, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Add(1)
		go func(i int, dep dependency) {
			defer wg.Done()
			services[i] = h.check(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	overallStatus := StatusHealthy
	for _, service := range services {
		if service.Status != StatusUnhealthy {
			continue
		}
		if service.Required {
			overallStatus = StatusUnhealthy
			break
		}
		overallStatus = StatusDegraded
	}

	result := OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}

	h.mu.Lock()
	h.last = &result
	h.mu.Unlock()
	return result
}

// Latest returns the most recent result, checking now when there is none.
func (h *Checker) Latest(ctx context.Context) OverallHealth {
	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()
	if last != nil {
		return *last
	}
	if cached, err := h.CheckCached(ctx); err == nil {
		return *cached
	}
	return h.CheckAll(ctx)
}

// CheckCached returns the result another replica stored in Redis.
func (h *Checker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	if h.cache == nil {
		return nil, redis.Nil
	}
	data, err := h.cache.Get(ctx, SystemHealthKey).Bytes()
	if err != nil {
		return nil, err
	}
	var result OverallHealth
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PeriodicHealthCheck runs health checks periodically
func (h *Checker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := h.CheckAll(ctx)
			h.store(ctx, result, 2*interval)
			h.logger.WithField("status", result.Status).Debug("Periodic health check completed")
		}
	}
}

func (h *Checker) store(ctx context.Context, result OverallHealth, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal health status")
		return
	}
	if err := h.cache.Set(ctx, SystemHealthKey, data, ttl).Err(); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}
}
