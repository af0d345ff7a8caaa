package admission

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is returned when the client exceeded its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrBusy is returned when all model slots are occupied.
var ErrBusy = errors.New("all model slots busy")

// RateLimitError carries the retry hint for a rate-limit rejection.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// BusyError carries the gate snapshot for a concurrency rejection.
type BusyError struct {
	Status GateStatus
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("all model slots busy (%d in flight)", e.Status.InFlight)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

// Config holds admission controller configuration.
type Config struct {
	MaxConcurrent        int
	MaxRequests          int
	Window               time.Duration
	EstimatedCallSeconds int
}

// Controller combines the rate limiter and the concurrency gate.
// The two mechanisms are independent; both must pass.
type Controller struct {
	limiter *RateLimiter
	gate    *Gate
}

// NewController creates an admission controller from config.
func NewController(cfg Config) *Controller {
	return &Controller{
		limiter: NewRateLimiter(cfg.MaxRequests, cfg.Window),
		gate:    NewGate(cfg.MaxConcurrent, cfg.EstimatedCallSeconds),
	}
}

// Admit checks both mechanisms for a request from clientKey. On success
// the returned release function frees the concurrency slot and must be
// called exactly once. On rejection the error is a *RateLimitError or
// *BusyError and no slot is held.
//
// A rate-limited request still consumes no slot, and a gate-rejected
// request still counts against the client's rate budget: the rate limiter
// meters demand, not completions.
func (c *Controller) Admit(clientKey string) (release func(), err error) {
	if !c.limiter.Allow(clientKey) {
		return nil, &RateLimitError{RetryAfter: c.limiter.RetryAfter()}
	}

	release, ok := c.gate.TryAcquire()
	if !ok {
		return nil, &BusyError{Status: c.gate.Status()}
	}
	return release, nil
}

// Gate exposes the concurrency gate for status reporting.
func (c *Controller) Gate() *Gate { return c.gate }

// PruneClients drops idle clients from the rate limiter.
func (c *Controller) PruneClients() { c.limiter.Prune() }
