package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	coreBroker "github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/metrics"
)

// CircuitBreakerSettings configures the underlying gobreaker.CircuitBreaker:
// MaxRequests/Interval/Timeout govern the half-open probe window, and
// MinRequests/FailureRatio govern when a run of failures trips it open.
type CircuitBreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultCircuitBreakerSettings trips once at least half of at least 5
// requests in a rolling window fail, then probes again after 30s.
var DefaultCircuitBreakerSettings = CircuitBreakerSettings{
	MaxRequests:  1,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// CircuitBreakerBroker wraps a coreBroker.Broker, tripping open after a
// run of failures so a broker outage fails fast instead of blocking every
// subsequent call behind the retry client's full backoff schedule.
type CircuitBreakerBroker struct {
	broker  coreBroker.Broker
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerBroker wraps broker with DefaultCircuitBreakerSettings.
func NewCircuitBreakerBroker(broker coreBroker.Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, DefaultCircuitBreakerSettings)
}

// NewCircuitBreakerBrokerWithSettings wraps broker with the given settings.
func NewCircuitBreakerBrokerWithSettings(broker coreBroker.Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	st := gobreaker.Settings{
		Name:        "broker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, stateOrdinal(to))
		},
	}
	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func stateOrdinal(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

var _ coreBroker.Broker = (*CircuitBreakerBroker)(nil)

// GetAccountEquity implements coreBroker.Broker.
func (cb *CircuitBreakerBroker) GetAccountEquity(ctx context.Context) (money.Decimal, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.broker.GetAccountEquity(ctx)
	})
	if err != nil {
		return money.Zero, wrapBreakerErr(err)
	}
	return result.(money.Decimal), nil
}

// SubmitCreditSpread implements coreBroker.Broker. The breaker still wraps
// submission (a broker known to be down should not be asked to place an
// order), but the call inside remains exactly one attempt — the breaker
// only gates whether the attempt happens, it never itself retries.
func (cb *CircuitBreakerBroker) SubmitCreditSpread(ctx context.Context, req coreBroker.SpreadOrderRequest) (coreBroker.SubmissionOutcome, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.broker.SubmitCreditSpread(ctx, req)
	})
	if err != nil {
		return coreBroker.SubmissionOutcome{}, wrapBreakerErr(err)
	}
	return result.(coreBroker.SubmissionOutcome), nil
}

// GetTodayOrders implements coreBroker.Broker.
func (cb *CircuitBreakerBroker) GetTodayOrders(ctx context.Context, max int) ([]coreBroker.Order, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.broker.GetTodayOrders(ctx, max)
	})
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	return result.([]coreBroker.Order), nil
}

func wrapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return err
	}
	return fmt.Errorf("broker: %w", err)
}
