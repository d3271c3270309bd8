// Package monitor implements the Quote-Monitor Loop (C10): fixed-interval
// polling of the Credit Evaluator until the net-credit threshold is met
// or the entry-window deadline passes.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/eliywilner/spxspread/internal/core/credit"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

// PollInterval is the fixed polling cadence (§4.10, §6: 10s).
const PollInterval = 10 * time.Second

// ErrNoFill is returned when the deadline is reached without the
// threshold ever being met.
var ErrNoFill = errors.New("monitor: no fill before deadline")

// Params bundles the frozen strikes/option-type and the deadline.
type Params struct {
	Date         time.Time
	ShortStrike  float64
	LongStrike   float64
	OptionType   marketdata.OptionType
	Deadline     time.Time
	MinNetCredit money.Decimal
}

// Now is the injectable wall-clock source the loop checks the deadline
// against, mirroring the rest of the core's clock injection.
type Now func() time.Time

// Sleep is the injectable poll-interval waiter, for deterministic tests.
type Sleep func(ctx context.Context, d time.Duration) error

// DefaultSleep blocks for d or until ctx is cancelled.
func DefaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run polls the evaluator every PollInterval. On each poll: an
// unavailable reading or a below-threshold net credit waits and retries;
// a threshold-meeting reading ends the loop immediately with that
// reading. Reaching Params.Deadline ends the loop with ErrNoFill. The
// loop is single-threaded and not preempted by any other phase.
func Run(ctx context.Context, eval *credit.Evaluator, now Now, sleep Sleep, p Params) (credit.SpreadCredit, error) {
	for {
		if !now().Before(p.Deadline) {
			return credit.SpreadCredit{}, ErrNoFill
		}

		reading, err := eval.Evaluate(ctx, p.Date, p.ShortStrike, p.LongStrike, p.OptionType)
		if err == nil && reading.MeetsThreshold(p.MinNetCredit) {
			return reading, nil
		}
		// Unavailable quotes and transient transport errors are both
		// tolerated here: the Market Data Adapter contract (§4.2) makes
		// the consumer responsible for its own retry loop.

		if err := sleep(ctx, PollInterval); err != nil {
			return credit.SpreadCredit{}, err
		}
	}
}
