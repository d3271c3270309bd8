package orcapture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

type stubMarket struct {
	candles []marketdata.Candle
	err     error
}

func (s *stubMarket) Get30MinCandles(context.Context, time.Time, string, string) ([]marketdata.Candle, error) {
	return s.candles, s.err
}

func (s *stubMarket) GetIndexClose(context.Context, time.Time) (money.Decimal, error) {
	return money.Zero, nil
}

func (s *stubMarket) GetSpreadQuote(context.Context, time.Time, float64, float64, marketdata.OptionType) (marketdata.LegPair, error) {
	return marketdata.LegPair{}, nil
}

func TestCapture_ReturnsMatchingBar(t *testing.T) {
	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	barStart := time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC)
	m := &stubMarket{candles: []marketdata.Candle{
		{BarStart: barStart, Open: money.FromFloat(5430), High: money.FromFloat(5440), Low: money.FromFloat(5425), Close: money.FromFloat(5435)},
	}}

	or, err := Capture(context.Background(), m, date)
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if !or.Valid() {
		t.Error("expected a valid opening range")
	}
	if or.Close.Float64() != 5435 {
		t.Errorf("Close = %v, want 5435", or.Close.Float64())
	}
}

func TestCapture_ReturnsErrNoOpeningRangeBarWhenMissing(t *testing.T) {
	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	m := &stubMarket{candles: nil}

	_, err := Capture(context.Background(), m, date)
	if !errors.Is(err, ErrNoOpeningRangeBar) {
		t.Errorf("err = %v, want ErrNoOpeningRangeBar", err)
	}
}

func TestCapture_PropagatesMarketDataError(t *testing.T) {
	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	wantErr := errors.New("adapter down")
	m := &stubMarket{err: wantErr}

	_, err := Capture(context.Background(), m, date)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestOpeningRange_Valid(t *testing.T) {
	cases := []struct {
		name string
		or   OpeningRange
		want bool
	}{
		{"bullish_within_bounds", OpeningRange{Open: money.FromFloat(5430), Close: money.FromFloat(5435), Low: money.FromFloat(5425), High: money.FromFloat(5440)}, true},
		{"bearish_within_bounds", OpeningRange{Open: money.FromFloat(5435), Close: money.FromFloat(5430), Low: money.FromFloat(5425), High: money.FromFloat(5440)}, true},
		{"low_above_min_oc", OpeningRange{Open: money.FromFloat(5430), Close: money.FromFloat(5435), Low: money.FromFloat(5431), High: money.FromFloat(5440)}, false},
		{"high_below_max_oc", OpeningRange{Open: money.FromFloat(5430), Close: money.FromFloat(5435), Low: money.FromFloat(5425), High: money.FromFloat(5434)}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.or.Valid(); got != c.want {
				t.Errorf("Valid() = %v, want %v", got, c.want)
			}
		})
	}
}
