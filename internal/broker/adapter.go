package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eliywilner/spxspread/internal/auth"
	coreBroker "github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/retry"
)

// quoteResponse is the brokerage's index/equity quote envelope, trimmed to
// the fields this agent reads, keyed by symbol since a quote request can
// ask for multiple symbols at once.
type quoteResponse map[string]struct {
	Quote struct {
		LastPrice  float64 `json:"lastPrice"`
		ClosePrice float64 `json:"closePrice"`
	} `json:"quote"`
}

// priceHistoryResponse carries OHLC candles for the underlying.
type priceHistoryResponse struct {
	Candles []struct {
		DatetimeMillis int64   `json:"datetime"`
		Open           float64 `json:"open"`
		High           float64 `json:"high"`
		Low            float64 `json:"low"`
		Close          float64 `json:"close"`
	} `json:"candles"`
}

// optionChainResponse carries a single expiration's strike map, keyed by
// strike string; a credit-spread leg pair only ever needs two strikes at
// a time, so this is narrower than a full multi-expiration chain.
type optionChainResponse struct {
	PutExpDateMap  map[string]map[string][]chainQuote `json:"putExpDateMap"`
	CallExpDateMap map[string]map[string][]chainQuote `json:"callExpDateMap"`
}

type chainQuote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// balanceResponse is the account balance envelope, narrowed to the single
// field the Position Sizer (C6) needs.
type balanceResponse struct {
	SecuritiesAccount struct {
		CurrentBalances struct {
			LiquidationValue float64 `json:"liquidationValue"`
		} `json:"currentBalances"`
	} `json:"securitiesAccount"`
}

// orderResponse is the brokerage's order envelope, trimmed to what the
// Order Gate (C11) needs to resolve a SubmissionOutcome.
type orderResponse struct {
	OrderID     int64   `json:"orderId"`
	Status      string  `json:"status"`
	ClientTag   string  `json:"tag"`
	FilledPrice float64 `json:"filledPrice"`
}

// Adapter implements the core Broker (C3) and MarketData (C2) ports
// against a Schwab-style OAuth2-authenticated brokerage API. Read-side
// calls go through the retry client (C3 notes §4.11: reads may retry,
// submissions never do); SubmitCreditSpread calls the transport exactly
// once.
type Adapter struct {
	t          *transport
	retry      *retry.Client
	underlying string // e.g. "SPXW" (0DTE weekly option root for SPX)
	indexRoot  string // e.g. "$SPX" (quote symbol for the cash index)
}

// Config bundles the dependencies an Adapter needs.
type Config struct {
	HTTPClient  *http.Client
	BaseURL     string
	AccountID   string
	Underlying  string
	IndexSymbol string
	Tokens      *auth.TokenManager
	RetryClient *retry.Client
}

// New constructs an Adapter.
func New(cfg Config) *Adapter {
	return &Adapter{
		t:          newTransport(cfg.HTTPClient, cfg.BaseURL, cfg.AccountID, cfg.Tokens),
		retry:      cfg.RetryClient,
		underlying: cfg.Underlying,
		indexRoot:  cfg.IndexSymbol,
	}
}

var _ marketdata.MarketData = (*Adapter)(nil)
var _ coreBroker.Broker = (*Adapter)(nil)

// Calendar returns a clock.MarketCalendar backed by this Adapter's
// transport, sharing its auth; calendar requests do not go through the
// retry client.
func (a *Adapter) Calendar() *CalendarAdapter {
	return NewCalendarAdapter(a.t)
}

// Get30MinCandles implements marketdata.MarketData.
func (a *Adapter) Get30MinCandles(ctx context.Context, date time.Time, startHM, endHM string) ([]marketdata.Candle, error) {
	loc := date.Location()
	start := atHM(date, startHM, loc)
	end := atHM(date, endHM, loc)

	var resp priceHistoryResponse
	err := a.retry.Do(ctx, "GetPriceHistory", func(ctx context.Context) error {
		params := url.Values{}
		params.Set("symbol", a.indexRoot)
		params.Set("periodType", "day")
		params.Set("frequencyType", "minute")
		params.Set("frequency", "30")
		params.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
		params.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
		resp = priceHistoryResponse{}
		return a.t.doJSON(ctx, http.MethodGet, "/marketdata/v1/pricehistory?"+params.Encode(), nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: fetching candles: %w", err)
	}

	candles := make([]marketdata.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		bar := time.UnixMilli(c.DatetimeMillis).In(loc)
		if bar.Before(start) || !bar.Before(end) {
			continue
		}
		candles = append(candles, marketdata.Candle{
			BarStart: bar,
			Open:     money.FromFloat(c.Open),
			High:     money.FromFloat(c.High),
			Low:      money.FromFloat(c.Low),
			Close:    money.FromFloat(c.Close),
		})
	}
	return candles, nil
}

// GetIndexClose implements marketdata.MarketData. It reads the index's
// current quote (last price, or the close price when last is zero); date
// is not sent to the brokerage, so the value is the quote at call time,
// not a print looked up for date@16:00.
func (a *Adapter) GetIndexClose(ctx context.Context, date time.Time) (money.Decimal, error) {
	var resp quoteResponse
	err := a.retry.Do(ctx, "GetIndexClose", func(ctx context.Context) error {
		params := url.Values{}
		params.Set("symbols", a.indexRoot)
		resp = quoteResponse{}
		return a.t.doJSON(ctx, http.MethodGet, "/marketdata/v1/quotes?"+params.Encode(), nil, &resp)
	})
	if err != nil {
		return money.Zero, fmt.Errorf("broker: fetching index close: %w", err)
	}
	q, ok := resp[a.indexRoot]
	if !ok {
		return money.Zero, fmt.Errorf("broker: no quote returned for %s", a.indexRoot)
	}
	price := q.Quote.LastPrice
	if price == 0 {
		price = q.Quote.ClosePrice
	}
	return money.FromFloat(price), nil
}

// GetSpreadQuote implements marketdata.MarketData.
func (a *Adapter) GetSpreadQuote(ctx context.Context, date time.Time, shortStrike, longStrike float64, optType marketdata.OptionType) (marketdata.LegPair, error) {
	var resp optionChainResponse
	err := a.retry.Do(ctx, "GetOptionChain", func(ctx context.Context) error {
		params := url.Values{}
		params.Set("symbol", a.underlying)
		params.Set("contractType", chainContractType(optType))
		params.Set("strike", "")
		params.Set("fromDate", date.Format("2006-01-02"))
		params.Set("toDate", date.Format("2006-01-02"))
		resp = optionChainResponse{}
		return a.t.doJSON(ctx, http.MethodGet, "/marketdata/v1/chains?"+params.Encode(), nil, &resp)
	})
	if err != nil {
		return marketdata.LegPair{}, fmt.Errorf("broker: fetching option chain: %w", err)
	}

	expMap := resp.PutExpDateMap
	if optType == marketdata.Call {
		expMap = resp.CallExpDateMap
	}

	short, shortOK := findStrike(expMap, shortStrike)
	long, longOK := findStrike(expMap, longStrike)
	if !shortOK || !longOK {
		return marketdata.LegPair{}, fmt.Errorf("broker: missing strikes in chain: short=%.0f(%t) long=%.0f(%t)",
			shortStrike, shortOK, longStrike, longOK)
	}

	return marketdata.LegPair{
		Short: marketdata.QuoteSnapshot{Bid: money.FromFloat(short.Bid), Ask: money.FromFloat(short.Ask)},
		Long:  marketdata.QuoteSnapshot{Bid: money.FromFloat(long.Bid), Ask: money.FromFloat(long.Ask)},
	}, nil
}

func findStrike(expMap map[string]map[string][]chainQuote, strike float64) (chainQuote, bool) {
	key := strconv.FormatFloat(strike, 'f', 1, 64)
	for _, strikes := range expMap {
		for k, quotes := range strikes {
			if k == key && len(quotes) > 0 {
				return quotes[0], true
			}
		}
	}
	return chainQuote{}, false
}

func chainContractType(optType marketdata.OptionType) string {
	if optType == marketdata.Call {
		return "CALL"
	}
	return "PUT"
}

func atHM(date time.Time, hm string, loc *time.Location) time.Time {
	var hh, mm int
	_, _ = fmt.Sscanf(hm, "%d:%d", &hh, &mm)
	return time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, loc)
}

// GetAccountEquity implements coreBroker.Broker.
func (a *Adapter) GetAccountEquity(ctx context.Context) (money.Decimal, error) {
	var resp balanceResponse
	err := a.retry.Do(ctx, "GetAccountEquity", func(ctx context.Context) error {
		resp = balanceResponse{}
		return a.t.doJSON(ctx, http.MethodGet, "/accounts/"+a.t.accountID, nil, &resp)
	})
	if err != nil {
		return money.Zero, fmt.Errorf("broker: fetching account equity: %w", err)
	}
	return money.FromFloat(resp.SecuritiesAccount.CurrentBalances.LiquidationValue), nil
}

// SubmitCreditSpread implements coreBroker.Broker. Submitted exactly once,
// no retry: a retried submission risks a duplicate fill, which is why the
// Order Gate (C11), not this adapter, owns the one-shot policy — this
// method simply never wraps its POST in a.retry.
func (a *Adapter) SubmitCreditSpread(ctx context.Context, req coreBroker.SpreadOrderRequest) (coreBroker.SubmissionOutcome, error) {
	shortSymbol := occSymbol(a.underlying, req.ExpirationDate, req.OptionType, req.ShortStrike)
	longSymbol := occSymbol(a.underlying, req.ExpirationDate, req.OptionType, req.LongStrike)

	// A uuid suffix keeps the tag globally unique even if the core's
	// date+setup-kind ClientTag repeats across a same-day restart, so the
	// GetTodayOrders fallback below can never match a stale order.
	clientTag := req.ClientTag + "-" + uuid.New().String()

	form := url.Values{}
	form.Set("orderType", "NET_CREDIT")
	form.Set("duration", "DAY")
	form.Set("price", req.LimitPrice.String())
	form.Set("quantity", strconv.Itoa(req.Quantity))
	form.Set("tag", clientTag)
	form.Set("legSymbol0", shortSymbol)
	form.Set("legInstruction0", string(coreBroker.SellToOpen))
	form.Set("legSymbol1", longSymbol)
	form.Set("legInstruction1", string(coreBroker.BuyToOpen))

	status, location, body, err := a.t.postForLocation(ctx, "/accounts/"+a.t.accountID+"/orders", form)
	if err != nil {
		return coreBroker.SubmissionOutcome{}, fmt.Errorf("broker: submitting credit spread: %w", err)
	}

	// A confirmed body is the common case: the brokerage echoed the new
	// order back with an id and status.
	if len(body) > 0 {
		var resp orderResponse
		if decErr := decodeOrderBody(body, &resp); decErr == nil && resp.OrderID != 0 {
			return coreBroker.SubmissionOutcome{
				OrderID:    strconv.FormatInt(resp.OrderID, 10),
				Status:     coreBroker.OrderStatus(resp.Status),
				Confirmed:  true,
				RawDetails: map[string]any{"status_code": status},
			}, nil
		}
	}

	// Schwab-style APIs often answer a 201 with an empty body and the new
	// order's id only in Location: .../orders/{id}.
	if id := orderIDFromLocation(location); id != "" {
		return coreBroker.SubmissionOutcome{
			OrderID:     id,
			Status:      coreBroker.StatusAcceptedUnconfirmed,
			ViaLocation: true,
			RawDetails:  map[string]any{"status_code": status, "location": location},
		}, nil
	}

	// Neither a parseable body nor a usable Location header: fall back to
	// GetTodayOrders, matching on the tag just submitted, to confirm the
	// order actually exists before telling the gate nothing was submitted.
	if orders, ordersErr := a.GetTodayOrders(ctx, 50); ordersErr == nil {
		for _, o := range orders {
			if o.Tag == clientTag {
				return coreBroker.SubmissionOutcome{
					OrderID:    o.ID,
					Status:     o.Status,
					Confirmed:  true,
					RawDetails: map[string]any{"status_code": status, "confirmed_via": "GetTodayOrders"},
				}, nil
			}
		}
	}

	return coreBroker.SubmissionOutcome{
		OrderID:    string(coreBroker.StatusPendingOrderIDPlaceholder),
		Status:     coreBroker.StatusAcceptedUnconfirmed,
		RawDetails: map[string]any{"status_code": status},
	}, nil
}

// GetTodayOrders implements coreBroker.Broker.
func (a *Adapter) GetTodayOrders(ctx context.Context, max int) ([]coreBroker.Order, error) {
	var resp []orderResponse
	err := a.retry.Do(ctx, "GetTodayOrders", func(ctx context.Context) error {
		params := url.Values{}
		params.Set("maxResults", strconv.Itoa(max))
		params.Set("fromEnteredTime", time.Now().Format("2006-01-02"))
		params.Set("toEnteredTime", time.Now().Format("2006-01-02"))
		resp = nil
		return a.t.doJSON(ctx, http.MethodGet, "/accounts/"+a.t.accountID+"/orders?"+params.Encode(), nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: fetching today's orders: %w", err)
	}

	out := make([]coreBroker.Order, 0, len(resp))
	for _, o := range resp {
		out = append(out, coreBroker.Order{
			ID:     strconv.FormatInt(o.OrderID, 10),
			Status: coreBroker.OrderStatus(o.Status),
			Tag:    o.ClientTag,
		})
	}
	return out, nil
}
