package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eliywilner/spxspread/internal/auth"
	coreBroker "github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/retry"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "test-token", "expires_in": 3600})
	}))
	t.Cleanup(tokenSrv.Close)

	tokens := auth.New(tokenSrv.Client(), tokenSrv.URL, "client-id", "client-secret")
	a := New(Config{
		HTTPClient:  srv.Client(),
		BaseURL:     srv.URL,
		AccountID:   "ACC1",
		Underlying:  "SPXW",
		IndexSymbol: "$SPX",
		Tokens:      tokens,
		RetryClient: retry.NewClient(nil, retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second}),
	})
	return a, srv
}

func TestAdapter_GetAccountEquity(t *testing.T) {
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"securitiesAccount": map[string]any{
				"currentBalances": map[string]any{"liquidationValue": 123456.78},
			},
		})
	})
	defer srv.Close()

	equity, err := a.GetAccountEquity(context.Background())
	if err != nil {
		t.Fatalf("GetAccountEquity failed: %v", err)
	}
	if equity != money.FromFloat(123456.78) {
		t.Errorf("GetAccountEquity = %v, want 123456.78", equity)
	}
}

func TestAdapter_SubmitCreditSpread_ConfirmedBody(t *testing.T) {
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"orderId": 555, "status": "FILLED", "tag": "abc"})
	})
	defer srv.Close()

	outcome, err := a.SubmitCreditSpread(context.Background(), coreBroker.SpreadOrderRequest{
		ExpirationDate: time.Now(),
		ShortStrike:    5000,
		LongStrike:     5010,
		OptionType:     marketdata.Call,
		Quantity:       1,
		LimitPrice:     money.FromFloat(4.6),
		ClientTag:      "abc",
	})
	if err != nil {
		t.Fatalf("SubmitCreditSpread failed: %v", err)
	}
	if !outcome.Confirmed || outcome.OrderID != "555" {
		t.Errorf("expected confirmed outcome with id 555, got %+v", outcome)
	}
}

func TestAdapter_SubmitCreditSpread_ViaLocation(t *testing.T) {
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://broker.test/v1/accounts/ACC1/orders/9001")
		w.WriteHeader(http.StatusCreated)
	})
	defer srv.Close()

	outcome, err := a.SubmitCreditSpread(context.Background(), coreBroker.SpreadOrderRequest{
		ExpirationDate: time.Now(),
		ShortStrike:    5000,
		LongStrike:     5010,
		OptionType:     marketdata.Put,
		Quantity:       1,
		LimitPrice:     money.FromFloat(4.6),
		ClientTag:      "abc",
	})
	if err != nil {
		t.Fatalf("SubmitCreditSpread failed: %v", err)
	}
	if !outcome.ViaLocation || outcome.OrderID != "9001" {
		t.Errorf("expected via-location outcome with id 9001, got %+v", outcome)
	}
}

func TestAdapter_SubmitCreditSpread_FallsBackToPendingWhenOrdersLookupFindsNoMatch(t *testing.T) {
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		// Both the order POST and the GetTodayOrders fallback GET land here;
		// an empty 202 body means neither confirms nor lists any order.
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	outcome, err := a.SubmitCreditSpread(context.Background(), coreBroker.SpreadOrderRequest{
		ExpirationDate: time.Now(),
		ShortStrike:    5000,
		LongStrike:     5010,
		OptionType:     marketdata.Put,
		Quantity:       1,
		LimitPrice:     money.FromFloat(4.6),
		ClientTag:      "abc",
	})
	if err != nil {
		t.Fatalf("SubmitCreditSpread failed: %v", err)
	}
	if outcome.Confirmed || outcome.ViaLocation || outcome.Status != coreBroker.StatusAcceptedUnconfirmed {
		t.Errorf("expected unconfirmed outcome, got %+v", outcome)
	}
	if outcome.OrderID != string(coreBroker.StatusPendingOrderIDPlaceholder) {
		t.Errorf("expected OrderID %q when the orders lookup finds no match, got %q",
			coreBroker.StatusPendingOrderIDPlaceholder, outcome.OrderID)
	}
}

func TestAdapter_SubmitCreditSpread_ConfirmsViaTodayOrdersFallback(t *testing.T) {
	var submittedTag string
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// Empty-bodied accept: neither a confirmed body nor a Location.
			_ = r.ParseForm()
			submittedTag = r.FormValue("tag")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// The GetTodayOrders fallback lookup finds the order by its tag,
		// which carries a uuid suffix the adapter minted at submission time.
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"orderId": 777, "status": "open", "tag": submittedTag},
		})
	})
	defer srv.Close()

	outcome, err := a.SubmitCreditSpread(context.Background(), coreBroker.SpreadOrderRequest{
		ExpirationDate: time.Now(),
		ShortStrike:    5000,
		LongStrike:     5010,
		OptionType:     marketdata.Put,
		Quantity:       1,
		LimitPrice:     money.FromFloat(4.6),
		ClientTag:      "abc",
	})
	if err != nil {
		t.Fatalf("SubmitCreditSpread failed: %v", err)
	}
	if !outcome.Confirmed || outcome.OrderID != "777" {
		t.Errorf("expected the orders-lookup fallback to confirm id 777, got %+v", outcome)
	}
}
