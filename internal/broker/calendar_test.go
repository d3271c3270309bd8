package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eliywilner/spxspread/internal/auth"
)

func newTestCalendarAdapter(t *testing.T, handler http.HandlerFunc) (*CalendarAdapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "test-token", "expires_in": 3600})
	}))
	t.Cleanup(tokenSrv.Close)

	tokens := auth.New(tokenSrv.Client(), tokenSrv.URL, "client-id", "client-secret")
	tr := newTransport(srv.Client(), srv.URL, "ACC1", tokens)
	return NewCalendarAdapter(tr), srv
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		t.Fatalf("parsing test date %q: %v", s, err)
	}
	return d
}

func TestCalendarAdapter_IsTradingDay(t *testing.T) {
	calls := 0
	c, _ := newTestCalendarAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(marketsResponse{Days: []marketDayResponse{
			{Date: "2026-07-30", Status: "open"},
			{Date: "2026-07-31", Status: "closed"},
		}})
	})

	open, err := c.IsTradingDay(context.Background(), mustDate(t, "2026-07-30"))
	if err != nil {
		t.Fatalf("IsTradingDay returned error: %v", err)
	}
	if !open {
		t.Error("2026-07-30 expected open")
	}

	closed, err := c.IsTradingDay(context.Background(), mustDate(t, "2026-07-31"))
	if err != nil {
		t.Fatalf("IsTradingDay returned error: %v", err)
	}
	if closed {
		t.Error("2026-07-31 expected closed")
	}

	if calls != 1 {
		t.Errorf("calendar endpoint called %d times, want 1 (second query served from the monthly cache)", calls)
	}
}

func TestCalendarAdapter_DifferentMonthRefetches(t *testing.T) {
	calls := 0
	c, _ := newTestCalendarAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		month := r.URL.Query().Get("month")
		w.Header().Set("Content-Type", "application/json")
		if month == "07" {
			_ = json.NewEncoder(w).Encode(marketsResponse{Days: []marketDayResponse{{Date: "2026-07-30", Status: "open"}}})
		} else {
			_ = json.NewEncoder(w).Encode(marketsResponse{Days: []marketDayResponse{{Date: "2026-08-15", Status: "closed"}}})
		}
	})

	if _, err := c.IsTradingDay(context.Background(), mustDate(t, "2026-07-30")); err != nil {
		t.Fatalf("IsTradingDay returned error: %v", err)
	}
	if _, err := c.IsTradingDay(context.Background(), mustDate(t, "2026-08-15")); err != nil {
		t.Fatalf("IsTradingDay returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calendar endpoint called %d times, want 2 (different month must not hit the cache)", calls)
	}
}

func TestCalendarAdapter_DateNotInCalendarIsError(t *testing.T) {
	c, _ := newTestCalendarAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(marketsResponse{Days: []marketDayResponse{
			{Date: "2026-07-30", Status: "open"},
		}})
	})

	if _, err := c.IsTradingDay(context.Background(), mustDate(t, "2026-07-15")); err == nil {
		t.Error("expected an error for a date absent from the fetched month")
	}
}
