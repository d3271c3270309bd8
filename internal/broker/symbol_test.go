package broker

import (
	"testing"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
)

func TestOCCSymbol(t *testing.T) {
	exp := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		optType marketdata.OptionType
		strike  float64
		want    string
	}{
		{"put", marketdata.Put, 5000, "SPXW260730P05000000"},
		{"call", marketdata.Call, 5125, "SPXW260730C05125000"},
		{"fractional strike", marketdata.Put, 4995.5, "SPXW260730P04995500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := occSymbol("SPXW", exp, tt.optType, tt.strike)
			if got != tt.want {
				t.Errorf("occSymbol(%v, %v) = %q, want %q", tt.optType, tt.strike, got, tt.want)
			}
		})
	}
}

func TestExtractUnderlyingFromOSI(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"SPXW260730P05000000", "SPXW"},
		{"SPXW260730C05125000", "SPXW"},
		{"too-short", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractUnderlyingFromOSI(tt.symbol); got != tt.want {
			t.Errorf("extractUnderlyingFromOSI(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestOrderIDFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"https://api.broker.test/v1/accounts/123/orders/987654", "987654"},
		{"", ""},
		{"https://api.broker.test/v1/accounts/123/orders/", ""},
		{"not-a-url-at-all", ""},
	}
	for _, tt := range tests {
		if got := orderIDFromLocation(tt.location); got != tt.want {
			t.Errorf("orderIDFromLocation(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}
