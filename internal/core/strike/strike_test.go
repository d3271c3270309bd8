package strike

import "testing"

func TestRoundTo5(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{5432.0, 5430.0},
		{5433.0, 5435.0},
		{5432.5, 5435.0},
		{5430.0, 5430.0},
		{0, 0},
		{-5432.0, -5430.0},
	}
	for _, c := range cases {
		if got := RoundTo5(c.in); got != c.want {
			t.Errorf("RoundTo5(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestPutSpread(t *testing.T) {
	s := PutSpread(5433.0)
	if s.Short != 5435.0 {
		t.Errorf("Short = %v, want 5435.0", s.Short)
	}
	if s.Long != 5425.0 {
		t.Errorf("Long = %v, want 5425.0", s.Long)
	}
}

func TestCallSpread(t *testing.T) {
	s := CallSpread(5433.0)
	if s.Short != 5435.0 {
		t.Errorf("Short = %v, want 5435.0", s.Short)
	}
	if s.Long != 5445.0 {
		t.Errorf("Long = %v, want 5445.0", s.Long)
	}
}
