// Package strike implements the Strike Math component (C4): the
// round-to-5 ATM strike and width-10 long-leg derivation.
package strike

import "math"

// Width is the fixed spread width in index points.
const Width = 10

// grid is the strike increment SPX-style 0DTE index options trade on.
const grid = 5

// RoundTo5 rounds x to the nearest multiple of 5: 5 * floor((x+2.5)/5).
func RoundTo5(x float64) float64 {
	return grid * math.Floor((x+float64(grid)/2)/grid)
}

// Strikes is the resolved (short, long) strike pair for one spread leg.
type Strikes struct {
	Short float64
	Long  float64
}

// PutSpread derives the PUT-spread strikes from the bullish entry price:
// K_short = round_to_5(entry), K_long = K_short - W.
func PutSpread(entry float64) Strikes {
	short := RoundTo5(entry)
	return Strikes{Short: short, Long: short - Width}
}

// CallSpread derives the CALL-spread strikes from the bearish entry price:
// K_short = round_to_5(entry), K_long = K_short + W.
func CallSpread(entry float64) Strikes {
	short := RoundTo5(entry)
	return Strikes{Short: short, Long: short + Width}
}
