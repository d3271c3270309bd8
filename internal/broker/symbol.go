package broker

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
)

const strikeRoundingEps = 1e-9

// occSymbol builds an OCC/OSI-format option symbol: root + YYMMDD + C/P +
// 8-digit strike (strike*1000, zero-padded). The root is passed in as-is
// (e.g. "SPXW" for SPX's 0DTE weekly series).
func occSymbol(root string, expiration time.Time, optType marketdata.OptionType, strike float64) string {
	typeChar := "P"
	if optType == marketdata.Call {
		typeChar = "C"
	}
	strikeInt := int(math.Round(strike*1000 + strikeRoundingEps))
	return fmt.Sprintf("%s%s%s%08d", root, expiration.Format("060102"), typeChar, strikeInt)
}

// extractUnderlyingFromOSI recovers the underlying root from an OSI-encoded
// option symbol, e.g. "SPXW241220C05000000" -> "SPXW": scan for the first
// 6-digit run not itself part of a longer numeric run, followed by P/C and
// exactly 8 trailing digits.
func extractUnderlyingFromOSI(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 16 {
		return ""
	}
	for i := 0; i <= len(trimmed)-15; i++ {
		if !isNDigits(trimmed[i:i+6], 6) {
			continue
		}
		if i > 0 && isDigit(trimmed[i-1]) {
			continue
		}
		expEnd := i + 6
		typeChar := trimmed[expEnd]
		if typeChar != 'P' && typeChar != 'C' && typeChar != 'p' && typeChar != 'c' {
			continue
		}
		strikeStart := expEnd + 1
		if strikeStart+8 > len(trimmed) || !isNDigits(trimmed[strikeStart:strikeStart+8], 8) {
			continue
		}
		strikeEnd := strikeStart + 8
		if strikeEnd != len(trimmed) {
			continue
		}
		return strings.TrimSpace(trimmed[:i])
	}
	return ""
}

func isNDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
