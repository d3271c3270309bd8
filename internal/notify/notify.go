// Package notify sends the end-of-day report over SMTP, grounded in
// original_source's eod_report.py send_eod_email: plain-auth SMTP submit
// to a single recipient, built against net/smtp per SPEC_FULL.md §6 since
// no pack repo carries a mail-library dependency to wire.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/eliywilner/spxspread/internal/core/traderecord"
)

// Config bundles the SMTP submission parameters.
type Config struct {
	Host      string
	Port      int
	From      string
	Recipient string
	Password  string // app password / SMTP auth secret, from env
}

// Notifier sends the day's EOD report.
type Notifier struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New constructs a Notifier against the given SMTP config.
func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

// SendEOD formats and sends the trading day's outcome.
func (n *Notifier) SendEOD(rec traderecord.TradeRecord) error {
	subject := fmt.Sprintf("[spxspread] %s EOD report: %s", rec.Date.Format("2006-01-02"), rec.Outcome)
	body := formatReport(rec)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.From, n.cfg.Recipient, subject, body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	if err := n.send(addr, auth, n.cfg.From, []string{n.cfg.Recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("notify: sending EOD report: %w", err)
	}
	return nil
}

func formatReport(rec traderecord.TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date:            %s\n", rec.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Outcome:         %s\n", rec.Outcome)
	if rec.Setup == "" {
		b.WriteString("No setup triggered.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Setup:           %s (%s)\n", rec.Setup, rec.TradeType)
	fmt.Fprintf(&b, "Trigger time:    %s\n", rec.TriggerTime.Format(time.Kitchen))
	fmt.Fprintf(&b, "SPX entry:       %.2f\n", rec.SPXEntry)
	fmt.Fprintf(&b, "OR O/H/L/C:      %.2f / %.2f / %.2f / %.2f\n", rec.ORO, rec.ORH, rec.ORL, rec.ORC)
	fmt.Fprintf(&b, "Strikes:         %.0f / %.0f\n", rec.KShort, rec.KLong)
	if rec.OrderID == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "Fill time:       %s\n", rec.FillTime.Format(time.Kitchen))
	fmt.Fprintf(&b, "Net credit fill: %.2f\n", rec.CNetFill)
	fmt.Fprintf(&b, "Qty:             %d\n", rec.Qty)
	fmt.Fprintf(&b, "Order:           %s (%s)\n", rec.OrderID, rec.OrderStatus)
	fmt.Fprintf(&b, "Equity before:   $%.2f\n", rec.EquityBefore)
	if rec.Outcome != traderecord.OutcomeSettled {
		return b.String()
	}
	fmt.Fprintf(&b, "SPX close:       %.2f\n", rec.SPXClose)
	fmt.Fprintf(&b, "Settlement:      %.2f\n", rec.SettlementValue)
	fmt.Fprintf(&b, "P/L per spread:  $%.2f\n", rec.PnLPerSpread)
	fmt.Fprintf(&b, "Total P/L:       $%.2f\n", rec.TotalPnL)
	fmt.Fprintf(&b, "Equity after:    $%.2f\n", rec.EquityAfter)
	return b.String()
}
