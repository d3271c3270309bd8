package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliywilner/spxspread/internal/config"
	"github.com/eliywilner/spxspread/internal/notify"
	"github.com/eliywilner/spxspread/internal/storage"
)

// newReportCommand builds the "report" subcommand, which replays a
// previously persisted TradeRecord through the Notifier -- useful to
// resend an EOD email that bounced, or to inspect a past day's record
// without re-running the trading day.
func newReportCommand() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Resend the end-of-day report for a previously recorded trading day",
		RunE: func(_ *cobra.Command, _ []string) error {
			date := time.Now()
			if dateStr != "" {
				parsed, err := time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("parsing --date %q: %w", dateStr, err)
				}
				date = parsed
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, err := storage.NewJSONStorage(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}

			rec, ok := store.RecordForDate(date)
			if !ok {
				return fmt.Errorf("no trade record found for %s", date.Format("2006-01-02"))
			}

			notifier := notify.New(notify.Config{
				Host:      cfg.Notify.SMTPHost,
				Port:      cfg.Notify.SMTPPort,
				From:      cfg.Notify.From,
				Recipient: cfg.Notify.Recipient,
				Password:  os.Getenv("SMTP_PASSWORD"),
			})

			if err := notifier.SendEOD(rec); err != nil {
				return fmt.Errorf("sending report: %w", err)
			}

			fmt.Fprintf(os.Stdout, "sent report for %s (outcome=%s, pnl=%.2f)\n",
				date.Format("2006-01-02"), rec.Outcome, rec.TotalPnL)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "trading day to report, YYYY-MM-DD (default: today)")
	return cmd
}
