package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/mail"
)

// alertConcurrency bounds how many users are checked at the same time.
const alertConcurrency = 4

// AlertStore is the slice of storage the weekly alert job needs.
type AlertStore interface {
	ListUsers(ctx context.Context) ([]core.User, error)
	MonthOverview(ctx context.Context, userID int64, year, month int) (core.MonthOverview, error)
}

// AlertProcessor checks each user's month-to-date spending against the
// configured category thresholds and mails a digest for every user with at
// least one category at 90% or more of its budget.
type AlertProcessor struct {
	store      AlertStore
	mailer     mail.Mailer
	thresholds map[string]int64 // category name -> monthly budget in cents
}

func NewAlertProcessor(store AlertStore, mailer mail.Mailer, thresholds map[string]int64) *AlertProcessor {
	return &AlertProcessor{
		store:      store,
		mailer:     mailer,
		thresholds: thresholds,
	}
}

// ProcessAlerts runs the check for the calendar month of now. It returns the
// number of digests sent. A failure for one user never blocks the others.
func (p *AlertProcessor) ProcessAlerts(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	if len(p.thresholds) == 0 {
		slog.InfoContext(ctx, "No budget thresholds configured, skipping alert run")
		return 0, nil
	}
	if p.mailer == nil {
		slog.WarnContext(ctx, "Mailer not configured, skipping alert run")
		return 0, nil
	}

	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	year, month := now.Year(), int(now.Month())
	period := now.Format("January 2006")

	slog.InfoContext(ctx, "Processing weekly budget alerts",
		"users", len(users),
		"period", period)

	var sent int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(alertConcurrency)

	results := make([]bool, len(users))
	for i, u := range users {
		g.Go(func() error {
			ok, err := p.processUser(gctx, u, year, month, period)
			if err != nil {
				slog.ErrorContext(gctx, "Failed to process budget alert",
					"user_id", u.ID,
					"error", err)
				return nil
			}
			results[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if ok {
			sent++
		}
	}

	slog.InfoContext(ctx, "Weekly budget alert processing complete",
		"digests_sent", sent,
		"users", len(users))

	return int(sent), nil
}

// processUser reports whether a digest was sent for the user.
func (p *AlertProcessor) processUser(ctx context.Context, u core.User, year, month int, period string) (bool, error) {
	overview, err := p.store.MonthOverview(ctx, u.ID, year, month)
	if err != nil {
		return false, fmt.Errorf("month overview: %w", err)
	}

	var entries []mail.DigestEntry
	for _, ct := range overview.ByCategory {
		threshold, ok := p.thresholds[ct.Name]
		if !ok || threshold <= 0 {
			continue
		}
		spent := ct.Amount.Cents
		if spent*10 < threshold*9 {
			continue
		}
		entries = append(entries, mail.DigestEntry{
			Category:    ct.Name,
			Spent:       ct.Amount.String(),
			Threshold:   core.Money{Cents: threshold, Currency: ct.Amount.Currency}.String(),
			PercentUsed: int((spent*100 + threshold/2) / threshold),
		})
	}
	if len(entries) == 0 {
		return false, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PercentUsed > entries[j].PercentUsed
	})

	body, err := mail.RenderDigest(period, entries)
	if err != nil {
		return false, err
	}

	subject := fmt.Sprintf("Budget alert: %d categories near their limit", len(entries))
	if len(entries) == 1 {
		subject = "Budget alert: " + entries[0].Category + " is near its limit"
	}

	if err := p.mailer.Send(ctx, u.Email, subject, body); err != nil {
		return false, fmt.Errorf("send digest: %w", err)
	}

	slog.InfoContext(ctx, "Sent budget alert digest",
		"user_id", u.ID,
		"categories", len(entries))
	return true, nil
}
