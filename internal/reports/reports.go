// Package reports renders the scheduled digests: a weekly data-quality
// report and a daily aging alert. Rendering is separated from posting so
// the cron job and the tests share the same text.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ergcontrols/sahabot/internal/quality"
	"github.com/ergcontrols/sahabot/internal/validate"
)

// Poster delivers a rendered report to a channel. Implemented by the chat
// adapters.
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// sectionCap bounds issue lists so a messy workbook does not flood the
// channel.
const sectionCap = 15

// Reporter generates and posts the digests.
type Reporter struct {
	scanner *quality.Scanner
	poster  Poster
	channel string
}

func New(scanner *quality.Scanner, poster Poster, channel string) *Reporter {
	return &Reporter{scanner: scanner, poster: poster, channel: channel}
}

func capLines(lines []string) []string {
	if len(lines) <= sectionCap {
		return lines
	}
	remaining := len(lines) - sectionCap
	capped := lines[:sectionCap]
	return append(capped, fmt.Sprintf("  ...and %d more", remaining))
}

// Weekly renders the weekly data-quality report.
func (r *Reporter) Weekly(ctx context.Context, today time.Time) (string, error) {
	rep, err := r.scanner.Scan(ctx, "", today)
	if err != nil {
		return "", err
	}

	var must, important []string
	for _, issue := range rep.Missing {
		line := fmt.Sprintf("• %s / %s: %s", issue.SiteID, issue.Tab, issue.Detail)
		if issue.Severity == quality.SeverityMust {
			must = append(must, line)
		} else {
			important = append(important, line)
		}
	}
	var stale []string
	for _, issue := range rep.Stale {
		stale = append(stale, fmt.Sprintf("• %s / %s: %s", issue.SiteID, issue.Tab, issue.Detail))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Haftalık Veri Kalitesi Raporu — %s\n", today.Format(validate.DateLayout))
	fmt.Fprintf(&b, "Doluluk: %%%d (%d/%d alan)\n", rep.Completeness(), rep.Filled, rep.Total)

	if len(must) == 0 && len(important) == 0 && len(stale) == 0 {
		b.WriteString("\nHer şey yolunda görünüyor. 🎉")
		return b.String(), nil
	}

	if len(must) > 0 {
		fmt.Fprintf(&b, "\n🔴 Zorunlu alan eksikleri (%d):\n", len(must))
		b.WriteString(strings.Join(capLines(must), "\n"))
		b.WriteString("\n")
	}
	if len(important) > 0 {
		fmt.Fprintf(&b, "\n🟡 Önerilen alan eksikleri (%d):\n", len(important))
		b.WriteString(strings.Join(capLines(important), "\n"))
		b.WriteString("\n")
	}
	if len(stale) > 0 {
		fmt.Fprintf(&b, "\n🕰️ Bayat kayıtlar (%d):\n", len(stale))
		b.WriteString(strings.Join(capLines(stale), "\n"))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// Aging renders the daily open-ticket alert, or "" when nothing is aging.
func (r *Reporter) Aging(ctx context.Context, today time.Time) (string, error) {
	rep, err := r.scanner.Scan(ctx, "", today)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, issue := range rep.Missing {
		if issue.Field != "aging" {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %s", issue.SiteID, issue.Detail))
	}
	if len(lines) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⏰ Bekleyen destek kayıtları (%d):\n", len(lines))
	b.WriteString(strings.Join(capLines(lines), "\n"))
	return b.String(), nil
}

// PostWeekly runs the weekly job end to end. Wired to the cron scheduler.
func (r *Reporter) PostWeekly(ctx context.Context) {
	text, err := r.Weekly(ctx, time.Now())
	if err != nil {
		slog.Error("Weekly report failed", "error", err)
		return
	}
	if err := r.poster.Post(ctx, r.channel, text); err != nil {
		slog.Error("Failed to post weekly report", "channel", r.channel, "error", err)
	}
}

// PostAging runs the daily aging job. Quiet days post nothing.
func (r *Reporter) PostAging(ctx context.Context) {
	text, err := r.Aging(ctx, time.Now())
	if err != nil {
		slog.Error("Aging report failed", "error", err)
		return
	}
	if text == "" {
		return
	}
	if err := r.poster.Post(ctx, r.channel, text); err != nil {
		slog.Error("Failed to post aging report", "channel", r.channel, "error", err)
	}
}
