// Package validate holds the stateless field checks applied before any
// write reaches confirmation. Everything here is pure and callable outside
// the conversation pipeline.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ergcontrols/sahabot/internal/registry"
)

// Code identifies why a check failed (or warned).
type Code string

const (
	CodeOK                     Code = "ok"
	CodeInvalidFormat          Code = "invalid_format"
	CodeFutureDateRejected     Code = "future_date"
	CodeStaleDateWarning       Code = "stale_date"
	CodeInvalidEnumValue       Code = "invalid_enum"
	CodeNonPositiveQuantity    Code = "non_positive_qty"
	CodeResolvedBeforeReceived Code = "resolved_before_received"
	CodeUnparseableDate        Code = "unparseable_date"
)

// Result is the outcome of a single check. Warning results are advisory:
// they decorate the confirmation message but never block it.
type Result struct {
	Valid   bool
	Warning bool
	Code    Code
	Detail  string
}

func ok() Result {
	return Result{Valid: true, Code: CodeOK}
}

func fail(code Code, detail string) Result {
	return Result{Valid: false, Code: code, Detail: detail}
}

func warn(code Code, detail string) Result {
	return Result{Valid: true, Warning: true, Code: code, Detail: detail}
}

// Site ID pattern: 2-4 uppercase letters, dash, 2-letter region code, dash,
// 2-digit sequence (e.g. MIG-TR-01).
var siteIDPattern = regexp.MustCompile(`^[A-Z]{2,4}-[A-Z]{2}-\d{2}$`)

// SiteIDFormat checks the canonical XXX-CC-NN identifier shape.
func SiteIDFormat(siteID string) Result {
	if siteID == "" || !siteIDPattern.MatchString(siteID) {
		return fail(CodeInvalidFormat, siteID)
	}
	return ok()
}

// LooksLikeSiteID is the cheap pre-check used before name resolution.
func LooksLikeSiteID(s string) bool {
	return siteIDPattern.MatchString(s)
}

// DateLayout is the ISO date-only layout used across the workbook.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO date (date-only precision).
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date rejects dates strictly after today and flags (without rejecting)
// dates more than staleDays before today. Exactly staleDays ago is not
// stale.
func Date(d, today time.Time, staleDays int) Result {
	d = dateOnly(d)
	today = dateOnly(today)

	if d.After(today) {
		return fail(CodeFutureDateRejected, d.Format(DateLayout))
	}
	daysAgo := int(today.Sub(d).Hours() / 24)
	if daysAgo > staleDays {
		return warn(CodeStaleDateWarning, fmt.Sprintf("%d", daysAgo))
	}
	return ok()
}

// Enum checks value against a fixed vocabulary, case-sensitive. Enum values
// are canonical and never language-localized.
func Enum(value string, allowed []string) Result {
	for _, a := range allowed {
		if value == a {
			return ok()
		}
	}
	return fail(CodeInvalidEnumValue, value)
}

// Quantity requires a strictly positive integer.
func Quantity(value int) Result {
	if value <= 0 {
		return fail(CodeNonPositiveQuantity, strconv.Itoa(value))
	}
	return ok()
}

// Ordering requires the resolution date to be no earlier than the received
// date.
func Ordering(resolved, received time.Time) Result {
	if resolved.Before(received) {
		return fail(CodeResolvedBeforeReceived,
			resolved.Format(DateLayout)+" < "+received.Format(DateLayout))
	}
	return ok()
}

// dateFields are the fields carrying ISO dates subject to the future/stale
// rules. go_live_date may legitimately sit in the future (a planned
// rollout), so it only gets format checking.
var dateFields = map[string]bool{
	"received_date": true,
	"resolved_date": true,
	"last_verified": true,
}

// Field dispatches the right check for a populated field value. Unknown
// fields pass: free-text narrative stays untouched in the user's language.
func Field(name, value string, today time.Time, staleDays int) Result {
	if value == "" {
		return ok()
	}

	if allowed := registry.Vocabulary(name); allowed != nil {
		return Enum(value, allowed)
	}

	switch {
	case name == "site_id":
		return SiteIDFormat(value)
	case dateFields[name]:
		d, err := ParseDate(value)
		if err != nil {
			return fail(CodeUnparseableDate, value)
		}
		return Date(d, today, staleDays)
	case name == "go_live_date":
		if _, err := ParseDate(value); err != nil {
			return fail(CodeUnparseableDate, value)
		}
		return ok()
	case name == "qty":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fail(CodeNonPositiveQuantity, value)
		}
		return Quantity(n)
	}
	return ok()
}
