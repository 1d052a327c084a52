package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/registry"
)

var today = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

type fakeBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func newTestAdapter(b Backend) *Adapter {
	return NewAdapter(b, AdapterOptions{Model: "test-model", Timeout: time.Second, StaleDays: 90})
}

func TestClassifyParsesPlainJSON(t *testing.T) {
	backend := &fakeBackend{responses: []string{
		`{"operation":"log_support","data":{"site_id":"MIG-TR-01","status":"Open"},"missing_fields":["responsible"],"language":"tr"}`,
	}}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "migros ziyaret", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Operation != registry.OpLogSupport {
		t.Errorf("operation: got %v", res.Operation)
	}
	if res.StringField("site_id") != "MIG-TR-01" {
		t.Errorf("site_id: got %q", res.StringField("site_id"))
	}
	if len(res.MissingSuggested) != 1 || res.MissingSuggested[0] != "responsible" {
		t.Errorf("missing suggested: got %v", res.MissingSuggested)
	}
}

func TestClassifyStripsCodeFences(t *testing.T) {
	backend := &fakeBackend{responses: []string{
		"Here you go:\n```json\n{\"operation\":\"query\",\"data\":{\"query_type\":\"stock\"},\"language\":\"en\"}\n```",
	}}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "stock?", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Operation != registry.OpQuery {
		t.Errorf("operation: got %v", res.Operation)
	}
	if res.Language != "en" {
		t.Errorf("language: got %q", res.Language)
	}
}

func TestClassifyRetriesExactlyOnce(t *testing.T) {
	backend := &fakeBackend{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []string{"", `{"operation":"help","data":{},"language":"tr"}`},
	}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "yardım", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify should succeed on retry: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("calls: got %d, want 2", backend.calls)
	}
	if res.Operation != registry.OpHelp {
		t.Errorf("operation: got %v", res.Operation)
	}
}

func TestClassifyUnavailableAfterRetry(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("boom"), errors.New("boom")}}
	a := newTestAdapter(backend)

	_, err := a.Classify(context.Background(), Request{Text: "x", SenderName: "Batu", Today: today})
	if !saherrors.IsCategory(err, saherrors.ErrClassifierUnavailable) {
		t.Errorf("want ErrClassifierUnavailable, got %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("calls: got %d, want exactly 2", backend.calls)
	}
}

func TestClassifyMalformedOutput(t *testing.T) {
	backend := &fakeBackend{responses: []string{"I could not parse that, sorry!"}}
	a := newTestAdapter(backend)

	_, err := a.Classify(context.Background(), Request{Text: "x", SenderName: "Batu", Today: today})
	if !saherrors.IsCategory(err, saherrors.ErrInvalidModelOutput) {
		t.Errorf("want ErrInvalidModelOutput, got %v", err)
	}
}

func TestClassifyFutureDatePostCheck(t *testing.T) {
	// The model missed the future date; the adapter must still block it.
	backend := &fakeBackend{responses: []string{
		`{"operation":"log_support","data":{"site_id":"MIG-TR-01","received_date":"2026-08-25"},"language":"tr"}`,
	}}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "yarın ziyaret", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.BlockingError != BlockingFutureDate {
		t.Errorf("blocking error: got %q, want %q", res.BlockingError, BlockingFutureDate)
	}
}

func TestClassifyStaleDateIsNotBlocking(t *testing.T) {
	// Old dates are a soft finding for the field validator downstream;
	// the adapter only blocks on future dates.
	backend := &fakeBackend{responses: []string{
		`{"operation":"log_support","data":{"site_id":"MIG-TR-01","received_date":"2026-01-01"},"language":"tr"}`,
	}}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "ocakta ziyaret", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.BlockingError != "" {
		t.Errorf("stale date must not block, got %q", res.BlockingError)
	}
	if res.StringField("received_date") != "2026-01-01" {
		t.Errorf("received_date: got %q", res.StringField("received_date"))
	}
}

func TestClassifyUnknownOperationDegradesToClarify(t *testing.T) {
	backend := &fakeBackend{responses: []string{
		`{"operation":"reboot_the_moon","data":{},"language":"en"}`,
	}}
	a := newTestAdapter(backend)

	res, err := a.Classify(context.Background(), Request{Text: "x", SenderName: "Batu", Today: today})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Operation != registry.OpClarify {
		t.Errorf("operation: got %v, want clarify", res.Operation)
	}
}

func TestBuildSitesContext(t *testing.T) {
	ctx := BuildSitesContext([]SiteRef{
		{SiteID: "MIG-TR-01", Customer: "Migros"},
		{SiteID: "", Customer: "ignored"},
	})
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}
	if !containsLine(ctx, "MIG-TR-01 | Migros") {
		t.Errorf("context missing site line:\n%s", ctx)
	}

	if BuildSitesContext(nil) != "" {
		t.Error("empty site list should yield empty context")
	}
}

func containsLine(s, line string) bool {
	for _, l := range splitLines(s) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
