package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/validate"
)

// Adapter drives one Backend with a bounded timeout and a single retry on
// transient failure. It owns response parsing and the date post-checks that
// the model cannot be trusted to apply consistently.
type Adapter struct {
	backend   Backend
	model     string
	maxTokens int
	timeout   time.Duration
	staleDays int
}

type AdapterOptions struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
	StaleDays int
}

func NewAdapter(backend Backend, opts AdapterOptions) *Adapter {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.StaleDays <= 0 {
		opts.StaleDays = 90
	}
	return &Adapter{
		backend:   backend,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		staleDays: opts.StaleDays,
	}
}

// Classify runs one classification call. On failure it retries exactly once,
// then reports ErrClassifierUnavailable; the caller surfaces a localized
// "cannot process" message without touching conversation state.
func (a *Adapter) Classify(ctx context.Context, req Request) (Result, error) {
	messages := append([]Message(nil), req.History...)
	messages = append(messages, Message{
		Role:    "user",
		Content: fmt.Sprintf("[Sender: %s]\n%s", req.SenderName, req.Text),
	})

	creq := CompletionRequest{
		Model:     a.model,
		System:    BuildSystemPrompt(req.SitesContext, req.Today),
		Messages:  messages,
		MaxTokens: a.maxTokens,
	}

	raw, err := a.completeOnce(ctx, creq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		slog.Warn("Classifier call failed, retrying once", "backend", a.backend.Name(), "error", err)
		raw, err = a.completeOnce(ctx, creq)
		if err != nil {
			return Result{}, errors.Wrap(err, "classifier unavailable after retry")
		}
	}

	result, err := a.parseResponse(raw)
	if err != nil {
		return Result{}, err
	}
	a.postCheckDates(result, req.Today)
	return *result, nil
}

func (a *Adapter) completeOnce(ctx context.Context, creq CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.backend.Complete(callCtx, creq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.backend.Name(), errors.ErrClassifierUnavailable)
	}
	return raw, nil
}

// parseResponse extracts the JSON object from the model output, tolerating
// markdown code fences.
func (a *Adapter) parseResponse(raw string) (*Result, error) {
	jsonStr := extractJSON(raw)

	var parsed struct {
		Operation       string           `json:"operation"`
		Data            map[string]any   `json:"data"`
		MissingFields   []string         `json:"missing_fields"`
		Language        string           `json:"language"`
		Warnings        []string         `json:"warnings"`
		Error           string           `json:"error"`
		Message         string           `json:"message"`
		ExtraOperations []ExtraOperation `json:"extra_operations"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		slog.Warn("Classifier returned malformed JSON", "snippet", snippet(raw))
		return nil, errors.InvalidModelOutput("classifier response is not valid JSON")
	}

	if parsed.Language == "" {
		parsed.Language = "tr"
	}
	if parsed.Data == nil {
		parsed.Data = map[string]any{}
	}

	return &Result{
		Operation:          registryOp(parsed.Operation),
		Data:               parsed.Data,
		MissingSuggested:   parsed.MissingFields,
		ClarifyingQuestion: parsed.Message,
		ChainExtension:     parsed.ExtraOperations,
		Language:           parsed.Language,
		Warnings:           parsed.Warnings,
		BlockingError:      parsed.Error,
	}, nil
}

// postCheckDates re-applies the future-date rule regardless of what the
// model claimed: it has been seen missing future dates. Stale dates stay
// with the field validator, which warns on the full merged snapshot.
func (a *Adapter) postCheckDates(result *Result, today time.Time) {
	received := result.StringField("received_date")
	if received == "" {
		return
	}
	d, err := validate.ParseDate(received)
	if err != nil {
		return
	}
	if check := validate.Date(d, today, a.staleDays); !check.Valid && check.Code == validate.CodeFutureDateRejected {
		result.BlockingError = BlockingFutureDate
	}
}

// registryOp maps the model's operation string onto the recognized set;
// anything unrecognized degrades to clarify so the user gets a question
// instead of a phantom operation.
func registryOp(s string) registry.Operation {
	op := registry.Operation(strings.TrimSpace(s))
	if op == "" || !op.Known() {
		return registry.OpClarify
	}
	return op
}

func extractJSON(raw string) string {
	jsonStr := strings.TrimSpace(raw)
	if !strings.Contains(jsonStr, "```") {
		return jsonStr
	}
	for _, part := range strings.Split(jsonStr, "```")[1:] {
		lines := strings.Split(strings.TrimSpace(part), "\n")
		if len(lines) > 0 {
			head := strings.ToLower(strings.TrimSpace(lines[0]))
			if head == "json" || head == "" {
				lines = lines[1:]
			}
		}
		candidate := strings.TrimSpace(strings.Join(lines, "\n"))
		if strings.HasPrefix(candidate, "{") {
			return candidate
		}
	}
	return jsonStr
}

func snippet(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
