package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ergcontrols/sahabot/internal/audit"
	"github.com/ergcontrols/sahabot/internal/classify"
	"github.com/ergcontrols/sahabot/internal/classify/providers"
	"github.com/ergcontrols/sahabot/internal/config"
	"github.com/ergcontrols/sahabot/internal/convo"
	"github.com/ergcontrols/sahabot/internal/executor"
	"github.com/ergcontrols/sahabot/internal/idempotency"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

// engine bundles the wired core shared by the serve and chat commands.
type engine struct {
	wb    workbook.Store
	dedup *idempotency.Store
	convs *convo.Store
	ctrl  *convo.Controller
}

func buildEngine(cfg *config.Config) (*engine, error) {
	for _, path := range []string{cfg.Workbook.Path, cfg.Workbook.AuditPath, cfg.Executor.IdempotencyPath} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	wb, err := openWorkbook(cfg)
	if err != nil {
		return nil, err
	}

	trail, err := audit.NewJSONLSink(cfg.Workbook.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}

	dedup, err := idempotency.NewStore(cfg.Executor.IdempotencyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open idempotency store: %w", err)
	}

	backend, err := providers.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := config.DurationOrDefault(cfg.Classifier.RequestTimeout, config.DefaultClassifierTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier.request_timeout: %w", err)
	}
	classifier := classify.NewAdapter(backend, classify.AdapterOptions{
		Model:     cfg.Classifier.Model,
		MaxTokens: cfg.Classifier.MaxTokens,
		Timeout:   requestTimeout,
		StaleDays: cfg.Validation.StaleDays,
	})

	convTTL, err := config.DurationOrDefault(cfg.Conversation.TTL, config.DefaultConversationTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation.ttl: %w", err)
	}
	idemTTL, err := config.DurationOrDefault(cfg.Executor.IdempotencyTTL, config.DefaultExecutorIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid executor.idempotency_ttl: %w", err)
	}

	convs := convo.NewStore(convTTL)
	exec := executor.New(wb, trail)
	ctrl := convo.NewController(classifier, convs, wb, exec, dedup, convo.Options{
		StaleDays:           cfg.Validation.StaleDays,
		DuplicateSimilarity: cfg.Validation.DuplicateSimilarity,
		HistoryLimit:        cfg.Conversation.HistoryLimit,
		IdempotencyTTL:      idemTTL,
		FuzzyMinScore:       cfg.Validation.FuzzyMinScore,
		Aliases:             cfg.Validation.Aliases,
	})

	return &engine{
		wb:    wb,
		dedup: dedup,
		convs: convs,
		ctrl:  ctrl,
	}, nil
}

func openWorkbook(cfg *config.Config) (workbook.Store, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.Workbook.LockTimeout, config.DefaultWorkbookLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook.lock_timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(cfg.Workbook.LockRetry, config.DefaultWorkbookLockRetry)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook.lock_retry: %w", err)
	}
	wb, err := workbook.NewFileStore(cfg.Workbook.Path, workbook.FileOptions{
		LockTimeout: lockTimeout,
		LockRetry:   lockRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return wb, nil
}

// close flushes state that only lives in memory between scheduled saves.
func (e *engine) close() {
	if err := e.dedup.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save idempotency store: %v\n", err)
	}
}
